// Package worker drains the job queues: join decisions go to the audit log and roster
// exports go to S3.
package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-webinar/workshop-access/internal/models"
	"github.com/aura-webinar/workshop-access/pkg/queue"
)

// AuditWriter persists join decisions. Insert is idempotent per job ID.
type AuditWriter interface {
	Insert(ctx context.Context, jobID string, e models.JoinAuditEntry) (bool, error)
}

// AttendeeLister reads a workshop's attendee list.
type AttendeeLister interface {
	ListAttendees(ctx context.Context, workshopID uuid.UUID) ([]models.Attendee, error)
}

// RosterUploader stores a finished roster export.
type RosterUploader interface {
	UploadRoster(ctx context.Context, key string, body io.Reader) error
}

// JobSource is the queue the worker drains.
type JobSource interface {
	Dequeue(ctx context.Context) (*queue.Job, string, error)
	Retry(ctx context.Context, job *queue.Job) error
}

// Processor handles join audit and roster export jobs.
type Processor struct {
	audit     AuditWriter
	attendees AttendeeLister
	uploader  RosterUploader
	queue     JobSource
	logger    *zap.Logger
}

// NewProcessor creates a job processor. uploader may be nil when S3 is not configured;
// roster jobs then fail and end up in the DLQ.
func NewProcessor(audit AuditWriter, attendees AttendeeLister, uploader RosterUploader, q JobSource, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{audit: audit, attendees: attendees, uploader: uploader, queue: q, logger: logger}
}

// Process executes one job.
func (p *Processor) Process(ctx context.Context, job *queue.Job) error {
	switch job.Type {
	case queue.JobTypeJoinAudit:
		return p.processJoinAudit(ctx, job)
	case queue.JobTypeRosterExport:
		return p.processRosterExport(ctx, job)
	default:
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
}

func (p *Processor) processJoinAudit(ctx context.Context, job *queue.Job) error {
	var payload queue.JoinAuditPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}
	inserted, err := p.audit.Insert(ctx, job.ID, payload.Entry)
	if err != nil {
		return err
	}
	if !inserted {
		p.logger.Debug("join audit already recorded", zap.String("job_id", job.ID))
	}
	return nil
}

func (p *Processor) processRosterExport(ctx context.Context, job *queue.Job) error {
	var payload queue.RosterExportPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}
	if p.uploader == nil {
		return fmt.Errorf("roster export %s: storage not configured", payload.Key)
	}
	list, err := p.attendees.ListAttendees(ctx, payload.WorkshopID)
	if err != nil {
		return fmt.Errorf("list attendees: %w", err)
	}
	var buf bytes.Buffer
	if err := WriteRoster(&buf, list); err != nil {
		return fmt.Errorf("write roster: %w", err)
	}
	if err := p.uploader.UploadRoster(ctx, payload.Key, &buf); err != nil {
		return fmt.Errorf("s3 upload: %w", err)
	}
	p.logger.Info("roster export completed",
		zap.String("workshop_id", payload.WorkshopID.String()),
		zap.String("s3_key", payload.Key),
		zap.Int("attendees", len(list)))
	return nil
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *Processor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("worker stopping")
			return
		default:
		}

		job, _, err := p.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			sleep(ctx, queue.RetryBackoff)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.String("type", string(job.Type)), zap.Error(err))
			if reErr := p.queue.Retry(ctx, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			sleep(ctx, queue.RetryBackoff)
		}
	}
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
