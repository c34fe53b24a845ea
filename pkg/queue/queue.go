package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/aura-webinar/workshop-access/internal/models"
)

const (
	// QueueJoinAudit is the Redis list key for join decision records.
	QueueJoinAudit = "worker:join_audit"
	// QueueRosterExports is the Redis list key for attendee roster exports.
	QueueRosterExports = "worker:roster_exports"
	// QueueDLQ is the dead-letter queue for failed jobs after retries.
	QueueDLQ = "worker:dlq"
	// MaxRetries is the number of times to retry a job before moving to DLQ.
	MaxRetries = 3
	// RetryBackoff is the delay between retries.
	RetryBackoff = 10 * time.Second
	// dequeueWait bounds one BLPOP so the worker notices shutdown.
	dequeueWait = 5 * time.Second
)

// JobType identifies the job kind.
type JobType string

const (
	JobTypeJoinAudit    JobType = "join_audit"
	JobTypeRosterExport JobType = "roster_export"
)

// queueFor returns the list a job type lives on.
func queueFor(t JobType) (string, error) {
	switch t {
	case JobTypeJoinAudit:
		return QueueJoinAudit, nil
	case JobTypeRosterExport:
		return QueueRosterExports, nil
	}
	return "", fmt.Errorf("unknown job type: %s", t)
}

// JoinAuditPayload is one join decision.
type JoinAuditPayload struct {
	Entry models.JoinAuditEntry `json:"entry"`
}

// RosterExportPayload asks the worker to write a workshop's attendee list to S3 under Key.
type RosterExportPayload struct {
	WorkshopID  uuid.UUID `json:"workshop_id"`
	RequestedBy uuid.UUID `json:"requested_by"`
	Key         string    `json:"key"`
}

// Job is a generic job envelope.
type Job struct {
	ID        string          `json:"id"`
	Type      JobType         `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Attempt   int             `json:"attempt"`
	CreatedAt time.Time       `json:"created_at"`
}

// Queue enqueues and dequeues jobs via Redis.
type Queue struct {
	client *redis.Client
	logger *zap.Logger
}

// NewQueue creates a new Redis-backed job queue.
func NewQueue(client *redis.Client, logger *zap.Logger) *Queue {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Queue{client: client, logger: logger}
}

// NewJob wraps a payload in an envelope with a fresh ID.
func NewJob(t JobType, payload interface{}) (*Job, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return &Job{
		ID:        uuid.New().String(),
		Type:      t,
		Payload:   body,
		CreatedAt: time.Now().UTC(),
	}, nil
}

func (q *Queue) push(ctx context.Context, key string, job *Job) error {
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	if err := q.client.RPush(ctx, key, raw).Err(); err != nil {
		return fmt.Errorf("rpush %s: %w", key, err)
	}
	return nil
}

// PublishJoinAudit enqueues a join decision for the audit log.
func (q *Queue) PublishJoinAudit(ctx context.Context, entry models.JoinAuditEntry) error {
	job, err := NewJob(JobTypeJoinAudit, JoinAuditPayload{Entry: entry})
	if err != nil {
		return err
	}
	if err := q.push(ctx, QueueJoinAudit, job); err != nil {
		return err
	}
	q.logger.Debug("enqueued join audit job", zap.String("job_id", job.ID), zap.String("workshop_id", entry.WorkshopID.String()))
	return nil
}

// EnqueueRosterExport enqueues a roster export job.
func (q *Queue) EnqueueRosterExport(ctx context.Context, payload RosterExportPayload) error {
	job, err := NewJob(JobTypeRosterExport, payload)
	if err != nil {
		return err
	}
	if err := q.push(ctx, QueueRosterExports, job); err != nil {
		return err
	}
	q.logger.Debug("enqueued roster export job", zap.String("job_id", job.ID), zap.String("workshop_id", payload.WorkshopID.String()))
	return nil
}

// Dequeue blocks until a job is available on any queue or ctx is done. Returns job and key (queue name).
// A nil job with nil error means nothing arrived in time or the entry was unreadable.
func (q *Queue) Dequeue(ctx context.Context) (*Job, string, error) {
	result, err := q.client.BLPop(ctx, dequeueWait, QueueJoinAudit, QueueRosterExports).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, "", nil
		}
		return nil, "", err
	}
	if len(result) < 2 {
		return nil, "", nil
	}
	var job Job
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		q.logger.Warn("invalid job payload", zap.String("raw", result[1]), zap.Error(err))
		return nil, "", nil
	}
	return &job, result[0], nil
}

// Retry re-enqueues a job on its own queue with incremented attempt. If attempt >= MaxRetries, pushes to DLQ instead.
func (q *Queue) Retry(ctx context.Context, job *Job) error {
	job.Attempt++
	if job.Attempt >= MaxRetries {
		if err := q.push(ctx, QueueDLQ, job); err != nil {
			q.logger.Error("dlq push failed", zap.Error(err), zap.String("job_id", job.ID))
			return err
		}
		q.logger.Warn("job moved to DLQ", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt))
		return nil
	}
	key, err := queueFor(job.Type)
	if err != nil {
		return q.push(ctx, QueueDLQ, job)
	}
	if err := q.push(ctx, key, job); err != nil {
		return err
	}
	q.logger.Info("job retried", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt))
	return nil
}
