// Package enrollment is the durable attendee record: which users may join which workshops.
//
// Enroll is the only write path for attendees and is a single atomic conditional insert.
// Callers never check membership before enrolling; a duplicate pair reports created=false.
package enrollment

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/aura-webinar/workshop-access/internal/models"
)

var (
	// ErrStoreUnavailable is a transient storage failure; callers may retry.
	ErrStoreUnavailable = errors.New("enrollment store unavailable")
	// ErrStoreIntegrity is a data or constraint fault other than a duplicate pair. Not retried.
	ErrStoreIntegrity = errors.New("enrollment store integrity error")
	// ErrWorkshopNotFound is returned by Enroll when the workshop does not exist.
	ErrWorkshopNotFound = errors.New("workshop not found")
	// ErrWorkshopClosed is returned by Enroll when the workshop is cancelled.
	ErrWorkshopClosed = errors.New("workshop is cancelled")
)

// Store is the attendee record.
type Store interface {
	Enroll(ctx context.Context, workshopID, userID uuid.UUID, source models.EnrollmentSource) (created bool, err error)
	Unenroll(ctx context.Context, workshopID, userID uuid.UUID) (removed bool, err error)
	IsEnrolled(ctx context.Context, workshopID, userID uuid.UUID) (bool, error)
	ListAttendees(ctx context.Context, workshopID uuid.UUID) ([]models.Attendee, error)
}

// IsTransient reports whether err is worth one retry.
func IsTransient(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}
