package models

import (
	"time"

	"github.com/google/uuid"
)

// EnrollmentSource records how an attendee was enrolled.
type EnrollmentSource string

const (
	SourcePurchase EnrollmentSource = "purchase"
	SourceAdmin    EnrollmentSource = "admin"
	SourceSelf     EnrollmentSource = "self"
	SourceOwner    EnrollmentSource = "owner"
)

// Valid reports whether s is a known enrollment source.
func (s EnrollmentSource) Valid() bool {
	switch s {
	case SourcePurchase, SourceAdmin, SourceSelf, SourceOwner:
		return true
	}
	return false
}

// Attendee authorizes one user to join one workshop. (WorkshopID, UserID) is unique.
type Attendee struct {
	WorkshopID uuid.UUID        `json:"workshop_id"`
	UserID     uuid.UUID        `json:"user_id"`
	Source     EnrollmentSource `json:"source"`
	EnrolledAt time.Time        `json:"enrolled_at"`
}
