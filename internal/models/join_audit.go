package models

import (
	"time"

	"github.com/google/uuid"
)

// JoinOutcome is the result of one join request.
type JoinOutcome string

const (
	JoinGranted JoinOutcome = "granted"
	JoinDenied  JoinOutcome = "denied"
)

// JoinAuditEntry records one join decision.
type JoinAuditEntry struct {
	ID         int64        `json:"id"`
	WorkshopID uuid.UUID    `json:"workshop_id"`
	UserID     uuid.UUID    `json:"user_id"`
	Outcome    JoinOutcome  `json:"outcome"`
	Reason     DenialReason `json:"reason,omitempty"`
	Role       MeetingRole  `json:"role,omitempty"`
	Provider   ProviderKind `json:"provider,omitempty"`
	DecidedAt  time.Time    `json:"decided_at"`
}
