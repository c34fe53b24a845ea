package models

import (
	"time"

	"github.com/google/uuid"
)

// MeetingRole is the role a credential grants inside the meeting.
type MeetingRole string

const (
	RoleHost        MeetingRole = "host"
	RoleParticipant MeetingRole = "participant"
)

// JoinCredential is handed to the provider's client SDK. It is never persisted.
type JoinCredential struct {
	Provider    ProviderKind `json:"provider"`
	WorkshopID  uuid.UUID    `json:"workshop_id"`
	UserID      uuid.UUID    `json:"user_id"`
	RoomID      string       `json:"room_id"`
	AppKey      string       `json:"app_key,omitempty"`
	Token       string       `json:"token,omitempty"`
	Reference   string       `json:"reference,omitempty"`
	JoinURL     string       `json:"join_url,omitempty"`
	DisplayName string       `json:"display_name"`
	Role        MeetingRole  `json:"role"`
	IssuedAt    time.Time    `json:"issued_at"`
	ExpiresAt   time.Time    `json:"expires_at"`
}

// DenialReason is the machine-readable reason a join was refused.
type DenialReason string

const (
	DenyWorkshopNotFound       DenialReason = "workshop_not_found"
	DenyCancelled              DenialReason = "cancelled"
	DenyNotYetOpen             DenialReason = "not_yet_open"
	DenyEnded                  DenialReason = "ended"
	DenyNotEnrolled            DenialReason = "not_enrolled"
	DenyProviderUnavailable    DenialReason = "provider_unavailable"
	DenyProviderMisconfigured  DenialReason = "provider_misconfigured"
	DenyTemporarilyUnavailable DenialReason = "temporarily_unavailable"
	DenyTimeout                DenialReason = "timeout"
	DenyInternal               DenialReason = "internal_error"
)

// Denial is a structured refusal to issue a credential.
type Denial struct {
	Reason  DenialReason `json:"reason"`
	Message string       `json:"message,omitempty"`
	OpensAt *time.Time   `json:"opens_at,omitempty"`
}

// Error lets a Denial travel through error-returning code paths.
func (d *Denial) Error() string {
	if d.Message != "" {
		return string(d.Reason) + ": " + d.Message
	}
	return string(d.Reason)
}

// Deny builds a Denial with a message.
func Deny(reason DenialReason, msg string) *Denial {
	return &Denial{Reason: reason, Message: msg}
}
