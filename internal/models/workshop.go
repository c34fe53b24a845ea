package models

import (
	"time"

	"github.com/google/uuid"
)

// WorkshopStatus is the stored lifecycle status of a workshop.
type WorkshopStatus string

const (
	WorkshopScheduled WorkshopStatus = "scheduled"
	WorkshopLive      WorkshopStatus = "live"
	WorkshopEnded     WorkshopStatus = "ended"
	WorkshopCancelled WorkshopStatus = "cancelled"
)

// ProviderKind selects the video backend a workshop runs on.
type ProviderKind string

const (
	// ProviderSDK issues a signed, time-bound SDK signature.
	ProviderSDK ProviderKind = "sdk"
	// ProviderRoom issues a single-use room join reference.
	ProviderRoom ProviderKind = "room"
)

// Valid reports whether k is one of the known providers.
func (k ProviderKind) Valid() bool {
	switch k {
	case ProviderSDK, ProviderRoom:
		return true
	}
	return false
}

// Workshop is a scheduled live session.
type Workshop struct {
	ID              uuid.UUID      `json:"id"`
	Title           string         `json:"title"`
	StartsAt        time.Time      `json:"starts_at"`
	DurationMinutes int            `json:"duration_minutes"`
	EndsAt          *time.Time     `json:"ends_at,omitempty"`
	Status          WorkshopStatus `json:"status"`
	Provider        ProviderKind   `json:"provider"`
	RoomID          string         `json:"room_id"`
	CreatedBy       uuid.UUID      `json:"created_by"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}
