// Package session derives a workshop's join phase and countdown from its schedule.
// Everything here is a pure function of the workshop and the supplied time.
package session

import (
	"time"

	"github.com/aura-webinar/workshop-access/internal/models"
)

// Phase is the derived join phase of a workshop.
type Phase string

const (
	PhaseNotOpen   Phase = "not_open"
	PhaseOpen      Phase = "open"
	PhaseEnded     Phase = "ended"
	PhaseCancelled Phase = "cancelled"
)

// Sign says whether a countdown value is time left before start or time since start.
type Sign string

const (
	SignRemaining Sign = "remaining"
	SignElapsed   Sign = "elapsed"
)

// Clock holds the join lead and the duration assumed for workshops without an end.
type Clock struct {
	JoinLead        time.Duration
	DefaultDuration time.Duration
}

// NewClock returns a Clock. A non-positive default duration falls back to one hour.
func NewClock(joinLead, defaultDuration time.Duration) Clock {
	if defaultDuration <= 0 {
		defaultDuration = time.Hour
	}
	if joinLead < 0 {
		joinLead = 0
	}
	return Clock{JoinLead: joinLead, DefaultDuration: defaultDuration}
}

// End returns the scheduled end: ends_at when set, else start plus duration.
func (c Clock) End(w *models.Workshop) time.Time {
	if w.EndsAt != nil {
		return *w.EndsAt
	}
	d := time.Duration(w.DurationMinutes) * time.Minute
	if d <= 0 {
		d = c.DefaultDuration
	}
	return w.StartsAt.Add(d)
}

// OpensAt returns the first instant at which joining is allowed.
func (c Clock) OpensAt(w *models.Workshop) time.Time {
	return w.StartsAt.Add(-c.JoinLead)
}

// Phase computes the join phase at now. A cancelled status overrides the schedule.
func (c Clock) Phase(w *models.Workshop, now time.Time) Phase {
	if w.Status == models.WorkshopCancelled {
		return PhaseCancelled
	}
	if now.Before(c.OpensAt(w)) {
		return PhaseNotOpen
	}
	if !now.Before(c.End(w)) {
		return PhaseEnded
	}
	return PhaseOpen
}

// RemainingOrElapsed returns the time left until start, or the time elapsed since start.
func RemainingOrElapsed(w *models.Workshop, now time.Time) (time.Duration, Sign) {
	if now.Before(w.StartsAt) {
		return w.StartsAt.Sub(now), SignRemaining
	}
	return now.Sub(w.StartsAt), SignElapsed
}

// Snapshot is what a client needs to render a countdown locally between refreshes.
type Snapshot struct {
	Phase      Phase     `json:"phase"`
	ServerTime time.Time `json:"server_time"`
	StartsAt   time.Time `json:"starts_at"`
	OpensAt    time.Time `json:"opens_at"`
	EndsAt     time.Time `json:"ends_at"`
	Sign       Sign      `json:"sign"`
	DurationMS int64     `json:"duration_ms"`
}

// Snapshot captures phase, boundaries and countdown at now.
func (c Clock) Snapshot(w *models.Workshop, now time.Time) Snapshot {
	d, sign := RemainingOrElapsed(w, now)
	return Snapshot{
		Phase:      c.Phase(w, now),
		ServerTime: now,
		StartsAt:   w.StartsAt,
		OpensAt:    c.OpensAt(w),
		EndsAt:     c.End(w),
		Sign:       sign,
		DurationMS: d.Milliseconds(),
	}
}
