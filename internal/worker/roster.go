package worker

import (
	"encoding/csv"
	"io"
	"time"

	"github.com/aura-webinar/workshop-access/internal/models"
)

var rosterHeader = []string{"workshop_id", "user_id", "source", "enrolled_at"}

// WriteRoster writes attendees as CSV with a header row, in the order given.
func WriteRoster(w io.Writer, attendees []models.Attendee) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(rosterHeader); err != nil {
		return err
	}
	for _, a := range attendees {
		rec := []string{
			a.WorkshopID.String(),
			a.UserID.String(),
			string(a.Source),
			a.EnrolledAt.UTC().Format(time.RFC3339),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
