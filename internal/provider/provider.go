// Package provider turns an authorized join into a credential for one of the supported
// video backends. The set of backends is closed: models.ProviderSDK and models.ProviderRoom.
package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aura-webinar/workshop-access/internal/models"
)

var (
	// ErrProviderMisconfigured means keys or room configuration are missing. Not retried.
	ErrProviderMisconfigured = errors.New("provider misconfigured")
	// ErrProviderUnavailable is a transient provider failure.
	ErrProviderUnavailable = errors.New("provider unavailable")
)

// Grant is an authorized, already role-resolved request for a credential.
type Grant struct {
	Workshop  *models.Workshop
	Identity  models.Identity
	Role      models.MeetingRole
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Provider builds a join credential for a grant.
type Provider interface {
	Kind() models.ProviderKind
	BuildCredential(ctx context.Context, g Grant) (*models.JoinCredential, error)
}

// Registry dispatches on the workshop's provider kind.
type Registry struct {
	sdk  Provider
	room Provider
}

// NewRegistry creates a registry. Pass nil for a provider that is not configured.
func NewRegistry(sdk, room Provider) *Registry {
	return &Registry{sdk: sdk, room: room}
}

// For returns the provider for kind.
func (r *Registry) For(kind models.ProviderKind) (Provider, error) {
	var p Provider
	switch kind {
	case models.ProviderSDK:
		p = r.sdk
	case models.ProviderRoom:
		p = r.room
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrProviderMisconfigured, kind)
	}
	if p == nil {
		return nil, fmt.Errorf("%w: provider %q is not enabled", ErrProviderMisconfigured, kind)
	}
	return p, nil
}

// baseCredential fills the fields every provider shares.
func baseCredential(kind models.ProviderKind, g Grant) *models.JoinCredential {
	return &models.JoinCredential{
		Provider:    kind,
		WorkshopID:  g.Workshop.ID,
		UserID:      g.Identity.UserID,
		RoomID:      g.Workshop.RoomID,
		DisplayName: g.Identity.DisplayName,
		Role:        g.Role,
		IssuedAt:    g.IssuedAt,
		ExpiresAt:   g.ExpiresAt,
	}
}
