package provider

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/aura-webinar/workshop-access/internal/models"
)

var (
	// ErrReferenceNotFound means the reference is unknown, expired, already used or belongs to someone else.
	ErrReferenceNotFound = errors.New("join reference not found")
	// errReferenceTaken is returned by RefStore.Put when the reference already exists.
	errReferenceTaken = errors.New("join reference already exists")
)

// Binding is what a room join reference stands for.
type Binding struct {
	WorkshopID  uuid.UUID          `json:"workshop_id"`
	UserID      uuid.UUID          `json:"user_id"`
	RoomID      string             `json:"room_id"`
	Role        models.MeetingRole `json:"role"`
	DisplayName string             `json:"display_name"`
	ExpiresAt   time.Time          `json:"expires_at"`
}

// RefStore keeps room join references until they are used or expire.
type RefStore interface {
	// Put stores b under (ref, b.UserID) for ttl; it must not overwrite an existing reference.
	Put(ctx context.Context, ref string, b Binding, ttl time.Duration) error
	// Take atomically returns and removes the binding for (ref, userID).
	Take(ctx context.Context, ref string, userID uuid.UUID) (*Binding, error)
}

// RoomProvider issues single-use room join references. The reference carries no secret;
// authorization was decided before it is issued.
type RoomProvider struct {
	baseURL string
	refs    RefStore
	newRef  func() (string, error)
	now     func() time.Time
}

// NewRoomProvider creates the room-link provider.
func NewRoomProvider(baseURL string, refs RefStore) *RoomProvider {
	return &RoomProvider{baseURL: baseURL, refs: refs, newRef: generateRef, now: time.Now}
}

// Kind implements Provider.
func (p *RoomProvider) Kind() models.ProviderKind { return models.ProviderRoom }

// BuildCredential implements Provider.
func (p *RoomProvider) BuildCredential(ctx context.Context, g Grant) (*models.JoinCredential, error) {
	if p.baseURL == "" || p.refs == nil {
		return nil, fmt.Errorf("%w: room base url not configured", ErrProviderMisconfigured)
	}
	if g.Workshop.RoomID == "" {
		return nil, fmt.Errorf("%w: workshop %s has no room", ErrProviderMisconfigured, g.Workshop.ID)
	}
	ttl := g.ExpiresAt.Sub(g.IssuedAt)
	if ttl <= 0 {
		return nil, fmt.Errorf("%w: non-positive credential lifetime", ErrProviderMisconfigured)
	}
	ref, err := p.newRef()
	if err != nil {
		return nil, fmt.Errorf("%w: generate reference: %v", ErrProviderUnavailable, err)
	}
	b := Binding{
		WorkshopID:  g.Workshop.ID,
		UserID:      g.Identity.UserID,
		RoomID:      g.Workshop.RoomID,
		Role:        g.Role,
		DisplayName: g.Identity.DisplayName,
		ExpiresAt:   g.ExpiresAt,
	}
	if err := p.refs.Put(ctx, ref, b, ttl); err != nil {
		return nil, fmt.Errorf("%w: store reference: %v", ErrProviderUnavailable, err)
	}
	cred := baseCredential(models.ProviderRoom, g)
	cred.Reference = ref
	cred.JoinURL = p.joinURL(g.Workshop.RoomID, ref, g.Identity.DisplayName)
	return cred, nil
}

// Redeem consumes a reference on behalf of userID. A reference works once, for its own user.
func (p *RoomProvider) Redeem(ctx context.Context, ref string, userID uuid.UUID) (*Binding, error) {
	if ref == "" {
		return nil, ErrReferenceNotFound
	}
	b, err := p.refs.Take(ctx, ref, userID)
	if err != nil {
		return nil, err
	}
	if !p.now().Before(b.ExpiresAt) {
		return nil, ErrReferenceNotFound
	}
	return b, nil
}

func (p *RoomProvider) joinURL(roomID, ref, displayName string) string {
	q := url.Values{}
	q.Set("ref", ref)
	if displayName != "" {
		q.Set("name", displayName)
	}
	return p.baseURL + "/" + url.PathEscape(roomID) + "?" + q.Encode()
}

func generateRef() (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
