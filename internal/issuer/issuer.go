// Package issuer resolves the meeting role for an authorized join and obtains a
// short-lived credential from the workshop's provider.
package issuer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/aura-webinar/workshop-access/config"
	"github.com/aura-webinar/workshop-access/internal/models"
	"github.com/aura-webinar/workshop-access/internal/provider"
	"github.com/aura-webinar/workshop-access/pkg/retry"
)

// errCircuitOpen marks a call refused by the breaker; it is unavailable but not worth a retry.
var errCircuitOpen = errors.New("circuit open")

// Providers resolves the provider bound to a workshop.
type Providers interface {
	For(kind models.ProviderKind) (provider.Provider, error)
}

// Issuer issues join credentials. It never returns raw provider errors.
type Issuer struct {
	providers    Providers
	lifetime     time.Duration
	retryBackoff time.Duration
	breakers     map[models.ProviderKind]*gobreaker.CircuitBreaker
	now          func() time.Time
	logger       *zap.Logger
}

// New creates an issuer with one circuit breaker per provider kind.
func New(providers Providers, session config.SessionConfig, breaker config.BreakerConfig, logger *zap.Logger) *Issuer {
	if logger == nil {
		logger = zap.NewNop()
	}
	iss := &Issuer{
		providers:    providers,
		lifetime:     session.CredentialLifetime,
		retryBackoff: session.RetryBackoff,
		breakers:     make(map[models.ProviderKind]*gobreaker.CircuitBreaker, 2),
		now:          time.Now,
		logger:       logger,
	}
	for _, kind := range []models.ProviderKind{models.ProviderSDK, models.ProviderRoom} {
		iss.breakers[kind] = newBreaker(string(kind), breaker, logger)
	}
	return iss
}

func newBreaker(name string, cfg config.BreakerConfig, logger *zap.Logger) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "provider:" + name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests || counts.Requests == 0 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.FailureRatio
		},
		// Only transient provider failures count against the breaker.
		IsSuccessful: func(err error) bool {
			return err == nil || !errors.Is(err, provider.ErrProviderUnavailable)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("provider circuit breaker state change",
				zap.String("breaker", name), zap.String("from", from.String()), zap.String("to", to.String()))
		},
	})
}

// Lifetime is the configured credential lifetime.
func (i *Issuer) Lifetime() time.Duration { return i.lifetime }

// EffectiveRole decides the meeting role. Only administrators and the workshop owner can
// host; they get host unless they asked to join as a participant. The client's request
// never raises anyone else's role.
func EffectiveRole(w *models.Workshop, ident models.Identity, requested models.MeetingRole) models.MeetingRole {
	privileged := ident.IsAdmin || ident.UserID == w.CreatedBy
	if privileged && requested != models.RoleParticipant {
		return models.RoleHost
	}
	return models.RoleParticipant
}

// Issue returns a credential or a denial. Transient provider failures are retried once.
func (i *Issuer) Issue(ctx context.Context, w *models.Workshop, ident models.Identity, requested models.MeetingRole) (*models.JoinCredential, *models.Denial) {
	p, err := i.providers.For(w.Provider)
	if err != nil {
		i.logger.Error("provider lookup failed", zap.Error(err), zap.String("workshop_id", w.ID.String()), zap.String("provider", string(w.Provider)))
		return nil, models.Deny(models.DenyProviderMisconfigured, "video provider is not configured")
	}

	now := i.now()
	g := provider.Grant{
		Workshop:  w,
		Identity:  ident,
		Role:      EffectiveRole(w, ident, requested),
		IssuedAt:  now,
		ExpiresAt: now.Add(i.lifetime),
	}
	cb := i.breakers[w.Provider]

	cred, err := retry.Once(ctx, i.retryBackoff, isRetryable, func(ctx context.Context) (*models.JoinCredential, error) {
		v, err := cb.Execute(func() (interface{}, error) {
			return p.BuildCredential(ctx, g)
		})
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %w", provider.ErrProviderUnavailable, errCircuitOpen)
		}
		if err != nil {
			return nil, err
		}
		return v.(*models.JoinCredential), nil
	})
	if err == nil {
		return cred, nil
	}

	fields := []zap.Field{zap.Error(err), zap.String("workshop_id", w.ID.String()), zap.String("provider", string(w.Provider))}
	switch {
	case ctx.Err() != nil:
		i.logger.Warn("credential issuance timed out", fields...)
		return nil, models.Deny(models.DenyTimeout, "join request timed out")
	case errors.Is(err, provider.ErrProviderMisconfigured):
		i.logger.Error("provider misconfigured", fields...)
		return nil, models.Deny(models.DenyProviderMisconfigured, "video provider is not configured")
	case errors.Is(err, provider.ErrProviderUnavailable):
		i.logger.Warn("provider unavailable", fields...)
		return nil, models.Deny(models.DenyProviderUnavailable, "video provider is temporarily unavailable")
	default:
		i.logger.Error("credential issuance failed", fields...)
		return nil, models.Deny(models.DenyInternal, "failed to issue credential")
	}
}

func isRetryable(err error) bool {
	return errors.Is(err, provider.ErrProviderUnavailable) && !errors.Is(err, errCircuitOpen)
}
