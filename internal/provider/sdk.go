package provider

import (
	"context"
	"fmt"

	"github.com/aura-webinar/workshop-access/internal/models"
)

// Signer produces the SDK signature for a grant and the app key the client SDK needs with it.
type Signer interface {
	Scheme() string
	Sign(g Grant) (token, appKey string, err error)
}

// SDKProvider issues signature-based credentials. Every bound field is inside the signed
// payload, so a credential cannot be moved to another room, role or user.
type SDKProvider struct {
	signer Signer
}

// NewSDKProvider creates the signature-based provider.
func NewSDKProvider(signer Signer) *SDKProvider {
	return &SDKProvider{signer: signer}
}

// Kind implements Provider.
func (p *SDKProvider) Kind() models.ProviderKind { return models.ProviderSDK }

// BuildCredential implements Provider.
func (p *SDKProvider) BuildCredential(_ context.Context, g Grant) (*models.JoinCredential, error) {
	if p.signer == nil {
		return nil, fmt.Errorf("%w: no signer", ErrProviderMisconfigured)
	}
	if g.Workshop.RoomID == "" {
		return nil, fmt.Errorf("%w: workshop %s has no meeting number", ErrProviderMisconfigured, g.Workshop.ID)
	}
	token, appKey, err := p.signer.Sign(g)
	if err != nil {
		return nil, err
	}
	cred := baseCredential(models.ProviderSDK, g)
	cred.Token = token
	cred.AppKey = appKey
	return cred, nil
}
