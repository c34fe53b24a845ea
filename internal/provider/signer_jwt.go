package provider

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/aura-webinar/workshop-access/internal/models"
)

// SDK role values inside the signature.
const (
	sdkRoleParticipant = 0
	sdkRoleHost        = 1
)

// SignatureClaims is the payload of a meeting SDK signature.
type SignatureClaims struct {
	AppKey        string `json:"appKey"`
	SDKKey        string `json:"sdkKey"`
	MeetingNumber string `json:"mn"`
	Role          int    `json:"role"`
	TokenExp      int64  `json:"tokenExp"`
	WorkshopID    string `json:"wid"`
	jwt.RegisteredClaims
}

// JWTSigner signs meeting SDK signatures as HS256 JWTs.
type JWTSigner struct {
	appKey string
	secret []byte
}

// NewJWTSigner returns a signer, or ErrProviderMisconfigured when the key or secret is missing.
func NewJWTSigner(appKey, appSecret string) (*JWTSigner, error) {
	if appKey == "" || appSecret == "" {
		return nil, fmt.Errorf("%w: sdk app key and secret required", ErrProviderMisconfigured)
	}
	return &JWTSigner{appKey: appKey, secret: []byte(appSecret)}, nil
}

// Scheme implements Signer.
func (s *JWTSigner) Scheme() string { return "jwt" }

// Sign implements Signer.
func (s *JWTSigner) Sign(g Grant) (string, string, error) {
	role := sdkRoleParticipant
	if g.Role == models.RoleHost {
		role = sdkRoleHost
	}
	claims := SignatureClaims{
		AppKey:        s.appKey,
		SDKKey:        s.appKey,
		MeetingNumber: g.Workshop.RoomID,
		Role:          role,
		TokenExp:      g.ExpiresAt.Unix(),
		WorkshopID:    g.Workshop.ID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   g.Identity.UserID.String(),
			IssuedAt:  jwt.NewNumericDate(g.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(g.ExpiresAt),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", "", fmt.Errorf("%w: sign: %v", ErrProviderMisconfigured, err)
	}
	return token, s.appKey, nil
}

// Verify parses a signature issued by this signer as of now.
func (s *JWTSigner) Verify(token string, now time.Time) (*SignatureClaims, error) {
	claims := &SignatureClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(func() time.Time { return now }), jwt.WithIssuedAt(), jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}
	if claims.AppKey != s.appKey {
		return nil, errors.New("signature issued for another app")
	}
	return claims, nil
}
