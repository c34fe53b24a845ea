package provider

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/ZEGOCLOUD/zego_server_assistant/token/go/src/token04"

	"github.com/aura-webinar/workshop-access/internal/models"
)

// zegoRoomPayload is the token04 payload binding a token to one room and its privileges.
type zegoRoomPayload struct {
	RoomID       string      `json:"room_id"`
	Privilege    map[int]int `json:"privilege"`
	StreamIDList []string    `json:"stream_id_list,omitempty"`
}

// ZegoSigner signs ZEGOCLOUD token04 room tokens. Hosts may publish; participants only log in.
type ZegoSigner struct {
	appID        uint32
	serverSecret string
}

// NewZegoSigner returns a signer, or ErrProviderMisconfigured for a missing app id or a
// server secret that is not 32 characters.
func NewZegoSigner(appID uint32, serverSecret string) (*ZegoSigner, error) {
	if appID == 0 || serverSecret == "" {
		return nil, fmt.Errorf("%w: zego app_id and server_secret required", ErrProviderMisconfigured)
	}
	if len(serverSecret) != 32 {
		return nil, fmt.Errorf("%w: zego server_secret must be 32 characters", ErrProviderMisconfigured)
	}
	return &ZegoSigner{appID: appID, serverSecret: serverSecret}, nil
}

// Scheme implements Signer.
func (s *ZegoSigner) Scheme() string { return "zego" }

// Sign implements Signer. token04 stamps its own creation time, so the effective
// lifetime is what binds expiry.
func (s *ZegoSigner) Sign(g Grant) (string, string, error) {
	privilege := map[int]int{
		token04.PrivilegeKeyLogin:   token04.PrivilegeEnable,
		token04.PrivilegeKeyPublish: token04.PrivilegeDisable,
	}
	if g.Role == models.RoleHost {
		privilege[token04.PrivilegeKeyPublish] = token04.PrivilegeEnable
	}
	payload, err := json.Marshal(zegoRoomPayload{RoomID: g.Workshop.RoomID, Privilege: privilege})
	if err != nil {
		return "", "", fmt.Errorf("zego: marshal payload: %w", err)
	}
	lifetime := int64(g.ExpiresAt.Sub(g.IssuedAt).Seconds())
	if lifetime <= 0 {
		return "", "", fmt.Errorf("%w: zego: non-positive lifetime", ErrProviderMisconfigured)
	}
	token, err := token04.GenerateToken04(s.appID, g.Identity.UserID.String(), s.serverSecret, lifetime, string(payload))
	if err != nil {
		return "", "", fmt.Errorf("%w: zego: %v", ErrProviderMisconfigured, err)
	}
	return token, strconv.FormatUint(uint64(s.appID), 10), nil
}
