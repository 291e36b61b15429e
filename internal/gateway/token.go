package gateway

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/livekit/protocol/auth"

	"github.com/ayofemiade/ConvergsAI/internal/domain"
)

// DefaultTokenTTL matches the room service's own default token lifetime.
const DefaultTokenTTL = 6 * time.Hour

// AccessClaims is the decoded body of a join token: iss is the API key, sub
// the participant identity, video the room grant.
type AccessClaims struct {
	jwt.RegisteredClaims
	Name  string           `json:"name,omitempty"`
	Video *auth.VideoGrant `json:"video,omitempty"`
}

// IssuedToken is the result of a token issuance.
type IssuedToken struct {
	Token     string `json:"token"`
	ServerURL string `json:"serverUrl"`
	Identity  string `json:"identity"`
}

// TokenIssuer mints room join tokens from static service credentials.
type TokenIssuer struct {
	apiKey    string
	apiSecret string
	serverURL string
	ttl       time.Duration
}

// NewTokenIssuer creates a token issuer. Empty credentials are accepted here;
// Issue reports them as MisconfiguredService.
func NewTokenIssuer(apiKey, apiSecret, serverURL string, ttl time.Duration) *TokenIssuer {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenIssuer{
		apiKey:    apiKey,
		apiSecret: apiSecret,
		serverURL: serverURL,
		ttl:       ttl,
	}
}

// Configured reports whether signing credentials are present.
func (ti *TokenIssuer) Configured() bool {
	return ti.apiKey != "" && ti.apiSecret != ""
}

// Issue mints a token granting join, publish, subscribe and data publish on
// exactly roomName for identity. An empty identity gets a random participant id.
func (ti *TokenIssuer) Issue(roomName, identity string) (*IssuedToken, error) {
	const op = "issue token"
	roomName = strings.TrimSpace(roomName)
	if roomName == "" {
		return nil, domain.NewError(domain.KindInvalidRequest, op, "roomName is required", nil)
	}
	if !ti.Configured() {
		return nil, domain.NewError(domain.KindMisconfiguredService, op, "room service credentials are not configured", nil)
	}

	identity = strings.TrimSpace(identity)
	if identity == "" {
		identity = "participant-" + uuid.NewString()
	}

	allow := true
	at := auth.NewAccessToken(ti.apiKey, ti.apiSecret).
		SetIdentity(identity).
		SetName(identity).
		SetValidFor(ti.ttl).
		SetVideoGrant(&auth.VideoGrant{
			RoomJoin:       true,
			Room:           roomName,
			CanPublish:     &allow,
			CanSubscribe:   &allow,
			CanPublishData: &allow,
		})
	signed, err := at.ToJWT()
	if err != nil {
		return nil, domain.NewError(domain.KindMisconfiguredService, op, "signing token", err)
	}
	return &IssuedToken{Token: signed, ServerURL: ti.serverURL, Identity: identity}, nil
}

// ParseToken verifies a token minted with secret and returns its claims.
func ParseToken(raw, secret string) (*AccessClaims, error) {
	var claims AccessClaims
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	_, err := parser.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return []byte(secret), nil
	})
	if err != nil {
		return nil, domain.NewError(domain.KindInvalidRequest, "parse token", "", err)
	}
	return &claims, nil
}
