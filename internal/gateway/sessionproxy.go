package gateway

import (
	"context"

	"github.com/google/uuid"

	"github.com/ayofemiade/ConvergsAI/internal/domain"
	"github.com/ayofemiade/ConvergsAI/internal/logging"
)

// SessionBackend is the backend surface the session proxy forwards to.
type SessionBackend interface {
	CreateSession(ctx context.Context, customPrompt string) (string, error)
	GetSession(ctx context.Context, id string) (*domain.SessionInfo, error)
	DeleteSession(ctx context.Context, id string) error
}

// SessionProxy forwards session lifecycle calls to the backend. Creation is
// the only call that degrades: when the backend fails, a locally generated
// identifier is returned with Fallback set.
type SessionProxy struct {
	backend SessionBackend
	log     *logging.Logger
	newID   func() string
}

// NewSessionProxy creates a session proxy over the given backend.
func NewSessionProxy(b SessionBackend, log *logging.Logger) *SessionProxy {
	return &SessionProxy{
		backend: b,
		log:     log.Sub("sessions"),
		newID:   uuid.NewString,
	}
}

// Create requests a new session. It never fails.
func (p *SessionProxy) Create(ctx context.Context, customPrompt string) domain.CreatedSession {
	id, err := p.backend.CreateSession(ctx, customPrompt)
	if err == nil && id != "" {
		p.log.Debug().Str("session_id", id).Msg("session created")
		return domain.CreatedSession{SessionID: id}
	}

	fallback := p.newID()
	p.log.Warn().Err(err).Str("session_id", fallback).Msg("backend session creation failed, using local session id")
	return domain.CreatedSession{SessionID: fallback, Fallback: true}
}

// Get fetches session info. Failures are NotFound or UpstreamUnavailable.
func (p *SessionProxy) Get(ctx context.Context, id string) (*domain.SessionInfo, error) {
	if id == "" {
		return nil, domain.NewError(domain.KindInvalidRequest, "get session", "session id is required", nil)
	}
	info, err := p.backend.GetSession(ctx, id)
	if err != nil {
		return nil, upstreamFailure("get session", err)
	}
	return info, nil
}

// Delete removes a session. Failures are NotFound or UpstreamUnavailable.
func (p *SessionProxy) Delete(ctx context.Context, id string) error {
	if id == "" {
		return domain.NewError(domain.KindInvalidRequest, "delete session", "session id is required", nil)
	}
	if err := p.backend.DeleteSession(ctx, id); err != nil {
		return upstreamFailure("delete session", err)
	}
	return nil
}

// upstreamFailure collapses backend errors into NotFound or UpstreamUnavailable.
func upstreamFailure(op string, err error) error {
	if domain.KindOf(err) == domain.KindNotFound || domain.KindOf(err) == domain.KindUpstreamUnavailable {
		return err
	}
	return domain.NewError(domain.KindUpstreamUnavailable, op, "", err)
}
