// Package gwclient is the HTTP client the call and CLI use to reach the
// gateway.
package gwclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ayofemiade/ConvergsAI/internal/domain"
)

const (
	defaultTimeout = 20 * time.Second
	maxErrorBody   = 4 << 10
)

// Client calls the gateway HTTP surface.
type Client struct {
	baseURL string
	client  *http.Client
}

// New creates a gateway client for baseURL (e.g. "http://127.0.0.1:3001").
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// BaseURL returns the gateway URL.
func (c *Client) BaseURL() string { return c.baseURL }

// CreateSession asks the gateway for a session. The gateway never fails this
// for upstream reasons; a degraded session comes back with Fallback set.
func (c *Client) CreateSession(ctx context.Context, customPrompt string) (domain.CreatedSession, error) {
	var out struct {
		Success   bool   `json:"success"`
		SessionID string `json:"session_id"`
		Fallback  bool   `json:"fallback"`
	}
	body := map[string]string{}
	if customPrompt != "" {
		body["custom_prompt"] = customPrompt
	}
	if err := c.do(ctx, "create session", http.MethodPost, "/session/new", body, &out); err != nil {
		return domain.CreatedSession{}, err
	}
	if out.SessionID == "" {
		return domain.CreatedSession{}, domain.NewError(domain.KindUpstreamUnavailable, "create session", "gateway returned no session id", nil)
	}
	return domain.CreatedSession{SessionID: out.SessionID, Fallback: out.Fallback}, nil
}

// IssueToken requests a room token. An empty identity lets the gateway pick one.
func (c *Client) IssueToken(ctx context.Context, room, identity string) (domain.RoomToken, error) {
	var out domain.RoomToken
	body := map[string]string{"roomName": room}
	if identity != "" {
		body["identity"] = identity
	}
	if err := c.do(ctx, "issue token", http.MethodPost, "/livekit/token", body, &out); err != nil {
		return domain.RoomToken{}, err
	}
	if out.Token == "" {
		return domain.RoomToken{}, domain.NewError(domain.KindUpstreamUnavailable, "issue token", "gateway returned no token", nil)
	}
	return out, nil
}

// GetSession fetches session info through the gateway.
func (c *Client) GetSession(ctx context.Context, id string) (*domain.SessionInfo, error) {
	var info domain.SessionInfo
	if err := c.do(ctx, "get session", http.MethodGet, "/session/"+url.PathEscape(id), nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// DeleteSession deletes a session through the gateway.
func (c *Client) DeleteSession(ctx context.Context, id string) error {
	return c.do(ctx, "delete session", http.MethodDelete, "/session/"+url.PathEscape(id), nil, nil)
}

// SendMessage posts a text turn.
func (c *Client) SendMessage(ctx context.Context, sessionID, text string) (*domain.MessageResponse, error) {
	var out domain.MessageResponse
	req := domain.MessageRequest{Text: text, SessionID: sessionID}
	if err := c.do(ctx, "send message", http.MethodPost, "/message", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Health is the gateway's /health body.
type Health struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Backend struct {
		Reachable bool   `json:"reachable"`
		Status    string `json:"status,omitempty"`
	} `json:"backend"`
}

// Health probes the gateway.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	var out Health
	if err := c.do(ctx, "health", http.MethodGet, "/health", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, op, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: marshal request: %w", op, err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return domain.NewError(domain.KindUpstreamUnavailable, op, "building request", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return domain.NewError(domain.KindUpstreamUnavailable, op, "gateway unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return gatewayError(op, resp.StatusCode, raw)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return domain.NewError(domain.KindUpstreamUnavailable, op, "decoding response", err)
	}
	return nil
}

// gatewayError turns a gateway error body back into a domain error. The
// gateway's error code is the kind name.
func gatewayError(op string, status int, raw []byte) error {
	var body struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	_ = json.Unmarshal(raw, &body)
	msg := body.Error.Message
	if msg == "" {
		msg = http.StatusText(status)
	}

	kind := domain.Kind(body.Error.Code)
	switch kind {
	case domain.KindInvalidRequest, domain.KindNotFound, domain.KindUpstreamUnavailable,
		domain.KindMisconfiguredService, domain.KindChannelFailure, domain.KindMalformedPacket:
	default:
		switch status {
		case http.StatusNotFound:
			kind = domain.KindNotFound
		case http.StatusBadRequest:
			kind = domain.KindInvalidRequest
		default:
			kind = domain.KindUpstreamUnavailable
		}
	}
	return domain.NewError(kind, op, fmt.Sprintf("gateway returned %d: %s", status, msg), nil)
}
