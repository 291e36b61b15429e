// Package backend is an HTTP client for the AI backend service that owns
// conversation sessions.
package backend

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

const maxErrorBody = 4 << 10

// Client talks to the backend's session and message endpoints.
type Client struct {
	baseURL string
	client  *http.Client
}

// New creates a backend client. baseURL should be like "http://localhost:8000".
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// BaseURL returns the configured backend URL.
func (c *Client) BaseURL() string { return c.baseURL }

type createSessionRequest struct {
	CustomPrompt string `json:"custom_prompt,omitempty"`
}

type createSessionResponse struct {
	Success   bool   `json:"success"`
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

// CreateSession asks the backend for a new session and returns its identifier.
func (c *Client) CreateSession(ctx context.Context, customPrompt string) (string, error) {
	const op = "create session"
	var out createSessionResponse
	if err := c.do(ctx, op, http.MethodPost, "/session/new", createSessionRequest{CustomPrompt: customPrompt}, &out); err != nil {
		return "", err
	}
	if !out.Success || out.SessionID == "" {
		return "", domain.NewError(domain.KindUpstreamUnavailable, op, "backend reported failure", nil)
	}
	return out.SessionID, nil
}

// GetSession fetches session info.
func (c *Client) GetSession(ctx context.Context, id string) (*domain.SessionInfo, error) {
	var info domain.SessionInfo
	if err := c.do(ctx, "get session", http.MethodGet, "/session/"+url.PathEscape(id), nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// DeleteSession removes a session.
func (c *Client) DeleteSession(ctx context.Context, id string) error {
	return c.do(ctx, "delete session", http.MethodDelete, "/session/"+url.PathEscape(id), nil, nil)
}

// SendMessage forwards a user turn and returns the backend's reply.
func (c *Client) SendMessage(ctx context.Context, req domain.MessageRequest) (*domain.MessageResponse, error) {
	var out domain.MessageResponse
	if err := c.do(ctx, "send message", http.MethodPost, "/message", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// HealthStatus is the backend's /health body.
type HealthStatus struct {
	Status           string `json:"status"`
	Version          string `json:"version"`
	AgentInitialized bool   `json:"agent_initialized"`
}

// Health probes the backend.
func (c *Client) Health(ctx context.Context) (*HealthStatus, error) {
	var out HealthStatus
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
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return domain.NewError(domain.KindUpstreamUnavailable, op, "request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return statusError(op, resp.StatusCode, raw)
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return domain.NewError(domain.KindUpstreamUnavailable, op, "decoding response", err)
	}
	return nil
}

// statusError maps a non-2xx backend status to the error taxonomy.
func statusError(op string, status int, body []byte) error {
	msg := errorDetail(body)
	if msg == "" {
		msg = http.StatusText(status)
	}
	msg = fmt.Sprintf("backend returned %d: %s", status, msg)

	switch status {
	case http.StatusNotFound:
		return domain.NewError(domain.KindNotFound, op, msg, nil)
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return domain.NewError(domain.KindInvalidRequest, op, msg, nil)
	default:
		return domain.NewError(domain.KindUpstreamUnavailable, op, msg, nil)
	}
}

// errorDetail pulls a readable message out of a backend error body. The
// backend answers {"detail": "..."} or, for validation, {"detail": [{"msg": ...}]}.
func errorDetail(body []byte) string {
	var shape struct {
		Detail json.RawMessage `json:"detail"`
		Error  string          `json:"error"`
	}
	if err := json.Unmarshal(body, &shape); err != nil {
		return strings.TrimSpace(string(body))
	}
	var s string
	if json.Unmarshal(shape.Detail, &s) == nil && s != "" {
		return s
	}
	var items []struct {
		Msg string `json:"msg"`
	}
	if json.Unmarshal(shape.Detail, &items) == nil {
		parts := make([]string, 0, len(items))
		for _, it := range items {
			if it.Msg != "" {
				parts = append(parts, it.Msg)
			}
		}
		if len(parts) > 0 {
			return strings.Join(parts, "; ")
		}
	}
	return shape.Error
}
