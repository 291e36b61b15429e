package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayofemiade/ConvergsAI/internal/backend"
	"github.com/ayofemiade/ConvergsAI/internal/config"
	"github.com/ayofemiade/ConvergsAI/internal/domain"
	"github.com/ayofemiade/ConvergsAI/internal/hooks"
	"github.com/ayofemiade/ConvergsAI/internal/logging"
)

const testSecret = "devsecret-devsecret-devsecret-00"

// fakeBackend is an in-memory stand-in for the AI backend.
type fakeBackend struct {
	mu        sync.Mutex
	down      bool
	notReady  bool
	sessions  map[string]*domain.SessionInfo
	prompts   []string
	messages  []domain.MessageRequest
	replyErr  error
	createSeq int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{sessions: map[string]*domain.SessionInfo{}}
}

func (b *fakeBackend) unavailable(op string) error {
	return domain.NewError(domain.KindUpstreamUnavailable, op, "request failed", errors.New("connection refused"))
}

func (b *fakeBackend) CreateSession(_ context.Context, prompt string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.prompts = append(b.prompts, prompt)
	if b.down {
		return "", b.unavailable("create session")
	}
	b.createSeq++
	id := "backend-" + string(rune('0'+b.createSeq))
	b.sessions[id] = &domain.SessionInfo{SessionID: id, Stage: domain.StageGreeting, Qualification: domain.Qualification{}}
	return id, nil
}

func (b *fakeBackend) GetSession(_ context.Context, id string) (*domain.SessionInfo, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.down {
		return nil, b.unavailable("get session")
	}
	info, ok := b.sessions[id]
	if !ok {
		return nil, domain.NewError(domain.KindNotFound, "get session", "backend returned 404: Session not found", nil)
	}
	return info, nil
}

func (b *fakeBackend) DeleteSession(_ context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.down {
		return b.unavailable("delete session")
	}
	if _, ok := b.sessions[id]; !ok {
		return domain.NewError(domain.KindNotFound, "delete session", "backend returned 404: Session not found", nil)
	}
	delete(b.sessions, id)
	return nil
}

func (b *fakeBackend) SendMessage(_ context.Context, req domain.MessageRequest) (*domain.MessageResponse, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.messages = append(b.messages, req)
	if b.replyErr != nil {
		return nil, b.replyErr
	}
	count := len(b.messages)
	return &domain.MessageResponse{
		Success:      true,
		Response:     "Thanks! What's your goal?",
		SessionID:    req.SessionID,
		Stage:        domain.StageQualifying,
		MessageCount: &count,
	}, nil
}

func (b *fakeBackend) Health(context.Context) (*backend.HealthStatus, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.down {
		return nil, b.unavailable("health")
	}
	return &backend.HealthStatus{Status: "healthy", Version: "1.0.0", AgentInitialized: !b.notReady}, nil
}

func (b *fakeBackend) lastMessage() domain.MessageRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.messages[len(b.messages)-1]
}

func testConfig() config.Config {
	cfg := config.Defaults()
	cfg.LiveKit.APIKey = "devkey"
	cfg.LiveKit.APISecret = testSecret
	cfg.LiveKit.URL = "wss://lk.example"
	cfg.Gateway.MaxMessageLength = 20
	cfg.Gateway.RateLimit.RPS = 0
	return cfg
}

func testServer(t *testing.T, b *fakeBackend, mutate func(*config.Config), opts ...ServerOption) (*Server, *httptest.Server) {
	t.Helper()
	cfg := testConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	log := logging.New(nil, "silent")
	srv := New(cfg, log, append([]ServerOption{WithBackend(b)}, opts...)...)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return srv, ts
}

func doJSON(t *testing.T, method, url, body string) (*http.Response, []byte) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, url, r)
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, raw
}

func errorCode(t *testing.T, raw []byte) string {
	t.Helper()
	var body ErrorBody
	require.NoError(t, json.Unmarshal(raw, &body))
	return body.Error.Code
}

// --- session proxy ---

func TestCreateSession_Backend(t *testing.T) {
	b := newFakeBackend()
	_, ts := testServer(t, b, nil)

	resp, raw := doJSON(t, "POST", ts.URL+"/session/new", `{"custom_prompt":"be brief"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, true, out["success"])
	assert.Equal(t, "backend-1", out["session_id"])
	assert.NotContains(t, out, "fallback")
	assert.Equal(t, []string{"be brief"}, b.prompts)
}

func TestCreateSession_CamelCasePromptAndEmptyBody(t *testing.T) {
	b := newFakeBackend()
	_, ts := testServer(t, b, nil)

	resp, _ := doJSON(t, "POST", ts.URL+"/session/new", `{"customPrompt":"camel"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = doJSON(t, "POST", ts.URL+"/session/new", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{"camel", ""}, b.prompts)
}

func TestCreateSession_FallbackOnOutage(t *testing.T) {
	b := newFakeBackend()
	b.down = true
	_, ts := testServer(t, b, nil)

	seen := map[string]bool{}
	for i := 0; i < 3; i++ {
		resp, raw := doJSON(t, "POST", ts.URL+"/session/new", `{}`)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var out createSessionReply
		require.NoError(t, json.Unmarshal(raw, &out))
		assert.True(t, out.Success)
		assert.True(t, out.Fallback)
		_, err := uuid.Parse(out.SessionID)
		assert.NoError(t, err, "fallback id should be a uuid")
		seen[out.SessionID] = true
	}
	assert.Len(t, seen, 3)
}

func TestCreateSession_InvalidJSON(t *testing.T) {
	_, ts := testServer(t, newFakeBackend(), nil)
	resp, raw := doJSON(t, "POST", ts.URL+"/session/new", `{"custom_prompt":`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid_request", errorCode(t, raw))
}

func TestCreateSession_EmitsHook(t *testing.T) {
	hm := hooks.NewManager(logging.New(nil, "silent"))
	got := make(chan hooks.Payload, 1)
	hm.On(hooks.EventSessionCreated, "test", func(_ context.Context, p hooks.Payload) error {
		got <- p
		return nil
	})
	b := newFakeBackend()
	b.down = true
	_, ts := testServer(t, b, nil, WithHooks(hm))

	resp, _ := doJSON(t, "POST", ts.URL+"/session/new", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	hm.Wait()

	p := <-got
	assert.Equal(t, true, p.Data["fallback"])
	assert.NotEmpty(t, p.Data["session_id"])
}

func TestGetSession(t *testing.T) {
	b := newFakeBackend()
	_, ts := testServer(t, b, nil)
	doJSON(t, "POST", ts.URL+"/session/new", "")

	resp, raw := doJSON(t, "GET", ts.URL+"/session/backend-1", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var info domain.SessionInfo
	require.NoError(t, json.Unmarshal(raw, &info))
	assert.Equal(t, "backend-1", info.SessionID)
	assert.Equal(t, domain.StageGreeting, info.Stage)
}

func TestGetAndDelete_NotFound(t *testing.T) {
	_, ts := testServer(t, newFakeBackend(), nil)

	resp, raw := doJSON(t, "GET", ts.URL+"/session/missing", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "not_found", errorCode(t, raw))

	resp, raw = doJSON(t, "DELETE", ts.URL+"/session/missing", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "not_found", errorCode(t, raw))
}

func TestGetAndDelete_UpstreamUnavailable(t *testing.T) {
	b := newFakeBackend()
	b.down = true
	_, ts := testServer(t, b, nil)

	resp, raw := doJSON(t, "GET", ts.URL+"/session/abc", "")
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Equal(t, "upstream_unavailable", errorCode(t, raw))

	resp, _ = doJSON(t, "DELETE", ts.URL+"/session/abc", "")
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
}

func TestDeleteSession(t *testing.T) {
	b := newFakeBackend()
	_, ts := testServer(t, b, nil)
	doJSON(t, "POST", ts.URL+"/session/new", "")

	resp, raw := doJSON(t, "DELETE", ts.URL+"/session/backend-1", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Empty(t, raw)

	resp, _ = doJSON(t, "GET", ts.URL+"/session/backend-1", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

// --- message forwarding ---

func TestMessage_TrimsAndCaps(t *testing.T) {
	b := newFakeBackend()
	_, ts := testServer(t, b, nil)

	resp, raw := doJSON(t, "POST", ts.URL+"/message", `{"text":"  hello world  ","session_id":"s1"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "hello world", b.lastMessage().Text)
	assert.Equal(t, "s1", b.lastMessage().SessionID)

	var out domain.MessageResponse
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.True(t, out.Success)
	assert.Equal(t, domain.StageQualifying, out.Stage)

	resp, _ = doJSON(t, "POST", ts.URL+"/message", `{"text":"  `+strings.Repeat("é", 30)+`  ","session_id":"s1"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, strings.Repeat("é", 20), b.lastMessage().Text)
}

func TestMessage_Validation(t *testing.T) {
	b := newFakeBackend()
	_, ts := testServer(t, b, nil)

	cases := map[string]string{
		"empty text":        `{"text":"","session_id":"s1"}`,
		"blank text":        `{"text":"   ","session_id":"s1"}`,
		"missing text":      `{"session_id":"s1"}`,
		"missing session":   `{"text":"hi"}`,
		"blank session":     `{"text":"hi","session_id":"  "}`,
		"long session":      `{"text":"hi","session_id":"` + strings.Repeat("x", domain.MaxSessionIDLength+1) + `"}`,
		"text not a string": `{"text":5,"session_id":"s1"}`,
		"bad json":          `{"text":`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			resp, raw := doJSON(t, "POST", ts.URL+"/message", body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Equal(t, "invalid_request", errorCode(t, raw))
		})
	}
	assert.Empty(t, b.messages)
}

func TestMessage_BackendErrors(t *testing.T) {
	b := newFakeBackend()
	_, ts := testServer(t, b, nil)

	b.replyErr = domain.NewError(domain.KindInvalidRequest, "send message", "backend returned 422: text too long", nil)
	resp, _ := doJSON(t, "POST", ts.URL+"/message", `{"text":"hi","session_id":"s1"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	b.replyErr = errors.New("socket hang up")
	resp, raw := doJSON(t, "POST", ts.URL+"/message", `{"text":"hi","session_id":"s1"}`)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Equal(t, "upstream_unavailable", errorCode(t, raw))
}

// --- token issuance ---

func TestToken_Issue(t *testing.T) {
	_, ts := testServer(t, newFakeBackend(), nil)

	identities := map[string]bool{}
	for i := 0; i < 2; i++ {
		resp, raw := doJSON(t, "POST", ts.URL+"/livekit/token", `{"roomName":"room-42"}`)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var out IssuedToken
		require.NoError(t, json.Unmarshal(raw, &out))
		assert.Equal(t, "wss://lk.example", out.ServerURL)

		claims, err := ParseToken(out.Token, testSecret)
		require.NoError(t, err)
		require.NotNil(t, claims.Video)
		assert.Equal(t, "room-42", claims.Video.Room)
		assert.NotEmpty(t, claims.Subject)
		assert.Equal(t, out.Identity, claims.Subject)
		identities[claims.Subject] = true
	}
	assert.Len(t, identities, 2)
}

func TestToken_MissingRoom(t *testing.T) {
	_, ts := testServer(t, newFakeBackend(), nil)
	resp, raw := doJSON(t, "POST", ts.URL+"/livekit/token", `{"identity":"bob"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid_request", errorCode(t, raw))
}

func TestToken_Misconfigured(t *testing.T) {
	_, ts := testServer(t, newFakeBackend(), func(cfg *config.Config) {
		cfg.LiveKit.APIKey = ""
		cfg.LiveKit.APISecret = ""
	})
	resp, raw := doJSON(t, "POST", ts.URL+"/livekit/token", `{"roomName":"room-42"}`)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "misconfigured_service", errorCode(t, raw))
}

func TestToken_RateLimited(t *testing.T) {
	_, ts := testServer(t, newFakeBackend(), func(cfg *config.Config) {
		cfg.Gateway.RateLimit.RPS = 0.001
		cfg.Gateway.RateLimit.Burst = 2
	})

	codes := []int{}
	for i := 0; i < 3; i++ {
		resp, _ := doJSON(t, "POST", ts.URL+"/livekit/token", `{"roomName":"r"}`)
		codes = append(codes, resp.StatusCode)
	}
	assert.Equal(t, []int{200, 200, 429}, codes)

	// /message is not limited
	resp, _ := doJSON(t, "POST", ts.URL+"/message", `{"text":"hi","session_id":"s1"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

// --- health, metrics, routing ---

func TestHealth(t *testing.T) {
	tests := []struct {
		name      string
		down      bool
		notReady  bool
		status    string
		reachable bool
	}{
		{"ok", false, false, "ok", true},
		{"agent not initialized", false, true, "degraded", true},
		{"backend down", true, false, "degraded", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newFakeBackend()
			b.down, b.notReady = tt.down, tt.notReady
			_, ts := testServer(t, b, nil)

			resp, raw := doJSON(t, "GET", ts.URL+"/health", "")
			require.Equal(t, http.StatusOK, resp.StatusCode)
			var h HealthResponse
			require.NoError(t, json.Unmarshal(raw, &h))
			assert.Equal(t, tt.status, h.Status)
			assert.Equal(t, tt.reachable, h.Backend.Reachable)
			assert.NotEmpty(t, h.Version)
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	b := newFakeBackend()
	_, ts := testServer(t, b, nil)

	doJSON(t, "POST", ts.URL+"/session/new", "")
	b.mu.Lock()
	b.down = true
	b.mu.Unlock()
	doJSON(t, "POST", ts.URL+"/session/new", "")
	doJSON(t, "GET", ts.URL+"/session/x", "")
	doJSON(t, "POST", ts.URL+"/livekit/token", `{"roomName":"r"}`)

	resp, raw := doJSON(t, "GET", ts.URL+"/metrics", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := string(raw)
	assert.Contains(t, body, `convergs_sessions_created_total{result="backend"} 1`)
	assert.Contains(t, body, `convergs_sessions_created_total{result="fallback"} 1`)
	assert.Contains(t, body, `convergs_upstream_errors_total{op="create_session"} 1`)
	assert.Contains(t, body, `convergs_upstream_errors_total{op="get_session"} 1`)
	assert.Contains(t, body, `convergs_tokens_issued_total 1`)
}

func TestNotFoundEndpoint(t *testing.T) {
	_, ts := testServer(t, newFakeBackend(), nil)

	resp, raw := doJSON(t, "GET", ts.URL+"/nonexistent", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "not_found", errorCode(t, raw))
}

func TestRequestBodyTooLarge(t *testing.T) {
	_, ts := testServer(t, newFakeBackend(), nil)
	big := `{"roomName":"` + strings.Repeat("r", maxRequestBody) + `"}`
	resp, raw := doJSON(t, "POST", ts.URL+"/livekit/token", big)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid_request", errorCode(t, raw))
}

func TestResolveBindAddr(t *testing.T) {
	tests := []struct {
		cfg  config.GatewayConfig
		want string
	}{
		{config.GatewayConfig{Port: 3001, Bind: "loopback"}, "127.0.0.1:3001"},
		{config.GatewayConfig{Port: 3001, Bind: "lan"}, "0.0.0.0:3001"},
		{config.GatewayConfig{Port: 3001, Bind: "auto"}, "0.0.0.0:3001"},
		{config.GatewayConfig{Port: 8080, Bind: "custom", CustomBindHost: "10.1.2.3"}, "10.1.2.3:8080"},
		{config.GatewayConfig{Port: 8080, Bind: ""}, "127.0.0.1:8080"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, resolveBindAddr(tt.cfg))
	}
}

func TestServer_StartAndShutdown(t *testing.T) {
	hm := hooks.NewManager(logging.New(nil, "silent"))
	var mu sync.Mutex
	var events []string
	for _, ev := range []string{hooks.EventGatewayStart, hooks.EventGatewayStop} {
		hm.On(ev, "test", func(_ context.Context, p hooks.Payload) error {
			mu.Lock()
			defer mu.Unlock()
			events = append(events, p.Event)
			return nil
		})
	}

	cfg := testConfig()
	cfg.Gateway.Port = 0
	srv := New(cfg, logging.New(nil, "silent"), WithBackend(newFakeBackend()), WithHooks(hm))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Start(ctx) }()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(events) == 1
	}, 2*time.Second, 10*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{hooks.EventGatewayStart, hooks.EventGatewayStop}, events)
}
