package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ayofemiade/ConvergsAI/internal/domain"
	"github.com/ayofemiade/ConvergsAI/internal/hooks"
)

const (
	maxRequestBody     = 64 << 10
	healthProbeTimeout = 3 * time.Second
)

// ErrorBody is the JSON shape of every gateway error response.
type ErrorBody struct {
	Error ErrorShape `json:"error"`
}

// ErrorShape carries a machine code and a human message.
type ErrorShape struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// statusForKind maps error kinds to HTTP status codes.
func statusForKind(k domain.Kind) int {
	switch k {
	case domain.KindInvalidRequest, domain.KindMalformedPacket:
		return http.StatusBadRequest
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindUpstreamUnavailable, domain.KindChannelFailure:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeErrorCode(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorBody{Error: ErrorShape{Code: code, Message: message}})
}

func writeError(w http.ResponseWriter, err error) {
	kind := domain.KindOf(err)
	if kind == "" {
		writeErrorCode(w, http.StatusInternalServerError, "internal", "internal error")
		return
	}
	msg := err.Error()
	var de *domain.Error
	if errors.As(err, &de) && de.Message != "" {
		msg = de.Message
	}
	writeErrorCode(w, statusForKind(kind), string(kind), msg)
}

// decodeBody reads an optional JSON body. An empty body leaves v untouched.
func decodeBody(r *http.Request, v any) error {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return domain.NewError(domain.KindInvalidRequest, "decode body", "request body too large or unreadable", err)
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, v); err != nil {
		return domain.NewError(domain.KindInvalidRequest, "decode body", "invalid JSON body", err)
	}
	return nil
}

type createSessionBody struct {
	CustomPrompt      string `json:"custom_prompt"`
	CustomPromptCamel string `json:"customPrompt"`
}

type createSessionReply struct {
	Success   bool   `json:"success"`
	SessionID string `json:"session_id"`
	Fallback  bool   `json:"fallback,omitempty"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var body createSessionBody
	if err := decodeBody(r, &body); err != nil {
		writeError(w, err)
		return
	}
	prompt := body.CustomPrompt
	if prompt == "" {
		prompt = body.CustomPromptCamel
	}

	created := s.sessions.Create(r.Context(), prompt)
	result := "backend"
	if created.Fallback {
		result = "fallback"
		s.metrics.upstreamErrors.WithLabelValues("create_session").Inc()
	}
	s.metrics.sessionsCreated.WithLabelValues(result).Inc()

	if s.hooks != nil {
		s.hooks.EmitAsync(context.WithoutCancel(r.Context()), hooks.EventSessionCreated, map[string]any{
			"session_id": created.SessionID,
			"fallback":   created.Fallback,
		})
	}

	writeJSON(w, http.StatusOK, createSessionReply{
		Success:   true,
		SessionID: created.SessionID,
		Fallback:  created.Fallback,
	})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	info, err := s.sessions.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.countUpstream("get_session", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Delete(r.Context(), r.PathValue("id")); err != nil {
		s.countUpstream("delete_session", err)
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type messageBody struct {
	Text      *string `json:"text"`
	SessionID *string `json:"session_id"`
}

// normalizeMessage trims text and caps it at maxLen runes.
func normalizeMessage(text string, maxLen int) string {
	text = strings.TrimSpace(text)
	if maxLen > 0 && utf8.RuneCountInString(text) > maxLen {
		text = string([]rune(text)[:maxLen])
	}
	return text
}

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	const op = "send message"
	var body messageBody
	if err := decodeBody(r, &body); err != nil {
		writeError(w, err)
		return
	}
	if body.Text == nil {
		writeError(w, domain.NewError(domain.KindInvalidRequest, op, "text is required", nil))
		return
	}
	text := normalizeMessage(*body.Text, s.cfg.Gateway.MaxMessageLength)
	if text == "" {
		writeError(w, domain.NewError(domain.KindInvalidRequest, op, "text must not be empty", nil))
		return
	}
	if body.SessionID == nil || strings.TrimSpace(*body.SessionID) == "" {
		writeError(w, domain.NewError(domain.KindInvalidRequest, op, "session_id is required", nil))
		return
	}
	if utf8.RuneCountInString(*body.SessionID) > domain.MaxSessionIDLength {
		writeError(w, domain.NewError(domain.KindInvalidRequest, op, "session_id is too long", nil))
		return
	}

	resp, err := s.backend.SendMessage(r.Context(), domain.MessageRequest{Text: text, SessionID: *body.SessionID})
	if err != nil {
		s.countUpstream("message", err)
		switch domain.KindOf(err) {
		case domain.KindInvalidRequest, domain.KindNotFound:
		default:
			err = upstreamFailure(op, err)
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

type tokenBody struct {
	RoomName string `json:"roomName"`
	Identity string `json:"identity"`
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	var body tokenBody
	if err := decodeBody(r, &body); err != nil {
		writeError(w, err)
		return
	}
	tok, err := s.tokens.Issue(body.RoomName, body.Identity)
	if err != nil {
		if domain.KindOf(err) == domain.KindMisconfiguredService {
			s.log.Error().Err(err).Msg("token requested but room service credentials are missing")
		}
		writeError(w, err)
		return
	}
	s.metrics.tokensIssued.Inc()
	s.log.Debug().Str("room", body.RoomName).Str("identity", tok.Identity).Msg("token issued")
	writeJSON(w, http.StatusOK, tok)
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status  string        `json:"status"`
	Version string        `json:"version"`
	Backend BackendHealth `json:"backend"`
}

// BackendHealth reports the dependent backend's liveness.
type BackendHealth struct {
	Reachable bool   `json:"reachable"`
	Status    string `json:"status,omitempty"`
}

// handleHealth aggregates local liveness with the backend's. It always answers
// 200; degradation is reported in the body.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthProbeTimeout)
	defer cancel()

	resp := HealthResponse{Status: "ok", Version: s.version}
	h, err := s.backend.Health(ctx)
	if err != nil {
		s.log.Debug().Err(err).Msg("backend health probe failed")
		resp.Status = "degraded"
		resp.Backend.Status = "unreachable"
	} else {
		resp.Backend.Reachable = true
		resp.Backend.Status = h.Status
		if !h.AgentInitialized {
			resp.Status = "degraded"
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleNotFound returns a 404 for unknown routes.
func handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeErrorCode(w, http.StatusNotFound, string(domain.KindNotFound), "no route for "+r.URL.Path)
}

func (s *Server) countUpstream(op string, err error) {
	if domain.KindOf(err) != domain.KindNotFound && domain.KindOf(err) != domain.KindInvalidRequest {
		s.metrics.upstreamErrors.WithLabelValues(op).Inc()
	}
}
