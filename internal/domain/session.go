package domain

import "time"

// Stage tags reported by the backend for a conversation. The backend may
// introduce others; they are carried verbatim.
const (
	StageGreeting   = "greeting"
	StageQualifying = "qualifying"
	StageCTA        = "cta"
	StageClosed     = "closed"
)

// SessionInfo is the backend-held view of a conversation session.
type SessionInfo struct {
	SessionID             string        `json:"session_id"`
	CreatedAt             string        `json:"created_at"`
	MessageCount          int           `json:"message_count"`
	Stage                 string        `json:"stage"`
	Qualification         Qualification `json:"qualification"`
	QualificationComplete bool          `json:"qualification_complete"`
}

// CreatedAtTime parses CreatedAt. The backend emits ISO-8601 without a zone,
// which is treated as UTC.
func (s SessionInfo) CreatedAtTime() (time.Time, bool) {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999", "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s.CreatedAt); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// CreatedSession is the outcome of a session creation through the proxy.
// Fallback is set when the identifier was synthesized locally because the
// backend could not be reached.
type CreatedSession struct {
	SessionID string `json:"session_id"`
	Fallback  bool   `json:"fallback,omitempty"`
}

// Message limits enforced before text is forwarded to the backend.
const (
	DefaultMaxMessageLength = 1000
	MaxSessionIDLength      = 100
)

// MessageRequest is a user text turn forwarded to the backend.
type MessageRequest struct {
	Text      string `json:"text"`
	SessionID string `json:"session_id"`
}

// MessageResponse is the backend's reply to a MessageRequest, relayed verbatim.
type MessageResponse struct {
	Success               bool          `json:"success"`
	Response              string        `json:"response"`
	SessionID             string        `json:"session_id"`
	Stage                 string        `json:"stage,omitempty"`
	Qualification         Qualification `json:"qualification,omitempty"`
	QualificationComplete *bool         `json:"qualification_complete,omitempty"`
	MessageCount          *int          `json:"message_count,omitempty"`
	Error                 string        `json:"error,omitempty"`
}

// RoomToken is a signed credential for joining a realtime room.
type RoomToken struct {
	Token     string `json:"token"`
	ServerURL string `json:"serverUrl"`
	Identity  string `json:"identity"`
}
