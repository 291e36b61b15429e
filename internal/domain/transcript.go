package domain

import "time"

// Role identifies who produced a transcript fragment.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// TranscriptEntry is a finalized transcript fragment. Entries are append-only.
type TranscriptEntry struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// LiveSlot holds the single in-flight interim fragment of a call.
type LiveSlot struct {
	Role     Role      `json:"role"`
	Text     string    `json:"text"`
	Deadline time.Time `json:"deadline"`
}

// Telemetry is the coarse per-call signal pushed by the backend.
type Telemetry struct {
	LatencyMs *float64 `json:"latency_ms,omitempty"`
	Sentiment *string  `json:"sentiment,omitempty"`
}
