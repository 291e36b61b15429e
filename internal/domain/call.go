package domain

import "time"

// CallState is the lifecycle state of a Call.
type CallState string

const (
	CallIdle      CallState = "idle"
	CallRinging   CallState = "ringing"
	CallConnected CallState = "connected"
	CallEnded     CallState = "ended"
)

// Active reports whether the call holds (or is acquiring) a transport channel.
func (s CallState) Active() bool {
	return s == CallRinging || s == CallConnected
}

// EndReason records why a call left the connected state.
type EndReason string

const (
	EndUser   EndReason = "user"
	EndRemote EndReason = "remote"
	EndClosed EndReason = "closed"
)

// CallRecord is the archived form of a finished call.
type CallRecord struct {
	SessionID             string            `json:"session_id"`
	Fallback              bool              `json:"fallback"`
	Mode                  Mode              `json:"mode"`
	StartedAt             time.Time         `json:"started_at"`
	EndedAt               time.Time         `json:"ended_at"`
	EndReason             EndReason         `json:"end_reason"`
	Transcript            []TranscriptEntry `json:"transcript"`
	Qualification         Qualification     `json:"qualification"`
	QualificationComplete bool              `json:"qualification_complete"`
	Telemetry             Telemetry         `json:"telemetry"`
}

// CallSummary is a listing row for an archived call.
type CallSummary struct {
	SessionID             string    `json:"session_id"`
	Mode                  Mode      `json:"mode"`
	Fallback              bool      `json:"fallback"`
	StartedAt             time.Time `json:"started_at"`
	EndedAt               time.Time `json:"ended_at"`
	Entries               int       `json:"entries"`
	QualificationComplete bool      `json:"qualification_complete"`
}
