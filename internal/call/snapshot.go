package call

import (
	"time"

	"github.com/ayofemiade/ConvergsAI/internal/domain"
)

// Snapshot is a point-in-time copy of a call's derived state.
type Snapshot struct {
	State                 domain.CallState         `json:"state"`
	SessionID             string                   `json:"session_id,omitempty"`
	Fallback              bool                     `json:"fallback"`
	Mode                  domain.Mode              `json:"mode"`
	Transcript            []domain.TranscriptEntry `json:"transcript"`
	Live                  *domain.LiveSlot         `json:"live,omitempty"`
	Qualification         domain.Qualification     `json:"qualification"`
	QualificationComplete bool                     `json:"qualification_complete"`
	Telemetry             domain.Telemetry         `json:"telemetry"`
	ActiveSpeakers        []string                 `json:"active_speakers,omitempty"`
	RemoteTracks          int                      `json:"remote_tracks"`
	StartedAt             time.Time                `json:"started_at,omitzero"`
	EndedAt               time.Time                `json:"ended_at,omitzero"`
	EndReason             domain.EndReason         `json:"end_reason,omitempty"`
	LastError             string                   `json:"last_error,omitempty"`
}

// Record converts a snapshot of an ended call into its archived form.
func (s Snapshot) Record() domain.CallRecord {
	return domain.CallRecord{
		SessionID:             s.SessionID,
		Fallback:              s.Fallback,
		Mode:                  s.Mode,
		StartedAt:             s.StartedAt,
		EndedAt:               s.EndedAt,
		EndReason:             s.EndReason,
		Transcript:            s.Transcript,
		Qualification:         s.Qualification,
		QualificationComplete: s.QualificationComplete,
		Telemetry:             s.Telemetry,
	}
}

func cloneTelemetry(t domain.Telemetry) domain.Telemetry {
	var out domain.Telemetry
	if t.LatencyMs != nil {
		v := *t.LatencyMs
		out.LatencyMs = &v
	}
	if t.Sentiment != nil {
		v := *t.Sentiment
		out.Sentiment = &v
	}
	return out
}
