package wsrelay

import (
	"encoding/json"

	"github.com/ayofemiade/ConvergsAI/internal/transport"
)

// Frame kinds exchanged with the relay.
const (
	KindJoined   = "joined"
	KindData     = "data"
	KindTrack    = "track"
	KindSpeakers = "speakers"
	KindMic      = "mic"
	KindError    = "error"
)

// Frame is the single JSON envelope used in both directions.
type Frame struct {
	Kind       string               `json:"kind"`
	Room       string               `json:"room,omitempty"`
	Payload    json.RawMessage      `json:"payload,omitempty"`
	Sender     string               `json:"sender,omitempty"`
	Reliable   bool                 `json:"reliable,omitempty"`
	Topic      string               `json:"topic,omitempty"`
	Track      *transport.TrackInfo `json:"track,omitempty"`
	Identities []string             `json:"identities,omitempty"`
	Message    string               `json:"message,omitempty"`
}
