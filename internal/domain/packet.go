package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Packet types carried on the data channel.
const (
	PacketMetadata   = "metadata"
	PacketChat       = "chat"
	PacketTranscript = "transcript"
	PacketText       = "text"
)

// MetadataPacket is published once when a call connects.
type MetadataPacket struct {
	Type    string `json:"type"`
	Mode    Mode   `json:"mode"`
	Persona string `json:"persona,omitempty"`
	Prompt  string `json:"prompt,omitempty"`
}

// ChatPacket carries a user text turn.
type ChatPacket struct {
	Type    string `json:"type"`
	Content string `json:"content"`
	Role    Role   `json:"role"`
}

// Intelligence is the optional telemetry sub-object of an inbound packet.
type Intelligence struct {
	Latency   *float64 `json:"latency,omitempty"`
	Sentiment *string  `json:"sentiment,omitempty"`
}

// InboundPacket is a decoded inbound data-channel packet. Any field may be
// absent; the transcript fields only apply when Type is transcript or text.
type InboundPacket struct {
	Type                  string         `json:"type"`
	Role                  Role           `json:"role"`
	Content               string         `json:"content"`
	IsFinal               *bool          `json:"is_final,omitempty"`
	Qualification         map[string]any `json:"qualification,omitempty"`
	QualificationComplete *bool          `json:"qualification_complete,omitempty"`
	Intelligence          *Intelligence  `json:"intelligence,omitempty"`
}

// IsTranscript reports whether the packet carries a transcript fragment.
func (p *InboundPacket) IsTranscript() bool {
	return p.Type == PacketTranscript || p.Type == PacketText
}

// Final reports whether the fragment is final. A missing flag means final.
func (p *InboundPacket) Final() bool {
	return p.IsFinal == nil || *p.IsFinal
}

// DecodePacket parses an inbound payload. The payload must be a JSON object
// carrying at least one known field; anything else is a MalformedPacket
// error. Individual fields of the wrong type are dropped so the rest of the
// packet still applies.
func DecodePacket(payload []byte) (*InboundPacket, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, NewError(KindMalformedPacket, "decode packet", "", err)
	}

	p := InboundPacket{
		Type:                  rawString(raw["type"]),
		Role:                  Role(rawString(raw["role"])),
		Content:               rawString(raw["content"]),
		IsFinal:               rawBool(raw["is_final"]),
		QualificationComplete: rawBool(raw["qualification_complete"]),
		Intelligence:          rawIntelligence(raw["intelligence"]),
	}
	if q, ok := raw["qualification"]; ok {
		var m map[string]any
		if json.Unmarshal(q, &m) == nil {
			p.Qualification = m
		}
	}

	if p.Type == "" && p.Qualification == nil && p.QualificationComplete == nil && p.Intelligence == nil {
		return nil, NewError(KindMalformedPacket, "decode packet", fmt.Sprintf("untagged packet of %d bytes", len(payload)), nil)
	}
	return &p, nil
}

func rawString(r json.RawMessage) string {
	var s string
	if r == nil || json.Unmarshal(r, &s) != nil {
		return ""
	}
	return s
}

// rawBool accepts a JSON bool or its string form.
func rawBool(r json.RawMessage) *bool {
	if r == nil {
		return nil
	}
	var b *bool
	if json.Unmarshal(r, &b) == nil {
		return b
	}
	if v, err := strconv.ParseBool(rawString(r)); err == nil {
		return &v
	}
	return nil
}

// rawIntelligence reads the telemetry object. Latency may be a number or a
// string such as "120" or "120ms".
func rawIntelligence(r json.RawMessage) *Intelligence {
	var fields map[string]json.RawMessage
	if r == nil || json.Unmarshal(r, &fields) != nil || fields == nil {
		return nil
	}

	var in Intelligence
	if l, ok := fields["latency"]; ok {
		var f float64
		if json.Unmarshal(l, &f) == nil {
			in.Latency = &f
		} else if s := strings.TrimSuffix(strings.TrimSpace(rawString(l)), "ms"); s != "" {
			if v, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
				in.Latency = &v
			}
		}
	}
	if s, ok := fields["sentiment"]; ok {
		var v string
		if json.Unmarshal(s, &v) == nil {
			in.Sentiment = &v
		}
	}
	return &in
}
