package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Error tests ---

func TestErrorIsMatchesKind(t *testing.T) {
	err := NewError(KindNotFound, "get session", "session abc not found", nil)
	wrapped := fmt.Errorf("lookup: %w", err)

	assert.True(t, errors.Is(wrapped, ErrNotFound))
	assert.False(t, errors.Is(wrapped, ErrUpstreamUnavailable))
	assert.Equal(t, KindNotFound, KindOf(wrapped))
	assert.Equal(t, Kind(""), KindOf(errors.New("plain")))
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewError(KindUpstreamUnavailable, "delete session", "", cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "delete session: upstream_unavailable: connection refused", err.Error())
}

func TestErrorMessageForms(t *testing.T) {
	tests := []struct {
		err  *Error
		want string
	}{
		{&Error{Kind: KindInvalidRequest}, "invalid_request"},
		{&Error{Kind: KindInvalidRequest, Message: "roomName is required"}, "roomName is required"},
		{&Error{Kind: KindInvalidRequest, Op: "issue token", Message: "roomName is required"}, "issue token: roomName is required"},
		{&Error{Kind: KindChannelFailure, Err: errors.New("eof")}, "channel_failure: eof"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

// --- CallState tests ---

func TestCallStateActive(t *testing.T) {
	assert.False(t, CallIdle.Active())
	assert.True(t, CallRinging.Active())
	assert.True(t, CallConnected.Active())
	assert.False(t, CallEnded.Active())
}

// --- Mode tests ---

func TestModeKeys(t *testing.T) {
	assert.True(t, ModeSales.Valid())
	assert.True(t, ModeSupport.Valid())
	assert.False(t, Mode("retail").Valid())

	assert.True(t, ModeSales.AllowsKey("budget_readiness"))
	assert.False(t, ModeSales.AllowsKey("severity"))
	assert.True(t, ModeSupport.AllowsKey("severity"))

	keys := ModeSales.QualificationKeys()
	keys[0] = "mutated"
	assert.Equal(t, "business_type", ModeSales.QualificationKeys()[0])
}

func TestQualificationValue(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
		ok   bool
	}{
		{"nil", nil, "", false},
		{"empty", "", "", false},
		{"whitespace", "   ", "", false},
		{"string", " saas ", "saas", true},
		{"bool", true, "true", true},
		{"number", float64(42), "42", true},
		{"list", []any{"slow onboarding", "", "churn"}, "slow onboarding, churn", true},
		{"empty list", []any{}, "", false},
		{"object", map[string]any{"a": "b"}, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := QualificationValue(tt.in)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestQualificationClone(t *testing.T) {
	q := Qualification{"goal": "grow"}
	c := q.Clone()
	c["goal"] = "shrink"
	assert.Equal(t, "grow", q["goal"])
}

// --- Packet tests ---

func TestDecodePacket(t *testing.T) {
	p, err := DecodePacket([]byte(`{"type":"transcript","role":"user","content":"hi","is_final":false}`))
	require.NoError(t, err)
	assert.True(t, p.IsTranscript())
	assert.False(t, p.Final())
	assert.Equal(t, RoleUser, p.Role)

	p, err = DecodePacket([]byte(`{"type":"text","content":"hello"}`))
	require.NoError(t, err)
	assert.True(t, p.Final(), "missing is_final means final")

	p, err = DecodePacket([]byte(`{"qualification":{"goal":"grow"},"qualification_complete":true}`))
	require.NoError(t, err)
	assert.False(t, p.IsTranscript())
	require.NotNil(t, p.QualificationComplete)
	assert.True(t, *p.QualificationComplete)
}

func TestDecodePacketMalformed(t *testing.T) {
	for _, raw := range []string{``, `not json`, `[1,2]`, `{}`, `null`, `{"type":7}`} {
		t.Run(raw, func(t *testing.T) {
			_, err := DecodePacket([]byte(raw))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformedPacket)
		})
	}
}

func TestDecodePacketLenientFields(t *testing.T) {
	p, err := DecodePacket([]byte(`{"type":"transcript","role":"assistant","content":"Sure thing",` +
		`"is_final":"yes","qualification_complete":1,"intelligence":{"latency":"120ms","sentiment":3}}`))
	require.NoError(t, err)
	assert.Equal(t, "Sure thing", p.Content)
	assert.True(t, p.Final(), "unparseable is_final falls back to final")
	assert.Nil(t, p.QualificationComplete)
	require.NotNil(t, p.Intelligence)
	require.NotNil(t, p.Intelligence.Latency)
	assert.Equal(t, 120.0, *p.Intelligence.Latency)
	assert.Nil(t, p.Intelligence.Sentiment)

	p, err = DecodePacket([]byte(`{"type":"transcript","content":"hi","is_final":"false","qualification":"n/a","intelligence":"fast"}`))
	require.NoError(t, err)
	assert.False(t, p.Final())
	assert.Nil(t, p.Qualification)
	assert.Nil(t, p.Intelligence)

	p, err = DecodePacket([]byte(`{"intelligence":{"latency":88.5}}`))
	require.NoError(t, err)
	assert.Equal(t, 88.5, *p.Intelligence.Latency)
}

// --- SessionInfo tests ---

func TestSessionInfoCreatedAt(t *testing.T) {
	s := SessionInfo{CreatedAt: "2024-05-01T10:20:30.123456"}
	ts, ok := s.CreatedAtTime()
	require.True(t, ok)
	assert.Equal(t, 2024, ts.Year())
	assert.Equal(t, 30, ts.Second())

	_, ok = SessionInfo{CreatedAt: "yesterday"}.CreatedAtTime()
	assert.False(t, ok)
}
