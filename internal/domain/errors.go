package domain

import (
	"errors"
	"fmt"
)

// Kind classifies an Error for callers and for HTTP status mapping.
type Kind string

const (
	KindInvalidRequest       Kind = "invalid_request"
	KindNotFound             Kind = "not_found"
	KindUpstreamUnavailable  Kind = "upstream_unavailable"
	KindMisconfiguredService Kind = "misconfigured_service"
	KindChannelFailure       Kind = "channel_failure"
	KindMalformedPacket      Kind = "malformed_packet"
)

// Error is the typed failure returned across package boundaries.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, msg, e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Op, msg)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error with the same Kind, so kind sentinels work with errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Op == "" && t.Message == "" && t.Err == nil && t.Kind == e.Kind
}

// Kind sentinels for errors.Is matching.
var (
	ErrInvalidRequest       = &Error{Kind: KindInvalidRequest}
	ErrNotFound             = &Error{Kind: KindNotFound}
	ErrUpstreamUnavailable  = &Error{Kind: KindUpstreamUnavailable}
	ErrMisconfiguredService = &Error{Kind: KindMisconfiguredService}
	ErrChannelFailure       = &Error{Kind: KindChannelFailure}
	ErrMalformedPacket      = &Error{Kind: KindMalformedPacket}
)

// Call state errors.
var (
	ErrAlreadyActive     = errors.New("call already active")
	ErrNotConnected      = errors.New("call not connected")
	ErrInvalidTransition = errors.New("invalid call state transition")
	ErrCallClosed        = errors.New("call closed")
)

// NewError builds an *Error.
func NewError(kind Kind, op, message string, err error) *Error {
	return &Error{Kind: kind, Op: op, Message: message, Err: err}
}

// KindOf returns the Kind of the first *Error in err's chain, or "" when there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
