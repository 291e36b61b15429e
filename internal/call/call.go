// Package call runs one voice call: it acquires a session and a room token,
// owns the transport channel while the call is live, and folds inbound data
// packets into transcript, qualification and telemetry state.
package call

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ayofemiade/ConvergsAI/internal/domain"
	"github.com/ayofemiade/ConvergsAI/internal/hooks"
	"github.com/ayofemiade/ConvergsAI/internal/logging"
	"github.com/ayofemiade/ConvergsAI/internal/transport"
)

// SessionSource creates backend sessions.
type SessionSource interface {
	CreateSession(ctx context.Context, customPrompt string) (domain.CreatedSession, error)
}

// TokenSource issues room tokens.
type TokenSource interface {
	IssueToken(ctx context.Context, room, identity string) (domain.RoomToken, error)
}

// Option configures a Call.
type Option func(*Call)

// WithMode sets the qualification mode. Invalid modes are ignored.
func WithMode(m domain.Mode) Option {
	return func(c *Call) {
		if m.Valid() {
			c.mode = m
		}
	}
}

// WithPersona sets the persona announced in the metadata packet.
func WithPersona(p string) Option { return func(c *Call) { c.persona = p } }

// WithPrompt sets the custom prompt used for session creation and metadata.
func WithPrompt(p string) Option { return func(c *Call) { c.prompt = p } }

// WithIdentity pins the participant identity requested for the room token.
func WithIdentity(id string) Option { return func(c *Call) { c.identity = id } }

// WithInterimWindow overrides the live slot inactivity window.
func WithInterimWindow(d time.Duration) Option { return func(c *Call) { c.window = d } }

// WithHooks emits call lifecycle events to hm.
func WithHooks(hm *hooks.Manager) Option { return func(c *Call) { c.hooks = hm } }

// WithObserver registers an observer.
func WithObserver(o Observer) Option { return func(c *Call) { c.observer = o } }

// Call is the per-call state machine: idle, ringing, connected, ended.
// All exported methods are safe for concurrent use. Network calls are never
// made while holding the lock; a generation counter discards results that
// arrive after the call moved on.
type Call struct {
	log        *logging.Logger
	sessions   SessionSource
	tokens     TokenSource
	newChannel transport.Factory
	hooks      *hooks.Manager
	observer   Observer

	mode     domain.Mode
	persona  string
	prompt   string
	identity string
	window   time.Duration
	now      func() time.Time

	recon *Reconciler

	mu           sync.Mutex
	state        domain.CallState
	gen          uint64
	closed       bool
	sessionID    string
	fallback     bool
	channel      transport.Channel
	unsubscribe  func()
	qual         *QualificationSync
	telemetry    domain.Telemetry
	speakers     []string
	remoteTracks int
	startedAt    time.Time
	endedAt      time.Time
	endReason    domain.EndReason
	lastErr      error
}

// New creates an idle call.
func New(sessions SessionSource, tokens TokenSource, channels transport.Factory, log *logging.Logger, opts ...Option) *Call {
	c := &Call{
		log:        log.Sub("call"),
		sessions:   sessions,
		tokens:     tokens,
		newChannel: channels,
		mode:       domain.ModeSales,
		window:     DefaultInterimWindow,
		now:        time.Now,
		state:      domain.CallIdle,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.recon = NewReconciler(c.window, c.log, func() { c.notifyLive(nil) })
	c.qual = NewQualificationSync(c.mode, c.log)
	return c
}

// State returns the current state.
func (c *Call) State() domain.CallState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// StartCall moves idle to ringing, creates a session, fetches a token for a
// room named after the session and connects the channel. On success the
// call is connected. Any failure returns the call to idle with no channel
// left open.
func (c *Call) StartCall(ctx context.Context) error {
	const op = "start call"

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return domain.ErrCallClosed
	}
	if c.state != domain.CallIdle {
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("%s: %w (state %s)", op, domain.ErrAlreadyActive, state)
	}
	c.gen++
	gen := c.gen
	c.state = domain.CallRinging
	c.startedAt = c.now()
	c.lastErr = nil
	c.mu.Unlock()

	c.notifyState(domain.CallIdle, domain.CallRinging)
	c.emit(ctx, hooks.EventCallStarted, map[string]any{"mode": string(c.mode)})

	created, err := c.sessions.CreateSession(ctx, c.prompt)
	if err != nil {
		return c.fail(gen, "create session", err)
	}
	if created.Fallback {
		c.log.Warn().Str("session_id", created.SessionID).Msg("backend unavailable, using fallback session")
	}
	if !c.setSession(gen, created) {
		return c.aborted(op)
	}

	tok, err := c.tokens.IssueToken(ctx, created.SessionID, c.identity)
	if err != nil {
		return c.fail(gen, "issue token", err)
	}

	ch := c.newChannel()
	unsub := ch.Subscribe(&channelHandler{c: c, gen: gen})
	if !c.attach(gen, ch, unsub) {
		unsub()
		_ = ch.Disconnect()
		return c.aborted(op)
	}

	if err := ch.Connect(ctx, tok.ServerURL, tok.Token); err != nil {
		return c.fail(gen, "connect channel", err)
	}

	c.mu.Lock()
	if c.gen != gen || c.state != domain.CallRinging {
		c.mu.Unlock()
		return c.aborted(op)
	}
	c.state = domain.CallConnected
	c.mu.Unlock()

	c.log.Info().Str("session_id", created.SessionID).Bool("fallback", created.Fallback).Msg("call connected")
	c.notifyState(domain.CallRinging, domain.CallConnected)
	c.emit(ctx, hooks.EventCallConnected, map[string]any{
		"session_id": created.SessionID,
		"fallback":   created.Fallback,
	})

	c.onConnected(ctx, ch)
	return nil
}

// onConnected enables the microphone and announces the call. Both are best
// effort.
func (c *Call) onConnected(ctx context.Context, ch transport.Channel) {
	if err := ch.EnableMicrophone(ctx); err != nil {
		c.log.Warn().Err(err).Msg("enable microphone failed")
	}
	meta, err := json.Marshal(domain.MetadataPacket{
		Type:    domain.PacketMetadata,
		Mode:    c.mode,
		Persona: c.persona,
		Prompt:  c.prompt,
	})
	if err != nil {
		c.log.Warn().Err(err).Msg("encode metadata failed")
		return
	}
	if err := ch.Publish(ctx, meta, transport.PublishOptions{Reliable: true}); err != nil {
		c.log.Warn().Err(err).Msg("publish metadata failed")
	}
}

func (c *Call) setSession(gen uint64, s domain.CreatedSession) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen || c.state != domain.CallRinging {
		return false
	}
	c.sessionID = s.SessionID
	c.fallback = s.Fallback
	return true
}

func (c *Call) attach(gen uint64, ch transport.Channel, unsub func()) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen || c.state != domain.CallRinging {
		return false
	}
	c.channel = ch
	c.unsubscribe = unsub
	return true
}

func (c *Call) aborted(op string) error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return domain.ErrCallClosed
	}
	return domain.NewError(domain.KindChannelFailure, op, "call aborted while ringing", nil)
}

// fail returns a ringing call to idle and releases anything it acquired. It
// is a no-op for a generation that is no longer current.
func (c *Call) fail(gen uint64, step string, cause error) error {
	err := cause
	if domain.KindOf(err) == "" {
		err = domain.NewError(domain.KindChannelFailure, step, "", cause)
	}

	c.mu.Lock()
	if c.gen != gen || c.state != domain.CallRinging {
		c.mu.Unlock()
		return err
	}
	c.gen++
	c.state = domain.CallIdle
	ch, unsub := c.detachLocked()
	c.sessionID = ""
	c.fallback = false
	c.startedAt = time.Time{}
	c.lastErr = err
	c.mu.Unlock()

	c.release(ch, unsub)
	c.log.Warn().Err(err).Str("step", step).Msg("call failed to start")
	c.notifyState(domain.CallRinging, domain.CallIdle)
	c.emit(context.Background(), hooks.EventCallFailed, map[string]any{
		"step":  step,
		"error": err.Error(),
	})
	return err
}

func (c *Call) detachLocked() (transport.Channel, func()) {
	ch, unsub := c.channel, c.unsubscribe
	c.channel, c.unsubscribe = nil, nil
	return ch, unsub
}

// release unsubscribes and disconnects. Only the path that detached the
// channel calls it, so each channel is released once.
func (c *Call) release(ch transport.Channel, unsub func()) {
	if unsub != nil {
		unsub()
	}
	if ch == nil {
		return
	}
	if err := ch.Disconnect(); err != nil {
		c.log.Warn().Err(err).Msg("channel disconnect failed")
	}
}

// EndCall ends a connected call. While ringing it aborts the attempt and
// returns to idle. Ending an already ended call is a no-op.
func (c *Call) EndCall() error {
	c.mu.Lock()
	switch c.state {
	case domain.CallConnected:
		c.mu.Unlock()
		c.end(domain.EndUser, nil)
		return nil
	case domain.CallRinging:
		c.gen++
		c.state = domain.CallIdle
		ch, unsub := c.detachLocked()
		c.sessionID = ""
		c.fallback = false
		c.startedAt = time.Time{}
		c.mu.Unlock()
		c.release(ch, unsub)
		c.notifyState(domain.CallRinging, domain.CallIdle)
		return nil
	case domain.CallEnded:
		c.mu.Unlock()
		return nil
	default:
		c.mu.Unlock()
		return fmt.Errorf("end call: %w", domain.ErrNotConnected)
	}
}

// end moves connected to ended. Concurrent callers race on the lock; the
// loser finds the state already changed and returns.
func (c *Call) end(reason domain.EndReason, cause error) {
	c.mu.Lock()
	if c.state != domain.CallConnected {
		c.mu.Unlock()
		return
	}
	c.gen++
	c.state = domain.CallEnded
	c.endedAt = c.now()
	c.endReason = reason
	if cause != nil {
		c.lastErr = domain.NewError(domain.KindChannelFailure, "channel", "connection dropped", cause)
	}
	ch, unsub := c.detachLocked()
	hadLive := c.recon.ClearLive()
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.release(ch, unsub)
	c.log.Info().
		Str("session_id", snap.SessionID).
		Str("reason", string(reason)).
		Int("entries", len(snap.Transcript)).
		Msg("call ended")
	if hadLive {
		c.notifyLive(nil)
	}
	c.notifyState(domain.CallConnected, domain.CallEnded)
	c.emit(context.Background(), hooks.EventCallEnded, map[string]any{
		"session_id": snap.SessionID,
		"reason":     string(reason),
		"record":     snap.Record(),
	})
}

// Reset returns an ended call to idle and clears transcript, live slot,
// qualification and telemetry. The next StartCall creates a new session.
func (c *Call) Reset() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return domain.ErrCallClosed
	}
	if c.state != domain.CallEnded {
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("reset from %s: %w", state, domain.ErrInvalidTransition)
	}
	c.gen++
	c.state = domain.CallIdle
	c.clearLocked()
	c.mu.Unlock()

	c.notifyState(domain.CallEnded, domain.CallIdle)
	return nil
}

func (c *Call) clearLocked() {
	c.sessionID = ""
	c.fallback = false
	c.recon.Reset()
	c.qual.Reset()
	c.telemetry = domain.Telemetry{}
	c.speakers = nil
	c.remoteTracks = 0
	c.startedAt = time.Time{}
	c.endedAt = time.Time{}
	c.endReason = ""
	c.lastErr = nil
}

// Close disposes of the call from any state. A connected call is ended with
// reason closed; a ringing attempt is abandoned. Close is idempotent.
func (c *Call) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	connected := c.state == domain.CallConnected
	c.mu.Unlock()

	if connected {
		c.end(domain.EndClosed, nil)
	}

	c.mu.Lock()
	c.closed = true
	c.gen++
	from := c.state
	ch, unsub := c.detachLocked()
	if from == domain.CallRinging {
		c.state = domain.CallIdle
	}
	c.recon.ClearLive()
	c.mu.Unlock()

	c.release(ch, unsub)
	if from == domain.CallRinging {
		c.notifyState(domain.CallRinging, domain.CallIdle)
	}
	return nil
}

// SendText publishes a user chat turn. The assistant's reply arrives as
// transcript packets; the text itself is not appended locally.
func (c *Call) SendText(ctx context.Context, text string) error {
	const op = "send text"
	if text == "" {
		return domain.NewError(domain.KindInvalidRequest, op, "text must not be empty", nil)
	}
	c.mu.Lock()
	ch := c.channel
	connected := c.state == domain.CallConnected
	c.mu.Unlock()
	if !connected || ch == nil {
		return fmt.Errorf("%s: %w", op, domain.ErrNotConnected)
	}

	payload, err := json.Marshal(domain.ChatPacket{Type: domain.PacketChat, Content: text, Role: domain.RoleUser})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := ch.Publish(ctx, payload, transport.PublishOptions{Reliable: true}); err != nil {
		if domain.KindOf(err) == "" {
			err = domain.NewError(domain.KindChannelFailure, op, "", err)
		}
		return err
	}
	return nil
}

// Snapshot returns a deep copy of the call's state.
func (c *Call) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Call) snapshotLocked() Snapshot {
	s := Snapshot{
		State:                 c.state,
		SessionID:             c.sessionID,
		Fallback:              c.fallback,
		Mode:                  c.mode,
		Transcript:            c.recon.Entries(),
		Live:                  c.recon.Live(),
		Qualification:         c.qual.Values(),
		QualificationComplete: c.qual.Complete(),
		Telemetry:             cloneTelemetry(c.telemetry),
		ActiveSpeakers:        append([]string(nil), c.speakers...),
		RemoteTracks:          c.remoteTracks,
		StartedAt:             c.startedAt,
		EndedAt:               c.endedAt,
		EndReason:             c.endReason,
	}
	if c.lastErr != nil {
		s.LastError = c.lastErr.Error()
	}
	return s
}

// LastError returns the error that last moved the call out of ringing or
// connected, if any.
func (c *Call) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// remoteDisconnected handles the channel dropping. A connected call ends; a
// ringing call goes back to idle.
func (c *Call) remoteDisconnected(gen uint64, cause error) {
	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return
	}
	state := c.state
	c.mu.Unlock()

	switch state {
	case domain.CallConnected:
		c.end(domain.EndRemote, cause)
	case domain.CallRinging:
		err := cause
		if err == nil {
			err = errors.New("remote closed during connect")
		}
		_ = c.fail(gen, "connect channel", err)
	}
}

func (c *Call) handleData(gen uint64, payload []byte) {
	pkt, err := domain.DecodePacket(payload)
	if err != nil {
		c.log.Debug().Err(err).Msg("dropping malformed packet")
		return
	}

	c.mu.Lock()
	if c.gen != gen || !c.state.Active() {
		c.mu.Unlock()
		return
	}
	change := c.recon.Apply(pkt)
	qualChanged := c.qual.Apply(pkt)
	var q domain.Qualification
	var complete bool
	if qualChanged {
		q, complete = c.qual.Values(), c.qual.Complete()
	}
	if pkt.Intelligence != nil {
		if pkt.Intelligence.Latency != nil {
			v := *pkt.Intelligence.Latency
			c.telemetry.LatencyMs = &v
		}
		if pkt.Intelligence.Sentiment != nil {
			v := *pkt.Intelligence.Sentiment
			c.telemetry.Sentiment = &v
		}
	}
	c.mu.Unlock()

	if c.observer == nil {
		return
	}
	if change.Appended != nil {
		c.observer.OnTranscript(*change.Appended)
	}
	if change.LiveChanged {
		c.observer.OnLive(change.Live)
	}
	if qualChanged {
		c.observer.OnQualification(q, complete)
	}
}

func (c *Call) handleTrack(gen uint64, t transport.TrackInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		return
	}
	c.remoteTracks++
	c.log.Debug().Str("sid", t.SID).Str("kind", t.Kind).Str("participant", t.Participant).Msg("remote track subscribed")
}

func (c *Call) handleSpeakers(gen uint64, ids []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		return
	}
	c.speakers = append([]string(nil), ids...)
}

func (c *Call) notifyState(from, to domain.CallState) {
	if c.observer != nil {
		c.observer.OnStateChange(from, to)
	}
}

func (c *Call) notifyLive(slot *domain.LiveSlot) {
	if c.observer != nil {
		c.observer.OnLive(slot)
	}
}

func (c *Call) emit(ctx context.Context, event string, data map[string]any) {
	if c.hooks == nil {
		return
	}
	c.hooks.Emit(context.WithoutCancel(ctx), event, data)
}

// channelHandler binds channel events to the generation that subscribed.
type channelHandler struct {
	c   *Call
	gen uint64
}

// OnConnected is ignored; a successful Connect return drives the transition.
func (h *channelHandler) OnConnected() {}

func (h *channelHandler) OnDisconnected(err error) { h.c.remoteDisconnected(h.gen, err) }

func (h *channelHandler) OnData(payload []byte, _ string) { h.c.handleData(h.gen, payload) }

func (h *channelHandler) OnTrack(t transport.TrackInfo) { h.c.handleTrack(h.gen, t) }

func (h *channelHandler) OnActiveSpeakers(ids []string) { h.c.handleSpeakers(h.gen, ids) }
