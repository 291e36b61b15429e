// Package wsrelay implements transport.Channel against a websocket relay room.
// The relay forwards data frames between participants and reports track and
// speaker changes as frames of their own.
package wsrelay

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ayofemiade/ConvergsAI/internal/domain"
	"github.com/ayofemiade/ConvergsAI/internal/logging"
	"github.com/ayofemiade/ConvergsAI/internal/transport"
)

const (
	defaultJoinTimeout = 10 * time.Second
	writeTimeout       = 5 * time.Second
)

// Channel is a single-use relay connection.
type Channel struct {
	log        *logging.Logger
	dispatcher transport.Dispatcher
	dialer     *websocket.Dialer

	mu   sync.Mutex
	conn *websocket.Conn
	done chan struct{}

	writeMu   sync.Mutex
	closed    atomic.Bool
	closeOnce sync.Once
	micOnce   sync.Once
	micErr    error
}

var _ transport.Channel = (*Channel)(nil)

// New creates an unconnected relay channel.
func New(log *logging.Logger) *Channel {
	return &Channel{log: log, dialer: websocket.DefaultDialer}
}

// Factory returns a transport.Factory producing relay channels.
func Factory(log *logging.Logger) transport.Factory {
	return func() transport.Channel { return New(log) }
}

// Subscribe implements transport.Channel.
func (c *Channel) Subscribe(h transport.Handler) func() {
	return c.dispatcher.Subscribe(h)
}

// Connect dials the relay and waits for the joined frame.
func (c *Channel) Connect(ctx context.Context, serverURL, token string) error {
	const op = "wsrelay.Connect"
	if serverURL == "" || token == "" {
		return domain.NewError(domain.KindInvalidRequest, op, "server url and token are required", nil)
	}
	if c.closed.Load() {
		return domain.NewError(domain.KindChannelFailure, op, "channel already released", nil)
	}
	c.mu.Lock()
	if c.conn != nil {
		c.mu.Unlock()
		return domain.NewError(domain.KindChannelFailure, op, "already connected", nil)
	}
	c.mu.Unlock()

	wsURL, err := relayURL(serverURL, token)
	if err != nil {
		return domain.NewError(domain.KindInvalidRequest, op, err.Error(), nil)
	}

	dialCtx := ctx
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, defaultJoinTimeout)
		defer cancel()
	}

	conn, resp, err := c.dialer.DialContext(dialCtx, wsURL, nil)
	if err != nil {
		msg := "dial relay"
		if resp != nil {
			msg = "dial relay: status " + resp.Status
		}
		return domain.NewError(domain.KindChannelFailure, op, msg, err)
	}

	deadline, _ := dialCtx.Deadline()
	_ = conn.SetReadDeadline(deadline)
	var first Frame
	if err := conn.ReadJSON(&first); err != nil {
		_ = conn.Close()
		return domain.NewError(domain.KindChannelFailure, op, "read joined frame", err)
	}
	_ = conn.SetReadDeadline(time.Time{})

	switch first.Kind {
	case KindJoined:
	case KindError:
		_ = conn.Close()
		return domain.NewError(domain.KindChannelFailure, op, "relay refused join: "+first.Message, nil)
	default:
		_ = conn.Close()
		return domain.NewError(domain.KindChannelFailure, op, "unexpected first frame "+first.Kind, nil)
	}

	c.mu.Lock()
	if c.closed.Load() {
		c.mu.Unlock()
		_ = conn.Close()
		return domain.NewError(domain.KindChannelFailure, op, "channel released during connect", nil)
	}
	c.conn = conn
	c.done = make(chan struct{})
	c.mu.Unlock()

	c.log.Info().Str("room", first.Room).Msg("joined relay room")
	c.dispatcher.Connected()
	go c.readLoop(conn, c.done)
	return nil
}

func relayURL(serverURL, token string) (string, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return "", errors.New("invalid server url")
	}
	switch strings.ToLower(u.Scheme) {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", errors.New("server url must use ws(s) or http(s)")
	}
	q := u.Query()
	q.Set("access_token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// readLoop closes done before reporting a remote disconnect so handlers may
// call Disconnect from the callback.
func (c *Channel) readLoop(conn *websocket.Conn, done chan struct{}) {
	remote, err := c.readFrames(conn)
	close(done)
	if !remote {
		return
	}
	c.log.Warn().Err(err).Msg("relay connection closed")
	c.dispatcher.Disconnected(err)
}

func (c *Channel) readFrames(conn *websocket.Conn) (bool, error) {
	for {
		var f Frame
		if err := conn.ReadJSON(&f); err != nil {
			if c.closed.Load() {
				return false, nil
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				err = nil
			}
			return true, err
		}
		switch f.Kind {
		case KindData:
			if len(f.Payload) == 0 {
				continue
			}
			c.dispatcher.Data([]byte(f.Payload), f.Sender)
		case KindTrack:
			if f.Track != nil {
				c.dispatcher.Track(*f.Track)
			}
		case KindSpeakers:
			c.dispatcher.ActiveSpeakers(f.Identities)
		case KindError:
			c.log.Warn().Str("message", f.Message).Msg("relay error frame")
		default:
			c.log.Debug().Str("kind", f.Kind).Msg("ignoring relay frame")
		}
	}
}

// Publish sends payload as a data frame. Payload must be JSON.
func (c *Channel) Publish(ctx context.Context, payload []byte, opts transport.PublishOptions) error {
	const op = "wsrelay.Publish"
	if err := ctx.Err(); err != nil {
		return domain.NewError(domain.KindChannelFailure, op, "", err)
	}
	if !json.Valid(payload) {
		return domain.NewError(domain.KindInvalidRequest, op, "payload must be JSON", nil)
	}
	return c.send(op, Frame{Kind: KindData, Payload: payload, Reliable: opts.Reliable, Topic: opts.Topic})
}

// EnableMicrophone asks the relay to mark this participant's audio as live.
// Only the first call sends a frame.
func (c *Channel) EnableMicrophone(ctx context.Context) error {
	const op = "wsrelay.EnableMicrophone"
	if err := ctx.Err(); err != nil {
		return domain.NewError(domain.KindChannelFailure, op, "", err)
	}
	if _, err := c.current(op); err != nil {
		return err
	}
	c.micOnce.Do(func() {
		c.micErr = c.send(op, Frame{Kind: KindMic})
	})
	return c.micErr
}

func (c *Channel) send(op string, f Frame) error {
	conn, err := c.current(op)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteJSON(f); err != nil {
		return domain.NewError(domain.KindChannelFailure, op, "write frame", err)
	}
	return nil
}

func (c *Channel) current(op string) (*websocket.Conn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil || c.closed.Load() {
		return nil, domain.NewError(domain.KindChannelFailure, op, "not connected", nil)
	}
	return c.conn, nil
}

// Disconnect closes the relay connection. It is idempotent.
func (c *Channel) Disconnect() error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		c.mu.Lock()
		conn, done := c.conn, c.done
		c.conn = nil
		c.mu.Unlock()
		if conn == nil {
			return
		}
		c.writeMu.Lock()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(2*time.Second))
		c.writeMu.Unlock()
		_ = conn.Close()
		<-done
		c.log.Info().Msg("left relay room")
	})
	return nil
}
