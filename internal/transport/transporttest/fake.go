// Package transporttest provides a scriptable in-memory transport.Channel.
package transporttest

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/ayofemiade/ConvergsAI/internal/domain"
	"github.com/ayofemiade/ConvergsAI/internal/transport"
)

// Published records one outbound packet.
type Published struct {
	Payload []byte
	Opts    transport.PublishOptions
}

// Channel is a fake transport.Channel. Set the exported fields before use.
type Channel struct {
	// ConnectErr is returned from Connect when non-nil.
	ConnectErr error
	// ConnectGate, when non-nil, holds Connect until it is closed or the
	// context ends.
	ConnectGate chan struct{}
	PublishErr  error
	MicErr      error

	dispatcher transport.Dispatcher

	mu          sync.Mutex
	serverURL   string
	token       string
	connected   bool
	published   []Published
	micEnabled  int
	disconnects int
}

var _ transport.Channel = (*Channel)(nil)

// Subscribe implements transport.Channel.
func (c *Channel) Subscribe(h transport.Handler) func() {
	return c.dispatcher.Subscribe(h)
}

// Connect implements transport.Channel.
func (c *Channel) Connect(ctx context.Context, serverURL, token string) error {
	if c.ConnectGate != nil {
		select {
		case <-c.ConnectGate:
		case <-ctx.Done():
			return domain.NewError(domain.KindChannelFailure, "fake.Connect", "connect cancelled", ctx.Err())
		}
	}
	if c.ConnectErr != nil {
		return c.ConnectErr
	}
	c.mu.Lock()
	c.serverURL, c.token = serverURL, token
	c.connected = true
	c.mu.Unlock()
	c.dispatcher.Connected()
	return nil
}

// Publish implements transport.Channel.
func (c *Channel) Publish(_ context.Context, payload []byte, opts transport.PublishOptions) error {
	if c.PublishErr != nil {
		return c.PublishErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected {
		return domain.NewError(domain.KindChannelFailure, "fake.Publish", "not connected", nil)
	}
	c.published = append(c.published, Published{Payload: append([]byte(nil), payload...), Opts: opts})
	return nil
}

// EnableMicrophone implements transport.Channel.
func (c *Channel) EnableMicrophone(context.Context) error {
	if c.MicErr != nil {
		return c.MicErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.micEnabled++
	return nil
}

// Disconnect implements transport.Channel.
func (c *Channel) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
	c.disconnects++
	return nil
}

// Deliver dispatches raw inbound bytes as if sent by sender.
func (c *Channel) Deliver(payload []byte, sender string) {
	c.dispatcher.Data(payload, sender)
}

// DeliverJSON marshals v and dispatches it from "agent".
func (c *Channel) DeliverJSON(v any) {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	c.Deliver(b, "agent")
}

// Drop simulates the remote side ending the connection.
func (c *Channel) Drop(err error) {
	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()
	c.dispatcher.Disconnected(err)
}

// Track dispatches a track-subscribed event.
func (c *Channel) Track(t transport.TrackInfo) { c.dispatcher.Track(t) }

// Speakers dispatches an active-speaker change.
func (c *Channel) Speakers(ids ...string) { c.dispatcher.ActiveSpeakers(ids) }

// Published returns a copy of every packet published so far.
func (c *Channel) Published() []Published {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Published(nil), c.published...)
}

// PublishedPackets decodes published payloads as JSON objects.
func (c *Channel) PublishedPackets() []map[string]any {
	var out []map[string]any
	for _, p := range c.Published() {
		var m map[string]any
		if json.Unmarshal(p.Payload, &m) == nil {
			out = append(out, m)
		}
	}
	return out
}

// Credentials returns the server url and token passed to Connect.
func (c *Channel) Credentials() (string, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.serverURL, c.token
}

// MicEnabled counts EnableMicrophone calls that succeeded.
func (c *Channel) MicEnabled() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.micEnabled
}

// Disconnects counts Disconnect calls.
func (c *Channel) Disconnects() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disconnects
}

// Subscribers reports how many handlers are attached.
func (c *Channel) Subscribers() int { return c.dispatcher.Len() }

// Factory hands out fake channels and remembers them.
type Factory struct {
	// Prepare, when set, configures each channel before it is returned.
	Prepare func(*Channel)

	mu       sync.Mutex
	channels []*Channel
}

// New implements transport.Factory.
func (f *Factory) New() transport.Channel {
	c := &Channel{}
	if f.Prepare != nil {
		f.Prepare(c)
	}
	f.mu.Lock()
	f.channels = append(f.channels, c)
	f.mu.Unlock()
	return c
}

// Channels returns every channel created so far.
func (f *Factory) Channels() []*Channel {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*Channel(nil), f.channels...)
}

// Last returns the most recently created channel, or nil.
func (f *Factory) Last() *Channel {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.channels) == 0 {
		return nil
	}
	return f.channels[len(f.channels)-1]
}
