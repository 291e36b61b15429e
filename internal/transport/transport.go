// Package transport defines the realtime room channel a call runs over and
// the event dispatch contract its implementations share.
package transport

import (
	"context"
	"sync"
)

// PublishOptions controls delivery of an outbound data packet.
type PublishOptions struct {
	Reliable bool
	Topic    string
}

// TrackInfo describes a remote media track that was subscribed.
type TrackInfo struct {
	SID         string `json:"sid"`
	Kind        string `json:"kind"` // "audio" | "video"
	Participant string `json:"participant"`
}

// Handler receives channel events. Implementations must not block.
type Handler interface {
	OnConnected()
	OnDisconnected(err error)
	OnData(payload []byte, sender string)
	OnTrack(track TrackInfo)
	OnActiveSpeakers(identities []string)
}

// Channel is a bidirectional realtime room connection. A Channel is used for a
// single connection; Disconnect is idempotent and safe after a failed Connect.
type Channel interface {
	// Connect joins the room. On success the channel reports OnConnected to
	// its subscribers.
	Connect(ctx context.Context, serverURL, token string) error
	Publish(ctx context.Context, payload []byte, opts PublishOptions) error
	EnableMicrophone(ctx context.Context) error
	Disconnect() error
	// Subscribe registers h and returns a function that removes it.
	Subscribe(h Handler) (unsubscribe func())
}

// Factory creates a fresh, unconnected Channel.
type Factory func() Channel

// Dispatcher fans events out to subscribed handlers. Handlers are invoked
// outside the dispatcher's lock, in subscription order.
type Dispatcher struct {
	mu       sync.Mutex
	nextID   int
	handlers []subscription
}

type subscription struct {
	id int
	h  Handler
}

// Subscribe registers h. The returned function is idempotent.
func (d *Dispatcher) Subscribe(h Handler) func() {
	d.mu.Lock()
	d.nextID++
	id := d.nextID
	d.handlers = append(d.handlers, subscription{id: id, h: h})
	d.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			d.mu.Lock()
			defer d.mu.Unlock()
			for i, s := range d.handlers {
				if s.id == id {
					d.handlers = append(d.handlers[:i:i], d.handlers[i+1:]...)
					return
				}
			}
		})
	}
}

// Len returns the number of subscribed handlers.
func (d *Dispatcher) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.handlers)
}

func (d *Dispatcher) each(fn func(Handler)) {
	d.mu.Lock()
	hs := make([]Handler, len(d.handlers))
	for i, s := range d.handlers {
		hs[i] = s.h
	}
	d.mu.Unlock()
	for _, h := range hs {
		fn(h)
	}
}

// Connected reports a successful join.
func (d *Dispatcher) Connected() { d.each(func(h Handler) { h.OnConnected() }) }

// Disconnected reports that the room connection ended. err is nil for a
// clean remote close.
func (d *Dispatcher) Disconnected(err error) { d.each(func(h Handler) { h.OnDisconnected(err) }) }

// Data reports an inbound data packet.
func (d *Dispatcher) Data(payload []byte, sender string) {
	d.each(func(h Handler) { h.OnData(payload, sender) })
}

// Track reports a subscribed remote track.
func (d *Dispatcher) Track(t TrackInfo) { d.each(func(h Handler) { h.OnTrack(t) }) }

// ActiveSpeakers reports the current active speaker set.
func (d *Dispatcher) ActiveSpeakers(ids []string) {
	d.each(func(h Handler) { h.OnActiveSpeakers(ids) })
}

// HandlerFuncs adapts optional funcs to Handler. Nil fields are ignored.
type HandlerFuncs struct {
	Connected      func()
	Disconnected   func(err error)
	Data           func(payload []byte, sender string)
	Track          func(t TrackInfo)
	ActiveSpeakers func(ids []string)
}

func (f HandlerFuncs) OnConnected() {
	if f.Connected != nil {
		f.Connected()
	}
}

func (f HandlerFuncs) OnDisconnected(err error) {
	if f.Disconnected != nil {
		f.Disconnected(err)
	}
}

func (f HandlerFuncs) OnData(payload []byte, sender string) {
	if f.Data != nil {
		f.Data(payload, sender)
	}
}

func (f HandlerFuncs) OnTrack(t TrackInfo) {
	if f.Track != nil {
		f.Track(t)
	}
}

func (f HandlerFuncs) OnActiveSpeakers(ids []string) {
	if f.ActiveSpeakers != nil {
		f.ActiveSpeakers(ids)
	}
}
