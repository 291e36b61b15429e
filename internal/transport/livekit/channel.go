// Package livekit implements transport.Channel over a LiveKit room.
package livekit

import (
	"context"
	"sync"

	"github.com/livekit/protocol/livekit"
	lksdk "github.com/livekit/server-sdk-go/v2"
	lkmedia "github.com/livekit/server-sdk-go/v2/pkg/media"
	"github.com/pion/webrtc/v4"

	"github.com/ayofemiade/ConvergsAI/internal/domain"
	"github.com/ayofemiade/ConvergsAI/internal/logging"
	"github.com/ayofemiade/ConvergsAI/internal/transport"
)

const (
	micSampleRate = 48000
	micChannels   = 1
	micTrackName  = "microphone"
)

// connectFunc matches lksdk.ConnectToRoomWithToken so tests can stub the join.
type connectFunc func(url, token string, cb *lksdk.RoomCallback, opts ...lksdk.ConnectOption) (*lksdk.Room, error)

// Channel is a single-use LiveKit room connection.
type Channel struct {
	log        *logging.Logger
	dispatcher transport.Dispatcher
	connect    connectFunc

	mu     sync.Mutex
	room   *lksdk.Room
	mic    *lkmedia.PCMLocalTrack
	closed bool
}

var _ transport.Channel = (*Channel)(nil)

// New creates an unconnected channel.
func New(log *logging.Logger) *Channel {
	return &Channel{log: log, connect: lksdk.ConnectToRoomWithToken}
}

// Factory returns a transport.Factory producing LiveKit channels.
func Factory(log *logging.Logger) transport.Factory {
	return func() transport.Channel { return New(log) }
}

// Subscribe implements transport.Channel.
func (c *Channel) Subscribe(h transport.Handler) func() {
	return c.dispatcher.Subscribe(h)
}

// Connect joins the room. The SDK join is not cancellable, so a context that
// ends first abandons the attempt and tears down the room once it returns.
func (c *Channel) Connect(ctx context.Context, serverURL, token string) error {
	const op = "livekit.Connect"
	if serverURL == "" || token == "" {
		return domain.NewError(domain.KindInvalidRequest, op, "server url and token are required", nil)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return domain.NewError(domain.KindChannelFailure, op, "channel already released", nil)
	}
	if c.room != nil {
		c.mu.Unlock()
		return domain.NewError(domain.KindChannelFailure, op, "already connected", nil)
	}
	c.mu.Unlock()

	type result struct {
		room *lksdk.Room
		err  error
	}
	done := make(chan result, 1)
	go func() {
		room, err := c.connect(serverURL, token, c.roomCallback(), lksdk.WithAutoSubscribe(true))
		done <- result{room, err}
	}()

	var res result
	select {
	case res = <-done:
	case <-ctx.Done():
		go func() {
			if r := <-done; r.room != nil {
				r.room.Disconnect()
			}
		}()
		return domain.NewError(domain.KindChannelFailure, op, "connect cancelled", ctx.Err())
	}
	if res.err != nil {
		return domain.NewError(domain.KindChannelFailure, op, "join room", res.err)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		res.room.Disconnect()
		return domain.NewError(domain.KindChannelFailure, op, "channel released during connect", nil)
	}
	c.room = res.room
	c.mu.Unlock()

	c.log.Info().Str("room", res.room.Name()).Msg("joined livekit room")
	c.dispatcher.Connected()
	return nil
}

func (c *Channel) roomCallback() *lksdk.RoomCallback {
	return &lksdk.RoomCallback{
		ParticipantCallback: lksdk.ParticipantCallback{
			OnTrackSubscribed: func(track *webrtc.TrackRemote, pub *lksdk.RemoteTrackPublication, rp *lksdk.RemoteParticipant) {
				c.dispatcher.Track(transport.TrackInfo{
					SID:         pub.SID(),
					Kind:        trackKind(track.Kind()),
					Participant: rp.Identity(),
				})
			},
			OnDataPacket: func(data lksdk.DataPacket, params lksdk.DataReceiveParams) {
				payload := data.ToProto().GetUser().GetPayload()
				if len(payload) == 0 {
					return
				}
				c.dispatcher.Data(payload, params.SenderIdentity)
			},
		},
		OnActiveSpeakersChanged: func(ps []lksdk.Participant) {
			ids := make([]string, 0, len(ps))
			for _, p := range ps {
				ids = append(ids, p.Identity())
			}
			c.dispatcher.ActiveSpeakers(ids)
		},
		OnDisconnected: func() {
			c.mu.Lock()
			released := c.closed
			c.mu.Unlock()
			if released {
				return
			}
			c.log.Warn().Msg("livekit room disconnected")
			c.dispatcher.Disconnected(nil)
		},
	}
}

func trackKind(k webrtc.RTPCodecType) string {
	switch k {
	case webrtc.RTPCodecTypeAudio:
		return "audio"
	case webrtc.RTPCodecTypeVideo:
		return "video"
	default:
		return "unknown"
	}
}

// Publish sends a user data packet to the room.
func (c *Channel) Publish(ctx context.Context, payload []byte, opts transport.PublishOptions) error {
	const op = "livekit.Publish"
	if err := ctx.Err(); err != nil {
		return domain.NewError(domain.KindChannelFailure, op, "", err)
	}
	room, err := c.currentRoom(op)
	if err != nil {
		return err
	}
	pubOpts := []lksdk.DataPublishOption{lksdk.WithDataPublishReliable(opts.Reliable)}
	if opts.Topic != "" {
		pubOpts = append(pubOpts, lksdk.WithDataPublishTopic(opts.Topic))
	}
	if err := room.LocalParticipant.PublishDataPacket(lksdk.UserData(payload), pubOpts...); err != nil {
		return domain.NewError(domain.KindChannelFailure, op, "publish data", err)
	}
	return nil
}

// EnableMicrophone publishes a local PCM microphone track. Calling it again
// after a successful publish is a no-op.
func (c *Channel) EnableMicrophone(ctx context.Context) error {
	const op = "livekit.EnableMicrophone"
	if err := ctx.Err(); err != nil {
		return domain.NewError(domain.KindChannelFailure, op, "", err)
	}
	room, err := c.currentRoom(op)
	if err != nil {
		return err
	}

	c.mu.Lock()
	if c.mic != nil {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	track, err := lkmedia.NewPCMLocalTrack(micSampleRate, micChannels, nil)
	if err != nil {
		return domain.NewError(domain.KindChannelFailure, op, "create audio track", err)
	}
	pub, err := room.LocalParticipant.PublishTrack(track, &lksdk.TrackPublicationOptions{
		Name:   micTrackName,
		Source: livekit.TrackSource_MICROPHONE,
	})
	if err != nil {
		track.Close()
		return domain.NewError(domain.KindChannelFailure, op, "publish audio track", err)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		track.Close()
		return domain.NewError(domain.KindChannelFailure, op, "channel released", nil)
	}
	c.mic = track
	c.mu.Unlock()

	c.log.Debug().Str("track_sid", pub.SID()).Msg("microphone published")
	return nil
}

// Disconnect leaves the room and releases the microphone. It is idempotent.
func (c *Channel) Disconnect() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	room, mic := c.room, c.mic
	c.room, c.mic = nil, nil
	c.mu.Unlock()

	if mic != nil {
		mic.Close()
	}
	if room != nil {
		room.Disconnect()
		c.log.Info().Msg("left livekit room")
	}
	return nil
}

func (c *Channel) currentRoom(op string) (*lksdk.Room, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.room == nil || c.closed {
		return nil, domain.NewError(domain.KindChannelFailure, op, "not connected", nil)
	}
	return c.room, nil
}
