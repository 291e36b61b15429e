package call

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ayofemiade/ConvergsAI/internal/domain"
	"github.com/ayofemiade/ConvergsAI/internal/logging"
)

// DefaultInterimWindow is how long an interim fragment stays live without a
// newer packet.
const DefaultInterimWindow = 3 * time.Second

// TranscriptChange describes what one packet did to the transcript.
type TranscriptChange struct {
	// Appended is set when a final fragment became an entry.
	Appended *domain.TranscriptEntry
	// LiveChanged is set when the live slot was replaced or cleared.
	LiveChanged bool
	// Live is the slot after the packet, nil when empty.
	Live *domain.LiveSlot
}

// Reconciler folds transcript packets into an append-only entry log and a
// single live slot for the in-flight interim fragment. At most one expiry
// timer is armed at a time.
type Reconciler struct {
	window   time.Duration
	log      *logging.Logger
	now      func() time.Time
	newID    func() string
	onExpire func()

	mu      sync.Mutex
	entries []domain.TranscriptEntry
	live    *domain.LiveSlot
	timer   *time.Timer
	gen     uint64
}

// NewReconciler creates a reconciler. onExpire, if set, runs after an
// abandoned interim is cleared by its deadline, outside the reconciler lock.
func NewReconciler(window time.Duration, log *logging.Logger, onExpire func()) *Reconciler {
	if window <= 0 {
		window = DefaultInterimWindow
	}
	return &Reconciler{
		window:   window,
		log:      log,
		now:      time.Now,
		newID:    uuid.NewString,
		onExpire: onExpire,
	}
}

// Apply processes one decoded packet. Any transcript packet supersedes the
// live slot: a final always clears it, and an interim replaces it. Fragments
// with an unknown role or empty content are never shown or appended, so an
// unusable interim just clears the slot.
func (r *Reconciler) Apply(p *domain.InboundPacket) TranscriptChange {
	if p == nil || !p.IsTranscript() {
		return TranscriptChange{}
	}
	role := p.Role
	if role == "" {
		role = domain.RoleAssistant
	}
	usable := true
	if !role.Valid() {
		r.log.Debug().Str("role", string(role)).Msg("dropping transcript with unknown role")
		usable = false
	} else if strings.TrimSpace(p.Content) == "" {
		usable = false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.cancelTimerLocked()
	now := r.now()
	change := TranscriptChange{LiveChanged: r.live != nil}
	r.live = nil

	if !usable {
		return change
	}

	if p.Final() {
		entry := domain.TranscriptEntry{
			ID:        r.newID(),
			Role:      role,
			Content:   p.Content,
			Timestamp: now,
		}
		r.entries = append(r.entries, entry)
		change.Appended = &entry
		return change
	}

	r.live = &domain.LiveSlot{Role: role, Text: p.Content, Deadline: now.Add(r.window)}
	gen := r.gen
	r.timer = time.AfterFunc(r.window, func() { r.expire(gen) })
	live := *r.live
	return TranscriptChange{LiveChanged: true, Live: &live}
}

// cancelTimerLocked stops the pending timer and invalidates any expiry that
// already fired but has not taken the lock yet.
func (r *Reconciler) cancelTimerLocked() {
	r.gen++
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
}

func (r *Reconciler) expire(gen uint64) {
	r.mu.Lock()
	if gen != r.gen || r.live == nil {
		r.mu.Unlock()
		return
	}
	r.live = nil
	r.timer = nil
	r.mu.Unlock()

	r.log.Trace().Msg("interim transcript expired")
	if r.onExpire != nil {
		r.onExpire()
	}
}

// ClearLive drops the live slot and its timer without touching entries.
// It reports whether a slot was present.
func (r *Reconciler) ClearLive() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancelTimerLocked()
	had := r.live != nil
	r.live = nil
	return had
}

// Reset clears entries and the live slot.
func (r *Reconciler) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancelTimerLocked()
	r.entries = nil
	r.live = nil
}

// Entries returns a copy of the finalized entries in arrival order.
func (r *Reconciler) Entries() []domain.TranscriptEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.TranscriptEntry(nil), r.entries...)
}

// Live returns a copy of the live slot, or nil.
func (r *Reconciler) Live() *domain.LiveSlot {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.live == nil {
		return nil
	}
	live := *r.live
	return &live
}
