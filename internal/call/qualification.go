package call

import (
	"github.com/ayofemiade/ConvergsAI/internal/domain"
	"github.com/ayofemiade/ConvergsAI/internal/logging"
)

// QualificationSync accumulates qualification fields for one call. It is not
// safe for concurrent use; the owning Call serializes access.
type QualificationSync struct {
	mode     domain.Mode
	log      *logging.Logger
	acc      domain.Qualification
	complete bool
}

// NewQualificationSync creates an empty accumulator for mode's key set.
func NewQualificationSync(mode domain.Mode, log *logging.Logger) *QualificationSync {
	return &QualificationSync{mode: mode, log: log, acc: domain.Qualification{}}
}

// Merge applies a union merge: keys with a usable value are set, empty or
// absent values never clear a populated key. It reports whether anything
// changed.
func (q *QualificationSync) Merge(update map[string]any) bool {
	changed := false
	for key, raw := range update {
		if !q.mode.AllowsKey(key) {
			q.log.Debug().Str("key", key).Str("mode", string(q.mode)).Msg("ignoring qualification key")
			continue
		}
		val, ok := domain.QualificationValue(raw)
		if !ok {
			continue
		}
		if q.acc[key] != val {
			q.acc[key] = val
			changed = true
		}
	}
	return changed
}

// SetComplete stores the backend's completion flag verbatim.
func (q *QualificationSync) SetComplete(v bool) bool {
	changed := q.complete != v
	q.complete = v
	return changed
}

// Apply merges the qualification parts of p and reports whether anything
// changed.
func (q *QualificationSync) Apply(p *domain.InboundPacket) bool {
	changed := false
	if p.Qualification != nil && q.Merge(p.Qualification) {
		changed = true
	}
	if p.QualificationComplete != nil && q.SetComplete(*p.QualificationComplete) {
		changed = true
	}
	return changed
}

// Values returns a copy of the accumulator.
func (q *QualificationSync) Values() domain.Qualification { return q.acc.Clone() }

// Complete returns the last completion flag received.
func (q *QualificationSync) Complete() bool { return q.complete }

// Reset clears the accumulator and flag.
func (q *QualificationSync) Reset() {
	q.acc = domain.Qualification{}
	q.complete = false
}
