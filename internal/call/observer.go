package call

import "github.com/ayofemiade/ConvergsAI/internal/domain"

// Observer receives call updates after state has changed. Callbacks never run
// under the call's lock, so they may call back into the Call.
type Observer interface {
	OnStateChange(from, to domain.CallState)
	OnTranscript(entry domain.TranscriptEntry)
	// OnLive reports the live slot; nil means it was cleared.
	OnLive(slot *domain.LiveSlot)
	OnQualification(q domain.Qualification, complete bool)
}

// ObserverFuncs adapts optional funcs to Observer.
type ObserverFuncs struct {
	StateChange   func(from, to domain.CallState)
	Transcript    func(entry domain.TranscriptEntry)
	Live          func(slot *domain.LiveSlot)
	Qualification func(q domain.Qualification, complete bool)
}

func (f ObserverFuncs) OnStateChange(from, to domain.CallState) {
	if f.StateChange != nil {
		f.StateChange(from, to)
	}
}

func (f ObserverFuncs) OnTranscript(entry domain.TranscriptEntry) {
	if f.Transcript != nil {
		f.Transcript(entry)
	}
}

func (f ObserverFuncs) OnLive(slot *domain.LiveSlot) {
	if f.Live != nil {
		f.Live(slot)
	}
}

func (f ObserverFuncs) OnQualification(q domain.Qualification, complete bool) {
	if f.Qualification != nil {
		f.Qualification(q, complete)
	}
}
