package store

import (
	"context"
	"fmt"

	"github.com/ayofemiade/ConvergsAI/internal/domain"
	"github.com/ayofemiade/ConvergsAI/internal/hooks"
	"github.com/ayofemiade/ConvergsAI/internal/logging"
)

// ArchiveHandlerName identifies the archive hook in the manager.
const ArchiveHandlerName = "call-archive"

// RegisterArchive persists every ended call carried on the call_ended event.
func RegisterArchive(m *hooks.Manager, calls *CallStore, log *logging.Logger) {
	alog := log.Sub("archive")
	m.On(hooks.EventCallEnded, ArchiveHandlerName, func(ctx context.Context, p hooks.Payload) error {
		rec, ok := p.Data["record"].(domain.CallRecord)
		if !ok {
			return fmt.Errorf("call_ended payload has no call record")
		}
		if err := calls.Save(ctx, rec); err != nil {
			return fmt.Errorf("archiving call %s: %w", rec.SessionID, err)
		}
		alog.Debug().
			Str("session_id", rec.SessionID).
			Int("entries", len(rec.Transcript)).
			Msg("call archived")
		return nil
	})
}
