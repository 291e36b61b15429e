package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ayofemiade/ConvergsAI/internal/domain"
)

// CallStore persists finished calls and their transcripts.
type CallStore struct {
	db *DB
}

// NewCallStore creates a call store using the given database.
func NewCallStore(db *DB) *CallStore {
	return &CallStore{db: db}
}

// Save writes rec, replacing any earlier archive of the same session.
func (s *CallStore) Save(ctx context.Context, rec domain.CallRecord) error {
	if rec.SessionID == "" {
		return domain.NewError(domain.KindInvalidRequest, "save call", "session id is required", nil)
	}
	qual, err := json.Marshal(rec.Qualification)
	if err != nil {
		return fmt.Errorf("encoding qualification: %w", err)
	}

	tx, err := s.db.sql.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save call: %w", err)
	}
	defer tx.Rollback()

	var latency sql.NullFloat64
	if rec.Telemetry.LatencyMs != nil {
		latency = sql.NullFloat64{Float64: *rec.Telemetry.LatencyMs, Valid: true}
	}
	var sentiment sql.NullString
	if rec.Telemetry.Sentiment != nil {
		sentiment = sql.NullString{String: *rec.Telemetry.Sentiment, Valid: true}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO calls (session_id, fallback, mode, started_at, ended_at, end_reason,
		                    qualification, qualification_complete, latency_ms, sentiment)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(session_id) DO UPDATE SET
		   fallback = excluded.fallback,
		   mode = excluded.mode,
		   started_at = excluded.started_at,
		   ended_at = excluded.ended_at,
		   end_reason = excluded.end_reason,
		   qualification = excluded.qualification,
		   qualification_complete = excluded.qualification_complete,
		   latency_ms = excluded.latency_ms,
		   sentiment = excluded.sentiment`,
		rec.SessionID, rec.Fallback, string(rec.Mode),
		formatTime(rec.StartedAt), formatTime(rec.EndedAt), string(rec.EndReason),
		string(qual), rec.QualificationComplete, latency, sentiment,
	)
	if err != nil {
		return fmt.Errorf("saving call %s: %w", rec.SessionID, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM transcript_entries WHERE session_id = ?`, rec.SessionID); err != nil {
		return fmt.Errorf("clearing transcript %s: %w", rec.SessionID, err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO transcript_entries (id, session_id, seq, role, content, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing transcript insert: %w", err)
	}
	defer stmt.Close()

	for i, e := range rec.Transcript {
		id := e.ID
		if id == "" {
			id = uuid.New().String()
		}
		if _, err := stmt.ExecContext(ctx, id, rec.SessionID, i, string(e.Role), e.Content, formatTime(e.Timestamp)); err != nil {
			return fmt.Errorf("saving transcript entry %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save call: %w", err)
	}
	s.db.log.Debug().Str("session_id", rec.SessionID).Int("entries", len(rec.Transcript)).Msg("call archived")
	return nil
}

// Get returns the archived call for a session, or a NotFound error.
func (s *CallStore) Get(ctx context.Context, sessionID string) (*domain.CallRecord, error) {
	var rec domain.CallRecord
	var mode, startedAt, endedAt, reason, qual string
	var latency sql.NullFloat64
	var sentiment sql.NullString

	err := s.db.sql.QueryRowContext(ctx,
		`SELECT session_id, fallback, mode, started_at, ended_at, end_reason,
		        qualification, qualification_complete, latency_ms, sentiment
		 FROM calls WHERE session_id = ?`, sessionID,
	).Scan(&rec.SessionID, &rec.Fallback, &mode, &startedAt, &endedAt, &reason,
		&qual, &rec.QualificationComplete, &latency, &sentiment)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NewError(domain.KindNotFound, "get call", "no archived call for session "+sessionID, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("loading call %s: %w", sessionID, err)
	}

	rec.Mode = domain.Mode(mode)
	rec.EndReason = domain.EndReason(reason)
	rec.StartedAt = parseTime(startedAt)
	rec.EndedAt = parseTime(endedAt)
	if err := json.Unmarshal([]byte(qual), &rec.Qualification); err != nil {
		return nil, fmt.Errorf("decoding qualification for %s: %w", sessionID, err)
	}
	if latency.Valid {
		v := latency.Float64
		rec.Telemetry.LatencyMs = &v
	}
	if sentiment.Valid {
		v := sentiment.String
		rec.Telemetry.Sentiment = &v
	}

	rows, err := s.db.sql.QueryContext(ctx,
		`SELECT id, role, content, timestamp FROM transcript_entries
		 WHERE session_id = ? ORDER BY seq`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("loading transcript %s: %w", sessionID, err)
	}
	defer rows.Close()

	rec.Transcript = []domain.TranscriptEntry{}
	for rows.Next() {
		var e domain.TranscriptEntry
		var role, ts string
		if err := rows.Scan(&e.ID, &role, &e.Content, &ts); err != nil {
			return nil, fmt.Errorf("scanning transcript entry: %w", err)
		}
		e.Role = domain.Role(role)
		e.Timestamp = parseTime(ts)
		rec.Transcript = append(rec.Transcript, e)
	}
	return &rec, rows.Err()
}

// List returns archived calls, newest first. Limit of 0 defaults to 50.
func (s *CallStore) List(ctx context.Context, limit int) ([]domain.CallSummary, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.sql.QueryContext(ctx,
		`SELECT c.session_id, c.mode, c.fallback, c.started_at, c.ended_at, c.qualification_complete,
		        (SELECT COUNT(*) FROM transcript_entries t WHERE t.session_id = c.session_id)
		 FROM calls c
		 ORDER BY c.started_at DESC
		 LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing calls: %w", err)
	}
	defer rows.Close()

	summaries := []domain.CallSummary{}
	for rows.Next() {
		var cs domain.CallSummary
		var mode, startedAt, endedAt string
		if err := rows.Scan(&cs.SessionID, &mode, &cs.Fallback, &startedAt, &endedAt,
			&cs.QualificationComplete, &cs.Entries); err != nil {
			return nil, fmt.Errorf("scanning call: %w", err)
		}
		cs.Mode = domain.Mode(mode)
		cs.StartedAt = parseTime(startedAt)
		cs.EndedAt = parseTime(endedAt)
		summaries = append(summaries, cs)
	}
	return summaries, rows.Err()
}

// Delete removes an archived call and its transcript. Missing calls are NotFound.
func (s *CallStore) Delete(ctx context.Context, sessionID string) error {
	res, err := s.db.sql.ExecContext(ctx, `DELETE FROM calls WHERE session_id = ?`, sessionID)
	if err != nil {
		return fmt.Errorf("deleting call %s: %w", sessionID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.NewError(domain.KindNotFound, "delete call", "no archived call for session "+sessionID, nil)
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}
