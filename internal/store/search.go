package store

import (
	"context"
	"fmt"

	"github.com/ayofemiade/ConvergsAI/internal/domain"
)

// TranscriptHit is a transcript entry matched by full-text search.
type TranscriptHit struct {
	SessionID string                 `json:"session_id"`
	Seq       int                    `json:"seq"`
	Entry     domain.TranscriptEntry `json:"entry"`
	Rank      float64                `json:"rank"` // FTS5 rank score, lower is better
}

// Search finds archived transcript entries matching an FTS5 query.
// Results are ranked by relevance. Limit of 0 defaults to 20.
func (s *CallStore) Search(ctx context.Context, query string, limit int) ([]TranscriptHit, error) {
	if query == "" {
		return nil, domain.NewError(domain.KindInvalidRequest, "search transcripts", "query is required", nil)
	}
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.sql.QueryContext(ctx,
		`SELECT te.session_id, te.seq, te.id, te.role, te.content, te.timestamp, rank
		 FROM transcript_fts
		 JOIN transcript_entries te ON te.rowid = transcript_fts.rowid
		 WHERE transcript_fts MATCH ?
		 ORDER BY rank
		 LIMIT ?`,
		query, limit,
	)
	if err != nil {
		return nil, domain.NewError(domain.KindInvalidRequest, "search transcripts", fmt.Sprintf("bad query %q", query), err)
	}
	defer rows.Close()

	hits := []TranscriptHit{}
	for rows.Next() {
		var h TranscriptHit
		var role, ts string
		if err := rows.Scan(&h.SessionID, &h.Seq, &h.Entry.ID, &role, &h.Entry.Content, &ts, &h.Rank); err != nil {
			return nil, fmt.Errorf("scanning search hit: %w", err)
		}
		h.Entry.Role = domain.Role(role)
		h.Entry.Timestamp = parseTime(ts)
		hits = append(hits, h)
	}
	return hits, rows.Err()
}
