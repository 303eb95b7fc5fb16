package storage

import (
	"context"
	"fmt"

	"github.com/conorfennell/mamanxue/internal/domain"
)

// AppendLog stores a review log entry and returns its id.
func (db *DB) AppendLog(ctx context.Context, entry domain.ReviewLog) (int64, error) {
	res, err := db.q.ExecContext(ctx, `
		INSERT INTO review_logs (reviewed_at, card_id, deck_id, grade, mode, duration_ms, session_id)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		formatTime(entry.When), entry.CardID, entry.DeckID, int(entry.Grade),
		string(entry.Mode), entry.Duration.Milliseconds(), entry.SessionID,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to append review log for card %s: %w", entry.CardID, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID for review log: %w", err)
	}
	return id, nil
}
