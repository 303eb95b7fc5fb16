package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/conorfennell/mamanxue/internal/domain"
	"github.com/conorfennell/mamanxue/internal/srs"
)

const reviewColumns = `card_id, interval, due, ease, streak, lapses, suspended, hard_flag`

func scanReview(row rowScanner) (domain.ReviewState, error) {
	var (
		rs        domain.ReviewState
		due       string
		suspended int
		hardFlag  int
	)
	if err := row.Scan(&rs.CardID, &rs.Interval, &due, &rs.Ease, &rs.Streak, &rs.Lapses, &suspended, &hardFlag); err != nil {
		return domain.ReviewState{}, err
	}
	t, err := parseTime(due)
	if err != nil {
		return domain.ReviewState{}, err
	}
	rs.Due = t
	rs.Suspended = suspended != 0
	rs.HardFlag = hardFlag != 0
	return rs, nil
}

func collectReviews(rows *sql.Rows) ([]domain.ReviewState, error) {
	defer rows.Close()
	var reviews []domain.ReviewState
	for rows.Next() {
		rs, err := scanReview(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan review row: %w", err)
		}
		reviews = append(reviews, rs)
	}
	return reviews, rows.Err()
}

// GetReview retrieves the review record of a card. It returns nil when the
// card has never been reviewed.
func (db *DB) GetReview(ctx context.Context, cardID string) (*domain.ReviewState, error) {
	row := db.q.QueryRowContext(ctx, `SELECT `+reviewColumns+` FROM reviews WHERE card_id = ?`, cardID)
	rs, err := scanReview(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Never reviewed
		}
		return nil, fmt.Errorf("failed to find review for card %s: %w", cardID, err)
	}
	return &rs, nil
}

// PutReview upserts a review record.
func (db *DB) PutReview(ctx context.Context, rs domain.ReviewState) error {
	_, err := db.q.ExecContext(ctx, `
		INSERT INTO reviews (`+reviewColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(card_id) DO UPDATE SET
			interval = excluded.interval,
			due = excluded.due,
			ease = excluded.ease,
			streak = excluded.streak,
			lapses = excluded.lapses,
			suspended = excluded.suspended,
			hard_flag = excluded.hard_flag
	`,
		rs.CardID, rs.Interval, formatTime(rs.Due), rs.Ease, rs.Streak, rs.Lapses,
		boolToInt(rs.Suspended), boolToInt(rs.HardFlag),
	)
	if err != nil {
		return fmt.Errorf("failed to put review for card %s: %w", rs.CardID, err)
	}
	return nil
}

// DueReviewsByDeck returns the unsuspended reviews of a deck that are due at
// or before the given instant, earliest due first.
func (db *DB) DueReviewsByDeck(ctx context.Context, deckID string, before time.Time) ([]domain.ReviewState, error) {
	rows, err := db.q.QueryContext(ctx, `
		SELECT r.card_id, r.interval, r.due, r.ease, r.streak, r.lapses, r.suspended, r.hard_flag
		FROM reviews r
		JOIN cards c ON c.id = r.card_id
		WHERE c.deck_id = ? AND r.suspended = 0 AND r.due <= ?
		ORDER BY r.due
	`, deckID, formatTime(before))
	if err != nil {
		return nil, fmt.Errorf("failed to get due reviews for deck %s: %w", deckID, err)
	}
	reviews, err := collectReviews(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to read due reviews for deck %s: %w", deckID, err)
	}
	return reviews, nil
}

// maxBindVars caps the ids bound in one IN (...) clause, well below
// SQLite's host parameter limit.
var maxBindVars = 500

// ReviewsForCards returns the existing review records among the given card
// ids. Large id sets are queried in batches.
func (db *DB) ReviewsForCards(ctx context.Context, cardIDs []string) ([]domain.ReviewState, error) {
	var reviews []domain.ReviewState
	for batch := range slices.Chunk(cardIDs, maxBindVars) {
		marks, args := placeholders(batch)
		rows, err := db.q.QueryContext(ctx, `SELECT `+reviewColumns+` FROM reviews WHERE card_id IN (`+marks+`)`, args...)
		if err != nil {
			return nil, fmt.Errorf("failed to get reviews for %d cards: %w", len(batch), err)
		}
		found, err := collectReviews(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to read reviews for %d cards: %w", len(batch), err)
		}
		reviews = append(reviews, found...)
	}
	return reviews, nil
}

// SetCardSuspended suspends or resumes a card, creating its default review
// record when none exists.
func (db *DB) SetCardSuspended(ctx context.Context, cardID string, suspended bool, now time.Time) error {
	return db.updateFlags(ctx, cardID, now, func(rs *domain.ReviewState) {
		rs.Suspended = suspended
	})
}

// SetCardHardFlag sets or clears the hard marker of a card.
func (db *DB) SetCardHardFlag(ctx context.Context, cardID string, hard bool, now time.Time) error {
	return db.updateFlags(ctx, cardID, now, func(rs *domain.ReviewState) {
		rs.HardFlag = hard
	})
}

func (db *DB) updateFlags(ctx context.Context, cardID string, now time.Time, apply func(*domain.ReviewState)) error {
	return db.WithTx(ctx, func(tx *DB) error {
		existing, err := tx.GetReview(ctx, cardID)
		if err != nil {
			return err
		}
		rs := srs.NewReviewState(cardID, now)
		if existing != nil {
			rs = *existing
		}
		apply(&rs)
		return tx.PutReview(ctx, rs)
	})
}
