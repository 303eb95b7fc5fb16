package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/conorfennell/mamanxue/internal/domain"
)

// DeckSummary aggregates the review state of one deck.
type DeckSummary struct {
	DeckID    string `json:"deckId"`
	Total     int    `json:"total"`
	DueToday  int    `json:"dueToday"`
	HardCount int    `json:"hardCount"`
	NewCount  int    `json:"newCount"`
	Suspended int    `json:"suspended"`
}

// DeckCard is a card together with its review record, if any.
type DeckCard struct {
	Card   domain.Card
	Review *domain.ReviewState
}

// endOfDay returns the last millisecond of t's UTC calendar day.
func endOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 23, 59, 59, int(999*time.Millisecond), time.UTC)
}

// ListDecks returns one summary per deck, ordered by deck id. A card counts
// as due today when it is due before the end of now's UTC day.
func (db *DB) ListDecks(ctx context.Context, now time.Time) ([]DeckSummary, error) {
	rows, err := db.q.QueryContext(ctx, `
		SELECT
			c.deck_id,
			COUNT(*),
			COUNT(CASE WHEN r.suspended = 0 AND r.due <= ? THEN 1 END),
			COUNT(CASE WHEN r.suspended = 0 AND r.hard_flag = 1 THEN 1 END),
			COUNT(CASE WHEN r.card_id IS NULL THEN 1 END),
			COUNT(CASE WHEN r.suspended = 1 THEN 1 END)
		FROM cards c
		LEFT JOIN reviews r ON r.card_id = c.id
		GROUP BY c.deck_id
		ORDER BY c.deck_id
	`, formatTime(endOfDay(now)))
	if err != nil {
		return nil, fmt.Errorf("failed to list decks: %w", err)
	}
	defer rows.Close()

	var decks []DeckSummary
	for rows.Next() {
		var d DeckSummary
		if err := rows.Scan(&d.DeckID, &d.Total, &d.DueToday, &d.HardCount, &d.NewCount, &d.Suspended); err != nil {
			return nil, fmt.Errorf("failed to scan deck row: %w", err)
		}
		decks = append(decks, d)
	}
	return decks, rows.Err()
}

// DeckCards returns every card of a deck with its review record.
func (db *DB) DeckCards(ctx context.Context, deckID string) ([]DeckCard, error) {
	cards, err := db.CardsByDeck(ctx, deckID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(cards))
	for i, c := range cards {
		ids[i] = c.ID
	}
	reviews, err := db.ReviewsForCards(ctx, ids)
	if err != nil {
		return nil, err
	}
	byCard := make(map[string]domain.ReviewState, len(reviews))
	for _, rs := range reviews {
		byCard[rs.CardID] = rs
	}

	domain.SortCards(cards)
	out := make([]DeckCard, len(cards))
	for i, c := range cards {
		out[i] = DeckCard{Card: c}
		if rs, ok := byCard[c.ID]; ok {
			out[i].Review = &rs
		}
	}
	return out, nil
}

// RenameDeck moves every card and log entry of a deck to a new deck id.
func (db *DB) RenameDeck(ctx context.Context, oldID, newID string) error {
	newID = strings.TrimSpace(newID)
	if newID == "" {
		return fmt.Errorf("%w: deck id cannot be empty", domain.ErrInvalidArgument)
	}
	if newID == oldID {
		return nil
	}

	return db.WithTx(ctx, func(tx *DB) error {
		existing, err := tx.countCards(ctx, oldID)
		if err != nil {
			return err
		}
		if existing == 0 {
			return fmt.Errorf("deck %q: %w", oldID, domain.ErrNotFound)
		}
		conflict, err := tx.countCards(ctx, newID)
		if err != nil {
			return err
		}
		if conflict > 0 {
			return fmt.Errorf("%w: deck %q already exists", domain.ErrInvalidArgument, newID)
		}

		if _, err := tx.q.ExecContext(ctx, `UPDATE cards SET deck_id = ? WHERE deck_id = ?`, newID, oldID); err != nil {
			return fmt.Errorf("failed to rename cards of deck %s: %w", oldID, err)
		}
		if _, err := tx.q.ExecContext(ctx, `UPDATE review_logs SET deck_id = ? WHERE deck_id = ?`, newID, oldID); err != nil {
			return fmt.Errorf("failed to rename logs of deck %s: %w", oldID, err)
		}
		return nil
	})
}

// DeleteDeck removes a deck with its cards, reviews and logs.
func (db *DB) DeleteDeck(ctx context.Context, deckID string) error {
	return db.WithTx(ctx, func(tx *DB) error {
		if _, err := tx.q.ExecContext(ctx, `
			DELETE FROM reviews WHERE card_id IN (SELECT id FROM cards WHERE deck_id = ?)
		`, deckID); err != nil {
			return fmt.Errorf("failed to delete reviews of deck %s: %w", deckID, err)
		}
		if _, err := tx.q.ExecContext(ctx, `DELETE FROM cards WHERE deck_id = ?`, deckID); err != nil {
			return fmt.Errorf("failed to delete cards of deck %s: %w", deckID, err)
		}
		if _, err := tx.q.ExecContext(ctx, `DELETE FROM review_logs WHERE deck_id = ?`, deckID); err != nil {
			return fmt.Errorf("failed to delete logs of deck %s: %w", deckID, err)
		}
		return nil
	})
}

func (db *DB) countCards(ctx context.Context, deckID string) (int, error) {
	var n int
	if err := db.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM cards WHERE deck_id = ?`, deckID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count cards of deck %s: %w", deckID, err)
	}
	return n, nil
}
