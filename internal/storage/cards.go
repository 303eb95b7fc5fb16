package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/conorfennell/mamanxue/internal/domain"
)

const cardColumns = `id, deck_id, front, back, audio, audio_slow, notes, tags, sequence, external_id`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCard(row rowScanner) (domain.Card, error) {
	var (
		c        domain.Card
		tags     string
		sequence sql.NullInt64
	)
	if err := row.Scan(&c.ID, &c.DeckID, &c.Front, &c.Back, &c.Audio, &c.AudioSlow, &c.Notes, &tags, &sequence, &c.ExternalID); err != nil {
		return domain.Card{}, err
	}
	if tags != "" {
		if err := json.Unmarshal([]byte(tags), &c.Tags); err != nil {
			return domain.Card{}, fmt.Errorf("failed to decode tags of card %s: %w", c.ID, err)
		}
	}
	if sequence.Valid {
		n := int(sequence.Int64)
		c.Sequence = &n
	}
	return c, nil
}

func collectCards(rows *sql.Rows) ([]domain.Card, error) {
	defer rows.Close()
	var cards []domain.Card
	for rows.Next() {
		c, err := scanCard(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan card row: %w", err)
		}
		cards = append(cards, c)
	}
	return cards, rows.Err()
}

// UpsertCard inserts a card or replaces the content of an existing one.
// A nil sourceID leaves the card detached from any source.
func (db *DB) UpsertCard(ctx context.Context, card domain.Card, sourceID *int64) error {
	tags := "[]"
	if len(card.Tags) > 0 {
		b, err := json.Marshal(card.Tags)
		if err != nil {
			return fmt.Errorf("failed to encode tags of card %s: %w", card.ID, err)
		}
		tags = string(b)
	}
	var sequence sql.NullInt64
	if card.Sequence != nil {
		sequence = sql.NullInt64{Int64: int64(*card.Sequence), Valid: true}
	}
	var source sql.NullInt64
	if sourceID != nil {
		source = sql.NullInt64{Int64: *sourceID, Valid: true}
	}

	_, err := db.q.ExecContext(ctx, `
		INSERT INTO cards (id, deck_id, front, back, audio, audio_slow, notes, tags, sequence, external_id, source_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			deck_id = excluded.deck_id,
			front = excluded.front,
			back = excluded.back,
			audio = excluded.audio,
			audio_slow = excluded.audio_slow,
			notes = excluded.notes,
			tags = excluded.tags,
			sequence = excluded.sequence,
			external_id = excluded.external_id,
			source_id = COALESCE(excluded.source_id, cards.source_id)
	`,
		card.ID, card.DeckID, card.Front, card.Back, card.Audio, card.AudioSlow,
		card.Notes, tags, sequence, card.ExternalID, source,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert card %s: %w", card.ID, err)
	}
	return nil
}

// GetCard retrieves a card by id. It returns nil when the card does not exist.
func (db *DB) GetCard(ctx context.Context, id string) (*domain.Card, error) {
	row := db.q.QueryRowContext(ctx, `SELECT `+cardColumns+` FROM cards WHERE id = ?`, id)
	c, err := scanCard(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Card not found
		}
		return nil, fmt.Errorf("failed to find card %s: %w", id, err)
	}
	return &c, nil
}

// CardsByDeck returns every card of a deck, ordered by sequence then id.
func (db *DB) CardsByDeck(ctx context.Context, deckID string) ([]domain.Card, error) {
	rows, err := db.q.QueryContext(ctx, `
		SELECT `+cardColumns+` FROM cards
		WHERE deck_id = ?
		ORDER BY sequence IS NULL, sequence, id
	`, deckID)
	if err != nil {
		return nil, fmt.Errorf("failed to get cards for deck %s: %w", deckID, err)
	}
	cards, err := collectCards(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to read cards for deck %s: %w", deckID, err)
	}
	return cards, nil
}

// CardIDsBySource returns the ids of all cards imported from a source.
func (db *DB) CardIDsBySource(ctx context.Context, sourceID int64) ([]string, error) {
	rows, err := db.q.QueryContext(ctx, `SELECT id FROM cards WHERE source_id = ? ORDER BY id`, sourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to get cards for source ID %d: %w", sourceID, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan card id for source ID %d: %w", sourceID, err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// DeleteCard removes a card together with its review record.
func (db *DB) DeleteCard(ctx context.Context, id string) error {
	return db.WithTx(ctx, func(tx *DB) error {
		if _, err := tx.q.ExecContext(ctx, `DELETE FROM reviews WHERE card_id = ?`, id); err != nil {
			return fmt.Errorf("failed to delete review of card %s: %w", id, err)
		}
		if _, err := tx.q.ExecContext(ctx, `DELETE FROM cards WHERE id = ?`, id); err != nil {
			return fmt.Errorf("failed to delete card %s: %w", id, err)
		}
		return nil
	})
}

// placeholders returns "?, ?, ..." with n entries and the matching args.
func placeholders(ids []string) (string, []any) {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", "), args
}
