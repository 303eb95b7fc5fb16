// Package deckimport loads deck files into storage.
package deckimport

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/conorfennell/mamanxue/internal/domain"
	"github.com/conorfennell/mamanxue/internal/knol"
	"github.com/conorfennell/mamanxue/internal/parser"
	"github.com/conorfennell/mamanxue/internal/storage"
)

// Payload is the JSON deck format.
type Payload struct {
	ID    string        `json:"id"`
	Cards []CardPayload `json:"cards" validate:"dive"`
}

// CardPayload is one card of a JSON deck.
type CardPayload struct {
	ID         string   `json:"id" validate:"required,notblank"`
	DeckID     string   `json:"deckId"`
	Front      string   `json:"fr" validate:"required,notblank"`
	Back       string   `json:"en" validate:"required,notblank"`
	Audio      string   `json:"audio" validate:"required,notblank"`
	AudioSlow  string   `json:"audio_slow"`
	Notes      string   `json:"notes"`
	Tags       []string `json:"tags" validate:"omitempty,dive,required"`
	Sequence   *int     `json:"sequence"`
	ExternalID string   `json:"externalId"`
}

var (
	// ErrInvalidDeck is returned for payloads that fail validation.
	ErrInvalidDeck = fmt.Errorf("%w: invalid deck payload", domain.ErrInvalidArgument)

	absoluteURL = regexp.MustCompile(`(?i)^https?://`)
	validate    = newValidator()
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	err := v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	if err != nil {
		panic(err)
	}
	return v
}

// Store is the storage needed by the importer.
type Store interface {
	WithTx(ctx context.Context, fn func(tx *storage.DB) error) error
}

// Importer writes decks to a store.
type Importer struct {
	store  Store
	logger *slog.Logger
}

// New creates an Importer.
func New(store Store, logger *slog.Logger) *Importer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{store: store, logger: logger}
}

// Result reports the outcome of importing one deck file.
type Result struct {
	DeckID  string   `json:"deckId"`
	Cards   int      `json:"cards"`
	CardIDs []string `json:"-"`
}

// DecodeJSON reads and validates a JSON deck. deckID is used when the payload
// names no deck; a mismatch between the two is logged and deckID wins.
func DecodeJSON(r io.Reader, deckID string, logger *slog.Logger) ([]domain.Card, error) {
	var payload Payload
	if err := json.NewDecoder(r).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDeck, err)
	}
	if payload.Cards == nil {
		return nil, fmt.Errorf("%w: %s has no cards array", ErrInvalidDeck, deckID)
	}
	if payload.ID != "" && payload.ID != deckID {
		logger.Warn("Deck identifier mismatch", "expected", deckID, "received", payload.ID)
	}
	if err := validate.Struct(payload); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidDeck, deckID, err)
	}

	cards := make([]domain.Card, 0, len(payload.Cards))
	for _, c := range payload.Cards {
		target := deckID
		if strings.TrimSpace(c.DeckID) != "" {
			target = c.DeckID
		}
		card := domain.Card{
			ID:         c.ID,
			DeckID:     target,
			Front:      c.Front,
			Back:       c.Back,
			Audio:      NormalizeAudioPath(c.Audio, target),
			Notes:      strings.TrimSpace(c.Notes),
			Tags:       c.Tags,
			Sequence:   c.Sequence,
			ExternalID: c.ExternalID,
		}
		if c.AudioSlow != "" {
			card.AudioSlow = NormalizeAudioPath(c.AudioSlow, target)
		}
		cards = append(cards, card)
	}
	return cards, nil
}

// DecodeMarkdown parses a markdown deck. Cards get content-derived ids and
// their position in the file as sequence.
func DecodeMarkdown(r io.Reader, deckID string) ([]domain.Card, error) {
	cards, err := parser.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse markdown deck %s: %w", deckID, err)
	}
	for i := range cards {
		n := i + 1
		cards[i].DeckID = deckID
		cards[i].ID = knol.CardID(deckID, cards[i])
		cards[i].Sequence = &n
	}
	return cards, nil
}

// NormalizeAudioPath maps a bare file name to audio/<deck>/<file>. Absolute
// URLs and paths with directories are kept, minus a leading slash.
func NormalizeAudioPath(path, deckID string) string {
	path = strings.TrimSpace(path)
	if path == "" || absoluteURL.MatchString(path) {
		return path
	}
	path = strings.TrimPrefix(path, "/")
	if strings.Contains(path, "/") {
		return path
	}
	return "audio/" + deckID + "/" + path
}

// DeckIDFromPath names a deck after its file: decks/1_1.json -> 1_1.
func DeckIDFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// ImportFile imports a .json or .md deck file. sourceID may be nil.
func (im *Importer) ImportFile(ctx context.Context, path string, sourceID *int64) (Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return Result{}, fmt.Errorf("failed to open deck %s: %w", path, err)
	}
	defer f.Close()

	deckID := DeckIDFromPath(path)
	var cards []domain.Card
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		cards, err = DecodeJSON(f, deckID, im.logger)
	case ".md":
		cards, err = DecodeMarkdown(f, deckID)
	default:
		return Result{}, fmt.Errorf("%w: unsupported deck file %s", ErrInvalidDeck, path)
	}
	if err != nil {
		return Result{}, err
	}
	return im.ImportCards(ctx, deckID, cards, sourceID)
}

// ImportCards upserts all cards of a deck in a single transaction.
func (im *Importer) ImportCards(ctx context.Context, deckID string, cards []domain.Card, sourceID *int64) (Result, error) {
	res := Result{DeckID: deckID}
	err := im.store.WithTx(ctx, func(tx *storage.DB) error {
		for _, card := range cards {
			if err := tx.UpsertCard(ctx, card, sourceID); err != nil {
				return err
			}
			res.CardIDs = append(res.CardIDs, card.ID)
		}
		return nil
	})
	if err != nil {
		return Result{}, fmt.Errorf("failed to import deck %s: %w", deckID, err)
	}
	res.Cards = len(res.CardIDs)
	im.logger.Info("Deck imported", "deck_id", deckID, "cards", res.Cards)
	return res, nil
}

// IsDeckFile reports whether path looks like an importable deck.
func IsDeckFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".md":
		return true
	}
	return false
}
