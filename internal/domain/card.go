package domain

import (
	"sort"
	"time"
)

// Card is a single flashcard. Front holds the French sentence and Back its
// English translation; Mode decides which side is prompted.
type Card struct {
	ID         string
	DeckID     string
	Front      string
	Back       string
	Audio      string
	AudioSlow  string
	Notes      string
	Tags       []string
	Sequence   *int // nil when the card has no explicit position in its deck
	ExternalID string
}

// HasSequence reports whether the card carries an explicit deck position.
func (c Card) HasSequence() bool {
	return c.Sequence != nil
}

// SortCards orders cards by Sequence ascending, cards with a sequence before
// cards without one, and the rest by ID.
func SortCards(cards []Card) {
	sort.SliceStable(cards, func(i, j int) bool {
		a, b := cards[i], cards[j]
		switch {
		case a.HasSequence() && b.HasSequence():
			return *a.Sequence < *b.Sequence
		case a.HasSequence():
			return true
		case b.HasSequence():
			return false
		}
		return a.ID < b.ID
	})
}

// Mode is the review direction.
type Mode string

const (
	ModeInput  Mode = "input"  // front -> back
	ModeOutput Mode = "output" // back -> front
)

// Valid reports whether m is a known review direction.
func (m Mode) Valid() bool {
	return m == ModeInput || m == ModeOutput
}

// ReviewLog records a single grading event. Logs are append-only.
type ReviewLog struct {
	ID        int64
	When      time.Time
	CardID    string
	DeckID    string
	Grade     Grade
	Mode      Mode
	Duration  time.Duration
	SessionID string
}
