// Package knol derives stable card identifiers from card content.
package knol

import (
	"crypto/sha256"
	"fmt"
	"strings"

	"github.com/conorfennell/mamanxue/internal/domain"
)

// idLength is the number of hex digits of the content hash kept in card ids.
const idLength = 12

// Normalize concatenates the card's content after cleaning each part.
// It trims whitespace, lowercases, and normalizes line endings for each field
// before joining them.
func Normalize(card domain.Card) string {
	normalizePart := func(part string) string {
		p := strings.ToLower(part)
		p = strings.TrimSpace(p)
		p = strings.ReplaceAll(p, "\r\n", "\n")
		return p
	}

	// Joined with a newline so "ab"+"c" and "a"+"bc" differ.
	return strings.Join([]string{
		normalizePart(card.Front),
		normalizePart(card.Back),
		normalizePart(card.Notes),
	}, "\n")
}

// Hash takes a card, normalizes it, and returns its SHA-256 hash as a hex string.
func Hash(card domain.Card) string {
	hashBytes := sha256.Sum256([]byte(Normalize(card)))
	return fmt.Sprintf("%x", hashBytes)
}

// CardID returns "<deck>-<hash prefix>" for cards that carry no id of their own.
func CardID(deckID string, card domain.Card) string {
	return deckID + "-" + Hash(card)[:idLength]
}
