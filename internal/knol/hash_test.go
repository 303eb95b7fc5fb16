package knol

import (
	"strings"
	"testing"

	"github.com/conorfennell/mamanxue/internal/domain"
)

func TestNormalize(t *testing.T) {
	card := domain.Card{
		Front: "  Bonjour \r\n",
		Back:  "Hello.",
		Notes: "Greeting",
	}
	expected := "bonjour\nhello.\ngreeting"
	if normalized := Normalize(card); normalized != expected {
		t.Errorf("Expected normalized string to be '%s', but got '%s'", expected, normalized)
	}
}

func TestHash(t *testing.T) {
	t.Run("generates correct hash", func(t *testing.T) {
		card := domain.Card{Front: "Q", Back: "A", Notes: "C"}
		// Hash for "q\na\nc"
		expectedHash := "eb2456c1ee4f36305069dd0f63a30e92d5443129f5e8fd9a5ec490fbc4d4d8a2"
		if hash := Hash(card); hash != expectedHash {
			t.Errorf("Expected hash '%s', but got '%s'", expectedHash, hash)
		}
	})

	t.Run("normalization produces same hash", func(t *testing.T) {
		card1 := domain.Card{Front: "  bonjour ", Back: "Hello"}
		card2 := domain.Card{Front: "Bonjour", Back: "Hello"}
		if Hash(card1) != Hash(card2) {
			t.Error("Expected hashes to be the same after normalization, but they were different.")
		}
	})

	t.Run("different cards have different hashes", func(t *testing.T) {
		if Hash(domain.Card{Front: "Un"}) == Hash(domain.Card{Front: "Deux"}) {
			t.Error("Expected hashes for different cards to be different")
		}
	})
}

func TestCardID(t *testing.T) {
	id := CardID("1_1", domain.Card{Front: "Q", Back: "A", Notes: "C"})
	if id != "1_1-eb2456c1ee4f" {
		t.Errorf("Unexpected card id %s", id)
	}
	if !strings.HasPrefix(id, "1_1-") {
		t.Errorf("Expected deck prefix in %s", id)
	}
}
