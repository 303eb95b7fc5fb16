package web

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/conorfennell/mamanxue/internal/deckimport"
	"github.com/conorfennell/mamanxue/internal/domain"
)

const (
	defaultForecastDays = 7
	maxForecastDays     = 60
)

func (s *Server) handleListDecks(w http.ResponseWriter, r *http.Request) {
	decks, err := s.db.ListDecks(r.Context(), s.now())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	last, _, err := s.sessions.LastDeck(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"decks":    decks,
		"lastDeck": last,
	})
}

func (s *Server) handleDeckCards(w http.ResponseWriter, r *http.Request) {
	deckID := chi.URLParam(r, "deckID")
	cards, err := s.db.DeckCards(r.Context(), deckID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if len(cards) == 0 {
		s.writeError(w, r, fmt.Errorf("deck %s: %w", deckID, domain.ErrNotFound))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"deckId": deckID,
		"cards":  newDeckCardViews(cards),
	})
}

// handleImportDeck accepts a JSON deck payload for deckID.
func (s *Server) handleImportDeck(w http.ResponseWriter, r *http.Request) {
	deckID := chi.URLParam(r, "deckID")
	cards, err := deckimport.DecodeJSON(r.Body, deckID, s.logger)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.importer.ImportCards(r.Context(), deckID, cards, nil)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (s *Server) handleRenameDeck(w http.ResponseWriter, r *http.Request) {
	deckID := chi.URLParam(r, "deckID")
	var req struct {
		NewID string `json:"newId"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.db.RenameDeck(r.Context(), deckID, req.NewID); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.forgetDeck(r.Context(), deckID); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"deckId": strings.TrimSpace(req.NewID)})
}

func (s *Server) handleDeleteDeck(w http.ResponseWriter, r *http.Request) {
	deckID := chi.URLParam(r, "deckID")
	if err := s.db.DeleteDeck(r.Context(), deckID); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.forgetDeck(r.Context(), deckID); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// forgetDeck resets the session when it points at a deck that was renamed
// or deleted.
func (s *Server) forgetDeck(ctx context.Context, deckID string) error {
	if s.sessions.State().DeckID != deckID {
		last, ok, err := s.sessions.LastDeck(ctx)
		if err != nil || !ok || last != deckID {
			return err
		}
	}
	return s.sessions.ResetSession(ctx)
}

func (s *Server) handleSuspendCard(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Suspended *bool `json:"suspended"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	suspended := req.Suspended == nil || *req.Suspended
	s.updateCardFlag(w, r, func(ctx context.Context, cardID string) error {
		return s.db.SetCardSuspended(ctx, cardID, suspended, s.now())
	})
}

func (s *Server) handleHardFlag(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Hard *bool `json:"hard"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	hard := req.Hard == nil || *req.Hard
	s.updateCardFlag(w, r, func(ctx context.Context, cardID string) error {
		return s.db.SetCardHardFlag(ctx, cardID, hard, s.now())
	})
}

func (s *Server) updateCardFlag(w http.ResponseWriter, r *http.Request, apply func(ctx context.Context, cardID string) error) {
	ctx := r.Context()
	cardID := chi.URLParam(r, "cardID")
	card, err := s.db.GetCard(ctx, cardID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if card == nil {
		s.writeError(w, r, fmt.Errorf("card %s: %w", cardID, domain.ErrNotFound))
		return
	}
	if err := apply(ctx, cardID); err != nil {
		s.writeError(w, r, err)
		return
	}
	rs, err := s.db.GetReview(ctx, cardID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newReviewView(*rs))
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.db.ReviewStats(r.Context(), s.now())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleForecast(w http.ResponseWriter, r *http.Request) {
	days := defaultForecastDays
	if raw := r.URL.Query().Get("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxForecastDays {
			s.writeError(w, r, fmt.Errorf("%w: days must be between 1 and %d", domain.ErrInvalidArgument, maxForecastDays))
			return
		}
		days = n
	}
	forecast, err := s.db.DueForecast(r.Context(), s.now(), days)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"days": days, "forecast": forecast})
}
