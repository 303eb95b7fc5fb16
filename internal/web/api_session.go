package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/conorfennell/mamanxue/internal/domain"
	"github.com/conorfennell/mamanxue/internal/session"
)

// sessionSnapshot pairs the manager state with the current card.
func (s *Server) sessionSnapshot(ctx context.Context) (sessionView, error) {
	st := s.sessions.State()
	if st.CurrentCardID == "" {
		return newSessionView(st, nil), nil
	}
	card, err := s.sessions.CurrentCard(ctx)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			return sessionView{}, err
		}
		s.logger.Warn("Current card no longer exists", "card_id", st.CurrentCardID)
		v := newSessionView(st, nil)
		v.CardError = err.Error()
		return v, nil
	}
	return newSessionView(st, &card), nil
}

func (s *Server) respondSession(w http.ResponseWriter, r *http.Request, status int) {
	v, err := s.sessionSnapshot(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, status, v)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	s.respondSession(w, r, http.StatusOK)
}

// loadDeck loads deckID, falling back to the last reviewed deck.
func (s *Server) loadDeck(ctx context.Context, deckID string) error {
	deckID = strings.TrimSpace(deckID)
	if deckID == "" {
		last, ok, err := s.sessions.LastDeck(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: deckId is required", domain.ErrInvalidArgument)
		}
		deckID = last
	}
	return s.sessions.LoadQueueForToday(ctx, deckID)
}

func (s *Server) handleLoadSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DeckID string      `json:"deckId"`
		Mode   domain.Mode `json:"mode"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.Mode != "" {
		if err := s.sessions.SetMode(req.Mode); err != nil {
			s.writeError(w, r, err)
			return
		}
	}
	if err := s.loadDeck(r.Context(), req.DeckID); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respondSession(w, r, http.StatusOK)
}

func (s *Server) handleReveal(w http.ResponseWriter, r *http.Request) {
	s.sessions.Reveal()
	s.respondSession(w, r, http.StatusOK)
}

func (s *Server) handleGrade(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Grade      domain.Grade `json:"grade"`
		MarkHard   bool         `json:"markHard"`
		DurationMS int64        `json:"durationMs"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	rs, err := s.sessions.Grade(r.Context(), session.GradeInput{
		Grade:    req.Grade,
		MarkHard: req.MarkHard,
		Duration: time.Duration(req.DurationMS) * time.Millisecond,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	v, err := s.sessionSnapshot(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"review":  newReviewView(rs),
		"session": v,
	})
}

// handleNext skips the current card without grading it.
func (s *Server) handleNext(w http.ResponseWriter, r *http.Request) {
	s.sessions.NextCard(nil)
	s.respondSession(w, r, http.StatusOK)
}

func (s *Server) handleDisable(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Disable(r.Context()); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respondSession(w, r, http.StatusOK)
}

func (s *Server) handleSetMode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Mode domain.Mode `json:"mode"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.sessions.SetMode(req.Mode); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respondSession(w, r, http.StatusOK)
}

func (s *Server) handleResetSession(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.ResetSession(r.Context()); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respondSession(w, r, http.StatusOK)
}
