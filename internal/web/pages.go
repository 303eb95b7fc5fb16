package web

import (
	"bytes"
	"errors"
	"net/http"
	"strconv"

	"github.com/conorfennell/mamanxue/internal/domain"
	"github.com/conorfennell/mamanxue/internal/session"
	"github.com/conorfennell/mamanxue/internal/storage"
)

type indexPage struct {
	Decks    []storage.DeckSummary
	LastDeck string
}

type reviewPage struct {
	Session sessionView
	Done    bool
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, name string, data any) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		s.logger.Error("Failed to render template", "template", name, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	buf.WriteTo(w)
}

func (s *Server) pageError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("Page request failed", "path", r.URL.Path, "error", err)
		http.Error(w, "Internal Server Error", status)
		return
	}
	http.Error(w, err.Error(), status)
}

// handleIndex renders the deck overview.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	decks, err := s.db.ListDecks(r.Context(), s.now())
	if err != nil {
		s.pageError(w, r, err)
		return
	}
	last, _, err := s.sessions.LastDeck(r.Context())
	if err != nil {
		s.pageError(w, r, err)
		return
	}
	s.render(w, r, "index", indexPage{Decks: decks, LastDeck: last})
}

// handleReviewPage shows the current card. A deck parameter naming another
// deck, or a session that was never loaded, triggers a queue load.
func (s *Server) handleReviewPage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	deckID := r.URL.Query().Get("deck")
	st := s.sessions.State()

	if (deckID != "" && deckID != st.DeckID) || st.SessionID == "" {
		if err := s.loadDeck(ctx, deckID); err != nil {
			if errors.Is(err, domain.ErrInvalidArgument) && deckID == "" {
				http.Redirect(w, r, "/", http.StatusSeeOther)
				return
			}
			s.pageError(w, r, err)
			return
		}
	}

	v, err := s.sessionSnapshot(ctx)
	if err != nil {
		s.pageError(w, r, err)
		return
	}
	s.render(w, r, "review", reviewPage{Session: v, Done: v.Card == nil && v.CardError == ""})
}

func (s *Server) handleReviewReveal(w http.ResponseWriter, r *http.Request) {
	s.sessions.Reveal()
	http.Redirect(w, r, "/review", http.StatusSeeOther)
}

func (s *Server) handleReviewGrade(w http.ResponseWriter, r *http.Request) {
	grade, err := strconv.Atoi(r.PostFormValue("grade"))
	if err != nil {
		http.Error(w, "Invalid grade", http.StatusBadRequest)
		return
	}
	_, err = s.sessions.Grade(r.Context(), session.GradeInput{
		Grade:    domain.Grade(grade),
		MarkHard: r.PostFormValue("hard") != "",
	})
	if err != nil {
		s.pageError(w, r, err)
		return
	}
	http.Redirect(w, r, "/review", http.StatusSeeOther)
}

func (s *Server) handleReviewDisable(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Disable(r.Context()); err != nil {
		s.pageError(w, r, err)
		return
	}
	http.Redirect(w, r, "/review", http.StatusSeeOther)
}

func (s *Server) handleReviewNext(w http.ResponseWriter, r *http.Request) {
	s.sessions.NextCard(nil)
	http.Redirect(w, r, "/review", http.StatusSeeOther)
}
