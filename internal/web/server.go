// Package web serves the review engine over HTTP: a JSON API and a small
// server-rendered review page.
package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/yuin/goldmark"

	"github.com/conorfennell/mamanxue/internal/deckimport"
	"github.com/conorfennell/mamanxue/internal/session"
	"github.com/conorfennell/mamanxue/internal/storage"
	"github.com/conorfennell/mamanxue/internal/sync"
)

//go:embed templates/*.html
var templateFiles embed.FS

// Options holds the dependencies of a Server.
type Options struct {
	DB       *storage.DB
	Sessions *session.Manager
	Syncer   *sync.Syncer
	Logger   *slog.Logger
	Version  string
	Clock    func() time.Time
}

// Server holds the dependencies for the HTTP server.
type Server struct {
	db        *storage.DB
	sessions  *session.Manager
	syncer    *sync.Syncer
	importer  *deckimport.Importer
	logger    *slog.Logger
	version   string
	now       func() time.Time
	started   time.Time
	router    chi.Router
	templates *template.Template
	markdown  goldmark.Markdown
}

// New creates and configures a new server.
func New(opts Options) (*Server, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	s := &Server{
		db:       opts.DB,
		sessions: opts.Sessions,
		syncer:   opts.Syncer,
		importer: deckimport.New(opts.DB, opts.Logger),
		logger:   opts.Logger,
		version:  opts.Version,
		now:      opts.Clock,
		markdown: goldmark.New(),
	}
	s.started = s.now()

	tpl, err := template.New("").Funcs(template.FuncMap{
		"markdown": s.renderMarkdown,
	}).ParseFS(templateFiles, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	s.templates = tpl

	s.routes()
	return s, nil
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	r.Get("/", s.handleIndex)
	r.Get("/review", s.handleReviewPage)
	r.Post("/review/reveal", s.handleReviewReveal)
	r.Post("/review/grade", s.handleReviewGrade)
	r.Post("/review/disable", s.handleReviewDisable)
	r.Post("/review/next", s.handleReviewNext)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Get("/decks", s.handleListDecks)
		r.Route("/decks/{deckID}", func(r chi.Router) {
			r.Get("/cards", s.handleDeckCards)
			r.Post("/import", s.handleImportDeck)
			r.Post("/rename", s.handleRenameDeck)
			r.Delete("/", s.handleDeleteDeck)
		})

		r.Route("/session", func(r chi.Router) {
			r.Get("/", s.handleGetSession)
			r.Delete("/", s.handleResetSession)
			r.Post("/load", s.handleLoadSession)
			r.Post("/reveal", s.handleReveal)
			r.Post("/grade", s.handleGrade)
			r.Post("/next", s.handleNext)
			r.Post("/disable", s.handleDisable)
			r.Post("/mode", s.handleSetMode)
		})

		r.Post("/cards/{cardID}/suspend", s.handleSuspendCard)
		r.Post("/cards/{cardID}/hard", s.handleHardFlag)

		r.Get("/stats", s.handleStats)
		r.Get("/stats/forecast", s.handleForecast)

		r.Get("/sources", s.handleListSources)
		r.Post("/sources", s.handleAddSource)
		r.Delete("/sources/{sourceID}", s.handleDeleteSource)
		r.Post("/sync", s.handleSync)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	dbOK := s.db.Ping(r.Context()) == nil
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
		"uptime":  s.now().Sub(s.started).Seconds(),
		"db":      dbOK,
		"db_path": s.db.Path,
	})
}

func (s *Server) renderMarkdown(src string) template.HTML {
	var buf bytes.Buffer
	if err := s.markdown.Convert([]byte(src), &buf); err != nil {
		s.logger.Warn("Failed to render markdown", "error", err)
		return template.HTML(template.HTMLEscapeString(src))
	}
	return template.HTML(buf.String())
}
