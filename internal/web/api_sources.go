package web

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/conorfennell/mamanxue/internal/domain"
	"github.com/conorfennell/mamanxue/internal/storage"
)

func (s *Server) handleListSources(w http.ResponseWriter, r *http.Request) {
	sources, err := s.db.GetAllSources(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if sources == nil {
		sources = []storage.Source{}
	}
	writeJSON(w, http.StatusOK, sources)
}

func (s *Server) handleAddSource(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Path string `json:"path"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	source, err := s.syncer.AddSource(r.Context(), req.Path)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, source)
}

func (s *Server) handleDeleteSource(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "sourceID"), 10, 64)
	if err != nil {
		s.writeError(w, r, fmt.Errorf("%w: invalid source id", domain.ErrInvalidArgument))
		return
	}
	if err := s.db.DeleteSource(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleSync runs a sync in the foreground and returns its report.
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	report, err := s.syncer.RunSync(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
