// Package sync reconciles deck sources with the card store.
package sync

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/conorfennell/mamanxue/internal/deckimport"
	"github.com/conorfennell/mamanxue/internal/domain"
	"github.com/conorfennell/mamanxue/internal/gitsource"
	"github.com/conorfennell/mamanxue/internal/storage"
)

// DefaultReposDir is where git sources are cloned when no directory is configured.
const DefaultReposDir = "repos"

// Options configures a Syncer.
type Options struct {
	ReposDir string
	Logger   *slog.Logger
	Clock    func() time.Time
}

// Syncer imports every deck file of every registered source.
type Syncer struct {
	db       *storage.DB
	importer *deckimport.Importer
	reposDir string
	logger   *slog.Logger
	now      func() time.Time
	fetch    func(ctx context.Context, url, localPath string, logger *slog.Logger) error
}

// New creates a Syncer backed by db.
func New(db *storage.DB, opts Options) *Syncer {
	if opts.ReposDir == "" {
		opts.ReposDir = DefaultReposDir
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Syncer{
		db:       db,
		importer: deckimport.New(db, opts.Logger),
		reposDir: opts.ReposDir,
		logger:   opts.Logger,
		now:      opts.Clock,
		fetch:    gitsource.Sync,
	}
}

// SourceReport summarizes the reconciliation of one source.
type SourceReport struct {
	SourceID int64    `json:"sourceId"`
	Path     string   `json:"path"`
	Decks    []string `json:"decks"`
	Cards    int      `json:"cards"`
	Orphaned int      `json:"orphaned"`
	Errors   []string `json:"errors,omitempty"`
}

// Report summarizes a full sync run.
type Report struct {
	Sources []SourceReport `json:"sources"`
}

// AddSource registers a local directory or git URL. Registering the same
// path twice returns the existing source.
func (s *Syncer) AddSource(ctx context.Context, path string) (storage.Source, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return storage.Source{}, fmt.Errorf("%w: source path is empty", domain.ErrInvalidArgument)
	}

	sourceType := storage.SourceGit
	if !gitsource.IsGitURL(path) {
		sourceType = storage.SourceLocal
		abs, err := filepath.Abs(path)
		if err != nil {
			return storage.Source{}, fmt.Errorf("%w: resolve %s: %v", domain.ErrInvalidArgument, path, err)
		}
		info, err := os.Stat(abs)
		if err != nil || !info.IsDir() {
			return storage.Source{}, fmt.Errorf("%w: %s is not a directory", domain.ErrInvalidArgument, path)
		}
		path = abs
	} else if _, err := gitsource.LocalPath(s.reposDir, path); err != nil {
		return storage.Source{}, fmt.Errorf("%w: %v", domain.ErrInvalidArgument, err)
	}

	existing, err := s.db.FindSourceByPath(ctx, path)
	if err != nil {
		return storage.Source{}, err
	}
	if existing != nil {
		return *existing, nil
	}

	id, err := s.db.InsertSource(ctx, path, sourceType)
	if err != nil {
		return storage.Source{}, err
	}
	s.logger.Info("Source added", "id", id, "type", sourceType, "path", path)
	return storage.Source{ID: id, Path: path, Type: sourceType}, nil
}

// RunSync iterates over all sources and reconciles them. A failing source is
// recorded in the report and does not stop the run.
func (s *Syncer) RunSync(ctx context.Context) (Report, error) {
	s.logger.Info("Starting sync process for all sources...")
	sources, err := s.db.GetAllSources(ctx)
	if err != nil {
		return Report{}, err
	}

	report := Report{Sources: []SourceReport{}}
	if len(sources) == 0 {
		s.logger.Info("No sources configured. Add one with: mamanxue source add <path/or/url.git>")
		return report, nil
	}

	for _, source := range sources {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		sr, err := s.SyncSource(ctx, source)
		if err != nil {
			s.logger.Error("Error syncing source", "id", source.ID, "path", source.Path, "error", err)
			sr.Errors = append(sr.Errors, err.Error())
		}
		report.Sources = append(report.Sources, sr)
	}
	s.logger.Info("Sync process complete.", "sources", len(sources))
	return report, nil
}

// SyncSource fetches a git source if needed and reconciles its deck files.
func (s *Syncer) SyncSource(ctx context.Context, source storage.Source) (SourceReport, error) {
	s.logger.Info("Syncing source", "id", source.ID, "type", source.Type, "path", source.Path)
	sr := SourceReport{SourceID: source.ID, Path: source.Path, Decks: []string{}}

	dir := source.Path
	switch source.Type {
	case storage.SourceLocal:
	case storage.SourceGit:
		if err := os.MkdirAll(s.reposDir, os.ModePerm); err != nil {
			return sr, fmt.Errorf("failed to create repos directory: %w", err)
		}
		localRepoPath, err := gitsource.LocalPath(s.reposDir, source.Path)
		if err != nil {
			return sr, err
		}
		if err := s.fetch(ctx, source.Path, localRepoPath, s.logger); err != nil {
			return sr, err
		}
		dir = localRepoPath
	default:
		return sr, fmt.Errorf("unknown source type %q", source.Type)
	}

	return s.reconcile(ctx, source, dir, sr)
}

func (s *Syncer) reconcile(ctx context.Context, source storage.Source, dir string, sr SourceReport) (SourceReport, error) {
	sourceID := source.ID
	found := make(map[string]bool)

	walkErr := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !deckimport.IsDeckFile(path) {
			return nil
		}
		res, importErr := s.importer.ImportFile(ctx, path, &sourceID)
		if importErr != nil {
			s.logger.Warn("Skipping deck file", "path", path, "error", importErr)
			sr.Errors = append(sr.Errors, importErr.Error())
			return nil
		}
		sr.Decks = append(sr.Decks, res.DeckID)
		sr.Cards += res.Cards
		for _, id := range res.CardIDs {
			found[id] = true
		}
		return nil
	})
	if walkErr != nil {
		return sr, fmt.Errorf("error walking directory %s: %w", dir, walkErr)
	}

	if len(sr.Errors) > 0 {
		// A deck that failed to import would otherwise look orphaned.
		s.logger.Warn("Skipping orphan cleanup after import errors", "source_id", sourceID, "errors", len(sr.Errors))
	} else {
		ids, err := s.db.CardIDsBySource(ctx, sourceID)
		if err != nil {
			return sr, err
		}
		for _, id := range ids {
			if found[id] {
				continue
			}
			s.logger.Info("Orphaned card, deleting", "card_id", id)
			if err := s.db.DeleteCard(ctx, id); err != nil {
				s.logger.Warn("Failed to delete orphaned card", "card_id", id, "error", err)
				continue
			}
			sr.Orphaned++
		}
	}

	if err := s.db.UpdateSourceLastScanned(ctx, sourceID, s.now()); err != nil {
		s.logger.Warn("Failed to update last scanned for source", "source_id", sourceID, "error", err)
	}

	s.logger.Info("Reconciliation complete",
		"path", dir,
		"decks", len(sr.Decks),
		"cards", sr.Cards,
		"orphaned_deleted", sr.Orphaned,
		"errors", len(sr.Errors),
	)
	return sr, nil
}
