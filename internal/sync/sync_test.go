package sync

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conorfennell/mamanxue/internal/domain"
	"github.com/conorfennell/mamanxue/internal/storage"
)

var fixedNow = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

const jsonDeck = `{"id":"1_1","cards":[
 {"id":"c1","fr":"bonjour","en":"hello","audio":"c1.mp3"},
 {"id":"c2","fr":"merci","en":"thanks","audio":"c2.mp3"}
]}`

const markdownDeck = `Q: chat
A: cat
---
Q: chien
A: dog
`

func newSyncer(t *testing.T) (*Syncer, *storage.DB) {
	t.Helper()
	db, err := storage.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	s := New(db, Options{
		ReposDir: t.TempDir(),
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		Clock:    func() time.Time { return fixedNow },
	})
	return s, db
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(filepath.Join(dir, name)), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestAddSource(t *testing.T) {
	s, _ := newSyncer(t)
	ctx := context.Background()
	dir := t.TempDir()

	src, err := s.AddSource(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, storage.SourceLocal, src.Type)
	assert.True(t, filepath.IsAbs(src.Path))

	again, err := s.AddSource(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, src.ID, again.ID, "duplicate path should return the existing source")

	git, err := s.AddSource(ctx, "https://github.com/org/decks.git")
	require.NoError(t, err)
	assert.Equal(t, storage.SourceGit, git.Type)

	_, err = s.AddSource(ctx, filepath.Join(dir, "missing"))
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	_, err = s.AddSource(ctx, "  ")
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestRunSyncImportsAndRemovesOrphans(t *testing.T) {
	s, db := newSyncer(t)
	ctx := context.Background()
	dir := t.TempDir()
	writeFile(t, dir, "1_1.json", jsonDeck)
	writeFile(t, dir, "animals/2_1.md", markdownDeck)
	writeFile(t, dir, ".git/ignored.json", `not json`)
	writeFile(t, dir, "README.txt", "ignored")

	src, err := s.AddSource(ctx, dir)
	require.NoError(t, err)

	report, err := s.RunSync(ctx)
	require.NoError(t, err)
	require.Len(t, report.Sources, 1)
	sr := report.Sources[0]
	assert.Empty(t, sr.Errors)
	assert.ElementsMatch(t, []string{"1_1", "2_1"}, sr.Decks)
	assert.Equal(t, 4, sr.Cards)
	assert.Zero(t, sr.Orphaned)

	ids, err := db.CardIDsBySource(ctx, src.ID)
	require.NoError(t, err)
	assert.Len(t, ids, 4)

	sources, err := db.GetAllSources(ctx)
	require.NoError(t, err)
	require.NotNil(t, sources[0].LastScanned)
	assert.True(t, sources[0].LastScanned.Equal(fixedNow))

	require.NoError(t, os.Remove(filepath.Join(dir, "animals", "2_1.md")))
	report, err = s.RunSync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Sources[0].Orphaned)

	cards, err := db.CardsByDeck(ctx, "2_1")
	require.NoError(t, err)
	assert.Empty(t, cards)
	cards, err = db.CardsByDeck(ctx, "1_1")
	require.NoError(t, err)
	assert.Len(t, cards, 2)
}

func TestRunSyncKeepsCardsWhenADeckFails(t *testing.T) {
	s, db := newSyncer(t)
	ctx := context.Background()
	dir := t.TempDir()
	writeFile(t, dir, "1_1.json", jsonDeck)

	src, err := s.AddSource(ctx, dir)
	require.NoError(t, err)
	_, err = s.RunSync(ctx)
	require.NoError(t, err)

	writeFile(t, dir, "1_1.json", `{"id":"1_1","cards":[{"id":"c1"}]}`)
	report, err := s.RunSync(ctx)
	require.NoError(t, err)
	require.Len(t, report.Sources[0].Errors, 1)
	assert.Zero(t, report.Sources[0].Orphaned)

	ids, err := db.CardIDsBySource(ctx, src.ID)
	require.NoError(t, err)
	assert.Len(t, ids, 2)
}

func TestRunSyncGitSource(t *testing.T) {
	s, db := newSyncer(t)
	ctx := context.Background()

	var fetched []string
	s.fetch = func(_ context.Context, url, localPath string, _ *slog.Logger) error {
		fetched = append(fetched, url)
		writeFile(t, localPath, "decks/1_1.json", jsonDeck)
		return nil
	}

	_, err := s.AddSource(ctx, "https://github.com/org/decks.git")
	require.NoError(t, err)

	report, err := s.RunSync(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://github.com/org/decks.git"}, fetched)
	assert.Equal(t, 2, report.Sources[0].Cards)

	cards, err := db.CardsByDeck(ctx, "1_1")
	require.NoError(t, err)
	assert.Len(t, cards, 2)
}

func TestRunSyncNoSources(t *testing.T) {
	s, _ := newSyncer(t)
	report, err := s.RunSync(context.Background())
	require.NoError(t, err)
	assert.Empty(t, report.Sources)
}
