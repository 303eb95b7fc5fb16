package storage

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conorfennell/mamanxue/internal/domain"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func intPtr(n int) *int { return &n }

func date(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, s)
	require.NoError(t, err)
	return ts
}

func TestMigrationsAreIdempotent(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.migrate())

	var n int
	require.NoError(t, db.conn.QueryRow(`SELECT COUNT(*) FROM schema_migrations`).Scan(&n))
	assert.Equal(t, len(migrations), n)
}

func TestCardRoundTrip(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	card := domain.Card{
		ID:        "1_1-001",
		DeckID:    "1_1",
		Front:     "Bonjour",
		Back:      "Hello",
		Audio:     "audio/1_1/001.mp3",
		AudioSlow: "audio/1_1/001_slow.mp3",
		Notes:     "greeting",
		Tags:      []string{"basics", "greetings"},
		Sequence:  intPtr(4),
	}
	require.NoError(t, db.UpsertCard(ctx, card, nil))

	got, err := db.GetCard(ctx, card.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, card, *got)

	missing, err := db.GetCard(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	card.Back = "Hi"
	card.Sequence = nil
	require.NoError(t, db.UpsertCard(ctx, card, nil))
	got, err = db.GetCard(ctx, card.ID)
	require.NoError(t, err)
	assert.Equal(t, "Hi", got.Back)
	assert.Nil(t, got.Sequence)
}

func TestCardsByDeckOrdering(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	for _, c := range []domain.Card{
		{ID: "b", DeckID: "d", Front: "f", Back: "b"},
		{ID: "a", DeckID: "d", Front: "f", Back: "b"},
		{ID: "z", DeckID: "d", Front: "f", Back: "b", Sequence: intPtr(2)},
		{ID: "y", DeckID: "d", Front: "f", Back: "b", Sequence: intPtr(1)},
		{ID: "other", DeckID: "e", Front: "f", Back: "b"},
	} {
		require.NoError(t, db.UpsertCard(ctx, c, nil))
	}

	cards, err := db.CardsByDeck(ctx, "d")
	require.NoError(t, err)
	var ids []string
	for _, c := range cards {
		ids = append(ids, c.ID)
	}
	assert.Equal(t, []string{"y", "z", "a", "b"}, ids)
}

func TestReviews(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	for _, id := range []string{"c1", "c2", "c3", "c4"} {
		require.NoError(t, db.UpsertCard(ctx, domain.Card{ID: id, DeckID: "d", Front: "f", Back: "b"}, nil))
	}
	require.NoError(t, db.UpsertCard(ctx, domain.Card{ID: "x1", DeckID: "other", Front: "f", Back: "b"}, nil))

	now := date(t, "2025-01-10T12:00:00Z")
	require.NoError(t, db.PutReview(ctx, domain.ReviewState{CardID: "c1", Interval: 3, Due: now.Add(-time.Hour), Ease: 2.5}))
	require.NoError(t, db.PutReview(ctx, domain.ReviewState{CardID: "c2", Interval: 1, Due: now.Add(-48 * time.Hour), Ease: 2.2, HardFlag: true}))
	require.NoError(t, db.PutReview(ctx, domain.ReviewState{CardID: "c3", Due: now.Add(-time.Hour), Ease: 2.5, Suspended: true}))
	require.NoError(t, db.PutReview(ctx, domain.ReviewState{CardID: "c4", Due: now.Add(time.Hour), Ease: 2.5}))
	require.NoError(t, db.PutReview(ctx, domain.ReviewState{CardID: "x1", Due: now.Add(-time.Hour), Ease: 2.5}))

	t.Run("get", func(t *testing.T) {
		rs, err := db.GetReview(ctx, "c2")
		require.NoError(t, err)
		require.NotNil(t, rs)
		assert.Equal(t, 1, rs.Interval)
		assert.InDelta(t, 2.2, rs.Ease, 1e-9)
		assert.True(t, rs.HardFlag)
		assert.True(t, rs.Due.Equal(now.Add(-48*time.Hour)))

		missing, err := db.GetReview(ctx, "c9")
		require.NoError(t, err)
		assert.Nil(t, missing)
	})

	t.Run("due by deck", func(t *testing.T) {
		due, err := db.DueReviewsByDeck(ctx, "d", now)
		require.NoError(t, err)
		require.Len(t, due, 2)
		assert.Equal(t, "c2", due[0].CardID)
		assert.Equal(t, "c1", due[1].CardID)
	})

	t.Run("for cards", func(t *testing.T) {
		reviews, err := db.ReviewsForCards(ctx, []string{"c1", "c3", "c9"})
		require.NoError(t, err)
		assert.Len(t, reviews, 2)

		none, err := db.ReviewsForCards(ctx, nil)
		require.NoError(t, err)
		assert.Empty(t, none)
	})
}

func TestReviewsForManyCards(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	now := date(t, "2025-01-10T12:00:00Z")

	ids := make([]string, 40000)
	for i := range ids {
		ids[i] = fmt.Sprintf("card-%05d", i)
	}
	for _, id := range []string{ids[0], ids[20000], ids[39999]} {
		require.NoError(t, db.PutReview(ctx, domain.ReviewState{CardID: id, Due: now, Ease: domain.DefaultEase}))
	}

	reviews, err := db.ReviewsForCards(ctx, ids)
	require.NoError(t, err)
	assert.Len(t, reviews, 3)

	old := maxBindVars
	maxBindVars = 2
	t.Cleanup(func() { maxBindVars = old })

	reviews, err = db.ReviewsForCards(ctx, []string{ids[0], "missing", ids[20000], ids[39999], "other"})
	require.NoError(t, err)
	got := make([]string, 0, len(reviews))
	for _, rs := range reviews {
		got = append(got, rs.CardID)
	}
	assert.ElementsMatch(t, []string{ids[0], ids[20000], ids[39999]}, got)
}

func TestFlagsCreateDefaultRecord(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	now := date(t, "2025-01-10T12:00:00Z")

	require.NoError(t, db.SetCardSuspended(ctx, "fresh", true, now))
	rs, err := db.GetReview(ctx, "fresh")
	require.NoError(t, err)
	require.NotNil(t, rs)
	assert.True(t, rs.Suspended)
	assert.Equal(t, domain.DefaultEase, rs.Ease)
	assert.Equal(t, 0, rs.Interval)

	require.NoError(t, db.SetCardHardFlag(ctx, "fresh", true, now))
	require.NoError(t, db.SetCardSuspended(ctx, "fresh", false, now))
	rs, err = db.GetReview(ctx, "fresh")
	require.NoError(t, err)
	assert.False(t, rs.Suspended)
	assert.True(t, rs.HardFlag)
}

func TestWithTxRollsBack(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	boom := errors.New("boom")

	err := db.WithTx(ctx, func(tx *DB) error {
		require.NoError(t, tx.SetSetting(ctx, "k", "v"))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, ok, err := db.GetSetting(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSettings(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	require.NoError(t, db.SetSetting(ctx, "last_deck", "1_1"))
	require.NoError(t, db.SetSetting(ctx, "last_deck", "1_2"))
	v, ok, err := db.GetSetting(ctx, "last_deck")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "1_2", v)

	require.NoError(t, db.DeleteSetting(ctx, "last_deck"))
	_, ok, err = db.GetSetting(ctx, "last_deck")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestListDecks(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	now := date(t, "2025-01-10T08:00:00Z")

	for _, c := range []domain.Card{
		{ID: "a1", DeckID: "a"}, {ID: "a2", DeckID: "a"}, {ID: "a3", DeckID: "a"}, {ID: "a4", DeckID: "a"},
		{ID: "b1", DeckID: "b"},
	} {
		require.NoError(t, db.UpsertCard(ctx, c, nil))
	}
	// due later today still counts as due today
	require.NoError(t, db.PutReview(ctx, domain.ReviewState{CardID: "a1", Due: now.Add(10 * time.Hour), Ease: 2.5, HardFlag: true}))
	require.NoError(t, db.PutReview(ctx, domain.ReviewState{CardID: "a2", Due: now.Add(48 * time.Hour), Ease: 2.5}))
	require.NoError(t, db.PutReview(ctx, domain.ReviewState{CardID: "a3", Due: now, Ease: 2.5, Suspended: true, HardFlag: true}))

	decks, err := db.ListDecks(ctx, now)
	require.NoError(t, err)
	require.Len(t, decks, 2)
	assert.Equal(t, DeckSummary{DeckID: "a", Total: 4, DueToday: 1, HardCount: 1, NewCount: 1, Suspended: 1}, decks[0])
	assert.Equal(t, DeckSummary{DeckID: "b", Total: 1, NewCount: 1}, decks[1])
}

func TestRenameAndDeleteDeck(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	now := date(t, "2025-01-10T08:00:00Z")

	require.NoError(t, db.UpsertCard(ctx, domain.Card{ID: "a1", DeckID: "a"}, nil))
	require.NoError(t, db.UpsertCard(ctx, domain.Card{ID: "b1", DeckID: "b"}, nil))
	require.NoError(t, db.PutReview(ctx, domain.ReviewState{CardID: "a1", Due: now, Ease: 2.5}))
	_, err := db.AppendLog(ctx, domain.ReviewLog{When: now, CardID: "a1", DeckID: "a", Grade: domain.Easy, Mode: domain.ModeInput})
	require.NoError(t, err)

	assert.ErrorIs(t, db.RenameDeck(ctx, "a", "  "), domain.ErrInvalidArgument)
	assert.ErrorIs(t, db.RenameDeck(ctx, "a", "b"), domain.ErrInvalidArgument)
	assert.ErrorIs(t, db.RenameDeck(ctx, "missing", "c"), domain.ErrNotFound)
	require.NoError(t, db.RenameDeck(ctx, "a", " c "))

	cards, err := db.CardsByDeck(ctx, "c")
	require.NoError(t, err)
	require.Len(t, cards, 1)

	require.NoError(t, db.DeleteDeck(ctx, "c"))
	card, err := db.GetCard(ctx, "a1")
	require.NoError(t, err)
	assert.Nil(t, card)
	rs, err := db.GetReview(ctx, "a1")
	require.NoError(t, err)
	assert.Nil(t, rs)

	var logs int
	require.NoError(t, db.conn.QueryRow(`SELECT COUNT(*) FROM review_logs`).Scan(&logs))
	assert.Zero(t, logs)
}

func TestReviewStats(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	now := date(t, "2025-01-10T18:00:00Z")

	for _, when := range []time.Time{
		now.Add(-time.Hour),
		now.Add(-2 * time.Hour),
		now.AddDate(0, 0, -1),
		now.AddDate(0, 0, -3),
	} {
		_, err := db.AppendLog(ctx, domain.ReviewLog{When: when, CardID: "c", DeckID: "d", Grade: domain.Hard, Mode: domain.ModeOutput, Duration: 1500 * time.Millisecond})
		require.NoError(t, err)
	}

	stats, err := db.ReviewStats(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TodayReviewed)
	assert.Equal(t, 2, stats.Streak)
	require.NotNil(t, stats.LastReviewed)
	assert.True(t, stats.LastReviewed.Equal(now.Add(-time.Hour)))
	require.Len(t, stats.DailyCounts, statsDays)
	assert.Equal(t, "2025-01-10", stats.DailyCounts[statsDays-1].Date)
	assert.Equal(t, 1, stats.DailyCounts[statsDays-4].Count)
}

func TestDueForecast(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	now := date(t, "2025-01-10T18:00:00Z")

	require.NoError(t, db.PutReview(ctx, domain.ReviewState{CardID: "a", Due: now.Add(-12 * time.Hour), Ease: 2.5}))
	require.NoError(t, db.PutReview(ctx, domain.ReviewState{CardID: "b", Due: now.AddDate(0, 0, 2), Ease: 2.5}))
	require.NoError(t, db.PutReview(ctx, domain.ReviewState{CardID: "c", Due: now.AddDate(0, 0, 2), Ease: 2.5, Suspended: true}))
	require.NoError(t, db.PutReview(ctx, domain.ReviewState{CardID: "d", Due: now.AddDate(0, 0, 9), Ease: 2.5}))

	forecast, err := db.DueForecast(ctx, now, 7)
	require.NoError(t, err)
	require.Len(t, forecast, 7)
	assert.Equal(t, DailyCount{Date: "2025-01-10", Count: 1}, forecast[0])
	assert.Equal(t, DailyCount{Date: "2025-01-12", Count: 1}, forecast[2])
	total := 0
	for _, d := range forecast {
		total += d.Count
	}
	assert.Equal(t, 2, total)
}

func TestSources(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	id, err := db.InsertSource(ctx, "./decks", SourceLocal)
	require.NoError(t, err)
	require.NoError(t, db.UpsertCard(ctx, domain.Card{ID: "s1", DeckID: "d"}, &id))

	ids, err := db.CardIDsBySource(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []string{"s1"}, ids)

	at := date(t, "2025-01-10T18:00:00Z")
	require.NoError(t, db.UpdateSourceLastScanned(ctx, id, at))
	src, err := db.FindSourceByPath(ctx, "./decks")
	require.NoError(t, err)
	require.NotNil(t, src)
	require.NotNil(t, src.LastScanned)
	assert.True(t, src.LastScanned.Equal(at))

	require.NoError(t, db.DeleteSource(ctx, id))
	assert.ErrorIs(t, db.DeleteSource(ctx, id), domain.ErrNotFound)

	card, err := db.GetCard(ctx, "s1")
	require.NoError(t, err)
	assert.NotNil(t, card, "cards outlive their source")
}
