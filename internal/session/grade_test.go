package session

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conorfennell/mamanxue/internal/domain"
)

func countLogs(t *testing.T, f *fixture) int {
	t.Helper()
	stats, err := f.db.ReviewStats(context.Background(), f.now)
	require.NoError(t, err)
	return stats.TodayReviewed
}

func TestGradeRequiresReveal(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 10)

	_, err := f.manager.Grade(ctx, GradeInput{Grade: domain.Easy})
	assert.ErrorIs(t, err, ErrNoCurrentCard)

	f.addCards(t, "deck", "a")
	require.NoError(t, f.manager.LoadQueueForToday(ctx, "deck"))
	_, err = f.manager.Grade(ctx, GradeInput{Grade: domain.Easy})
	assert.ErrorIs(t, err, ErrNotRevealed)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	assert.Equal(t, "a", f.manager.State().CurrentCardID)
}

func TestGradePersistsAndAdvances(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 10)
	f.addCards(t, "deck", "a", "b")
	require.NoError(t, f.manager.LoadQueueForToday(ctx, "deck"))

	f.now = testNow.Add(5 * time.Second)
	f.manager.Reveal()
	next, err := f.manager.Grade(ctx, GradeInput{Grade: domain.Easy})
	require.NoError(t, err)
	assert.Equal(t, 1, next.Interval)
	assert.InDelta(t, 2.65, next.Ease, 1e-9)

	stored, err := f.db.GetReview(ctx, "a")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, 1, stored.Streak)
	assert.True(t, stored.Due.Equal(f.now.AddDate(0, 0, 1)))
	assert.False(t, stored.HardFlag)

	state := f.manager.State()
	assert.Equal(t, []string{"b"}, state.Queue)
	assert.Equal(t, "b", state.CurrentCardID)
	assert.False(t, state.Revealed)
	assert.Equal(t, 1, countLogs(t, f))
}

func TestGradeInvalidGradePropagates(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 10)
	f.addCards(t, "deck", "a")
	require.NoError(t, f.manager.LoadQueueForToday(ctx, "deck"))
	f.manager.Reveal()

	_, err := f.manager.Grade(ctx, GradeInput{Grade: 7})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	assert.Equal(t, "a", f.manager.State().CurrentCardID)
}

func TestGradeMarkHard(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 10)
	f.addCards(t, "deck", "a", "b")
	f.addReview(t, domain.ReviewState{CardID: "b", Interval: 3, Due: testNow.Add(-time.Hour), HardFlag: true})
	require.NoError(t, f.manager.LoadQueueForToday(ctx, "deck"))
	require.Equal(t, "b", f.manager.State().CurrentCardID)

	// an existing hard flag is cleared when not marked again
	f.manager.Reveal()
	next, err := f.manager.Grade(ctx, GradeInput{Grade: domain.Easy})
	require.NoError(t, err)
	assert.False(t, next.HardFlag)

	f.manager.Reveal()
	next, err = f.manager.Grade(ctx, GradeInput{Grade: domain.Easy, MarkHard: true})
	require.NoError(t, err)
	assert.True(t, next.HardFlag)

	stored, err := f.db.GetReview(ctx, "a")
	require.NoError(t, err)
	assert.True(t, stored.HardFlag)

	state := f.manager.State()
	assert.Equal(t, []string{"a"}, state.Queue, "marked card is promoted for a re-pass")
	assert.True(t, state.Repass)
}

func TestGradeUnsuspends(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 10)
	f.addCards(t, "deck", "a")
	require.NoError(t, f.manager.LoadQueueForToday(ctx, "deck"))

	// suspended concurrently, after the queue was built
	require.NoError(t, f.db.SetCardSuspended(ctx, "a", true, testNow))
	f.manager.Reveal()
	next, err := f.manager.Grade(ctx, GradeInput{Grade: domain.Again})
	require.NoError(t, err)
	assert.False(t, next.Suspended)
	assert.Equal(t, 1, next.Lapses)
}

func TestGradeAllHardPromotesQueue(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 10)
	f.addCards(t, "deck", "a", "b", "c")
	require.NoError(t, f.manager.LoadQueueForToday(ctx, "deck"))

	for i := 0; i < 3; i++ {
		f.manager.Reveal()
		_, err := f.manager.Grade(ctx, GradeInput{Grade: domain.Hard})
		require.NoError(t, err)
	}

	state := f.manager.State()
	assert.Equal(t, []string{"a", "b", "c"}, state.Queue)
	assert.Empty(t, state.HardQueue)
	assert.Equal(t, 3, countLogs(t, f))
}

func TestGradeStorageFailureKeepsCard(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 10)
	f.addCards(t, "deck", "a", "b")

	store := &failingStore{DB: f.db}
	m := New(store, Options{Clock: func() time.Time { return testNow }, Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	require.NoError(t, m.LoadQueueForToday(ctx, "deck"))
	m.Reveal()

	store.failPut = true
	_, err := m.Grade(ctx, GradeInput{Grade: domain.Easy})
	assert.ErrorIs(t, err, domain.ErrStorage)
	state := m.State()
	assert.Equal(t, "a", state.CurrentCardID)
	assert.True(t, state.Revealed)
	assert.Equal(t, []string{"a", "b"}, state.Queue)

	// the same grade can be retried; a failing log does not block it
	store.failPut = false
	store.failLog = true
	_, err = m.Grade(ctx, GradeInput{Grade: domain.Easy})
	require.NoError(t, err)
	assert.Equal(t, "b", m.State().CurrentCardID)
}

func TestDisableSuspendsAndSkips(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 10)
	f.addCards(t, "deck", "a", "b")
	f.addReview(t, domain.ReviewState{CardID: "b", Interval: 2, Due: testNow.Add(-time.Hour)})
	require.NoError(t, f.manager.LoadQueueForToday(ctx, "deck"))
	require.Equal(t, []string{"b", "a"}, f.manager.State().Queue)

	require.NoError(t, f.manager.Disable(ctx))
	state := f.manager.State()
	assert.Equal(t, []string{"a"}, state.Queue)
	assert.Empty(t, state.HardQueue)

	require.NoError(t, f.manager.Disable(ctx))
	assert.Empty(t, f.manager.State().Queue)

	stored, err := f.db.GetReview(ctx, "a")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.True(t, stored.Suspended)
	assert.Equal(t, domain.DefaultEase, stored.Ease)

	stored, err = f.db.GetReview(ctx, "b")
	require.NoError(t, err)
	assert.True(t, stored.Suspended)
	assert.Equal(t, 2, stored.Interval)

	// suspended cards stay out of later loads regardless of due date
	f.now = testNow.AddDate(0, 1, 0)
	require.NoError(t, f.manager.LoadQueueForToday(ctx, "deck"))
	assert.Empty(t, f.manager.State().Queue)
	assert.Equal(t, 0, countLogs(t, f))

	assert.ErrorIs(t, f.manager.Disable(ctx), ErrNoCurrentCard)
}

func TestGradeReturnsStoredRecord(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 10)
	f.addCards(t, "deck", "a")
	require.NoError(t, f.manager.LoadQueueForToday(ctx, "deck"))

	f.now = testNow.Add(1234567 * time.Nanosecond)
	f.manager.Reveal()
	next, err := f.manager.Grade(ctx, GradeInput{Grade: domain.Easy})
	require.NoError(t, err)

	stored, err := f.db.GetReview(ctx, "a")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.True(t, next.Due.Equal(stored.Due), "returned due %v, stored due %v", next.Due, stored.Due)
	assert.True(t, stored.Due.Equal(testNow.Add(time.Millisecond).AddDate(0, 0, 1)))
	next.Due, stored.Due = time.Time{}, time.Time{}
	assert.Equal(t, next, *stored)
}
