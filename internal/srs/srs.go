// Package srs implements the three-grade review scheduler.
package srs

import (
	"fmt"
	"math"
	"time"

	"github.com/conorfennell/mamanxue/internal/domain"
)

const (
	againEaseDelta = -0.30
	hardEaseDelta  = -0.15
	easyEaseDelta  = 0.15

	// hardIntervalFactor stretches the prior interval on a Hard grade.
	hardIntervalFactor = 1.2
)

// Context carries the optional inputs of ScheduleNext.
type Context struct {
	CardID string    // required when the prior is Unreviewed
	Now    time.Time // defaults to time.Now()
}

// NewReviewState returns the default record of a card that was never graded.
func NewReviewState(cardID string, now time.Time) domain.ReviewState {
	return domain.ReviewState{
		CardID:   cardID,
		Interval: 0,
		Due:      now.UTC().Truncate(time.Millisecond),
		Ease:     domain.DefaultEase,
		Streak:   0,
		Lapses:   0,
	}
}

// IsDue reports whether rs may be reviewed at now. Suspended cards are never due.
func IsDue(rs domain.ReviewState, now time.Time) bool {
	if rs.Suspended {
		return false
	}
	return !rs.Due.After(now)
}

// ScheduleNext computes the record that follows a grading event.
// It performs no I/O; given ctx.Now the result is deterministic.
func ScheduleNext(prior domain.Prior, grade domain.Grade, ctx Context) (domain.ReviewState, error) {
	if !grade.Valid() {
		return domain.ReviewState{}, fmt.Errorf("%w: unsupported grade %d", domain.ErrInvalidArgument, grade)
	}

	now := ctx.Now
	if now.IsZero() {
		now = time.Now()
	}
	// Stored timestamps keep millisecond precision.
	now = now.UTC().Truncate(time.Millisecond)

	base, first := prior.State()
	first = !first
	if first {
		if ctx.CardID == "" {
			return domain.ReviewState{}, fmt.Errorf("%w: a card identifier must be supplied when no prior review exists", domain.ErrInvalidArgument)
		}
		base = NewReviewState(ctx.CardID, now)
	}

	next := base
	switch grade {
	case domain.Again:
		next.Ease = clampEase(base.Ease + againEaseDelta)
		next.Interval = 0
		next.Streak = 0
		next.Lapses = base.Lapses + 1
	case domain.Hard:
		next.Ease = clampEase(base.Ease + hardEaseDelta)
		if first {
			next.Interval = 1
			next.Streak = 1
		} else {
			next.Interval = max(1, roundDays(priorInterval(base)*hardIntervalFactor))
			next.Streak = max(1, base.Streak)
		}
	case domain.Easy:
		next.Ease = clampEase(base.Ease + easyEaseDelta)
		if first {
			next.Interval = 1
		} else {
			next.Interval = max(1, roundDays(priorInterval(base)*next.Ease))
		}
		next.Streak = base.Streak + 1
	}

	if grade == domain.Again {
		next.Due = now
	} else {
		next.Due = addDays(now, next.Interval)
	}
	return next, nil
}

// clampEase keeps ease within [MinEase, MaxEase]; non-finite values fall back
// to the default.
func clampEase(ease float64) float64 {
	if math.IsNaN(ease) || math.IsInf(ease, 0) {
		ease = domain.DefaultEase
	}
	return math.Min(domain.MaxEase, math.Max(domain.MinEase, ease))
}

func priorInterval(rs domain.ReviewState) float64 {
	if rs.Interval > 0 {
		return float64(rs.Interval)
	}
	return 1
}

// roundDays rounds half away from zero.
func roundDays(days float64) int {
	return int(math.Round(days))
}

// addDays advances the UTC calendar date, keeping the time of day.
func addDays(t time.Time, days int) time.Time {
	if days < 0 {
		days = 0
	}
	return t.UTC().AddDate(0, 0, days)
}
