package domain

import "time"

// Grade is the user's three-point response to a card.
// 1: Again (fail)
// 2: Hard
// 3: Easy (success)
type Grade int

const (
	Again Grade = 1
	Hard  Grade = 2
	Easy  Grade = 3
)

// Valid reports whether g is one of Again, Hard or Easy.
func (g Grade) Valid() bool {
	return g >= Again && g <= Easy
}

func (g Grade) String() string {
	switch g {
	case Again:
		return "again"
	case Hard:
		return "hard"
	case Easy:
		return "easy"
	}
	return "unknown"
}

// ReviewState is the scheduling record of one card. A card without a stored
// ReviewState is new.
//
// Suspended and HardFlag default to false. The scheduler never changes them.
type ReviewState struct {
	CardID    string
	Interval  int       // days until Due; 0 means due immediately
	Due       time.Time // UTC
	Ease      float64   // always within [MinEase, MaxEase]
	Streak    int
	Lapses    int
	Suspended bool
	HardFlag  bool
}

const (
	DefaultEase = 2.5
	MinEase     = 1.3
	MaxEase     = 3.0
)

// Prior is the review history handed to the scheduler: either a card that
// was never reviewed or the last stored ReviewState.
type Prior struct {
	state    ReviewState
	reviewed bool
}

// Unreviewed is the prior of a card that has no stored ReviewState.
func Unreviewed() Prior {
	return Prior{}
}

// Reviewed wraps an existing ReviewState.
func Reviewed(rs ReviewState) Prior {
	return Prior{state: rs, reviewed: true}
}

// PriorOf converts an optional stored record into a Prior.
func PriorOf(rs *ReviewState) Prior {
	if rs == nil {
		return Unreviewed()
	}
	return Reviewed(*rs)
}

// State returns the wrapped record and whether one exists.
func (p Prior) State() (ReviewState, bool) {
	return p.state, p.reviewed
}

// IsReviewed reports whether a record exists.
func (p Prior) IsReviewed() bool {
	return p.reviewed
}
