package session

import (
	"context"
	"fmt"
	"time"

	"github.com/conorfennell/mamanxue/internal/domain"
	"github.com/conorfennell/mamanxue/internal/srs"
)

// GradeInput is a grade submitted for the current card.
type GradeInput struct {
	Grade domain.Grade
	// MarkHard flags the card as hard independently of the grade.
	MarkHard bool
	// Duration is the time spent on the card. Zero measures it from when
	// the card was put at the head of the queue.
	Duration time.Duration
}

// Grade schedules the current card, persists its new review record, logs
// the event and advances the queue. On a storage failure the current card
// stays in place so the same grade can be retried.
func (m *Manager) Grade(ctx context.Context, in GradeInput) (domain.ReviewState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cardID := m.state.CurrentCardID
	switch {
	case m.state.Loading:
		return domain.ReviewState{}, ErrLoading
	case cardID == "":
		return domain.ReviewState{}, ErrNoCurrentCard
	case !m.state.Revealed:
		return domain.ReviewState{}, ErrNotRevealed
	}

	now := m.clock()
	previous, err := m.store.GetReview(ctx, cardID)
	if err != nil {
		return domain.ReviewState{}, fmt.Errorf("%w: read review of card %s: %w", domain.ErrStorage, cardID, err)
	}

	next, err := srs.ScheduleNext(domain.PriorOf(previous), in.Grade, srs.Context{CardID: cardID, Now: now})
	if err != nil {
		return domain.ReviewState{}, err
	}
	next.Suspended = false
	next.HardFlag = in.MarkHard

	if err := m.store.PutReview(ctx, next); err != nil {
		m.logger.Error("Failed to save review", "card_id", cardID, "error", err)
		return domain.ReviewState{}, fmt.Errorf("%w: save review of card %s: %w", domain.ErrStorage, cardID, err)
	}

	duration := in.Duration
	if duration <= 0 && !m.shownAt.IsZero() {
		duration = now.Sub(m.shownAt)
	}
	entry := domain.ReviewLog{
		When:      now,
		CardID:    cardID,
		DeckID:    m.state.DeckID,
		Grade:     in.Grade,
		Mode:      m.state.Mode,
		Duration:  duration,
		SessionID: m.state.SessionID,
	}
	if _, err := m.store.AppendLog(ctx, entry); err != nil {
		m.logger.Warn("Failed to append review log", "card_id", cardID, "error", err)
	}

	m.logger.Debug("Card graded",
		"card_id", cardID,
		"grade", in.Grade.String(),
		"interval", next.Interval,
		"ease", next.Ease,
	)
	m.nextCard(&GradeResult{CardID: cardID, Grade: in.Grade, HardFlag: next.HardFlag})
	return next, nil
}

// Disable suspends the current card and removes it from the queue. It does
// not count as a graded or hard event.
func (m *Manager) Disable(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cardID := m.state.CurrentCardID
	if cardID == "" {
		return ErrNoCurrentCard
	}

	previous, err := m.store.GetReview(ctx, cardID)
	if err != nil {
		return fmt.Errorf("%w: read review of card %s: %w", domain.ErrStorage, cardID, err)
	}
	rs := srs.NewReviewState(cardID, m.clock())
	if previous != nil {
		rs = *previous
	}
	rs.Suspended = true

	if err := m.store.PutReview(ctx, rs); err != nil {
		return fmt.Errorf("%w: suspend card %s: %w", domain.ErrStorage, cardID, err)
	}
	m.logger.Info("Card suspended", "card_id", cardID)
	m.nextCard(&GradeResult{CardID: cardID})
	return nil
}
