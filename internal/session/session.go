// Package session builds and advances the review queue of one deck.
//
// A Manager is constructed explicitly and owned by its caller. Every
// grading decision is flushed to the Store immediately, so a Manager can be
// reset or rebuilt at any time without losing progress.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/conorfennell/mamanxue/internal/domain"
)

// DefaultNewCardLimit caps the never-reviewed cards added per queue load.
const DefaultNewCardLimit = 10

// LastDeckKey is the settings key holding the last reviewed deck.
const LastDeckKey = "session.last_deck_id"

var (
	ErrNoCurrentCard = fmt.Errorf("%w: no card is under review", domain.ErrInvalidArgument)
	ErrNotRevealed   = fmt.Errorf("%w: the answer must be revealed before grading", domain.ErrInvalidArgument)
	ErrLoading       = errors.New("queue is loading")
	// ErrStaleLoad is returned by a load that was superseded by a later
	// load, reset or deck switch. Its results are discarded.
	ErrStaleLoad = errors.New("queue load superseded")
)

// Store is the persisted state the Manager reads and writes.
type Store interface {
	GetReview(ctx context.Context, cardID string) (*domain.ReviewState, error)
	PutReview(ctx context.Context, rs domain.ReviewState) error
	DueReviewsByDeck(ctx context.Context, deckID string, before time.Time) ([]domain.ReviewState, error)
	CardsByDeck(ctx context.Context, deckID string) ([]domain.Card, error)
	ReviewsForCards(ctx context.Context, cardIDs []string) ([]domain.ReviewState, error)
	GetCard(ctx context.Context, id string) (*domain.Card, error)
	AppendLog(ctx context.Context, entry domain.ReviewLog) (int64, error)
	GetSetting(ctx context.Context, key string) (string, bool, error)
	SetSetting(ctx context.Context, key, value string) error
	DeleteSetting(ctx context.Context, key string) error
}

// Options configures a Manager. Zero values select the defaults.
type Options struct {
	// NewCardLimit caps new cards per load. A negative limit admits none.
	NewCardLimit int
	Clock        func() time.Time
	Logger       *slog.Logger
	NewID        func() string
}

// State is a snapshot of the session queue.
type State struct {
	DeckID        string      `json:"deckId"`
	Queue         []string    `json:"queue"`
	HardQueue     []string    `json:"hardQueue"`
	CurrentCardID string      `json:"currentCardId"`
	Revealed      bool        `json:"revealed"`
	Loading       bool        `json:"loading"`
	Mode          domain.Mode `json:"mode"`
	SessionID     string      `json:"sessionId"`
	// Repass is set once the hard queue has been promoted. Cards graded
	// hard during the re-pass are not deferred again.
	Repass bool `json:"repass"`
}

// GradeResult describes how the current card was dealt with. A zero Grade
// means the card was removed without grading, for example on suspension.
type GradeResult struct {
	CardID   string
	Grade    domain.Grade
	HardFlag bool
}

// Manager is the session queue controller. It is safe for concurrent use;
// operations are serialized.
type Manager struct {
	store        Store
	newCardLimit int
	clock        func() time.Time
	logger       *slog.Logger
	newID        func() string

	mu         sync.Mutex
	state      State
	generation uint64
	shownAt    time.Time
}

// New creates a Manager with an empty queue.
func New(store Store, opts Options) *Manager {
	m := &Manager{
		store:        store,
		newCardLimit: opts.NewCardLimit,
		clock:        opts.Clock,
		logger:       opts.Logger,
		newID:        opts.NewID,
		state:        initialState(),
	}
	if m.newCardLimit == 0 {
		m.newCardLimit = DefaultNewCardLimit
	}
	if m.clock == nil {
		m.clock = time.Now
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	if m.newID == nil {
		m.newID = uuid.NewString
	}
	return m
}

func initialState() State {
	return State{Mode: domain.ModeInput}
}

// State returns a copy of the current session state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.state
	s.Queue = slices.Clone(s.Queue)
	s.HardQueue = slices.Clone(s.HardQueue)
	return s
}

// LoadQueueForToday replaces the queue with the deck's due cards followed by
// up to NewCardLimit never-reviewed cards. On a storage failure the queue is
// left empty and the error is returned.
func (m *Manager) LoadQueueForToday(ctx context.Context, deckID string) error {
	m.mu.Lock()
	m.generation++
	gen := m.generation
	mode := m.state.Mode
	m.state = State{DeckID: deckID, Loading: true, Mode: mode}
	m.mu.Unlock()

	now := m.clock()
	queue, err := m.buildQueue(ctx, deckID, now)

	m.mu.Lock()
	defer m.mu.Unlock()

	if gen != m.generation {
		m.logger.Debug("Discarding stale queue load", "deck_id", deckID)
		return ErrStaleLoad
	}
	if err == nil {
		err = m.store.SetSetting(ctx, LastDeckKey, deckID)
	}
	if err != nil {
		m.state = State{DeckID: deckID, Mode: mode}
		m.logger.Error("Failed to load queue for deck", "deck_id", deckID, "error", err)
		return fmt.Errorf("%w: load queue for deck %s: %w", domain.ErrStorage, deckID, err)
	}

	m.state = State{
		DeckID:    deckID,
		Queue:     queue,
		Mode:      mode,
		SessionID: m.newID(),
	}
	if len(queue) > 0 {
		m.state.CurrentCardID = queue[0]
	}
	m.shownAt = now
	m.logger.Info("Queue loaded", "deck_id", deckID, "cards", len(queue), "session_id", m.state.SessionID)
	return nil
}

// buildQueue composes due ids (earliest due first) followed by new card ids.
// Suspended cards never appear and each id appears once.
func (m *Manager) buildQueue(ctx context.Context, deckID string, now time.Time) ([]string, error) {
	dueReviews, err := m.store.DueReviewsByDeck(ctx, deckID, now)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(dueReviews, func(i, j int) bool {
		return dueReviews[i].Due.Before(dueReviews[j].Due)
	})

	cards, err := m.store.CardsByDeck(ctx, deckID)
	if err != nil {
		return nil, err
	}
	domain.SortCards(cards)

	cardIDs := make([]string, len(cards))
	for i, c := range cards {
		cardIDs[i] = c.ID
	}
	existing, err := m.store.ReviewsForCards(ctx, cardIDs)
	if err != nil {
		return nil, err
	}
	reviewed := make(map[string]bool, len(existing))
	suspended := make(map[string]bool)
	for _, rs := range existing {
		reviewed[rs.CardID] = true
		if rs.Suspended {
			suspended[rs.CardID] = true
		}
	}

	var newIDs []string
	for _, id := range cardIDs {
		if len(newIDs) >= m.newCardLimit {
			break
		}
		if !reviewed[id] && !suspended[id] {
			newIDs = append(newIDs, id)
		}
	}

	queue := make([]string, 0, len(dueReviews)+len(newIDs))
	seen := make(map[string]bool, cap(queue))
	add := func(id string) {
		if suspended[id] || seen[id] {
			return
		}
		seen[id] = true
		queue = append(queue, id)
	}
	for _, rs := range dueReviews {
		if !rs.Suspended {
			add(rs.CardID)
		}
	}
	for _, id := range newIDs {
		add(id)
	}
	return queue, nil
}

// Reveal marks the answer side of the current card as shown.
func (m *Manager) Reveal() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.Revealed = true
}

// NextCard advances the queue past result.CardID, or past the current card
// when result is nil.
func (m *Manager) NextCard(result *GradeResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextCard(result)
}

// nextCard removes the active card from both queues and defers it to the
// hard queue when it was graded Hard or flagged. Once the primary queue runs
// dry the hard queue is promoted for exactly one more pass.
func (m *Manager) nextCard(result *GradeResult) {
	activeID := m.state.CurrentCardID
	if result != nil && result.CardID != "" {
		activeID = result.CardID
	}
	m.state.Revealed = false
	if activeID == "" {
		return
	}

	queue := remove(m.state.Queue, activeID)
	hard := remove(m.state.HardQueue, activeID)

	isHard := result != nil && (result.Grade == domain.Hard || result.HardFlag)
	if isHard && !m.state.Repass && !slices.Contains(hard, activeID) {
		hard = append(hard, activeID)
	}

	if len(queue) == 0 && len(hard) > 0 {
		queue = hard
		hard = nil
		m.state.Repass = true
	}

	m.state.Queue = queue
	m.state.HardQueue = hard
	m.state.CurrentCardID = ""
	if len(queue) > 0 {
		m.state.CurrentCardID = queue[0]
	}
	m.shownAt = m.clock()
}

func remove(ids []string, id string) []string {
	out := make([]string, 0, len(ids))
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

// ResetSession clears the queue and forgets the last reviewed deck.
func (m *Manager) ResetSession(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.generation++
	m.state = initialState()
	if err := m.store.DeleteSetting(ctx, LastDeckKey); err != nil {
		return fmt.Errorf("%w: forget last deck: %w", domain.ErrStorage, err)
	}
	return nil
}

// SetDeck switches to another deck without loading it. The in-progress
// queue is discarded.
func (m *Manager) SetDeck(ctx context.Context, deckID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if deckID == m.state.DeckID {
		return nil
	}
	m.generation++
	m.state = State{DeckID: deckID, Mode: m.state.Mode}

	var err error
	if deckID == "" {
		err = m.store.DeleteSetting(ctx, LastDeckKey)
	} else {
		err = m.store.SetSetting(ctx, LastDeckKey, deckID)
	}
	if err != nil {
		return fmt.Errorf("%w: remember deck %s: %w", domain.ErrStorage, deckID, err)
	}
	return nil
}

// SetMode changes the review direction.
func (m *Manager) SetMode(mode domain.Mode) error {
	if !mode.Valid() {
		return fmt.Errorf("%w: unknown mode %q", domain.ErrInvalidArgument, mode)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.Mode = mode
	return nil
}

// LastDeck returns the deck of the most recent load, if any.
func (m *Manager) LastDeck(ctx context.Context) (string, bool, error) {
	deckID, ok, err := m.store.GetSetting(ctx, LastDeckKey)
	if err != nil {
		return "", false, fmt.Errorf("%w: read last deck: %w", domain.ErrStorage, err)
	}
	return deckID, ok, nil
}

// CurrentCard fetches the card at the head of the queue.
func (m *Manager) CurrentCard(ctx context.Context) (domain.Card, error) {
	m.mu.Lock()
	id := m.state.CurrentCardID
	m.mu.Unlock()

	if id == "" {
		return domain.Card{}, ErrNoCurrentCard
	}
	card, err := m.store.GetCard(ctx, id)
	if err != nil {
		return domain.Card{}, fmt.Errorf("%w: load card %s: %w", domain.ErrStorage, id, err)
	}
	if card == nil {
		return domain.Card{}, fmt.Errorf("unable to load card %s: %w", id, domain.ErrNotFound)
	}
	return *card, nil
}
