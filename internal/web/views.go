package web

import (
	"time"

	"github.com/conorfennell/mamanxue/internal/domain"
	"github.com/conorfennell/mamanxue/internal/session"
	"github.com/conorfennell/mamanxue/internal/storage"
)

type cardView struct {
	ID         string   `json:"id"`
	DeckID     string   `json:"deckId"`
	Front      string   `json:"fr"`
	Back       string   `json:"en"`
	Audio      string   `json:"audio,omitempty"`
	AudioSlow  string   `json:"audio_slow,omitempty"`
	Notes      string   `json:"notes,omitempty"`
	Tags       []string `json:"tags,omitempty"`
	Sequence   *int     `json:"sequence,omitempty"`
	ExternalID string   `json:"externalId,omitempty"`
}

func newCardView(c domain.Card) cardView {
	return cardView{
		ID:         c.ID,
		DeckID:     c.DeckID,
		Front:      c.Front,
		Back:       c.Back,
		Audio:      c.Audio,
		AudioSlow:  c.AudioSlow,
		Notes:      c.Notes,
		Tags:       c.Tags,
		Sequence:   c.Sequence,
		ExternalID: c.ExternalID,
	}
}

type reviewView struct {
	CardID    string    `json:"cardId"`
	Interval  int       `json:"interval"`
	Due       time.Time `json:"due"`
	Ease      float64   `json:"ease"`
	Streak    int       `json:"streak"`
	Lapses    int       `json:"lapses"`
	Suspended bool      `json:"suspended"`
	HardFlag  bool      `json:"hardFlag"`
}

func newReviewView(rs domain.ReviewState) reviewView {
	return reviewView{
		CardID:    rs.CardID,
		Interval:  rs.Interval,
		Due:       rs.Due,
		Ease:      rs.Ease,
		Streak:    rs.Streak,
		Lapses:    rs.Lapses,
		Suspended: rs.Suspended,
		HardFlag:  rs.HardFlag,
	}
}

type deckCardView struct {
	cardView
	Review *reviewView `json:"review"`
}

func newDeckCardViews(cards []storage.DeckCard) []deckCardView {
	out := make([]deckCardView, 0, len(cards))
	for _, dc := range cards {
		v := deckCardView{cardView: newCardView(dc.Card)}
		if dc.Review != nil {
			rv := newReviewView(*dc.Review)
			v.Review = &rv
		}
		out = append(out, v)
	}
	return out
}

// promptView is the current card as shown to the learner. The answer side
// and the notes stay hidden until the card is revealed.
type promptView struct {
	CardID    string   `json:"cardId"`
	Prompt    string   `json:"prompt"`
	Answer    string   `json:"answer,omitempty"`
	Notes     string   `json:"notes,omitempty"`
	Audio     string   `json:"audio,omitempty"`
	AudioSlow string   `json:"audio_slow,omitempty"`
	Tags      []string `json:"tags,omitempty"`
}

func newPromptView(c domain.Card, mode domain.Mode, revealed bool) promptView {
	prompt, answer := c.Front, c.Back
	if mode == domain.ModeOutput {
		prompt, answer = c.Back, c.Front
	}
	v := promptView{
		CardID:    c.ID,
		Prompt:    prompt,
		Audio:     c.Audio,
		AudioSlow: c.AudioSlow,
		Tags:      c.Tags,
	}
	if revealed {
		v.Answer = answer
		v.Notes = c.Notes
	}
	return v
}

type sessionView struct {
	DeckID    string      `json:"deckId"`
	SessionID string      `json:"sessionId,omitempty"`
	Mode      domain.Mode `json:"mode"`
	Revealed  bool        `json:"revealed"`
	Repass    bool        `json:"repass"`
	Remaining int         `json:"remaining"`
	Queue     []string    `json:"queue"`
	HardQueue []string    `json:"hardQueue"`
	Card      *promptView `json:"card"`
	// CardError is set when the current card could not be loaded.
	CardError string `json:"cardError,omitempty"`
}

func newSessionView(st session.State, card *domain.Card) sessionView {
	v := sessionView{
		DeckID:    st.DeckID,
		SessionID: st.SessionID,
		Mode:      st.Mode,
		Revealed:  st.Revealed,
		Repass:    st.Repass,
		Remaining: len(st.Queue) + len(st.HardQueue),
		Queue:     st.Queue,
		HardQueue: st.HardQueue,
	}
	if v.Queue == nil {
		v.Queue = []string{}
	}
	if v.HardQueue == nil {
		v.HardQueue = []string{}
	}
	if card != nil {
		p := newPromptView(*card, st.Mode, st.Revealed)
		v.Card = &p
	}
	return v
}
