// Package parser reads markdown deck files.
//
// A card is a block of prefixed lines. "FR:" (or "Q:") starts a new card
// with its front, "EN:" (or "A:") holds the back, "N:" (or "C:") holds notes
// and "T:" a comma separated tag list. Unprefixed lines continue the current
// field; a "---" line ends the card.
package parser

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/conorfennell/mamanxue/internal/domain"
)

type field int

const (
	seeking field = iota
	readingFront
	readingBack
	readingNotes
	readingTags
)

var prefixes = []struct {
	prefix string
	field  field
}{
	{"FR:", readingFront},
	{"Q:", readingFront},
	{"EN:", readingBack},
	{"A:", readingBack},
	{"N:", readingNotes},
	{"C:", readingNotes},
	{"T:", readingTags},
}

// ParseFile reads a file from the given path and extracts all cards.
func ParseFile(path string) ([]domain.Card, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return Parse(file)
}

// Parse reads from an io.Reader and extracts all cards. Cards without a
// front are dropped. Card ids and decks are left for the caller to assign.
func Parse(r io.Reader) ([]domain.Card, error) {
	p := &cardParser{}
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		p.line(scanner.Text())
	}
	p.finishCard() // Finish the very last card in the file

	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return p.cards, nil
}

type cardParser struct {
	cards   []domain.Card
	current domain.Card
	state   field
	block   []string
}

func (p *cardParser) line(line string) {
	if strings.TrimSpace(line) == "---" {
		p.finishCard()
		return
	}

	for _, pf := range prefixes {
		if !strings.HasPrefix(line, pf.prefix) {
			continue
		}
		p.flushField()
		if pf.field == readingFront && p.state != seeking {
			p.finishCard() // A new front always starts a new card
		}
		p.state = pf.field
		p.block = append(p.block, strings.TrimPrefix(line[len(pf.prefix):], " "))
		return
	}

	if p.state != seeking {
		p.block = append(p.block, line)
	}
}

// flushField stores the collected lines in the field being read.
func (p *cardParser) flushField() {
	if len(p.block) == 0 {
		return
	}
	content := strings.TrimSpace(strings.Join(p.block, "\n"))
	switch p.state {
	case readingFront:
		p.current.Front = content
	case readingBack:
		p.current.Back = content
	case readingNotes:
		p.current.Notes = content
	case readingTags:
		for _, tag := range strings.Split(content, ",") {
			if tag = strings.TrimSpace(tag); tag != "" {
				p.current.Tags = append(p.current.Tags, tag)
			}
		}
	}
	p.block = nil
}

func (p *cardParser) finishCard() {
	p.flushField()
	if p.current.Front != "" {
		p.cards = append(p.cards, p.current)
	}
	p.current = domain.Card{}
	p.state = seeking
}
