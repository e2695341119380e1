package game

import (
	"fmt"
	"strings"
)

// Card is one of the three rock-paper-scissors cards.
type Card int

const (
	Rock Card = iota
	Paper
	Scissors
)

// numCards is the size of the card enumeration. Vote indices must be below it.
const numCards = 3

// AllCards lists every card in vote-index order.
var AllCards = [numCards]Card{Rock, Paper, Scissors}

// String returns the lower-case card name
func (c Card) String() string {
	switch c {
	case Rock:
		return "rock"
	case Paper:
		return "paper"
	case Scissors:
		return "scissors"
	default:
		return "?"
	}
}

// Valid reports whether c is one of the three defined cards.
func (c Card) Valid() bool {
	switch c {
	case Rock, Paper, Scissors:
		return true
	default:
		return false
	}
}

// Beats returns the card that c defeats.
func (c Card) Beats() Card {
	switch c {
	case Rock:
		return Scissors
	case Paper:
		return Rock
	case Scissors:
		return Paper
	default:
		panic(fmt.Sprintf("game: invalid card %d", int(c)))
	}
}

// LosesTo returns the card that defeats c.
func (c Card) LosesTo() Card {
	switch c {
	case Rock:
		return Paper
	case Paper:
		return Scissors
	case Scissors:
		return Rock
	default:
		panic(fmt.Sprintf("game: invalid card %d", int(c)))
	}
}

// CardFromIndex maps a vote index (0=rock, 1=paper, 2=scissors) to a card.
func CardFromIndex(idx int) (Card, bool) {
	if idx < 0 || idx >= numCards {
		return 0, false
	}
	return AllCards[idx], true
}

// ParseCard parses a card name, case-insensitively.
func ParseCard(s string) (Card, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "rock", "r":
		return Rock, nil
	case "paper", "p":
		return Paper, nil
	case "scissors", "s":
		return Scissors, nil
	default:
		return 0, fmt.Errorf("invalid card: %q", s)
	}
}

// MarshalText encodes the card by name for JSON payloads.
func (c Card) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("invalid card: %d", int(c))
	}
	return []byte(c.String()), nil
}

// UnmarshalText decodes a card name.
func (c *Card) UnmarshalText(text []byte) error {
	parsed, err := ParseCard(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Compare returns 1 if a beats b, -1 if b beats a and 0 for equal cards.
func Compare(a, b Card) int {
	switch {
	case a == b:
		return 0
	case a.Beats() == b:
		return 1
	default:
		return -1
	}
}
