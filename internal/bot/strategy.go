package bot

import (
	rand "math/rand/v2"

	"github.com/lox/voterps/internal/game"
)

// View is what a strategy sees when it has to act.
type View struct {
	Credits         int
	OpponentCredits int
	CurrentBet      int
	Hand            []game.Card
}

// Strategy decides a bot's bets, picks and votes.
type Strategy interface {
	// Bet returns the proposed bet. The server clamps it.
	Bet(v View) float64
	// Pick returns an index into v.Hand.
	Pick(v View) int
	// Vote returns a card index (0=rock, 1=paper, 2=scissors).
	Vote() int
}

// RandStrategy makes uniform random choices.
type RandStrategy struct {
	rng *rand.Rand
}

// NewRandStrategy creates a RandStrategy drawing from rng.
func NewRandStrategy(rng *rand.Rand) *RandStrategy {
	return &RandStrategy{rng: rng}
}

func (r *RandStrategy) Bet(v View) float64 {
	limit := min(v.Credits, v.OpponentCredits)
	if limit < 1 {
		return 1
	}
	return float64(1 + r.rng.IntN(limit))
}

func (r *RandStrategy) Pick(v View) int {
	if len(v.Hand) == 0 {
		return 0
	}
	return r.rng.IntN(len(v.Hand))
}

func (r *RandStrategy) Vote() int {
	return r.rng.IntN(len(game.AllCards))
}

// CallStrategy keeps the current bet, plays its first card and always
// votes for the same card.
type CallStrategy struct {
	Card game.Card
}

func (c CallStrategy) Bet(v View) float64 {
	return float64(v.CurrentBet)
}

func (c CallStrategy) Pick(View) int {
	return 0
}

func (c CallStrategy) Vote() int {
	for i, card := range game.AllCards {
		if card == c.Card {
			return i
		}
	}
	return 0
}
