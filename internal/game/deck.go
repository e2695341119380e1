package game

import rand "math/rand/v2"

// FillDeck appends uniformly random cards until the deck holds at least size cards.
func FillDeck(cards []Card, size int, rng *rand.Rand) []Card {
	for len(cards) < size {
		cards = append(cards, AllCards[rng.IntN(numCards)])
	}
	return cards
}

// Shuffle randomizes the order of cards in place (Fisher-Yates).
func Shuffle(cards []Card, rng *rand.Rand) {
	for i := len(cards) - 1; i > 0; i-- {
		j := rng.IntN(i + 1)
		cards[i], cards[j] = cards[j], cards[i]
	}
}

// DealN removes n cards from the front of the deck. It returns the dealt
// cards and the remaining deck; fewer than n are dealt if the deck runs out.
func DealN(cards []Card, n int) (dealt, rest []Card) {
	if n > len(cards) {
		n = len(cards)
	}
	dealt = make([]Card, n)
	copy(dealt, cards[:n])
	return dealt, cards[n:]
}
