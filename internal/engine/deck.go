package engine

import (
	"math/rand/v2"
	"sort"
)

// BuildSharedDeck expands every configured type by its count into one flat pool.
// Types are laid out in name order so a fixed seed always yields the same shuffle.
func BuildSharedDeck(freq map[CardType]int) []CardType {
	types := make([]CardType, 0, len(freq))
	total := 0
	for t, n := range freq {
		types = append(types, t)
		if n > 0 {
			total += n
		}
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })

	deck := make([]CardType, 0, total)
	for _, t := range types {
		for i := 0; i < freq[t]; i++ {
			deck = append(deck, t)
		}
	}
	return deck
}

// Shuffle is an in-place Fisher-Yates shuffle.
func Shuffle(rng *rand.Rand, deck []CardType) {
	for i := len(deck) - 1; i > 0; i-- {
		j := rng.IntN(i + 1)
		deck[i], deck[j] = deck[j], deck[i]
	}
}

// DrawHand removes n uniformly random cards from deck. A deck that runs out
// early yields a short hand. The input slice is left untouched.
func DrawHand(rng *rand.Rand, deck []CardType, n int) (hand, rest []CardType) {
	rest = append([]CardType(nil), deck...)
	hand = make([]CardType, 0, max(n, 0))
	for i := 0; i < n && len(rest) > 0; i++ {
		idx := rng.IntN(len(rest))
		hand = append(hand, rest[idx])
		rest = append(rest[:idx], rest[idx+1:]...)
	}
	return hand, rest
}

// Deal builds and shuffles one shared deck, then draws a hand of handSize for
// each seat in order. Hands are disjoint because they come from the same pool.
func (r Rules) Deal(rng *rand.Rand, seats, handSize int) (hands [][]Card, remaining []CardType) {
	deck := BuildSharedDeck(r.LoadConfiguration())
	Shuffle(rng, deck)

	hands = make([][]Card, seats)
	for i := range hands {
		var drawn []CardType
		drawn, deck = DrawHand(rng, deck, handSize)
		cards := make([]Card, len(drawn))
		for j, t := range drawn {
			cards[j] = r.NewCard(t)
		}
		hands[i] = cards
	}
	return hands, deck
}
