package deck

import (
	"fmt"
	rand "math/rand/v2"
)

// NumHands is the number of hands a deck is dealt into.
const NumHands = 4

// Deck represents the pack of cards for one game. The pack composition comes
// from the ruleset in play; the deck itself only shuffles and partitions it.
type Deck struct {
	cards []Card
	rng   *rand.Rand
}

// New creates a deck from the given pack and shuffles it. The pack must be
// evenly dealable into four hands.
func New(pack []Card, rng *rand.Rand) (*Deck, error) {
	if len(pack)%NumHands != 0 {
		return nil, fmt.Errorf("pack of %d cards is not dealable into %d hands", len(pack), NumHands)
	}

	d := &Deck{
		cards: make([]Card, len(pack)),
		rng:   rng,
	}
	copy(d.cards, pack)
	d.Shuffle()
	return d, nil
}

// Shuffle randomizes the order of cards in the deck
func (d *Deck) Shuffle() {
	for i := len(d.cards) - 1; i > 0; i-- {
		j := d.rng.IntN(i + 1)
		d.cards[i], d.cards[j] = d.cards[j], d.cards[i]
	}
}

// DealHands partitions the deck into four equal hands
func (d *Deck) DealHands() [NumHands][]Card {
	var hands [NumHands][]Card
	per := len(d.cards) / NumHands
	for i := 0; i < NumHands; i++ {
		hand := make([]Card, per)
		copy(hand, d.cards[i*per:(i+1)*per])
		hands[i] = hand
	}
	return hands
}

// CardsRemaining returns the number of cards in the deck
func (d *Deck) CardsRemaining() int {
	return len(d.cards)
}
