// Package rules implements trick evaluation for Doppelkopf game variants.
package rules

import (
	"errors"

	"github.com/doko-game/doko/internal/deck"
)

// ErrEmptyTrick is returned when a winner is requested for a trick with no plays.
var ErrEmptyTrick = errors.New("rules: cannot evaluate a trick with no plays")

// Ruleset defines a game variant: the pack it is played with and its trump
// ordering. The state machine is variant-agnostic; adding a variant means
// adding a Ruleset, not touching the trick or game lifecycle.
type Ruleset interface {
	Name() string

	// Pack returns the full card multiset the variant is played with,
	// trump flags set.
	Pack() []deck.Card

	// TrumpOrder returns the position of the card in the variant's trump
	// ranking, 0 being the strongest trump. ok is false for non-trump cards.
	TrumpOrder(c deck.Card) (order int, ok bool)
}

// Resolve builds the card for a (suit, rank) pair with its trump flag set
// according to the ruleset. Plays and hand cards are persisted without the
// flag, so anything loaded from the store goes through here.
func Resolve(rs Ruleset, suit deck.Suit, rank deck.Rank) deck.Card {
	c := deck.NewCard(suit, rank, false)
	if _, ok := rs.TrumpOrder(c); ok {
		c.Trump = true
	}
	return c
}

// Winner returns the index of the winning play among the cards of a trick,
// in play order. The trick may be partially played; it must have at least
// one play.
//
// With no trump in the trick, the suit of the first card leads and the
// highest rank of that suit wins. With at least one trump, the strongest
// trump wins regardless of play order. Among equal cards the earlier play
// keeps priority.
func Winner(rs Ruleset, cards []deck.Card) (int, error) {
	if len(cards) == 0 {
		return 0, ErrEmptyTrick
	}

	hasTrump := false
	for _, c := range cards {
		if c.Trump {
			hasTrump = true
			break
		}
	}

	if !hasTrump {
		lead := cards[0].Suit
		best := 0
		for i, c := range cards[1:] {
			if c.Suit == lead && c.Rank > cards[best].Rank {
				best = i + 1
			}
		}
		return best, nil
	}

	best := -1
	bestOrder := 0
	for i, c := range cards {
		order, ok := rs.TrumpOrder(c)
		if !ok {
			continue
		}
		if best == -1 || order < bestOrder {
			best = i
			bestOrder = order
		}
	}
	return best, nil
}

// Points returns the point total of the given cards
func Points(cards []deck.Card) int {
	total := 0
	for _, c := range cards {
		total += c.Points()
	}
	return total
}
