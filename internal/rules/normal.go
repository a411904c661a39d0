package rules

import "github.com/doko-game/doko/internal/deck"

// Normal is the standard Doppelkopf ruleset: diamonds, all queens and jacks,
// and the ten of hearts are trump. Two copies of every card, 40 cards total.
//
// https://de.wikipedia.org/wiki/Doppelkopf#Spielregeln_nach_den_Turnierspielregeln_des_DDV
type Normal struct{}

// normalTrumpRanking lists the trump cards from strongest to weakest.
var normalTrumpRanking = []deck.Key{
	{Suit: deck.Hearts, Rank: deck.Ten},
	{Suit: deck.Clubs, Rank: deck.Queen},
	{Suit: deck.Spades, Rank: deck.Queen},
	{Suit: deck.Hearts, Rank: deck.Queen},
	{Suit: deck.Diamonds, Rank: deck.Queen},
	{Suit: deck.Clubs, Rank: deck.Jack},
	{Suit: deck.Spades, Rank: deck.Jack},
	{Suit: deck.Hearts, Rank: deck.Jack},
	{Suit: deck.Diamonds, Rank: deck.Jack},
	{Suit: deck.Diamonds, Rank: deck.Ace},
	{Suit: deck.Diamonds, Rank: deck.Ten},
	{Suit: deck.Diamonds, Rank: deck.King},
}

var normalTrumpOrder = func() map[deck.Key]int {
	m := make(map[deck.Key]int, len(normalTrumpRanking))
	for i, k := range normalTrumpRanking {
		m[k] = i
	}
	return m
}()

// Name returns the variant name
func (Normal) Name() string { return "normal" }

// TrumpOrder returns the card's position in the trump ranking
func (Normal) TrumpOrder(c deck.Card) (int, bool) {
	order, ok := normalTrumpOrder[c.Key()]
	return order, ok
}

// Pack returns the 40-card Doppelkopf pack: two copies of ace, ten, king,
// queen and jack in every suit.
func (n Normal) Pack() []deck.Card {
	suits := []deck.Suit{deck.Clubs, deck.Spades, deck.Hearts, deck.Diamonds}
	ranks := []deck.Rank{deck.Ace, deck.Ten, deck.King, deck.Queen, deck.Jack}

	pack := make([]deck.Card, 0, 2*len(suits)*len(ranks))
	for copies := 0; copies < 2; copies++ {
		for _, suit := range suits {
			for _, rank := range ranks {
				pack = append(pack, Resolve(n, suit, rank))
			}
		}
	}
	return pack
}
