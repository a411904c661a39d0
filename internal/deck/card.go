package deck

import "fmt"

// Suit represents a card suit
type Suit int

const (
	Clubs Suit = iota
	Spades
	Hearts
	Diamonds
)

// String returns the string representation of a suit
func (s Suit) String() string {
	switch s {
	case Clubs:
		return "clubs"
	case Spades:
		return "spades"
	case Hearts:
		return "hearts"
	case Diamonds:
		return "diamonds"
	default:
		return "?"
	}
}

// Symbol returns the suit glyph for display
func (s Suit) Symbol() string {
	switch s {
	case Clubs:
		return "♣"
	case Spades:
		return "♠"
	case Hearts:
		return "♥"
	case Diamonds:
		return "♦"
	default:
		return "?"
	}
}

// ParseSuit converts a suit name into a Suit
func ParseSuit(name string) (Suit, error) {
	switch name {
	case "clubs":
		return Clubs, nil
	case "spades":
		return Spades, nil
	case "hearts":
		return Hearts, nil
	case "diamonds":
		return Diamonds, nil
	default:
		return 0, fmt.Errorf("unknown suit %q", name)
	}
}

// Rank represents a card rank. The numeric value of a rank is its point
// value, which is fixed regardless of trump status.
type Rank int

const (
	Jack  Rank = 2
	Queen Rank = 3
	King  Rank = 4
	Ten   Rank = 10
	Ace   Rank = 11
)

// String returns the string representation of a rank
func (r Rank) String() string {
	switch r {
	case Jack:
		return "jack"
	case Queen:
		return "queen"
	case King:
		return "king"
	case Ten:
		return "ten"
	case Ace:
		return "ace"
	default:
		return "?"
	}
}

// Points returns the point value the rank contributes to a trick
func (r Rank) Points() int {
	return int(r)
}

// ParseRank converts a rank name into a Rank
func ParseRank(name string) (Rank, error) {
	switch name {
	case "jack":
		return Jack, nil
	case "queen":
		return Queen, nil
	case "king":
		return King, nil
	case "ten":
		return Ten, nil
	case "ace":
		return Ace, nil
	default:
		return 0, fmt.Errorf("unknown rank %q", name)
	}
}

// Card represents a playing card. Trump is contextual: the same (suit, rank)
// pair is or is not trump depending on the ruleset in play, so the flag
// carries no identity. Use Equal or Key for comparisons instead of ==.
type Card struct {
	Suit  Suit
	Rank  Rank
	Trump bool
}

// NewCard creates a new card
func NewCard(suit Suit, rank Rank, trump bool) Card {
	return Card{Suit: suit, Rank: rank, Trump: trump}
}

// String returns the string representation of a card (e.g., "clubs ace")
func (c Card) String() string {
	return fmt.Sprintf("%s %s", c.Suit, c.Rank)
}

// Equal reports whether two cards are the same card, ignoring the trump flag
func (c Card) Equal(other Card) bool {
	return c.Suit == other.Suit && c.Rank == other.Rank
}

// Points returns the point value of the card
func (c Card) Points() int {
	return c.Rank.Points()
}

// Key is the identity of a card: (suit, rank) without the trump flag.
// Usable as a map key.
type Key struct {
	Suit Suit
	Rank Rank
}

// Key returns the card's identity key
func (c Card) Key() Key {
	return Key{Suit: c.Suit, Rank: c.Rank}
}
