package game

import (
	"github.com/google/uuid"

	"github.com/doko-game/doko/internal/deck"
)

// CardView is a card as presented to one player.
type CardView struct {
	Suit     string `json:"suit"`
	Rank     string `json:"rank"`
	Trump    bool   `json:"trump"`
	Playable bool   `json:"playable,omitempty"`
}

// TrickResult summarizes a sealed trick.
type TrickResult struct {
	Number int    `json:"number"`
	Winner string `json:"winner"`
	Points int    `json:"points"`
}

// GameView is the state of a game from one player's perspective. The other
// players appear in relative seating order: left of the viewer first, then
// across, then right.
type GameView struct {
	GameID     uuid.UUID     `json:"game_id"`
	GameNumber int           `json:"game_number"`
	Closed     bool          `json:"closed"`
	YourTurn   bool          `json:"your_turn"`
	Hand       []CardView    `json:"hand"`
	Stack      []CardView    `json:"stack"`
	Opponents  []string      `json:"opponents"`
	Tricks     []TrickResult `json:"tricks,omitempty"`
}

func cardView(c deck.Card, playable bool) CardView {
	return CardView{
		Suit:     c.Suit.String(),
		Rank:     c.Rank.String(),
		Trump:    c.Trump,
		Playable: playable,
	}
}
