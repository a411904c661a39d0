// Package model holds the persistent entity records of the game.
//
// Entities reference each other by parent ID only; traversals go through the
// store rather than through held object references.
package model

import (
	"github.com/google/uuid"

	"github.com/doko-game/doko/internal/deck"
)

// PlayerStatus reflects the game-flow phase a player is currently in.
type PlayerStatus string

const (
	StatusOffline           PlayerStatus = "offline"
	StatusOnline            PlayerStatus = "online"
	StatusWaitingForSitting PlayerStatus = "waiting_for_sitting"
	StatusWaitingForGame    PlayerStatus = "waiting_for_game"
	StatusWaitingForTurn    PlayerStatus = "waiting_for_turn"
	StatusPlaying           PlayerStatus = "playing"
)

// User is an account. The session token keys the notification bus; it is an
// opaque string with no further semantics here.
type User struct {
	ID           uuid.UUID
	Name         string
	SessionToken string
}

// Group is a fixed set of four users that play together.
type Group struct {
	ID   uuid.UUID
	Name string
}

// Player is the per-(user, group) identity used inside a sitting.
type Player struct {
	ID      uuid.UUID
	UserID  uuid.UUID
	GroupID uuid.UUID
	Status  PlayerStatus
}

// NumSeats is the number of players in every sitting.
const NumSeats = 4

// Sitting is a continuous series of games played by one group. The seating
// permutation is fixed once at creation and drives turn rotation for every
// game of the sitting.
type Sitting struct {
	ID      uuid.UUID
	GroupID uuid.UUID
	Number  int
	Active  bool
	Seating [NumSeats]uuid.UUID // player IDs in seat order
}

// SeatOf returns the seat index of the given player within the sitting.
func (s *Sitting) SeatOf(playerID uuid.UUID) (int, bool) {
	for seat, id := range s.Seating {
		if id == playerID {
			return seat, true
		}
	}
	return 0, false
}

// TricksPerGame is the number of tricks in a complete game.
const TricksPerGame = 10

// Game is one deal of the pack: ten tricks, then closed permanently.
type Game struct {
	ID           uuid.UUID
	SittingID    uuid.UUID
	Number       int
	Active       bool
	StartingSeat int
}

// PlaysPerTrick is the number of plays that seal a trick.
const PlaysPerTrick = 4

// Trick collects one play from each seat. It is active while open to further
// plays and sealed once the fourth play is recorded.
type Trick struct {
	ID     uuid.UUID
	GameID uuid.UUID
	Number int
	Active bool
}

// Play records one card laid into a trick by one player.
type Play struct {
	ID       uuid.UUID
	TrickID  uuid.UUID
	Number   int
	PlayerID uuid.UUID
	Suit     deck.Suit
	Rank     deck.Rank
}

// HandCard is a card still held in a player's hand. Hands shrink by one card
// per play and never grow; a fresh deal replaces the hand wholesale.
type HandCard struct {
	ID       uuid.UUID
	PlayerID uuid.UUID
	Suit     deck.Suit
	Rank     deck.Rank
}
