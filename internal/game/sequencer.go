package game

import "github.com/doko-game/doko/internal/model"

// ActiveSeat maps a position in the play sequence to the seat (0..3) whose
// turn it is, relative to the sitting's fixed seating order. Rotation is
// continuous across tricks and games, so no "next player" pointer is stored
// anywhere; the closed form is the single source of truth for turn order.
//
// All three inputs count from zero.
func ActiveSeat(gameNumber, trickNumber, playNumber int) int {
	overall := gameNumber*model.TricksPerGame + trickNumber*model.PlaysPerTrick + playNumber
	return overall % model.NumSeats
}
