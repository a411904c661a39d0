package game

import (
	"errors"
	"fmt"

	"github.com/doko-game/doko/internal/store"
)

// IllegalMoveError rejects a player action that violates a guard: playing
// out of turn, playing a card not in hand, playing into a full trick. The
// action is rejected before any mutation; nothing is partially applied.
type IllegalMoveError struct {
	Reason string
}

func (e *IllegalMoveError) Error() string {
	return "illegal move: " + e.Reason
}

func illegalMove(format string, args ...any) error {
	return &IllegalMoveError{Reason: fmt.Sprintf(format, args...)}
}

// IsIllegalMove reports whether err is a rejected player action.
func IsIllegalMove(err error) bool {
	var im *IllegalMoveError
	return errors.As(err, &im)
}

// IsNotFound reports whether err is a missing or inactive entity lookup.
// "No active game" is a legitimate state for the caller to act on, not a
// crash.
func IsNotFound(err error) bool {
	return errors.Is(err, store.ErrNotFound)
}

// InvariantError signals a state that correct operation can never produce,
// such as an open trick already holding four plays. It is never swallowed:
// the operation aborts and the condition is logged loudly.
type InvariantError struct {
	Problem string
}

func (e *InvariantError) Error() string {
	return "invariant violation: " + e.Problem
}

func invariant(format string, args ...any) error {
	return &InvariantError{Problem: fmt.Sprintf(format, args...)}
}
