// Package store provides the transactional record store the game engine
// commits its state transitions against.
package store

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/doko-game/doko/internal/model"
)

// ErrNotFound is returned for lookups of entities that do not exist or are
// not active. Callers decide whether that is a hard error or a legitimate
// state ("no active game" prompts game creation).
var ErrNotFound = errors.New("store: not found")

// Store is the record store contract. Reads are individually atomic;
// mutations compose into a single all-or-nothing commit via Transact.
type Store interface {
	Reader

	// Transact runs fn inside one transaction. If fn returns an error the
	// transaction is rolled back and nothing is applied.
	Transact(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any resources held by the store.
	Close() error
}

// Reader holds the lookup side of the store.
type Reader interface {
	UserBySession(ctx context.Context, token string) (*model.User, error)
	UserByPlayer(ctx context.Context, playerID uuid.UUID) (*model.User, error)
	UsersForGroup(ctx context.Context, groupID uuid.UUID) ([]*model.User, error)

	GroupByID(ctx context.Context, id uuid.UUID) (*model.Group, error)

	PlayerByID(ctx context.Context, id uuid.UUID) (*model.Player, error)
	PlayerByUserAndGroup(ctx context.Context, userID, groupID uuid.UUID) (*model.Player, error)
	PlayersForGroup(ctx context.Context, groupID uuid.UUID) ([]*model.Player, error)

	ActiveSittingForGroup(ctx context.Context, groupID uuid.UUID) (*model.Sitting, error)
	SittingByID(ctx context.Context, id uuid.UUID) (*model.Sitting, error)
	SittingCount(ctx context.Context, groupID uuid.UUID) (int, error)

	GameByID(ctx context.Context, id uuid.UUID) (*model.Game, error)
	ActiveGameForSitting(ctx context.Context, sittingID uuid.UUID) (*model.Game, error)
	LastGameForSitting(ctx context.Context, sittingID uuid.UUID) (*model.Game, error)

	ActiveTrickForGame(ctx context.Context, gameID uuid.UUID) (*model.Trick, error)
	TricksForGame(ctx context.Context, gameID uuid.UUID) ([]*model.Trick, error)

	PlaysForTrick(ctx context.Context, trickID uuid.UUID) ([]model.Play, error)
	HandCards(ctx context.Context, playerID uuid.UUID) ([]model.HandCard, error)
}

// Tx holds the mutation side of the store, valid only inside Transact.
type Tx interface {
	CreateUser(ctx context.Context, u *model.User) error
	CreateGroup(ctx context.Context, g *model.Group) error
	CreatePlayer(ctx context.Context, p *model.Player) error

	CreateSitting(ctx context.Context, s *model.Sitting) error
	CreateGame(ctx context.Context, g *model.Game) error
	CreateTrick(ctx context.Context, t *model.Trick) error
	CreatePlay(ctx context.Context, p *model.Play) error

	// ReplaceHand discards whatever hand the player holds and deals the
	// given cards to them.
	ReplaceHand(ctx context.Context, playerID uuid.UUID, cards []model.HandCard) error
	DeleteHandCard(ctx context.Context, cardID uuid.UUID) error

	SealTrick(ctx context.Context, trickID uuid.UUID) error
	CloseGame(ctx context.Context, gameID uuid.UUID) error
	SetPlayerStatus(ctx context.Context, playerID uuid.UUID, status model.PlayerStatus) error
}
