package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doko-game/doko/internal/deck"
	"github.com/doko-game/doko/internal/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	s, err := Open(filepath.Join(t.TempDir(), "doko.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// seedGroup inserts a group with four users and players.
func seedGroup(t *testing.T, s *SQLiteStore) (*model.Group, []*model.Player) {
	t.Helper()
	ctx := context.Background()

	group := &model.Group{Name: "thursday-round"}
	var players []*model.Player
	err := s.Transact(ctx, func(tx Tx) error {
		if err := tx.CreateGroup(ctx, group); err != nil {
			return err
		}
		for i := 0; i < model.NumSeats; i++ {
			u := &model.User{
				Name:         fmt.Sprintf("player-%d", i),
				SessionToken: fmt.Sprintf("token-%d", i),
			}
			if err := tx.CreateUser(ctx, u); err != nil {
				return err
			}
			p := &model.Player{UserID: u.ID, GroupID: group.ID, Status: model.StatusOnline}
			if err := tx.CreatePlayer(ctx, p); err != nil {
				return err
			}
			players = append(players, p)
		}
		return nil
	})
	require.NoError(t, err)
	require.Len(t, players, model.NumSeats)
	return group, players
}

func TestUserLookups(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	group, players := seedGroup(t, s)

	u, err := s.UserBySession(ctx, "token-2")
	require.NoError(t, err)
	assert.Equal(t, "player-2", u.Name)

	_, err = s.UserBySession(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)

	u, err = s.UserByPlayer(ctx, players[1].ID)
	require.NoError(t, err)
	assert.Equal(t, "player-1", u.Name)

	users, err := s.UsersForGroup(ctx, group.ID)
	require.NoError(t, err)
	require.Len(t, users, 4)
	assert.Equal(t, "player-0", users[0].Name)
}

func TestPlayerLookups(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	group, players := seedGroup(t, s)

	p, err := s.PlayerByID(ctx, players[0].ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusOnline, p.Status)

	p, err = s.PlayerByUserAndGroup(ctx, players[3].UserID, group.ID)
	require.NoError(t, err)
	assert.Equal(t, players[3].ID, p.ID)

	_, err = s.PlayerByID(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)

	err = s.Transact(ctx, func(tx Tx) error {
		return tx.SetPlayerStatus(ctx, players[0].ID, model.StatusPlaying)
	})
	require.NoError(t, err)

	p, err = s.PlayerByID(ctx, players[0].ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPlaying, p.Status)
}

func TestSittingLifecycle(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	group, players := seedGroup(t, s)

	n, err := s.SittingCount(ctx, group.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	_, err = s.ActiveSittingForGroup(ctx, group.ID)
	require.ErrorIs(t, err, ErrNotFound)

	sitting := &model.Sitting{GroupID: group.ID, Number: 0, Active: true}
	for i, p := range players {
		sitting.Seating[i] = p.ID
	}
	err = s.Transact(ctx, func(tx Tx) error {
		return tx.CreateSitting(ctx, sitting)
	})
	require.NoError(t, err)

	got, err := s.ActiveSittingForGroup(ctx, group.ID)
	require.NoError(t, err)
	assert.Equal(t, sitting.ID, got.ID)
	assert.Equal(t, sitting.Seating, got.Seating)

	seat, ok := got.SeatOf(players[2].ID)
	require.True(t, ok)
	assert.Equal(t, 2, seat)

	n, err = s.SittingCount(ctx, group.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestGameTrickPlayLifecycle(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	group, players := seedGroup(t, s)

	sitting := &model.Sitting{GroupID: group.ID, Active: true}
	for i, p := range players {
		sitting.Seating[i] = p.ID
	}
	game := &model.Game{Number: 0, Active: true}
	trick := &model.Trick{Number: 0, Active: true}

	err := s.Transact(ctx, func(tx Tx) error {
		if err := tx.CreateSitting(ctx, sitting); err != nil {
			return err
		}
		game.SittingID = sitting.ID
		if err := tx.CreateGame(ctx, game); err != nil {
			return err
		}
		trick.GameID = game.ID
		return tx.CreateTrick(ctx, trick)
	})
	require.NoError(t, err)

	active, err := s.ActiveGameForSitting(ctx, sitting.ID)
	require.NoError(t, err)
	assert.Equal(t, game.ID, active.ID)

	last, err := s.LastGameForSitting(ctx, sitting.ID)
	require.NoError(t, err)
	assert.Equal(t, game.ID, last.ID)

	openTrick, err := s.ActiveTrickForGame(ctx, game.ID)
	require.NoError(t, err)
	assert.Equal(t, trick.ID, openTrick.ID)

	play := &model.Play{
		TrickID:  trick.ID,
		Number:   0,
		PlayerID: players[0].ID,
		Suit:     deck.Hearts,
		Rank:     deck.Ten,
	}
	err = s.Transact(ctx, func(tx Tx) error {
		return tx.CreatePlay(ctx, play)
	})
	require.NoError(t, err)

	plays, err := s.PlaysForTrick(ctx, trick.ID)
	require.NoError(t, err)
	require.Len(t, plays, 1)
	assert.Equal(t, deck.Hearts, plays[0].Suit)
	assert.Equal(t, deck.Ten, plays[0].Rank)
	assert.Equal(t, players[0].ID, plays[0].PlayerID)

	err = s.Transact(ctx, func(tx Tx) error {
		if err := tx.SealTrick(ctx, trick.ID); err != nil {
			return err
		}
		return tx.CloseGame(ctx, game.ID)
	})
	require.NoError(t, err)

	_, err = s.ActiveTrickForGame(ctx, game.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.ActiveGameForSitting(ctx, sitting.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	// Sealing an already sealed trick is an error, not a silent no-op.
	err = s.Transact(ctx, func(tx Tx) error {
		return tx.SealTrick(ctx, trick.ID)
	})
	assert.ErrorIs(t, err, ErrNotFound)

	tricks, err := s.TricksForGame(ctx, game.ID)
	require.NoError(t, err)
	require.Len(t, tricks, 1)
	assert.False(t, tricks[0].Active)
}

func TestHandCards(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	_, players := seedGroup(t, s)
	player := players[0]

	hand := []model.HandCard{
		{Suit: deck.Clubs, Rank: deck.Ace},
		{Suit: deck.Diamonds, Rank: deck.Jack},
		{Suit: deck.Hearts, Rank: deck.Ten},
	}
	err := s.Transact(ctx, func(tx Tx) error {
		return tx.ReplaceHand(ctx, player.ID, hand)
	})
	require.NoError(t, err)

	cards, err := s.HandCards(ctx, player.ID)
	require.NoError(t, err)
	require.Len(t, cards, 3)

	err = s.Transact(ctx, func(tx Tx) error {
		return tx.DeleteHandCard(ctx, cards[0].ID)
	})
	require.NoError(t, err)

	cards, err = s.HandCards(ctx, player.ID)
	require.NoError(t, err)
	assert.Len(t, cards, 2)

	// Re-dealing replaces the hand wholesale.
	err = s.Transact(ctx, func(tx Tx) error {
		return tx.ReplaceHand(ctx, player.ID, []model.HandCard{{Suit: deck.Spades, Rank: deck.King}})
	})
	require.NoError(t, err)

	cards, err = s.HandCards(ctx, player.ID)
	require.NoError(t, err)
	require.Len(t, cards, 1)
	assert.Equal(t, deck.Spades, cards[0].Suit)
}

func TestTransactRollsBackOnError(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	boom := fmt.Errorf("boom")
	err := s.Transact(ctx, func(tx Tx) error {
		if err := tx.CreateGroup(ctx, &model.Group{Name: "doomed"}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	// Nothing from the failed transaction is visible.
	group := &model.Group{Name: "kept"}
	err = s.Transact(ctx, func(tx Tx) error {
		return tx.CreateGroup(ctx, group)
	})
	require.NoError(t, err)

	got, err := s.GroupByID(ctx, group.ID)
	require.NoError(t, err)
	assert.Equal(t, "kept", got.Name)
}
