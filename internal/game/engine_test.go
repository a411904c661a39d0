package game

import (
	"context"
	"fmt"
	"io"
	rand "math/rand/v2"
	"path/filepath"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doko-game/doko/internal/event"
	"github.com/doko-game/doko/internal/model"
	"github.com/doko-game/doko/internal/rules"
	"github.com/doko-game/doko/internal/store"
)

type fixture struct {
	store   *store.SQLiteStore
	bus     *event.Bus
	engine  *Engine
	group   *model.Group
	players []*model.Player
	users   []*model.User
}

// newFixture builds an engine over a throwaway database with a seeded group
// of four. Pacing delays are zero so tests run at full speed.
func newFixture(t *testing.T, seed uint64) *fixture {
	t.Helper()
	ctx := context.Background()

	st, err := store.Open(filepath.Join(t.TempDir(), "doko.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	logger := log.New(io.Discard)
	bus := event.NewBus(logger)

	group := &model.Group{Name: "thursday-round"}
	var players []*model.Player
	var users []*model.User
	err = st.Transact(ctx, func(tx store.Tx) error {
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
			users = append(users, u)
			players = append(players, p)
		}
		return nil
	})
	require.NoError(t, err)

	rng := rand.New(rand.NewPCG(seed, 0))
	engine := NewEngine(st, bus, rules.Normal{}, quartz.NewReal(), rng, logger, Config{})

	return &fixture{store: st, bus: bus, engine: engine, group: group, players: players, users: users}
}

func (f *fixture) playerByID(t *testing.T, id uuid.UUID) *model.Player {
	t.Helper()
	for _, p := range f.players {
		if p.ID == id {
			return p
		}
	}
	t.Fatalf("unknown player id %s", id)
	return nil
}

func (f *fixture) sessionFor(t *testing.T, playerID uuid.UUID) string {
	t.Helper()
	p := f.playerByID(t, playerID)
	for _, u := range f.users {
		if u.ID == p.UserID {
			return u.SessionToken
		}
	}
	t.Fatalf("no user for player %s", playerID)
	return ""
}

// playNext plays the first hand card of whoever the sequencer says is up.
func (f *fixture) playNext(t *testing.T, sitting *model.Sitting, game, trick, play int) uuid.UUID {
	t.Helper()
	ctx := context.Background()

	playerID := sitting.Seating[ActiveSeat(game, trick, play)]
	hand, err := f.store.HandCards(ctx, playerID)
	require.NoError(t, err)
	require.NotEmpty(t, hand)

	require.NoError(t, f.engine.PlayCard(ctx, playerID, hand[0].Suit, hand[0].Rank))
	return playerID
}

func (f *fixture) await(t *testing.T, session string, kind event.Kind) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	got, err := f.bus.AwaitAny(ctx, session, kind)
	require.NoError(t, err, "signal %s never arrived for %s", kind, session)
	assert.Equal(t, kind, got)
}

func TestDealNewSitting(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 1)
	ctx := context.Background()

	sitting, err := f.engine.DealNewSitting(ctx, f.group.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, sitting.Number)
	assert.True(t, sitting.Active)

	// Seating is a permutation of the group's players.
	seen := make(map[uuid.UUID]bool)
	for _, id := range sitting.Seating {
		f.playerByID(t, id)
		seen[id] = true
	}
	assert.Len(t, seen, model.NumSeats)

	// Game 0 is open with trick 0 and ten cards dealt to every hand.
	game, err := f.store.ActiveGameForSitting(ctx, sitting.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, game.Number)
	assert.Equal(t, 0, game.StartingSeat)

	trick, err := f.store.ActiveTrickForGame(ctx, game.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, trick.Number)

	for _, p := range f.players {
		hand, err := f.store.HandCards(ctx, p.ID)
		require.NoError(t, err)
		assert.Len(t, hand, model.TricksPerGame)
	}

	// Everyone is told a game started.
	for _, u := range f.users {
		f.await(t, u.SessionToken, event.KindGameCreated)
	}

	// A second sitting while one is active is rejected.
	_, err = f.engine.DealNewSitting(ctx, f.group.ID)
	assert.True(t, IsIllegalMove(err), "got %v", err)
}

func TestPlayCardGuards(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 2)
	ctx := context.Background()

	sitting, err := f.engine.DealNewSitting(ctx, f.group.ID)
	require.NoError(t, err)

	active := sitting.Seating[ActiveSeat(0, 0, 0)]
	waiting := sitting.Seating[ActiveSeat(0, 0, 1)]

	// Out of turn.
	hand, err := f.store.HandCards(ctx, waiting)
	require.NoError(t, err)
	err = f.engine.PlayCard(ctx, waiting, hand[0].Suit, hand[0].Rank)
	assert.True(t, IsIllegalMove(err), "got %v", err)

	// Card not in hand: the active player holds at most two copies of any
	// card, so some card of the pack is guaranteed absent.
	hand, err = f.store.HandCards(ctx, active)
	require.NoError(t, err)
	held := make(map[string]bool)
	for _, c := range hand {
		held[c.Suit.String()+c.Rank.String()] = true
	}
	var missing *model.HandCard
	for _, c := range (rules.Normal{}).Pack() {
		if !held[c.Suit.String()+c.Rank.String()] {
			missing = &model.HandCard{Suit: c.Suit, Rank: c.Rank}
			break
		}
	}
	require.NotNil(t, missing)
	err = f.engine.PlayCard(ctx, active, missing.Suit, missing.Rank)
	assert.True(t, IsIllegalMove(err), "got %v", err)

	// Nothing was mutated by the rejected plays.
	plays, err := f.store.PlaysForTrick(ctx, mustActiveTrick(t, f, sitting).ID)
	require.NoError(t, err)
	assert.Empty(t, plays)
}

func mustActiveTrick(t *testing.T, f *fixture, sitting *model.Sitting) *model.Trick {
	t.Helper()
	ctx := context.Background()
	game, err := f.store.ActiveGameForSitting(ctx, sitting.ID)
	require.NoError(t, err)
	trick, err := f.store.ActiveTrickForGame(ctx, game.ID)
	require.NoError(t, err)
	return trick
}

func TestPlayCardNotifications(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 3)
	ctx := context.Background()

	sitting, err := f.engine.DealNewSitting(ctx, f.group.ID)
	require.NoError(t, err)

	actor := f.playNext(t, sitting, 0, 0, 0)
	next := sitting.Seating[ActiveSeat(0, 0, 1)]

	// The actor's turn ended and the next player's turn began.
	f.await(t, f.sessionFor(t, actor), event.KindTurnChanged)
	f.await(t, f.sessionFor(t, next), event.KindTurnChanged)

	// Everyone heard the card land.
	for _, u := range f.users {
		f.await(t, u.SessionToken, event.KindCardPlayed)
	}

	hand, err := f.store.HandCards(ctx, actor)
	require.NoError(t, err)
	assert.Len(t, hand, model.TricksPerGame-1)
}

func TestTrickSealsAfterFourPlays(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 4)
	ctx := context.Background()

	sitting, err := f.engine.DealNewSitting(ctx, f.group.ID)
	require.NoError(t, err)
	game, err := f.store.ActiveGameForSitting(ctx, sitting.ID)
	require.NoError(t, err)

	for play := 0; play < model.PlaysPerTrick; play++ {
		f.playNext(t, sitting, 0, 0, play)
	}

	// Trick 0 is sealed and trick 1 opened in the same commit.
	trick, err := f.store.ActiveTrickForGame(ctx, game.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, trick.Number)

	tricks, err := f.store.TricksForGame(ctx, game.ID)
	require.NoError(t, err)
	require.Len(t, tricks, 2)
	assert.False(t, tricks[0].Active)
	assert.True(t, tricks[1].Active)
}

func TestFullGameLifecycle(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 5)
	ctx := context.Background()

	sitting, err := f.engine.DealNewSitting(ctx, f.group.ID)
	require.NoError(t, err)
	game, err := f.store.ActiveGameForSitting(ctx, sitting.ID)
	require.NoError(t, err)

	for trick := 0; trick < model.TricksPerGame; trick++ {
		for play := 0; play < model.PlaysPerTrick; play++ {
			f.playNext(t, sitting, 0, trick, play)
		}
	}

	// The 40th card sealed trick 9 and closed the game in one transaction.
	closed, err := f.store.GameByID(ctx, game.ID)
	require.NoError(t, err)
	assert.False(t, closed.Active)

	_, err = f.store.ActiveTrickForGame(ctx, game.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	// All hands are empty and everyone is back to idle.
	for _, p := range f.players {
		hand, err := f.store.HandCards(ctx, p.ID)
		require.NoError(t, err)
		assert.Empty(t, hand)

		got, err := f.store.PlayerByID(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, model.StatusOnline, got.Status)
	}

	for _, u := range f.users {
		f.await(t, u.SessionToken, event.KindGameClosed)
	}

	// The closed game reports ten sealed tricks worth the whole pack.
	view, err := f.engine.QueryGameState(ctx, f.players[0].ID, game.ID)
	require.NoError(t, err)
	assert.True(t, view.Closed)
	assert.False(t, view.YourTurn)
	assert.Empty(t, view.Stack)
	assert.Empty(t, view.Hand)
	require.Len(t, view.Tricks, model.TricksPerGame)

	total := 0
	for _, tr := range view.Tricks {
		total += tr.Points
	}
	assert.Equal(t, 240, total)

	// No further play is possible.
	err = f.engine.PlayCard(ctx, sitting.Seating[0], 0, 0)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestStartNextGame(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 6)
	ctx := context.Background()

	sitting, err := f.engine.DealNewSitting(ctx, f.group.ID)
	require.NoError(t, err)

	// Rejected while game 0 is still running.
	_, err = f.engine.StartNextGame(ctx, sitting.ID)
	assert.True(t, IsIllegalMove(err), "got %v", err)

	for trick := 0; trick < model.TricksPerGame; trick++ {
		for play := 0; play < model.PlaysPerTrick; play++ {
			f.playNext(t, sitting, 0, trick, play)
		}
	}

	// The sitting stays open after the game closes; the next game starts
	// only on explicit request.
	next, err := f.engine.StartNextGame(ctx, sitting.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, next.Number)
	assert.Equal(t, 1, next.StartingSeat)
	assert.True(t, next.Active)

	trick, err := f.store.ActiveTrickForGame(ctx, next.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, trick.Number)

	for _, p := range f.players {
		hand, err := f.store.HandCards(ctx, p.ID)
		require.NoError(t, err)
		assert.Len(t, hand, model.TricksPerGame)
	}

	// Rotation carries straight over into the new game.
	f.playNext(t, sitting, 1, 0, 0)
	plays, err := f.store.PlaysForTrick(ctx, trick.ID)
	require.NoError(t, err)
	require.Len(t, plays, 1)
	assert.Equal(t, sitting.Seating[ActiveSeat(1, 0, 0)], plays[0].PlayerID)
}

func TestQueryGameStateActiveGame(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 7)
	ctx := context.Background()

	sitting, err := f.engine.DealNewSitting(ctx, f.group.ID)
	require.NoError(t, err)
	game, err := f.store.ActiveGameForSitting(ctx, sitting.ID)
	require.NoError(t, err)

	f.playNext(t, sitting, 0, 0, 0)

	activeID := sitting.Seating[ActiveSeat(0, 0, 1)]
	view, err := f.engine.QueryGameState(ctx, activeID, game.ID)
	require.NoError(t, err)
	assert.False(t, view.Closed)
	assert.True(t, view.YourTurn)
	assert.Len(t, view.Stack, 1)
	assert.Len(t, view.Hand, model.TricksPerGame)
	assert.Len(t, view.Opponents, model.NumSeats-1)
	for _, c := range view.Hand {
		assert.True(t, c.Playable)
	}

	got, err := f.store.PlayerByID(ctx, activeID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPlaying, got.Status)

	// A player who is not up sees the same stack but no playable cards.
	waitingID := sitting.Seating[ActiveSeat(0, 0, 2)]
	view, err = f.engine.QueryGameState(ctx, waitingID, game.ID)
	require.NoError(t, err)
	assert.False(t, view.YourTurn)
	for _, c := range view.Hand {
		assert.False(t, c.Playable)
	}

	got, err = f.store.PlayerByID(ctx, waitingID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusWaitingForTurn, got.Status)

	// Opponents appear in relative seating order, left of the viewer first.
	mySeat, ok := sitting.SeatOf(waitingID)
	require.True(t, ok)
	left := f.playerByID(t, sitting.Seating[(mySeat+1)%model.NumSeats])
	u, err := f.store.UserByPlayer(ctx, left.ID)
	require.NoError(t, err)
	assert.Equal(t, u.Name, view.Opponents[0])
}

func TestMarkOnline(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 8)
	ctx := context.Background()

	sitting, err := f.engine.DealNewSitting(ctx, f.group.ID)
	require.NoError(t, err)
	game, err := f.store.ActiveGameForSitting(ctx, sitting.ID)
	require.NoError(t, err)

	playerID := sitting.Seating[ActiveSeat(0, 0, 0)]
	_, err = f.engine.QueryGameState(ctx, playerID, game.ID)
	require.NoError(t, err)

	require.NoError(t, f.engine.MarkOnline(ctx, playerID))

	got, err := f.store.PlayerByID(ctx, playerID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusOnline, got.Status)
}
