// Package game implements the turn-sequencing state machine that drives a
// sitting through its games, tricks and plays.
package game

import (
	"context"
	"fmt"
	rand "math/rand/v2"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/google/uuid"

	"github.com/doko-game/doko/internal/deck"
	"github.com/doko-game/doko/internal/event"
	"github.com/doko-game/doko/internal/model"
	"github.com/doko-game/doko/internal/rules"
	"github.com/doko-game/doko/internal/store"
)

// Config holds the engine's pacing delays. AfterPlay paces the turn-end /
// turn-start notification pair around each play; AfterTrick gives clients
// time to look at a completed trick before play moves on.
type Config struct {
	AfterPlay  time.Duration
	AfterTrick time.Duration
}

// Engine validates player actions against the turn sequencer and the card
// model, commits each transition atomically to the record store, and
// publishes notifications on the bus afterwards. Mutating operations are
// serialized; reads are not.
type Engine struct {
	store  store.Store
	bus    *event.Bus
	rules  rules.Ruleset
	clock  quartz.Clock
	rng    *rand.Rand
	logger *log.Logger
	cfg    Config

	mu sync.Mutex
}

// NewEngine creates an engine. The RNG drives seating shuffles and dealing;
// pass a seeded one for reproducible games.
func NewEngine(st store.Store, bus *event.Bus, rs rules.Ruleset, clock quartz.Clock, rng *rand.Rand, logger *log.Logger, cfg Config) *Engine {
	return &Engine{
		store:  st,
		bus:    bus,
		rules:  rs,
		clock:  clock,
		rng:    rng,
		logger: logger.WithPrefix("engine"),
		cfg:    cfg,
	}
}

// DealNewSitting creates a sitting for the group: a random seating
// permutation fixed for the sitting's lifetime, game 0 starting at seat 0,
// freshly dealt hands, and trick 0 open. The group must not already have an
// active sitting.
func (e *Engine) DealNewSitting(ctx context.Context, groupID uuid.UUID) (*model.Sitting, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	group, err := e.store.GroupByID(ctx, groupID)
	if err != nil {
		return nil, err
	}

	if _, err := e.store.ActiveSittingForGroup(ctx, groupID); err == nil {
		return nil, illegalMove("group %q already has an active sitting", group.Name)
	} else if !IsNotFound(err) {
		return nil, err
	}

	players, err := e.store.PlayersForGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if len(players) != model.NumSeats {
		return nil, fmt.Errorf("group %q has %d players, want %d", group.Name, len(players), model.NumSeats)
	}

	number, err := e.store.SittingCount(ctx, groupID)
	if err != nil {
		return nil, err
	}

	sitting := &model.Sitting{
		GroupID: groupID,
		Number:  number,
		Active:  true,
	}
	for i, p := range players {
		sitting.Seating[i] = p.ID
	}
	e.rng.Shuffle(model.NumSeats, func(i, j int) {
		sitting.Seating[i], sitting.Seating[j] = sitting.Seating[j], sitting.Seating[i]
	})

	game := &model.Game{Number: 0, StartingSeat: 0, Active: true}
	if err := e.createGame(ctx, sitting, game, true); err != nil {
		return nil, err
	}

	e.logger.Info("sitting created", "group", group.Name, "sitting", sitting.Number)

	users, err := e.store.UsersForGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	e.broadcast(users, event.KindGameCreated)

	return sitting, nil
}

// StartNextGame opens the next game of a sitting once the previous one has
// closed. The starting seat rotates one position per game. Game creation is
// lobby-gated: it only happens through this explicit call, never as a side
// effect of the last play.
func (e *Engine) StartNextGame(ctx context.Context, sittingID uuid.UUID) (*model.Game, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	sitting, err := e.store.SittingByID(ctx, sittingID)
	if err != nil {
		return nil, err
	}
	if !sitting.Active {
		return nil, illegalMove("sitting %d is no longer active", sitting.Number)
	}

	if _, err := e.store.ActiveGameForSitting(ctx, sittingID); err == nil {
		return nil, illegalMove("sitting %d already has an active game", sitting.Number)
	} else if !IsNotFound(err) {
		return nil, err
	}

	game := &model.Game{Number: 0, StartingSeat: 0, Active: true}
	last, err := e.store.LastGameForSitting(ctx, sittingID)
	switch {
	case err == nil:
		game.Number = last.Number + 1
		game.StartingSeat = (last.StartingSeat + 1) % model.NumSeats
	case !IsNotFound(err):
		return nil, err
	}

	if err := e.createGame(ctx, sitting, game, false); err != nil {
		return nil, err
	}

	e.logger.Info("game created", "sitting", sitting.Number, "game", game.Number)

	users, err := e.store.UsersForGroup(ctx, sitting.GroupID)
	if err != nil {
		return nil, err
	}
	e.broadcast(users, event.KindGameCreated)

	return game, nil
}

// createGame commits a new game, freshly dealt hands and trick 0 in one
// transaction, creating the sitting first when this is the sitting's start.
func (e *Engine) createGame(ctx context.Context, sitting *model.Sitting, game *model.Game, newSitting bool) error {
	d, err := deck.New(e.rules.Pack(), e.rng)
	if err != nil {
		return err
	}
	hands := d.DealHands()

	return e.store.Transact(ctx, func(tx store.Tx) error {
		if newSitting {
			if err := tx.CreateSitting(ctx, sitting); err != nil {
				return err
			}
		}
		game.SittingID = sitting.ID
		if err := tx.CreateGame(ctx, game); err != nil {
			return err
		}
		for seat, cards := range hands {
			hand := make([]model.HandCard, len(cards))
			for i, c := range cards {
				hand[i] = model.HandCard{Suit: c.Suit, Rank: c.Rank}
			}
			if err := tx.ReplaceHand(ctx, sitting.Seating[seat], hand); err != nil {
				return err
			}
		}
		return tx.CreateTrick(ctx, &model.Trick{GameID: game.ID, Number: 0, Active: true})
	})
}

// PlayCard records the player laying the given card into the active trick
// of their group's active game. Guard violations reject the action before
// anything is mutated. The play, the hand-card removal, and any resulting
// trick seal / trick open / game close commit as one transaction;
// notifications go out afterwards.
func (e *Engine) PlayCard(ctx context.Context, playerID uuid.UUID, suit deck.Suit, rank deck.Rank) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	player, err := e.store.PlayerByID(ctx, playerID)
	if err != nil {
		return err
	}
	sitting, err := e.store.ActiveSittingForGroup(ctx, player.GroupID)
	if err != nil {
		return err
	}
	game, err := e.store.ActiveGameForSitting(ctx, sitting.ID)
	if err != nil {
		return err
	}
	trick, err := e.store.ActiveTrickForGame(ctx, game.ID)
	if err != nil {
		return err
	}
	plays, err := e.store.PlaysForTrick(ctx, trick.ID)
	if err != nil {
		return err
	}

	if len(plays) >= model.PlaysPerTrick {
		e.logger.Error("open trick already holds a full set of plays",
			"game", game.Number, "trick", trick.Number, "plays", len(plays))
		return invariant("trick %d has %d plays but is still active", trick.Number, len(plays))
	}
	if trick.Number >= model.TricksPerGame {
		e.logger.Error("game exceeds its trick count", "game", game.Number, "trick", trick.Number)
		return invariant("game %d has a trick numbered %d", game.Number, trick.Number)
	}

	seat := ActiveSeat(game.Number, trick.Number, len(plays))
	if sitting.Seating[seat] != playerID {
		return illegalMove("it is not your turn")
	}

	hand, err := e.store.HandCards(ctx, playerID)
	if err != nil {
		return err
	}
	card := rules.Resolve(e.rules, suit, rank)
	var handCardID uuid.UUID
	found := false
	for _, hc := range hand {
		if hc.Suit == suit && hc.Rank == rank {
			handCardID = hc.ID
			found = true
			break
		}
	}
	if !found {
		return illegalMove("card %s is not in your hand", card)
	}

	lastInTrick := len(plays) == model.PlaysPerTrick-1
	lastTrick := trick.Number == model.TricksPerGame-1
	lastInGame := lastInTrick && lastTrick

	players, err := e.store.PlayersForGroup(ctx, player.GroupID)
	if err != nil {
		return err
	}

	err = e.store.Transact(ctx, func(tx store.Tx) error {
		if err := tx.DeleteHandCard(ctx, handCardID); err != nil {
			return err
		}
		play := &model.Play{
			TrickID:  trick.ID,
			Number:   len(plays),
			PlayerID: playerID,
			Suit:     suit,
			Rank:     rank,
		}
		if err := tx.CreatePlay(ctx, play); err != nil {
			return err
		}
		if !lastInTrick {
			return nil
		}
		if err := tx.SealTrick(ctx, trick.ID); err != nil {
			return err
		}
		if !lastTrick {
			return tx.CreateTrick(ctx, &model.Trick{GameID: game.ID, Number: trick.Number + 1, Active: true})
		}
		if err := tx.CloseGame(ctx, game.ID); err != nil {
			return err
		}
		for _, p := range players {
			if err := tx.SetPlayerStatus(ctx, p.ID, model.StatusOnline); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	actor, err := e.store.UserByPlayer(ctx, playerID)
	if err != nil {
		return err
	}
	e.logger.Info("card played",
		"player", actor.Name, "card", card.String(),
		"game", game.Number, "trick", trick.Number, "play", len(plays))
	if lastInGame {
		e.logger.Info("last card of the game played, game closed",
			"sitting", sitting.Number, "game", game.Number)
	}

	users, err := e.store.UsersForGroup(ctx, player.GroupID)
	if err != nil {
		return err
	}

	// Notification order is load-bearing: the actor's turn-end signal goes
	// first, game_closed never before the final card_played.
	e.pause(ctx, e.cfg.AfterPlay)
	e.bus.Publish(actor.SessionToken, event.KindTurnChanged)
	e.broadcast(users, event.KindCardPlayed)

	if lastInTrick && !lastInGame {
		e.pause(ctx, e.cfg.AfterTrick)
	}

	if !lastInGame {
		nextTrick, nextPlay := trick.Number, len(plays)+1
		if lastInTrick {
			nextTrick, nextPlay = trick.Number+1, 0
		}
		nextSeat := ActiveSeat(game.Number, nextTrick, nextPlay)
		next, err := e.store.UserByPlayer(ctx, sitting.Seating[nextSeat])
		if err != nil {
			return err
		}
		e.pause(ctx, e.cfg.AfterPlay)
		e.bus.Publish(next.SessionToken, event.KindTurnChanged)
		return nil
	}

	e.broadcast(users, event.KindPlayerStatusUpdate)
	e.broadcast(users, event.KindGameClosed)
	return nil
}

// QueryGameState returns the game from the player's perspective and records
// the player's resulting flow status (playing vs waiting for their turn).
func (e *Engine) QueryGameState(ctx context.Context, playerID, gameID uuid.UUID) (*GameView, error) {
	player, err := e.store.PlayerByID(ctx, playerID)
	if err != nil {
		return nil, err
	}
	game, err := e.store.GameByID(ctx, gameID)
	if err != nil {
		return nil, err
	}
	sitting, err := e.store.SittingByID(ctx, game.SittingID)
	if err != nil {
		return nil, err
	}
	if sitting.GroupID != player.GroupID {
		return nil, fmt.Errorf("player is not part of the game's group: %w", store.ErrNotFound)
	}
	mySeat, ok := sitting.SeatOf(playerID)
	if !ok {
		return nil, fmt.Errorf("player has no seat in the sitting: %w", store.ErrNotFound)
	}

	view := &GameView{
		GameID:     game.ID,
		GameNumber: game.Number,
		Closed:     !game.Active,
	}

	for i := 1; i < model.NumSeats; i++ {
		u, err := e.store.UserByPlayer(ctx, sitting.Seating[(mySeat+i)%model.NumSeats])
		if err != nil {
			return nil, err
		}
		view.Opponents = append(view.Opponents, u.Name)
	}

	if game.Active {
		trick, err := e.store.ActiveTrickForGame(ctx, game.ID)
		if err != nil {
			if IsNotFound(err) {
				e.logger.Error("active game has no open trick", "game", game.Number)
				return nil, invariant("game %d is active but has no open trick", game.Number)
			}
			return nil, err
		}
		plays, err := e.store.PlaysForTrick(ctx, trick.ID)
		if err != nil {
			return nil, err
		}
		if len(plays) >= model.PlaysPerTrick {
			e.logger.Error("open trick already holds a full set of plays",
				"game", game.Number, "trick", trick.Number, "plays", len(plays))
			return nil, invariant("trick %d has %d plays but is still active", trick.Number, len(plays))
		}

		for _, p := range plays {
			view.Stack = append(view.Stack, cardView(rules.Resolve(e.rules, p.Suit, p.Rank), false))
		}

		seat := ActiveSeat(game.Number, trick.Number, len(plays))
		view.YourTurn = sitting.Seating[seat] == playerID

		status := model.StatusWaitingForTurn
		if view.YourTurn {
			status = model.StatusPlaying
		}
		if err := e.setPlayerStatus(ctx, player, status); err != nil {
			return nil, err
		}
	} else {
		if _, err := e.store.ActiveTrickForGame(ctx, game.ID); err == nil {
			e.logger.Error("closed game still has an open trick", "game", game.Number)
			return nil, invariant("game %d is closed but still has an open trick", game.Number)
		} else if !IsNotFound(err) {
			return nil, err
		}
	}

	hand, err := e.store.HandCards(ctx, playerID)
	if err != nil {
		return nil, err
	}
	for _, hc := range hand {
		view.Hand = append(view.Hand, cardView(rules.Resolve(e.rules, hc.Suit, hc.Rank), view.YourTurn))
	}

	results, err := e.trickResults(ctx, game)
	if err != nil {
		return nil, err
	}
	view.Tricks = results

	return view, nil
}

// trickResults evaluates the sealed tricks of a game.
func (e *Engine) trickResults(ctx context.Context, game *model.Game) ([]TrickResult, error) {
	tricks, err := e.store.TricksForGame(ctx, game.ID)
	if err != nil {
		return nil, err
	}
	if len(tricks) > model.TricksPerGame {
		e.logger.Error("game exceeds its trick count", "game", game.Number, "tricks", len(tricks))
		return nil, invariant("game %d has %d tricks", game.Number, len(tricks))
	}

	var results []TrickResult
	for _, trick := range tricks {
		if trick.Active {
			continue
		}
		plays, err := e.store.PlaysForTrick(ctx, trick.ID)
		if err != nil {
			return nil, err
		}
		cards := make([]deck.Card, len(plays))
		for i, p := range plays {
			cards[i] = rules.Resolve(e.rules, p.Suit, p.Rank)
		}
		winner, err := rules.Winner(e.rules, cards)
		if err != nil {
			return nil, err
		}
		u, err := e.store.UserByPlayer(ctx, plays[winner].PlayerID)
		if err != nil {
			return nil, err
		}
		results = append(results, TrickResult{
			Number: trick.Number,
			Winner: u.Name,
			Points: rules.Points(cards),
		})
	}
	return results, nil
}

// setPlayerStatus records a status change and tells the rest of the group.
func (e *Engine) setPlayerStatus(ctx context.Context, player *model.Player, status model.PlayerStatus) error {
	if player.Status == status {
		return nil
	}
	err := e.store.Transact(ctx, func(tx store.Tx) error {
		return tx.SetPlayerStatus(ctx, player.ID, status)
	})
	if err != nil {
		return err
	}
	player.Status = status

	users, err := e.store.UsersForGroup(ctx, player.GroupID)
	if err != nil {
		return err
	}
	self, err := e.store.UserByPlayer(ctx, player.ID)
	if err != nil {
		return err
	}
	for _, u := range users {
		if u.ID != self.ID {
			e.bus.Publish(u.SessionToken, event.KindPlayerStatusUpdate)
		}
	}
	return nil
}

// MarkOnline resets a player to idle, the one cleanup action that runs when
// their client disconnects mid-wait.
func (e *Engine) MarkOnline(ctx context.Context, playerID uuid.UUID) error {
	player, err := e.store.PlayerByID(ctx, playerID)
	if err != nil {
		return err
	}
	return e.setPlayerStatus(ctx, player, model.StatusOnline)
}

// broadcast sets the given signal for every user's session.
func (e *Engine) broadcast(users []*model.User, kind event.Kind) {
	for _, u := range users {
		e.bus.Publish(u.SessionToken, kind)
	}
}

// pause suspends between a commit and its notifications. Cancelling the
// context cuts the delay short but never the publishes that follow it; the
// transition is already committed.
func (e *Engine) pause(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := e.clock.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}
