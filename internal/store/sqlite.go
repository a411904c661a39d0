package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"github.com/doko-game/doko/internal/deck"
	"github.com/doko-game/doko/internal/model"
)

// Ensure SQLiteStore implements Store
var _ Store = (*SQLiteStore)(nil)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// Open creates a SQLiteStore at the given database path. Parent directories
// are created and migrations run automatically.
func Open(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Transact runs fn inside a single transaction.
func (s *SQLiteStore) Transact(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&sqliteTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// UserBySession looks a user up by their session token.
func (s *SQLiteStore) UserBySession(ctx context.Context, token string) (*model.User, error) {
	return scanUser(s.db.QueryRowContext(ctx,
		"SELECT id, name, session_token FROM users WHERE session_token = ?", token))
}

// UserByPlayer returns the user behind a player identity.
func (s *SQLiteStore) UserByPlayer(ctx context.Context, playerID uuid.UUID) (*model.User, error) {
	return scanUser(s.db.QueryRowContext(ctx,
		`SELECT u.id, u.name, u.session_token FROM users u
		 JOIN players p ON p.user_id = u.id WHERE p.id = ?`, playerID.String()))
}

// UsersForGroup returns the group's users sorted by name.
func (s *SQLiteStore) UsersForGroup(ctx context.Context, groupID uuid.UUID) ([]*model.User, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT u.id, u.name, u.session_token FROM users u
		 JOIN players p ON p.user_id = u.id WHERE p.group_id = ? ORDER BY u.name`,
		groupID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query group users: %w", err)
	}
	defer rows.Close()

	var users []*model.User
	for rows.Next() {
		u, err := scanUserRows(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// GroupByID returns a group by ID.
func (s *SQLiteStore) GroupByID(ctx context.Context, id uuid.UUID) (*model.Group, error) {
	g := &model.Group{}
	var rawID string
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name FROM groups WHERE id = ?", id.String(),
	).Scan(&rawID, &g.Name)
	if err != nil {
		return nil, wrapNotFound(err, "group")
	}
	if g.ID, err = uuid.Parse(rawID); err != nil {
		return nil, fmt.Errorf("failed to parse group id: %w", err)
	}
	return g, nil
}

// PlayerByID returns a player by their player ID.
func (s *SQLiteStore) PlayerByID(ctx context.Context, id uuid.UUID) (*model.Player, error) {
	return scanPlayer(s.db.QueryRowContext(ctx,
		"SELECT id, user_id, group_id, status FROM players WHERE id = ?", id.String()))
}

// PlayerByUserAndGroup returns the player identity a user has within a group.
func (s *SQLiteStore) PlayerByUserAndGroup(ctx context.Context, userID, groupID uuid.UUID) (*model.Player, error) {
	return scanPlayer(s.db.QueryRowContext(ctx,
		"SELECT id, user_id, group_id, status FROM players WHERE user_id = ? AND group_id = ?",
		userID.String(), groupID.String()))
}

// PlayersForGroup returns the group's players ordered by their user's name.
func (s *SQLiteStore) PlayersForGroup(ctx context.Context, groupID uuid.UUID) ([]*model.Player, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT p.id, p.user_id, p.group_id, p.status FROM players p
		 JOIN users u ON u.id = p.user_id WHERE p.group_id = ? ORDER BY u.name`,
		groupID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query group players: %w", err)
	}
	defer rows.Close()

	var players []*model.Player
	for rows.Next() {
		p, err := scanPlayerRows(rows)
		if err != nil {
			return nil, err
		}
		players = append(players, p)
	}
	return players, rows.Err()
}

// ActiveSittingForGroup returns the group's single active sitting.
func (s *SQLiteStore) ActiveSittingForGroup(ctx context.Context, groupID uuid.UUID) (*model.Sitting, error) {
	return scanSitting(s.db.QueryRowContext(ctx,
		`SELECT id, group_id, number, active, seat0, seat1, seat2, seat3
		 FROM sittings WHERE group_id = ? AND active = 1`, groupID.String()))
}

// SittingByID returns a sitting by ID.
func (s *SQLiteStore) SittingByID(ctx context.Context, id uuid.UUID) (*model.Sitting, error) {
	return scanSitting(s.db.QueryRowContext(ctx,
		`SELECT id, group_id, number, active, seat0, seat1, seat2, seat3
		 FROM sittings WHERE id = ?`, id.String()))
}

// SittingCount returns how many sittings the group has had.
func (s *SQLiteStore) SittingCount(ctx context.Context, groupID uuid.UUID) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sittings WHERE group_id = ?", groupID.String()).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count sittings: %w", err)
	}
	return n, nil
}

// GameByID returns a game by ID.
func (s *SQLiteStore) GameByID(ctx context.Context, id uuid.UUID) (*model.Game, error) {
	return scanGame(s.db.QueryRowContext(ctx,
		"SELECT id, sitting_id, number, active, starting_seat FROM games WHERE id = ?", id.String()))
}

// ActiveGameForSitting returns the sitting's single active game.
func (s *SQLiteStore) ActiveGameForSitting(ctx context.Context, sittingID uuid.UUID) (*model.Game, error) {
	return scanGame(s.db.QueryRowContext(ctx,
		"SELECT id, sitting_id, number, active, starting_seat FROM games WHERE sitting_id = ? AND active = 1",
		sittingID.String()))
}

// LastGameForSitting returns the sitting's most recent game, active or not.
func (s *SQLiteStore) LastGameForSitting(ctx context.Context, sittingID uuid.UUID) (*model.Game, error) {
	return scanGame(s.db.QueryRowContext(ctx,
		`SELECT id, sitting_id, number, active, starting_seat FROM games
		 WHERE sitting_id = ? ORDER BY number DESC LIMIT 1`, sittingID.String()))
}

// ActiveTrickForGame returns the game's single open trick.
func (s *SQLiteStore) ActiveTrickForGame(ctx context.Context, gameID uuid.UUID) (*model.Trick, error) {
	return scanTrick(s.db.QueryRowContext(ctx,
		"SELECT id, game_id, number, active FROM tricks WHERE game_id = ? AND active = 1",
		gameID.String()))
}

// TricksForGame returns the game's tricks in trick order.
func (s *SQLiteStore) TricksForGame(ctx context.Context, gameID uuid.UUID) ([]*model.Trick, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, game_id, number, active FROM tricks WHERE game_id = ? ORDER BY number",
		gameID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query tricks: %w", err)
	}
	defer rows.Close()

	var tricks []*model.Trick
	for rows.Next() {
		t, err := scanTrickRows(rows)
		if err != nil {
			return nil, err
		}
		tricks = append(tricks, t)
	}
	return tricks, rows.Err()
}

// PlaysForTrick returns the trick's plays in play order.
func (s *SQLiteStore) PlaysForTrick(ctx context.Context, trickID uuid.UUID) ([]model.Play, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, trick_id, number, player_id, suit, rank FROM plays WHERE trick_id = ? ORDER BY number",
		trickID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query plays: %w", err)
	}
	defer rows.Close()

	var plays []model.Play
	for rows.Next() {
		var p model.Play
		var id, tid, pid, suit, rank string
		if err := rows.Scan(&id, &tid, &p.Number, &pid, &suit, &rank); err != nil {
			return nil, fmt.Errorf("failed to scan play: %w", err)
		}
		if err := parseIDs(map[*uuid.UUID]string{&p.ID: id, &p.TrickID: tid, &p.PlayerID: pid}); err != nil {
			return nil, err
		}
		if p.Suit, p.Rank, err = parseCard(suit, rank); err != nil {
			return nil, err
		}
		plays = append(plays, p)
	}
	return plays, rows.Err()
}

// HandCards returns the cards the player currently holds.
func (s *SQLiteStore) HandCards(ctx context.Context, playerID uuid.UUID) ([]model.HandCard, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, player_id, suit, rank FROM hand_cards WHERE player_id = ?",
		playerID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query hand cards: %w", err)
	}
	defer rows.Close()

	var cards []model.HandCard
	for rows.Next() {
		var c model.HandCard
		var id, pid, suit, rank string
		if err := rows.Scan(&id, &pid, &suit, &rank); err != nil {
			return nil, fmt.Errorf("failed to scan hand card: %w", err)
		}
		if err := parseIDs(map[*uuid.UUID]string{&c.ID: id, &c.PlayerID: pid}); err != nil {
			return nil, err
		}
		if c.Suit, c.Rank, err = parseCard(suit, rank); err != nil {
			return nil, err
		}
		cards = append(cards, c)
	}
	return cards, rows.Err()
}

// sqliteTx implements Tx on top of a database transaction.
type sqliteTx struct {
	tx *sql.Tx
}

var _ Tx = (*sqliteTx)(nil)

// CreateUser inserts a user, generating an ID if unset.
func (t *sqliteTx) CreateUser(ctx context.Context, u *model.User) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	_, err := t.tx.ExecContext(ctx,
		"INSERT INTO users (id, name, session_token) VALUES (?, ?, ?)",
		u.ID.String(), u.Name, u.SessionToken)
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// CreateGroup inserts a group, generating an ID if unset.
func (t *sqliteTx) CreateGroup(ctx context.Context, g *model.Group) error {
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	_, err := t.tx.ExecContext(ctx,
		"INSERT INTO groups (id, name) VALUES (?, ?)", g.ID.String(), g.Name)
	if err != nil {
		return fmt.Errorf("failed to insert group: %w", err)
	}
	return nil
}

// CreatePlayer inserts a player, generating an ID if unset.
func (t *sqliteTx) CreatePlayer(ctx context.Context, p *model.Player) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.Status == "" {
		p.Status = model.StatusOffline
	}
	_, err := t.tx.ExecContext(ctx,
		"INSERT INTO players (id, user_id, group_id, status) VALUES (?, ?, ?, ?)",
		p.ID.String(), p.UserID.String(), p.GroupID.String(), string(p.Status))
	if err != nil {
		return fmt.Errorf("failed to insert player: %w", err)
	}
	return nil
}

// CreateSitting inserts a sitting, generating an ID if unset.
func (t *sqliteTx) CreateSitting(ctx context.Context, s *model.Sitting) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO sittings (id, group_id, number, active, seat0, seat1, seat2, seat3)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID.String(), s.GroupID.String(), s.Number, boolToInt(s.Active),
		s.Seating[0].String(), s.Seating[1].String(), s.Seating[2].String(), s.Seating[3].String())
	if err != nil {
		return fmt.Errorf("failed to insert sitting: %w", err)
	}
	return nil
}

// CreateGame inserts a game, generating an ID if unset.
func (t *sqliteTx) CreateGame(ctx context.Context, g *model.Game) error {
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	_, err := t.tx.ExecContext(ctx,
		"INSERT INTO games (id, sitting_id, number, active, starting_seat) VALUES (?, ?, ?, ?, ?)",
		g.ID.String(), g.SittingID.String(), g.Number, boolToInt(g.Active), g.StartingSeat)
	if err != nil {
		return fmt.Errorf("failed to insert game: %w", err)
	}
	return nil
}

// CreateTrick inserts a trick, generating an ID if unset.
func (t *sqliteTx) CreateTrick(ctx context.Context, tr *model.Trick) error {
	if tr.ID == uuid.Nil {
		tr.ID = uuid.New()
	}
	_, err := t.tx.ExecContext(ctx,
		"INSERT INTO tricks (id, game_id, number, active) VALUES (?, ?, ?, ?)",
		tr.ID.String(), tr.GameID.String(), tr.Number, boolToInt(tr.Active))
	if err != nil {
		return fmt.Errorf("failed to insert trick: %w", err)
	}
	return nil
}

// CreatePlay inserts a play, generating an ID if unset.
func (t *sqliteTx) CreatePlay(ctx context.Context, p *model.Play) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	_, err := t.tx.ExecContext(ctx,
		"INSERT INTO plays (id, trick_id, number, player_id, suit, rank) VALUES (?, ?, ?, ?, ?, ?)",
		p.ID.String(), p.TrickID.String(), p.Number, p.PlayerID.String(),
		p.Suit.String(), p.Rank.String())
	if err != nil {
		return fmt.Errorf("failed to insert play: %w", err)
	}
	return nil
}

// ReplaceHand discards the player's current hand and inserts the given cards.
func (t *sqliteTx) ReplaceHand(ctx context.Context, playerID uuid.UUID, cards []model.HandCard) error {
	if _, err := t.tx.ExecContext(ctx,
		"DELETE FROM hand_cards WHERE player_id = ?", playerID.String()); err != nil {
		return fmt.Errorf("failed to clear hand: %w", err)
	}
	for i := range cards {
		c := &cards[i]
		if c.ID == uuid.Nil {
			c.ID = uuid.New()
		}
		c.PlayerID = playerID
		if _, err := t.tx.ExecContext(ctx,
			"INSERT INTO hand_cards (id, player_id, suit, rank) VALUES (?, ?, ?, ?)",
			c.ID.String(), playerID.String(), c.Suit.String(), c.Rank.String()); err != nil {
			return fmt.Errorf("failed to insert hand card: %w", err)
		}
	}
	return nil
}

// DeleteHandCard removes one card from a hand.
func (t *sqliteTx) DeleteHandCard(ctx context.Context, cardID uuid.UUID) error {
	res, err := t.tx.ExecContext(ctx,
		"DELETE FROM hand_cards WHERE id = ?", cardID.String())
	if err != nil {
		return fmt.Errorf("failed to delete hand card: %w", err)
	}
	return requireRow(res, "hand card")
}

// SealTrick marks a trick inactive.
func (t *sqliteTx) SealTrick(ctx context.Context, trickID uuid.UUID) error {
	res, err := t.tx.ExecContext(ctx,
		"UPDATE tricks SET active = 0 WHERE id = ? AND active = 1", trickID.String())
	if err != nil {
		return fmt.Errorf("failed to seal trick: %w", err)
	}
	return requireRow(res, "active trick")
}

// CloseGame marks a game inactive. Closed games never reopen.
func (t *sqliteTx) CloseGame(ctx context.Context, gameID uuid.UUID) error {
	res, err := t.tx.ExecContext(ctx,
		"UPDATE games SET active = 0 WHERE id = ? AND active = 1", gameID.String())
	if err != nil {
		return fmt.Errorf("failed to close game: %w", err)
	}
	return requireRow(res, "active game")
}

// SetPlayerStatus updates a player's game-flow status.
func (t *sqliteTx) SetPlayerStatus(ctx context.Context, playerID uuid.UUID, status model.PlayerStatus) error {
	res, err := t.tx.ExecContext(ctx,
		"UPDATE players SET status = ? WHERE id = ?", string(status), playerID.String())
	if err != nil {
		return fmt.Errorf("failed to set player status: %w", err)
	}
	return requireRow(res, "player")
}

// scanning helpers

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*model.User, error) {
	u := &model.User{}
	var id string
	if err := row.Scan(&id, &u.Name, &u.SessionToken); err != nil {
		return nil, wrapNotFound(err, "user")
	}
	return u, parseIDs(map[*uuid.UUID]string{&u.ID: id})
}

func scanUserRows(rows *sql.Rows) (*model.User, error) {
	return scanUser(rows)
}

func scanPlayer(row rowScanner) (*model.Player, error) {
	p := &model.Player{}
	var id, userID, groupID, status string
	if err := row.Scan(&id, &userID, &groupID, &status); err != nil {
		return nil, wrapNotFound(err, "player")
	}
	p.Status = model.PlayerStatus(status)
	return p, parseIDs(map[*uuid.UUID]string{&p.ID: id, &p.UserID: userID, &p.GroupID: groupID})
}

func scanPlayerRows(rows *sql.Rows) (*model.Player, error) {
	return scanPlayer(rows)
}

func scanSitting(row rowScanner) (*model.Sitting, error) {
	s := &model.Sitting{}
	var id, groupID string
	var active int
	seats := make([]string, model.NumSeats)
	if err := row.Scan(&id, &groupID, &s.Number, &active, &seats[0], &seats[1], &seats[2], &seats[3]); err != nil {
		return nil, wrapNotFound(err, "sitting")
	}
	s.Active = active != 0
	ids := map[*uuid.UUID]string{&s.ID: id, &s.GroupID: groupID}
	for i := range seats {
		ids[&s.Seating[i]] = seats[i]
	}
	return s, parseIDs(ids)
}

func scanGame(row rowScanner) (*model.Game, error) {
	g := &model.Game{}
	var id, sittingID string
	var active int
	if err := row.Scan(&id, &sittingID, &g.Number, &active, &g.StartingSeat); err != nil {
		return nil, wrapNotFound(err, "game")
	}
	g.Active = active != 0
	return g, parseIDs(map[*uuid.UUID]string{&g.ID: id, &g.SittingID: sittingID})
}

func scanTrick(row rowScanner) (*model.Trick, error) {
	t := &model.Trick{}
	var id, gameID string
	var active int
	if err := row.Scan(&id, &gameID, &t.Number, &active); err != nil {
		return nil, wrapNotFound(err, "trick")
	}
	t.Active = active != 0
	return t, parseIDs(map[*uuid.UUID]string{&t.ID: id, &t.GameID: gameID})
}

func scanTrickRows(rows *sql.Rows) (*model.Trick, error) {
	return scanTrick(rows)
}

func parseIDs(ids map[*uuid.UUID]string) error {
	for dst, raw := range ids {
		id, err := uuid.Parse(raw)
		if err != nil {
			return fmt.Errorf("failed to parse stored id %q: %w", raw, err)
		}
		*dst = id
	}
	return nil
}

func parseCard(suit, rank string) (deck.Suit, deck.Rank, error) {
	s, err := deck.ParseSuit(suit)
	if err != nil {
		return 0, 0, fmt.Errorf("stored card is corrupt: %w", err)
	}
	r, err := deck.ParseRank(rank)
	if err != nil {
		return 0, 0, fmt.Errorf("stored card is corrupt: %w", err)
	}
	return s, r, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func wrapNotFound(err error, entity string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", entity, ErrNotFound)
	}
	return fmt.Errorf("failed to read %s: %w", entity, err)
}

func requireRow(res sql.Result, entity string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", entity, ErrNotFound)
	}
	return nil
}
