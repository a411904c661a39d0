package store

import "database/sql"

// schema is applied on open so the tables always exist. Suits and ranks are
// stored by name; trump status is derived from the ruleset, never persisted.
const schema = `
CREATE TABLE IF NOT EXISTS users (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL UNIQUE,
    session_token TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS groups (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS players (
    id TEXT NOT NULL UNIQUE,
    user_id TEXT NOT NULL,
    group_id TEXT NOT NULL,
    status TEXT NOT NULL DEFAULT 'offline',
    PRIMARY KEY (user_id, group_id),
    FOREIGN KEY (user_id) REFERENCES users(id),
    FOREIGN KEY (group_id) REFERENCES groups(id)
);

CREATE TABLE IF NOT EXISTS sittings (
    id TEXT PRIMARY KEY,
    group_id TEXT NOT NULL,
    number INTEGER NOT NULL,
    active INTEGER NOT NULL DEFAULT 1,
    seat0 TEXT NOT NULL,
    seat1 TEXT NOT NULL,
    seat2 TEXT NOT NULL,
    seat3 TEXT NOT NULL,
    FOREIGN KEY (group_id) REFERENCES groups(id)
);

CREATE TABLE IF NOT EXISTS games (
    id TEXT PRIMARY KEY,
    sitting_id TEXT NOT NULL,
    number INTEGER NOT NULL,
    active INTEGER NOT NULL DEFAULT 1,
    starting_seat INTEGER NOT NULL,
    FOREIGN KEY (sitting_id) REFERENCES sittings(id)
);

CREATE TABLE IF NOT EXISTS tricks (
    id TEXT PRIMARY KEY,
    game_id TEXT NOT NULL,
    number INTEGER NOT NULL,
    active INTEGER NOT NULL DEFAULT 1,
    FOREIGN KEY (game_id) REFERENCES games(id)
);

CREATE TABLE IF NOT EXISTS plays (
    id TEXT PRIMARY KEY,
    trick_id TEXT NOT NULL,
    number INTEGER NOT NULL,
    player_id TEXT NOT NULL,
    suit TEXT NOT NULL,
    rank TEXT NOT NULL,
    FOREIGN KEY (trick_id) REFERENCES tricks(id)
);

CREATE TABLE IF NOT EXISTS hand_cards (
    id TEXT PRIMARY KEY,
    player_id TEXT NOT NULL,
    suit TEXT NOT NULL,
    rank TEXT NOT NULL,
    FOREIGN KEY (player_id) REFERENCES players(id)
);

CREATE INDEX IF NOT EXISTS idx_sittings_group_id ON sittings(group_id);
CREATE INDEX IF NOT EXISTS idx_games_sitting_id ON games(sitting_id);
CREATE INDEX IF NOT EXISTS idx_tricks_game_id ON tricks(game_id);
CREATE INDEX IF NOT EXISTS idx_plays_trick_id ON plays(trick_id);
CREATE INDEX IF NOT EXISTS idx_hand_cards_player_id ON hand_cards(player_id);
`

// runMigrations executes the schema setup.
func runMigrations(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}
