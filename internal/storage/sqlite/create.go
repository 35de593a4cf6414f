package sqlite

import "context"

// Schema DDL. start_time is stored as epoch milliseconds: SQLite has no
// timestamp type, and an integer key keeps the time table's conflict
// detection exact (text formatting drift would defeat it).
var createTableSQL = []string{
	`CREATE TABLE IF NOT EXISTS artists (
  artist_id TEXT NOT NULL PRIMARY KEY,
  name      TEXT NOT NULL,
  location  TEXT,
  latitude  REAL,
  longitude REAL
);`,
	`CREATE TABLE IF NOT EXISTS songs (
  song_id   TEXT NOT NULL PRIMARY KEY,
  title     TEXT NOT NULL,
  artist_id TEXT REFERENCES artists (artist_id),
  year      INTEGER NOT NULL,
  duration  REAL NOT NULL
);`,
	`CREATE TABLE IF NOT EXISTS users (
  user_id    TEXT NOT NULL PRIMARY KEY,
  first_name TEXT,
  last_name  TEXT,
  gender     TEXT,
  level      TEXT NOT NULL
);`,
	`CREATE TABLE IF NOT EXISTS time (
  start_time INTEGER NOT NULL PRIMARY KEY,
  hour       INTEGER NOT NULL,
  day        INTEGER NOT NULL,
  week       INTEGER NOT NULL,
  month      INTEGER NOT NULL,
  year       INTEGER NOT NULL,
  weekday    TEXT NOT NULL
);`,
	`CREATE TABLE IF NOT EXISTS songplays (
  songplay_id TEXT NOT NULL PRIMARY KEY,
  start_time  INTEGER NOT NULL,
  user_id     TEXT REFERENCES users (user_id),
  level       TEXT,
  song_id     TEXT REFERENCES songs (song_id),
  artist_id   TEXT REFERENCES artists (artist_id),
  session_id  INTEGER,
  location    TEXT,
  user_agent  TEXT,
  play_hash   INTEGER NOT NULL
);`,
	`CREATE INDEX IF NOT EXISTS songs_title_duration_idx ON songs (title, duration);`,
}

const createPlayHashIndexSQL = `CREATE UNIQUE INDEX IF NOT EXISTS songplays_play_hash_key ON songplays (play_hash);`

// EnsureSchema creates the five tables and their indexes if absent.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range createTableSQL {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return wrap("", "create schema", err)
		}
	}
	if s.dedupe {
		if _, err := s.db.ExecContext(ctx, createPlayHashIndexSQL); err != nil {
			return wrap("", "create schema", err)
		}
	}
	return nil
}
