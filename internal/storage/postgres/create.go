package postgres

import (
	"context"
)

// Schema DDL. Statements are idempotent (IF NOT EXISTS) so EnsureSchema can
// run on every invocation.
//
// The (title, duration) index serves the enrichment lookup; the pipeline's
// own writes need nothing beyond the primary keys.
var createTableSQL = []string{
	`CREATE TABLE IF NOT EXISTS artists (
  artist_id text NOT NULL,
  name      text NOT NULL,
  location  text,
  latitude  double precision,
  longitude double precision,
  PRIMARY KEY (artist_id)
);`,
	`CREATE TABLE IF NOT EXISTS songs (
  song_id   text NOT NULL,
  title     text NOT NULL,
  artist_id text REFERENCES artists (artist_id),
  year      integer NOT NULL,
  duration  double precision NOT NULL,
  PRIMARY KEY (song_id)
);`,
	`CREATE TABLE IF NOT EXISTS users (
  user_id    text NOT NULL,
  first_name text,
  last_name  text,
  gender     text,
  level      text NOT NULL,
  PRIMARY KEY (user_id)
);`,
	`CREATE TABLE IF NOT EXISTS time (
  start_time timestamptz NOT NULL,
  hour       integer NOT NULL,
  day        integer NOT NULL,
  week       integer NOT NULL,
  month      integer NOT NULL,
  year       integer NOT NULL,
  weekday    text NOT NULL,
  PRIMARY KEY (start_time)
);`,
	`CREATE TABLE IF NOT EXISTS songplays (
  songplay_id text NOT NULL,
  start_time  timestamptz NOT NULL,
  user_id     text REFERENCES users (user_id),
  level       text,
  song_id     text REFERENCES songs (song_id),
  artist_id   text REFERENCES artists (artist_id),
  session_id  bigint,
  location    text,
  user_agent  text,
  play_hash   bigint NOT NULL,
  PRIMARY KEY (songplay_id)
);`,
	`CREATE INDEX IF NOT EXISTS songs_title_duration_idx ON songs (title, duration);`,
}

const createPlayHashIndexSQL = `CREATE UNIQUE INDEX IF NOT EXISTS songplays_play_hash_key ON songplays (play_hash);`

// EnsureSchema creates the five tables and their indexes. The unique
// replay-guard index is only created when de-duplication is enabled, since
// it changes the meaning of reloading a log file.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range createTableSQL {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return wrap("", "create schema", err)
		}
	}
	if s.dedupe {
		if _, err := s.pool.Exec(ctx, createPlayHashIndexSQL); err != nil {
			return wrap("", "create schema", err)
		}
	}
	return nil
}
