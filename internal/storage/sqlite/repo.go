// Package sqlite implements the star-schema store on SQLite via
// database/sql. It exists for local runs and for exercising the conflict
// policies and the enrichment lookup against a real database in tests;
// SQLite's upsert syntax matches the Postgres statements closely enough
// that the semantics under test are the same.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sqlite3 "modernc.org/sqlite"

	"github.com/AliAbdElhafeez/Sparkify-Data-Modeling/internal/schema"
	"github.com/AliAbdElhafeez/Sparkify-Data-Modeling/internal/storage"
)

func init() {
	storage.Register("sqlite", func(ctx context.Context, cfg storage.Config) (storage.Store, error) {
		return NewStore(ctx, cfg)
	})
}

// Store is a SQLite-backed implementation of storage.Store.
type Store struct {
	db     *sql.DB
	dedupe bool
}

// NewStore opens a SQLite database using the provided DSN, for example:
//
//	"file:sparkify.db?_pragma=busy_timeout(5000)"
//	"sparkify.db"
func NewStore(ctx context.Context, cfg storage.Config) (*Store, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, fmt.Errorf("sqlite: DSN must not be empty")
	}

	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}

	// The pipeline is single-writer; one connection avoids table-lock
	// contention between the pool's connections.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: enable foreign keys: %w", err)
	}

	return &Store{db: db, dedupe: cfg.DedupePlays}, nil
}

// Ping verifies the database is reachable (for a file DSN, openable).
func (s *Store) Ping(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.db.PingContext(pingCtx); err != nil {
		return &storage.WriteError{Op: "ping", Transient: true, Err: err}
	}
	return nil
}

// Begin opens the per-file transaction.
func (s *Store) Begin(ctx context.Context) (storage.Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, wrap("", "begin", err)
	}
	return &liteTx{tx: tx, dedupe: s.dedupe}, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() { s.db.Close() }

const (
	insertSongSQL = `INSERT INTO songs (song_id, title, artist_id, year, duration)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (song_id) DO NOTHING`

	insertArtistSQL = `INSERT INTO artists (artist_id, name, location, latitude, longitude)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (artist_id) DO NOTHING`

	upsertUserSQL = `INSERT INTO users (user_id, first_name, last_name, gender, level)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (user_id) DO UPDATE SET level = excluded.level`

	insertTimeSQL = `INSERT INTO time (start_time, hour, day, week, month, year, weekday)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (start_time) DO NOTHING`

	insertSongPlaySQL = `INSERT INTO songplays
  (songplay_id, start_time, user_id, level, song_id, artist_id, session_id, location, user_agent, play_hash)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	insertSongPlayDedupeSQL = insertSongPlaySQL + `
ON CONFLICT (play_hash) DO NOTHING`

	lookupSongSQL = `SELECT s.song_id, a.artist_id
FROM songs s
JOIN artists a ON s.artist_id = a.artist_id
WHERE s.title = ? AND a.name = ? AND s.duration = ?
ORDER BY s.song_id
LIMIT 1`
)

// liteTx implements storage.Tx on a database/sql transaction.
type liteTx struct {
	tx     *sql.Tx
	dedupe bool
}

func (t *liteTx) WriteSong(ctx context.Context, row schema.SongRow) error {
	_, err := t.tx.ExecContext(ctx, insertSongSQL,
		row.SongID, row.Title, row.ArtistID, row.Year, row.Duration)
	return wrap("songs", "insert", err)
}

func (t *liteTx) WriteArtist(ctx context.Context, row schema.ArtistRow) error {
	_, err := t.tx.ExecContext(ctx, insertArtistSQL,
		row.ArtistID, row.Name, row.Location, row.Latitude, row.Longitude)
	return wrap("artists", "insert", err)
}

func (t *liteTx) WriteUser(ctx context.Context, row schema.UserRow) error {
	_, err := t.tx.ExecContext(ctx, upsertUserSQL,
		row.UserID, row.FirstName, row.LastName, row.Gender, row.Level)
	return wrap("users", "upsert", err)
}

func (t *liteTx) WriteTime(ctx context.Context, row schema.TimeRow) error {
	_, err := t.tx.ExecContext(ctx, insertTimeSQL,
		row.StartTime.UnixMilli(), row.Hour, row.Day, row.Week, row.Month, row.Year, row.Weekday)
	return wrap("time", "insert", err)
}

func (t *liteTx) WriteSongPlay(ctx context.Context, row schema.SongPlayRow) error {
	stmt := insertSongPlaySQL
	if t.dedupe {
		stmt = insertSongPlayDedupeSQL
	}
	_, err := t.tx.ExecContext(ctx, stmt,
		row.SongplayID, row.StartTime.UnixMilli(), row.UserID, row.Level,
		row.SongID, row.ArtistID, row.SessionID, row.Location, row.UserAgent, row.PlayHash)
	return wrap("songplays", "insert", err)
}

func (t *liteTx) LookupSong(ctx context.Context, title, artist string, duration float64) (storage.SongMatch, bool, error) {
	var m storage.SongMatch
	err := t.tx.QueryRowContext(ctx, lookupSongSQL, title, artist, duration).Scan(&m.SongID, &m.ArtistID)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.SongMatch{}, false, nil
	}
	if err != nil {
		return storage.SongMatch{}, false, wrap("songs", "lookup", err)
	}
	return m, true, nil
}

func (t *liteTx) Commit(ctx context.Context) error {
	return wrap("", "commit", t.tx.Commit())
}

func (t *liteTx) Rollback(ctx context.Context) error {
	err := t.tx.Rollback()
	if errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return wrap("", "rollback", err)
}

// wrap converts a driver error into a classified storage.WriteError. nil
// stays nil.
func wrap(table, op string, err error) error {
	if err == nil {
		return nil
	}
	return &storage.WriteError{Table: table, Op: op, Transient: isTransient(err), Err: err}
}

// SQLite primary result codes worth retrying.
const (
	codeBusy   = 5 // SQLITE_BUSY: another connection holds the lock
	codeLocked = 6 // SQLITE_LOCKED: a table is locked within this connection
)

func isTransient(err error) bool {
	var se *sqlite3.Error
	if errors.As(err, &se) {
		switch se.Code() & 0xff {
		case codeBusy, codeLocked:
			return true
		}
	}
	return false
}
