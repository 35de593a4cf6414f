// Package postgres implements the star-schema store on PostgreSQL using
// pgx v5. Every write is a single bound-parameter statement; transaction
// scope (one per input file) is owned by the batch driver through the
// storage.Tx it receives from Begin.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/AliAbdElhafeez/Sparkify-Data-Modeling/internal/schema"
	"github.com/AliAbdElhafeez/Sparkify-Data-Modeling/internal/storage"
)

func init() {
	storage.Register("postgres", func(ctx context.Context, cfg storage.Config) (storage.Store, error) {
		return NewStore(ctx, cfg)
	})
}

// Store is a Postgres-backed implementation of storage.Store.
type Store struct {
	pool   *pgxpool.Pool
	dedupe bool
}

// NewStore opens a pgx pool for cfg.DSN. The pool is configured lazily;
// reachability is checked by Ping, not here, so that a down database is
// reported as the fatal pre-run condition the driver expects.
func NewStore(ctx context.Context, cfg storage.Config) (*Store, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("pgxpool: %w", err)
	}
	return &Store{pool: pool, dedupe: cfg.DedupePlays}, nil
}

// Ping verifies connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return &storage.WriteError{Op: "ping", Transient: true, Err: err}
	}
	return nil
}

// Begin opens the per-file transaction.
func (s *Store) Begin(ctx context.Context) (storage.Tx, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, wrap("", "begin", err)
	}
	return &pgTx{tx: tx, dedupe: s.dedupe}, nil
}

// Close releases the pool.
func (s *Store) Close() { s.pool.Close() }

const (
	insertSongSQL = `INSERT INTO songs (song_id, title, artist_id, year, duration)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (song_id) DO NOTHING`

	insertArtistSQL = `INSERT INTO artists (artist_id, name, location, latitude, longitude)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (artist_id) DO NOTHING`

	upsertUserSQL = `INSERT INTO users (user_id, first_name, last_name, gender, level)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (user_id) DO UPDATE SET level = EXCLUDED.level`

	insertTimeSQL = `INSERT INTO time (start_time, hour, day, week, month, year, weekday)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (start_time) DO NOTHING`

	insertSongPlaySQL = `INSERT INTO songplays
  (songplay_id, start_time, user_id, level, song_id, artist_id, session_id, location, user_agent, play_hash)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	insertSongPlayDedupeSQL = insertSongPlaySQL + `
ON CONFLICT (play_hash) DO NOTHING`

	lookupSongSQL = `SELECT s.song_id, a.artist_id
FROM songs s
JOIN artists a ON s.artist_id = a.artist_id
WHERE s.title = $1 AND a.name = $2 AND s.duration = $3
ORDER BY s.song_id
LIMIT 1`
)

// pgTx implements storage.Tx on a pgx transaction.
type pgTx struct {
	tx     pgx.Tx
	dedupe bool
}

func (t *pgTx) WriteSong(ctx context.Context, row schema.SongRow) error {
	_, err := t.tx.Exec(ctx, insertSongSQL,
		row.SongID, row.Title, row.ArtistID, row.Year, row.Duration)
	return wrap("songs", "insert", err)
}

func (t *pgTx) WriteArtist(ctx context.Context, row schema.ArtistRow) error {
	_, err := t.tx.Exec(ctx, insertArtistSQL,
		row.ArtistID, row.Name, row.Location, row.Latitude, row.Longitude)
	return wrap("artists", "insert", err)
}

func (t *pgTx) WriteUser(ctx context.Context, row schema.UserRow) error {
	_, err := t.tx.Exec(ctx, upsertUserSQL,
		row.UserID, row.FirstName, row.LastName, row.Gender, row.Level)
	return wrap("users", "upsert", err)
}

func (t *pgTx) WriteTime(ctx context.Context, row schema.TimeRow) error {
	_, err := t.tx.Exec(ctx, insertTimeSQL,
		row.StartTime, row.Hour, row.Day, row.Week, row.Month, row.Year, row.Weekday)
	return wrap("time", "insert", err)
}

func (t *pgTx) WriteSongPlay(ctx context.Context, row schema.SongPlayRow) error {
	sql := insertSongPlaySQL
	if t.dedupe {
		sql = insertSongPlayDedupeSQL
	}
	_, err := t.tx.Exec(ctx, sql,
		row.SongplayID, row.StartTime, row.UserID, row.Level,
		row.SongID, row.ArtistID, row.SessionID, row.Location, row.UserAgent, row.PlayHash)
	return wrap("songplays", "insert", err)
}

func (t *pgTx) LookupSong(ctx context.Context, title, artist string, duration float64) (storage.SongMatch, bool, error) {
	var m storage.SongMatch
	err := t.tx.QueryRow(ctx, lookupSongSQL, title, artist, duration).Scan(&m.SongID, &m.ArtistID)
	if errors.Is(err, pgx.ErrNoRows) {
		return storage.SongMatch{}, false, nil
	}
	if err != nil {
		return storage.SongMatch{}, false, wrap("songs", "lookup", err)
	}
	return m, true, nil
}

func (t *pgTx) Commit(ctx context.Context) error {
	return wrap("", "commit", t.tx.Commit(ctx))
}

func (t *pgTx) Rollback(ctx context.Context) error {
	err := t.tx.Rollback(ctx)
	if errors.Is(err, pgx.ErrTxClosed) {
		return nil
	}
	return wrap("", "rollback", err)
}

// wrap converts a pgx error into a classified storage.WriteError. nil stays
// nil.
func wrap(table, op string, err error) error {
	if err == nil {
		return nil
	}
	return &storage.WriteError{Table: table, Op: op, Transient: isTransient(err), Err: err}
}

// isTransient classifies connectivity and resource errors as retryable.
// SQLSTATE classes: 08 (connection exception), 53 (insufficient resources),
// 57 (operator intervention, e.g. admin shutdown during failover).
func isTransient(err error) bool {
	if pgconn.SafeToRetry(err) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.SQLState()[:2] {
		case "08", "53", "57":
			return true
		}
		return false
	}
	// Errors that never reached the server (dial failures, resets) arrive
	// as net errors rather than PgError.
	var connErr *pgconn.ConnectError
	return errors.As(err, &connErr)
}
