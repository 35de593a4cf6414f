// Package storage contains the storage-agnostic contracts of the load
// layer: the Store/Tx interfaces the batch driver writes through, a small
// factory registry so backends can be selected by configuration, and the
// write-error taxonomy.
//
// Conflict policy is part of the contract, not an implementation detail:
//
//   - songs, artists: insert, do nothing on primary-key conflict (catalog
//     data is immutable; reprocessing must be idempotent).
//   - users: insert, on conflict update level only (last write wins).
//   - time: insert, do nothing on conflict (the derivation is pure, so a
//     duplicate row carries identical derived fields).
//   - songplays: append; when replay de-duplication is enabled, do nothing
//     on play_hash conflict.
package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/AliAbdElhafeez/Sparkify-Data-Modeling/internal/schema"
)

// Config selects and configures a storage backend.
type Config struct {
	// Kind selects the backend implementation ("postgres", "sqlite").
	Kind string

	// DSN is the backend connection string.
	DSN string

	// DedupePlays enables the replay guard: a unique constraint over
	// play_hash with insert-or-ignore semantics, so reloading a log file
	// does not duplicate fact rows.
	DedupePlays bool
}

// SongMatch is the result of the enrichment lookup: the identifier pair of
// a catalog row whose (title, artist name, duration) exactly match a play
// event.
type SongMatch struct {
	SongID   string
	ArtistID string
}

// Store is an open connection to the relational store. Implementations are
// single-writer; the driver never uses a Store from more than one goroutine.
type Store interface {
	// Ping verifies the store is reachable. The driver treats a failed
	// Ping before any file is processed as fatal.
	Ping(ctx context.Context) error

	// EnsureSchema creates the five star-schema tables and their indexes
	// if they do not exist.
	EnsureSchema(ctx context.Context) error

	// Begin opens the transaction that scopes one input file's writes.
	Begin(ctx context.Context) (Tx, error)

	Close()
}

// Tx carries one file's writes. Commit makes them durable; Rollback (safe
// to call after Commit) discards them.
type Tx interface {
	WriteSong(ctx context.Context, row schema.SongRow) error
	WriteArtist(ctx context.Context, row schema.ArtistRow) error
	WriteUser(ctx context.Context, row schema.UserRow) error
	WriteTime(ctx context.Context, row schema.TimeRow) error
	WriteSongPlay(ctx context.Context, row schema.SongPlayRow) error

	// LookupSong resolves (title, artist name, duration) to a catalog
	// identifier pair by exact match, float equality included. The second
	// return value is false when nothing matches. When several catalog
	// rows carry identical attributes the lowest song_id wins; the
	// pipeline documents this rather than failing.
	LookupSong(ctx context.Context, title, artist string, duration float64) (SongMatch, bool, error)

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Factory constructs a Store for a Config. Backends register their factory
// in init.
type Factory func(ctx context.Context, cfg Config) (Store, error)

var (
	regMu     sync.RWMutex
	factories = map[string]Factory{}
)

// Register registers (or replaces) the factory for a backend kind. It is
// typically called from backend packages' init functions.
func Register(kind string, fn Factory) {
	regMu.Lock()
	defer regMu.Unlock()
	factories[kind] = fn
}

// New opens a Store for cfg.Kind using the registered factory.
func New(ctx context.Context, cfg Config) (Store, error) {
	regMu.RLock()
	fn, ok := factories[cfg.Kind]
	regMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported storage.kind=%s", cfg.Kind)
	}
	return fn(ctx, cfg)
}

// ListKinds returns a sorted snapshot of the registered backend kinds.
func ListKinds() []string {
	regMu.RLock()
	defer regMu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
