// Package config defines the canonical, JSON-serializable configuration
// model for the load pipeline. It is intentionally small, explicit, and
// dependency-free so that run definitions can be loaded from disk and
// passed through the program without additional glue code.
//
// Design goals:
//
//  1. Stability: changes to this package should be additive and backwards-
//     compatible whenever possible.
//  2. Clarity: field names in Go mirror the JSON structure used in run
//     files under configs/*.json.
//  3. Minimalism: no third-party config libraries; decoding is performed
//     by the standard library.
//
// Example:
//
//	{
//	  "job": "sparkify",
//	  "catalog": { "path": "data/song_data" },
//	  "events":  { "path": "data/log_data" },
//	  "storage": { "kind": "postgres",
//	               "db": { "dsn": "postgresql://...", "auto_create_tables": true } },
//	  "transform": { "normalize": true, "dedupe_plays": false },
//	  "runtime":   { "max_retries": 3, "retry_backoff_ms": 500 }
//	}
package config

// Pipeline describes one full load run. It is the top-level object decoded
// from a run file.
type Pipeline struct {
	// Job names the run for logs and metrics grouping.
	Job string `json:"job"`

	// Catalog is the root directory of song-catalog NDJSON files, loaded
	// and committed in full before any event file (phase 1).
	Catalog SourceDir `json:"catalog"`

	// Events is the root directory of user-activity NDJSON files
	// (phase 2).
	Events SourceDir `json:"events"`

	// Storage selects and configures the relational store.
	Storage Storage `json:"storage"`

	// Transform toggles the optional record-level rewrites.
	Transform Transform `json:"transform"`

	// Runtime controls retry behavior for transient store failures.
	Runtime Runtime `json:"runtime"`
}

// SourceDir identifies one input directory; all .json files beneath it are
// loaded.
type SourceDir struct {
	Path string `json:"path"`
}

// Storage selects the sink used to persist rows.
type Storage struct {
	// Kind selects the storage implementation: "postgres" or "sqlite".
	Kind string `json:"kind"`

	DB DBConfig `json:"db"`
}

// DBConfig configures the database sink.
type DBConfig struct {
	// DSN is the backend connection string (pgx pool DSN for postgres,
	// file path or URI for sqlite).
	DSN string `json:"dsn"`

	// AutoCreateTables makes the run create the star-schema tables if
	// they do not exist before loading.
	AutoCreateTables bool `json:"auto_create_tables"`
}

// Transform toggles optional record-level rewrites applied before rows are
// built.
type Transform struct {
	// Normalize folds Unicode composition and space variants in the
	// fields that participate in the song/artist join. Off by default:
	// with it off, matching is byte-exact like the source system's.
	Normalize bool `json:"normalize"`

	// DedupePlays enables the songplays replay guard (unique play_hash,
	// insert-or-ignore). Off by default: replays append, like the source
	// system's behavior.
	DedupePlays bool `json:"dedupe_plays"`
}

// Runtime controls driver retry behavior.
type Runtime struct {
	// MaxRetries is the number of additional attempts for a file whose
	// load failed with a transient store error. 0 disables retries.
	MaxRetries int `json:"max_retries"`

	// RetryBackoffMS is the initial backoff between attempts in
	// milliseconds; it doubles per attempt.
	RetryBackoffMS int `json:"retry_backoff_ms"`
}
