// Package etl contains the batch driver: the orchestration loop that walks
// the input directories, parses each NDJSON file, converts records to rows,
// and writes them through a storage.Tx.
//
// The run has two strictly ordered phases. Phase 1 loads every catalog file
// and commits it; phase 2 loads the activity logs. The barrier between them
// is what makes the enrichment lookup see the full catalog, so the phases
// never interleave.
//
// Each file is one transaction: a failure anywhere in a file rolls back that
// file's rows and the batch moves on to the next file. Transient store
// failures (connectivity, resource exhaustion) retry the whole file with
// doubling backoff; deterministic failures and malformed input do not.
package etl

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/AliAbdElhafeez/Sparkify-Data-Modeling/internal/datasource/file"
	"github.com/AliAbdElhafeez/Sparkify-Data-Modeling/internal/metrics"
	jsonparser "github.com/AliAbdElhafeez/Sparkify-Data-Modeling/internal/parser/json"
	"github.com/AliAbdElhafeez/Sparkify-Data-Modeling/internal/storage"
	"github.com/AliAbdElhafeez/Sparkify-Data-Modeling/internal/transformer"
	"github.com/AliAbdElhafeez/Sparkify-Data-Modeling/internal/transformer/builtin"
	"github.com/AliAbdElhafeez/Sparkify-Data-Modeling/pkg/records"
)

const (
	// PhaseCatalog loads song_data files into songs and artists.
	PhaseCatalog = "catalog"
	// PhaseEvents loads log_data files into time, users, and songplays.
	PhaseEvents = "events"
)

// defaultRetryBackoff is the initial delay before the first retry when the
// configuration leaves it unset.
const defaultRetryBackoff = 500 * time.Millisecond

// Options configures a Driver.
type Options struct {
	// Job names the run in logs and metrics.
	Job string

	// Normalize canonicalizes the join fields (Unicode composition, space
	// variants) on both the catalog and the event side before rows are
	// built.
	Normalize bool

	// MaxRetries is the number of additional attempts for a file that
	// failed with a transient store error. 0 disables retries.
	MaxRetries int

	// RetryBackoff is the initial delay before the first retry; it doubles
	// per attempt. Zero selects the default.
	RetryBackoff time.Duration
}

// RowCounts tallies the rows written by committed files.
type RowCounts struct {
	Songs     int64
	Artists   int64
	Users     int64
	Time      int64
	SongPlays int64

	// PlaysMatched / PlaysUnmatched split SongPlays by whether the
	// enrichment lookup resolved a catalog pair.
	PlaysMatched   int64
	PlaysUnmatched int64
}

func (r *RowCounts) add(o RowCounts) {
	r.Songs += o.Songs
	r.Artists += o.Artists
	r.Users += o.Users
	r.Time += o.Time
	r.SongPlays += o.SongPlays
	r.PlaysMatched += o.PlaysMatched
	r.PlaysUnmatched += o.PlaysUnmatched
}

// FileError records one input file whose load failed after retries.
type FileError struct {
	Path string
	Err  error
}

// Summary is the outcome of one phase.
type Summary struct {
	Phase     string
	Found     int
	Processed int
	Failed    []FileError
	Rows      RowCounts
}

// String renders the one-line run report logged at the end of a phase.
func (s Summary) String() string {
	return fmt.Sprintf(
		"%s: %d/%d files processed, %d failed (songs=%d artists=%d users=%d time=%d songplays=%d matched=%d unmatched=%d)",
		s.Phase, s.Processed, s.Found, len(s.Failed),
		s.Rows.Songs, s.Rows.Artists, s.Rows.Users, s.Rows.Time,
		s.Rows.SongPlays, s.Rows.PlaysMatched, s.Rows.PlaysUnmatched,
	)
}

// Driver runs the two-phase batch load against a single store.
type Driver struct {
	store storage.Store
	opts  Options
}

// NewDriver builds a Driver writing to store. Zero-valued options get
// defaults: job "etl", backoff 500ms.
func NewDriver(store storage.Store, opts Options) *Driver {
	if opts.Job == "" {
		opts.Job = "etl"
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = defaultRetryBackoff
	}
	return &Driver{store: store, opts: opts}
}

// Run executes the batch: catalog phase first (when catalogRoot is set),
// then events (when eventsRoot is set). It returns one Summary per phase
// that ran.
//
// An unreachable store before any file is touched is fatal. A failed file
// is not: its rows roll back, the failure lands in Summary.Failed, and the
// batch continues. Context cancellation aborts between files.
func (d *Driver) Run(ctx context.Context, catalogRoot, eventsRoot string) ([]Summary, error) {
	if err := d.store.Ping(ctx); err != nil {
		return nil, fmt.Errorf("store unreachable: %w", err)
	}

	var summaries []Summary
	if catalogRoot != "" {
		sum, err := d.runPhase(ctx, PhaseCatalog, catalogRoot, d.loadCatalogFile)
		summaries = append(summaries, sum)
		if err != nil {
			return summaries, err
		}
	}
	if eventsRoot != "" {
		sum, err := d.runPhase(ctx, PhaseEvents, eventsRoot, d.loadEventFile)
		summaries = append(summaries, sum)
		if err != nil {
			return summaries, err
		}
	}
	return summaries, nil
}

// loadFunc loads one parsed file's records inside tx, tallying written rows.
type loadFunc func(ctx context.Context, tx storage.Tx, recs []records.Record, rows *RowCounts) error

func (d *Driver) runPhase(ctx context.Context, phase, root string, load loadFunc) (Summary, error) {
	sum := Summary{Phase: phase}

	files, err := file.ListJSON(root)
	if err != nil {
		return sum, err
	}
	sum.Found = len(files)
	log.Printf("%s: %d files found in %s", phase, len(files), root)

	for i, path := range files {
		if err := ctx.Err(); err != nil {
			return sum, err
		}

		start := time.Now()
		err := d.loadFileWithRetry(ctx, path, load, &sum.Rows)
		metrics.RecordFile(d.opts.Job, phase, err, time.Since(start))

		if err != nil {
			sum.Failed = append(sum.Failed, FileError{Path: path, Err: err})
			if jsonparser.IsMalformed(err) {
				metrics.RecordRows(d.opts.Job, "parse_errors", 1)
			}
			log.Printf("%s: %s failed: %v", phase, path, err)
			continue
		}
		sum.Processed++
		log.Printf("%s: %d/%d files processed", phase, i+1, len(files))
	}

	d.recordRows(sum.Rows)
	log.Print(sum)
	return sum, nil
}

// loadFileWithRetry runs loadFile, retrying on transient store failures with
// doubling backoff up to Options.MaxRetries additional attempts.
func (d *Driver) loadFileWithRetry(ctx context.Context, path string, load loadFunc, total *RowCounts) error {
	backoff := d.opts.RetryBackoff
	for attempt := 0; ; attempt++ {
		err := d.loadFile(ctx, path, load, total)
		if err == nil || !storage.IsTransient(err) || attempt >= d.opts.MaxRetries {
			return err
		}
		log.Printf("transient failure on %s (attempt %d/%d), retrying in %s: %v",
			path, attempt+1, d.opts.MaxRetries, backoff, err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
}

// loadFile parses one file and writes it inside a single transaction. Rows
// are tallied into total only after the commit succeeds.
func (d *Driver) loadFile(ctx context.Context, path string, load loadFunc, total *RowCounts) error {
	r, err := file.NewLocal(path).Open(ctx)
	if err != nil {
		return err
	}
	recs, err := jsonparser.DecodeAll(r, path)
	r.Close()
	if err != nil {
		return err
	}

	tx, err := d.store.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var rows RowCounts
	if err := load(ctx, tx, recs, &rows); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}
	total.add(rows)
	return nil
}

// catalogTextFields are the catalog fields Normalize rewrites. title and
// artist_name feed the enrichment join.
var catalogTextFields = []string{"title", "artist_name", "artist_location"}

// eventTextFields are the event fields Normalize rewrites, the event side of
// the same join.
var eventTextFields = []string{"song", "artist"}

// loadCatalogFile writes the artist and song row of every catalog record.
// The artist goes first so the songs.artist_id foreign key resolves within
// the transaction.
func (d *Driver) loadCatalogFile(ctx context.Context, tx storage.Tx, recs []records.Record, rows *RowCounts) error {
	if d.opts.Normalize {
		recs = builtin.Normalize{Fields: catalogTextFields}.Apply(recs)
	}

	for _, rec := range recs {
		artist, err := transformer.ArtistFromCatalog(rec)
		if err != nil {
			return err
		}
		if err := tx.WriteArtist(ctx, artist); err != nil {
			return err
		}
		rows.Artists++

		song, err := transformer.SongFromCatalog(rec)
		if err != nil {
			return err
		}
		if err := tx.WriteSong(ctx, song); err != nil {
			return err
		}
		rows.Songs++
	}
	return nil
}

// loadEventFile writes the time, user, and songplay rows derived from the
// NextSong records of one activity-log file. Dimension rows go in before the
// fact rows so the songplays foreign keys resolve within the transaction.
func (d *Driver) loadEventFile(ctx context.Context, tx storage.Tx, recs []records.Record, rows *RowCounts) error {
	plays := transformer.FilterNextSong(recs)
	if len(plays) == 0 {
		return nil
	}
	if d.opts.Normalize {
		plays = builtin.Normalize{Fields: eventTextFields}.Apply(plays)
	}

	// Time dimension: one row per distinct instant in the file.
	for _, rec := range (builtin.DeDup{Keys: []string{"ts"}, Policy: "keep-first"}).Apply(plays) {
		ms, ok := rec.Int64("ts")
		if !ok {
			return fmt.Errorf("event record has no usable ts field (got %v)", rec["ts"])
		}
		if err := tx.WriteTime(ctx, transformer.TimeFromMillis(ms)); err != nil {
			return err
		}
		rows.Time++
	}

	// Users: the last occurrence within the file wins, matching the
	// cross-file last-write-wins level policy.
	for _, rec := range (builtin.DeDup{Keys: []string{"userId"}, Policy: "keep-last"}).Apply(plays) {
		user, ok := transformer.UserFromEvent(rec)
		if !ok {
			continue
		}
		if err := tx.WriteUser(ctx, user); err != nil {
			return err
		}
		rows.Users++
	}

	for _, rec := range plays {
		var songID, artistID *string
		if length, ok := rec.Float64("length"); ok {
			m, found, err := tx.LookupSong(ctx, rec.String("song"), rec.String("artist"), length)
			if err != nil {
				return err
			}
			if found {
				songID, artistID = &m.SongID, &m.ArtistID
			}
		}

		row, err := transformer.SongPlayFromEvent(rec, songID, artistID)
		if err != nil {
			return err
		}
		if err := tx.WriteSongPlay(ctx, row); err != nil {
			return err
		}
		rows.SongPlays++
		if songID != nil {
			rows.PlaysMatched++
		} else {
			rows.PlaysUnmatched++
		}
	}
	return nil
}

func (d *Driver) recordRows(r RowCounts) {
	job := d.opts.Job
	metrics.RecordRows(job, "songs", r.Songs)
	metrics.RecordRows(job, "artists", r.Artists)
	metrics.RecordRows(job, "users", r.Users)
	metrics.RecordRows(job, "time", r.Time)
	metrics.RecordRows(job, "songplays", r.SongPlays)
	metrics.RecordRows(job, "plays_matched", r.PlaysMatched)
	metrics.RecordRows(job, "plays_unmatched", r.PlaysUnmatched)
}
