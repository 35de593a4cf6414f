package etl

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	jsonparser "github.com/AliAbdElhafeez/Sparkify-Data-Modeling/internal/parser/json"
	"github.com/AliAbdElhafeez/Sparkify-Data-Modeling/internal/schema"
	"github.com/AliAbdElhafeez/Sparkify-Data-Modeling/internal/storage"
)

// fakeStore is an in-memory storage.Store. Rows appear in the exported
// slices only when a transaction commits, which is exactly the property the
// driver tests care about.
type fakeStore struct {
	pingErr error

	songs   []schema.SongRow
	artists []schema.ArtistRow
	users   []schema.UserRow
	times   []schema.TimeRow
	plays   []schema.SongPlayRow

	commits   int
	rollbacks int

	// playErr fails the next playErrCount WriteSongPlay calls.
	playErr      error
	playErrCount int
}

func (s *fakeStore) Ping(ctx context.Context) error         { return s.pingErr }
func (s *fakeStore) EnsureSchema(ctx context.Context) error { return nil }
func (s *fakeStore) Close()                                 {}

func (s *fakeStore) Begin(ctx context.Context) (storage.Tx, error) {
	return &fakeTx{st: s}, nil
}

type fakeTx struct {
	st   *fakeStore
	done bool

	songs   []schema.SongRow
	artists []schema.ArtistRow
	users   []schema.UserRow
	times   []schema.TimeRow
	plays   []schema.SongPlayRow
}

func (t *fakeTx) WriteSong(ctx context.Context, row schema.SongRow) error {
	t.songs = append(t.songs, row)
	return nil
}

func (t *fakeTx) WriteArtist(ctx context.Context, row schema.ArtistRow) error {
	t.artists = append(t.artists, row)
	return nil
}

func (t *fakeTx) WriteUser(ctx context.Context, row schema.UserRow) error {
	t.users = append(t.users, row)
	return nil
}

func (t *fakeTx) WriteTime(ctx context.Context, row schema.TimeRow) error {
	t.times = append(t.times, row)
	return nil
}

func (t *fakeTx) WriteSongPlay(ctx context.Context, row schema.SongPlayRow) error {
	if t.st.playErrCount > 0 {
		t.st.playErrCount--
		return t.st.playErr
	}
	t.plays = append(t.plays, row)
	return nil
}

// LookupSong scans committed catalog rows only, mirroring the phase barrier:
// the events phase sees what the catalog phase committed.
func (t *fakeTx) LookupSong(ctx context.Context, title, artist string, duration float64) (storage.SongMatch, bool, error) {
	for _, s := range t.st.songs {
		if s.Title != title || s.Duration != duration {
			continue
		}
		for _, a := range t.st.artists {
			if a.ArtistID == s.ArtistID && a.Name == artist {
				return storage.SongMatch{SongID: s.SongID, ArtistID: s.ArtistID}, true, nil
			}
		}
	}
	return storage.SongMatch{}, false, nil
}

func (t *fakeTx) Commit(ctx context.Context) error {
	t.st.songs = append(t.st.songs, t.songs...)
	t.st.artists = append(t.st.artists, t.artists...)
	t.st.users = append(t.st.users, t.users...)
	t.st.times = append(t.st.times, t.times...)
	t.st.plays = append(t.st.plays, t.plays...)
	t.st.commits++
	t.done = true
	return nil
}

func (t *fakeTx) Rollback(ctx context.Context) error {
	if !t.done {
		t.st.rollbacks++
		t.done = true
	}
	return nil
}

// writeFile creates dir/name with the given NDJSON body and returns dir.
func writeFile(t *testing.T, dir, name, body string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", dir, err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

const catalogLine = `{"song_id":"SOZCTXZ12AB0182364","title":"Setanta matins","artist_id":"AR5KOSW1187FB35FF4","artist_name":"Elena","year":0,"duration":269.58}` + "\n"

// eventLines: two NextSong records (one matching the catalog line, one not)
// plus a Home page view that must be filtered out.
const eventLines = `{"page":"NextSong","ts":1541903636796,"userId":"15","firstName":"Lily","lastName":"Koch","gender":"F","level":"paid","song":"Setanta matins","artist":"Elena","length":269.58,"sessionId":818,"location":"Chicago","userAgent":"Mozilla/5.0"}
{"page":"NextSong","ts":1541910000000,"userId":"15","firstName":"Lily","lastName":"Koch","gender":"F","level":"paid","song":"Unknown Song","artist":"Nobody","length":100.1,"sessionId":818,"location":"Chicago","userAgent":"Mozilla/5.0"}
{"page":"Home","ts":1541910973796,"userId":"15","level":"paid","sessionId":818}
`

/*
TestRun_TwoPhaseLoad runs a full catalog-then-events batch and checks the
committed rows: songplays resolved against the committed catalog, page
filtering, user de-duplication, and the per-phase summaries.
*/
func TestRun_TwoPhaseLoad(t *testing.T) {
	catalogDir := filepath.Join(t.TempDir(), "song_data")
	eventsDir := filepath.Join(t.TempDir(), "log_data")
	writeFile(t, catalogDir, "song.json", catalogLine)
	writeFile(t, eventsDir, "2018-11-11-events.json", eventLines)

	st := &fakeStore{}
	sums, err := NewDriver(st, Options{Job: "test"}).Run(context.Background(), catalogDir, eventsDir)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(sums) != 2 || sums[0].Phase != PhaseCatalog || sums[1].Phase != PhaseEvents {
		t.Fatalf("summaries = %+v; want catalog then events", sums)
	}

	if len(st.songs) != 1 || len(st.artists) != 1 {
		t.Fatalf("catalog rows = %d songs, %d artists; want 1 and 1", len(st.songs), len(st.artists))
	}
	if len(st.plays) != 2 {
		t.Fatalf("songplays = %d; want 2 (Home page view must be filtered)", len(st.plays))
	}

	matched, unmatched := st.plays[0], st.plays[1]
	if matched.SongID == nil || *matched.SongID != "SOZCTXZ12AB0182364" {
		t.Fatalf("matched play SongID = %v; want SOZCTXZ12AB0182364", matched.SongID)
	}
	if matched.ArtistID == nil || *matched.ArtistID != "AR5KOSW1187FB35FF4" {
		t.Fatalf("matched play ArtistID = %v; want AR5KOSW1187FB35FF4", matched.ArtistID)
	}
	if unmatched.SongID != nil || unmatched.ArtistID != nil {
		t.Fatalf("unmatched play ids = (%v, %v); want both nil", unmatched.SongID, unmatched.ArtistID)
	}

	// Both NextSong records carry userId 15; the dimension gets one row.
	if len(st.users) != 1 || st.users[0].UserID != "15" || st.users[0].Level != "paid" {
		t.Fatalf("users = %+v; want one row for user 15 (paid)", st.users)
	}
	// Two distinct instants among the NextSong records.
	if len(st.times) != 2 {
		t.Fatalf("time rows = %d; want 2", len(st.times))
	}

	ev := sums[1]
	if ev.Processed != 1 || ev.Rows.SongPlays != 2 || ev.Rows.PlaysMatched != 1 || ev.Rows.PlaysUnmatched != 1 {
		t.Fatalf("events summary = %+v", ev)
	}
	if st.commits != 2 {
		t.Fatalf("commits = %d; want 2 (one per file)", st.commits)
	}
}

/*
TestRun_PingFailureIsFatal verifies that an unreachable store aborts the run
before any file is touched.
*/
func TestRun_PingFailureIsFatal(t *testing.T) {
	st := &fakeStore{pingErr: errors.New("connection refused")}
	sums, err := NewDriver(st, Options{}).Run(context.Background(), t.TempDir(), "")
	if err == nil {
		t.Fatalf("Run succeeded with failing Ping")
	}
	if len(sums) != 0 {
		t.Fatalf("summaries = %+v; want none", sums)
	}
}

/*
TestRun_MalformedFileSkipped puts a broken file between two good ones and
verifies the batch continues: the bad file lands in Failed, the good files'
rows commit.
*/
func TestRun_MalformedFileSkipped(t *testing.T) {
	eventsDir := filepath.Join(t.TempDir(), "log_data")
	writeFile(t, eventsDir, "a.json", eventLines)
	writeFile(t, eventsDir, "b.json", `{"page":"NextSong","ts":1541903636796,"userId":"2","level":"free","sessionId":1}`+"\n{not json\n")
	writeFile(t, eventsDir, "c.json", eventLines)

	st := &fakeStore{}
	sums, err := NewDriver(st, Options{}).Run(context.Background(), "", eventsDir)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	sum := sums[0]
	if sum.Found != 3 || sum.Processed != 2 || len(sum.Failed) != 1 {
		t.Fatalf("summary = %+v; want 2/3 processed with 1 failure", sum)
	}
	if got := filepath.Base(sum.Failed[0].Path); got != "b.json" {
		t.Fatalf("failed file = %s; want b.json", got)
	}
	if !jsonparser.IsMalformed(sum.Failed[0].Err) {
		t.Fatalf("failure = %v; want malformed input", sum.Failed[0].Err)
	}

	// Nothing from b.json: not even the valid record before the bad line.
	if len(st.plays) != 4 {
		t.Fatalf("songplays = %d; want 4 (2 per good file)", len(st.plays))
	}
	for _, p := range st.plays {
		if p.UserID != nil && *p.UserID == "2" {
			t.Fatalf("row from the malformed file was committed: %+v", p)
		}
	}
}

/*
TestRun_TransientFailureRetries injects one transient write failure and
verifies the file succeeds on the second attempt, with the first attempt
rolled back.
*/
func TestRun_TransientFailureRetries(t *testing.T) {
	eventsDir := filepath.Join(t.TempDir(), "log_data")
	writeFile(t, eventsDir, "a.json", eventLines)

	st := &fakeStore{
		playErr:      &storage.WriteError{Table: "songplays", Op: "insert", Transient: true, Err: errors.New("connection reset")},
		playErrCount: 1,
	}
	sums, err := NewDriver(st, Options{MaxRetries: 2, RetryBackoff: 1}).Run(context.Background(), "", eventsDir)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if sums[0].Processed != 1 || len(sums[0].Failed) != 0 {
		t.Fatalf("summary = %+v; want the file processed after retry", sums[0])
	}
	if st.rollbacks != 1 || st.commits != 1 {
		t.Fatalf("rollbacks=%d commits=%d; want 1 and 1", st.rollbacks, st.commits)
	}
	if len(st.plays) != 2 {
		t.Fatalf("songplays = %d; want 2", len(st.plays))
	}
}

/*
TestRun_DeterministicFailureRollsBack verifies that a non-transient write
failure is not retried and discards every row of the file, including the
dimension rows written before the failure.
*/
func TestRun_DeterministicFailureRollsBack(t *testing.T) {
	eventsDir := filepath.Join(t.TempDir(), "log_data")
	writeFile(t, eventsDir, "a.json", eventLines)

	st := &fakeStore{
		playErr:      &storage.WriteError{Table: "songplays", Op: "insert", Err: errors.New("value out of range")},
		playErrCount: 1,
	}
	sums, err := NewDriver(st, Options{MaxRetries: 3, RetryBackoff: 1}).Run(context.Background(), "", eventsDir)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if sums[0].Processed != 0 || len(sums[0].Failed) != 1 {
		t.Fatalf("summary = %+v; want the file failed without retry", sums[0])
	}
	if st.rollbacks != 1 || st.commits != 0 {
		t.Fatalf("rollbacks=%d commits=%d; want 1 and 0", st.rollbacks, st.commits)
	}
	if len(st.users) != 0 || len(st.times) != 0 || len(st.plays) != 0 {
		t.Fatalf("rows survived a rollback: users=%d times=%d plays=%d", len(st.users), len(st.times), len(st.plays))
	}
	if sums[0].Rows != (RowCounts{}) {
		t.Fatalf("rows counted for a failed file: %+v", sums[0].Rows)
	}
}

/*
TestRun_EmptyUserID verifies that an anonymous NextSong event produces a
songplay with a NULL user and no users row.
*/
func TestRun_EmptyUserID(t *testing.T) {
	eventsDir := filepath.Join(t.TempDir(), "log_data")
	writeFile(t, eventsDir, "a.json",
		`{"page":"NextSong","ts":1541903636796,"userId":"","level":"free","sessionId":52}`+"\n")

	st := &fakeStore{}
	if _, err := NewDriver(st, Options{}).Run(context.Background(), "", eventsDir); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(st.users) != 0 {
		t.Fatalf("users = %+v; want none for an anonymous event", st.users)
	}
	if len(st.plays) != 1 || st.plays[0].UserID != nil {
		t.Fatalf("plays = %+v; want one row with nil UserID", st.plays)
	}
}

/*
TestRun_UserLevelKeepLastInFile verifies that when one file carries the same
user at different levels, the single upsert uses the last observation.
*/
func TestRun_UserLevelKeepLastInFile(t *testing.T) {
	eventsDir := filepath.Join(t.TempDir(), "log_data")
	writeFile(t, eventsDir, "a.json",
		`{"page":"NextSong","ts":1541903636796,"userId":"80","level":"free","sessionId":1}
{"page":"NextSong","ts":1541903700000,"userId":"80","level":"paid","sessionId":1}
`)

	st := &fakeStore{}
	if _, err := NewDriver(st, Options{}).Run(context.Background(), "", eventsDir); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(st.users) != 1 {
		t.Fatalf("users = %d rows; want 1", len(st.users))
	}
	if got := st.users[0].Level; got != "paid" {
		t.Fatalf("level = %q; want paid (last observation wins)", got)
	}
}

/*
TestRun_NormalizeJoinsAcrossVariants loads a catalog title with an NBSP and
an event title with a plain space; with Normalize on, the lookup matches.
*/
func TestRun_NormalizeJoinsAcrossVariants(t *testing.T) {
	catalogDir := filepath.Join(t.TempDir(), "song_data")
	eventsDir := filepath.Join(t.TempDir(), "log_data")
	writeFile(t, catalogDir, "song.json",
		"{\"song_id\":\"SOAAA\",\"title\":\"Setanta matins\",\"artist_id\":\"ARAAA\",\"artist_name\":\"Elena\",\"duration\":269.58}\n")
	writeFile(t, eventsDir, "a.json",
		`{"page":"NextSong","ts":1541903636796,"userId":"15","level":"paid","song":"Setanta matins","artist":"Elena","length":269.58,"sessionId":818}`+"\n")

	st := &fakeStore{}
	if _, err := NewDriver(st, Options{Normalize: true}).Run(context.Background(), catalogDir, eventsDir); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(st.plays) != 1 || st.plays[0].SongID == nil {
		t.Fatalf("plays = %+v; want one matched row", st.plays)
	}
}

/*
TestRun_SingleDirectory verifies that an empty root argument skips that
phase entirely.
*/
func TestRun_SingleDirectory(t *testing.T) {
	catalogDir := filepath.Join(t.TempDir(), "song_data")
	writeFile(t, catalogDir, "song.json", catalogLine)

	st := &fakeStore{}
	sums, err := NewDriver(st, Options{}).Run(context.Background(), catalogDir, "")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(sums) != 1 || sums[0].Phase != PhaseCatalog {
		t.Fatalf("summaries = %+v; want only the catalog phase", sums)
	}
	if sums[0].Rows.Songs != 1 || sums[0].Rows.Artists != 1 {
		t.Fatalf("rows = %+v; want 1 song and 1 artist", sums[0].Rows)
	}
}
