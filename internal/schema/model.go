// Package schema defines the typed rows of the songplay star schema.
//
// One struct per table; nullable columns are pointers. The transformers
// produce these rows and the storage backends consume them, so the structs
// are the single place where the table shapes live.
package schema

import "time"

// SongRow is one row of the songs dimension. Created once per catalog
// record and never updated by the pipeline.
type SongRow struct {
	SongID   string  `db:"song_id"`
	Title    string  `db:"title"`
	ArtistID string  `db:"artist_id"`
	Year     int     `db:"year"`
	Duration float64 `db:"duration"`
}

// ArtistRow is one row of the artists dimension. Location and coordinates
// are frequently absent in catalog data.
type ArtistRow struct {
	ArtistID  string   `db:"artist_id"`
	Name      string   `db:"name"`
	Location  *string  `db:"location"`
	Latitude  *float64 `db:"latitude"`
	Longitude *float64 `db:"longitude"`
}

// UserRow is one row of the users dimension. Level ("free"/"paid") is the
// only mutable column; later observations overwrite earlier ones.
type UserRow struct {
	UserID    string `db:"user_id"`
	FirstName string `db:"first_name"`
	LastName  string `db:"last_name"`
	Gender    string `db:"gender"`
	Level     string `db:"level"`
}

// TimeRow is one row of the time dimension, fully determined by StartTime.
// Week is the ISO 8601 week of year; Weekday is the English day name.
type TimeRow struct {
	StartTime time.Time `db:"start_time"`
	Hour      int       `db:"hour"`
	Day       int       `db:"day"`
	Week      int       `db:"week"`
	Month     int       `db:"month"`
	Year      int       `db:"year"`
	Weekday   string    `db:"weekday"`
}

// SongPlayRow is one row of the songplays fact table.
//
// SongID and ArtistID are either both set (the enrichment lookup matched a
// catalog row) or both nil. UserID is nil when the event carried no user id.
// PlayHash is a content hash of (start_time, user_id, session_id) used as a
// replay guard when fact de-duplication is enabled.
type SongPlayRow struct {
	SongplayID string    `db:"songplay_id"`
	StartTime  time.Time `db:"start_time"`
	UserID     *string   `db:"user_id"`
	Level      string    `db:"level"`
	SongID     *string   `db:"song_id"`
	ArtistID   *string   `db:"artist_id"`
	SessionID  int64     `db:"session_id"`
	Location   string    `db:"location"`
	UserAgent  string    `db:"user_agent"`
	PlayHash   int64     `db:"play_hash"`
}
