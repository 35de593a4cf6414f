package transformer

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/zeebo/xxh3"

	"github.com/AliAbdElhafeez/Sparkify-Data-Modeling/internal/schema"
	"github.com/AliAbdElhafeez/Sparkify-Data-Modeling/pkg/records"
)

// PageNextSong is the page value that marks an actual song play. Every
// other page view (Home, Logout, ...) carries no play information.
const PageNextSong = "NextSong"

// FilterNextSong returns only the records whose page field equals
// "NextSong". The input slice is not modified.
func FilterNextSong(in []records.Record) []records.Record {
	out := make([]records.Record, 0, len(in))
	for _, rec := range in {
		if rec.String("page") == PageNextSong {
			out = append(out, rec)
		}
	}
	return out
}

// EventTime extracts the ts field (epoch milliseconds) of an event record
// as a UTC instant. ts is treated as already representing the intended
// instant; no timezone conversion is applied.
func EventTime(rec records.Record) (time.Time, error) {
	ms, ok := rec.Int64("ts")
	if !ok {
		return time.Time{}, fmt.Errorf("event record has no usable ts field (got %v)", rec["ts"])
	}
	return time.UnixMilli(ms).UTC(), nil
}

// TimeFromMillis derives the time-dimension row for one epoch-millisecond
// instant. The derivation is pure: the same ms always yields the same row.
// Week is the ISO 8601 week of year, which can belong to the adjacent
// calendar year near January 1st.
func TimeFromMillis(ms int64) schema.TimeRow {
	t := time.UnixMilli(ms).UTC()
	_, week := t.ISOWeek()
	return schema.TimeRow{
		StartTime: t,
		Hour:      t.Hour(),
		Day:       t.Day(),
		Week:      week,
		Month:     int(t.Month()),
		Year:      t.Year(),
		Weekday:   t.Weekday().String(),
	}
}

// UserFromEvent maps one event record to a users-dimension row. The second
// return value is false when the record carries no userId: an empty user id
// cannot be a valid key and must not enter the dimension.
func UserFromEvent(rec records.Record) (schema.UserRow, bool) {
	uid := rec.String("userId")
	if uid == "" {
		return schema.UserRow{}, false
	}
	return schema.UserRow{
		UserID:    uid,
		FirstName: rec.String("firstName"),
		LastName:  rec.String("lastName"),
		Gender:    rec.String("gender"),
		Level:     rec.String("level"),
	}, true
}

// SongPlayFromEvent builds the fact row for one NextSong event. songID and
// artistID come from the enrichment lookup and must be both set or both
// nil; the lookup returns a matched pair or nothing, so a one-sided value
// indicates a caller bug.
//
// The row gets a fresh UUID as surrogate key (the fact has no natural key)
// and a replay-guard hash over (start_time, user_id, session_id).
func SongPlayFromEvent(rec records.Record, songID, artistID *string) (schema.SongPlayRow, error) {
	if (songID == nil) != (artistID == nil) {
		return schema.SongPlayRow{}, fmt.Errorf("song_id and artist_id must be resolved together or not at all")
	}

	start, err := EventTime(rec)
	if err != nil {
		return schema.SongPlayRow{}, err
	}

	sessionID, _ := rec.Int64("sessionId")

	var userID *string
	if uid := rec.String("userId"); uid != "" {
		userID = &uid
	}

	row := schema.SongPlayRow{
		SongplayID: uuid.NewString(),
		StartTime:  start,
		UserID:     userID,
		Level:      rec.String("level"),
		SongID:     songID,
		ArtistID:   artistID,
		SessionID:  sessionID,
		Location:   rec.String("location"),
		UserAgent:  rec.String("userAgent"),
	}
	row.PlayHash = PlayHash(start, rec.String("userId"), sessionID)
	return row, nil
}

// PlayHash computes the replay-guard hash for a songplay. It is stored as
// int64 (the database BIGINT) with the uint64 bit pattern preserved.
func PlayHash(start time.Time, userID string, sessionID int64) int64 {
	h := xxh3.New()
	fmt.Fprintf(h, "%d\x1f%s\x1f%d", start.UnixMilli(), userID, sessionID)
	return int64(h.Sum64())
}
