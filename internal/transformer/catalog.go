package transformer

import (
	"fmt"

	"github.com/AliAbdElhafeez/Sparkify-Data-Modeling/internal/schema"
	"github.com/AliAbdElhafeez/Sparkify-Data-Modeling/pkg/records"
)

// SongFromCatalog maps one catalog record to a songs-dimension row.
//
// The mapping is 1:1 with no validation beyond presence of the primary key;
// catalog data is trusted at source. Year 0 and duration 0 pass through as
// stored values, matching the upstream dataset's convention for unknowns.
func SongFromCatalog(rec records.Record) (schema.SongRow, error) {
	id := rec.String("song_id")
	if id == "" {
		return schema.SongRow{}, fmt.Errorf("catalog record has no song_id")
	}

	year, _ := rec.Int("year")
	duration, _ := rec.Float64("duration")

	return schema.SongRow{
		SongID:   id,
		Title:    rec.String("title"),
		ArtistID: rec.String("artist_id"),
		Year:     year,
		Duration: duration,
	}, nil
}

// ArtistFromCatalog maps one catalog record to an artists-dimension row.
// Location, latitude, and longitude are nullable and stay nil when the
// record omits them (or carries JSON null).
func ArtistFromCatalog(rec records.Record) (schema.ArtistRow, error) {
	id := rec.String("artist_id")
	if id == "" {
		return schema.ArtistRow{}, fmt.Errorf("catalog record has no artist_id")
	}

	row := schema.ArtistRow{
		ArtistID: id,
		Name:     rec.String("artist_name"),
	}
	if loc := rec.String("artist_location"); loc != "" {
		row.Location = &loc
	}
	if lat, ok := rec.Float64("artist_latitude"); ok {
		row.Latitude = &lat
	}
	if lon, ok := rec.Float64("artist_longitude"); ok {
		row.Longitude = &lon
	}
	return row, nil
}
