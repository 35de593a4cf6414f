// Package json implements the newline-delimited JSON record source.
//
// Both catalog and activity-log files use the same framing: one JSON object
// per line:
//
//	{"song_id":"SOMZWCG12A8C13C480","title":"I Didn't Mean To",...}
//	{"page":"NextSong","ts":1541903636796,...}
//
// The parser is deliberately strict. A line that is not valid JSON, or whose
// top-level value is not an object, makes the whole file malformed: the
// batch driver must be able to tell a broken file apart from an empty one,
// because a broken file aborts that file's load (and only that file's).
package json

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/AliAbdElhafeez/Sparkify-Data-Modeling/internal/parser"
	"github.com/AliAbdElhafeez/Sparkify-Data-Modeling/pkg/records"
)

// Decoder satisfies the pipeline's record-reader contract.
var _ parser.RecordReader = (*Decoder)(nil)

// MalformedInputError reports a record that could not be parsed. Line is
// 1-based and counts records, not physical lines, since a JSON object may in
// principle span several lines.
type MalformedInputError struct {
	Path string // input file, "" when decoding a bare stream
	Line int
	Err  error
}

func (e *MalformedInputError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("malformed input at record %d: %v", e.Line, e.Err)
	}
	return fmt.Sprintf("malformed input in %s at record %d: %v", e.Path, e.Line, e.Err)
}

func (e *MalformedInputError) Unwrap() error { return e.Err }

// IsMalformed reports whether err is (or wraps) a MalformedInputError.
func IsMalformed(err error) bool {
	var m *MalformedInputError
	return errors.As(err, &m)
}

// Decoder reads records.Record values from an NDJSON stream.
type Decoder struct {
	dec  *json.Decoder
	path string
	n    int // records consumed so far
}

// NewDecoder constructs a Decoder for r. path is used only for error
// messages and may be empty.
func NewDecoder(r io.Reader, path string) *Decoder {
	d := json.NewDecoder(r)
	// UseNumber so transformers decide how to interpret numeric fields;
	// float64 would silently lose precision on epoch-millisecond values.
	d.UseNumber()
	return &Decoder{dec: d, path: path}
}

// Next returns the next record in the stream. It returns io.EOF when the
// stream is exhausted and *MalformedInputError when the next value is not a
// JSON object.
func (d *Decoder) Next() (records.Record, error) {
	var raw any
	if err := d.dec.Decode(&raw); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, &MalformedInputError{Path: d.path, Line: d.n + 1, Err: err}
	}
	d.n++

	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, &MalformedInputError{
			Path: d.path,
			Line: d.n,
			Err:  fmt.Errorf("top-level value is %T, not an object", raw),
		}
	}
	return records.Record(obj), nil
}

// DecodeAll reads every record from r. On a malformed record it returns the
// records successfully decoded before it along with the error, so callers
// can report how far they got.
func DecodeAll(r io.Reader, path string) ([]records.Record, error) {
	return parser.ReadAll(NewDecoder(r, path))
}

// DecodeFile opens path and decodes all records in it.
func DecodeFile(path string) ([]records.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return DecodeAll(f, path)
}
