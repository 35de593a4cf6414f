// Package parser defines the contract between record decoders and the rest
// of the pipeline. The json subpackage holds the NDJSON implementation.
package parser

import (
	"io"

	"github.com/AliAbdElhafeez/Sparkify-Data-Modeling/pkg/records"
)

// RecordReader yields records one at a time, returning io.EOF when the
// input is exhausted.
type RecordReader interface {
	Next() (records.Record, error)
}

// ReadAll drains rr. On a decode error it returns the records read before
// it along with the error, so callers can report how far they got.
func ReadAll(rr RecordReader) ([]records.Record, error) {
	var out []records.Record
	for {
		rec, err := rr.Next()
		if err != nil {
			if err == io.EOF {
				return out, nil
			}
			return out, err
		}
		out = append(out, rec)
	}
}
