// Package records defines the flat key/value record that flows between the
// parser, the transformers, and the storage layer.
//
// A Record is a plain map so that parsers can produce it without knowing the
// schema, while the typed accessors below give transformers a uniform way to
// read values regardless of how the decoder represented them (encoding/json
// with UseNumber yields json.Number for all numerics, for example).
package records

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Record is one flat record: field name -> raw value.
type Record map[string]any

// String returns the value for key rendered as a string. Missing keys, nil
// values, and non-string scalars that cannot be rendered return "".
//
// json.Number values are returned in their literal form, so an event field
// like userId that arrives as 42 is read back as "42".
func (r Record) String(key string) string {
	switch v := r[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case json.Number:
		return v.String()
	case bool:
		if v {
			return "true"
		}
		return "false"
	default:
		return ""
	}
}

// Float64 returns the value for key as a float64. It accepts json.Number,
// float64, int variants, and numeric strings. The second return value is
// false when the key is absent, nil, or not convertible.
func (r Record) Float64(key string) (float64, bool) {
	switch v := r[key].(type) {
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// Int64 returns the value for key as an int64. Fractional values are
// rejected rather than truncated: an epoch-milliseconds field that arrives
// as 1.5 is malformed, not half a millisecond.
func (r Record) Int64(key string) (int64, bool) {
	switch v := r[key].(type) {
	case json.Number:
		n, err := v.Int64()
		return n, err == nil
	case int64:
		return v, true
	case int:
		return int64(v), true
	case float64:
		n := int64(v)
		if float64(n) != v {
			return 0, false
		}
		return n, true
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		return n, err == nil
	default:
		return 0, false
	}
}

// Int is Int64 narrowed to int, for fields like year that are small by
// construction.
func (r Record) Int(key string) (int, bool) {
	n, ok := r.Int64(key)
	return int(n), ok
}

// Has reports whether key is present with a non-nil value.
func (r Record) Has(key string) bool {
	v, ok := r[key]
	return ok && v != nil
}
