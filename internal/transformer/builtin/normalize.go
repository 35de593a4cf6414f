// Package builtin contains reusable record-level transformers.
//
// Normalize canonicalizes the string fields that participate in the
// song/artist enrichment join. The join is exact equality on title, artist
// name, and duration, so the same text must hash to the same bytes on both
// the catalog side and the event side. Real-world exports disagree on
// Unicode composition ("é" as one rune vs "e"+combining accent) and on
// space characters (NBSP vs ASCII space); Normalize folds both.
package builtin

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/AliAbdElhafeez/Sparkify-Data-Modeling/pkg/records"
)

// Normalize rewrites string fields to NFC form with canonical spaces.
type Normalize struct {
	// Fields limits normalization to the named fields. Empty means every
	// string-valued field in the record.
	Fields []string
}

// spaceFold maps every Unicode space separator to a plain ASCII space.
var spaceFold = runes.Map(func(r rune) rune {
	if unicode.IsSpace(r) {
		return ' '
	}
	return r
})

var normalizer = transform.Chain(norm.NFC, spaceFold)

// Apply normalizes the configured fields of every record in place and
// returns the same slice.
func (n Normalize) Apply(in []records.Record) []records.Record {
	for _, rec := range in {
		if len(n.Fields) == 0 {
			for k, v := range rec {
				if s, ok := v.(string); ok {
					rec[k] = normalizeString(s)
				}
			}
			continue
		}
		for _, k := range n.Fields {
			if s, ok := rec[k].(string); ok {
				rec[k] = normalizeString(s)
			}
		}
	}
	return in
}

// normalizeString applies NFC + space folding, then trims and collapses
// runs of spaces.
func normalizeString(s string) string {
	out, _, err := transform.String(normalizer, s)
	if err != nil {
		// Invalid UTF-8 passes through untouched; the join will simply
		// not match it, which is the correct outcome for garbage input.
		out = s
	}
	return strings.Join(strings.Fields(out), " ")
}
