// DeDup collapses duplicate records by a configured key before they reach
// the store. The database conflict policies remain the backstop; removing
// intra-file duplicates up front just avoids pointless write round-trips
// (a log file routinely repeats the same userId dozens of times).
//
// Policies:
//
//   - "keep-first": keep the earliest occurrence in the batch
//   - "keep-last" : keep the latest occurrence in the batch (default)
//
// Keys are hashed with xxh3 over the concatenated field values (nil and
// empty are distinguished by a type marker). Run DeDup after Normalize so
// equivalent strings collapse to the same key.
package builtin

import (
	"github.com/zeebo/xxh3"

	"github.com/AliAbdElhafeez/Sparkify-Data-Modeling/pkg/records"
)

// DeDup implements a configurable, in-memory de-duplication policy.
type DeDup struct {
	// Keys are the field names that form the business key, e.g. ["userId"].
	Keys []string

	// Policy selects the winner among duplicates: "keep-first" or
	// "keep-last" (default).
	Policy string
}

// Apply returns a new slice containing only the winning record for each
// key. Relative input order of the winners is preserved.
func (d DeDup) Apply(in []records.Record) []records.Record {
	if len(in) == 0 || len(d.Keys) == 0 {
		return in
	}

	type slot struct {
		rec records.Record
		pos int
	}

	winners := make(map[uint64]*slot, len(in))
	order := make([]uint64, 0, len(in))

	for i, rec := range in {
		k := d.key(rec)
		s, seen := winners[k]
		if !seen {
			winners[k] = &slot{rec: rec, pos: i}
			order = append(order, k)
			continue
		}
		if d.Policy != "keep-first" {
			// keep-last: later occurrence replaces the earlier one but
			// retains the earlier position, so output order is stable.
			s.rec = rec
		}
	}

	out := make([]records.Record, 0, len(order))
	for _, k := range order {
		out = append(out, winners[k].rec)
	}
	return out
}

// key hashes the configured fields of rec into a single 64-bit key.
func (d DeDup) key(rec records.Record) uint64 {
	h := xxh3.New()
	for _, f := range d.Keys {
		if !rec.Has(f) {
			h.WriteString("\x00absent")
		} else {
			h.WriteString("\x01")
			h.WriteString(rec.String(f))
		}
		h.WriteString("\x1f")
	}
	return h.Sum64()
}
