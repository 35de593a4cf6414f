// Package transformer converts parsed records into typed star-schema rows.
//
// The conversions are pure functions over records.Record; nothing in this
// package touches the store. Catalog conversions live in catalog.go, event
// conversions in events.go, and generic record-level rewrites (normalize,
// de-duplicate) in the builtin subpackage.
package transformer

import "github.com/AliAbdElhafeez/Sparkify-Data-Modeling/pkg/records"

// Transformer rewrites a batch of records in place or returns a filtered
// copy. Implementations must not depend on being called more than once.
type Transformer interface {
	Apply([]records.Record) []records.Record
}

// Chain is an ordered list of transformers applied left to right.
type Chain []Transformer

func (c Chain) Apply(in []records.Record) []records.Record {
	out := in
	for _, t := range c {
		out = t.Apply(out)
	}
	return out
}
