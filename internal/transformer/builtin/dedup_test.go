package builtin

import (
	"reflect"
	"testing"

	"github.com/AliAbdElhafeez/Sparkify-Data-Modeling/pkg/records"
)

/*
TestDeDup_KeepLast verifies the default policy: for duplicate keys the
latest record wins, while output order follows first occurrence. This is
the in-batch form of the users table's last-write-wins level update.
*/
func TestDeDup_KeepLast(t *testing.T) {
	in := []records.Record{
		{"userId": "8", "level": "free"},
		{"userId": "10", "level": "paid"},
		{"userId": "8", "level": "paid"},
	}

	out := DeDup{Keys: []string{"userId"}}.Apply(in)

	want := []records.Record{
		{"userId": "8", "level": "paid"},
		{"userId": "10", "level": "paid"},
	}
	if !reflect.DeepEqual(out, want) {
		t.Fatalf("DeDup keep-last = %v; want %v", out, want)
	}
}

/*
TestDeDup_KeepFirst verifies the keep-first policy used for time-dimension
records, where all duplicates carry identical derived fields.
*/
func TestDeDup_KeepFirst(t *testing.T) {
	in := []records.Record{
		{"ts": "1000", "n": 1},
		{"ts": "1000", "n": 2},
		{"ts": "2000", "n": 3},
	}

	out := DeDup{Keys: []string{"ts"}, Policy: "keep-first"}.Apply(in)

	if len(out) != 2 {
		t.Fatalf("DeDup keep-first returned %d records; want 2", len(out))
	}
	if out[0]["n"] != 1 {
		t.Fatalf("winner for ts=1000 has n=%v; want 1", out[0]["n"])
	}
}

/*
TestDeDup_CompositeKeyAndAbsence verifies that multi-field keys work and
that an absent field is distinct from an empty one.
*/
func TestDeDup_CompositeKeyAndAbsence(t *testing.T) {
	in := []records.Record{
		{"a": "x", "b": "y"},
		{"a": "x"},          // b absent
		{"a": "x", "b": ""}, // b empty
	}

	out := DeDup{Keys: []string{"a", "b"}}.Apply(in)
	if len(out) != 3 {
		t.Fatalf("DeDup collapsed distinct keys: got %d records; want 3", len(out))
	}
}

/*
TestDeDup_NoKeys verifies that an empty key list is a no-op.
*/
func TestDeDup_NoKeys(t *testing.T) {
	in := []records.Record{{"a": 1}, {"a": 1}}
	out := DeDup{}.Apply(in)
	if len(out) != 2 {
		t.Fatalf("DeDup without keys dropped records: got %d; want 2", len(out))
	}
}
