// Package intern deduplicates decoded strings within one chunk.
//
// Recordings repeat the same symbols relentlessly (method names, class
// names, thread names); interning makes every repeat share one string
// value instead of retaining a copy per occurrence. Tables are keyed by
// xxHash64 of the raw bytes with the stored string verified on every hit,
// so a hash collision degrades to a plain allocation, never to wrong text.
package intern

import "github.com/cespare/xxhash/v2"

// Table is a per-chunk string intern table. It is not safe for concurrent
// use; chunks are single-threaded by design.
type Table struct {
	strings map[uint64]string
}

// NewTable creates an empty intern table.
func NewTable() *Table {
	return &Table{strings: make(map[uint64]string)}
}

// Intern returns a string equal to b, shared with every previous Intern
// call that passed the same bytes. A lookup hit allocates nothing.
func (t *Table) Intern(b []byte) string {
	if len(b) == 0 {
		return ""
	}

	key := xxhash.Sum64(b)
	if s, ok := t.strings[key]; ok {
		if s == string(b) {
			return s
		}
		// Hash collision: serve a private copy, keep the first occupant.
		return string(b)
	}

	s := string(b)
	t.strings[key] = s

	return s
}

// Len returns the number of distinct strings interned.
func (t *Table) Len() int {
	return len(t.strings)
}
