// Package store implements the keyspace data engine (spec §4.A/§4.B/
// §4.C): an open-addressed hash table with progressive rehashing,
// skiplist-backed sorted sets, and the tagged string/hash/sorted-set
// value union with its WRONGTYPE policy.
//
// No third-party library in the teacher or the retrieval pack
// implements a progressively-rehashing open-addressed table or a
// skiplist with span-based rank, so both are hand-rolled here
// directly from spec.md's algorithmic description (see DESIGN.md).
package store

import (
	"hash/maphash"
)

type slotState uint8

const (
	slotEmpty slotState = iota
	slotOccupied
	slotTombstone
)

type slot[V any] struct {
	state slotState
	key   string
	value V
}

// rawTable is a fixed-size open-addressed table with linear probing.
// It never grows itself; Table above it owns the progressive-rehash
// policy.
type rawTable[V any] struct {
	slots []slot[V]
	mask  uint64
	count int // occupied
	used  int // occupied + tombstone, for load-factor accounting
	seed  maphash.Seed
}

func newRawTable[V any](size int) *rawTable[V] {
	if size < 8 {
		size = 8
	}
	// Round up to a power of two.
	n := 8
	for n < size {
		n *= 2
	}
	return &rawTable[V]{
		slots: make([]slot[V], n),
		mask:  uint64(n - 1),
		seed:  maphash.MakeSeed(),
	}
}

func (r *rawTable[V]) hash(key string) uint64 {
	return maphash.String(r.seed, key)
}

// find returns the slot index holding key, if it is currently
// occupied.
func (r *rawTable[V]) find(key string) (int, bool) {
	idx := r.hash(key) & r.mask
	n := uint64(len(r.slots))
	for probe := uint64(0); probe <= r.mask; probe++ {
		i := (idx + probe) % n
		s := &r.slots[i]
		switch s.state {
		case slotEmpty:
			return 0, false
		case slotOccupied:
			if s.key == key {
				return int(i), true
			}
		}
	}
	return 0, false
}

func (r *rawTable[V]) get(key string) (V, bool) {
	if i, found := r.find(key); found {
		return r.slots[i].value, true
	}
	var zero V
	return zero, false
}

// insert writes key/value, creating a new slot or overwriting an
// existing one. Returns true if this created a new entry. Panics if
// the table has no free slot; callers must grow before the table
// fills up (see Table.maybeGrow's 0.75 threshold).
func (r *rawTable[V]) insert(key string, value V) bool {
	idx := r.hash(key) & r.mask
	n := uint64(len(r.slots))
	firstTombstone := -1
	for probe := uint64(0); probe <= r.mask; probe++ {
		i := (idx + probe) % n
		s := &r.slots[i]
		switch s.state {
		case slotOccupied:
			if s.key == key {
				s.value = value
				return false
			}
		case slotTombstone:
			if firstTombstone < 0 {
				firstTombstone = int(i)
			}
		case slotEmpty:
			target := int(i)
			if firstTombstone >= 0 {
				target = firstTombstone
			}
			r.slots[target] = slot[V]{state: slotOccupied, key: key, value: value}
			r.count++
			r.used++
			return true
		}
	}
	panic("store: rawTable full, caller failed to grow before inserting")
}

func (r *rawTable[V]) delete(key string) bool {
	i, found := r.find(key)
	if !found {
		return false
	}
	var zero V
	r.slots[i] = slot[V]{state: slotTombstone, value: zero}
	r.count--
	return true
}

func (r *rawTable[V]) loadFactor() float64 {
	return float64(r.used) / float64(len(r.slots))
}

const (
	migrateBatch   = 128
	growLoadFactor = 0.75
	minTableCap    = 8
)

// Table is an open-addressed hash table with progressive rehashing:
// every public operation migrates a bounded batch of slots from the
// old table to the new one, so no single call pays for a full resize
// (spec.md §4.A).
type Table[V any] struct {
	live      *rawTable[V]
	old       *rawTable[V]
	oldCursor int
}

// NewTable creates an empty table.
func NewTable[V any]() *Table[V] {
	return &Table[V]{live: newRawTable[V](minTableCap)}
}

// migrateStep moves up to migrateBatch slots from old into live. Must
// be called at the start of every public operation.
func (t *Table[V]) migrateStep() {
	if t.old == nil {
		return
	}
	moved := 0
	for moved < migrateBatch && t.oldCursor < len(t.old.slots) {
		s := &t.old.slots[t.oldCursor]
		t.oldCursor++
		if s.state == slotOccupied {
			t.live.insert(s.key, s.value)
			var zero V
			*s = slot[V]{state: slotTombstone, value: zero}
			t.old.count--
		}
		moved++
	}
	if t.oldCursor >= len(t.old.slots) {
		t.old = nil
		t.oldCursor = 0
	}
}

func (t *Table[V]) maybeGrow() {
	if t.old != nil {
		return
	}
	if t.live.loadFactor() > growLoadFactor {
		t.old = t.live
		t.live = newRawTable[V](len(t.old.slots) * 2)
		t.oldCursor = 0
	}
}

// Get looks up key across both the live and (if mid-rehash) old
// tables.
func (t *Table[V]) Get(key string) (V, bool) {
	t.migrateStep()
	if v, ok := t.live.get(key); ok {
		return v, true
	}
	if t.old != nil {
		return t.old.get(key)
	}
	var zero V
	return zero, false
}

// Has reports whether key currently has a live entry.
func (t *Table[V]) Has(key string) bool {
	_, ok := t.Get(key)
	return ok
}

// Set inserts or overwrites key, growing first if the live table is
// over the load-factor threshold. Returns true if this created a new
// entry (spec.md §4.A's upsert: "returns 0 if replaced ... 1 if
// new").
func (t *Table[V]) Set(key string, value V) (created bool) {
	t.migrateStep()
	if t.old != nil {
		if t.old.delete(key) {
			t.live.insert(key, value)
			return false
		}
	}
	t.maybeGrow()
	return t.live.insert(key, value)
}

// Delete removes key if a live entry exists. Returns whether
// something was removed.
func (t *Table[V]) Delete(key string) bool {
	t.migrateStep()
	removedOld := false
	if t.old != nil {
		removedOld = t.old.delete(key)
	}
	removedLive := t.live.delete(key)
	return removedOld || removedLive
}

// Len returns the number of live entries across both tables.
func (t *Table[V]) Len() int {
	n := t.live.count
	if t.old != nil {
		n += t.old.count
	}
	return n
}

// Each calls visit for every live entry, across both tables if
// mid-rehash. Order is unspecified. visit must not mutate the table.
func (t *Table[V]) Each(visit func(key string, value V)) {
	for i := range t.live.slots {
		s := &t.live.slots[i]
		if s.state == slotOccupied {
			visit(s.key, s.value)
		}
	}
	if t.old != nil {
		for i := range t.old.slots {
			s := &t.old.slots[i]
			if s.state == slotOccupied {
				visit(s.key, s.value)
			}
		}
	}
}

// Rehashing reports whether a progressive rehash is currently in
// flight and how far it has progressed, for introspection (SPEC_FULL
// §6 INFO command).
func (t *Table[V]) Rehashing() (inProgress bool, migrated, total int) {
	if t.old == nil {
		return false, 0, 0
	}
	return true, t.oldCursor, len(t.old.slots)
}

// LoadFactor returns the live table's current load factor, for
// introspection.
func (t *Table[V]) LoadFactor() float64 {
	return t.live.loadFactor()
}
