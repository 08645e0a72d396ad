// Package ttlqueue implements the keyspace's expiry heap (spec §4.D):
// a min-heap of (deadline, key) pairs where each key carries its own
// heap-index back-pointer, so scheduling, canceling, and popping due
// entries are all O(log N).
//
// This is the in-memory analogue of the teacher's
// storage/queue.Queue: the same "peek earliest, sleep until it's due,
// wake early on a new arrival" shape, but backed by an in-process heap
// instead of a persisted B-tree, since keyspace TTLs do not survive a
// restart (spec.md §1, "no durability guarantees").
package ttlqueue

import (
	"kvcached/heap"
)

// DeadlineMS is an absolute deadline in milliseconds, comparable
// against a monotonic "now" supplied by the caller.
type DeadlineMS int64

type entry struct {
	key      string
	deadline DeadlineMS
	index    int
}

// Queue schedules keys by absolute millisecond deadline.
type Queue struct {
	h     *heap.Heap[*entry]
	byKey map[string]*entry
}

// New creates an empty expiry queue.
func New() *Queue {
	q := &Queue{byKey: map[string]*entry{}}
	q.h = heap.NewIndexed(
		func(a, b *entry) bool { return a.deadline < b.deadline },
		func(e *entry, index int) { e.index = index },
	)
	return q
}

// Schedule inserts a new deadline for key, or replaces the existing
// one if key is already scheduled. O(log N).
func (q *Queue) Schedule(key string, deadline DeadlineMS) {
	if e, found := q.byKey[key]; found {
		q.h.RemoveAt(e.index)
	}
	e := &entry{key: key, deadline: deadline}
	q.byKey[key] = e
	q.h.Push(e)
}

// Cancel removes key's scheduled deadline, if any. Returns whether a
// deadline was removed. O(log N).
func (q *Queue) Cancel(key string) bool {
	e, found := q.byKey[key]
	if !found {
		return false
	}
	delete(q.byKey, key)
	q.h.RemoveAt(e.index)
	return true
}

// Deadline returns key's scheduled deadline, if any.
func (q *Queue) Deadline(key string) (DeadlineMS, bool) {
	e, found := q.byKey[key]
	if !found {
		return 0, false
	}
	return e.deadline, true
}

// Peek returns the earliest scheduled deadline without removing it.
func (q *Queue) Peek() (DeadlineMS, bool) {
	e, found := q.h.Peek()
	if !found {
		return 0, false
	}
	return e.deadline, true
}

// PopDue removes and returns every key whose deadline is <= now, in
// deadline order.
func (q *Queue) PopDue(now DeadlineMS) []string {
	var due []string
	for {
		e, found := q.h.Peek()
		if !found || e.deadline > now {
			break
		}
		q.h.Pop()
		delete(q.byKey, e.key)
		due = append(due, e.key)
	}
	return due
}

// Len returns the number of scheduled deadlines.
func (q *Queue) Len() int {
	return q.h.Size()
}
