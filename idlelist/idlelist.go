// Package idlelist implements the connection idle list (spec §4.E): a
// doubly-linked list of nodes ordered by last-activity time, with
// head as the oldest. Every I/O touch on a connection unlinks its
// node and re-appends it at the tail in O(1); the event loop trims
// expired nodes from the head.
//
// Hand-rolled rather than built on container/list: spec.md requires a
// node handle a caller can touch and remove in O(1) without a
// container/list wrapper value around each connection, and nothing in
// the example corpus declares a generic intrusive list library that
// gives back a stable handle with that shape (see DESIGN.md).
package idlelist

// Node is a stable handle to one tracked connection. Callers keep the
// *Node returned by PushBack and pass it back into Touch/Remove.
type Node[T any] struct {
	Value        T
	LastActivity int64 // unix milliseconds
	prev, next   *Node[T]
	list         *List[T]
}

// List is a doubly-linked list ordered by last-activity time, oldest
// at the head.
type List[T any] struct {
	head, tail *Node[T]
	size       int
}

// New creates an empty idle list.
func New[T any]() *List[T] {
	return &List[T]{}
}

// PushBack inserts value at the tail (most recently active) with the
// given timestamp and returns its handle.
func (l *List[T]) PushBack(value T, nowMS int64) *Node[T] {
	n := &Node[T]{Value: value, LastActivity: nowMS, list: l}
	l.linkTail(n)
	return n
}

// Touch unlinks node and re-appends it at the tail with a fresh
// timestamp. O(1).
func (l *List[T]) Touch(n *Node[T], nowMS int64) {
	l.unlink(n)
	n.LastActivity = nowMS
	l.linkTail(n)
}

// Remove unlinks node from the list. O(1). Removing a node that is not
// currently in the list is a no-op.
func (l *List[T]) Remove(n *Node[T]) {
	l.unlink(n)
}

// Front returns the oldest node, or nil if the list is empty.
func (l *List[T]) Front() *Node[T] {
	return l.head
}

// Len returns the number of tracked nodes.
func (l *List[T]) Len() int {
	return l.size
}

func (l *List[T]) linkTail(n *Node[T]) {
	n.list = l
	n.prev = l.tail
	n.next = nil
	if l.tail != nil {
		l.tail.next = n
	} else {
		l.head = n
	}
	l.tail = n
	l.size++
}

func (l *List[T]) unlink(n *Node[T]) {
	if n.list != l {
		return
	}
	if n.prev != nil {
		n.prev.next = n.next
	} else {
		l.head = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	} else {
		l.tail = n.prev
	}
	n.prev, n.next, n.list = nil, nil, nil
	l.size--
}
