package heap

// Heap is a binary min-heap over T, ordered by less. When setIndex is
// non-nil it is called after every move so elements can remember their
// own slot; this is what lets callers remove or re-prioritize a
// specific element in O(log N) via RemoveAt instead of only ever
// popping the minimum.
type Heap[T any] struct {
	data     []T
	less     func(a, b T) bool
	setIndex func(value T, index int)
}

// New creates a heap ordered by less.
func New[T any](less func(a, b T) bool) *Heap[T] {
	return &Heap[T]{
		data: []T{},
		less: less,
	}
}

// NewIndexed creates a heap ordered by less whose elements track their
// own position via setIndex, enabling RemoveAt.
func NewIndexed[T any](less func(a, b T) bool, setIndex func(value T, index int)) *Heap[T] {
	return &Heap[T]{
		data:     []T{},
		less:     less,
		setIndex: setIndex,
	}
}

func (h *Heap[T]) Push(value T) {
	h.data = append(h.data, value)
	h.mark(len(h.data) - 1)
	h.bubbleUp(len(h.data) - 1)
}

func (h *Heap[T]) Pop() (T, bool) {
	return h.RemoveAt(0)
}

// RemoveAt removes and returns the element currently at index, which
// callers obtain from setIndex. Returns false if index is out of
// range. O(log N).
func (h *Heap[T]) RemoveAt(index int) (T, bool) {
	if index < 0 || index >= len(h.data) {
		var zero T
		return zero, false
	}
	removed := h.data[index]
	last := len(h.data) - 1
	h.data[index] = h.data[last]
	h.data = h.data[:last]
	if index < len(h.data) {
		h.mark(index)
		h.bubbleDown(index)
		h.bubbleUp(index)
	}
	return removed, true
}

func (h *Heap[T]) Peek() (T, bool) {
	if len(h.data) == 0 {
		var zero T
		return zero, false
	}
	return h.data[0], true
}

func (h *Heap[T]) mark(index int) {
	if h.setIndex != nil {
		h.setIndex(h.data[index], index)
	}
}

func (h *Heap[T]) swap(i, j int) {
	h.data[i], h.data[j] = h.data[j], h.data[i]
	h.mark(i)
	h.mark(j)
}

func (h *Heap[T]) bubbleUp(index int) {
	for index > 0 {
		parent := (index - 1) / 2
		if h.less(h.data[index], h.data[parent]) {
			h.swap(index, parent)
			index = parent
		} else {
			break
		}
	}
}

func (h *Heap[T]) bubbleDown(index int) {
	size := len(h.data)
	for {
		left := 2*index + 1
		right := 2*index + 2
		smallest := index

		if left < size && h.less(h.data[left], h.data[smallest]) {
			smallest = left
		}
		if right < size && h.less(h.data[right], h.data[smallest]) {
			smallest = right
		}
		if smallest == index {
			break
		}

		h.swap(index, smallest)
		index = smallest
	}
}

func (h *Heap[T]) Size() int {
	return len(h.data)
}
