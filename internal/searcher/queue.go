package searcher

// FrontierQueue is a binary min-heap of Candidates, closest first, with the
// same id tie-break as the result heap. Graph search pops from it to pick the
// next node to expand.
// It does NOT implement container/heap to avoid interface overhead.
type FrontierQueue struct {
	items []Candidate
}

// NewFrontierQueue creates a new frontier queue.
func NewFrontierQueue(capacity int) *FrontierQueue {
	return &FrontierQueue{items: make([]Candidate, 0, capacity)}
}

// Reset clears the queue for reuse.
func (q *FrontierQueue) Reset() {
	q.items = q.items[:0]
}

// Len returns the number of elements in the queue.
func (q *FrontierQueue) Len() int {
	return len(q.items)
}

// Push inserts an item while maintaining the heap invariant.
func (q *FrontierQueue) Push(c Candidate) {
	q.items = append(q.items, c)
	i := len(q.items) - 1
	for i > 0 {
		parent := (i - 1) / 2
		if !Better(q.items[i], q.items[parent]) {
			break
		}
		q.items[i], q.items[parent] = q.items[parent], q.items[i]
		i = parent
	}
}

// Top returns the closest element.
func (q *FrontierQueue) Top() (Candidate, bool) {
	if len(q.items) == 0 {
		return Candidate{}, false
	}
	return q.items[0], true
}

// Pop removes and returns the closest element.
func (q *FrontierQueue) Pop() (Candidate, bool) {
	n := len(q.items)
	if n == 0 {
		return Candidate{}, false
	}

	item := q.items[0]
	q.items[0] = q.items[n-1]
	q.items = q.items[:n-1]

	n--
	i := 0
	for {
		left := 2*i + 1
		if left >= n {
			break
		}
		child := left
		if right := left + 1; right < n && Better(q.items[right], q.items[left]) {
			child = right
		}
		if !Better(q.items[child], q.items[i]) {
			break
		}
		q.items[i], q.items[child] = q.items[child], q.items[i]
		i = child
	}

	return item, true
}
