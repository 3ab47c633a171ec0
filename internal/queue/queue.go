// Package queue provides a bounded top-k selection heap.
package queue

import "sort"

// Item is a scored row.
type Item struct {
	Index int
	Score float32
}

// better orders by descending score, then ascending index.
func better(a, b Item) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.Index < b.Index
}

// TopK keeps the k best items seen so far. The root of the heap is the worst
// kept item, so a candidate is compared against it in O(1).
type TopK struct {
	k     int
	items []Item
}

// NewTopK creates a selector for the k best items.
func NewTopK(k int) *TopK {
	return &TopK{k: k, items: make([]Item, 0, min(k, 1024))}
}

// Len returns the number of kept items.
func (q *TopK) Len() int { return len(q.items) }

// Push offers an item, keeping it if it ranks among the k best.
func (q *TopK) Push(index int, score float32) {
	if q.k <= 0 {
		return
	}
	it := Item{Index: index, Score: score}
	if len(q.items) < q.k {
		q.items = append(q.items, it)
		q.siftUp(len(q.items) - 1)
		return
	}
	if better(it, q.items[0]) {
		q.items[0] = it
		q.siftDown(0)
	}
}

// Worst returns the lowest ranked kept item.
func (q *TopK) Worst() (Item, bool) {
	if len(q.items) == 0 {
		return Item{}, false
	}
	return q.items[0], true
}

// Sorted returns the kept items best first. The queue is left empty.
func (q *TopK) Sorted() []Item {
	out := q.items
	q.items = nil
	sort.Slice(out, func(i, j int) bool { return better(out[i], out[j]) })
	return out
}

// worse reports whether item i ranks below item j; the heap is ordered by it.
func (q *TopK) worse(i, j int) bool {
	return better(q.items[j], q.items[i])
}

func (q *TopK) siftUp(i int) {
	for i > 0 {
		p := (i - 1) / 2
		if !q.worse(i, p) {
			return
		}
		q.items[i], q.items[p] = q.items[p], q.items[i]
		i = p
	}
}

func (q *TopK) siftDown(i int) {
	n := len(q.items)
	for {
		l := 2*i + 1
		if l >= n {
			return
		}
		w := l
		if r := l + 1; r < n && q.worse(r, l) {
			w = r
		}
		if !q.worse(w, i) {
			return
		}
		q.items[i], q.items[w] = q.items[w], q.items[i]
		i = w
	}
}
