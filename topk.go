package kmertop

import (
	"container/heap"
	"slices"
	"strconv"
)

// Record is a token and the number of times it was counted.
type Record struct {
	Token string
	Count uint64
}

// ranksAbove reports whether a ranks strictly above b: higher counts rank
// first and equal counts are ordered by token, lexicographically
// ascending. This is a total order, so the selected records never depend
// on the order they were offered in.
func ranksAbove(a, b Record) bool {
	if a.Count != b.Count {
		return a.Count > b.Count
	}
	return a.Token < b.Token
}

// compareRecords orders records by rank, best first.
func compareRecords(a, b Record) int {
	switch {
	case ranksAbove(a, b):
		return -1
	case ranksAbove(b, a):
		return 1
	default:
		return 0
	}
}

// TopK keeps the n best records offered to it. It always holds exactly n
// records, starting from zero-count sentinels, in a min-heap whose root is
// the lowest ranked record.
type TopK struct {
	h recordHeap
}

// NewTopK creates a selector for the n best records. It panics if n is not
// positive; Options.Validate rejects such an N before a run starts.
func NewTopK(n int) *TopK {
	if n <= 0 {
		panic("kmertop: NewTopK needs a positive n, got " + strconv.Itoa(n))
	}
	h := make(recordHeap, n)
	// A slice of identical sentinels already satisfies the heap invariant.
	return &TopK{h: h}
}

// Len returns the selector's fixed size.
func (t *TopK) Len() int { return len(t.h) }

// Min returns the lowest ranked record currently held.
func (t *TopK) Min() Record { return t.h[0] }

// Offer replaces the lowest ranked record with r if r ranks above it, and
// reports whether it did. O(log n).
func (t *TopK) Offer(token string, count uint64) bool {
	r := Record{Token: token, Count: count}
	if !ranksAbove(r, t.h[0]) {
		return false
	}
	t.h[0] = r
	heap.Fix(&t.h, 0)
	return true
}

// Results returns the held records best first, leaving out the zero-count
// sentinels that were never replaced. O(n log n).
func (t *TopK) Results() []Record {
	out := make([]Record, 0, len(t.h))
	for _, r := range t.h {
		if r.Count > 0 {
			out = append(out, r)
		}
	}
	slices.SortFunc(out, compareRecords)
	return out
}

// recordHeap is a container/heap of records, lowest ranked at the root.
type recordHeap []Record

func (h recordHeap) Len() int           { return len(h) }
func (h recordHeap) Less(i, j int) bool { return ranksAbove(h[j], h[i]) }
func (h recordHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

// Push and Pop are required by heap.Interface; the heap never changes size.
func (h *recordHeap) Push(x any) { *h = append(*h, x.(Record)) }
func (h *recordHeap) Pop() any {
	old := *h
	r := old[len(old)-1]
	*h = old[:len(old)-1]
	return r
}
