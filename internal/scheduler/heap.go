package scheduler

import "container/heap"

// jobHeap implements container/heap.Interface for *job,
// sorted by fireAt (earliest first, a min-heap). Each job tracks its index
// so a replaced or cancelled job can be removed in O(log n).
type jobHeap []*job

func (h jobHeap) Len() int           { return len(h) }
func (h jobHeap) Less(i, j int) bool { return h[i].fireAt.Before(h[j].fireAt) }

func (h jobHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *jobHeap) Push(x any) {
	j := x.(*job)
	j.index = len(*h)
	*h = append(*h, j)
}

func (h *jobHeap) Pop() any {
	old := *h
	n := len(old)
	j := old[n-1]
	old[n-1] = nil
	j.index = -1
	*h = old[:n-1]
	return j
}

// peek returns the earliest job without removing it, or nil if empty.
func (h jobHeap) peek() *job {
	if len(h) == 0 {
		return nil
	}
	return h[0]
}

// remove drops j from the heap if it is still queued.
func (h *jobHeap) remove(j *job) {
	if j.index < 0 || j.index >= h.Len() || (*h)[j.index] != j {
		return
	}
	heap.Remove(h, j.index)
}
