package scheduler

import (
	"container/heap"
	"testing"
	"time"
)

func TestJobHeap_OrderAndRemove(t *testing.T) {
	base := time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)
	h := &jobHeap{}
	jobs := map[string]*job{}
	for i, id := range []string{"c", "a", "d", "b"} {
		offset := map[string]int{"a": 1, "b": 2, "c": 3, "d": 4}[id]
		j := &job{id: id, fireAt: base.Add(time.Duration(offset) * time.Minute)}
		jobs[id] = j
		heap.Push(h, j)
		if j.index < 0 {
			t.Fatalf("push %d: index not set", i)
		}
	}

	h.remove(jobs["b"])
	h.remove(jobs["b"]) // already removed

	var got []string
	for h.Len() > 0 {
		got = append(got, heap.Pop(h).(*job).id)
	}
	want := []string{"a", "c", "d"}
	if len(got) != len(want) {
		t.Fatalf("want %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("want %v, got %v", want, got)
		}
	}
	if jobs["a"].index != -1 {
		t.Fatal("popped job keeps a heap index")
	}
}
