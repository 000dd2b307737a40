package queue

import (
	"slices"
	"sync"
	"testing"
)

type selection struct {
	SightingID string
	SessionID  string
}

func ids(items []selection) []string {
	out := make([]string, len(items))
	for i, s := range items {
		out[i] = s.SightingID
	}
	return out
}

func TestQueue_GetAndEmptyKeepsOrder(t *testing.T) {
	q := New[selection]()
	q.Push(selection{SightingID: "1"})
	q.Push(selection{SightingID: "2"}, selection{SightingID: "3"})

	if q.Len() != 3 {
		t.Fatalf("expected 3 queued, got %d", q.Len())
	}
	if got := ids(q.GetAndEmpty()); !slices.Equal(got, []string{"1", "2", "3"}) {
		t.Errorf("expected [1 2 3], got %v", got)
	}
	if q.Len() != 0 {
		t.Errorf("expected empty queue, got %d", q.Len())
	}
	if got := q.GetAndEmpty(); len(got) != 0 {
		t.Errorf("expected nothing from an empty queue, got %v", got)
	}
}

func TestQueue_BatchIsDetached(t *testing.T) {
	q := New[int]()
	q.Push(1, 2)
	batch := q.GetAndEmpty()
	q.Push(3)

	if !slices.Equal(batch, []int{1, 2}) {
		t.Errorf("later pushes must not touch a taken batch, got %v", batch)
	}
}

func TestQueue_BoundedDropsOldest(t *testing.T) {
	q := NewBounded[int](3)

	if dropped := q.Push(1, 2, 3); dropped != 0 {
		t.Errorf("expected no drops, got %d", dropped)
	}
	if dropped := q.Push(4, 5); dropped != 2 {
		t.Errorf("expected 2 drops, got %d", dropped)
	}
	if got := q.GetAndEmpty(); !slices.Equal(got, []int{3, 4, 5}) {
		t.Errorf("expected [3 4 5], got %v", got)
	}
	if q.Dropped() != 2 {
		t.Errorf("expected Dropped()=2, got %d", q.Dropped())
	}
}

func TestQueue_NonPositiveLimitIsUnbounded(t *testing.T) {
	q := NewBounded[int](-1)
	for i := 0; i < 1000; i++ {
		q.Push(i)
	}
	if q.Len() != 1000 || q.Dropped() != 0 {
		t.Errorf("expected 1000 kept and none dropped, got %d/%d", q.Len(), q.Dropped())
	}
}

func TestQueue_RequeueFailedFlush(t *testing.T) {
	q := New[selection]()
	q.Push(selection{SightingID: "1"}, selection{SightingID: "2"})
	failed := q.GetAndEmpty()

	q.Push(selection{SightingID: "3"})
	q.PushFront(failed...)

	if got := ids(q.GetAndEmpty()); !slices.Equal(got, []string{"1", "2", "3"}) {
		t.Errorf("expected [1 2 3], got %v", got)
	}
}

func TestQueue_RequeueOverflowDropsRequeuedFirst(t *testing.T) {
	q := NewBounded[int](2)
	q.Push(3)

	if dropped := q.PushFront(1, 2); dropped != 1 {
		t.Errorf("expected 1 drop, got %d", dropped)
	}
	if got := q.GetAndEmpty(); !slices.Equal(got, []int{2, 3}) {
		t.Errorf("expected [2 3], got %v", got)
	}
}

func TestQueue_ConcurrentPushAndDrain(t *testing.T) {
	q := New[selection]()
	var wg sync.WaitGroup
	var mu sync.Mutex
	drained := 0

	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				q.Push(selection{SessionID: "s"})
			}
		}()
		go func() {
			defer wg.Done()
			n := len(q.GetAndEmpty())
			mu.Lock()
			drained += n
			mu.Unlock()
		}()
	}
	wg.Wait()

	if total := drained + q.Len(); total != 400 {
		t.Errorf("expected 400 selections accounted for, got %d", total)
	}
}
