package parallel

import (
	"sync"
	"sync/atomic"
	"testing"
)

func TestParallelizeWithWorkersCoversAllItems(t *testing.T) {
	tests := []struct {
		name    string
		items   int
		workers int
	}{
		{name: "more items than workers", items: 100, workers: 3},
		{name: "more workers than items", items: 2, workers: 8},
		{name: "single worker", items: 10, workers: 1},
		{name: "default worker count", items: 50, workers: 0},
		{name: "no items", items: 0, workers: 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var mu sync.Mutex
			seen := make(map[int]int)
			ParallelizeWithWorkers(tt.items, tt.workers, func(start, end int) {
				mu.Lock()
				defer mu.Unlock()
				for i := start; i < end; i++ {
					seen[i]++
				}
			})
			if len(seen) != tt.items {
				t.Fatalf("visited %d items, want %d", len(seen), tt.items)
			}
			for i, n := range seen {
				if n != 1 {
					t.Fatalf("item %d visited %d times", i, n)
				}
			}
		})
	}
}

func TestParallelizeWithThreshold(t *testing.T) {
	var calls int32
	ParallelizeWithThreshold(5, 10, func(start, end int) {
		atomic.AddInt32(&calls, 1)
		if start != 0 || end != 5 {
			t.Errorf("sequential range = (%d, %d), want (0, 5)", start, end)
		}
	})
	if calls != 1 {
		t.Errorf("below-threshold input used %d calls, want 1", calls)
	}

	var total int64
	ParallelizeWithThreshold(100, 10, func(start, end int) {
		atomic.AddInt64(&total, int64(end-start))
	})
	if total != 100 {
		t.Errorf("parallel path covered %d items, want 100", total)
	}
}
