// Package parallel provides chunked worker helpers for data-parallel loops.
//
// Tree growth is strictly sequential; these helpers are used where the
// concurrency model allows it: batch prediction over rows, DataFrame ingest,
// and per-tree work at the forest level.
package parallel

import (
	"runtime"
	"sync"
)

// Parallelize splits items across one worker per available CPU core and runs
// fn on each contiguous (start, end) range.
func Parallelize(items int, fn func(start, end int)) {
	ParallelizeWithWorkers(items, runtime.NumCPU(), fn)
}

// ParallelizeWithWorkers is Parallelize with an explicit worker count.
// A non-positive count falls back to the number of CPU cores.
func ParallelizeWithWorkers(items, numWorkers int, fn func(start, end int)) {
	if items == 0 {
		return
	}
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	if numWorkers > items {
		numWorkers = items
	}

	// Ceiling division so the last chunk absorbs the remainder.
	chunkSize := (items + numWorkers - 1) / numWorkers

	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		start := i * chunkSize
		end := start + chunkSize
		if end > items {
			end = items
		}
		if start >= end {
			continue
		}

		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			fn(s, e)
		}(start, end)
	}
	wg.Wait()
}

// ParallelizeWithThreshold runs fn sequentially when items is at or below
// threshold, and in parallel otherwise. Small inputs are not worth the
// goroutine overhead.
func ParallelizeWithThreshold(items, threshold int, fn func(start, end int)) {
	if items <= threshold {
		fn(0, items)
		return
	}
	Parallelize(items, fn)
}
