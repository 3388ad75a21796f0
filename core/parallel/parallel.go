// Package parallel provides the worker primitives used by the kernel and
// cross-validation layers. Two shapes are offered: Parallelize splits an
// index range into contiguous chunks for cheap uniform work, ForEach feeds
// individual indices to a bounded pool for heavy uneven work such as
// cross-validation cells.
package parallel

import (
	"runtime"
	"sync"
)

// Parallelize divides items into contiguous chunks, one per available CPU
// core, and runs fn on each (start, end) range concurrently. fn must be safe
// to call from multiple goroutines on disjoint ranges.
func Parallelize(items int, fn func(start, end int)) {
	if items == 0 {
		return
	}

	numWorkers := runtime.NumCPU()
	if numWorkers > items {
		numWorkers = items
	}

	// Ceiling division so the last chunk picks up the remainder.
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

// ParallelizeWithThreshold runs fn(0, items) sequentially when items is at
// or below threshold, and falls back to Parallelize above it. Small matrices
// are not worth the goroutine overhead.
func ParallelizeWithThreshold(items int, threshold int, fn func(start, end int)) {
	if items <= threshold {
		fn(0, items)
		return
	}

	Parallelize(items, fn)
}

// ForEach runs fn(i) for every i in [0, items) on a pool of at most workers
// goroutines. Unlike Parallelize, indices are handed out one at a time, so
// uneven per-item cost balances across the pool. workers <= 0 selects
// runtime.NumCPU(). fn receives each index exactly once; result ordering is
// the caller's concern, typically by writing into a pre-sized slice at i.
func ForEach(items int, workers int, fn func(i int)) {
	if items == 0 {
		return
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > items {
		workers = items
	}

	if workers == 1 {
		for i := 0; i < items; i++ {
			fn(i)
		}
		return
	}

	indices := make(chan int)

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for i := range indices {
				fn(i)
			}
		}()
	}

	for i := 0; i < items; i++ {
		indices <- i
	}
	close(indices)

	wg.Wait()
}
