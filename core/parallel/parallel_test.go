package parallel

import (
	"sync"
	"sync/atomic"
	"testing"
)

func TestParallelizeCoversAllItems(t *testing.T) {
	const items = 1000

	visited := make([]int32, items)
	Parallelize(items, func(start, end int) {
		for i := start; i < end; i++ {
			atomic.AddInt32(&visited[i], 1)
		}
	})

	for i, count := range visited {
		if count != 1 {
			t.Fatalf("item %d visited %d times, want exactly once", i, count)
		}
	}
}

func TestParallelizeZeroItems(t *testing.T) {
	called := false
	Parallelize(0, func(start, end int) {
		called = true
	})
	if called {
		t.Error("fn should not run for zero items")
	}
}

func TestParallelizeFewerItemsThanCores(t *testing.T) {
	const items = 2

	var total int64
	Parallelize(items, func(start, end int) {
		atomic.AddInt64(&total, int64(end-start))
	})

	if total != items {
		t.Errorf("covered %d items, want %d", total, items)
	}
}

func TestParallelizeWithThresholdSequential(t *testing.T) {
	var calls [][2]int
	var mu sync.Mutex

	ParallelizeWithThreshold(10, 100, func(start, end int) {
		mu.Lock()
		calls = append(calls, [2]int{start, end})
		mu.Unlock()
	})

	if len(calls) != 1 {
		t.Fatalf("expected a single sequential call, got %d", len(calls))
	}
	if calls[0] != [2]int{0, 10} {
		t.Errorf("sequential call range = %v, want [0, 10]", calls[0])
	}
}

func TestForEachVisitsEveryIndexOnce(t *testing.T) {
	const items = 137

	visited := make([]int32, items)
	ForEach(items, 4, func(i int) {
		atomic.AddInt32(&visited[i], 1)
	})

	for i, count := range visited {
		if count != 1 {
			t.Fatalf("index %d visited %d times, want exactly once", i, count)
		}
	}
}

func TestForEachSingleWorkerIsOrdered(t *testing.T) {
	const items = 20

	var order []int
	ForEach(items, 1, func(i int) {
		order = append(order, i)
	})

	if len(order) != items {
		t.Fatalf("visited %d indices, want %d", len(order), items)
	}
	for i, got := range order {
		if got != i {
			t.Fatalf("single worker should visit indices in order, position %d = %d", i, got)
		}
	}
}

func TestForEachDefaultsWorkers(t *testing.T) {
	const items = 50

	var total int64
	ForEach(items, 0, func(i int) {
		atomic.AddInt64(&total, 1)
	})

	if total != items {
		t.Errorf("covered %d items, want %d", total, items)
	}
}

func TestForEachZeroItems(t *testing.T) {
	ForEach(0, 4, func(i int) {
		t.Error("fn should not run for zero items")
	})
}
