// Package threading carries small fan-out helpers for CPU-bound batch work
// outside the render scheduler, such as rebuilding mesh acceleration
// structures. Render-block parallelism is the scheduler's job and does not
// go through this package.
package threading

import (
	"context"
	"runtime"
	"sync"

	"blocktrace/internal/mathutil"
)

// ParallelForEach executes a function in parallel for each item in a slice.
// This is a convenience wrapper around ParallelForEachWithContext using
// context.Background().
func ParallelForEach[T any](items []T, fn func(T)) {
	ParallelForEachWithContext(context.Background(), items, fn)
}

// ParallelForEachWithContext executes a function in parallel for each item in
// a slice with cancellation support via context. Goroutines check for
// cancellation between items.
func ParallelForEachWithContext[T any](ctx context.Context, items []T, fn func(T)) {
	if len(items) == 0 {
		return
	}

	numWorkers := mathutil.IntMin(runtime.NumCPU(), len(items))
	chunkSize := mathutil.IntMax(1, len(items)/numWorkers)

	var wg sync.WaitGroup
	for i := 0; i < len(items); i += chunkSize {
		end := mathutil.IntMin(i+chunkSize, len(items))
		chunk := items[i:end]

		wg.Add(1)
		go func(chunk []T) {
			defer wg.Done()
			for _, item := range chunk {
				select {
				case <-ctx.Done():
					return
				default:
					fn(item)
				}
			}
		}(chunk)
	}
	wg.Wait()
}

// ParallelMap executes a function in parallel for each item and collects the
// results in input order. Each goroutine writes disjoint result slots, so no
// mutex is needed.
func ParallelMap[T any, R any](items []T, fn func(T) R) []R {
	if len(items) == 0 {
		return nil
	}

	results := make([]R, len(items))
	numWorkers := mathutil.IntMin(runtime.NumCPU(), len(items))
	chunkSize := mathutil.IntMax(1, len(items)/numWorkers)

	var wg sync.WaitGroup
	for i := 0; i < len(items); i += chunkSize {
		start := i
		end := mathutil.IntMin(i+chunkSize, len(items))

		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			for j := start; j < end; j++ {
				results[j] = fn(items[j])
			}
		}(start, end)
	}
	wg.Wait()
	return results
}
