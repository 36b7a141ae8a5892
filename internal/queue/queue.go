// Package queue implements the bounded queue worker pool (C7): a reusable
// engine parameterized by a per-item processor and an expansion function,
// driven by a fixed worker count and a semaphore permit bound.
package queue

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// ProcessFunc processes one item and returns zero or more results.
type ProcessFunc[T any, R comparable] func(ctx context.Context, item T) []R

// ExpandFunc returns further items discovered while processing item.
type ExpandFunc[T any] func(ctx context.Context, item T) []T

// Pool runs ProcessFunc and ExpandFunc over a growing item set until the
// queue reaches quiescence: every enqueued item has been processed and no
// worker is mid-flight.
type Pool[T comparable, R comparable] struct {
	Concurrency   int
	WorkerTimeout time.Duration
	Process       ProcessFunc[T, R]
	Expand        ExpandFunc[T]
}

// Run enqueues initial, starts Concurrency workers, and blocks until the
// queue drains. Individual item failures (timeout, processor panic-free
// error) are swallowed; the worker continues to the next item.
func (p *Pool[T, R]) Run(ctx context.Context, initial []T) []R {
	if len(initial) == 0 {
		return nil
	}

	q := &fifo[T]{}
	for _, item := range initial {
		q.push(item)
	}

	var mu sync.Mutex
	processed := make(map[T]struct{}, len(initial))
	results := make(map[R]struct{})

	sem := semaphore.NewWeighted(int64(p.Concurrency))

	var inFlight int
	stopCh := make(chan struct{})
	var stopOnce sync.Once

	maybeStop := func() {
		mu.Lock()
		done := inFlight == 0 && q.empty()
		mu.Unlock()
		if done {
			stopOnce.Do(func() { close(stopCh) })
		}
	}

	var wg sync.WaitGroup
	wg.Add(p.Concurrency)
	for i := 0; i < p.Concurrency; i++ {
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stopCh:
					return
				default:
				}

				// Pop under mu so maybeStop never sees an empty queue while
				// the popped item is not yet counted in inFlight.
				mu.Lock()
				item, ok := q.pop()
				if !ok {
					mu.Unlock()
					select {
					case <-stopCh:
						return
					case <-time.After(500 * time.Millisecond):
						continue
					}
				}

				if _, done := processed[item]; done {
					mu.Unlock()
					maybeStop()
					continue
				}
				processed[item] = struct{}{}
				inFlight++
				mu.Unlock()

				p.runOne(ctx, sem, item, &mu, processed, results, q)

				mu.Lock()
				inFlight--
				mu.Unlock()
				maybeStop()
			}
		}()
	}
	wg.Wait()

	out := make([]R, 0, len(results))
	for r := range results {
		out = append(out, r)
	}
	return out
}

func (p *Pool[T, R]) runOne(
	ctx context.Context,
	sem *semaphore.Weighted,
	item T,
	mu *sync.Mutex,
	processed map[T]struct{},
	results map[R]struct{},
	q *fifo[T],
) {
	if err := sem.Acquire(ctx, 1); err != nil {
		return
	}
	defer sem.Release(1)

	procCtx, cancel := context.WithTimeout(ctx, p.WorkerTimeout)
	rs := p.Process(procCtx, item)
	cancel()

	mu.Lock()
	for _, r := range rs {
		results[r] = struct{}{}
	}
	mu.Unlock()

	if p.Expand == nil {
		return
	}

	nextCtx, cancel := context.WithTimeout(ctx, p.WorkerTimeout)
	next := p.Expand(nextCtx, item)
	cancel()

	mu.Lock()
	for _, n := range next {
		if _, done := processed[n]; !done {
			q.push(n)
		}
	}
	mu.Unlock()
}

// fifo is a mutex-guarded unbounded queue. The pool's own worker loop
// provides the 0.5s poll semantics; fifo itself is non-blocking.
type fifo[T any] struct {
	mu    sync.Mutex
	items []T
}

func (f *fifo[T]) push(v T) {
	f.mu.Lock()
	f.items = append(f.items, v)
	f.mu.Unlock()
}

func (f *fifo[T]) pop() (T, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.items) == 0 {
		var zero T
		return zero, false
	}
	v := f.items[0]
	f.items = f.items[1:]
	return v, true
}

func (f *fifo[T]) empty() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.items) == 0
}
