package queue

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"
)

func TestPoolExpandsAndDeduplicates(t *testing.T) {
	var mu sync.Mutex
	seen := make(map[string]int)

	pool := &Pool[string, string]{
		Concurrency:   3,
		WorkerTimeout: time.Second,
		Process: func(ctx context.Context, item string) []string {
			mu.Lock()
			seen[item]++
			mu.Unlock()
			return []string{item + ":result"}
		},
		Expand: func(ctx context.Context, item string) []string {
			switch item {
			case "a":
				return []string{"a1", "a2"}
			case "b":
				return []string{"a1"}
			default:
				return nil
			}
		},
	}

	results := pool.Run(context.Background(), []string{"a", "b"})
	sort.Strings(results)

	want := []string{"a1:result", "a2:result", "a:result", "b:result"}
	sort.Strings(want)
	if len(results) != len(want) {
		t.Fatalf("Run = %v, want %v", results, want)
	}
	for i, w := range want {
		if results[i] != w {
			t.Errorf("results[%d] = %q, want %q", i, results[i], w)
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if seen["a1"] != 1 {
		t.Fatalf("expected a1 to be processed exactly once, got %d (a and b both expand into it)", seen["a1"])
	}
}

func TestPoolEmptyInitialReturnsNil(t *testing.T) {
	pool := &Pool[string, string]{
		Concurrency:   2,
		WorkerTimeout: time.Second,
		Process:       func(ctx context.Context, item string) []string { return []string{item} },
	}
	if out := pool.Run(context.Background(), nil); out != nil {
		t.Fatalf("expected nil for empty initial set, got %v", out)
	}
}

func TestPoolHonorsWorkerTimeout(t *testing.T) {
	pool := &Pool[string, string]{
		Concurrency:   1,
		WorkerTimeout: 10 * time.Millisecond,
		Process: func(ctx context.Context, item string) []string {
			<-ctx.Done()
			return nil
		},
	}

	done := make(chan []string, 1)
	go func() { done <- pool.Run(context.Background(), []string{"slow"}) }()

	select {
	case results := <-done:
		if len(results) != 0 {
			t.Fatalf("expected no results from a processor that only sees cancellation, got %v", results)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Run did not return within the worker timeout bound")
	}
}
