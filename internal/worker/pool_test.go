package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// submitAll feeds tasks from a goroutine the way BatchProcessor does
func submitAll[T any](p *Pool[T], tasks []Task[T]) {
	go func() {
		for _, task := range tasks {
			p.Submit(task)
		}
	}()
}

func repeat[T any](n int, task Task[T]) []Task[T] {
	tasks := make([]Task[T], n)
	for i := range tasks {
		tasks[i] = task
	}
	return tasks
}

func TestNewPool_Size(t *testing.T) {
	tests := []struct {
		in   int
		want int
	}{
		{5, 5},
		{0, 1},
		{-3, 1},
	}
	for _, tt := range tests {
		if got := NewPool[int](context.Background(), tt.in).size; got != tt.want {
			t.Errorf("NewPool(%d).size = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestPool_RunsEveryTask(t *testing.T) {
	pool := NewPool[int](context.Background(), 2)
	pool.Start()

	var executed int32
	submitAll(pool, repeat(10, func(ctx context.Context) int {
		return int(atomic.AddInt32(&executed, 1))
	}))

	results := pool.Collect(10)
	if len(results) != 10 {
		t.Errorf("expected 10 results, got %d", len(results))
	}
	if n := atomic.LoadInt32(&executed); n != 10 {
		t.Errorf("expected 10 executed tasks, got %d", n)
	}
}

func TestPool_BoundsConcurrency(t *testing.T) {
	pool := NewPool[error](context.Background(), 3)
	pool.Start()

	var running, peak int32
	var mu sync.Mutex
	submitAll(pool, repeat(20, func(ctx context.Context) error {
		cur := atomic.AddInt32(&running, 1)
		defer atomic.AddInt32(&running, -1)
		mu.Lock()
		if cur > peak {
			peak = cur
		}
		mu.Unlock()
		time.Sleep(5 * time.Millisecond)
		return nil
	}))
	pool.Collect(20)

	mu.Lock()
	defer mu.Unlock()
	if peak > 3 {
		t.Errorf("peak concurrency %d exceeded 3 workers", peak)
	}
}

func TestPool_DeliversErrors(t *testing.T) {
	pool := NewPool[error](context.Background(), 2)
	pool.Start()

	submitAll(pool, []Task[error]{
		func(ctx context.Context) error { return errors.New("provider run failed") },
		func(ctx context.Context) error { return nil },
	})

	failed := 0
	for _, err := range pool.Collect(2) {
		if err != nil {
			failed++
		}
	}
	if failed != 1 {
		t.Errorf("expected 1 failed task, got %d", failed)
	}
}

func TestPool_SubmitAfterShutdownDoesNotBlock(t *testing.T) {
	pool := NewPool[int](context.Background(), 1)
	pool.Start()
	pool.Shutdown()

	done := make(chan struct{})
	go func() {
		pool.Submit(func(ctx context.Context) int { return 1 })
		pool.Submit(func(ctx context.Context) int { return 2 })
		pool.Submit(func(ctx context.Context) int { return 3 })
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Submit after shutdown blocked")
	}
}

func TestPool_ParentCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	pool := NewPool[error](ctx, 1)
	pool.Start()

	started := make(chan struct{})
	pool.Submit(func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	})
	<-started
	cancel()

	done := make(chan []error)
	go func() { done <- pool.Collect(1) }()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("pool did not stop after parent cancellation")
	}
}
