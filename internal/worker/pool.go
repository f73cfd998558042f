package worker

import (
	"context"
	"sync"
)

// Task is one unit of work whose outcome is delivered on the result channel
type Task[T any] func(ctx context.Context) T

// Pool runs tasks on a fixed number of goroutines. A task owns its own
// provider and sink; the pool only bounds how many runs overlap.
type Pool[T any] struct {
	size    int
	tasks   chan Task[T]
	results chan T
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
	done    sync.Once
}

// NewPool creates a pool of size workers bound to parent
func NewPool[T any](parent context.Context, size int) *Pool[T] {
	if size <= 0 {
		size = 1
	}
	ctx, cancel := context.WithCancel(parent)
	return &Pool[T]{
		size:    size,
		tasks:   make(chan Task[T], size),
		results: make(chan T, size),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start launches the workers
func (p *Pool[T]) Start() {
	p.wg.Add(p.size)
	for range p.size {
		go p.loop()
	}
}

func (p *Pool[T]) loop() {
	defer p.wg.Done()
	for {
		select {
		case <-p.ctx.Done():
			return
		case task, ok := <-p.tasks:
			if !ok {
				return
			}
			out := task(p.ctx)
			select {
			case p.results <- out:
			case <-p.ctx.Done():
				return
			}
		}
	}
}

// Submit queues a task. Once the pool is cancelled the task is dropped.
func (p *Pool[T]) Submit(task Task[T]) {
	select {
	case <-p.ctx.Done():
	case p.tasks <- task:
	}
}

// Collect reads n outcomes, fewer when the pool is cancelled first, and
// then stops the workers
func (p *Pool[T]) Collect(n int) []T {
	defer p.Shutdown()
	out := make([]T, 0, n)
	for len(out) < n {
		select {
		case r := <-p.results:
			out = append(out, r)
		case <-p.ctx.Done():
			return out
		}
	}
	return out
}

// Shutdown cancels running tasks and waits for the workers
func (p *Pool[T]) Shutdown() {
	p.cancel()
	p.wg.Wait()
	p.closeResults()
}

func (p *Pool[T]) closeResults() {
	p.done.Do(func() { close(p.results) })
}
