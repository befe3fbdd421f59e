package engine

import (
	"context"
	"sync"
)

// Pool bounds the engine's asynchronous run/share tasks. Tasks submitted
// after Stop, or while the pool's context is cancelled, are dropped
type Pool struct {
	workers int
	tasks   chan func(context.Context)
	wg      sync.WaitGroup
	once    sync.Once
	stopped chan struct{}
}

const poolQueueSize = 64

// NewPool creates a pool that runs at most workers tasks concurrently
func NewPool(workers int) *Pool {
	return &Pool{
		workers: workers,
		tasks:   make(chan func(context.Context), poolQueueSize),
		stopped: make(chan struct{}),
	}
}

// Start launches the worker goroutines
func (p *Pool) Start(ctx context.Context) {
	p.wg.Add(p.workers)
	for range p.workers {
		go p.worker(ctx)
	}
}

func (p *Pool) worker(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopped:
			return
		case task := <-p.tasks:
			task(ctx)
		}
	}
}

// Submit enqueues a task; it is dropped if the pool has stopped
func (p *Pool) Submit(task func(context.Context)) {
	select {
	case <-p.stopped:
	case p.tasks <- task:
	}
}

// Stop prevents further submissions and waits for in-flight tasks
func (p *Pool) Stop() {
	p.once.Do(func() {
		close(p.stopped)
	})
	p.wg.Wait()
}
