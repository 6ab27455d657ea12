// Package workerpool provides a fixed size goroutine pool with futures.
package workerpool

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
)

// ErrClosed is returned when work is submitted to, or awaited from, a pool
// that has been closed.
var ErrClosed = errors.New("worker pool closed")

// Pool runs submitted closures on a fixed number of goroutines.
type Pool struct {
	numWorkers int
	workCh     chan func()
	stopCh     chan struct{}
	dropCh     chan struct{}
	dropOnce   sync.Once
	wg         sync.WaitGroup
	closed     atomic.Bool
	discard    atomic.Bool
	submitMu   sync.RWMutex
}

// New creates a pool with numWorkers goroutines. A non positive value uses
// GOMAXPROCS.
func New(numWorkers int) *Pool {
	if numWorkers <= 0 {
		numWorkers = runtime.GOMAXPROCS(0)
	}

	p := &Pool{
		numWorkers: numWorkers,
		workCh:     make(chan func(), numWorkers*2),
		stopCh:     make(chan struct{}),
		dropCh:     make(chan struct{}),
	}

	p.wg.Add(numWorkers)
	for i := 0; i < numWorkers; i++ {
		go p.worker()
	}

	return p
}

// Size returns the number of workers.
func (p *Pool) Size() int { return p.numWorkers }

func (p *Pool) worker() {
	defer p.wg.Done()

	for {
		select {
		case <-p.stopCh:
			if p.discard.Load() {
				return
			}
			// Drain remaining work before exiting
			for fn := range p.workCh {
				fn()
			}
			return
		case fn, ok := <-p.workCh:
			if !ok {
				return
			}
			if p.discard.Load() {
				continue
			}
			fn()
		}
	}
}

// Submit enqueues task. It blocks while the queue is full and fails when
// the pool is closed or ctx is done first.
func (p *Pool) Submit(ctx context.Context, task func()) error {
	p.submitMu.RLock()
	defer p.submitMu.RUnlock()

	if p.closed.Load() {
		return ErrClosed
	}

	select {
	case p.workCh <- task:
		return nil
	case <-p.stopCh:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting work, runs the queued tasks and waits for the
// workers to exit.
func (p *Pool) Close() {
	if p.stop() {
		p.wg.Wait()
	}
}

// Shutdown stops accepting work and drops queued tasks without waiting for
// running ones. Futures of dropped tasks resolve with ErrClosed.
func (p *Pool) Shutdown() {
	p.discard.Store(true)
	p.dropOnce.Do(func() { close(p.dropCh) })
	p.stop()
}

func (p *Pool) stop() bool {
	if !p.closed.CompareAndSwap(false, true) {
		return false
	}

	// wake blocked submitters before taking the lock
	close(p.stopCh)
	p.submitMu.Lock()
	close(p.workCh)
	p.submitMu.Unlock()

	return true
}

// Future is the pending result of a task run on a Pool.
type Future[T any] struct {
	done  chan struct{}
	stop  <-chan struct{}
	value T
	err   error
}

// Go submits fn to p and returns its future.
func Go[T any](ctx context.Context, p *Pool, fn func() (T, error)) (*Future[T], error) {
	f := &Future[T]{done: make(chan struct{}), stop: p.dropCh}
	if err := p.Submit(ctx, func() {
		defer close(f.done)
		f.value, f.err = fn()
	}); err != nil {
		return nil, err
	}
	return f, nil
}

// Get waits for the result of the task.
func (f *Future[T]) Get(ctx context.Context) (T, error) {
	var zero T
	select {
	case <-f.done:
		return f.value, f.err
	case <-f.stop:
		// the task may have completed before the pool was shut down
		select {
		case <-f.done:
			return f.value, f.err
		default:
		}
		return zero, ErrClosed
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}
