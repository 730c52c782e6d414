/*
async.go - Worker pool and pending results

PURPOSE:
  Asynchronous account operations run on a shared worker pool and hand back a
  Pending immediately. Synced operations are the same work awaited in place.

MODEL:
  - Pool: fixed set of workers draining a task channel. A nil *Pool is valid
    and runs each task on its own goroutine, which keeps tests and small
    embedders free of pool wiring.
  - Pending: resolves exactly once to (Result, error). The error is reserved
    for infrastructure failures (persistence after commit); financial failures
    travel inside the Result.
*/
package account

import "sync"

// =============================================================================
// POOL - Shared workers for asynchronous operations
// =============================================================================

type Pool struct {
	tasks chan func()
	wg    sync.WaitGroup

	closeOnce sync.Once
}

// NewPool starts a pool with n workers. n < 1 is treated as 1.
func NewPool(n int) *Pool {
	if n < 1 {
		n = 1
	}
	p := &Pool{tasks: make(chan func(), n*4)}
	p.wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer p.wg.Done()
			for task := range p.tasks {
				task()
			}
		}()
	}
	return p
}

// Submit schedules fn. A nil pool runs fn on a fresh goroutine.
func (p *Pool) Submit(fn func()) {
	if p == nil {
		go fn()
		return
	}
	p.tasks <- fn
}

// Close stops accepting work and waits for in-flight tasks to finish.
func (p *Pool) Close() {
	if p == nil {
		return
	}
	p.closeOnce.Do(func() { close(p.tasks) })
	p.wg.Wait()
}

// =============================================================================
// PENDING - A result that resolves exactly once
// =============================================================================

type Pending struct {
	done chan struct{}

	mu     sync.Mutex
	result Result
	err    error
}

func newPending() *Pending {
	return &Pending{done: make(chan struct{})}
}

// ResolvedPending returns an already-completed Pending. Used by isolated
// views, whose sub-operations validate eagerly and commit later.
func ResolvedPending(result Result, err error) *Pending {
	p := newPending()
	p.resolve(result, err)
	return p
}

func (p *Pending) resolve(result Result, err error) {
	p.mu.Lock()
	p.result = result
	p.err = err
	p.mu.Unlock()
	close(p.done)
}

// Await blocks until the operation completes, including persistence. The
// returned error reports infrastructure failure only; inspect the Result for
// financial failure.
func (p *Pending) Await() (Result, error) {
	<-p.done
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.result, p.err
}

// Then runs fn with the resolved value once available, on its own goroutine,
// and returns p for chaining.
func (p *Pending) Then(fn func(Result, error)) *Pending {
	go func() {
		res, err := p.Await()
		fn(res, err)
	}()
	return p
}

// run schedules work on the pool and resolves the returned Pending with its
// outcome.
func run(pool *Pool, work func() (Result, error)) *Pending {
	p := newPending()
	pool.Submit(func() {
		p.resolve(work())
	})
	return p
}
