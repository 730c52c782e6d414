package account_test

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EconToolBox/EconToolBox/account"
)

func TestPool_RunsEverySubmittedTask(t *testing.T) {
	// GIVEN: a pool with 4 workers
	pool := account.NewPool(4)

	// WHEN: 100 tasks are submitted and the pool drains
	var ran atomic.Int64
	for i := 0; i < 100; i++ {
		pool.Submit(func() { ran.Add(1) })
	}
	pool.Close()

	// THEN: every task ran
	assert.Equal(t, int64(100), ran.Load())
}

func TestPool_CloseIsIdempotent(t *testing.T) {
	pool := account.NewPool(1)
	pool.Submit(func() {})
	pool.Close()
	assert.NotPanics(t, func() { pool.Close() })
}

func TestPool_NilPoolStillRunsTasks(t *testing.T) {
	// GIVEN: no pool at all
	var pool *account.Pool

	// WHEN: a task is submitted
	done := make(chan struct{})
	pool.Submit(func() { close(done) })

	// THEN: it runs on its own goroutine
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("task never ran")
	}
	assert.NotPanics(t, func() { pool.Close() })
}

func TestPending_AwaitReturnsResolvedValue(t *testing.T) {
	p := account.ResolvedPending(account.Failure("nope"), nil)

	res, err := p.Await()

	require.NoError(t, err)
	assert.True(t, res.Failed())
	assert.Equal(t, "nope", res.FailureReason)
}

func TestPending_AwaitFromManyGoroutines(t *testing.T) {
	// GIVEN: one pending resolved once
	p := account.ResolvedPending(account.Success(), nil)

	// WHEN: many goroutines await it
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := p.Await()
			assert.NoError(t, err)
			assert.False(t, res.Failed())
		}()
	}

	// THEN: all of them observe the same outcome without blocking forever
	wg.Wait()
}

func TestPending_ThenReceivesTheOutcome(t *testing.T) {
	// GIVEN: an async deposit on a pooled account
	pool := account.NewPool(1)
	defer pool.Close()
	acc := account.NewNamedAccount("then-test", nil, pool)

	// WHEN: chaining a callback onto the pending
	got := make(chan account.Result, 1)
	acc.Deposit(gp(5)).Then(func(res account.Result, err error) {
		assert.NoError(t, err)
		got <- res
	})

	// THEN: the callback fires with the committed result
	select {
	case res := <-got:
		assert.False(t, res.Failed())
	case <-time.After(time.Second):
		t.Fatal("callback never fired")
	}
}
