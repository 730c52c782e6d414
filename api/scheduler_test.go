package api_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EconToolBox/EconToolBox/account"
	"github.com/EconToolBox/EconToolBox/account/store"
	"github.com/EconToolBox/EconToolBox/api"
)

func TestSweep_SavesEveryRegisteredAccount(t *testing.T) {
	// GIVEN: two registered accounts
	reg := account.NewRegistry()
	gw := store.NewMemory()
	alice := account.NewNamedAccount("alice", gw, nil)
	bob := account.NewNamedAccount("bob", gw, nil)
	reg.Register(alice)
	reg.Register(bob)
	sweeper := api.NewAutosaveSweeper(reg, gw, nil)

	// WHEN: sweeping once
	failures := sweeper.Sweep(context.Background())

	// THEN: both were saved, no failures
	assert.Equal(t, 0, failures)
	assert.Equal(t, 1, gw.SaveCount(alice.Key()))
	assert.Equal(t, 1, gw.SaveCount(bob.Key()))
}

func TestSweep_CountsFailuresAndKeepsGoing(t *testing.T) {
	// GIVEN: a gateway that fails the first save of the sweep
	reg := account.NewRegistry()
	gw := store.NewMemory()
	alice := account.NewNamedAccount("alice", gw, nil)
	bob := account.NewNamedAccount("bob", gw, nil)
	reg.Register(alice)
	reg.Register(bob)
	gw.FailNextSave(assert.AnError)
	sweeper := api.NewAutosaveSweeper(reg, gw, nil)

	// WHEN: sweeping
	failures := sweeper.Sweep(context.Background())

	// THEN: one failure is reported and the other account was still saved
	assert.Equal(t, 1, failures)
	assert.Equal(t, 1, gw.SaveCount(alice.Key())+gw.SaveCount(bob.Key()))
}

func TestSweeper_StartStopLifecycle(t *testing.T) {
	// GIVEN: a running sweeper with a tight interval
	reg := account.NewRegistry()
	gw := store.NewMemory()
	named := account.NewNamedAccount("treasury", gw, nil)
	reg.Register(named)
	sweeper := api.NewAutosaveSweeper(reg, gw, nil)
	sweeper.SweepInterval = 5 * time.Millisecond

	// WHEN: running long enough for at least one tick
	sweeper.Start()
	require.Eventually(t, func() bool {
		return gw.SaveCount(named.Key()) > 0
	}, time.Second, 5*time.Millisecond)

	// THEN: Stop halts cleanly and is idempotent
	sweeper.Stop()
	sweeper.Stop()
}
