/*
scheduler.go - Periodic autosave sweeper

PURPOSE:
  Accounts persist after every operation, but an account whose saving flag
  was left off (batching) or whose last save failed would drift from disk.
  The sweeper periodically writes every registered account through the
  gateway as a safety net.

DESIGN:
  - Runs a background goroutine with a configurable sweep interval
  - A sweep saves every registered account, skipping none
  - Save errors are logged and counted, never fatal

USAGE:
  sweeper := NewAutosaveSweeper(registry, gateway, nil)
  sweeper.Start()
  // ... later
  sweeper.Stop()
*/
package api

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/EconToolBox/EconToolBox/account"
)

// AutosaveSweeper periodically persists every registered account.
type AutosaveSweeper struct {
	Registry      *account.Registry
	Gateway       account.Gateway
	SweepInterval time.Duration
	Logger        *slog.Logger

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewAutosaveSweeper creates a sweeper with a 5 minute interval.
func NewAutosaveSweeper(reg *account.Registry, gw account.Gateway, logger *slog.Logger) *AutosaveSweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &AutosaveSweeper{
		Registry:      reg,
		Gateway:       gw,
		SweepInterval: 5 * time.Minute,
		Logger:        logger,
		stop:          make(chan struct{}),
	}
}

// Start begins the sweeper.
func (s *AutosaveSweeper) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ticker != nil {
		return
	}
	s.ticker = time.NewTicker(s.SweepInterval)
	s.wg.Add(1)
	go s.run()
	s.Logger.Info("autosave sweeper started", "interval", s.SweepInterval)
}

// Stop halts the sweeper and waits for an in-flight sweep to finish.
func (s *AutosaveSweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ticker == nil {
		return
	}
	s.ticker.Stop()
	close(s.stop)
	s.wg.Wait()
	s.ticker = nil
}

func (s *AutosaveSweeper) run() {
	defer s.wg.Done()
	for {
		select {
		case <-s.stop:
			return
		case <-s.ticker.C:
			s.Sweep(context.Background())
		}
	}
}

// Sweep saves every registered account once, returning the number of
// failures. Exposed for tests and for a final sweep on shutdown.
func (s *AutosaveSweeper) Sweep(ctx context.Context) int {
	failures := 0
	for _, acc := range s.Registry.All() {
		if err := s.Gateway.Save(ctx, acc); err != nil {
			failures++
			s.Logger.Error("autosave failed", "account", acc.Key(), "error", err)
		}
	}
	if failures == 0 {
		s.Logger.Debug("autosave sweep complete", "accounts", s.Registry.Size())
	}
	return failures
}
