/*
scheduler.go - Automated reconciliation scheduler

PURPOSE:
  Runs the reconciliation sweep on a fixed interval so drift never waits
  for an admin to notice it.

DESIGN:
  - Background goroutine on a ticker with a stop channel
  - One sweep at a time; a slow sweep skips the next tick
  - The last report is retained for the admin API

USAGE:
  s := NewScheduler(reconciler, time.Hour, logger)
  s.Start()
  // ... later
  s.Stop()
*/
package reconcile

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

type Scheduler struct {
	reconciler *Reconciler
	interval   time.Duration
	log        *zap.Logger

	ticker  *time.Ticker
	stop    chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
	last    *Report
}

func NewScheduler(r *Reconciler, interval time.Duration, log *zap.Logger) *Scheduler {
	if interval <= 0 {
		interval = time.Hour
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Scheduler{
		reconciler: r,
		interval:   interval,
		log:        log,
		stop:       make(chan struct{}),
	}
}

func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.stop = make(chan struct{})
	s.ticker = time.NewTicker(s.interval)
	s.wg.Add(1)
	go s.run(s.stop, s.ticker)
	s.log.Info("reconciliation scheduler started", zap.Duration("interval", s.interval))
}

func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.ticker.Stop()
	close(s.stop)
	s.mu.Unlock()

	s.wg.Wait()
	s.log.Info("reconciliation scheduler stopped")
}

// LastReport returns the most recent sweep's report, if any.
func (s *Scheduler) LastReport() *Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// run takes its channels as arguments so a later Start/Stop cycle cannot
// race with this goroutine's reads.
func (s *Scheduler) run(stop <-chan struct{}, ticker *time.Ticker) {
	defer s.wg.Done()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *Scheduler) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), s.interval)
	defer cancel()

	rep, err := s.reconciler.ReconcileAll(ctx)
	if err != nil {
		s.log.Error("scheduled reconciliation failed", zap.Error(err))
		return
	}
	s.mu.Lock()
	s.last = &rep
	s.mu.Unlock()
}
