package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// SweeperConfig holds configuration for the periodic summary sweep.
type SweeperConfig struct {
	// Interval is how often every active period is verified (default: 1h)
	Interval time.Duration

	// RunOnStart sweeps once immediately after Start (default: true)
	RunOnStart bool
}

func DefaultSweeperConfig() SweeperConfig {
	return SweeperConfig{
		Interval:   time.Hour,
		RunOnStart: true,
	}
}

// sweepFunc is satisfied by AuditWorker.Sweep.
type sweepFunc func(ctx context.Context) (checked, repaired int, err error)

// Sweeper runs the audit sweep on a ticker.
type Sweeper struct {
	sweep  sweepFunc
	config SweeperConfig

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewSweeper(worker *AuditWorker, config SweeperConfig) *Sweeper {
	var fn sweepFunc
	if worker != nil {
		fn = worker.Sweep
	}
	return &Sweeper{sweep: fn, config: config}
}

// Start begins the sweep loop. Returns an error if already running.
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("sweeper is already running")
	}
	if s.sweep == nil {
		s.mu.Unlock()
		return fmt.Errorf("sweeper has no audit worker")
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.mu.Unlock()

	go s.runLoop(ctx)

	slog.InfoContext(ctx, "Summary sweeper started", "interval", s.config.Interval)
	return nil
}

// Stop signals the loop and waits for the current sweep to finish.
func (s *Sweeper) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	stopCh, doneCh := s.stopCh, s.doneCh
	s.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
		slog.InfoContext(ctx, "Summary sweeper stopped gracefully")
	case <-ctx.Done():
		slog.WarnContext(ctx, "Summary sweeper stop timed out")
		return ctx.Err()
	}

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
	return nil
}

func (s *Sweeper) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Sweeper) runLoop(ctx context.Context) {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	if s.config.RunOnStart {
		s.runOnce(ctx)
	}

	for {
		select {
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Sweeper) runOnce(ctx context.Context) {
	if _, _, err := s.sweep(ctx); err != nil {
		slog.ErrorContext(ctx, "Summary sweep failed", "error", err)
	}
}
