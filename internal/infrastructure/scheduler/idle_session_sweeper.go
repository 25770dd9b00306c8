package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// IdleSessionCloser abandons interview sessions whose wall-clock limit
// elapsed between turns. Implemented by the interview service.
type IdleSessionCloser interface {
	AbandonIdleSessions(ctx context.Context, batch int) (int, error)
}

// IdleSessionSweeper periodically closes expired interview sessions.
// A session whose subject walked away never submits the turn that would
// notice the expiry, so the sweeper closes it from the outside.
type IdleSessionSweeper struct {
	service   IdleSessionCloser
	logger    *zap.Logger
	config    IdleSweeperConfig
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

// IdleSweeperConfig holds configuration for the idle session sweeper
type IdleSweeperConfig struct {
	// Enabled determines if the sweeper is active
	Enabled bool

	// Interval is how often the sweep runs
	Interval time.Duration

	// BatchSize bounds how many expired sessions one sweep closes
	BatchSize int

	// SweepTimeout is the maximum time for a single sweep run
	SweepTimeout time.Duration
}

// DefaultIdleSweeperConfig returns default configuration
func DefaultIdleSweeperConfig() IdleSweeperConfig {
	return IdleSweeperConfig{
		Enabled:      true,
		Interval:     time.Minute,
		BatchSize:    50,
		SweepTimeout: 30 * time.Second,
	}
}

// NewIdleSessionSweeper creates a new idle session sweeper
func NewIdleSessionSweeper(
	service IdleSessionCloser,
	logger *zap.Logger,
	config IdleSweeperConfig,
) *IdleSessionSweeper {
	return &IdleSessionSweeper{
		service: service,
		logger:  logger,
		config:  config,
	}
}

// Start starts the sweeper loop
func (s *IdleSessionSweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	if !s.config.Enabled {
		s.mu.Unlock()
		s.logger.Info("Idle session sweeper is disabled")
		return nil
	}
	if s.config.Interval <= 0 || s.config.BatchSize <= 0 {
		s.mu.Unlock()
		return fmt.Errorf("%w: interval and batch size must be positive", ErrInvalidConfig)
	}
	s.isRunning = true
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go s.runSweepLoop(ctx)

	s.logger.Info("Idle session sweeper started",
		zap.Duration("interval", s.config.Interval),
		zap.Int("batch_size", s.config.BatchSize),
	)

	return nil
}

// Stop gracefully stops the sweeper
func (s *IdleSessionSweeper) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}

	// Wait for the loop to finish with timeout
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Idle session sweeper stopped gracefully")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Idle session sweeper stop timed out")
		return ctx.Err()
	}
}

// runSweepLoop runs the periodic sweep until the context is cancelled
func (s *IdleSessionSweeper) runSweepLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("Sweep loop stopping")
			return
		case <-ticker.C:
			s.executeSweep(ctx)
		}
	}
}

// executeSweep runs one sweep over expired sessions
func (s *IdleSessionSweeper) executeSweep(ctx context.Context) {
	sweepCtx, cancel := context.WithTimeout(ctx, s.config.SweepTimeout)
	defer cancel()

	startTime := time.Now()
	closed, err := s.service.AbandonIdleSessions(sweepCtx, s.config.BatchSize)
	duration := time.Since(startTime)

	if err != nil {
		s.logger.Error("Idle session sweep failed",
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return
	}

	if closed > 0 {
		s.logger.Info("Idle session sweep completed",
			zap.Duration("duration", duration),
			zap.Int("closed", closed),
		)
	}
}

// TriggerImmediateSweep triggers a sweep outside the regular interval
func (s *IdleSessionSweeper) TriggerImmediateSweep(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return ErrSchedulerNotRunning
	}
	s.wg.Add(1)
	s.mu.Unlock()

	s.logger.Info("Triggering immediate idle session sweep")

	// Run in a goroutine to not block
	go func() {
		defer s.wg.Done()
		s.executeSweep(ctx)
	}()

	return nil
}

// IsRunning returns whether the sweeper is running
func (s *IdleSessionSweeper) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}
