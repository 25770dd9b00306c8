package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// stubSessionCloser counts sweep invocations
type stubSessionCloser struct {
	mu     sync.Mutex
	calls  int
	closed int
	err    error
	batch  int
}

func (s *stubSessionCloser) AbandonIdleSessions(ctx context.Context, batch int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.batch = batch
	if s.err != nil {
		return 0, s.err
	}
	return s.closed, nil
}

func (s *stubSessionCloser) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func TestDefaultIdleSweeperConfig(t *testing.T) {
	cfg := DefaultIdleSweeperConfig()

	assert.True(t, cfg.Enabled)
	assert.Equal(t, time.Minute, cfg.Interval)
	assert.Equal(t, 50, cfg.BatchSize)
	assert.Equal(t, 30*time.Second, cfg.SweepTimeout)
}

func TestIdleSessionSweeper_Start_Disabled(t *testing.T) {
	closer := &stubSessionCloser{}
	sweeper := NewIdleSessionSweeper(closer, zap.NewNop(), IdleSweeperConfig{
		Enabled: false,
	})

	err := sweeper.Start(context.Background())

	require.NoError(t, err)
	assert.False(t, sweeper.IsRunning())
}

func TestIdleSessionSweeper_Start_InvalidConfig(t *testing.T) {
	closer := &stubSessionCloser{}
	sweeper := NewIdleSessionSweeper(closer, zap.NewNop(), IdleSweeperConfig{
		Enabled:   true,
		Interval:  0,
		BatchSize: 50,
	})

	err := sweeper.Start(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.False(t, sweeper.IsRunning())
}

func TestIdleSessionSweeper_SweepsOnInterval(t *testing.T) {
	closer := &stubSessionCloser{closed: 2}
	sweeper := NewIdleSessionSweeper(closer, zap.NewNop(), IdleSweeperConfig{
		Enabled:      true,
		Interval:     20 * time.Millisecond,
		BatchSize:    25,
		SweepTimeout: time.Second,
	})

	require.NoError(t, sweeper.Start(context.Background()))
	assert.True(t, sweeper.IsRunning())

	// Wait for a few ticks
	time.Sleep(90 * time.Millisecond)

	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, sweeper.Stop(stopCtx))

	assert.GreaterOrEqual(t, closer.callCount(), 2)
	assert.Equal(t, 25, closer.batch)
	assert.False(t, sweeper.IsRunning())
}

func TestIdleSessionSweeper_SweepFailuresDoNotStopLoop(t *testing.T) {
	closer := &stubSessionCloser{err: assert.AnError}
	sweeper := NewIdleSessionSweeper(closer, zap.NewNop(), IdleSweeperConfig{
		Enabled:      true,
		Interval:     15 * time.Millisecond,
		BatchSize:    10,
		SweepTimeout: time.Second,
	})

	require.NoError(t, sweeper.Start(context.Background()))

	time.Sleep(70 * time.Millisecond)

	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, sweeper.Stop(stopCtx))

	// The loop kept ticking past the first failure
	assert.GreaterOrEqual(t, closer.callCount(), 2)
}

func TestIdleSessionSweeper_Start_Idempotent(t *testing.T) {
	closer := &stubSessionCloser{}
	sweeper := NewIdleSessionSweeper(closer, zap.NewNop(), IdleSweeperConfig{
		Enabled:      true,
		Interval:     time.Hour,
		BatchSize:    10,
		SweepTimeout: time.Second,
	})

	require.NoError(t, sweeper.Start(context.Background()))
	require.NoError(t, sweeper.Start(context.Background()))
	assert.True(t, sweeper.IsRunning())

	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, sweeper.Stop(stopCtx))
}

func TestIdleSessionSweeper_Stop_NotRunning(t *testing.T) {
	closer := &stubSessionCloser{}
	sweeper := NewIdleSessionSweeper(closer, zap.NewNop(), DefaultIdleSweeperConfig())

	err := sweeper.Stop(context.Background())

	require.NoError(t, err)
}

func TestIdleSessionSweeper_TriggerImmediateSweep(t *testing.T) {
	closer := &stubSessionCloser{closed: 1}
	sweeper := NewIdleSessionSweeper(closer, zap.NewNop(), IdleSweeperConfig{
		Enabled:      true,
		Interval:     time.Hour, // interval never fires during the test
		BatchSize:    10,
		SweepTimeout: time.Second,
	})

	require.NoError(t, sweeper.Start(context.Background()))

	require.NoError(t, sweeper.TriggerImmediateSweep(context.Background()))

	// Wait for the async sweep
	assert.Eventually(t, func() bool {
		return closer.callCount() == 1
	}, time.Second, 10*time.Millisecond)

	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, sweeper.Stop(stopCtx))
}

func TestIdleSessionSweeper_TriggerImmediateSweep_NotRunning(t *testing.T) {
	closer := &stubSessionCloser{}
	sweeper := NewIdleSessionSweeper(closer, zap.NewNop(), DefaultIdleSweeperConfig())

	err := sweeper.TriggerImmediateSweep(context.Background())

	assert.ErrorIs(t, err, ErrSchedulerNotRunning)
	assert.Equal(t, 0, closer.callCount())
}
