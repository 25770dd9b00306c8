package event

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/genintake/backend/internal/domain/shared"
)

// fakeIdempotencyStore is an in-memory stand-in with controllable
// failure for the mark call.
type fakeIdempotencyStore struct {
	seen      map[string]bool
	markErr   error
	markCalls int
}

func newFakeIdempotencyStore() *fakeIdempotencyStore {
	return &fakeIdempotencyStore{seen: make(map[string]bool)}
}

func (s *fakeIdempotencyStore) MarkProcessed(_ context.Context, eventID string, _ time.Duration) (bool, error) {
	s.markCalls++
	if s.markErr != nil {
		return false, s.markErr
	}
	if s.seen[eventID] {
		return false, nil
	}
	s.seen[eventID] = true
	return true, nil
}

func (s *fakeIdempotencyStore) IsProcessed(_ context.Context, eventID string) (bool, error) {
	return s.seen[eventID], nil
}

func (s *fakeIdempotencyStore) Close() error { return nil }

func TestIdempotentHandler_HandlesEachEventOnce(t *testing.T) {
	inner := &recordingHandler{}
	store := newFakeIdempotencyStore()
	handler := NewIdempotentHandler(inner, store, zaptest.NewLogger(t))

	completed := newLifecycleEvent("InterviewSessionCompleted")
	started := newLifecycleEvent("InterviewSessionStarted")

	require.NoError(t, handler.Handle(context.Background(), completed))
	require.NoError(t, handler.Handle(context.Background(), completed))
	require.NoError(t, handler.Handle(context.Background(), started))

	assert.Len(t, inner.events, 2, "redelivered event must not run twice")
}

func TestIdempotentHandler_StoreFailureFailsOpen(t *testing.T) {
	inner := &recordingHandler{}
	store := newFakeIdempotencyStore()
	store.markErr = errors.New("redis connection refused")
	handler := NewIdempotentHandler(inner, store, zaptest.NewLogger(t))

	evt := newLifecycleEvent("InterviewSessionCompleted")
	require.NoError(t, handler.Handle(context.Background(), evt))
	require.NoError(t, handler.Handle(context.Background(), evt))

	// With the store down, duplicates are preferable to dropped events.
	assert.Len(t, inner.events, 2)
}

func TestIdempotentHandler_Disabled(t *testing.T) {
	inner := &recordingHandler{}
	store := newFakeIdempotencyStore()
	handler := NewIdempotentHandler(inner, store, zaptest.NewLogger(t),
		WithIdempotencyConfig(shared.IdempotencyConfig{Enabled: false}),
	)

	evt := newLifecycleEvent("InterviewSessionCompleted")
	require.NoError(t, handler.Handle(context.Background(), evt))
	require.NoError(t, handler.Handle(context.Background(), evt))

	assert.Len(t, inner.events, 2)
	assert.Zero(t, store.markCalls, "disabled handler never touches the store")
}

func TestIdempotentHandler_FailedEventStaysMarked(t *testing.T) {
	inner := &recordingHandler{err: errors.New("projection write failed")}
	store := newFakeIdempotencyStore()
	handler := NewIdempotentHandler(inner, store, zaptest.NewLogger(t))

	evt := newLifecycleEvent("InterviewSessionAbandoned")
	require.Error(t, handler.Handle(context.Background(), evt))

	// The mark survives the failure; the redelivery is suppressed
	// until the TTL expires.
	require.NoError(t, handler.Handle(context.Background(), evt))
	assert.Len(t, inner.events, 1)

	marked, err := store.IsProcessed(context.Background(), evt.EventID().String())
	require.NoError(t, err)
	assert.True(t, marked)
}

func TestIdempotentHandler_ForwardsEventTypes(t *testing.T) {
	inner := &recordingHandler{types: []string{"InterviewSessionStarted", "InterviewSessionCompleted"}}
	handler := NewIdempotentHandler(inner, newFakeIdempotencyStore(), zaptest.NewLogger(t))

	assert.Equal(t, inner.types, handler.EventTypes())
}

func TestIdempotentHandler_OnTheBus(t *testing.T) {
	bus := NewInMemoryEventBus(zaptest.NewLogger(t))
	inner := &recordingHandler{types: []string{"InterviewSessionCompleted"}}
	bus.Subscribe(NewIdempotentHandler(inner, newFakeIdempotencyStore(), zaptest.NewLogger(t)))

	evt := newLifecycleEvent("InterviewSessionCompleted")
	require.NoError(t, bus.Publish(context.Background(), evt))
	require.NoError(t, bus.Publish(context.Background(), evt))
	require.NoError(t, bus.Publish(context.Background(), newLifecycleEvent("InterviewSessionStarted")))

	// The wrapper inherits the inner handler's subscriptions, so the
	// started event never reaches it and the duplicate is suppressed.
	assert.Len(t, inner.events, 1)
}
