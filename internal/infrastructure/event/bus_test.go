package event

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/genintake/backend/internal/domain/shared"
)

type sessionLifecycleEvent struct {
	shared.BaseDomainEvent
}

func newLifecycleEvent(eventType string) *sessionLifecycleEvent {
	return &sessionLifecycleEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(eventType, "ChatSession", uuid.New()),
	}
}

// recordingHandler captures delivered events and optionally misbehaves.
type recordingHandler struct {
	types  []string
	events []shared.DomainEvent
	err    error
	panics bool
}

func (h *recordingHandler) Handle(_ context.Context, event shared.DomainEvent) error {
	if h.panics {
		panic("handler exploded")
	}
	h.events = append(h.events, event)
	return h.err
}

func (h *recordingHandler) EventTypes() []string {
	return h.types
}

func TestPublish_DeliversToSubscribedType(t *testing.T) {
	bus := NewInMemoryEventBus(zaptest.NewLogger(t))
	handler := &recordingHandler{}
	bus.Subscribe(handler, "InterviewSessionCompleted")

	err := bus.Publish(context.Background(),
		newLifecycleEvent("InterviewSessionCompleted"),
		newLifecycleEvent("InterviewSessionStarted"),
	)

	require.NoError(t, err)
	require.Len(t, handler.events, 1)
	assert.Equal(t, "InterviewSessionCompleted", handler.events[0].EventType())
}

func TestSubscribe_UsesHandlerEventTypes(t *testing.T) {
	bus := NewInMemoryEventBus(zaptest.NewLogger(t))
	handler := &recordingHandler{types: []string{"InterviewSessionAbandoned"}}
	bus.Subscribe(handler)

	require.NoError(t, bus.Publish(context.Background(),
		newLifecycleEvent("InterviewSessionAbandoned"),
		newLifecycleEvent("InterviewSessionCompleted"),
	))

	require.Len(t, handler.events, 1)
	assert.Equal(t, "InterviewSessionAbandoned", handler.events[0].EventType())
}

func TestSubscribe_NoTypesMeansWildcard(t *testing.T) {
	bus := NewInMemoryEventBus(zaptest.NewLogger(t))
	handler := &recordingHandler{}
	bus.Subscribe(handler)

	require.NoError(t, bus.Publish(context.Background(),
		newLifecycleEvent("InterviewSessionStarted"),
		newLifecycleEvent("InterviewSessionCompleted"),
		newLifecycleEvent("InterviewSessionAbandoned"),
	))

	assert.Len(t, handler.events, 3)
}

func TestPublish_HandlerErrorDoesNotStopOthers(t *testing.T) {
	bus := NewInMemoryEventBus(zaptest.NewLogger(t))
	failing := &recordingHandler{err: errors.New("metrics pipeline down")}
	healthy := &recordingHandler{}
	bus.Subscribe(failing, "InterviewSessionCompleted")
	bus.Subscribe(healthy, "InterviewSessionCompleted")

	err := bus.Publish(context.Background(), newLifecycleEvent("InterviewSessionCompleted"))

	require.NoError(t, err, "handler failures stay on the bus")
	assert.Len(t, failing.events, 1)
	assert.Len(t, healthy.events, 1)
}

func TestPublish_HandlerPanicIsContained(t *testing.T) {
	bus := NewInMemoryEventBus(zaptest.NewLogger(t))
	exploding := &recordingHandler{panics: true}
	healthy := &recordingHandler{}
	bus.Subscribe(exploding, "InterviewSessionStarted")
	bus.Subscribe(healthy, "InterviewSessionStarted")

	require.NotPanics(t, func() {
		_ = bus.Publish(context.Background(), newLifecycleEvent("InterviewSessionStarted"))
	})
	assert.Len(t, healthy.events, 1)
}

func TestUnsubscribe_StopsDelivery(t *testing.T) {
	bus := NewInMemoryEventBus(zaptest.NewLogger(t))
	handler := &recordingHandler{}
	bus.Subscribe(handler, "InterviewSessionCompleted")

	require.NoError(t, bus.Publish(context.Background(), newLifecycleEvent("InterviewSessionCompleted")))
	bus.Unsubscribe(handler)
	require.NoError(t, bus.Publish(context.Background(), newLifecycleEvent("InterviewSessionCompleted")))

	assert.Len(t, handler.events, 1)
}

func TestBusLifecycle(t *testing.T) {
	bus := NewInMemoryEventBus(zaptest.NewLogger(t))
	bus.Subscribe(&recordingHandler{}, "InterviewSessionStarted")

	assert.NoError(t, bus.Start(context.Background()))
	assert.NoError(t, bus.Stop(context.Background()))
}
