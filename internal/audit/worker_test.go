package audit

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flakyStore struct {
	*InMemoryStore
	failFirst bool
}

func (s *flakyStore) Append(ctx context.Context, event Event) error {
	if s.failFirst {
		s.failFirst = false
		return errors.New("sink unavailable")
	}
	return s.InMemoryStore.Append(ctx, event)
}

func waitForEvents(t *testing.T, store *InMemoryStore, deviceID string, want int) []Event {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		events, err := store.ListByDevice(context.Background(), deviceID)
		require.NoError(t, err)
		if len(events) >= want {
			return events
		}
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for %d events, have %d", want, len(events))
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestWorkerPersistsPublishedEvents(t *testing.T) {
	store := NewInMemoryStore()
	inbox := make(chan Event, 16)
	worker := NewWorker(store, inbox, slog.Default())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go worker.Run(ctx)

	publisher := NewPublisher(inbox)
	require.NoError(t, publisher.Emit(ctx, Event{
		Action:   EventScanAccepted,
		DeviceID: "EV-1001",
		Outcome:  "excellent",
	}))

	events := waitForEvents(t, store, "EV-1001", 1)
	assert.Equal(t, EventScanAccepted, events[0].Action)
	assert.False(t, events[0].Timestamp.IsZero(), "publisher stamps events")
}

func TestWorkerSkipsFailedAppends(t *testing.T) {
	store := &flakyStore{InMemoryStore: NewInMemoryStore(), failFirst: true}
	inbox := make(chan Event, 16)
	worker := NewWorker(store, inbox, slog.Default())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go worker.Run(ctx)

	publisher := NewPublisher(inbox)
	require.NoError(t, publisher.Emit(ctx, Event{Action: EventScanRejected, DeviceID: "EV-1001"}))
	require.NoError(t, publisher.Emit(ctx, Event{Action: EventScanAccepted, DeviceID: "EV-1001"}))

	// The first append fails and is dropped; the worker keeps draining.
	events := waitForEvents(t, store.InMemoryStore, "EV-1001", 1)
	assert.Equal(t, EventScanAccepted, events[0].Action)
}

func TestPublisherDropsWhenInboxFull(t *testing.T) {
	inbox := make(chan Event, 1)
	publisher := NewPublisher(inbox)

	require.NoError(t, publisher.Emit(context.Background(), Event{Action: EventScanAccepted}))
	require.NoError(t, publisher.Emit(context.Background(), Event{Action: EventScanRejected}))

	assert.Len(t, inbox, 1)
}

func TestWorkerStopsOnContextCancel(t *testing.T) {
	worker := NewWorker(NewInMemoryStore(), make(chan Event), slog.Default())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- worker.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("worker did not stop on cancel")
	}
}
