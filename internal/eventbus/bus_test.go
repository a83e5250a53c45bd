package eventbus

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestBusDeliversInOrder(t *testing.T) {
	bus := New(16, zap.NewNop())

	var mu sync.Mutex
	var got []string
	bus.Subscribe("collect", func(_ context.Context, evt Event) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, evt.SubmissionID)
		return nil
	})
	bus.Subscribe("failing", func(context.Context, Event) error { return errors.New("boom") })

	bus.Start(context.Background())
	for _, id := range []string{"s1", "s2", "s3"} {
		bus.Publish(Event{Type: SubmissionCreated, SubmissionID: id})
	}
	bus.Stop()

	assert.Equal(t, []string{"s1", "s2", "s3"}, got)
}

func TestBusUnsubscribe(t *testing.T) {
	bus := New(4, nil)
	calls := 0
	unsubscribe := bus.Subscribe("once", func(context.Context, Event) error {
		calls++
		return nil
	})
	unsubscribe()
	bus.Start(context.Background())
	bus.Publish(Event{Type: FormDeleted})
	bus.Stop()
	assert.Zero(t, calls)
}

func TestBusUnsubscribeSharedName(t *testing.T) {
	bus := New(4, nil)
	var mu sync.Mutex
	var got []string
	record := func(who string) Handler {
		return func(context.Context, Event) error {
			mu.Lock()
			defer mu.Unlock()
			got = append(got, who)
			return nil
		}
	}
	bus.Subscribe("feed", record("first"))
	unsubscribeSecond := bus.Subscribe("feed", record("second"))
	unsubscribeSecond()
	unsubscribeSecond()

	bus.Start(context.Background())
	bus.Publish(Event{Type: FormDeleted})
	bus.Stop()
	assert.Equal(t, []string{"first"}, got)
}

func TestBusDropsWhenFull(t *testing.T) {
	bus := New(1, nil)
	bus.Publish(Event{Type: SubmissionCreated})
	bus.Publish(Event{Type: SubmissionCreated})
	assert.Len(t, bus.events, 1)
	bus.Stop()
}

func TestBusPublishAfterStop(t *testing.T) {
	bus := New(1, nil)
	bus.Start(context.Background())
	bus.Stop()
	bus.Stop()
	assert.NotPanics(t, func() { bus.Publish(Event{Type: FormDeleted}) })
}

func TestBusStampsTime(t *testing.T) {
	bus := New(2, nil)
	seen := make(chan Event, 1)
	bus.Subscribe("stamp", func(_ context.Context, evt Event) error {
		seen <- evt
		return nil
	})
	bus.Start(context.Background())
	defer bus.Stop()
	bus.Publish(Event{Type: FormPublished})

	select {
	case evt := <-seen:
		require.False(t, evt.At.IsZero())
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
}
