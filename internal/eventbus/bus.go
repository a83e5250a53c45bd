// Package eventbus is an in-process publish/subscribe bus for domain events
// such as new submissions. Events are queued on a buffered channel and
// dispatched to subscribers from a single consumer goroutine.
package eventbus

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Event types.
const (
	SubmissionCreated = "submission.created"
	FormPublished     = "form.published"
	FormDeleted       = "form.deleted"
)

// Event is a domain event scoped to a tenant.
type Event struct {
	Type         string    `json:"type"`
	TenantID     string    `json:"tenant_id"`
	FormID       string    `json:"form_id,omitempty"`
	SubmissionID string    `json:"submission_id,omitempty"`
	AgentID      string    `json:"agent_id,omitempty"`
	Status       string    `json:"status,omitempty"`
	At           time.Time `json:"at"`
}

// Handler processes one event. Handlers run on the bus goroutine.
type Handler func(ctx context.Context, evt Event) error

// Publisher is the side of the bus services depend on.
type Publisher interface {
	Publish(evt Event)
}

// Bus dispatches events to subscribers in publish order.
type Bus struct {
	mu       sync.RWMutex
	subs     []subscriber
	nextID   uint64
	events   chan Event
	done     chan struct{}
	started  bool
	stopped  bool
	stopOnce sync.Once
	logger   *zap.Logger
}

type subscriber struct {
	id   uint64
	name string
	fn   Handler
}

// New returns a bus with the given buffer size. A size below 1 uses 256.
func New(bufSize int, logger *zap.Logger) *Bus {
	if bufSize < 1 {
		bufSize = 256
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{
		events: make(chan Event, bufSize),
		done:   make(chan struct{}),
		logger: logger,
	}
}

// Subscribe registers a named handler and returns a function that removes
// it.
func (b *Bus) Subscribe(name string, fn Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscriber{id: id, name: name, fn: fn})
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, existing := range b.subs {
			if existing.id == id {
				b.subs = append(b.subs[:i], b.subs[i+1:]...)
				return
			}
		}
	}
}

// Publish queues evt without blocking. Events are dropped with a warning
// when the buffer is full or the bus is stopped.
func (b *Bus) Publish(evt Event) {
	if evt.At.IsZero() {
		evt.At = time.Now().UTC()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.stopped {
		return
	}
	select {
	case b.events <- evt:
	default:
		b.logger.Warn("event buffer full, dropping event",
			zap.String("type", evt.Type), zap.String("tenant_id", evt.TenantID))
	}
}

// Start launches the consumer goroutine. It runs until ctx is cancelled or
// Stop is called, draining queued events before it returns.
func (b *Bus) Start(ctx context.Context) {
	b.mu.Lock()
	if b.started {
		b.mu.Unlock()
		return
	}
	b.started = true
	b.mu.Unlock()

	go func() {
		defer close(b.done)
		for {
			select {
			case evt, ok := <-b.events:
				if !ok {
					return
				}
				b.dispatch(ctx, evt)
			case <-ctx.Done():
				for {
					select {
					case evt, ok := <-b.events:
						if !ok {
							return
						}
						b.dispatch(ctx, evt)
					default:
						return
					}
				}
			}
		}
	}()
}

// Stop closes the bus and waits for the consumer to finish. Safe to call
// more than once and before Start.
func (b *Bus) Stop() {
	b.stopOnce.Do(func() {
		b.mu.Lock()
		b.stopped = true
		close(b.events)
		started := b.started
		b.mu.Unlock()
		if started {
			<-b.done
		}
	})
}

func (b *Bus) dispatch(ctx context.Context, evt Event) {
	b.mu.RLock()
	subs := append([]subscriber(nil), b.subs...)
	b.mu.RUnlock()

	for _, s := range subs {
		if err := s.fn(ctx, evt); err != nil {
			b.logger.Warn("event handler failed",
				zap.String("handler", s.name),
				zap.String("type", evt.Type),
				zap.Error(err))
		}
	}
}

// Discard is a Publisher that drops every event.
type Discard struct{}

// Publish does nothing.
func (Discard) Publish(Event) {}

var _ Publisher = (*Bus)(nil)
var _ Publisher = Discard{}
