package events

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultMaxEvents bounds the in-memory event log when no size is configured
const DefaultMaxEvents = 1000

// Handler receives events synchronously, in publish order
type Handler func(Event)

type subscription struct {
	id      uint64
	handler Handler
}

// Bus is a typed publish/subscribe notifier with a bounded offset log.
// Subscribers are called synchronously after the state change that produced the
// event; the log lets HTTP clients poll from an offset.
type Bus struct {
	mu          sync.RWMutex
	events      []Event
	nextOffset  int64
	maxEvents   int
	subscribers []subscription
	nextSubID   uint64
	waiters     map[int64][]chan struct{}
	logger      *slog.Logger
}

// NewBus creates a bus keeping at most maxEvents events in memory
func NewBus(maxEvents int, logger *slog.Logger) *Bus {
	if maxEvents < 1 {
		maxEvents = DefaultMaxEvents
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		events:    make([]Event, 0),
		maxEvents: maxEvents,
		waiters:   make(map[int64][]chan struct{}),
		logger:    logger,
	}
}

// Subscribe registers handler and returns a function that removes it
func (b *Bus) Subscribe(handler Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextSubID++
	id := b.nextSubID
	b.subscribers = append(b.subscribers, subscription{id: id, handler: handler})

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			for i, sub := range b.subscribers {
				if sub.id == id {
					b.subscribers = append(b.subscribers[:i:i], b.subscribers[i+1:]...)
					return
				}
			}
		})
	}
}

// Publish appends an event to the log, wakes long-poll waiters and then calls
// every subscriber. The published event is returned.
func (b *Bus) Publish(kind Kind, payload any) Event {
	b.mu.Lock()
	event := Event{
		ID:        uuid.NewString(),
		Offset:    b.nextOffset,
		Kind:      kind,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
	b.nextOffset++
	b.events = append(b.events, event)
	b.rotateLocked()
	b.notifyWaitersLocked(event.Offset)
	handlers := make([]Handler, 0, len(b.subscribers))
	for _, sub := range b.subscribers {
		handlers = append(handlers, sub.handler)
	}
	b.mu.Unlock()

	b.logger.Debug("Event published",
		"offset", event.Offset,
		"kind", event.Kind,
		"subscribers", len(handlers),
	)

	for _, handler := range handlers {
		handler(event)
	}
	return event
}

// rotateLocked drops the oldest events once the log exceeds maxEvents, keeping 75%
func (b *Bus) rotateLocked() {
	if len(b.events) <= b.maxEvents {
		return
	}

	keepCount := b.maxEvents * 3 / 4
	if keepCount < 1 {
		keepCount = 1
	}
	removed := len(b.events) - keepCount
	b.events = append([]Event(nil), b.events[removed:]...)

	b.logger.Info("Event log rotated",
		"removed_events", removed,
		"remaining_events", len(b.events),
	)
}

// notifyWaitersLocked releases every waiter registered at or below offset
func (b *Bus) notifyWaitersLocked(offset int64) {
	for waitOffset, waiters := range b.waiters {
		if waitOffset > offset {
			continue
		}
		for _, waiter := range waiters {
			close(waiter)
		}
		delete(b.waiters, waitOffset)
	}
}

// Since returns up to limit events with an offset >= fromOffset, the offset to
// poll from next and whether more events are already available.
func (b *Bus) Since(fromOffset int64, limit int) ([]Event, int64, bool) {
	if limit < 1 {
		limit = 100
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	startIdx := -1
	for i, event := range b.events {
		if event.Offset >= fromOffset {
			startIdx = i
			break
		}
	}
	if startIdx == -1 {
		return []Event{}, max(fromOffset, b.nextOffset), false
	}

	endIdx := min(startIdx+limit, len(b.events))
	result := make([]Event, endIdx-startIdx)
	copy(result, b.events[startIdx:endIdx])

	return result, result[len(result)-1].Offset + 1, endIdx < len(b.events)
}

// Wait blocks until an event with offset >= fromOffset has been published or
// ctx is done. It returns ctx.Err() when the context ends first.
func (b *Bus) Wait(ctx context.Context, fromOffset int64) error {
	b.mu.Lock()
	if b.nextOffset > fromOffset {
		b.mu.Unlock()
		return nil
	}
	notify := make(chan struct{})
	b.waiters[fromOffset] = append(b.waiters[fromOffset], notify)
	b.mu.Unlock()

	select {
	case <-notify:
		return nil
	case <-ctx.Done():
		b.removeWaiter(fromOffset, notify)
		return ctx.Err()
	}
}

func (b *Bus) removeWaiter(offset int64, notify chan struct{}) {
	b.mu.Lock()
	defer b.mu.Unlock()

	waiters := b.waiters[offset]
	for i, waiter := range waiters {
		if waiter == notify {
			waiters = append(waiters[:i], waiters[i+1:]...)
			break
		}
	}
	if len(waiters) == 0 {
		delete(b.waiters, offset)
		return
	}
	b.waiters[offset] = waiters
}

// CurrentOffset returns the offset the next published event will get
func (b *Bus) CurrentOffset() int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.nextOffset
}

// Len returns the number of events currently held in the log
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.events)
}
