// ABOUTME: In-memory fan-out of store change events to subscribers
// ABOUTME: Publishing never blocks; slow subscribers drop events and can poll Version instead

package logstore

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/venkateshthallam/habithive/internal/daykey"
)

// subscriberBufferSize is the channel buffer for each subscriber.
const subscriberBufferSize = 64

// EventKind names a store state change.
type EventKind string

const (
	EventApplied       EventKind = "applied"
	EventConfirmed     EventKind = "confirmed"
	EventRolledBack    EventKind = "rolled_back"
	EventReloaded      EventKind = "reloaded"
	EventHiveReloaded  EventKind = "hive_reloaded"
	EventHiveRemoved   EventKind = "hive_removed"
	EventHabitAdded    EventKind = "habit_added"
	EventHabitRemoved  EventKind = "habit_removed"
	EventHabitRestored EventKind = "habit_restored"
	EventReset         EventKind = "reset"
)

// Event describes one change. Version is the store version after the change.
type Event struct {
	Kind    EventKind
	HabitID string
	HiveID  string
	Day     daykey.Key
	Version uint64
}

type subscription struct {
	ch   chan Event
	done chan struct{} // closed on removal; releases the ctx watcher
}

// Broadcaster provides in-memory pub/sub for store events.
type Broadcaster struct {
	mu          sync.RWMutex
	subscribers map[string]subscription
	closed      bool
	watchers    sync.WaitGroup
	logger      *slog.Logger
}

// NewBroadcaster creates a broadcaster. Pass nil logger for default.
func NewBroadcaster(logger *slog.Logger) *Broadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broadcaster{
		subscribers: make(map[string]subscription),
		logger:      logger.With("component", "broadcaster"),
	}
}

// Subscribe registers a subscriber. The subscription is removed and its
// channel closed when ctx is cancelled, Unsubscribe is called or the
// broadcaster is closed. Subscribing to a closed broadcaster returns a
// closed channel.
func (b *Broadcaster) Subscribe(ctx context.Context) (<-chan Event, string) {
	subID := uuid.New().String()
	sub := subscription{
		ch:   make(chan Event, subscriberBufferSize),
		done: make(chan struct{}),
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(sub.ch)
		return sub.ch, subID
	}
	b.subscribers[subID] = sub
	b.watchers.Add(1)
	b.mu.Unlock()

	b.logger.Debug("subscriber added", "sub_id", subID)

	go func() {
		defer b.watchers.Done()
		select {
		case <-ctx.Done():
			b.Unsubscribe(subID)
		case <-sub.done:
		}
	}()

	return sub.ch, subID
}

// Publish sends event to every subscriber. Non-blocking: events are dropped
// for subscribers whose channels are full.
func (b *Broadcaster) Publish(event Event) {
	// Sends happen under the read lock so Unsubscribe cannot close a
	// channel mid-send.
	b.mu.RLock()
	defer b.mu.RUnlock()

	for id, sub := range b.subscribers {
		select {
		case sub.ch <- event:
		default:
			b.logger.Debug("dropped event for slow subscriber",
				"sub_id", id,
				"kind", event.Kind,
				"version", event.Version)
		}
	}
}

// Unsubscribe removes a subscription and closes its channel.
func (b *Broadcaster) Unsubscribe(subID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub, ok := b.subscribers[subID]
	if !ok {
		return
	}
	delete(b.subscribers, subID)
	close(sub.ch)
	close(sub.done)

	b.logger.Debug("subscriber removed", "sub_id", subID)
}

// Close closes all subscriber channels and waits for their context
// watchers to exit. Later calls are no-ops.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	b.closed = true
	for subID, sub := range b.subscribers {
		close(sub.ch)
		close(sub.done)
		delete(b.subscribers, subID)
	}
	b.mu.Unlock()

	b.watchers.Wait()
	b.logger.Debug("broadcaster closed")
}

// SubscriberCount reports the number of active subscriptions.
func (b *Broadcaster) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
