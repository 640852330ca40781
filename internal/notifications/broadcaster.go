package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"qaforum/internal/observability"
)

var (
	ErrQueueFull         = errors.New("broadcast queue full")
	ErrBroadcasterClosed = errors.New("broadcaster closed")
)

// BroadcasterConfig bounds the outbound queue.
type BroadcasterConfig struct {
	QueueSize int
	Workers   int
}

type outbound struct {
	group Group
	event string
	data  []byte
}

// Broadcaster is the Publisher services use. Publish only enqueues; workers
// fan events out through Redis when it is available and to the local hub
// otherwise, so a slow subscriber never stalls the request that produced
// the event.
type Broadcaster struct {
	hub      *Hub
	notifier *Notifier
	queue    chan outbound
	workers  int

	mu      sync.RWMutex
	closed  bool
	started bool
	wg      sync.WaitGroup
	now     func() time.Time
}

// NewBroadcaster creates a broadcaster. Call Start before publishing.
func NewBroadcaster(hub *Hub, notifier *Notifier, cfg BroadcasterConfig) *Broadcaster {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1024
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	return &Broadcaster{
		hub:      hub,
		notifier: notifier,
		queue:    make(chan outbound, cfg.QueueSize),
		workers:  cfg.Workers,
		now:      time.Now,
	}
}

// Publish implements Publisher.
func (b *Broadcaster) Publish(ctx context.Context, group Group, event string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", event, err)
	}
	data, err := json.Marshal(Envelope{
		Event:   event,
		Group:   group,
		Payload: raw,
		SentAt:  b.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal %s envelope: %w", event, err)
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrBroadcasterClosed
	}

	select {
	case b.queue <- outbound{group: group, event: event, data: data}:
		observability.BroadcastEventsTotal.WithLabelValues(event).Inc()
		return nil
	default:
		observability.BroadcastDropsTotal.WithLabelValues("queue_full").Inc()
		slog.Default().WarnContext(ctx, "broadcast queue full, dropping event",
			slog.String("event", event), slog.String("group", string(group)))
		return ErrQueueFull
	}
}

// Start launches the delivery workers. They exit when ctx is done or Close
// drains the queue.
func (b *Broadcaster) Start(ctx context.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.started || b.closed {
		return
	}
	b.started = true
	for i := 0; i < b.workers; i++ {
		b.wg.Add(1)
		go b.run(ctx)
	}
}

func (b *Broadcaster) run(ctx context.Context) {
	defer b.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-b.queue:
			if !ok {
				return
			}
			b.deliver(ctx, msg)
		}
	}
}

func (b *Broadcaster) deliver(ctx context.Context, msg outbound) {
	if b.notifier.Enabled() {
		err := b.notifier.PublishGroup(ctx, msg.group, msg.data)
		if err == nil {
			return
		}
		observability.BroadcastDropsTotal.WithLabelValues("redis_fallback").Inc()
		observability.LogAsyncOperationError(ctx, "broadcast.redis_publish", err,
			slog.String("event", msg.event), slog.String("group", string(msg.group)))
	}
	if b.hub != nil {
		b.hub.Deliver(msg.group, msg.data)
	}
}

// Close stops accepting events and waits until queued events are delivered.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	close(b.queue)
	started := b.started
	b.mu.Unlock()

	if started {
		b.wg.Wait()
	}
}

// Pending returns the number of queued events.
func (b *Broadcaster) Pending() int { return len(b.queue) }
