// Package notifications implements the group-addressable realtime channel:
// a local websocket hub, Redis pub/sub fan-out between instances, and a
// queued broadcaster that services publish through.
package notifications

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"

	"github.com/redis/go-redis/v9"
)

const groupChannelPrefix = "broadcast:group:"

// Notifier publishes group events into Redis so every API instance can
// deliver them to its own websocket clients.
type Notifier struct {
	rdb *redis.Client
}

// NewNotifier creates a new Notifier instance using the provided Redis client.
func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{rdb: rdb}
}

// Enabled reports whether a Redis client is wired.
func (n *Notifier) Enabled() bool {
	return n != nil && n.rdb != nil
}

// GroupChannel derives the Redis channel name for a group.
func GroupChannel(g Group) string {
	return groupChannelPrefix + string(g)
}

// PublishGroup sends a serialized envelope to a group's channel.
func (n *Notifier) PublishGroup(ctx context.Context, g Group, payload []byte) error {
	if !n.Enabled() {
		return nil
	}
	return n.rdb.Publish(ctx, GroupChannel(g), payload).Err()
}

// StartPatternSubscriber subscribes to every group channel and calls
// onMessage for each incoming message until ctx is done. It returns once the
// subscription is confirmed by Redis.
func (n *Notifier) StartPatternSubscriber(ctx context.Context, onMessage func(g Group, payload []byte)) error {
	if !n.Enabled() {
		return nil
	}
	sub := n.rdb.PSubscribe(ctx, groupChannelPrefix+"*")
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("subscribe %s*: %w", groupChannelPrefix, err)
	}
	ch := sub.Channel()

	go func() {
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				group := Group(strings.TrimPrefix(msg.Channel, groupChannelPrefix))
				func() {
					defer func() {
						if r := recover(); r != nil {
							slog.Default().Error("panic in group subscriber",
								slog.Any("panic", r), slog.String("stack", string(debug.Stack())))
						}
					}()
					onMessage(group, []byte(msg.Payload))
				}()
			}
		}
	}()

	return nil
}
