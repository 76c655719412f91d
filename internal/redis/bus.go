package redis

import (
	"context"
	"fmt"
	"log/slog"

	goredis "github.com/redis/go-redis/v9"

	"github.com/BreederHQ/realtime/internal/broadcast"
)

// Bus provides cross-instance notification fan-out via Redis Pub/Sub.
// The zero client form (NewDisabledBus) is the single-instance operating
// mode: every method is a no-op.
type Bus struct {
	rdb *goredis.Client
}

var _ broadcast.Bus = (*Bus)(nil)

// NewBus creates a bus over an established Redis connection.
func NewBus(client *Client) *Bus {
	return &Bus{rdb: client.rdb}
}

// NewDisabledBus returns a bus that reports itself disabled. Used when no
// broker is configured.
func NewDisabledBus() *Bus {
	return &Bus{}
}

// Enabled reports whether a broker connection is configured.
func (b *Bus) Enabled() bool {
	return b.rdb != nil
}

// Publish sends a message to all subscribers of a topic. Pub/Sub has no
// acknowledgments, so this returns as soon as the broker accepts the
// message.
func (b *Bus) Publish(ctx context.Context, topic string, payload []byte) error {
	if b.rdb == nil {
		return nil
	}
	if err := b.rdb.Publish(ctx, topic, payload).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	return nil
}

// Subscribe consumes every notification topic through one pattern
// subscription and invokes handler once per message. Blocks until ctx is
// cancelled; handler is responsible for validating what it receives, so a
// malformed message never interrupts the loop.
func (b *Bus) Subscribe(ctx context.Context, handler func(topic string, payload []byte)) {
	if b.rdb == nil {
		return
	}

	sub := b.rdb.PSubscribe(ctx, broadcast.TopicPattern)
	defer func() {
		_ = sub.Close()
	}()

	slog.Info("bus subscription active", "pattern", broadcast.TopicPattern)

	ch := sub.Channel()
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				slog.Warn("bus subscription channel closed")
				return
			}
			handler(msg.Channel, []byte(msg.Payload))
		case <-ctx.Done():
			return
		}
	}
}
