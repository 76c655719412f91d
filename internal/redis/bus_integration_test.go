package redis

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BreederHQ/realtime/internal/broadcast"
)

type recordedMessage struct {
	topic   string
	payload string
}

// subscribeRecorder runs a subscription in the background and collects what
// the handler sees.
type subscribeRecorder struct {
	mu       sync.Mutex
	messages []recordedMessage
}

func (r *subscribeRecorder) handler(topic string, payload []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, recordedMessage{topic: topic, payload: string(payload)})
}

func (r *subscribeRecorder) recorded() []recordedMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]recordedMessage(nil), r.messages...)
}

func (r *subscribeRecorder) waitFor(count int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if len(r.recorded()) >= count {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return false
}

func startSubscriber(t *testing.T, bus *Bus) *subscribeRecorder {
	t.Helper()
	rec := &subscribeRecorder{}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		bus.Subscribe(ctx, rec.handler)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	// Give the pattern subscription time to establish
	time.Sleep(100 * time.Millisecond)
	return rec
}

func TestBus_PublishAndSubscribe(t *testing.T) {
	client := setupTestClient(t)
	bus := NewBus(client)
	require.True(t, bus.Enabled())

	rec := startSubscriber(t, bus)

	topic := broadcast.Topic(broadcast.KindUser, 42)
	err := bus.Publish(context.Background(), topic, []byte(`{"event":"ping","payload":null}`))
	require.NoError(t, err)

	require.True(t, rec.waitFor(1, 2*time.Second), "timed out waiting for bus message")
	got := rec.recorded()
	assert.Equal(t, topic, got[0].topic)
	assert.JSONEq(t, `{"event":"ping","payload":null}`, got[0].payload)
}

func TestBus_PatternCoversBothKinds(t *testing.T) {
	client := setupTestClient(t)
	bus := NewBus(client)

	rec := startSubscriber(t, bus)

	ctx := context.Background()
	require.NoError(t, bus.Publish(ctx, broadcast.Topic(broadcast.KindUser, 1), []byte(`{"event":"a"}`)))
	require.NoError(t, bus.Publish(ctx, broadcast.Topic(broadcast.KindProvider, 2), []byte(`{"event":"b"}`)))

	require.True(t, rec.waitFor(2, 2*time.Second), "both topics should reach the one pattern subscription")

	topics := map[string]bool{}
	for _, m := range rec.recorded() {
		topics[m.topic] = true
	}
	assert.True(t, topics["notify:user:1"])
	assert.True(t, topics["notify:provider:2"])
}

func TestBus_IgnoresForeignChannels(t *testing.T) {
	client := setupTestClient(t)
	bus := NewBus(client)

	rec := startSubscriber(t, bus)

	// Published outside the notify namespace: the pattern must not match.
	err := client.Underlying().Publish(context.Background(), "sessions:42", "x").Err()
	require.NoError(t, err)

	assert.False(t, rec.waitFor(1, 300*time.Millisecond))
}

func TestBus_SubscribeStopsOnCancel(t *testing.T) {
	client := setupTestClient(t)
	bus := NewBus(client)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		bus.Subscribe(ctx, func(string, []byte) {})
		close(done)
	}()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Subscribe did not return after context cancel")
	}
}
