package broadcast

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/BreederHQ/realtime/internal/metrics"
)

// Bus fans envelopes out to sibling instances over an external pub/sub
// broker. Implementations must be safe for concurrent use. A disabled bus
// (Enabled() == false) is a deliberate single-instance operating mode, not
// an error.
type Bus interface {
	Enabled() bool
	Publish(ctx context.Context, topic string, payload []byte) error
}

// busFrame is the bus-only wrapper around a wire frame. The broker reflects
// every publish back to the publishing process's own pattern subscription,
// so each message carries the origin instance id and the subscription
// handler drops its own. Only the inner frame ever reaches a client.
type busFrame struct {
	Origin string          `json:"origin"`
	Frame  json.RawMessage `json:"frame"`
}

// Broadcaster is the entry point used by the rest of the system. Every send
// delivers locally first, so the devices connected to this instance are
// notified even when the bus is down or disabled, then publishes the same
// envelope for sibling instances.
type Broadcaster struct {
	registry *Registry
	bus      Bus

	// instanceID identifies this process on the bus for the lifetime of the
	// subscription. Never persisted; a restart is a new instance.
	instanceID string
}

// NewBroadcaster wires the public API over a registry and a bus. A nil bus
// behaves like a disabled one.
func NewBroadcaster(registry *Registry, bus Bus) *Broadcaster {
	return &Broadcaster{
		registry:   registry,
		bus:        bus,
		instanceID: uuid.NewString(),
	}
}

// Register adds a freshly upgraded connection to the registry.
func (b *Broadcaster) Register(c *Client) {
	b.registry.Register(c)
	slog.Debug("client registered",
		"client_id", c.ID.String(),
		"user_id", c.UserID,
		"provider_id", c.ProviderID,
	)
}

// Unregister removes a connection after the transport reports a disconnect.
func (b *Broadcaster) Unregister(c *Client) {
	b.registry.Unregister(c)
	slog.Debug("client unregistered", "client_id", c.ID.String(), "user_id", c.UserID)
}

// SendToUser delivers an event to every device a user has open, on this and
// every sibling instance. Fire and forget: failures are logged and counted,
// never returned.
func (b *Broadcaster) SendToUser(ctx context.Context, userID int64, event string, payload any) {
	b.send(ctx, KindUser, userID, event, payload)
}

// SendToProvider is SendToUser for the provider identity space.
func (b *Broadcaster) SendToProvider(ctx context.Context, providerID int64, event string, payload any) {
	b.send(ctx, KindProvider, providerID, event, payload)
}

func (b *Broadcaster) send(ctx context.Context, kind Kind, id int64, event string, payload any) {
	data, err := json.Marshal(Envelope{Event: event, Payload: payload})
	if err != nil {
		slog.Error("failed to marshal envelope", "event", event, "error", err)
		metrics.DeliveryFailures.WithLabelValues("marshal").Inc()
		return
	}

	delivered := b.deliverLocal(kind, id, event, data)

	if b.bus != nil && b.bus.Enabled() {
		wrapped, err := json.Marshal(busFrame{Origin: b.instanceID, Frame: data})
		if err == nil {
			err = b.bus.Publish(ctx, Topic(kind, id), wrapped)
		}
		if err != nil {
			slog.Warn("bus publish failed, delivery degraded to local-only",
				"kind", kind, "id", id, "event", event, "error", err)
			metrics.BusPublishFailures.Inc()
		}
	}

	slog.Debug("event dispatched",
		"kind", kind, "id", id, "event", event, "delivered_local", delivered)
}

// deliverLocal writes the already-marshaled envelope to every connection
// registered for the recipient on this process. One bad connection never
// blocks the rest; a client whose buffer is full is treated as dead and
// evicted through the normal unregister path. Returns the number of
// connections actually written to.
func (b *Broadcaster) deliverLocal(kind Kind, id int64, event string, data []byte) int {
	delivered := 0
	for _, c := range b.registry.For(kind, id) {
		if c.Send(data) {
			delivered++
			metrics.DeliveriesTotal.WithLabelValues(event).Inc()
			continue
		}
		slog.Warn("dropping undeliverable client",
			"client_id", c.ID.String(), "kind", kind, "id", id, "event", event)
		metrics.DeliveryFailures.WithLabelValues("write").Inc()
		metrics.SlowClientsEvicted.Inc()
		b.registry.Unregister(c)
	}
	return delivered
}

// HandleBusMessage is the process-wide subscription handler: it decodes the
// recipient from the topic, validates the envelope, and runs a local
// delivery pass. The originating instance already delivered locally before
// publishing, so messages carrying our own origin are ignored. A malformed
// message from any producer is dropped and logged; it must never take down
// the subscription loop, so this function never panics and returns nothing.
func (b *Broadcaster) HandleBusMessage(topic string, payload []byte) {
	kind, id, err := ParseTopic(topic)
	if err != nil {
		slog.Warn("dropping bus message with bad topic", "topic", topic, "error", err)
		metrics.BusMessagesDropped.Inc()
		return
	}

	var msg busFrame
	if err := json.Unmarshal(payload, &msg); err != nil {
		slog.Warn("dropping malformed bus message", "topic", topic, "error", err)
		metrics.BusMessagesDropped.Inc()
		return
	}
	if msg.Origin == b.instanceID {
		// Our own publish reflected by the broker.
		return
	}

	var env Envelope
	if err := json.Unmarshal(msg.Frame, &env); err != nil {
		slog.Warn("dropping bus message with malformed frame", "topic", topic, "error", err)
		metrics.BusMessagesDropped.Inc()
		return
	}
	if env.Event == "" {
		slog.Warn("dropping bus message without event", "topic", topic)
		metrics.BusMessagesDropped.Inc()
		return
	}

	metrics.BusMessagesReceived.Inc()
	// The inner frame is already in wire format, forwarded as-is.
	b.deliverLocal(kind, id, env.Event, msg.Frame)
}

// TransactionMessage carries everything needed to notify both parties of a
// new chat message on a transaction.
type TransactionMessage struct {
	MessageID       int64
	ThreadID        int64
	TransactionID   int64
	SenderUserID    int64
	SenderFirstName string
	SenderLastName  string
	BuyerUserID     int64
	ProviderUserID  int64
	MessageText     string
	CreatedAt       time.Time
}

// BroadcastTransactionMessage notifies the buyer and the provider-side user
// of a new message. The sender is skipped: their own client already shows
// the message it just sent.
func (b *Broadcaster) BroadcastTransactionMessage(ctx context.Context, msg TransactionMessage) {
	payload := NewMessagePayload{
		ID:            msg.MessageID,
		ThreadID:      msg.ThreadID,
		TransactionID: msg.TransactionID,
		SenderID:      msg.SenderUserID,
		MessageText:   msg.MessageText,
		CreatedAt:     msg.CreatedAt,
		Sender: MessageSender{
			ID:        msg.SenderUserID,
			FirstName: msg.SenderFirstName,
			LastName:  msg.SenderLastName,
		},
	}

	for _, target := range []int64{msg.BuyerUserID, msg.ProviderUserID} {
		if target == 0 || target == msg.SenderUserID {
			continue
		}
		b.SendToUser(ctx, target, EventNewMessage, payload)
	}
}

// BroadcastBreederMessage notifies a user of a breeder-originated message,
// using the variant payload shape clients expect for that source.
func (b *Broadcaster) BroadcastBreederMessage(ctx context.Context, recipientUserID, threadID int64, msg BreederMessage) {
	b.SendToUser(ctx, recipientUserID, EventNewMessage, BreederMessagePayload{
		ThreadID: threadID,
		Source:   "breeder",
		Message:  msg,
	})
}

// BroadcastUnreadCount pushes fresh unread counters to one recipient.
func (b *Broadcaster) BroadcastUnreadCount(ctx context.Context, kind Kind, id int64, unreadThreads, totalUnreadMessages int) {
	b.send(ctx, kind, id, EventUnreadCount, UnreadCountPayload{
		UnreadThreads:       unreadThreads,
		TotalUnreadMessages: totalUnreadMessages,
	})
}

// BroadcastTransactionUpdate notifies both parties of a status change,
// skipping whichever identity performed it.
func (b *Broadcaster) BroadcastTransactionUpdate(ctx context.Context, update TransactionUpdatePayload, buyerUserID, providerID, actorUserID, actorProviderID int64) {
	if buyerUserID != 0 && buyerUserID != actorUserID {
		b.SendToUser(ctx, buyerUserID, EventTransactionUpdate, update)
	}
	if providerID != 0 && providerID != actorProviderID {
		b.SendToProvider(ctx, providerID, EventTransactionUpdate, update)
	}
}

// ConnectionStats is the read-only diagnostic snapshot served by the debug
// API.
type ConnectionStats struct {
	Users        int  `json:"users"`
	Providers    int  `json:"providers"`
	TotalClients int  `json:"totalClients"`
	BusEnabled   bool `json:"busEnabled"`
}

// ConnectionStats computes the snapshot on demand; it never mutates
// registry state.
func (b *Broadcaster) ConnectionStats() ConnectionStats {
	stats := b.registry.Stats()
	return ConnectionStats{
		Users:        stats.Users,
		Providers:    stats.Providers,
		TotalClients: stats.TotalClients,
		BusEnabled:   b.bus != nil && b.bus.Enabled(),
	}
}

// Close drains the registry. The bus subscription is owned by the
// composition root and stops with its context.
func (b *Broadcaster) Close() {
	b.registry.Close()
}
