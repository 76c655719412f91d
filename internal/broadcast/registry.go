package broadcast

import (
	"sync"

	"github.com/BreederHQ/realtime/internal/metrics"
)

type clientSet map[*Client]struct{}

// Registry is the per-process index of live connections, keyed independently
// by user id and by provider id. A client carrying a provider identity
// appears in both indexes; empty sets are removed so the maps only ever hold
// recipients with at least one connection.
//
// The registry is shared mutable state touched by every connection lifecycle
// event and every send, so all access goes through the mutex. Readers get
// snapshot copies.
type Registry struct {
	mu         sync.RWMutex
	byUser     map[int64]clientSet
	byProvider map[int64]clientSet
	total      int
}

// NewRegistry creates an empty registry. Each process owns exactly one,
// wired up by the composition root; tests create as many as they need.
func NewRegistry() *Registry {
	return &Registry{
		byUser:     make(map[int64]clientSet),
		byProvider: make(map[int64]clientSet),
	}
}

// Register adds a client to the user index and, when it carries a provider
// identity, to the provider index. Registering the same client twice is a
// no-op: sets, not lists.
func (r *Registry) Register(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	users, exists := r.byUser[c.UserID]
	if !exists {
		users = make(clientSet)
		r.byUser[c.UserID] = users
	}
	if _, dup := users[c]; !dup {
		users[c] = struct{}{}
		r.total++
	}

	if c.ProviderID != 0 {
		providers, exists := r.byProvider[c.ProviderID]
		if !exists {
			providers = make(clientSet)
			r.byProvider[c.ProviderID] = providers
		}
		providers[c] = struct{}{}
	}

	r.updateGauges()
}

// Unregister removes a client from both indexes and stops its writer.
// Unknown clients are a no-op; disconnect notifications can race sends and
// both sides must stay safe.
func (r *Registry) Unregister(c *Client) {
	r.mu.Lock()

	if users, exists := r.byUser[c.UserID]; exists {
		if _, member := users[c]; member {
			delete(users, c)
			r.total--
			if len(users) == 0 {
				delete(r.byUser, c.UserID)
			}
		}
	}

	if c.ProviderID != 0 {
		if providers, exists := r.byProvider[c.ProviderID]; exists {
			delete(providers, c)
			if len(providers) == 0 {
				delete(r.byProvider, c.ProviderID)
			}
		}
	}

	r.updateGauges()
	r.mu.Unlock()

	// Stop outside the lock: stop waits on the writer goroutine.
	c.stop()
}

// ForUser returns a snapshot of the clients connected for a user id.
func (r *Registry) ForUser(id int64) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return snapshot(r.byUser[id])
}

// ForProvider returns a snapshot of the clients connected for a provider id.
func (r *Registry) ForProvider(id int64) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return snapshot(r.byProvider[id])
}

// For dispatches on recipient kind. Unknown kinds yield no clients.
func (r *Registry) For(kind Kind, id int64) []*Client {
	switch kind {
	case KindUser:
		return r.ForUser(id)
	case KindProvider:
		return r.ForProvider(id)
	default:
		return nil
	}
}

// Stats is a point-in-time count of connected recipients and clients.
type Stats struct {
	Users        int
	Providers    int
	TotalClients int
}

// Stats computes the snapshot on demand. Empty sets are deleted eagerly, so
// the map sizes are the recipient counts.
func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return Stats{
		Users:        len(r.byUser),
		Providers:    len(r.byProvider),
		TotalClients: r.total,
	}
}

// Close stops every client writer and empties the indexes. Called once at
// shutdown, after the HTTP listener has stopped accepting connections.
func (r *Registry) Close() {
	r.mu.Lock()
	clients := make([]*Client, 0, r.total)
	for _, users := range r.byUser {
		for c := range users {
			clients = append(clients, c)
		}
	}
	r.byUser = make(map[int64]clientSet)
	r.byProvider = make(map[int64]clientSet)
	r.total = 0
	r.updateGauges()
	r.mu.Unlock()

	for _, c := range clients {
		c.stop()
	}
}

// updateGauges must be called with the lock held.
func (r *Registry) updateGauges() {
	metrics.ConnectedClients.Set(float64(r.total))
	metrics.ConnectedUsers.Set(float64(len(r.byUser)))
	metrics.ConnectedProviders.Set(float64(len(r.byProvider)))
}

func snapshot(set clientSet) []*Client {
	if len(set) == 0 {
		return nil
	}
	clients := make([]*Client, 0, len(set))
	for c := range set {
		clients = append(clients, c)
	}
	return clients
}
