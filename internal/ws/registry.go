package ws

import "sync"

// Sender is the handle the registry keeps for one live local connection.
// Enqueue must never block: it offers the payload to the connection's
// outbound queue and reports whether it was accepted.
type Sender interface {
	Enqueue(payload []byte) bool
}

// Registry is the per-instance index from user identity to that user's live
// local connections. It holds references only; sessions own their
// connections. It is never persisted and is rebuilt empty on restart.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]map[string]Sender
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		conns: make(map[string]map[string]Sender),
	}
}

// Register inserts a connection under the user's entry, creating the entry
// if absent. Safe for concurrent use.
func (r *Registry) Register(userID, connID string, s Sender) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.conns[userID]
	if !ok {
		entry = make(map[string]Sender)
		r.conns[userID] = entry
	}
	entry[connID] = s
}

// Unregister removes a connection. Removing an absent user or connection is
// a no-op so disconnect races never fault. An entry left empty is pruned.
func (r *Registry) Unregister(userID, connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.conns[userID]
	if !ok {
		return
	}
	delete(entry, connID)
	if len(entry) == 0 {
		delete(r.conns, userID)
	}
}

// ConnectionsFor returns a snapshot of the user's live local connections.
// The slice is a copy, so callers never send while holding the lock.
func (r *Registry) ConnectionsFor(userID string) []Sender {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry := r.conns[userID]
	if len(entry) == 0 {
		return nil
	}
	senders := make([]Sender, 0, len(entry))
	for _, s := range entry {
		senders = append(senders, s)
	}
	return senders
}

// ConnectionCount returns the number of live local connections across all
// users.
func (r *Registry) ConnectionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, entry := range r.conns {
		n += len(entry)
	}
	return n
}
