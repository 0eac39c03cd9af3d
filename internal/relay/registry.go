package relay

import (
	"fmt"
	"sync"
)

// Registry tracks every live transport connection and the display label
// assigned to it on arrival. Labels are only used for logging and are
// unique for the lifetime of the process; they are not identities - the
// Directory owns those.
type Registry struct {
	conns  map[string]Conn   // connectionID → transport
	labels map[string]string // connectionID → display label
	seq    int               // monotonic label counter
	mu     sync.RWMutex
}

func NewRegistry() *Registry {
	return &Registry{
		conns:  make(map[string]Conn),
		labels: make(map[string]string),
	}
}

// Add registers a new connection and returns its generated display label.
// The counter never goes backwards, so labels stay unique even after
// disconnects.
func (r *Registry) Add(connectionID string, conn Conn) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.seq++
	label := fmt.Sprintf("Client%d", r.seq)
	r.conns[connectionID] = conn
	r.labels[connectionID] = label
	return label
}

// Remove drops the connection mapping on disconnect.
func (r *Registry) Remove(connectionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.conns, connectionID)
	delete(r.labels, connectionID)
}

// Conn returns the transport for a connection, or nil if it is gone.
func (r *Registry) Conn(connectionID string) Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.conns[connectionID]
}

// Label returns the display label for a connection.
func (r *Registry) Label(connectionID string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.labels[connectionID]
}

// Count returns the number of live connections.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// Conns returns a snapshot of all live transports. Used for
// server-wide notifications such as shutdown.
func (r *Registry) Conns() []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := make([]Conn, 0, len(r.conns))
	for _, c := range r.conns {
		conns = append(conns, c)
	}
	return conns
}

// ConnectionIDs returns a snapshot of all live connection ids.
func (r *Registry) ConnectionIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.conns))
	for id := range r.conns {
		ids = append(ids, id)
	}
	return ids
}
