package hub

import "sync"

// registry is the set of connections believed live, keyed by connection ID.
type registry struct {
	mu    sync.RWMutex
	conns map[string]Connection
}

func newRegistry() *registry {
	return &registry{conns: make(map[string]Connection)}
}

// add inserts conn and reports whether it was newly added.
func (r *registry) add(conn Connection) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.conns[conn.ID()]; exists {
		return false
	}
	r.conns[conn.ID()] = conn
	return true
}

// remove deletes conn and reports whether it was present. A different
// connection that happens to reuse the ID is left alone.
func (r *registry) remove(conn Connection) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, exists := r.conns[conn.ID()]
	if !exists || current != conn {
		return false
	}
	delete(r.conns, conn.ID())
	return true
}

// snapshot returns a point-in-time copy of the members. The lock is released
// before the caller iterates.
func (r *registry) snapshot() []Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := make([]Connection, 0, len(r.conns))
	for _, conn := range r.conns {
		conns = append(conns, conn)
	}
	return conns
}

// drain empties the registry and returns what it held.
func (r *registry) drain() []Connection {
	r.mu.Lock()
	defer r.mu.Unlock()

	conns := make([]Connection, 0, len(r.conns))
	for _, conn := range r.conns {
		conns = append(conns, conn)
	}
	r.conns = make(map[string]Connection)
	return conns
}

func (r *registry) get(id string) (Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conn, exists := r.conns[id]
	return conn, exists
}

func (r *registry) len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
