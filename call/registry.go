package call

// Registry is the arena of live connections, keyed by stable handle. It is
// owned exclusively by the tracker and mutated only on its serialized queue,
// so the map itself carries no lock.
type Registry struct {
	conns map[Handle]*Connection
}

// NewRegistry creates an empty connection registry.
func NewRegistry() *Registry {
	return &Registry{
		conns: make(map[Handle]*Connection),
	}
}

// Add inserts a connection, enforcing the system-wide connection cap.
func (r *Registry) Add(c *Connection) error {
	if err := ValidateSystemCapacity(len(r.conns)); err != nil {
		return err
	}
	r.conns[c.Handle()] = c
	return nil
}

// Get returns the connection for a handle, or nil when unknown.
func (r *Registry) Get(h Handle) *Connection {
	return r.conns[h]
}

// Remove discards the connection for a handle. Removal of an unknown handle
// is a no-op.
func (r *Registry) Remove(h Handle) {
	delete(r.conns, h)
}

// Len returns the number of live connections.
func (r *Registry) Len() int {
	return len(r.conns)
}

// All returns every live connection. The returned slice is a fresh copy.
func (r *Registry) All() []*Connection {
	out := make([]*Connection, 0, len(r.conns))
	for _, c := range r.conns {
		out = append(out, c)
	}
	return out
}
