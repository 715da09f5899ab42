package bootstrap

import (
	"net"
	"sync"
)

// MaxClients bounds the number of simultaneously registered clients,
// mirroring the peer session registry's own cap.
const MaxClients = 30

// client is one registered bootstrap participant. writeMu serialises
// writes to conn: a client's own join-sequence lines and other
// clients' broadcasts may otherwise race on the same socket.
type client struct {
	pkHex   string
	ip      string
	port    int
	conn    net.Conn
	writeMu sync.Mutex
}

func (c *client) write(line string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_, err := c.conn.Write([]byte(line))
	return err
}

// Registry is the bootstrap server's entirely volatile client table:
// no persistence, guarded by one mutex, snapshotted before any
// broadcast so sends happen outside the lock.
type Registry struct {
	mu      sync.RWMutex
	clients map[string]*client
}

// NewRegistry returns an empty client registry.
func NewRegistry() *Registry {
	return &Registry{clients: make(map[string]*client)}
}

// register adds c, replacing any prior entry for the same pk_hex. It
// fails with ErrRegistryFull at MaxClients capacity.
func (r *Registry) register(c *client) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.clients[c.pkHex]; !exists && len(r.clients) >= MaxClients {
		return ErrRegistryFull
	}
	r.clients[c.pkHex] = c
	return nil
}

// unregister removes pkHex's entry, if present.
func (r *Registry) unregister(pkHex string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.clients, pkHex)
}

// othersSnapshot returns a copy of every registered client except
// excludePKHex, safe to range and send over without holding the lock.
func (r *Registry) othersSnapshot(excludePKHex string) []*client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*client, 0, len(r.clients))
	for pk, c := range r.clients {
		if pk == excludePKHex {
			continue
		}
		out = append(out, c)
	}
	return out
}

// Len returns the current number of registered clients.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}
