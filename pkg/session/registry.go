package session

import (
	"sync"
)

// MaxPeers bounds the number of simultaneously connected sessions. It
// is smaller than the friend table's cap (identity.MaxFriends = 50), so
// not every friend can hold a live session at once.
const MaxPeers = 30

// ReadyFunc is invoked once, synchronously, when a session reaches
// StateReady and is admitted to the registry. pkg/syncer registers one
// of these to kick off anti-entropy sync for the newly connected peer
// without pkg/session importing pkg/syncer.
type ReadyFunc func(s *Session)

// Registry tracks live sessions by remote public key, enforcing
// MaxPeers and notifying callers when peers become ready or drop.
//
// Held state is a map modified only under mu; Send/Run occur on a
// snapshotted *Session outside any lock, per the "copy under lock,
// act without it" discipline used for the socket table.
type Registry struct {
	mu    sync.RWMutex
	byPK  map[string]*Session
	onReady ReadyFunc
}

// NewRegistry returns an empty registry. onReady may be nil.
func NewRegistry(onReady ReadyFunc) *Registry {
	return &Registry{
		byPK:    make(map[string]*Session),
		onReady: onReady,
	}
}

// Insert admits a Ready session keyed by its remote public key. It
// fails with ErrRegistryFull at capacity and ErrNotReady if s has not
// completed its handshake. On success, s's OnClose is wired to
// automatically remove it from the registry, and onReady (if set)
// fires before Insert returns.
func (r *Registry) Insert(s *Session) error {
	if s.State() != StateReady {
		return ErrNotReady
	}

	r.mu.Lock()
	if _, exists := r.byPK[s.RemotePKHex()]; exists {
		r.mu.Unlock()
		// Replacing an existing session (e.g. a reconnect) drops the
		// stale one from the map without closing it; if it closes later,
		// its OnClose removal finds the key mapped to the replacement and
		// leaves it in place.
		r.Remove(s.RemotePKHex())
		r.mu.Lock()
	}
	if len(r.byPK) >= MaxPeers {
		r.mu.Unlock()
		return ErrRegistryFull
	}
	r.byPK[s.RemotePKHex()] = s
	r.mu.Unlock()

	s.OnClose(func(closed *Session) {
		r.removeIfCurrent(closed)
	})

	if r.onReady != nil {
		r.onReady(s)
	}
	return nil
}

// removeIfCurrent deletes pk's entry only if it still points at s,
// so a superseded session's delayed close can't evict its replacement.
func (r *Registry) removeIfCurrent(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.byPK[s.RemotePKHex()]; ok && cur == s {
		delete(r.byPK, s.RemotePKHex())
	}
}

// Remove drops pk's session, if any, without closing it.
func (r *Registry) Remove(pkHex string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byPK, pkHex)
}

// Get returns the live session for pk, if any.
func (r *Registry) Get(pkHex string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byPK[pkHex]
	return s, ok
}

// Len returns the current number of registered sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byPK)
}

// All returns a snapshot slice of the currently registered sessions,
// safe to range over and send on without holding the registry lock.
func (r *Registry) All() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Session, 0, len(r.byPK))
	for _, s := range r.byPK {
		out = append(out, s)
	}
	return out
}

// CloseAll closes every registered session. Used on shutdown.
func (r *Registry) CloseAll() {
	for _, s := range r.All() {
		s.Close()
	}
}
