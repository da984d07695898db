package wssession

import (
	"sync"
	"time"

	"github.com/pepnova9/wsnova/internal/expiring"
)

// Registry holds the ACTIVE (concurrent-safe) and PASSIVE (plain or
// expiring) session mappings, plus the single critical section the
// specification requires for identification to serialize reads/writes
// spanning both mappings.
type Registry struct {
	active sync.Map // id -> *Session

	passiveMu       sync.Mutex
	passivePlain    map[string]*Session
	passiveExpiring *expiring.Map
	passiveTTL      time.Duration

	identMu sync.Mutex
}

// RegistryOption configures a Registry at construction.
type RegistryOption func(*Registry)

// WithExpiringPassive enables PASSIVE retention with per-entry TTL,
// invoking onExpired (with the expired Session) when an entry's lifetime
// elapses.
func WithExpiringPassive(ttl time.Duration, onExpired func(*Session)) RegistryOption {
	return func(r *Registry) {
		r.passiveTTL = ttl
		r.passiveExpiring = expiring.New(expiring.WithExpiredHandler(func(key string, value any) {
			if onExpired != nil {
				onExpired(value.(*Session))
			}
		}))
	}
}

// NewRegistry constructs a Registry. Without WithExpiringPassive, PASSIVE
// retention (when used at all) is a plain, never-expiring map.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{passivePlain: make(map[string]*Session)}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ActiveGet looks up a session in ACTIVE.
func (r *Registry) ActiveGet(id string) (*Session, bool) {
	v, ok := r.active.Load(id)
	if !ok {
		return nil, false
	}
	return v.(*Session), true
}

// ActiveStore inserts or replaces a session in ACTIVE.
func (r *Registry) ActiveStore(id string, s *Session) { r.active.Store(id, s) }

// ActiveDelete removes a session from ACTIVE.
func (r *Registry) ActiveDelete(id string) { r.active.Delete(id) }

// ActiveIDs returns a snapshot of every id currently in ACTIVE.
func (r *Registry) ActiveIDs() []string {
	var ids []string
	r.active.Range(func(k, _ any) bool {
		ids = append(ids, k.(string))
		return true
	})
	return ids
}

// ActiveCount returns the number of sessions currently in ACTIVE.
func (r *Registry) ActiveCount() int {
	n := 0
	r.active.Range(func(_, _ any) bool { n++; return true })
	return n
}

// ActiveSnapshot returns every (id, session) pair currently in ACTIVE.
func (r *Registry) ActiveSnapshot() map[string]*Session {
	out := make(map[string]*Session)
	r.active.Range(func(k, v any) bool {
		out[k.(string)] = v.(*Session)
		return true
	})
	return out
}

// PassiveGet looks up a session in PASSIVE.
func (r *Registry) PassiveGet(id string) (*Session, bool) {
	r.passiveMu.Lock()
	defer r.passiveMu.Unlock()
	if r.passiveExpiring != nil {
		v, ok := r.passiveExpiring.Get(id)
		if !ok {
			return nil, false
		}
		return v.(*Session), true
	}
	s, ok := r.passivePlain[id]
	return s, ok
}

// PassivePut inserts a session into PASSIVE, scheduling its expiry if the
// registry was configured with WithExpiringPassive.
func (r *Registry) PassivePut(id string, s *Session) {
	r.passiveMu.Lock()
	defer r.passiveMu.Unlock()
	if r.passiveExpiring != nil {
		r.passiveExpiring.Put(id, s, r.passiveTTL)
		return
	}
	r.passivePlain[id] = s
}

// PassiveRemove removes a session from PASSIVE, if present.
func (r *Registry) PassiveRemove(id string) {
	r.passiveMu.Lock()
	defer r.passiveMu.Unlock()
	if r.passiveExpiring != nil {
		r.passiveExpiring.Remove(id)
		return
	}
	delete(r.passivePlain, id)
}

// Identify runs fn under the single process-wide monitor the
// specification requires for the combined read-modify-write over
// ACTIVE ∪ PASSIVE during client identification.
func (r *Registry) Identify(fn func()) {
	r.identMu.Lock()
	defer r.identMu.Unlock()
	fn()
}
