package server

import (
	"sync"
	"time"

	"github.com/crimson-sun/apsdiag/internal/engine"
)

type entry struct {
	session  *engine.Session
	lastUsed time.Time
}

// registry holds open sessions. Idle sessions expire after ttl; when full,
// the least recently used session is evicted.
type registry struct {
	mu      sync.Mutex
	ttl     time.Duration
	max     int
	now     func() time.Time
	items   map[string]*entry
	onCount func(int)
}

func newRegistry(ttl time.Duration, max int, onCount func(int)) *registry {
	if onCount == nil {
		onCount = func(int) {}
	}
	return &registry{
		ttl:     ttl,
		max:     max,
		now:     time.Now,
		items:   make(map[string]*entry),
		onCount: onCount,
	}
}

// add stores sess and returns the IDs it evicted to make room.
func (r *registry) add(sess *engine.Session) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	evicted := r.pruneLocked(now)
	for len(r.items) >= r.max {
		var oldest string
		var oldestAt time.Time
		for id, e := range r.items {
			if oldest == "" || e.lastUsed.Before(oldestAt) {
				oldest, oldestAt = id, e.lastUsed
			}
		}
		delete(r.items, oldest)
		evicted = append(evicted, oldest)
	}
	r.items[sess.ID()] = &entry{session: sess, lastUsed: now}
	r.onCount(len(r.items))
	return evicted
}

func (r *registry) get(id string) (*engine.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if len(r.pruneLocked(now)) > 0 {
		r.onCount(len(r.items))
	}
	e, ok := r.items[id]
	if !ok {
		return nil, false
	}
	e.lastUsed = now
	return e.session, true
}

func (r *registry) remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[id]; !ok {
		return false
	}
	delete(r.items, id)
	r.onCount(len(r.items))
	return true
}

func (r *registry) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

func (r *registry) pruneLocked(now time.Time) []string {
	if r.ttl <= 0 {
		return nil
	}
	var expired []string
	for id, e := range r.items {
		if now.Sub(e.lastUsed) > r.ttl {
			delete(r.items, id)
			expired = append(expired, id)
		}
	}
	return expired
}
