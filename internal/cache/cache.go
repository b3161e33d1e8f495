package cache

import (
	"sync"
	"time"
)

// TTL is a process-local map whose entries expire ttl after they were set.
type TTL[V any] struct {
	mu  sync.RWMutex
	ttl time.Duration
	m   map[string]entry[V]
	now func() time.Time
}

type entry[V any] struct {
	val V
	exp time.Time
}

func NewTTL[V any](ttl time.Duration) *TTL[V] {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}

	return &TTL[V]{
		ttl: ttl,
		m:   make(map[string]entry[V]),
		now: time.Now,
	}
}

func (c *TTL[V]) Get(key string) (V, bool) {
	now := c.now()
	c.mu.RLock()
	e, ok := c.m[key]
	c.mu.RUnlock()
	if !ok {
		var zero V
		return zero, false
	}

	if now.After(e.exp) {
		c.mu.Lock()
		// re-check: a Set may have landed between the two locks
		if cur, ok := c.m[key]; ok && now.After(cur.exp) {
			delete(c.m, key)
		}
		c.mu.Unlock()
		var zero V
		return zero, false
	}

	return e.val, true
}

func (c *TTL[V]) Set(key string, val V) {
	c.mu.Lock()
	c.m[key] = entry[V]{val: val, exp: c.now().Add(c.ttl)}
	c.mu.Unlock()
}

// SetIf stores val unless a live entry exists for which replace returns
// false. It reports whether val was stored.
func (c *TTL[V]) SetIf(key string, val V, replace func(cur V) bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if cur, ok := c.m[key]; ok && !now.After(cur.exp) && !replace(cur.val) {
		return false
	}
	c.m[key] = entry[V]{val: val, exp: now.Add(c.ttl)}
	return true
}

func (c *TTL[V]) Delete(key string) {
	c.mu.Lock()
	delete(c.m, key)
	c.mu.Unlock()
}

func (c *TTL[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.m)
}

func (c *TTL[V]) Clear() {
	c.mu.Lock()
	c.m = make(map[string]entry[V])
	c.mu.Unlock()
}
