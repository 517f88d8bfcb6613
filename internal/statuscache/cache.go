// Package statuscache implements the per-route, TTL-bounded,
// single-flight cache of server-list-ping responses keyed by
// (config_id, client_protocol_version), per spec.md §3/§4.E.
package statuscache

import (
	"container/list"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Key identifies one cache entry.
type Key struct {
	ConfigID        string
	ProtocolVersion int32
}

type entry struct {
	payload   string
	insertedAt time.Time
	elem       *list.Element
}

// Cache is a sharded-by-route, size-bounded, TTL-bounded cache with
// per-key single-flight: concurrent Get calls for a cold key invoke
// producer exactly once, and all callers observe the same result
// (spec.md §8: "For all parallel get_or_fill(k, p) calls with a cold key,
// p is invoked exactly once; all waiters observe the same payload").
//
// It is strictly per-route (one Cache instance per config_id) so that a
// reload of one route never pollutes another's entries.
type Cache struct {
	TTL        time.Duration
	MaxEntries int

	mu      sync.Mutex
	entries map[Key]*entry
	order   *list.List // lru-ish eviction order, front = most recently inserted

	group singleflight.Group
}

// New constructs a Cache with the given TTL and size bound.
func New(ttl time.Duration, maxEntries int) *Cache {
	return &Cache{
		TTL:        ttl,
		MaxEntries: maxEntries,
		entries:    map[Key]*entry{},
		order:      list.New(),
	}
}

// Producer returns the payload and possible error for a cold key.
type Producer func() (string, error)

// GetOrFill returns a non-expired entry for key, or invokes producer
// at-most-once per key concurrently; other callers wait on the in-flight
// producer's outcome. Producer failure propagates to all waiters and no
// entry is inserted.
func (c *Cache) GetOrFill(key Key, producer Producer) (string, error) {
	if payload, ok := c.get(key); ok {
		return payload, nil
	}

	sfKey := sfKeyFor(key)
	v, err, _ := c.group.Do(sfKey, func() (interface{}, error) {
		// Re-check: another goroutine's Do may have just inserted.
		if payload, ok := c.get(key); ok {
			return payload, nil
		}
		payload, err := producer()
		if err != nil {
			return "", err
		}
		c.insert(key, payload)
		return payload, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (c *Cache) get(key Key) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return "", false
	}
	if time.Since(e.insertedAt) > c.TTL {
		c.removeLocked(key, e)
		return "", false
	}
	return e.payload, true
}

func (c *Cache) insert(key Key, payload string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if old, ok := c.entries[key]; ok {
		c.removeLocked(key, old)
	}

	el := c.order.PushFront(key)
	c.entries[key] = &entry{payload: payload, insertedAt: time.Now(), elem: el}

	if c.MaxEntries > 0 {
		for len(c.entries) > c.MaxEntries {
			back := c.order.Back()
			if back == nil {
				break
			}
			oldestKey := back.Value.(Key)
			c.removeLocked(oldestKey, c.entries[oldestKey])
		}
	}
}

func (c *Cache) removeLocked(key Key, e *entry) {
	if e == nil {
		return
	}
	c.order.Remove(e.elem)
	delete(c.entries, key)
}

func sfKeyFor(k Key) string {
	return fmt.Sprintf("%s\x00%d", k.ConfigID, k.ProtocolVersion)
}
