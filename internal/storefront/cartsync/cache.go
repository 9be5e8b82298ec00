// internal/storefront/cartsync/cache.go
package cartsync

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/your-org/storefront/internal/domain/cart"
)

// ErrSuperseded is returned by Fetch when a newer fetch or a mutation
// replaced it before it completed
var ErrSuperseded = errors.New("cart read superseded")

// LoadFunc reads the server cart for key
type LoadFunc func(ctx context.Context, key Key) (*cart.View, error)

// Snapshot is the encoded cache value of one key at a point in time
type Snapshot struct {
	present bool
	data    []byte
}

// Present reports whether the key had a cached value
func (s Snapshot) Present() bool { return s.present }

// Bytes returns the encoded cart
func (s Snapshot) Bytes() []byte { return s.data }

type entry struct {
	data      []byte // encoded *cart.View; nil until first fetch
	stale     bool
	gen       uint64
	cancel    context.CancelFunc
	refetch   *time.Timer
	fetchedAt time.Time
}

// QueryCache holds the last known server cart per key. It is the only
// place cart reads are stored; callers get decoded copies.
type QueryCache struct {
	mu      sync.Mutex
	entries map[Key]*entry
	load    LoadFunc
	log     logrus.FieldLogger
	now     func() time.Time
}

// NewQueryCache creates a cache reading through load
func NewQueryCache(load LoadFunc, log logrus.FieldLogger) *QueryCache {
	return &QueryCache{
		entries: map[Key]*entry{},
		load:    load,
		log:     log,
		now:     time.Now,
	}
}

// Get returns the cached cart, fetching it when missing or stale
func (c *QueryCache) Get(ctx context.Context, key Key) (*cart.View, error) {
	c.mu.Lock()
	e := c.entries[key]
	if e != nil && e.data != nil && !e.stale {
		data := e.data
		c.mu.Unlock()
		return decode(data)
	}
	c.mu.Unlock()

	return c.Fetch(ctx, key)
}

// Peek returns the cached cart without fetching
func (c *QueryCache) Peek(key Key) (*cart.View, bool) {
	c.mu.Lock()
	e := c.entries[key]
	if e == nil || e.data == nil {
		c.mu.Unlock()
		return nil, false
	}
	data := e.data
	c.mu.Unlock()

	view, err := decode(data)
	if err != nil {
		return nil, false
	}
	return view, true
}

// Fetch reads the cart from the server and stores it. Starting a fetch
// cancels the previous in-flight one for the key; a fetch that was
// cancelled or superseded does not write the cache.
func (c *QueryCache) Fetch(ctx context.Context, key Key) (*cart.View, error) {
	c.mu.Lock()
	e := c.entry(key)
	if e.cancel != nil {
		e.cancel()
	}
	e.gen++
	gen := e.gen
	fetchCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	c.mu.Unlock()
	defer cancel()

	view, err := c.load(fetchCtx, key)

	c.mu.Lock()
	defer c.mu.Unlock()

	current := c.entries[key]
	if current != e || e.gen != gen {
		return nil, fmt.Errorf("fetch %s: %w", key, ErrSuperseded)
	}
	e.cancel = nil
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(view)
	if err != nil {
		return nil, fmt.Errorf("failed to encode cart: %w", err)
	}
	e.data = data
	e.stale = false
	e.fetchedAt = c.now()
	return view, nil
}

// Cancel aborts the in-flight read for key; its result is discarded
func (c *QueryCache) Cancel(key Key) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := c.entries[key]
	if e == nil {
		return
	}
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	e.gen++
}

// Snapshot captures the cached value of key
func (c *QueryCache) Snapshot(key Key) Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := c.entries[key]
	if e == nil || e.data == nil {
		return Snapshot{}
	}
	return Snapshot{present: true, data: bytes.Clone(e.data)}
}

// Restore puts snap back as the cached value of key and marks it stale,
// so the next read goes to the server
func (c *QueryCache) Restore(key Key, snap Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := c.entry(key)
	e.gen++
	if snap.present {
		e.data = bytes.Clone(snap.data)
	} else {
		e.data = nil
	}
	e.stale = true
}

// Mutate applies fn to the cached cart of key. It is a no-op when nothing
// is cached.
func (c *QueryCache) Mutate(key Key, fn func(*cart.View)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := c.entries[key]
	if e == nil || e.data == nil {
		return nil
	}
	view, err := decode(e.data)
	if err != nil {
		return err
	}
	fn(view)
	data, err := json.Marshal(view)
	if err != nil {
		return fmt.Errorf("failed to encode cart: %w", err)
	}
	e.data = data
	return nil
}

// Invalidate marks key stale and refetches it now. On failure the stale
// value is kept and the error returned.
func (c *QueryCache) Invalidate(ctx context.Context, key Key) error {
	c.mu.Lock()
	e := c.entry(key)
	e.stale = true
	c.mu.Unlock()

	if _, err := c.Fetch(ctx, key); err != nil {
		c.log.WithError(err).WithField("cart_key", key).Warn("cart refetch failed")
		return err
	}
	return nil
}

// ScheduleRefetch invalidates key after delay, replacing any refetch
// already scheduled for it
func (c *QueryCache) ScheduleRefetch(key Key, delay time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := c.entry(key)
	e.stale = true
	if e.refetch != nil {
		e.refetch.Stop()
	}
	var timer *time.Timer
	timer = time.AfterFunc(delay, func() {
		c.mu.Lock()
		if cur := c.entries[key]; cur == nil || cur.refetch != timer {
			c.mu.Unlock()
			return
		}
		e.refetch = nil
		c.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		_ = c.Invalidate(ctx, key)
	})
	e.refetch = timer
}

// RefetchScheduled reports whether a delayed refetch is pending for key
func (c *QueryCache) RefetchScheduled(key Key) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.entries[key]
	return e != nil && e.refetch != nil
}

// Stale reports whether key must be refetched before it is trusted
func (c *QueryCache) Stale(key Key) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.entries[key]
	return e == nil || e.data == nil || e.stale
}

// Remove drops key, cancelling its reads and refetches
func (c *QueryCache) Remove(key Key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e := c.entries[key]; e != nil {
		e.stop()
		delete(c.entries, key)
	}
}

// Reset drops every key
func (c *QueryCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, e := range c.entries {
		e.stop()
		delete(c.entries, key)
	}
}

func (c *QueryCache) entry(key Key) *entry {
	e := c.entries[key]
	if e == nil {
		e = &entry{}
		c.entries[key] = e
	}
	return e
}

func (e *entry) stop() {
	if e.cancel != nil {
		e.cancel()
	}
	if e.refetch != nil {
		e.refetch.Stop()
	}
	e.gen++
}

func decode(data []byte) (*cart.View, error) {
	var view cart.View
	if err := json.Unmarshal(data, &view); err != nil {
		return nil, fmt.Errorf("failed to decode cart: %w", err)
	}
	return &view, nil
}
