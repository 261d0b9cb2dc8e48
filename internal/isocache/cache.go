// Package isocache memoizes compiled artifacts by isomorphism class.
//
// Entries are keyed by iso.Key: lookups bucket by fingerprint and confirm with
// iso.Equal. Failed compilations are never stored, so a later request for the
// same class simply misses. Dropping an entry only forgets it; values already
// handed out stay usable by their holders.
package isocache

import (
	"container/list"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"staged/internal/iso"
	"staged/internal/trace"
)

// Policy bounds a cache. Zero fields disable the corresponding bound.
type Policy struct {
	IdleTimeout time.Duration
	MaxEntries  int
}

func (p Policy) String() string {
	idle, limit := "none", "unbounded"
	if p.IdleTimeout > 0 {
		idle = p.IdleTimeout.String()
	}
	if p.MaxEntries > 0 {
		limit = fmt.Sprint(p.MaxEntries)
	}
	return fmt.Sprintf("idle=%s max=%s", idle, limit)
}

// Stats is a snapshot of a cache's counters.
type Stats struct {
	Entries   int
	Hits      uint64
	Misses    uint64
	Inserts   uint64
	RaceLost  uint64
	Evictions uint64
}

type options struct {
	clock   clock.Clock
	metrics *Metrics
}

// Option configures a Cache.
type Option func(*options)

// WithClock replaces the wall clock, typically with clock.NewMock in tests.
func WithClock(c clock.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithMetrics makes the cache report to m under its name.
func WithMetrics(m *Metrics) Option {
	return func(o *options) { o.metrics = m }
}

type entry[V any] struct {
	key      iso.Key
	val      V
	lastUsed time.Time
	elem     *list.Element
}

// Cache maps isomorphism classes to values of type V. It is safe for
// concurrent use.
type Cache[V any] struct {
	name    string
	policy  Policy
	clock   clock.Clock
	metrics *Metrics

	mu      sync.Mutex
	buckets map[uint64][]*entry[V]
	lru     *list.List // front is most recently used
	stats   Stats
	closed  bool
}

// New creates an empty cache. name labels metrics and trace events.
func New[V any](name string, p Policy, opts ...Option) *Cache[V] {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.clock == nil {
		o.clock = clock.New()
	}
	return &Cache[V]{
		name:    name,
		policy:  p,
		clock:   o.clock,
		metrics: o.metrics,
		buckets: make(map[uint64][]*entry[V]),
		lru:     list.New(),
	}
}

// Name returns the cache name.
func (c *Cache[V]) Name() string { return c.name }

// Policy returns the bounds the cache was created with.
func (c *Cache[V]) Policy() Policy { return c.policy }

// Get returns the value stored for k's isomorphism class.
func (c *Cache[V]) Get(ctx context.Context, k iso.Key) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	if c.closed {
		return zero, false
	}
	now := c.clock.Now()
	c.expire(ctx, now)

	if e := c.find(k); e != nil {
		c.touch(e, now)
		c.stats.Hits++
		c.countLookup(LabelHit)
		trace.Point(ctx, trace.ScopeCache, "cache.hit", c.name+" "+k.String())
		return e.val, true
	}
	c.stats.Misses++
	c.countLookup(LabelMiss)
	trace.Point(ctx, trace.ScopeCache, "cache.miss", c.name+" "+k.String())
	return zero, false
}

// PutIfAbsent stores v unless an isomorphic key is already present. It returns
// the retained value and whether it was already there; on loaded the caller's
// v is not retained but stays valid for the caller.
func (c *Cache[V]) PutIfAbsent(ctx context.Context, k iso.Key, v V) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return v, false
	}
	now := c.clock.Now()
	c.expire(ctx, now)

	if e := c.find(k); e != nil {
		c.touch(e, now)
		c.stats.RaceLost++
		c.countInsert(LabelRaceLost)
		trace.Point(ctx, trace.ScopeCache, "cache.race-lost", c.name+" "+k.String())
		return e.val, true
	}

	e := &entry[V]{key: k, val: v, lastUsed: now}
	e.elem = c.lru.PushFront(e)
	c.buckets[k.Hash()] = append(c.buckets[k.Hash()], e)
	c.stats.Inserts++
	c.countInsert(LabelStored)

	for c.policy.MaxEntries > 0 && c.lru.Len() > c.policy.MaxEntries {
		c.evict(ctx, c.lru.Back().Value.(*entry[V]), ReasonCapacity)
	}
	c.updateGauge()
	return v, false
}

// Len returns the number of live entries, counting entries that are idle but
// not yet swept.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// Stats returns a snapshot of the counters.
func (c *Cache[V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	s.Entries = c.lru.Len()
	return s
}

// Purge drops every entry.
func (c *Cache[V]) Purge(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.purge(ctx)
}

// Close purges the cache and stops it from retaining new entries.
func (c *Cache[V]) Close(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.purge(ctx)
	c.closed = true
}

func (c *Cache[V]) purge(ctx context.Context) {
	for c.lru.Len() > 0 {
		c.evict(ctx, c.lru.Back().Value.(*entry[V]), ReasonPurge)
	}
	c.updateGauge()
}

func (c *Cache[V]) find(k iso.Key) *entry[V] {
	for _, e := range c.buckets[k.Hash()] {
		if iso.Equal(e.key, k) {
			return e
		}
	}
	return nil
}

func (c *Cache[V]) touch(e *entry[V], now time.Time) {
	e.lastUsed = now
	c.lru.MoveToFront(e.elem)
}

// expire sweeps idle entries from the back of the recency list. Touching
// moves an entry to the front, so the list is also ordered by lastUsed.
func (c *Cache[V]) expire(ctx context.Context, now time.Time) {
	if c.policy.IdleTimeout <= 0 {
		return
	}
	swept := false
	for back := c.lru.Back(); back != nil; back = c.lru.Back() {
		e := back.Value.(*entry[V])
		if now.Sub(e.lastUsed) < c.policy.IdleTimeout {
			break
		}
		c.evict(ctx, e, ReasonIdle)
		swept = true
	}
	if swept {
		c.updateGauge()
	}
}

func (c *Cache[V]) evict(ctx context.Context, e *entry[V], reason string) {
	c.lru.Remove(e.elem)
	h := e.key.Hash()
	bucket := c.buckets[h]
	for i, other := range bucket {
		if other == e {
			bucket = append(bucket[:i], bucket[i+1:]...)
			break
		}
	}
	if len(bucket) == 0 {
		delete(c.buckets, h)
	} else {
		c.buckets[h] = bucket
	}
	c.stats.Evictions++
	if c.metrics != nil {
		c.metrics.Evictions.WithLabelValues(c.name, reason).Inc()
	}
	trace.Point(ctx, trace.ScopeCache, "cache.evict", c.name+" "+reason+" "+e.key.String())
}

func (c *Cache[V]) countLookup(result string) {
	if c.metrics != nil {
		c.metrics.Lookups.WithLabelValues(c.name, result).Inc()
	}
}

func (c *Cache[V]) countInsert(result string) {
	if c.metrics != nil {
		c.metrics.Inserts.WithLabelValues(c.name, result).Inc()
	}
}

func (c *Cache[V]) updateGauge() {
	if c.metrics != nil {
		c.metrics.Entries.WithLabelValues(c.name).Set(float64(c.lru.Len()))
	}
}
