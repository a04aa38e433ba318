// Package cache memoizes expensive computations in a bounded LRU and
// collapses concurrent computations of the same key into one.
package cache

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/singleflight"
)

// DefaultCapacity is the number of distinct keys kept when none is configured.
const DefaultCapacity = 1000

// Cache is a concurrency-safe memoizing cache. Only successful computations
// are stored; errors reach every waiting caller and are then forgotten.
type Cache[V any] struct {
	entries *lru.Cache[string, V]
	group   singleflight.Group
	total   *prometheus.CounterVec
}

// New creates a cache holding at most capacity keys.
// total is a counter vec with label "result", passed explicitly; it may be nil.
func New[V any](capacity int, total *prometheus.CounterVec) (*Cache[V], error) {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	c := &Cache[V]{total: total}
	entries, err := lru.NewWithEvict[string, V](capacity, func(string, V) { c.inc("evicted") })
	if err != nil {
		return nil, fmt.Errorf("create lru: %w", err)
	}
	c.entries = entries
	return c, nil
}

// GetOrCompute returns the cached value for key, computing it at most once
// across concurrent callers. compute runs detached from ctx: a caller that
// gives up gets ctx.Err(), while the computation finishes and is cached for
// whoever asks next.
func (c *Cache[V]) GetOrCompute(
	ctx context.Context, key string, compute func(context.Context) (V, error),
) (V, error) {
	if v, ok := c.entries.Get(key); ok {
		c.inc("hit")
		return v, nil
	}
	c.inc("miss")

	detached := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (any, error) {
		// A flight that finished between our lookup and DoChan leaves its value here.
		if v, ok := c.entries.Peek(key); ok {
			return v, nil
		}
		v, err := compute(detached)
		if err != nil {
			return nil, err
		}
		c.entries.Add(key, v)
		return v, nil
	})

	var zero V
	select {
	case <-ctx.Done():
		return zero, fmt.Errorf("wait for %q: %w", key, ctx.Err())
	case res := <-ch:
		if res.Shared {
			c.inc("shared")
		}
		if res.Err != nil {
			return zero, res.Err //nolint:wrapcheck // caller's own error, returned as is
		}
		v, _ := res.Val.(V)
		return v, nil
	}
}

// Contains reports whether key holds a completed value, without touching recency.
func (c *Cache[V]) Contains(key string) bool {
	return c.entries.Contains(key)
}

// Len returns the number of cached keys.
func (c *Cache[V]) Len() int {
	return c.entries.Len()
}

func (c *Cache[V]) inc(result string) {
	if c.total != nil {
		c.total.WithLabelValues(result).Inc()
	}
}
