// Package cache provides an explicit expiring cache owned by whichever
// component composes the application. Instances are passed to consumers;
// there are no package-level globals.
package cache

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Cache is a size-bounded cache whose entries expire after the TTL chosen at
// construction. Safe for concurrent use.
type Cache[K comparable, V any] struct {
	lru *expirable.LRU[K, V]
}

// New creates a cache holding at most size entries, each valid for ttl.
func New[K comparable, V any](size int, ttl time.Duration) *Cache[K, V] {
	return &Cache[K, V]{lru: expirable.NewLRU[K, V](size, nil, ttl)}
}

// Get returns the cached value, if present and unexpired.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	return c.lru.Get(key)
}

// Set stores the value under key, restarting its TTL.
func (c *Cache[K, V]) Set(key K, value V) {
	c.lru.Add(key, value)
}

// Delete drops a single entry.
func (c *Cache[K, V]) Delete(key K) {
	c.lru.Remove(key)
}

// Clear drops every entry.
func (c *Cache[K, V]) Clear() {
	c.lru.Purge()
}

// Len reports the number of live entries.
func (c *Cache[K, V]) Len() int {
	return c.lru.Len()
}
