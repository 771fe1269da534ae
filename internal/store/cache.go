// Package store provides the in-memory status store shared by every component of
// the engine. It is the single owner of the canonical status records.
package store

import (
	"sort"
	"sync"

	"github.com/integrio/status-engine/internal/status"
)

// Cache is a concurrency-safe map of records keyed by GroupedKey.
// Stored values are never mutated in place; Put replaces the whole record.
type Cache[T any] struct {
	mu    sync.RWMutex
	items map[status.GroupedKey]T
}

// NewCache creates an empty cache
func NewCache[T any]() *Cache[T] {
	return &Cache[T]{items: make(map[status.GroupedKey]T)}
}

// Put stores the record, overwriting any previous value for the key
func (c *Cache[T]) Put(key status.GroupedKey, record T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = record
}

// Get returns the record for the key and whether it was present
func (c *Cache[T]) Get(key status.GroupedKey) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	record, ok := c.items[key]
	return record, ok
}

// Delete removes the record and reports whether it was present
func (c *Cache[T]) Delete(key status.GroupedKey) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.items[key]
	delete(c.items, key)
	return ok
}

// Update performs an atomic read-modify-write on a single key. fn receives the
// current record (zero value when absent) and returns the record to store and
// whether to keep it. Returning false removes the key.
func (c *Cache[T]) Update(key status.GroupedKey, fn func(current T, exists bool) (T, bool)) T {
	c.mu.Lock()
	defer c.mu.Unlock()
	current, exists := c.items[key]
	next, keep := fn(current, exists)
	if keep {
		c.items[key] = next
	} else {
		delete(c.items, key)
	}
	return next
}

// ListByEnvironment returns every record of the environment, ordered by key
func (c *Cache[T]) ListByEnvironment(env string) []T {
	return c.list(func(k status.GroupedKey) bool { return k.Environment == env })
}

// ListByProject returns the records of a project in an environment, ordered by key
func (c *Cache[T]) ListByProject(projectID, env string) []T {
	return c.list(func(k status.GroupedKey) bool {
		return k.ProjectID == projectID && k.Environment == env
	})
}

// FindByName looks a record up by environment and resource name. Cluster deletion
// notifications only carry the resource name, so the project part of the key is
// recovered from the store.
func (c *Cache[T]) FindByName(env, name string) (status.GroupedKey, T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for k, v := range c.items {
		if k.Environment == env && k.Name == name {
			return k, v, true
		}
	}
	var zero T
	return status.GroupedKey{}, zero, false
}

// Keys returns the keys of an environment, ordered
func (c *Cache[T]) Keys(env string) []status.GroupedKey {
	c.mu.RLock()
	keys := make([]status.GroupedKey, 0, len(c.items))
	for k := range c.items {
		if k.Environment == env {
			keys = append(keys, k)
		}
	}
	c.mu.RUnlock()
	sortKeys(keys)
	return keys
}

// Len returns the number of records
func (c *Cache[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

func (c *Cache[T]) list(match func(status.GroupedKey) bool) []T {
	c.mu.RLock()
	keys := make([]status.GroupedKey, 0, len(c.items))
	for k := range c.items {
		if match(k) {
			keys = append(keys, k)
		}
	}
	sortKeys(keys)
	out := make([]T, 0, len(keys))
	for _, k := range keys {
		out = append(out, c.items[k])
	}
	c.mu.RUnlock()
	return out
}

func sortKeys(keys []status.GroupedKey) {
	sort.Slice(keys, func(i, j int) bool {
		return keys[i].String() < keys[j].String()
	})
}
