// Package schemacache remembers which optional columns exist in the
// currently deployed backend schema. Backend migrations roll out
// independently of client deploys, so a column the client wants to write
// may not exist yet; once a write fails because of a missing column the
// fact is cached for the rest of the process so later writes can drop the
// field up front instead of paying the failure-and-retry cost again.
package schemacache

import (
	"fmt"
	"sync"
)

// State is the cached knowledge about one (table, field) pair
type State int

const (
	// Unknown means the field has never been observed either way
	Unknown State = iota
	// Present means a write including the field succeeded
	Present
	// Absent means the backend rejected the field; permanent for this process
	Absent
)

// String returns a human-readable state name
func (s State) String() string {
	switch s {
	case Present:
		return "present"
	case Absent:
		return "absent"
	default:
		return "unknown"
	}
}

// Cache is a process-scoped map of (table, field) -> State.
// Transitions are monotonic: Unknown -> Present or Unknown -> Absent,
// and Absent is never left. Safe for concurrent use.
type Cache struct {
	mu     sync.RWMutex
	fields map[string]State
}

// New creates an empty cache
func New() *Cache {
	return &Cache{
		fields: make(map[string]State),
	}
}

// Get returns the cached state for a field, Unknown if never observed
func (c *Cache) Get(table, field string) State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.fields[key(table, field)]
}

// MarkAbsent records that the backend has no such column.
// The transition is permanent for the life of the cache.
func (c *Cache) MarkAbsent(table, field string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fields[key(table, field)] = Absent
}

// MarkPresent records that a write including the field succeeded.
// Informational only: it avoids speculative removal of fields that do
// exist. A field already marked Absent stays Absent.
func (c *Cache) MarkPresent(table, field string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	k := key(table, field)
	if c.fields[k] == Absent {
		return
	}
	c.fields[k] = Present
}

// Reset clears all cached observations. Intended for tests.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fields = make(map[string]State)
}

// Len returns the number of observed fields
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.fields)
}

func key(table, field string) string {
	return fmt.Sprintf("%s.%s", table, field)
}
