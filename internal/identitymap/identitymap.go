// Package identitymap implements the per-scope registry that guarantees one
// in-memory instance per row. A Map belongs to exactly one scope and is not
// safe for concurrent use; every scope starts with an empty map and clears
// it when the scope ends.
package identitymap

import (
	"sort"

	"guideresto/pkg/domain"
)

// Key identifies a row across entity kinds.
type Key struct {
	Type domain.EntityType
	ID   int64
}

// Map is keyed by (entity type, id). It has no eviction policy of its own.
type Map struct {
	entries map[Key]any
}

// New returns an empty map.
func New() *Map {
	return &Map{entries: make(map[Key]any)}
}

// Get returns the registered instance for (typ, id).
func (m *Map) Get(typ domain.EntityType, id int64) (any, bool) {
	v, ok := m.entries[Key{Type: typ, ID: id}]
	return v, ok
}

// Put registers instance under (typ, id), replacing any previous entry.
// Unpersisted instances (id zero) are ignored.
func (m *Map) Put(typ domain.EntityType, id int64, instance any) {
	if id == 0 || instance == nil {
		return
	}
	m.entries[Key{Type: typ, ID: id}] = instance
}

// Remove evicts (typ, id) and reports whether an entry existed.
func (m *Map) Remove(typ domain.EntityType, id int64) bool {
	k := Key{Type: typ, ID: id}
	if _, ok := m.entries[k]; !ok {
		return false
	}
	delete(m.entries, k)
	return true
}

// Clear drops every entry.
func (m *Map) Clear() {
	clear(m.entries)
}

// Len returns the number of registered instances.
func (m *Map) Len() int { return len(m.entries) }

// Keys returns the registered keys ordered by type then id.
func (m *Map) Keys() []Key {
	keys := make([]Key, 0, len(m.entries))
	for k := range m.entries {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Type != keys[j].Type {
			return keys[i].Type < keys[j].Type
		}
		return keys[i].ID < keys[j].ID
	})
	return keys
}

// Lookup is a typed Get. A registered value of another type is reported as absent.
func Lookup[T any](m *Map, typ domain.EntityType, id int64) (T, bool) {
	var zero T
	v, ok := m.Get(typ, id)
	if !ok {
		return zero, false
	}
	typed, ok := v.(T)
	if !ok {
		return zero, false
	}
	return typed, true
}

// Find returns the first registered instance of typ, in id order, for which
// match reports true. It lets lookups by a natural key consult the map
// before going to the store.
func Find[T any](m *Map, typ domain.EntityType, match func(T) bool) (T, bool) {
	var zero T
	for _, k := range m.Keys() {
		if k.Type != typ {
			continue
		}
		if typed, ok := m.entries[k].(T); ok && match(typed) {
			return typed, true
		}
	}
	return zero, false
}
