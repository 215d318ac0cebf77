// Package values holds form values keyed by dot-path and converts them to and
// from the nested objects hosts exchange.
package values

import (
	"sort"
	"strings"
)

// Map is a flat value map keyed by dot-path. Values are arbitrary JSON-like
// data; lists and attribute maps are stored whole under their path.
type Map map[string]any

// Get returns the value stored under path.
func (m Map) Get(path string) (any, bool) {
	v, ok := m[path]
	return v, ok
}

// Lookup implements visibility.Lookup.
func (m Map) Lookup(path string) (any, bool) {
	return m.Get(strings.TrimSpace(path))
}

// Has reports whether path is defined.
func (m Map) Has(path string) bool {
	_, ok := m[path]
	return ok
}

// Set stores value under path.
func (m Map) Set(path string, value any) {
	m[path] = value
}

// Delete removes path.
func (m Map) Delete(path string) {
	delete(m, path)
}

// Keys returns the defined paths in sorted order.
func (m Map) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clone returns a deep copy of m.
func (m Map) Clone() Map {
	out := make(Map, len(m))
	for k, v := range m {
		out[k] = DeepCopy(v)
	}
	return out
}

// DeepCopy copies nested maps and lists; other values are returned as is.
func DeepCopy(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		clone := make(map[string]any, len(typed))
		for k, v := range typed {
			clone[k] = DeepCopy(v)
		}
		return clone
	case []any:
		clone := make([]any, len(typed))
		for i, v := range typed {
			clone[i] = DeepCopy(v)
		}
		return clone
	case []string:
		return append([]string(nil), typed...)
	default:
		return typed
	}
}
