package visibility

import "strings"

// ExtrasPrefix routes a lookup to Context.Extras.
const ExtrasPrefix = "extras."

// Lookup resolves a parameter name to its current value.
type Lookup interface {
	Lookup(param string) (any, bool)
}

// LookupFunc adapts a function into a Lookup.
type LookupFunc func(param string) (any, bool)

// Lookup delegates to the underlying function.
func (fn LookupFunc) Lookup(param string) (any, bool) {
	return fn(param)
}

// Context provides the values a predicate is evaluated against. Values holds
// form values keyed by dot-path (nested maps are traversed as well) while
// Extras carries host supplied data such as roles or feature flags, reachable
// through the `extras.` prefix.
type Context struct {
	Values map[string]any
	Extras map[string]any
}

// Lookup implements Lookup.
func (c Context) Lookup(param string) (any, bool) {
	key := strings.TrimSpace(param)
	if key == "" {
		return nil, false
	}
	if strings.HasPrefix(strings.ToLower(key), ExtrasPrefix) {
		return lookupMap(c.Extras, strings.TrimSpace(key[len(ExtrasPrefix):]))
	}
	return lookupMap(c.Values, key)
}

func lookupMap(values map[string]any, path string) (any, bool) {
	if len(values) == 0 || path == "" {
		return nil, false
	}

	// exact dotted keys win over traversal
	if v, ok := values[path]; ok {
		return v, true
	}

	var current any = values
	for _, part := range strings.Split(path, ".") {
		if part == "" {
			return nil, false
		}
		switch typed := current.(type) {
		case map[string]any:
			next, ok := typed[part]
			if !ok {
				return nil, false
			}
			current = next
		case map[string]string:
			next, ok := typed[part]
			if !ok {
				return nil, false
			}
			current = next
		default:
			return nil, false
		}
	}
	return current, true
}
