package values

import (
	"errors"
	"fmt"
	"strings"
)

// ErrPathConflict marks two paths that cannot coexist in one nested object,
// such as "a" holding a scalar while "a.b" is also set.
var ErrPathConflict = errors.New("values: path conflict")

// Expand converts a flat dot-path map into a nested object. Lists and map
// values stored under a path are copied as leaves. Keys are processed in
// sorted order so conflicts are reported deterministically.
func Expand(flat map[string]any) (map[string]any, error) {
	out := make(map[string]any)
	created := make(map[string]struct{})
	for _, path := range Map(flat).Keys() {
		if err := setPath(out, created, path, DeepCopy(flat[path])); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// setPath writes value under path. created records the intermediate objects
// Expand made itself; a map stored as a value is never descended into.
func setPath(root map[string]any, created map[string]struct{}, path string, value any) error {
	segments := strings.Split(path, ".")
	for _, segment := range segments {
		if segment == "" {
			return fmt.Errorf("values: invalid path %q", path)
		}
	}

	node := root
	for i, segment := range segments {
		if i == len(segments)-1 {
			if _, ok := node[segment]; ok {
				return fmt.Errorf("%w: %q is both a value and an object", ErrPathConflict, path)
			}
			node[segment] = value
			return nil
		}

		prefix := strings.Join(segments[:i+1], ".")
		next, ok := node[segment]
		if !ok {
			child := make(map[string]any)
			node[segment] = child
			created[prefix] = struct{}{}
			node = child
			continue
		}
		if _, own := created[prefix]; !own {
			return fmt.Errorf("%w: %q is a value but %q nests under it", ErrPathConflict, prefix, path)
		}
		node = next.(map[string]any)
	}
	return nil
}

// Flatten converts a nested object into a flat dot-path map. Non-empty maps
// are traversed unless their path is listed in leaves; lists, scalars and
// empty maps become values. Flatten followed by Expand reproduces the input
// for objects whose keys contain no dots.
func Flatten(nested map[string]any, leaves ...string) Map {
	leafSet := make(map[string]struct{}, len(leaves))
	for _, leaf := range leaves {
		leafSet[leaf] = struct{}{}
	}
	out := make(Map)
	flatten("", nested, leafSet, out)
	return out
}

func flatten(prefix string, node map[string]any, leaves map[string]struct{}, out Map) {
	for key, value := range node {
		path := key
		if prefix != "" {
			path = prefix + "." + key
		}
		child, isMap := value.(map[string]any)
		if !isMap || len(child) == 0 {
			out[path] = DeepCopy(value)
			continue
		}
		if _, leaf := leaves[path]; leaf {
			out[path] = DeepCopy(value)
			continue
		}
		flatten(path, child, leaves, out)
	}
}
