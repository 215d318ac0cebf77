package formspec

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Store holds the registries of every loaded spec keyed by spec name.
type Store struct {
	specs map[string]*Registry
}

// NewStore indexes already parsed specs. Spec names must be unique.
func NewStore(specs ...*Spec) (*Store, error) {
	store := &Store{specs: make(map[string]*Registry, len(specs))}
	for _, spec := range specs {
		if err := store.add(spec); err != nil {
			return nil, err
		}
	}
	return store, nil
}

func (s *Store) add(spec *Spec) error {
	if _, exists := s.specs[spec.Name]; exists {
		return fmt.Errorf("formspec: duplicate spec %q (file %s)", spec.Name, spec.Source)
	}
	registry, err := NewRegistry(spec)
	if err != nil {
		return err
	}
	s.specs[spec.Name] = registry
	return nil
}

// LoadFS walks fsys and parses every JSON or YAML file as a spec. A nil
// filesystem yields an empty store.
func LoadFS(fsys fs.FS) (*Store, error) {
	store := &Store{specs: make(map[string]*Registry)}
	if fsys == nil {
		return store, nil
	}

	err := fs.WalkDir(fsys, ".", func(path string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if entry.IsDir() || !isSpecFile(path) {
			return nil
		}

		data, err := fs.ReadFile(fsys, path)
		if err != nil {
			return fmt.Errorf("formspec: read %s: %w", path, err)
		}
		spec, err := Parse(data, path)
		if err != nil {
			return err
		}
		return store.add(spec)
	})
	if err != nil {
		return nil, err
	}
	return store, nil
}

// LoadDir loads every spec below dir.
func LoadDir(dir string) (*Store, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("formspec: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("formspec: %s is not a directory", dir)
	}
	return LoadFS(os.DirFS(dir))
}

// Spec returns the registry of a spec by name.
func (s *Store) Spec(name string) (*Registry, error) {
	if s != nil {
		if registry, ok := s.specs[name]; ok {
			return registry, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrSpecNotFound, name)
}

// Names returns the loaded spec names in sorted order.
func (s *Store) Names() []string {
	if s == nil {
		return nil
	}
	names := make([]string, 0, len(s.specs))
	for name := range s.specs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Empty reports whether the store holds any specs.
func (s *Store) Empty() bool {
	return s == nil || len(s.specs) == 0
}

func isSpecFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".yaml", ".yml":
		return true
	default:
		return false
	}
}
