// Package schema describes object stores and their indexes: the key
// discipline of each store and the secondary orderings over it.
package schema

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

var ErrInvalid = errors.New("invalid schema")

// Index is a named secondary ordering over a store.
type Index struct {
	Name    string   `toml:"name" json:"name"`
	KeyPath []string `toml:"key_path" json:"key_path"`
	Unique  bool     `toml:"unique" json:"unique,omitempty"`
	// MultiEntry files a record once per element when the key path holds
	// an array. It needs a single key path.
	MultiEntry bool `toml:"multi_entry" json:"multi_entry,omitempty"`
}

// Store is the definition of one object store. An empty KeyPath means
// out-of-line keys supplied by the caller (or generated when AutoIncrement
// is set).
type Store struct {
	Name          string   `toml:"name"`
	KeyPath       []string `toml:"key_path"`
	AutoIncrement bool     `toml:"auto_increment"`
	Indexes       []Index  `toml:"indexes"`
	// Data is seeded into the store whenever the schema is (re)applied.
	Data []any `toml:"data"`
}

// Inline reports whether keys are derived from record fields.
func (s Store) Inline() bool { return len(s.KeyPath) > 0 }

// Compound reports whether keys are tuples of several fields.
func (s Store) Compound() bool { return len(s.KeyPath) > 1 }

func (s Store) Index(name string) (Index, bool) {
	for _, ix := range s.Indexes {
		if ix.Name == name {
			return ix, true
		}
	}
	return Index{}, false
}

// SameDiscipline reports whether two definitions agree on how keys are
// assigned. Indexes and seed data may change between versions; the key
// discipline may not.
func (s Store) SameDiscipline(o Store) bool {
	return s.AutoIncrement == o.AutoIncrement && slices.Equal(s.KeyPath, o.KeyPath)
}

// Validate checks a single store definition.
func (s Store) Validate() error {
	var errs []error
	if strings.TrimSpace(s.Name) == "" {
		errs = append(errs, fmt.Errorf("%w: store name is empty", ErrInvalid))
	}
	if strings.HasPrefix(s.Name, "_") {
		errs = append(errs, fmt.Errorf("%w: store %q: names starting with '_' are reserved", ErrInvalid, s.Name))
	}
	if err := validatePath(s.KeyPath); err != nil {
		errs = append(errs, fmt.Errorf("%w: store %q key path: %v", ErrInvalid, s.Name, err))
	}
	if s.AutoIncrement && s.Compound() {
		errs = append(errs, fmt.Errorf("%w: store %q: auto_increment requires a single-field key path", ErrInvalid, s.Name))
	}
	if len(s.Data) > 0 && !s.Inline() && !s.AutoIncrement {
		errs = append(errs, fmt.Errorf("%w: store %q: seed data needs inline or generated keys", ErrInvalid, s.Name))
	}
	seen := make(map[string]bool)
	for _, ix := range s.Indexes {
		if ix.Name == "" {
			errs = append(errs, fmt.Errorf("%w: store %q: index name is empty", ErrInvalid, s.Name))
		}
		if seen[ix.Name] {
			errs = append(errs, fmt.Errorf("%w: store %q: duplicate index %q", ErrInvalid, s.Name, ix.Name))
		}
		seen[ix.Name] = true
		if len(ix.KeyPath) == 0 {
			errs = append(errs, fmt.Errorf("%w: store %q index %q: key path is empty", ErrInvalid, s.Name, ix.Name))
		} else if err := validatePath(ix.KeyPath); err != nil {
			errs = append(errs, fmt.Errorf("%w: store %q index %q: %v", ErrInvalid, s.Name, ix.Name, err))
		}
		if ix.MultiEntry && len(ix.KeyPath) > 1 {
			errs = append(errs, fmt.Errorf("%w: store %q index %q: multi_entry needs a single key path", ErrInvalid, s.Name, ix.Name))
		}
	}
	return errors.Join(errs...)
}

// Validate checks a set of store definitions, including name collisions.
func Validate(stores []Store) error {
	var errs []error
	seen := make(map[string]bool)
	for _, s := range stores {
		if seen[s.Name] {
			errs = append(errs, fmt.Errorf("%w: duplicate store %q", ErrInvalid, s.Name))
		}
		seen[s.Name] = true
		if err := s.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// FormatPath renders a key path the way it is written in configuration:
// a bare field for single paths, a bracketed list for compound ones.
func FormatPath(path []string) string {
	if len(path) == 1 {
		return path[0]
	}
	return "[" + strings.Join(path, ", ") + "]"
}

func validatePath(path []string) error {
	for _, p := range path {
		if p == "" {
			return errors.New("empty field path")
		}
		for _, f := range strings.Split(p, ".") {
			if f == "" {
				return fmt.Errorf("malformed field path %q", p)
			}
		}
	}
	return nil
}
