package bolt

import (
	"errors"
	"fmt"

	"hooked/internal/record"
	"hooked/internal/schema"
)

var errBadCatalog = errors.New("malformed catalog entry")

// Catalog entries reuse the record codec: a schema is stored as a map.
// Seed data is never persisted.
func encodeSchema(s schema.Store) ([]byte, error) {
	indexes := make([]any, len(s.Indexes))
	for i, ix := range s.Indexes {
		indexes[i] = map[string]any{
			"name":        ix.Name,
			"key_path":    stringsToAny(ix.KeyPath),
			"unique":      ix.Unique,
			"multi_entry": ix.MultiEntry,
		}
	}
	return record.Marshal(map[string]any{
		"name":           s.Name,
		"key_path":       stringsToAny(s.KeyPath),
		"auto_increment": s.AutoIncrement,
		"indexes":        indexes,
	})
}

func decodeSchema(data []byte) (schema.Store, error) {
	v, err := record.Unmarshal(data)
	if err != nil {
		return schema.Store{}, err
	}
	m, ok := v.(map[string]any)
	if !ok {
		return schema.Store{}, fmt.Errorf("%w: %T", errBadCatalog, v)
	}
	s := schema.Store{}
	s.Name, _ = m["name"].(string)
	s.AutoIncrement, _ = m["auto_increment"].(bool)
	if s.KeyPath, err = anyToStrings(m["key_path"]); err != nil {
		return schema.Store{}, err
	}
	raw, _ := m["indexes"].([]any)
	for _, r := range raw {
		im, ok := r.(map[string]any)
		if !ok {
			return schema.Store{}, fmt.Errorf("%w: index %T", errBadCatalog, r)
		}
		ix := schema.Index{}
		ix.Name, _ = im["name"].(string)
		ix.Unique, _ = im["unique"].(bool)
		ix.MultiEntry, _ = im["multi_entry"].(bool)
		if ix.KeyPath, err = anyToStrings(im["key_path"]); err != nil {
			return schema.Store{}, err
		}
		s.Indexes = append(s.Indexes, ix)
	}
	if s.Name == "" {
		return schema.Store{}, fmt.Errorf("%w: no name", errBadCatalog)
	}
	return s, nil
}

func stringsToAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

func anyToStrings(v any) ([]string, error) {
	if v == nil {
		return nil, nil
	}
	list, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: key path %T", errBadCatalog, v)
	}
	if len(list) == 0 {
		return nil, nil
	}
	out := make([]string, len(list))
	for i, x := range list {
		s, ok := x.(string)
		if !ok {
			return nil, fmt.Errorf("%w: key path element %T", errBadCatalog, x)
		}
		out[i] = s
	}
	return out, nil
}
