package keys

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

var (
	ErrKeyPathMissing = errors.New("key path not present in value")
	ErrNotStampable   = errors.New("key cannot be stored in value")
)

// Extract derives a key from value using path. A single path yields a
// scalar key, several paths yield an array key in path order. Each path is
// a dotted field path into nested maps.
func Extract(value any, path []string) (Key, error) {
	if len(path) == 0 {
		return Key{}, fmt.Errorf("%w: empty key path", ErrKeyPathMissing)
	}
	if len(path) == 1 {
		return extractOne(value, path[0])
	}
	parts := make([]Key, len(path))
	for i, p := range path {
		k, err := extractOne(value, p)
		if err != nil {
			return Key{}, err
		}
		parts[i] = k
	}
	return Key{kind: KindArray, arr: parts}, nil
}

// ExtractEach is Extract for multi-entry indexes over a single path. An
// array value yields each of its distinct valid elements in key order,
// skipping elements that are not keys; any other value yields one key.
func ExtractEach(value any, path string) ([]Key, error) {
	cur, err := lookup(value, path)
	if err != nil {
		return nil, err
	}
	arr, ok := cur.([]any)
	if !ok {
		k, err := FromValue(cur)
		if err != nil {
			return nil, err
		}
		return []Key{k}, nil
	}
	out := make([]Key, 0, len(arr))
	for _, el := range arr {
		k, err := FromValue(el)
		if err != nil {
			continue
		}
		out = append(out, k)
	}
	slices.SortFunc(out, Compare)
	return slices.CompactFunc(out, Equal), nil
}

func extractOne(value any, path string) (Key, error) {
	cur, err := lookup(value, path)
	if err != nil {
		return Key{}, err
	}
	return FromValue(cur)
}

func lookup(value any, path string) (any, error) {
	cur := value
	for _, field := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrKeyPathMissing, path)
		}
		cur, ok = m[field]
		if !ok || cur == nil {
			return nil, fmt.Errorf("%w: %s", ErrKeyPathMissing, path)
		}
	}
	return cur, nil
}

// Stamp writes k into the key path fields of value that are not already
// set and returns the updated value. value must be a map; nested maps along
// a dotted path are copied, never mutated in place.
func Stamp(value any, path []string, k Key) (any, error) {
	m, ok := value.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: value is %T, not a map", ErrNotStampable, value)
	}
	parts := []Key{k}
	if len(path) > 1 {
		if k.kind != KindArray || len(k.arr) != len(path) {
			return nil, fmt.Errorf("%w: key %s does not match %d-part key path", ErrNotStampable, k, len(path))
		}
		parts = k.arr
	}
	out := m
	for i, p := range path {
		v, err := stampable(parts[i])
		if err != nil {
			return nil, err
		}
		out, err = stampOne(out, strings.Split(p, "."), v)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func stampOne(m map[string]any, fields []string, v any) (map[string]any, error) {
	out := make(map[string]any, len(m)+1)
	for k, x := range m {
		out[k] = x
	}
	head := fields[0]
	if len(fields) == 1 {
		if cur, ok := out[head]; !ok || cur == nil {
			out[head] = v
		}
		return out, nil
	}
	var child map[string]any
	switch c := out[head].(type) {
	case nil:
		child = map[string]any{}
	case map[string]any:
		child = c
	default:
		return nil, fmt.Errorf("%w: field %q is %T", ErrNotStampable, head, c)
	}
	nested, err := stampOne(child, fields[1:], v)
	if err != nil {
		return nil, err
	}
	out[head] = nested
	return out, nil
}

// stampable converts a key into a record-compatible value.
func stampable(k Key) (any, error) {
	switch k.kind {
	case KindNumber:
		return k.num, nil
	case KindString:
		return k.str, nil
	case KindArray:
		out := make([]any, len(k.arr))
		for i, p := range k.arr {
			v, err := stampable(p)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: %s key", ErrNotStampable, k.kind)
	}
}
