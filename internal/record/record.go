// Package record handles the values stored in object stores: JSON-like
// trees of nil, bool, float64, string, []any and map[string]any.
package record

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

var ErrUnsupported = errors.New("unsupported record value")

// Normalize converts v into its canonical record form. Integers become
// float64 and all maps and slices are freshly allocated, so the result
// never aliases the caller's value.
func Normalize(v any) (any, error) {
	pv, err := structpb.NewValue(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupported, err)
	}
	return pv.AsInterface(), nil
}

// Marshal encodes a record for storage.
func Marshal(v any) ([]byte, error) {
	pv, err := structpb.NewValue(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupported, err)
	}
	data, err := proto.Marshal(pv)
	if err != nil {
		return nil, fmt.Errorf("marshal record: %w", err)
	}
	return data, nil
}

// Unmarshal decodes a stored record.
func Unmarshal(data []byte) (any, error) {
	var pv structpb.Value
	if err := proto.Unmarshal(data, &pv); err != nil {
		return nil, fmt.Errorf("unmarshal record: %w", err)
	}
	return pv.AsInterface(), nil
}

// IsComposite reports whether v is a keyed-field structure. Arrays are
// atomic values, not composites.
func IsComposite(v any) bool {
	_, ok := v.(map[string]any)
	return ok
}

// Merge shallow-merges patch over base when both are composites: fields in
// patch overwrite, fields only in base are kept. Otherwise patch replaces
// base entirely.
func Merge(base, patch any) any {
	b, okB := base.(map[string]any)
	p, okP := patch.(map[string]any)
	if !okB || !okP {
		return patch
	}
	out := make(map[string]any, len(b)+len(p))
	for k, v := range b {
		out[k] = v
	}
	for k, v := range p {
		out[k] = v
	}
	return out
}
