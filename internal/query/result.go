package query

import (
	"fmt"

	"hooked/internal/keys"
)

// Kind tells which shape a Result has.
type Kind uint8

const (
	// KindPending means the database is not open yet. It is not "no data".
	KindPending Kind = iota
	// KindNone is a point lookup that found nothing.
	KindNone
	// KindOne is a point lookup that found a record.
	KindOne
	// KindMany is a bulk or cursor read, possibly empty.
	KindMany
)

func (k Kind) String() string {
	switch k {
	case KindPending:
		return "pending"
	case KindNone:
		return "none"
	case KindOne:
		return "one"
	case KindMany:
		return "many"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Record is a value read from a store with the primary key it is filed
// under.
type Record struct {
	Key   keys.Key `json:"key"`
	Value any      `json:"value"`
}

// Result is the outcome of a read. WithKey reports whether the caller asked
// for keys alongside values; Items is always populated with both.
type Result struct {
	Kind    Kind
	WithKey bool
	Items   []Record
}

func pending() Result { return Result{Kind: KindPending} }

func (r Result) Pending() bool { return r.Kind == KindPending }

// One returns the record of a KindOne result.
func (r Result) One() (Record, bool) {
	if r.Kind != KindOne || len(r.Items) == 0 {
		return Record{}, false
	}
	return r.Items[0], true
}

// Value returns the value of a KindOne result, nil otherwise.
func (r Result) Value() any {
	rec, ok := r.One()
	if !ok {
		return nil
	}
	return rec.Value
}

// Values strips keys from the result items.
func (r Result) Values() []any {
	out := make([]any, len(r.Items))
	for i, it := range r.Items {
		out[i] = it.Value
	}
	return out
}

// Keys returns the primary keys of the result items in order.
func (r Result) Keys() []keys.Key {
	out := make([]keys.Key, len(r.Items))
	for i, it := range r.Items {
		out[i] = it.Key
	}
	return out
}

// Shape renders the result the way callers asked for it: nil for pending
// or none, a value or Record for one, a slice of values or Records for many.
func (r Result) Shape() any {
	switch r.Kind {
	case KindOne:
		if r.WithKey {
			return r.Items[0]
		}
		return r.Items[0].Value
	case KindMany:
		if r.WithKey {
			return r.Items
		}
		return r.Values()
	default:
		return nil
	}
}
