package keys

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// Kind identifies the type of a Key. The numeric order of the kinds is the
// cross-type sort order.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindNumber
	KindDate
	KindString
	KindBinary
	KindArray
)

func (k Kind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindDate:
		return "date"
	case KindString:
		return "string"
	case KindBinary:
		return "binary"
	case KindArray:
		return "array"
	default:
		return "invalid"
	}
}

var ErrInvalidKey = errors.New("invalid key")

// Key identifies a record within a store. The zero Key means "no key".
type Key struct {
	kind Kind
	num  float64
	str  string
	bin  []byte
	date time.Time
	arr  []Key
}

// Number returns a number key. NaN is not a key and yields the invalid Key.
func Number(n float64) Key {
	if math.IsNaN(n) {
		return Key{}
	}
	return Key{kind: KindNumber, num: n}
}

func String(s string) Key { return Key{kind: KindString, str: s} }

func Date(t time.Time) Key { return Key{kind: KindDate, date: t} }

func Binary(b []byte) Key {
	c := make([]byte, len(b))
	copy(c, b)
	return Key{kind: KindBinary, bin: c}
}

func Array(parts ...Key) Key {
	c := make([]Key, len(parts))
	copy(c, parts)
	return Key{kind: KindArray, arr: c}
}

// FromValue converts a Go value into a Key. Integers and floats become
// numbers, time.Time a date, []byte binary, and slices become arrays.
func FromValue(v any) (Key, error) {
	switch x := v.(type) {
	case Key:
		if !x.Valid() {
			return Key{}, ErrInvalidKey
		}
		return x, nil
	case float64:
		if math.IsNaN(x) {
			return Key{}, fmt.Errorf("%w: NaN", ErrInvalidKey)
		}
		return Number(x), nil
	case float32:
		return FromValue(float64(x))
	case int:
		return Number(float64(x)), nil
	case int8:
		return Number(float64(x)), nil
	case int16:
		return Number(float64(x)), nil
	case int32:
		return Number(float64(x)), nil
	case int64:
		return Number(float64(x)), nil
	case uint:
		return Number(float64(x)), nil
	case uint8:
		return Number(float64(x)), nil
	case uint16:
		return Number(float64(x)), nil
	case uint32:
		return Number(float64(x)), nil
	case uint64:
		return Number(float64(x)), nil
	case string:
		return String(x), nil
	case time.Time:
		return Date(x), nil
	case []byte:
		return Binary(x), nil
	case []any:
		parts := make([]Key, len(x))
		for i, p := range x {
			k, err := FromValue(p)
			if err != nil {
				return Key{}, err
			}
			parts[i] = k
		}
		return Key{kind: KindArray, arr: parts}, nil
	case []string:
		parts := make([]Key, len(x))
		for i, p := range x {
			parts[i] = String(p)
		}
		return Key{kind: KindArray, arr: parts}, nil
	case []int:
		parts := make([]Key, len(x))
		for i, p := range x {
			parts[i] = Number(float64(p))
		}
		return Key{kind: KindArray, arr: parts}, nil
	case []float64:
		parts := make([]Key, len(x))
		for i, p := range x {
			k, err := FromValue(p)
			if err != nil {
				return Key{}, err
			}
			parts[i] = k
		}
		return Key{kind: KindArray, arr: parts}, nil
	default:
		return Key{}, fmt.Errorf("%w: unsupported type %T", ErrInvalidKey, v)
	}
}

// MustFromValue is FromValue for literals in tests and static tables.
func MustFromValue(v any) Key {
	k, err := FromValue(v)
	if err != nil {
		panic(err)
	}
	return k
}

func (k Key) Kind() Kind  { return k.kind }
func (k Key) Valid() bool { return k.kind != KindInvalid }

// Float returns the value of a number key.
func (k Key) Float() (float64, bool) {
	return k.num, k.kind == KindNumber
}

func (k Key) Len() int { return len(k.arr) }

// Parts returns the elements of an array key.
func (k Key) Parts() []Key {
	out := make([]Key, len(k.arr))
	copy(out, k.arr)
	return out
}

// Interface returns the key as a plain Go value: float64, time.Time,
// string, []byte or []any. The zero Key yields nil.
func (k Key) Interface() any {
	switch k.kind {
	case KindNumber:
		return k.num
	case KindDate:
		return k.date
	case KindString:
		return k.str
	case KindBinary:
		b := make([]byte, len(k.bin))
		copy(b, k.bin)
		return b
	case KindArray:
		out := make([]any, len(k.arr))
		for i, p := range k.arr {
			out[i] = p.Interface()
		}
		return out
	default:
		return nil
	}
}

// MarshalJSON renders the key as its plain value; the zero Key is null.
func (k Key) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.Interface())
}

// Compare orders keys: -1 if a < b, 0 if equal, +1 if a > b.
// Invalid keys sort before everything else.
func Compare(a, b Key) int {
	if a.kind != b.kind {
		if a.kind < b.kind {
			return -1
		}
		return 1
	}
	switch a.kind {
	case KindNumber:
		switch {
		case a.num < b.num:
			return -1
		case a.num > b.num:
			return 1
		}
		return 0
	case KindDate:
		return a.date.Compare(b.date)
	case KindString:
		return strings.Compare(a.str, b.str)
	case KindBinary:
		return bytes.Compare(a.bin, b.bin)
	case KindArray:
		for i := 0; i < len(a.arr) && i < len(b.arr); i++ {
			if c := Compare(a.arr[i], b.arr[i]); c != 0 {
				return c
			}
		}
		switch {
		case len(a.arr) < len(b.arr):
			return -1
		case len(a.arr) > len(b.arr):
			return 1
		}
		return 0
	}
	return 0
}

func Equal(a, b Key) bool { return Compare(a, b) == 0 }

func (k Key) String() string {
	switch k.kind {
	case KindNumber:
		return fmt.Sprintf("%g", k.num)
	case KindDate:
		return k.date.UTC().Format(time.RFC3339Nano)
	case KindString:
		return fmt.Sprintf("%q", k.str)
	case KindBinary:
		return fmt.Sprintf("0x%x", k.bin)
	case KindArray:
		parts := make([]string, len(k.arr))
		for i, p := range k.arr {
			parts[i] = p.String()
		}
		return "[" + strings.Join(parts, ",") + "]"
	default:
		return "<none>"
	}
}
