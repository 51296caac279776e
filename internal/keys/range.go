package keys

import (
	"errors"
	"fmt"
)

var ErrInvalidRange = errors.New("invalid key range")

// Range bounds a cursor traversal. A zero Lower or Upper is open-ended.
type Range struct {
	Lower     Key
	Upper     Key
	LowerOpen bool
	UpperOpen bool
}

// Bound returns the range between lower and upper. lowerOpen and upperOpen
// exclude the respective endpoint.
func Bound(lower, upper Key, lowerOpen, upperOpen bool) (*Range, error) {
	if !lower.Valid() || !upper.Valid() {
		return nil, fmt.Errorf("%w: both bounds required", ErrInvalidRange)
	}
	c := Compare(lower, upper)
	if c > 0 {
		return nil, fmt.Errorf("%w: lower %s above upper %s", ErrInvalidRange, lower, upper)
	}
	if c == 0 && (lowerOpen || upperOpen) {
		return nil, fmt.Errorf("%w: empty open range at %s", ErrInvalidRange, lower)
	}
	return &Range{Lower: lower, Upper: upper, LowerOpen: lowerOpen, UpperOpen: upperOpen}, nil
}

// MustBound is Bound for known-good literals.
func MustBound(lower, upper Key, lowerOpen, upperOpen bool) *Range {
	r, err := Bound(lower, upper, lowerOpen, upperOpen)
	if err != nil {
		panic(err)
	}
	return r
}

func LowerBound(lower Key, open bool) *Range {
	return &Range{Lower: lower, LowerOpen: open}
}

func UpperBound(upper Key, open bool) *Range {
	return &Range{Upper: upper, UpperOpen: open}
}

func Only(k Key) *Range {
	return &Range{Lower: k, Upper: k}
}

// BelowLower reports whether k falls before the lower end of r.
func (r *Range) BelowLower(k Key) bool {
	if r == nil || !r.Lower.Valid() {
		return false
	}
	c := Compare(k, r.Lower)
	return c < 0 || (c == 0 && r.LowerOpen)
}

// AboveUpper reports whether k falls past the upper end of r.
func (r *Range) AboveUpper(k Key) bool {
	if r == nil || !r.Upper.Valid() {
		return false
	}
	c := Compare(k, r.Upper)
	return c > 0 || (c == 0 && r.UpperOpen)
}

// Includes reports whether k lies within r. A nil range includes every key.
func (r *Range) Includes(k Key) bool {
	return !r.BelowLower(k) && !r.AboveUpper(k)
}

func (r *Range) String() string {
	if r == nil {
		return "(*)"
	}
	lo, hi := "(", ")"
	if r.Lower.Valid() && !r.LowerOpen {
		lo = "["
	}
	if r.Upper.Valid() && !r.UpperOpen {
		hi = "]"
	}
	l, u := "-inf", "+inf"
	if r.Lower.Valid() {
		l = r.Lower.String()
	}
	if r.Upper.Valid() {
		u = r.Upper.String()
	}
	return lo + l + ", " + u + hi
}
