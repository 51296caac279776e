package update

import (
	"fmt"

	"hooked/internal/keys"
)

// Directive is one write in a batch. A nil Value deletes, either the record
// at Key or every record in Range. A non-nil Value is an upsert: without a
// Key it is inserted under the store's key discipline, with a Key it is
// merged into the existing record, or written as is when Replace is set.
type Directive struct {
	Value   any
	Key     keys.Key
	Range   *keys.Range
	Replace bool
}

// Put inserts value, keyed the way the store assigns keys.
func Put(value any) Directive { return Directive{Value: value} }

// Set merges value into the record at key.
func Set(key keys.Key, value any) Directive { return Directive{Value: value, Key: key} }

// Replace overwrites the record at key with value.
func Replace(key keys.Key, value any) Directive {
	return Directive{Value: value, Key: key, Replace: true}
}

func Delete(key keys.Key) Directive { return Directive{Key: key} }

func DeleteRange(r *keys.Range) Directive { return Directive{Range: r} }

func (d Directive) IsDelete() bool { return d.Value == nil }

func (d Directive) validate() error {
	if d.IsDelete() {
		if !d.Key.Valid() && d.Range == nil {
			return fmt.Errorf("%w: delete needs a key or a range", ErrInvalidDirective)
		}
		if d.Key.Valid() && d.Range != nil {
			return fmt.Errorf("%w: delete takes a key or a range, not both", ErrInvalidDirective)
		}
		return nil
	}
	if d.Range != nil {
		return fmt.Errorf("%w: range is only valid on deletes", ErrInvalidDirective)
	}
	return nil
}

func (d Directive) String() string {
	switch {
	case d.IsDelete() && d.Range != nil:
		return fmt.Sprintf("delete %s", d.Range)
	case d.IsDelete():
		return fmt.Sprintf("delete %s", d.Key)
	case !d.Key.Valid():
		return "put"
	case d.Replace:
		return fmt.Sprintf("replace %s", d.Key)
	default:
		return fmt.Sprintf("merge %s", d.Key)
	}
}
