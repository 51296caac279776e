package store

import (
	"errors"
	"fmt"

	"hooked/internal/keys"
	"hooked/internal/schema"
)

// Engine errors. Callers match them with errors.Is; the orchestrators pass
// them through without reinterpreting them.
var (
	ErrStoreNotFound = errors.New("object store not found")
	ErrIndexNotFound = errors.New("index not found")
	ErrConstraint    = errors.New("constraint violation")
	ErrData          = errors.New("data error")
	ErrReadOnly      = errors.New("transaction is read-only")
)

// Engine is a transactional, key-ordered object store with secondary
// indexes. The initial implementation uses bbolt; the interface allows
// swapping the backing engine without touching the orchestrators.
type Engine interface {
	// View runs fn in a read-only transaction.
	View(fn func(Tx) error) error
	// Update runs fn in a read-write transaction. Returning an error from fn
	// rolls back every change made in it.
	Update(fn func(Tx) error) error
	// Stores lists the names of all object stores.
	Stores() []string
	Close() error
}

type Tx interface {
	ObjectStore(name string) (ObjectStore, error)
	Writable() bool
}

// Entry is a record together with its primary key.
type Entry struct {
	Key   keys.Key
	Value any
}

type ObjectStore interface {
	Schema() schema.Store
	// Get returns the record at key; ok is false when there is none.
	Get(key keys.Key) (value any, ok bool, err error)
	// GetAll returns up to limit records (0 = all) in ascending key order.
	GetAll(r *keys.Range, limit int) ([]Entry, error)
	Count(r *keys.Range) (int, error)
	// Put inserts or overwrites a record and returns its key. key must be
	// the zero Key for inline stores.
	Put(value any, key keys.Key) (keys.Key, error)
	// Add is Put that fails with ErrConstraint if the key already exists.
	Add(value any, key keys.Key) (keys.Key, error)
	Delete(key keys.Key) error
	DeleteRange(r *keys.Range) error
	Clear() error
	OpenCursor(r *keys.Range, dir Direction) (Cursor, error)
	Index(name string) (Index, error)
}

type Index interface {
	Schema() schema.Index
	// Get returns the first record (lowest primary key) whose index key
	// equals key.
	Get(key keys.Key) (Entry, bool, error)
	Count(r *keys.Range) (int, error)
	OpenCursor(r *keys.Range, dir Direction) (Cursor, error)
}

// Cursor iterates records in key order. Call Next before reading the
// first position.
type Cursor interface {
	Next() bool
	// Key is the cursor's current key: the index key for index cursors,
	// the primary key otherwise.
	Key() keys.Key
	PrimaryKey() keys.Key
	Value() any
	Err() error
}

// Direction controls cursor traversal order and duplicate handling.
type Direction uint8

const (
	Next Direction = iota
	NextUnique
	Prev
	PrevUnique
)

func (d Direction) Reverse() bool { return d == Prev || d == PrevUnique }
func (d Direction) Unique() bool  { return d == NextUnique || d == PrevUnique }

func (d Direction) String() string {
	switch d {
	case Next:
		return "next"
	case NextUnique:
		return "nextunique"
	case Prev:
		return "prev"
	case PrevUnique:
		return "prevunique"
	default:
		return fmt.Sprintf("direction(%d)", uint8(d))
	}
}

// ParseDirection accepts the names returned by Direction.String. The empty
// string is Next.
func ParseDirection(s string) (Direction, error) {
	switch s {
	case "", "next":
		return Next, nil
	case "nextunique":
		return NextUnique, nil
	case "prev":
		return Prev, nil
	case "prevunique":
		return PrevUnique, nil
	}
	return Next, fmt.Errorf("unknown cursor direction %q", s)
}
