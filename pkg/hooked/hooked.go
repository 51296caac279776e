// Package hooked is a reactive access layer over an embedded, key-ordered
// object store. A DB owns the storage engine, the notification registry and
// the read and write orchestrators built on them.
//
//	db := hooked.New(cfg)
//	stop := db.Subscribe("fruits", func(count uint64, ks []hooked.Key) { ... })
//	defer stop()
//	if err := db.Open(ctx); err != nil { ... }
//	k, err := db.WriteOne(ctx, "fruits", hooked.Put(map[string]any{"name": "kiwi"}), true)
//	res, err := db.Read(ctx, "fruits", &hooked.Query{Key: k})
package hooked

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"hooked/internal/config"
	"hooked/internal/keys"
	"hooked/internal/logging"
	"hooked/internal/notify"
	"hooked/internal/query"
	"hooked/internal/schema"
	"hooked/internal/store"
	"hooked/internal/store/bolt"
	"hooked/internal/update"
)

var logger = logging.For("hooked")

type (
	Key       = keys.Key
	Range     = keys.Range
	Query     = query.Query
	Result    = query.Result
	Record    = query.Record
	Directive = update.Directive
	Listener  = notify.Listener
	Direction = store.Direction
	Schema    = schema.Store
)

const (
	KindPending = query.KindPending
	KindNone    = query.KindNone
	KindOne     = query.KindOne
	KindMany    = query.KindMany
)

const (
	Next       = store.Next
	NextUnique = store.NextUnique
	Prev       = store.Prev
	PrevUnique = store.PrevUnique
)

var (
	Put         = update.Put
	Set         = update.Set
	Replace     = update.Replace
	Delete      = update.Delete
	DeleteRange = update.DeleteRange
)

var (
	ErrNotOpen          = update.ErrNotOpen
	ErrInvalidDirective = update.ErrInvalidDirective
	ErrInvalidQuery     = query.ErrInvalidQuery
	ErrStoreNotFound    = store.ErrStoreNotFound
	ErrIndexNotFound    = store.ErrIndexNotFound
	ErrConstraint       = store.ErrConstraint
	ErrData             = store.ErrData
	ErrClosed           = errors.New("database is closed")
)

// Info describes an open database.
type Info struct {
	InstanceID string   `json:"instance_id"`
	Version    uint64   `json:"version"`
	Path       string   `json:"path"`
	Stores     []string `json:"stores"`
}

type DB struct {
	cfg *config.Config
	reg *notify.Registry
	r   *query.Reader
	w   *update.Writer

	// openMu serializes Open; mu guards eng and closed only, so IsOpen and
	// pending reads answer while Open waits on the file lock.
	openMu sync.Mutex
	mu     sync.RWMutex
	eng    *bolt.Engine
	closed bool
}

// New prepares a DB for cfg. Nothing is opened until Open; until then
// reads are pending and writes fail with ErrNotOpen. Listeners may be
// subscribed right away.
func New(cfg *config.Config) *DB {
	if cfg == nil {
		cfg = config.Defaults()
	}
	db := &DB{cfg: cfg, reg: notify.NewRegistry()}
	db.r = query.NewReader(db)
	db.w = update.NewWriter(db, db.reg)
	return db
}

// Engine returns the storage engine once the database is open.
func (db *DB) Engine() (store.Engine, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	if db.eng == nil {
		return nil, false
	}
	return db.eng, true
}

// Open opens the database file, applies the configured stores when the
// configured version is newer than the file's, and then wakes every
// listener subscribed so far. Opening an open DB is a no-op. A Close that
// races with Open wins: the engine is closed again and ErrClosed returned.
func (db *DB) Open(ctx context.Context) error {
	db.openMu.Lock()
	defer db.openMu.Unlock()

	db.mu.RLock()
	closed, open := db.closed, db.eng != nil
	db.mu.RUnlock()
	switch {
	case closed:
		return ErrClosed
	case open:
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	path := db.cfg.DatabasePath()
	dbc := db.cfg.Database
	if !dbc.ReadOnly {
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			return fmt.Errorf("creating database dir: %w", err)
		}
	}
	eng, err := bolt.Open(path, &bolt.Options{Timeout: dbc.OpenTimeout.Duration, ReadOnly: dbc.ReadOnly})
	if err != nil {
		return err
	}
	if !dbc.ReadOnly && len(db.cfg.Stores) > 0 {
		if _, err := eng.Apply(dbc.Version, db.cfg.Stores); err != nil {
			eng.Close()
			return fmt.Errorf("applying schema: %w", err)
		}
	}

	db.mu.Lock()
	if db.closed {
		db.mu.Unlock()
		eng.Close()
		return ErrClosed
	}
	db.eng = eng
	db.mu.Unlock()

	logger.Info("database open", "path", path, "stores", len(eng.Stores()), "version", eng.Info().Version)
	db.reg.Wake()
	return nil
}

// IsOpen reports whether reads and writes reach the engine.
func (db *DB) IsOpen() bool {
	_, ok := db.Engine()
	return ok
}

// Read runs q against the store. See query.Reader.Read.
func (db *DB) Read(ctx context.Context, storeName string, q *Query) (Result, error) {
	return db.r.Read(ctx, storeName, q)
}

// WriteOne applies d in its own transaction. See update.Writer.WriteOne.
func (db *DB) WriteOne(ctx context.Context, storeName string, d Directive, announce bool) (Key, error) {
	return db.w.WriteOne(ctx, storeName, d, announce)
}

// WriteMany applies ds atomically. See update.Writer.WriteMany.
func (db *DB) WriteMany(ctx context.Context, storeName string, ds []Directive, announce bool) ([]Key, error) {
	return db.w.WriteMany(ctx, storeName, ds, announce)
}

// Subscribe registers fn for committed writes to storeName.
func (db *DB) Subscribe(storeName string, fn Listener) (unsubscribe func()) {
	return db.reg.Subscribe(storeName, fn)
}

func (db *DB) Registry() *notify.Registry { return db.reg }

func (db *DB) Reader() *query.Reader { return db.r }

func (db *DB) Writer() *update.Writer { return db.w }

// Info returns the identity, version and stores of the open database.
func (db *DB) Info() (Info, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	if db.eng == nil {
		return Info{}, ErrNotOpen
	}
	bi := db.eng.Info()
	return Info{
		InstanceID: bi.InstanceID,
		Version:    bi.Version,
		Path:       bi.Path,
		Stores:     db.eng.Stores(),
	}, nil
}

// Schemas returns the definitions of all stores, sorted by name.
func (db *DB) Schemas() ([]Schema, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	if db.eng == nil {
		return nil, ErrNotOpen
	}
	names := db.eng.Stores()
	out := make([]Schema, 0, len(names))
	for _, name := range names {
		if s, ok := db.eng.Schema(name); ok {
			out = append(out, s)
		}
	}
	return out, nil
}

// Close closes the engine. A closed DB cannot be reopened.
func (db *DB) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.closed = true
	if db.eng == nil {
		return nil
	}
	err := db.eng.Close()
	db.eng = nil
	logger.Info("database closed")
	return err
}
