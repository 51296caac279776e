package bolt

import (
	"encoding/binary"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"

	"hooked/internal/logging"
	"hooked/internal/schema"
	"hooked/internal/store"
)

// Bucket layout:
//
//	_meta                instance id, schema version
//	_catalog             store name -> encoded schema.Store
//	<store>/r            encoded primary key -> encoded record (sequence = key generator)
//	<store>/i/<index>    encoded index key ++ encoded primary key -> empty
var (
	metaBucket    = []byte("_meta")
	catalogBucket = []byte("_catalog")
	recordsBucket = []byte("r")
	indexesBucket = []byte("i")

	instanceKey = []byte("instance_id")
	versionKey  = []byte("version")
)

var logger = logging.For("bolt")

// Options tunes how the database file is opened.
type Options struct {
	// Timeout is how long Open waits for the file lock. Zero waits forever.
	Timeout  time.Duration
	ReadOnly bool
}

// Info describes an opened database.
type Info struct {
	InstanceID string
	Version    uint64
	Path       string
}

// Engine implements store.Engine using bbolt (embedded B+ tree).
type Engine struct {
	db *bolt.DB

	mu      sync.RWMutex
	catalog map[string]schema.Store
	info    Info
}

var _ store.Engine = (*Engine)(nil)

// Open creates or opens a bbolt database at the given path and loads its
// catalog. A new file is stamped with a fresh instance id at version 0.
func Open(path string, opts *Options) (*Engine, error) {
	if opts == nil {
		opts = &Options{}
	}
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: opts.Timeout, ReadOnly: opts.ReadOnly})
	if err != nil {
		return nil, fmt.Errorf("opening bolt db: %w", err)
	}
	e := &Engine{db: db, info: Info{Path: path}}

	if !opts.ReadOnly {
		err = db.Update(func(tx *bolt.Tx) error {
			meta, err := tx.CreateBucketIfNotExists(metaBucket)
			if err != nil {
				return fmt.Errorf("creating meta bucket: %w", err)
			}
			if meta.Get(instanceKey) == nil {
				if err := meta.Put(instanceKey, []byte(uuid.New().String())); err != nil {
					return err
				}
			}
			if _, err := tx.CreateBucketIfNotExists(catalogBucket); err != nil {
				return fmt.Errorf("creating catalog bucket: %w", err)
			}
			return nil
		})
		if err != nil {
			db.Close()
			return nil, err
		}
	}

	if err := e.load(); err != nil {
		db.Close()
		return nil, err
	}
	logger.Info("opened database", "path", path, "instance", e.info.InstanceID, "version", e.info.Version, "stores", len(e.catalog))
	return e, nil
}

func (e *Engine) load() error {
	catalog := make(map[string]schema.Store)
	var info Info
	err := e.db.View(func(tx *bolt.Tx) error {
		if meta := tx.Bucket(metaBucket); meta != nil {
			info.InstanceID = string(meta.Get(instanceKey))
			info.Version = readVersion(meta)
		}
		cb := tx.Bucket(catalogBucket)
		if cb == nil {
			return nil
		}
		return cb.ForEach(func(k, v []byte) error {
			s, err := decodeSchema(v)
			if err != nil {
				return fmt.Errorf("catalog entry %q: %w", k, err)
			}
			catalog[s.Name] = s
			return nil
		})
	})
	if err != nil {
		return fmt.Errorf("loading catalog: %w", err)
	}
	e.mu.Lock()
	e.catalog = catalog
	info.Path = e.info.Path
	e.info = info
	e.mu.Unlock()
	return nil
}

func (e *Engine) snapshot() map[string]schema.Store {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.catalog
}

// Info returns the identity and schema version of the database.
func (e *Engine) Info() Info {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.info
}

// Stores returns the sorted names of all object stores.
func (e *Engine) Stores() []string {
	cat := e.snapshot()
	names := make([]string, 0, len(cat))
	for name := range cat {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Schema returns the definition of the named store.
func (e *Engine) Schema(name string) (schema.Store, bool) {
	s, ok := e.snapshot()[name]
	return s, ok
}

func (e *Engine) View(fn func(store.Tx) error) error {
	cat := e.snapshot()
	return e.db.View(func(btx *bolt.Tx) error {
		return fn(&tx{btx: btx, catalog: cat})
	})
}

func (e *Engine) Update(fn func(store.Tx) error) error {
	cat := e.snapshot()
	return e.db.Update(func(btx *bolt.Tx) error {
		return fn(&tx{btx: btx, catalog: cat})
	})
}

func (e *Engine) Close() error {
	return e.db.Close()
}

type tx struct {
	btx     *bolt.Tx
	catalog map[string]schema.Store
}

func (t *tx) Writable() bool { return t.btx.Writable() }

func (t *tx) ObjectStore(name string) (store.ObjectStore, error) {
	s, ok := t.catalog[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", store.ErrStoreNotFound, name)
	}
	return openObjectStore(t.btx, s)
}

func openObjectStore(btx *bolt.Tx, s schema.Store) (*objectStore, error) {
	b := btx.Bucket([]byte(s.Name))
	if b == nil {
		return nil, fmt.Errorf("%w: %q has no bucket", store.ErrStoreNotFound, s.Name)
	}
	records, indexes := b.Bucket(recordsBucket), b.Bucket(indexesBucket)
	if records == nil || indexes == nil {
		return nil, fmt.Errorf("store %q: missing nested buckets", s.Name)
	}
	return &objectStore{
		writable: btx.Writable(),
		schema:   s,
		records:  records,
		indexes:  indexes,
	}, nil
}

func readVersion(meta *bolt.Bucket) uint64 {
	v := meta.Get(versionKey)
	if len(v) != 8 {
		return 0
	}
	return binary.BigEndian.Uint64(v)
}

func writeVersion(meta *bolt.Bucket, version uint64) error {
	return meta.Put(versionKey, binary.BigEndian.AppendUint64(nil, version))
}
