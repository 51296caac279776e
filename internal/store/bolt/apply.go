package bolt

import (
	"errors"
	"fmt"

	bolt "go.etcd.io/bbolt"

	"hooked/internal/keys"
	"hooked/internal/record"
	"hooked/internal/schema"
	"hooked/internal/store"
)

var ErrSchemaConflict = errors.New("schema conflicts with existing store")

// Apply upgrades the database to version. It is a no-op returning false
// when the persisted version is already at or above version. Otherwise it
// creates missing stores, rebuilds every declared index, seeds stores that
// declare data (clearing them first) and records the new version, all in
// one transaction. Stores and indexes that are not mentioned are kept.
func (e *Engine) Apply(version uint64, stores []schema.Store) (bool, error) {
	if err := schema.Validate(stores); err != nil {
		return false, err
	}
	current := e.snapshot()
	next := make(map[string]schema.Store, len(current)+len(stores))
	for name, s := range current {
		next[name] = s
	}

	applied := false
	err := e.db.Update(func(btx *bolt.Tx) error {
		meta := btx.Bucket(metaBucket)
		if meta == nil {
			return fmt.Errorf("database has no meta bucket")
		}
		if have := readVersion(meta); have >= version && have != 0 {
			return nil
		}
		cb := btx.Bucket(catalogBucket)
		for _, s := range stores {
			merged, err := applyStore(btx, current[s.Name], s)
			if err != nil {
				return fmt.Errorf("store %q: %w", s.Name, err)
			}
			data, err := encodeSchema(merged)
			if err != nil {
				return err
			}
			if err := cb.Put([]byte(s.Name), data); err != nil {
				return err
			}
			next[s.Name] = merged
		}
		applied = true
		return writeVersion(meta, version)
	})
	if err != nil || !applied {
		return false, err
	}

	e.mu.Lock()
	e.catalog = next
	e.info.Version = version
	e.mu.Unlock()
	logger.Info("applied schema", "version", version, "stores", len(stores))
	return true, nil
}

func applyStore(btx *bolt.Tx, existing, want schema.Store) (schema.Store, error) {
	if existing.Name != "" && !existing.SameDiscipline(want) {
		return schema.Store{}, fmt.Errorf("%w: key path %v auto_increment=%v, have %v auto_increment=%v",
			ErrSchemaConflict, want.KeyPath, want.AutoIncrement, existing.KeyPath, existing.AutoIncrement)
	}
	b, err := btx.CreateBucketIfNotExists([]byte(want.Name))
	if err != nil {
		return schema.Store{}, err
	}
	if _, err := b.CreateBucketIfNotExists(recordsBucket); err != nil {
		return schema.Store{}, err
	}
	ixb, err := b.CreateBucketIfNotExists(indexesBucket)
	if err != nil {
		return schema.Store{}, err
	}

	merged := schema.Store{
		Name:          want.Name,
		KeyPath:       want.KeyPath,
		AutoIncrement: want.AutoIncrement,
	}
	for _, ix := range existing.Indexes {
		if _, redeclared := want.Index(ix.Name); !redeclared {
			merged.Indexes = append(merged.Indexes, ix)
		}
	}
	merged.Indexes = append(merged.Indexes, want.Indexes...)

	for _, ix := range want.Indexes {
		if ixb.Bucket([]byte(ix.Name)) != nil {
			if err := ixb.DeleteBucket([]byte(ix.Name)); err != nil {
				return schema.Store{}, err
			}
		}
		if _, err := ixb.CreateBucket([]byte(ix.Name)); err != nil {
			return schema.Store{}, err
		}
	}

	objs, err := openObjectStore(btx, merged)
	if err != nil {
		return schema.Store{}, err
	}
	if want.Data != nil {
		if err := objs.Clear(); err != nil {
			return schema.Store{}, err
		}
		for i, item := range want.Data {
			if _, err := objs.Add(item, keys.Key{}); err != nil {
				return schema.Store{}, fmt.Errorf("seeding item %d: %w", i, err)
			}
		}
	}
	for _, ix := range want.Indexes {
		if err := objs.rebuildIndex(ix); err != nil {
			return schema.Store{}, fmt.Errorf("index %q: %w", ix.Name, err)
		}
	}
	return merged, nil
}

// rebuildIndex fills a freshly created index bucket from the records.
func (o *objectStore) rebuildIndex(ix schema.Index) error {
	b := o.indexBucket(ix.Name)
	seen := make(map[string]keys.Key)
	return o.records.ForEach(func(k, v []byte) error {
		val, err := record.Unmarshal(v)
		if err != nil {
			return err
		}
		for _, ik := range entryKeys(ix, val) {
			enc := keys.Encode(ik)
			if ix.Unique {
				if prev, dup := seen[string(enc)]; dup {
					return fmt.Errorf("%w: unique index %q: %s shared by %s and another record", store.ErrConstraint, ix.Name, ik, prev)
				}
				pk, _ := keys.DecodeAll(k)
				seen[string(enc)] = pk
			}
			if err := b.Put(append(enc, k...), []byte{}); err != nil {
				return err
			}
		}
		return nil
	})
}
