package bolt

import (
	"bytes"
	"errors"
	"fmt"
	"math"

	bolt "go.etcd.io/bbolt"

	"hooked/internal/keys"
	"hooked/internal/record"
	"hooked/internal/schema"
	"hooked/internal/store"
)

// maxGeneratedKey is the largest key the generator hands out; beyond it
// float64 keys stop being exact integers.
const maxGeneratedKey = 1 << 53

type objectStore struct {
	writable bool
	schema   schema.Store
	records  *bolt.Bucket
	indexes  *bolt.Bucket
}

func (o *objectStore) Schema() schema.Store { return o.schema }

func (o *objectStore) Get(key keys.Key) (any, bool, error) {
	if !key.Valid() {
		return nil, false, fmt.Errorf("%w: missing key", store.ErrData)
	}
	data := o.records.Get(keys.Encode(key))
	if data == nil {
		return nil, false, nil
	}
	v, err := record.Unmarshal(data)
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

func (o *objectStore) GetAll(r *keys.Range, limit int) ([]store.Entry, error) {
	c, err := o.OpenCursor(r, store.Next)
	if err != nil {
		return nil, err
	}
	var out []store.Entry
	for c.Next() {
		out = append(out, store.Entry{Key: c.PrimaryKey(), Value: c.Value()})
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, c.Err()
}

func (o *objectStore) Count(r *keys.Range) (int, error) {
	c := newCursor(o.records.Cursor(), nil, r, store.Next, false)
	c.keysOnly = true
	n := 0
	for c.Next() {
		n++
	}
	return n, c.Err()
}

func (o *objectStore) Put(value any, key keys.Key) (keys.Key, error) {
	return o.put(value, key, false)
}

func (o *objectStore) Add(value any, key keys.Key) (keys.Key, error) {
	return o.put(value, key, true)
}

func (o *objectStore) put(value any, key keys.Key, noOverwrite bool) (keys.Key, error) {
	if !o.writable {
		return keys.Key{}, store.ErrReadOnly
	}
	v, err := record.Normalize(value)
	if err != nil {
		return keys.Key{}, fmt.Errorf("%w: %v", store.ErrData, err)
	}
	key, v, err = o.resolveKey(v, key)
	if err != nil {
		return keys.Key{}, err
	}

	enc := keys.Encode(key)
	var old any
	if data := o.records.Get(enc); data != nil {
		if noOverwrite {
			return keys.Key{}, fmt.Errorf("%w: key %s already exists in %q", store.ErrConstraint, key, o.schema.Name)
		}
		if old, err = record.Unmarshal(data); err != nil {
			return keys.Key{}, err
		}
	}

	newIx := o.indexKeys(v)
	for _, ix := range o.schema.Indexes {
		if !ix.Unique {
			continue
		}
		for _, ik := range newIx[ix.Name] {
			if owner, taken := o.indexOwner(ix.Name, ik); taken && !keys.Equal(owner, key) {
				return keys.Key{}, fmt.Errorf("%w: unique index %q already holds %s", store.ErrConstraint, ix.Name, ik)
			}
		}
	}

	data, err := record.Marshal(v)
	if err != nil {
		return keys.Key{}, fmt.Errorf("%w: %v", store.ErrData, err)
	}
	if old != nil {
		if err := o.unindex(old, enc); err != nil {
			return keys.Key{}, err
		}
	}
	if err := o.records.Put(enc, data); err != nil {
		return keys.Key{}, err
	}
	for name, iks := range newIx {
		b := o.indexBucket(name)
		for _, ik := range iks {
			if err := b.Put(keys.Append(keys.Encode(ik), key), []byte{}); err != nil {
				return keys.Key{}, err
			}
		}
	}
	return key, nil
}

// resolveKey applies the store's key discipline to a normalized value.
func (o *objectStore) resolveKey(v any, key keys.Key) (keys.Key, any, error) {
	s := o.schema
	if s.Inline() {
		if key.Valid() {
			return keys.Key{}, nil, fmt.Errorf("%w: store %q uses inline keys, explicit key %s not allowed", store.ErrData, s.Name, key)
		}
		k, err := keys.Extract(v, s.KeyPath)
		switch {
		case err == nil:
			if s.AutoIncrement {
				if err := o.bumpGenerator(k); err != nil {
					return keys.Key{}, nil, err
				}
			}
			return k, v, nil
		case errors.Is(err, keys.ErrKeyPathMissing) && s.AutoIncrement && record.IsComposite(v):
			k, err := o.generate()
			if err != nil {
				return keys.Key{}, nil, err
			}
			v, err = keys.Stamp(v, s.KeyPath, k)
			if err != nil {
				return keys.Key{}, nil, fmt.Errorf("%w: %v", store.ErrData, err)
			}
			return k, v, nil
		default:
			return keys.Key{}, nil, fmt.Errorf("%w: store %q: %v", store.ErrData, s.Name, err)
		}
	}
	if !key.Valid() {
		if !s.AutoIncrement {
			return keys.Key{}, nil, fmt.Errorf("%w: store %q requires a key", store.ErrData, s.Name)
		}
		k, err := o.generate()
		return k, v, err
	}
	if s.AutoIncrement {
		if err := o.bumpGenerator(key); err != nil {
			return keys.Key{}, nil, err
		}
	}
	return key, v, nil
}

func (o *objectStore) generate() (keys.Key, error) {
	seq, err := o.records.NextSequence()
	if err != nil {
		return keys.Key{}, err
	}
	if seq > maxGeneratedKey {
		return keys.Key{}, fmt.Errorf("%w: key generator exhausted in %q", store.ErrConstraint, o.schema.Name)
	}
	return keys.Number(float64(seq)), nil
}

// bumpGenerator keeps generated keys above explicitly supplied numeric keys.
func (o *objectStore) bumpGenerator(k keys.Key) error {
	n, ok := k.Float()
	if !ok || n < 1 || n > maxGeneratedKey {
		return nil
	}
	if next := uint64(math.Floor(n)); next > o.records.Sequence() {
		if err := o.records.SetSequence(next); err != nil {
			return fmt.Errorf("store %q: bumping key generator: %w", o.schema.Name, err)
		}
	}
	return nil
}

func (o *objectStore) indexKeys(v any) map[string][]keys.Key {
	out := make(map[string][]keys.Key, len(o.schema.Indexes))
	for _, ix := range o.schema.Indexes {
		if ks := entryKeys(ix, v); len(ks) > 0 {
			out[ix.Name] = ks
		}
	}
	return out
}

func (o *objectStore) indexBucket(name string) *bolt.Bucket {
	return o.indexes.Bucket([]byte(name))
}

// indexOwner returns the lowest primary key filed under ik in the index.
func (o *objectStore) indexOwner(name string, ik keys.Key) (keys.Key, bool) {
	b := o.indexBucket(name)
	if b == nil {
		return keys.Key{}, false
	}
	prefix := keys.Encode(ik)
	k, _ := b.Cursor().Seek(prefix)
	if k == nil || !bytes.HasPrefix(k, prefix) {
		return keys.Key{}, false
	}
	pk, err := keys.DecodeAll(k[len(prefix):])
	if err != nil {
		return keys.Key{}, false
	}
	return pk, true
}

func (o *objectStore) unindex(old any, enc []byte) error {
	for name, iks := range o.indexKeys(old) {
		b := o.indexBucket(name)
		if b == nil {
			continue
		}
		for _, ik := range iks {
			if err := b.Delete(append(keys.Encode(ik), enc...)); err != nil {
				return err
			}
		}
	}
	return nil
}

func (o *objectStore) Delete(key keys.Key) error {
	if !o.writable {
		return store.ErrReadOnly
	}
	if !key.Valid() {
		return fmt.Errorf("%w: missing key", store.ErrData)
	}
	return o.deleteEncoded(keys.Encode(key))
}

func (o *objectStore) deleteEncoded(enc []byte) error {
	data := o.records.Get(enc)
	if data == nil {
		return nil
	}
	old, err := record.Unmarshal(data)
	if err != nil {
		return err
	}
	if err := o.unindex(old, enc); err != nil {
		return err
	}
	return o.records.Delete(enc)
}

func (o *objectStore) DeleteRange(r *keys.Range) error {
	if !o.writable {
		return store.ErrReadOnly
	}
	c := newCursor(o.records.Cursor(), nil, r, store.Next, false)
	c.keysOnly = true
	var doomed [][]byte
	for c.Next() {
		doomed = append(doomed, keys.Encode(c.PrimaryKey()))
	}
	if err := c.Err(); err != nil {
		return err
	}
	for _, enc := range doomed {
		if err := o.deleteEncoded(enc); err != nil {
			return err
		}
	}
	return nil
}

// Clear removes every record and index entry. The key generator keeps
// counting from where it was.
func (o *objectStore) Clear() error {
	if !o.writable {
		return store.ErrReadOnly
	}
	if err := clearBucket(o.records); err != nil {
		return err
	}
	for _, ix := range o.schema.Indexes {
		if b := o.indexBucket(ix.Name); b != nil {
			if err := clearBucket(b); err != nil {
				return err
			}
		}
	}
	return nil
}

func clearBucket(b *bolt.Bucket) error {
	var doomed [][]byte
	err := b.ForEach(func(k, _ []byte) error {
		doomed = append(doomed, bytes.Clone(k))
		return nil
	})
	if err != nil {
		return err
	}
	for _, k := range doomed {
		if err := b.Delete(k); err != nil {
			return err
		}
	}
	return nil
}

func (o *objectStore) OpenCursor(r *keys.Range, dir store.Direction) (store.Cursor, error) {
	return newCursor(o.records.Cursor(), nil, r, dir, false), nil
}

func (o *objectStore) Index(name string) (store.Index, error) {
	ix, ok := o.schema.Index(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q on store %q", store.ErrIndexNotFound, name, o.schema.Name)
	}
	b := o.indexBucket(name)
	if b == nil {
		return nil, fmt.Errorf("%w: %q has no bucket", store.ErrIndexNotFound, name)
	}
	return &index{schema: ix, bucket: b, records: o.records}, nil
}
