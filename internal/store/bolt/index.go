package bolt

import (
	"bytes"
	"fmt"

	bolt "go.etcd.io/bbolt"

	"hooked/internal/keys"
	"hooked/internal/record"
	"hooked/internal/schema"
	"hooked/internal/store"
)

type index struct {
	schema  schema.Index
	bucket  *bolt.Bucket
	records *bolt.Bucket
}

func (ix *index) Schema() schema.Index { return ix.schema }

func (ix *index) Get(key keys.Key) (store.Entry, bool, error) {
	if !key.Valid() {
		return store.Entry{}, false, fmt.Errorf("%w: missing index key", store.ErrData)
	}
	prefix := keys.Encode(key)
	k, _ := ix.bucket.Cursor().Seek(prefix)
	if k == nil || !bytes.HasPrefix(k, prefix) {
		return store.Entry{}, false, nil
	}
	pk, err := keys.DecodeAll(k[len(prefix):])
	if err != nil {
		return store.Entry{}, false, err
	}
	data := ix.records.Get(keys.Encode(pk))
	if data == nil {
		return store.Entry{}, false, fmt.Errorf("index %q entry %s points at missing record %s", ix.schema.Name, key, pk)
	}
	v, err := record.Unmarshal(data)
	if err != nil {
		return store.Entry{}, false, err
	}
	return store.Entry{Key: pk, Value: v}, true, nil
}

func (ix *index) Count(r *keys.Range) (int, error) {
	c := newCursor(ix.bucket.Cursor(), ix.records, r, store.Next, true)
	c.keysOnly = true
	n := 0
	for c.Next() {
		n++
	}
	return n, c.Err()
}

func (ix *index) OpenCursor(r *keys.Range, dir store.Direction) (store.Cursor, error) {
	return newCursor(ix.bucket.Cursor(), ix.records, r, dir, true), nil
}

// entryKeys returns the keys v is filed under in ix: none when the key
// path is missing or not a key, one per distinct element for a
// multi-entry index over an array.
func entryKeys(ix schema.Index, v any) []keys.Key {
	if ix.MultiEntry {
		ks, err := keys.ExtractEach(v, ix.KeyPath[0])
		if err != nil {
			return nil
		}
		return ks
	}
	k, err := keys.Extract(v, ix.KeyPath)
	if err != nil {
		return nil
	}
	return []keys.Key{k}
}
