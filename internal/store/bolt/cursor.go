package bolt

import (
	"fmt"

	bolt "go.etcd.io/bbolt"

	"hooked/internal/keys"
	"hooked/internal/record"
	"hooked/internal/store"
)

// cursor walks a records bucket or an index bucket within one bbolt
// transaction, applying range bounds and duplicate suppression.
type cursor struct {
	bc       *bolt.Cursor
	records  *bolt.Bucket // index cursors resolve values through it
	index    bool
	r        *keys.Range
	dir      store.Direction
	keysOnly bool

	started   bool
	exhausted bool
	done      bool

	// entry read ahead while collapsing a prevunique group
	pending      bool
	pendK, pendV []byte

	hasLast bool
	last    keys.Key

	key, pk keys.Key
	value   any
	err     error
}

func newCursor(bc *bolt.Cursor, records *bolt.Bucket, r *keys.Range, dir store.Direction, index bool) *cursor {
	return &cursor{bc: bc, records: records, r: r, dir: dir, index: index}
}

func (c *cursor) Key() keys.Key        { return c.key }
func (c *cursor) PrimaryKey() keys.Key { return c.pk }
func (c *cursor) Value() any           { return c.value }
func (c *cursor) Err() error           { return c.err }

func (c *cursor) Next() bool {
	if c.done {
		return false
	}
	for {
		k, v := c.raw()
		if k == nil {
			c.done = true
			return false
		}
		ck, pk, err := c.decode(k)
		if err != nil {
			return c.fail(err)
		}
		if c.dir.Reverse() {
			if c.r.AboveUpper(ck) {
				continue
			}
			if c.r.BelowLower(ck) {
				c.done = true
				return false
			}
		} else {
			if c.r.BelowLower(ck) {
				continue
			}
			if c.r.AboveUpper(ck) {
				c.done = true
				return false
			}
		}
		if c.dir.Unique() && c.hasLast && keys.Equal(ck, c.last) {
			continue
		}
		if c.dir == store.PrevUnique {
			// a reverse unique walk reports the lowest primary key of each group
			for {
				pk2, pv2 := c.bc.Prev()
				if pk2 == nil {
					c.exhausted = true
					break
				}
				ck2, ppk2, err := c.decode(pk2)
				if err != nil {
					return c.fail(err)
				}
				if !keys.Equal(ck2, ck) {
					c.pending, c.pendK, c.pendV = true, pk2, pv2
					break
				}
				v, pk = pv2, ppk2
			}
		}
		c.hasLast, c.last = true, ck
		c.key, c.pk, c.value = ck, pk, nil
		if !c.keysOnly {
			if err := c.load(v); err != nil {
				return c.fail(err)
			}
		}
		return true
	}
}

func (c *cursor) fail(err error) bool {
	c.err = err
	c.done = true
	return false
}

func (c *cursor) raw() ([]byte, []byte) {
	if c.pending {
		c.pending = false
		return c.pendK, c.pendV
	}
	if c.exhausted {
		return nil, nil
	}
	if !c.started {
		c.started = true
		return c.seek()
	}
	if c.dir.Reverse() {
		return c.bc.Prev()
	}
	return c.bc.Next()
}

func (c *cursor) seek() ([]byte, []byte) {
	if c.dir.Reverse() {
		if c.r != nil && c.r.Upper.Valid() {
			// every entry filed under Upper sorts below Upper ++ 0xFF
			target := append(keys.Encode(c.r.Upper), 0xFF)
			if k, _ := c.bc.Seek(target); k == nil {
				return c.bc.Last()
			}
			return c.bc.Prev()
		}
		return c.bc.Last()
	}
	if c.r != nil && c.r.Lower.Valid() {
		return c.bc.Seek(keys.Encode(c.r.Lower))
	}
	return c.bc.First()
}

func (c *cursor) decode(k []byte) (keys.Key, keys.Key, error) {
	if !c.index {
		pk, err := keys.DecodeAll(k)
		return pk, pk, err
	}
	ik, rest, err := keys.Decode(k)
	if err != nil {
		return keys.Key{}, keys.Key{}, err
	}
	pk, err := keys.DecodeAll(rest)
	return ik, pk, err
}

func (c *cursor) load(v []byte) error {
	data := v
	if c.index {
		data = c.records.Get(keys.Encode(c.pk))
		if data == nil {
			return fmt.Errorf("index entry %s points at missing record %s", c.key, c.pk)
		}
	}
	val, err := record.Unmarshal(data)
	if err != nil {
		return err
	}
	c.value = val
	return nil
}
