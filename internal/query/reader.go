// Package query turns declarative read requests into lookups and cursor
// walks over a store.Engine.
package query

import (
	"context"
	"errors"
	"fmt"

	"github.com/VictoriaMetrics/metrics"

	"hooked/internal/keys"
	"hooked/internal/logging"
	"hooked/internal/schema"
	"hooked/internal/store"
)

var logger = logging.For("query")

// ErrInvalidQuery is returned for requests that cannot select anything
// meaningful, such as a partial compound key.
var ErrInvalidQuery = errors.New("invalid query")

// Source hands out the engine once the database is open.
type Source interface {
	Engine() (store.Engine, bool)
}

// Query describes a read. A valid Key makes it a point lookup and the
// cursor fields are ignored; otherwise the store (or Index) is walked in
// Direction within Range.
type Query struct {
	Key   keys.Key
	Range *keys.Range
	// Index resolves Key, or drives the cursor, through a secondary index.
	Index     string
	Direction store.Direction
	// Filter drops records for which it returns false. It sees values only.
	Filter        func(value any) bool
	ReturnWithKey bool
	// Limit caps the number of records a cursor read returns, counted after
	// Filter. Zero is unlimited.
	Limit int
}

type Reader struct {
	src Source
}

func NewReader(src Source) *Reader {
	return &Reader{src: src}
}

// Read picks the access path from q: no query reads the whole store, a key
// is a point lookup, anything else is a cursor walk.
func (r *Reader) Read(ctx context.Context, storeName string, q *Query) (Result, error) {
	switch {
	case q == nil:
		return r.All(ctx, storeName)
	case q.Key.Valid():
		return r.Get(ctx, storeName, *q)
	default:
		return r.Scan(ctx, storeName, *q)
	}
}

// All returns every record of the store in ascending primary key order.
func (r *Reader) All(ctx context.Context, storeName string) (Result, error) {
	eng, ok := r.src.Engine()
	if !ok {
		return pending(), nil
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	countRead(storeName, "all")

	res := Result{Kind: KindMany}
	err := eng.View(func(tx store.Tx) error {
		objs, err := tx.ObjectStore(storeName)
		if err != nil {
			return err
		}
		entries, err := objs.GetAll(nil, 0)
		if err != nil {
			return err
		}
		res.Items = make([]Record, len(entries))
		for i, e := range entries {
			res.Items[i] = Record{Key: e.Key, Value: e.Value}
		}
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	logger.Debug("read all", "store", storeName, "records", len(res.Items))
	return res, nil
}

// Get looks up q.Key in the store, or in q.Index when set. A miss is
// KindNone. With an index the reported key is the record's primary key.
func (r *Reader) Get(ctx context.Context, storeName string, q Query) (Result, error) {
	if !q.Key.Valid() {
		return Result{}, fmt.Errorf("%w: point lookup needs a key", ErrInvalidQuery)
	}
	eng, ok := r.src.Engine()
	if !ok {
		return pending(), nil
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	mode := "get"
	if q.Index != "" {
		mode = "index_get"
	}
	countRead(storeName, mode)

	res := Result{Kind: KindNone, WithKey: q.ReturnWithKey}
	err := eng.View(func(tx store.Tx) error {
		objs, err := tx.ObjectStore(storeName)
		if err != nil {
			return err
		}
		if q.Index == "" {
			if err := checkKeyShape(objs.Schema().KeyPath, q.Key); err != nil {
				return fmt.Errorf("store %q: %w", storeName, err)
			}
			v, found, err := objs.Get(q.Key)
			if err != nil || !found {
				return err
			}
			res.Kind, res.Items = KindOne, []Record{{Key: q.Key, Value: v}}
			return nil
		}
		ix, err := objs.Index(q.Index)
		if err != nil {
			return err
		}
		if err := checkKeyShape(ix.Schema().KeyPath, q.Key); err != nil {
			return fmt.Errorf("index %q: %w", q.Index, err)
		}
		e, found, err := ix.Get(q.Key)
		if err != nil || !found {
			return err
		}
		res.Kind, res.Items = KindOne, []Record{{Key: e.Key, Value: e.Value}}
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	logger.Debug("read key", "store", storeName, "index", q.Index, "key", q.Key, "found", res.Kind == KindOne)
	return res, nil
}

// Scan walks the store, or q.Index when set, in q.Direction within q.Range.
// Records rejected by q.Filter are skipped; the rest keep cursor order.
func (r *Reader) Scan(ctx context.Context, storeName string, q Query) (Result, error) {
	if q.Key.Valid() {
		return Result{}, fmt.Errorf("%w: scan with a key, use Get", ErrInvalidQuery)
	}
	eng, ok := r.src.Engine()
	if !ok {
		return pending(), nil
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	mode := "scan"
	if q.Index != "" {
		mode = "index_scan"
	}
	countRead(storeName, mode)

	res := Result{Kind: KindMany, WithKey: q.ReturnWithKey}
	err := eng.View(func(tx store.Tx) error {
		objs, err := tx.ObjectStore(storeName)
		if err != nil {
			return err
		}
		var c store.Cursor
		if q.Index == "" {
			c, err = objs.OpenCursor(q.Range, q.Direction)
		} else {
			var ix store.Index
			if ix, err = objs.Index(q.Index); err == nil {
				c, err = ix.OpenCursor(q.Range, q.Direction)
			}
		}
		if err != nil {
			return err
		}
		for c.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			v := c.Value()
			if q.Filter != nil && !q.Filter(v) {
				continue
			}
			res.Items = append(res.Items, Record{Key: c.PrimaryKey(), Value: v})
			if q.Limit > 0 && len(res.Items) == q.Limit {
				break
			}
		}
		return c.Err()
	})
	if err != nil {
		return Result{}, err
	}
	logger.Debug("read cursor", "store", storeName, "index", q.Index, "range", q.Range,
		"direction", q.Direction, "records", len(res.Items))
	return res, nil
}

// checkKeyShape rejects lookups whose key cannot match a compound key path.
func checkKeyShape(path []string, k keys.Key) error {
	if len(path) < 2 {
		return nil
	}
	if k.Kind() != keys.KindArray || k.Len() != len(path) {
		return fmt.Errorf("%w: key %s does not cover key path %s", ErrInvalidQuery, k, schema.FormatPath(path))
	}
	return nil
}

func countRead(storeName, mode string) {
	metrics.GetOrCreateCounter(fmt.Sprintf(`hooked_reads_total{store=%q,mode=%q}`, storeName, mode)).Inc()
}
