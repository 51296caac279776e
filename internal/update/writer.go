// Package update applies batches of write directives to one store in a
// single transaction and announces committed batches to a notify.Registry.
package update

import (
	"context"
	"errors"
	"fmt"

	"github.com/VictoriaMetrics/metrics"

	"hooked/internal/keys"
	"hooked/internal/logging"
	"hooked/internal/notify"
	"hooked/internal/query"
	"hooked/internal/record"
	"hooked/internal/store"
)

var logger = logging.For("update")

var (
	ErrNotOpen          = errors.New("database is not open")
	ErrInvalidDirective = errors.New("invalid write directive")
)

type Writer struct {
	src query.Source
	reg *notify.Registry
}

// NewWriter returns a Writer over src. reg may be nil, in which case
// nothing is notified.
func NewWriter(src query.Source, reg *notify.Registry) *Writer {
	return &Writer{src: src, reg: reg}
}

// WriteOne applies a single directive. Deletes report the zero Key.
func (w *Writer) WriteOne(ctx context.Context, storeName string, d Directive, announce bool) (keys.Key, error) {
	ks, err := w.WriteMany(ctx, storeName, []Directive{d}, announce)
	if err != nil {
		return keys.Key{}, err
	}
	return ks[0], nil
}

// WriteMany applies ds in order within one transaction and returns the
// resulting key of each, the zero Key for deletes. Either every directive
// takes effect or none does. Directives are validated before the
// transaction starts. After a commit, and if announce is set, the registry
// is told about the store and the keys.
func (w *Writer) WriteMany(ctx context.Context, storeName string, ds []Directive, announce bool) ([]keys.Key, error) {
	eng, ok := w.src.Engine()
	if !ok {
		return nil, ErrNotOpen
	}
	for i, d := range ds {
		if err := d.validate(); err != nil {
			return nil, fmt.Errorf("directive %d: %w", i, err)
		}
	}
	if len(ds) == 0 {
		return []keys.Key{}, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make([]keys.Key, len(ds))
	err := eng.Update(func(tx store.Tx) error {
		objs, err := tx.ObjectStore(storeName)
		if err != nil {
			return err
		}
		for i, d := range ds {
			if err := ctx.Err(); err != nil {
				return err
			}
			k, err := apply(objs, d)
			if err != nil {
				return fmt.Errorf("directive %d (%s): %w", i, d, err)
			}
			out[i] = k
		}
		return nil
	})
	if err != nil {
		metrics.GetOrCreateCounter(fmt.Sprintf(`hooked_write_errors_total{store=%q}`, storeName)).Inc()
		logger.Debug("write aborted", "store", storeName, "directives", len(ds), "err", err)
		return nil, err
	}
	metrics.GetOrCreateCounter(fmt.Sprintf(`hooked_writes_total{store=%q}`, storeName)).Add(len(ds))
	logger.Debug("write committed", "store", storeName, "directives", len(ds), "notify", announce)

	if announce && w.reg != nil {
		w.reg.Notify(storeName, out)
	}
	return out, nil
}

func apply(objs store.ObjectStore, d Directive) (keys.Key, error) {
	if d.IsDelete() {
		if d.Range != nil {
			return keys.Key{}, objs.DeleteRange(d.Range)
		}
		return keys.Key{}, objs.Delete(d.Key)
	}
	if !d.Key.Valid() {
		return objs.Put(d.Value, keys.Key{})
	}

	v, err := record.Normalize(d.Value)
	if err != nil {
		return keys.Key{}, fmt.Errorf("%w: %v", store.ErrData, err)
	}
	if !d.Replace {
		old, found, err := objs.Get(d.Key)
		if err != nil {
			return keys.Key{}, err
		}
		if found {
			v = record.Merge(old, v)
		}
	}

	s := objs.Schema()
	if !s.Inline() {
		return objs.Put(v, d.Key)
	}
	// inline stores take the key from the record; fill in what is missing
	v, err = keys.Stamp(v, s.KeyPath, d.Key)
	if err != nil {
		return keys.Key{}, fmt.Errorf("%w: %v", store.ErrData, err)
	}
	return objs.Put(v, keys.Key{})
}
