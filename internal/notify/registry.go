// Package notify tracks, per object store, the listeners interested in
// committed writes and a transaction counter that only moves forward.
package notify

import (
	"slices"
	"sync"

	"github.com/puzpuzpuz/xsync/v3"

	"hooked/internal/keys"
	"hooked/internal/logging"
)

var logger = logging.For("notify")

// Listener receives the store's transaction count after a committed write
// and the keys that write produced. Wake calls it with nil keys.
type Listener func(count uint64, keys []keys.Key)

type subscriber struct {
	id uint64
	fn Listener
}

type entry struct {
	mu     sync.Mutex
	count  uint64
	nextID uint64
	subs   []subscriber
}

// Registry holds one entry per store that has ever been subscribed to.
// Entries are never removed, so a store's count survives its listeners.
type Registry struct {
	entries *xsync.MapOf[string, *entry]
}

func NewRegistry() *Registry {
	return &Registry{entries: xsync.NewMapOf[string, *entry]()}
}

// Subscribe registers fn for writes to store and returns a function that
// removes it again. Calling the returned function more than once is harmless.
func (r *Registry) Subscribe(store string, fn Listener) (unsubscribe func()) {
	e, _ := r.entries.LoadOrCompute(store, func() *entry { return &entry{} })

	e.mu.Lock()
	e.nextID++
	id := e.nextID
	e.subs = append(e.subs, subscriber{id: id, fn: fn})
	e.mu.Unlock()
	logger.Debug("subscribed", "store", store, "listener", id)

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Lock()
			e.subs = slices.DeleteFunc(e.subs, func(s subscriber) bool { return s.id == id })
			e.mu.Unlock()
			logger.Debug("unsubscribed", "store", store, "listener", id)
		})
	}
}

// Notify bumps the store's count and calls every current listener in
// subscription order. Stores nobody has subscribed to are ignored.
//
// Listeners run after the entry lock is released, so a listener may write
// to the same store; the nested Notify completes before this one returns.
func (r *Registry) Notify(store string, ks []keys.Key) {
	e, ok := r.entries.Load(store)
	if !ok {
		return
	}
	e.mu.Lock()
	e.count++
	count := e.count
	subs := slices.Clone(e.subs)
	e.mu.Unlock()

	for _, s := range subs {
		s.fn(count, ks)
	}
}

// Wake calls the listeners of every store that has any, with the store's
// current count. Counts are left unchanged.
func (r *Registry) Wake() {
	r.entries.Range(func(store string, e *entry) bool {
		e.mu.Lock()
		count := e.count
		subs := slices.Clone(e.subs)
		e.mu.Unlock()
		if len(subs) == 0 {
			return true
		}
		logger.Debug("waking store", "store", store, "count", count, "listeners", len(subs))
		for _, s := range subs {
			s.fn(count, nil)
		}
		return true
	})
}

// Count returns the store's transaction count; zero for unknown stores.
func (r *Registry) Count(store string) uint64 {
	e, ok := r.entries.Load(store)
	if !ok {
		return 0
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.count
}

// Listeners returns how many listeners the store currently has.
func (r *Registry) Listeners(store string) int {
	e, ok := r.entries.Load(store)
	if !ok {
		return 0
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.subs)
}
