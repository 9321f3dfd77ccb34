// internal/service/auxiliary/query.go

package auxiliary

import (
	"context"
	"errors"
	"log"
	"sync"
)

// Result is the visible state of a keyed query
type Result[K comparable, V any] struct {
	Key     K
	Value   V
	Loading bool
	Err     error
}

// FetchFunc loads the value for a key
type FetchFunc[K comparable, V any] func(ctx context.Context, key K) (V, error)

// QueryConfig configures a keyed query
type QueryConfig[K comparable, V any] struct {
	// Name prefixes log lines
	Name string

	// Fetch loads the value for a key
	Fetch FetchFunc[K, V]

	// Skip reports that a key lacks a required input. Skipped keys
	// resolve to the zero value without a request.
	Skip func(K) bool

	// OnChange receives every new result. It must not call back into
	// the query synchronously.
	OnChange func(Result[K, V])
}

// Query is a fetch keyed by a subset of the filter state. It refetches
// exactly when the key changes, and only the newest key may publish a
// result. Errors resolve to the zero value so the widget shows empty
// rather than blocking anything else.
type Query[K comparable, V any] struct {
	cfg QueryConfig[K, V]

	mu         sync.Mutex
	key        K
	hasKey     bool
	generation uint64
	cancel     context.CancelFunc
	result     Result[K, V]
	closed     bool
	wg         sync.WaitGroup

	notifyMu sync.Mutex
}

// NewQuery creates a keyed query
func NewQuery[K comparable, V any](cfg QueryConfig[K, V]) *Query[K, V] {
	if cfg.OnChange == nil {
		cfg.OnChange = func(Result[K, V]) {}
	}
	if cfg.Name == "" {
		cfg.Name = "query"
	}
	return &Query[K, V]{cfg: cfg}
}

// Set moves the query to a key. It reports whether a request was
// issued; setting the current key again does nothing.
func (q *Query[K, V]) Set(key K) bool {
	q.mu.Lock()
	if q.closed || (q.hasKey && key == q.key) {
		q.mu.Unlock()
		return false
	}
	return q.startLocked(key)
}

// Refresh refetches the current key
func (q *Query[K, V]) Refresh() bool {
	q.mu.Lock()
	if q.closed || !q.hasKey {
		q.mu.Unlock()
		return false
	}
	return q.startLocked(q.key)
}

// startLocked must be called with mu held and releases it
func (q *Query[K, V]) startLocked(key K) bool {
	if q.cancel != nil {
		q.cancel()
		q.cancel = nil
	}
	q.generation++
	q.key = key
	q.hasKey = true

	var zero V
	if q.cfg.Skip != nil && q.cfg.Skip(key) {
		q.result = Result[K, V]{Key: key, Value: zero}
		q.publishLocked()
		return false
	}

	gen := q.generation
	ctx, cancel := context.WithCancel(context.Background())
	q.cancel = cancel
	q.result = Result[K, V]{Key: key, Value: zero, Loading: true}
	q.wg.Add(1)
	q.publishLocked()

	go q.fetch(ctx, gen, key)
	return true
}

func (q *Query[K, V]) fetch(ctx context.Context, gen uint64, key K) {
	defer q.wg.Done()

	value, err := q.cfg.Fetch(ctx, key)

	q.mu.Lock()
	if gen != q.generation {
		q.mu.Unlock()
		return
	}
	q.cancel = nil

	if err != nil {
		if !errors.Is(err, context.Canceled) {
			log.Printf("%s: error fetching %v: %v", q.cfg.Name, key, err)
		}
		var zero V
		value = zero
	}
	q.result = Result[K, V]{Key: key, Value: value, Err: err}
	q.publishLocked()
}

func (q *Query[K, V]) publishLocked() {
	res := q.result
	q.notifyMu.Lock()
	q.mu.Unlock()
	defer q.notifyMu.Unlock()
	q.cfg.OnChange(res)
}

// Result returns the current result
func (q *Query[K, V]) Result() Result[K, V] {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.result
}

// Close cancels any in-flight request and waits for it
func (q *Query[K, V]) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	if q.cancel != nil {
		q.cancel()
		q.cancel = nil
	}
	q.generation++
	q.result.Loading = false
	q.mu.Unlock()

	q.wg.Wait()
}
