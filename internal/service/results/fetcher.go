// internal/service/results/fetcher.go

package results

import (
	"context"
	"errors"
	"log"
	"sync"

	"mapaeleitoral/internal/domain/election"
	"mapaeleitoral/internal/domain/filter"
)

// Snapshot is the visible state of the results query
type Snapshot struct {
	Query       election.ResultQuery
	Points      []election.ResultPoint
	Version     uint64
	Stats       election.Stats
	Performance election.Performance
	Loading     bool
	Err         error
}

// Fetcher owns the primary results query for one view.
//
// Only the response to the most recently applied query may change the
// snapshot. Points are replaced wholesale and Version increases exactly
// when a new point set is installed. A failed fetch keeps the previous
// points and records the error.
type Fetcher struct {
	source   election.Source
	onChange func(Snapshot)

	mu         sync.Mutex
	requested  election.ResultQuery
	hasQuery   bool
	generation uint64
	cancel     context.CancelFunc
	snapshot   Snapshot
	closed     bool
	wg         sync.WaitGroup

	// notifyMu keeps callbacks in the order snapshots were produced
	notifyMu sync.Mutex
}

// NewFetcher creates a fetcher. onChange receives every new snapshot and
// must not call back into the fetcher synchronously.
func NewFetcher(source election.Source, onChange func(Snapshot)) *Fetcher {
	if onChange == nil {
		onChange = func(Snapshot) {}
	}
	return &Fetcher{
		source:   source,
		onChange: onChange,
	}
}

// Apply derives the query for a filter state and issues it, superseding
// any fetch still in flight. It reports whether a request was issued;
// re-applying the query already requested is a no-op.
func (f *Fetcher) Apply(s filter.State) bool {
	q := election.QueryFromState(s)

	f.mu.Lock()
	if f.closed || (f.hasQuery && q == f.requested) {
		f.mu.Unlock()
		return false
	}

	// Supersede the in-flight request
	if f.cancel != nil {
		f.cancel()
	}
	f.generation++
	gen := f.generation
	ctx, cancel := context.WithCancel(context.Background())
	f.cancel = cancel
	f.requested = q
	f.hasQuery = true
	f.snapshot.Loading = true
	f.wg.Add(1)
	f.publishLocked()

	go f.fetch(ctx, gen, q)
	return true
}

func (f *Fetcher) fetch(ctx context.Context, gen uint64, q election.ResultQuery) {
	defer f.wg.Done()

	points, err := f.source.Results(ctx, q)

	f.mu.Lock()
	if gen != f.generation {
		// Superseded; the newer request owns the loading flag
		f.mu.Unlock()
		return
	}
	f.cancel = nil
	f.snapshot.Loading = false

	if err != nil {
		if !errors.Is(err, context.Canceled) {
			log.Printf("results: error fetching %s/%d: %v", q.Office, q.Year, err)
		}
		f.snapshot.Err = err
		f.publishLocked()
		return
	}

	if points == nil {
		points = []election.ResultPoint{}
	}
	f.snapshot.Query = q
	f.snapshot.Points = points
	f.snapshot.Version++
	f.snapshot.Stats = election.ComputeStats(points)
	f.snapshot.Performance = election.ComputePerformance(points)
	f.snapshot.Err = nil
	f.publishLocked()
}

// publishLocked hands the current snapshot to onChange. It must be
// called with mu held and releases it.
func (f *Fetcher) publishLocked() {
	snap := f.snapshot
	f.notifyMu.Lock()
	f.mu.Unlock()
	defer f.notifyMu.Unlock()
	f.onChange(snap)
}

// Snapshot returns the current state
func (f *Fetcher) Snapshot() Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshot
}

// Close cancels any in-flight request and waits for it to finish. The
// loading flag is cleared. Apply is a no-op afterwards.
func (f *Fetcher) Close() {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.closed = true
	if f.cancel != nil {
		f.cancel()
		f.cancel = nil
	}
	f.generation++
	f.snapshot.Loading = false
	f.mu.Unlock()

	f.wg.Wait()
}
