package results

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"mapaeleitoral/internal/domain/election"
	"mapaeleitoral/internal/domain/election/electiontest"
	"mapaeleitoral/internal/domain/filter"
)

type response struct {
	points []election.ResultPoint
	err    error
}

// gatedSource answers each candidate's query only when the test releases it
type gatedSource struct {
	electiontest.Source
	mu    sync.Mutex
	gates map[int]chan response
}

func newGatedSource() *gatedSource {
	g := &gatedSource{gates: make(map[int]chan response)}
	g.ResultsFunc = func(ctx context.Context, q election.ResultQuery) ([]election.ResultPoint, error) {
		gate := g.gate(q.Candidate)
		select {
		case r := <-gate:
			return r.points, r.err
		case <-ctx.Done():
			// A superseded request still resolves late, like a fetch
			// whose response nobody listens to any more.
			r := <-gate
			return r.points, r.err
		}
	}
	return g
}

func (g *gatedSource) gate(candidate int) chan response {
	g.mu.Lock()
	defer g.mu.Unlock()
	ch, ok := g.gates[candidate]
	if !ok {
		ch = make(chan response, 1)
		g.gates[candidate] = ch
	}
	return ch
}

type recorder struct {
	mu        sync.Mutex
	snapshots []Snapshot
	changed   chan struct{}
}

func newRecorder() *recorder {
	return &recorder{changed: make(chan struct{}, 64)}
}

func (r *recorder) record(s Snapshot) {
	r.mu.Lock()
	r.snapshots = append(r.snapshots, s)
	r.mu.Unlock()
	r.changed <- struct{}{}
}

func waitFor(t *testing.T, f *Fetcher, cond func(Snapshot) bool) Snapshot {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		snap := f.Snapshot()
		if cond(snap) {
			return snap
		}
		select {
		case <-deadline:
			t.Fatalf("timed out waiting; last snapshot %+v", snap)
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func stateFor(candidate int) filter.State {
	return filter.Default().WithCandidate(candidate)
}

func TestStaleResponseIsDiscarded(t *testing.T) {
	src := newGatedSource()
	rec := newRecorder()
	f := NewFetcher(src, rec.record)
	defer func() {
		f.Close()
	}()

	f.Apply(stateFor(13))
	f.Apply(stateFor(22))

	src.gate(22) <- response{points: []election.ResultPoint{electiontest.Point("B", -22.9, -43.2, 5, 10)}}
	snap := waitFor(t, f, func(s Snapshot) bool { return s.Version == 1 })
	if snap.Points[0].ID != "B" || snap.Loading {
		t.Fatalf("expected B's points without loading, got %+v", snap)
	}

	src.gate(13) <- response{points: []election.ResultPoint{electiontest.Point("A", -22.9, -43.2, 7, 10)}}
	f.Close()

	snap = f.Snapshot()
	if snap.Version != 1 || snap.Points[0].ID != "B" {
		t.Errorf("late response overwrote newer state: %+v", snap)
	}
	if snap.Query.Candidate != 22 {
		t.Errorf("expected query for 22, got %d", snap.Query.Candidate)
	}
}

func TestApplySameQueryIsIdempotent(t *testing.T) {
	src := &electiontest.Source{}
	f := NewFetcher(src, nil)
	defer f.Close()

	s := stateFor(22)
	if !f.Apply(s) {
		t.Fatal("first apply should issue a request")
	}
	waitFor(t, f, func(s Snapshot) bool { return s.Version == 1 })

	// Toggles are not part of the query
	if f.Apply(s.WithHeatmap(false)) {
		t.Error("re-applying the same query issued a request")
	}
	if got := src.Calls("Results"); got != 1 {
		t.Errorf("expected 1 request, got %d", got)
	}
	if v := f.Snapshot().Version; v != 1 {
		t.Errorf("expected version to stay 1, got %d", v)
	}
}

func TestErrorKeepsPreviousPoints(t *testing.T) {
	failing := errors.New("upstream down")
	src := &electiontest.Source{
		ResultsFunc: func(ctx context.Context, q election.ResultQuery) ([]election.ResultPoint, error) {
			if q.Zone == "9" {
				return nil, failing
			}
			return []election.ResultPoint{
				electiontest.Point("1", -22.9, -43.2, 10, 100),
				electiontest.Point("2", -22.8, -43.1, 20, 100),
				electiontest.Point("3", -22.7, -43.0, 30, 100),
			}, nil
		},
	}
	f := NewFetcher(src, nil)
	defer f.Close()

	f.Apply(stateFor(22))
	snap := waitFor(t, f, func(s Snapshot) bool { return s.Version == 1 })
	if snap.Stats.TotalVotes != 60 || snap.Stats.Percent != 20 {
		t.Errorf("unexpected stats %+v", snap.Stats)
	}

	f.Apply(stateFor(22).WithZone("9"))
	snap = waitFor(t, f, func(s Snapshot) bool { return s.Err != nil })
	if !errors.Is(snap.Err, failing) {
		t.Errorf("expected upstream error, got %v", snap.Err)
	}
	if snap.Loading {
		t.Error("loading flag not cleared after error")
	}
	if len(snap.Points) != 3 || snap.Version != 1 {
		t.Errorf("expected previous points to remain, got %d points version %d", len(snap.Points), snap.Version)
	}

	// Same failing query is not retried
	if f.Apply(stateFor(22).WithZone("9")) {
		t.Error("identical failing query was retried")
	}

	// A new state clears the error
	f.Apply(stateFor(22).WithZone("4"))
	snap = waitFor(t, f, func(s Snapshot) bool { return s.Version == 2 })
	if snap.Err != nil {
		t.Errorf("expected error cleared, got %v", snap.Err)
	}
}

func TestLoadingFlagLifecycle(t *testing.T) {
	src := newGatedSource()
	rec := newRecorder()
	f := NewFetcher(src, rec.record)
	defer f.Close()

	f.Apply(stateFor(22))
	if !f.Snapshot().Loading {
		t.Fatal("expected loading while request is outstanding")
	}

	src.gate(22) <- response{points: nil}
	snap := waitFor(t, f, func(s Snapshot) bool { return !s.Loading })
	if snap.Points == nil || len(snap.Points) != 0 {
		t.Errorf("expected an empty, non-nil point set, got %#v", snap.Points)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.snapshots) != 2 || !rec.snapshots[0].Loading || rec.snapshots[1].Loading {
		t.Errorf("unexpected notification sequence %+v", rec.snapshots)
	}
}

func TestCloseClearsLoading(t *testing.T) {
	src := newGatedSource()
	f := NewFetcher(src, nil)

	f.Apply(stateFor(22))
	go func() {
		src.gate(22) <- response{err: context.Canceled}
	}()
	f.Close()

	if f.Snapshot().Loading {
		t.Error("expected loading cleared after close")
	}
	if f.Apply(stateFor(13)) {
		t.Error("apply after close issued a request")
	}
}
