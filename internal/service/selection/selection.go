// internal/service/selection/selection.go

package selection

import (
	"context"
	"errors"
	"log"
	"sync"

	"mapaeleitoral/internal/domain/election"
	"mapaeleitoral/internal/domain/filter"
)

// Scope is what a place detail is fetched for
type Scope struct {
	Office filter.Office
	// Year is the cycle to compare with; zero asks for the current one
	Year filter.Year
	// Candidate is highlighted in the ranking
	Candidate int
}

// Snapshot is the detail drawer state
type Snapshot struct {
	PlaceID election.PlaceID
	Loading bool
	Detail  *election.PlaceDetail
	Err     error
}

// Selected reports whether a place is selected
func (s Snapshot) Selected() bool {
	return s.PlaceID != ""
}

// State holds at most one selected polling place and its detail. Only
// the fetch for the current place and scope may publish a detail, so
// switching places never flashes the previous place's data.
type State struct {
	source   election.Source
	onChange func(Snapshot)

	mu         sync.Mutex
	scope      Scope
	generation uint64
	cancel     context.CancelFunc
	snapshot   Snapshot
	stopped    bool
	wg         sync.WaitGroup

	notifyMu sync.Mutex
}

// New creates an empty selection
func New(source election.Source, scope Scope, onChange func(Snapshot)) *State {
	if onChange == nil {
		onChange = func(Snapshot) {}
	}
	return &State{
		source:   source,
		scope:    scope,
		onChange: onChange,
	}
}

// Select focuses a place and loads its detail. Selecting the place
// already shown does nothing unless its last fetch failed.
func (s *State) Select(id election.PlaceID) {
	if id == "" {
		s.Close()
		return
	}

	s.mu.Lock()
	if s.stopped || (s.snapshot.PlaceID == id && s.snapshot.Err == nil) {
		s.mu.Unlock()
		return
	}
	s.startLocked(id)
}

// SetScope changes what details are fetched for. A selected place is
// refetched when the scope changes.
func (s *State) SetScope(scope Scope) {
	s.mu.Lock()
	if s.stopped || scope == s.scope {
		s.mu.Unlock()
		return
	}
	s.scope = scope
	if !s.snapshot.Selected() {
		s.mu.Unlock()
		return
	}
	s.startLocked(s.snapshot.PlaceID)
}

// startLocked must be called with mu held and releases it
func (s *State) startLocked(id election.PlaceID) {
	if s.cancel != nil {
		s.cancel()
	}
	s.generation++
	gen := s.generation
	scope := s.scope
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.snapshot = Snapshot{PlaceID: id, Loading: true}
	s.wg.Add(1)
	s.publishLocked()

	go s.fetch(ctx, gen, id, scope)
}

func (s *State) fetch(ctx context.Context, gen uint64, id election.PlaceID, scope Scope) {
	defer s.wg.Done()

	detail, err := s.source.PlaceDetail(ctx, id, scope.Office, scope.Year)
	if err == nil {
		election.RankDetail(detail, scope.Candidate)
	}

	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return
	}
	s.cancel = nil
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Printf("selection: error fetching place %s: %v", id, err)
	}
	s.snapshot = Snapshot{PlaceID: id, Detail: detail, Err: err}
	if err != nil {
		s.snapshot.Detail = nil
	}
	s.publishLocked()
}

func (s *State) publishLocked() {
	snap := s.snapshot
	s.notifyMu.Lock()
	s.mu.Unlock()
	defer s.notifyMu.Unlock()
	s.onChange(snap)
}

// Close deselects, dropping the detail and any fetch in flight
func (s *State) Close() {
	s.mu.Lock()
	if s.stopped || (!s.snapshot.Selected() && s.cancel == nil) {
		s.mu.Unlock()
		return
	}
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.generation++
	s.snapshot = Snapshot{}
	s.publishLocked()
}

// Snapshot returns the drawer state
func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot
}

// Stop cancels any fetch in flight and waits for it
func (s *State) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.generation++
	s.snapshot.Loading = false
	s.mu.Unlock()

	s.wg.Wait()
}
