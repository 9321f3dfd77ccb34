// internal/service/session/session.go

package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"mapaeleitoral/internal/clock"
	"mapaeleitoral/internal/domain/election"
	"mapaeleitoral/internal/domain/filter"
	"mapaeleitoral/internal/service/auxiliary"
	"mapaeleitoral/internal/service/camera"
	"mapaeleitoral/internal/service/render"
	"mapaeleitoral/internal/service/results"
	"mapaeleitoral/internal/service/selection"
)

var (
	// ErrClosed is returned by operations on a closed session
	ErrClosed = errors.New("session closed")
	// ErrNotFound is returned for an unknown session id
	ErrNotFound = errors.New("session not found")
	// ErrNoLayer is returned by layer queries before the first build
	ErrNoLayer = errors.New("no results layer")
	// ErrLimit is returned when the manager holds its maximum of sessions
	ErrLimit = errors.New("session limit reached")

	errNotStarted = errors.New("session not started")
	errNoView     = errors.New("no view attached")
)

// Config contains configuration for a session
type Config struct {
	Render    render.Config
	Camera    camera.Config
	Auxiliary auxiliary.Config
	// DefaultView is applied once on start when the URL names neither
	// office nor candidate. Nil disables it.
	DefaultView *filter.DefaultView
}

// DefaultConfig returns the session settings used by the map
func DefaultConfig() Config {
	return Config{
		Render:    render.DefaultConfig(),
		Camera:    camera.DefaultConfig(),
		Auxiliary: auxiliary.Config{SearchMinLength: 2},
		DefaultView: &filter.DefaultView{
			Year:      filter.Year2022,
			Office:    filter.OfficePresident,
			Candidate: 22,
		},
	}
}

// SpiderView is a cluster fanned out in place
type SpiderView struct {
	ClusterID int                `json:"clusterId"`
	Center    election.LatLng    `json:"center"`
	Legs      []render.SpiderLeg `json:"legs"`
}

// Session owns one map view: the filter state and its URL, the results
// query and layer, the side widgets, the camera and the selection. Its
// components never talk to each other directly; the session routes
// their changes and fans them out to observers.
type Session struct {
	id    string
	clock clock.Clock

	view      *viewProxy
	urlSync   *filter.URLSync
	results   *results.Fetcher
	aux       *auxiliary.Fetchers
	builder   *render.Builder
	camera    *camera.Controller
	selection *selection.State

	// opMu serialises filter transitions so their effects are issued
	// in the order the transitions happened
	opMu sync.Mutex

	mu         sync.Mutex
	state      filter.State
	started    bool
	closed     bool
	attached   bool
	lastActive time.Time
	auxViews   map[string]AuxiliaryView
	// fitVersion is the last point set version the camera was fitted to
	fitVersion uint64

	obsMu     sync.RWMutex
	observers map[int]Observer
	nextObs   int
}

// New creates a session reading from src
func New(id string, src election.Source, cfg Config, clk clock.Clock) *Session {
	if clk == nil {
		clk = clock.Real()
	}

	s := &Session{
		id:         id,
		clock:      clk,
		view:       &viewProxy{},
		lastActive: clk.Now(),
		auxViews:   make(map[string]AuxiliaryView),
		observers:  make(map[int]Observer),
	}

	s.urlSync = filter.NewURLSync(s.view, cfg.DefaultView)
	s.camera = camera.NewController(cfg.Camera)
	s.builder = render.NewBuilder(s.view, clk, cfg.Render, s.onLayerBuilt)
	s.results = results.NewFetcher(src, s.onResults)
	s.aux = auxiliary.NewFetchers(src, cfg.Auxiliary, s.onAuxiliary)
	s.selection = selection.New(src, selection.Scope{}, s.onSelection)

	return s
}

// ID returns the session id
func (s *Session) ID() string {
	return s.id
}

// Start initialises the filter state from the page URL and issues the
// first queries. The second result reports whether the default view
// was applied.
func (s *Session) Start(rawQuery string) (filter.State, bool, error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return filter.State{}, false, ErrClosed
	}
	if s.started {
		state := s.state
		s.mu.Unlock()
		return state, false, nil
	}
	state, applied := s.urlSync.Init(rawQuery)
	s.state = state
	s.started = true
	s.touchLocked()
	s.mu.Unlock()

	s.aux.LoadStrategicPoints()
	s.apply(state, true)
	return state, applied, nil
}

// State returns the current filter state
func (s *Session) State() filter.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Update replaces the filter state. The URL is rewritten, and only the
// queries whose inputs changed are issued. Text fields are normalised,
// and a change of office or year drops the candidate as WithOffice and
// WithYear do; OpenIntelligence is the way to re-scope to a candidate.
func (s *Session) Update(next filter.State) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	prev := s.State()
	next = next.Normalize()
	if next.Office != prev.Office || next.Year != prev.Year {
		next.CandidateNumber = 0
	}
	return s.updateLocked(next)
}

// Set changes one filter field named by its URL key
func (s *Session) Set(key, value string) (filter.State, error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	next, err := filter.Set(s.State(), key, value)
	if err != nil {
		return s.State(), err
	}
	if err := s.updateLocked(next); err != nil {
		return s.State(), err
	}
	return next, nil
}

// updateLocked must be called with opMu held
func (s *Session) updateLocked(next filter.State) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if !s.started {
		s.mu.Unlock()
		return errNotStarted
	}
	prev := s.state
	s.touchLocked()
	if next == prev {
		s.mu.Unlock()
		return nil
	}
	s.state = next
	s.mu.Unlock()

	s.urlSync.Push(next)
	s.apply(next, !next.SameQuery(prev))
	return nil
}

// apply propagates a filter state to the components that depend on it
func (s *Session) apply(state filter.State, queryChanged bool) {
	if queryChanged {
		// A new query may move the camera to its results again
		s.camera.Release()
		s.results.Apply(state)
	}
	s.aux.ApplyState(state)
	s.selection.SetScope(selection.Scope{
		Office:    state.Office,
		Year:      state.Year,
		Candidate: state.CandidateNumber,
	})
	s.notify(EventFilter, filterView(state))
}

// SelectPlace opens the detail drawer for a polling place and pans the
// camera to it when its position is known.
func (s *Session) SelectPlace(id election.PlaceID) error {
	if err := s.touch(); err != nil {
		return err
	}
	s.selection.Select(id)
	for _, p := range s.results.Snapshot().Points {
		if p.ID == id && render.ValidPosition(p.Position) {
			s.camera.PanTo(*p.Position)
			break
		}
	}
	return nil
}

// SelectSearchResult flies to a place found by search and opens its
// detail drawer. The search results are cleared.
func (s *Session) SelectSearchResult(id election.PlaceID) error {
	if err := s.touch(); err != nil {
		return err
	}

	var hit *election.PlaceSummary
	for _, p := range s.aux.Search.Result().Value {
		if p.ID == id {
			p := p
			hit = &p
			break
		}
	}
	if hit == nil {
		return fmt.Errorf("search result %s: %w", id, election.ErrNotFound)
	}

	if render.ValidPosition(hit.Position) {
		s.camera.FlyTo(*hit.Position, 0)
	}
	s.selection.Select(id)
	s.aux.SearchPlaces("")
	return nil
}

// ClosePlace closes the detail drawer
func (s *Session) ClosePlace() error {
	if err := s.touch(); err != nil {
		return err
	}
	s.selection.Close()
	return nil
}

// Search runs a place search
func (s *Session) Search(term string) error {
	if err := s.touch(); err != nil {
		return err
	}
	s.aux.SearchPlaces(term)
	return nil
}

// OpenIntelligence re-scopes the map to a candidate and opens one of
// their analysis panels.
func (s *Session) OpenIntelligence(panel election.IntelligencePanel, candidate int, office filter.Office, year filter.Year) error {
	if !panel.Valid() {
		return fmt.Errorf("unknown panel %q", panel)
	}

	s.opMu.Lock()
	defer s.opMu.Unlock()

	next := s.State().WithScope(year, office, candidate)
	if err := s.updateLocked(next); err != nil {
		return err
	}
	s.aux.OpenIntelligence(election.IntelligenceQuery{
		Panel:     panel,
		Candidate: next.CandidateNumber,
		Office:    next.Office,
		Year:      next.Year,
	})
	return nil
}

// CloseIntelligence closes the open analysis panel
func (s *Session) CloseIntelligence() error {
	if err := s.touch(); err != nil {
		return err
	}
	s.aux.CloseIntelligence()
	return nil
}

// RefreshStrategicPoints reloads the strategic markers after they were
// edited elsewhere
func (s *Session) RefreshStrategicPoints() error {
	if err := s.touch(); err != nil {
		return err
	}
	s.aux.StrategicPoints.Refresh()
	return nil
}

// ExpandCluster zooms into a cluster glyph, or fans it out in place
// when no zoom level separates its markers.
func (s *Session) ExpandCluster(id int) error {
	if err := s.touch(); err != nil {
		return err
	}
	layer := s.builder.Current()
	if layer == nil {
		return ErrNoLayer
	}

	cluster, err := layer.Index.Cluster(id)
	if err != nil {
		return err
	}
	zoom, err := layer.Index.ExpansionZoom(id)
	if err != nil {
		return err
	}
	if zoom <= layer.Index.MaxZoom() {
		s.camera.FlyTo(cluster.Position, zoom)
		return nil
	}

	legs, err := layer.Index.Spiderfy(id)
	if err != nil {
		return err
	}
	s.notify(EventSpiderfy, SpiderView{ClusterID: id, Center: cluster.Position, Legs: legs})
	return nil
}

// Clusters returns the glyphs of the current layer inside a viewport
func (s *Session) Clusters(box render.Box, zoom int) ([]render.Cluster, error) {
	if err := s.touch(); err != nil {
		return nil, err
	}
	layer := s.builder.Current()
	if layer == nil {
		return nil, ErrNoLayer
	}
	return layer.Index.Clusters(box, zoom), nil
}

// Attach connects a view. The view receives the current URL, any
// pending camera intent and a fresh copy of the results layer.
func (s *Session) Attach(v View) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.attached = true
	s.touchLocked()
	s.mu.Unlock()

	s.view.set(v)
	if query := s.urlSync.Current(); query != "" {
		v.ReplaceQuery(query)
	}
	s.camera.Attach(s.view)
	s.builder.Redraw()
	return nil
}

// Detach disconnects a view if it is still the attached one
func (s *Session) Detach(v View) {
	if !s.view.clear(v) {
		return
	}
	s.camera.Attach(nil)

	s.mu.Lock()
	s.attached = false
	s.touchLocked()
	s.mu.Unlock()
}

// Idle reports whether no view is attached and nothing happened since
// the cutoff
func (s *Session) Idle(cutoff time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.attached && s.lastActive.Before(cutoff)
}

// Subscribe registers an observer and returns its cancel function
func (s *Session) Subscribe(o Observer) func() {
	s.obsMu.Lock()
	defer s.obsMu.Unlock()
	id := s.nextObs
	s.nextObs++
	s.observers[id] = o
	return func() {
		s.obsMu.Lock()
		defer s.obsMu.Unlock()
		delete(s.observers, id)
	}
}

func (s *Session) notify(kind string, payload interface{}) {
	s.obsMu.RLock()
	observers := make([]Observer, 0, len(s.observers))
	for _, o := range s.observers {
		observers = append(observers, o)
	}
	s.obsMu.RUnlock()

	event := Event{Session: s.id, Kind: kind, Payload: payload}
	for _, o := range observers {
		o.Notify(event)
	}
}

func (s *Session) onResults(snap results.Snapshot) {
	s.notify(EventResults, resultsView(snap, s.aux.Candidates()))
	if snap.Version > 0 {
		s.builder.Rebuild(snap.Version, snap.Points)
	}
}

// onLayerBuilt fits the camera once per point set. Redraws of a version
// already fitted leave the camera where the operator put it.
func (s *Session) onLayerBuilt(layer render.Layer) {
	s.mu.Lock()
	if layer.Version <= s.fitVersion {
		s.mu.Unlock()
		return
	}
	s.fitVersion = layer.Version
	s.mu.Unlock()

	if layer.Summary.Bounds != nil {
		s.camera.FitBounds(*layer.Summary.Bounds)
	}
}

func (s *Session) onAuxiliary(u auxiliary.Update) {
	view := auxiliaryView(u)
	s.mu.Lock()
	s.auxViews[string(u.Kind)] = view
	s.mu.Unlock()

	s.notify(string(u.Kind), view)

	// The results heading shows the candidate's roster name
	if roster, ok := u.Value.([]election.Candidate); ok && u.Kind == auxiliary.KindRoster && !u.Loading {
		s.notify(EventResults, resultsView(s.results.Snapshot(), roster))
	}
}

func (s *Session) onSelection(snap selection.Snapshot) {
	s.notify(EventSelection, selectionView(snap))
}

// Snapshot returns the whole visible state
func (s *Session) Snapshot() Snapshot {
	state := s.State()
	snap := Snapshot{
		ID:        s.id,
		Filter:    filterView(state),
		Results:   resultsView(s.results.Snapshot(), s.aux.Candidates()),
		Selection: selectionView(s.selection.Snapshot()),
		Auxiliary: make(map[string]AuxiliaryView),
	}
	if layer := s.builder.Current(); layer != nil {
		snap.Layer = &LayerView{
			Version: layer.Version,
			Markers: layer.Summary.Markers,
			Skipped: layer.Summary.Skipped,
			HasHeat: layer.Summary.HasHeat,
		}
	}

	s.mu.Lock()
	for k, v := range s.auxViews {
		snap.Auxiliary[k] = v
	}
	s.mu.Unlock()
	return snap
}

func (s *Session) touch() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.touchLocked()
	return nil
}

func (s *Session) touchLocked() {
	s.lastActive = s.clock.Now()
}

// Close stops every component and notifies observers. In-flight
// fetches are cancelled and their outcomes ignored.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.results.Close()
	s.builder.Close()
	s.aux.Close()
	s.selection.Stop()

	s.notify(EventClosed, nil)

	s.obsMu.Lock()
	s.observers = make(map[int]Observer)
	s.obsMu.Unlock()
}
