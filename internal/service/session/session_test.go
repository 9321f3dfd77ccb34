package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"mapaeleitoral/internal/clock"
	"mapaeleitoral/internal/domain/election"
	"mapaeleitoral/internal/domain/election/electiontest"
	"mapaeleitoral/internal/domain/filter"
	"mapaeleitoral/internal/service/camera"
	"mapaeleitoral/internal/service/render"
)

// recordingView is a View and Observer that remembers everything it was
// told
type recordingView struct {
	mu      sync.Mutex
	queries []string
	markers map[uint64]int
	done    []render.LayerSummary
	camera  []camera.Intent
	events  []Event
}

func newRecordingView() *recordingView {
	return &recordingView{markers: make(map[uint64]int)}
}

func (v *recordingView) ResetLayer(version uint64) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.markers[version] = 0
	return nil
}

func (v *recordingView) AddMarkers(version uint64, markers []render.Marker) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.markers[version] += len(markers)
	return nil
}

func (v *recordingView) SetHeat(version uint64, heat *render.HeatLayer) error {
	return nil
}

func (v *recordingView) LayerDone(version uint64, summary render.LayerSummary) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.done = append(v.done, summary)
	return nil
}

func (v *recordingView) ApplyCamera(intent camera.Intent) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.camera = append(v.camera, intent)
	return nil
}

func (v *recordingView) ReplaceQuery(query string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.queries = append(v.queries, query)
}

func (v *recordingView) Notify(e Event) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.events = append(v.events, e)
}

func (v *recordingView) lastQuery() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	if len(v.queries) == 0 {
		return ""
	}
	return v.queries[len(v.queries)-1]
}

func (v *recordingView) layersDone() []render.LayerSummary {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]render.LayerSummary(nil), v.done...)
}

func (v *recordingView) intents() []camera.Intent {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]camera.Intent(nil), v.camera...)
}

func (v *recordingView) eventsOf(kind string) []Event {
	v.mu.Lock()
	defer v.mu.Unlock()
	var out []Event
	for _, e := range v.events {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func resultsSource() *electiontest.Source {
	return &electiontest.Source{
		ResultsFunc: func(ctx context.Context, q election.ResultQuery) ([]election.ResultPoint, error) {
			if q.Candidate == 0 {
				return []election.ResultPoint{
					electiontest.AggregatePoint("1", -22.90, -43.20),
					electiontest.AggregatePoint("2", -22.80, -43.10),
				}, nil
			}
			return []election.ResultPoint{
				electiontest.Point("1", -22.90, -43.20, 10, 100),
				electiontest.Point("2", -22.80, -43.10, 20, 100),
				electiontest.Point("3", -22.70, -43.00, 30, 100),
			}, nil
		},
		RosterFunc: func(ctx context.Context, year filter.Year, office filter.Office) ([]election.Candidate, error) {
			return []election.Candidate{{Number: 22, Name: "FULANO", Party: "PL"}}, nil
		},
		SearchPlacesFunc: func(ctx context.Context, term string) ([]election.PlaceSummary, error) {
			return []election.PlaceSummary{
				{ID: "77", Name: "CIEP " + term, Position: &election.LatLng{Lat: -22.95, Lng: -43.25}},
			}, nil
		},
	}
}

func startedSession(t *testing.T, src election.Source, rawQuery string) (*Session, *recordingView) {
	t.Helper()
	s := New("s1", src, DefaultConfig(), clock.Real())
	view := newRecordingView()
	s.Subscribe(view)
	if err := s.Attach(view); err != nil {
		t.Fatalf("Attach: %v", err)
	}
	if _, _, err := s.Start(rawQuery); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(s.Close)
	return s, view
}

func TestStartAppliesDefaultViewOnEmptyURL(t *testing.T) {
	s := New("s1", resultsSource(), DefaultConfig(), clock.Real())
	defer s.Close()
	view := newRecordingView()
	s.Attach(view)

	state, applied, err := s.Start("")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !applied || state.CandidateNumber != 22 || state.Office != filter.OfficePresident || state.Year != filter.Year2022 {
		t.Errorf("expected default view, got %+v (applied %v)", state, applied)
	}
	if got := view.lastQuery(); got != "ano=2022&cargo=PRESIDENTE&candidato=22" {
		t.Errorf("unexpected URL %q", got)
	}

	// A second start is a no-op
	if _, applied, _ := s.Start("cargo=SENADOR"); applied || s.State().Office != filter.OfficePresident {
		t.Error("second start changed the state")
	}
}

func TestStartHonoursAggregateURL(t *testing.T) {
	s, _ := startedSession(t, resultsSource(), "ano=2018&cargo=GOVERNADOR")
	state := s.State()
	if state.HasCandidate() || state.Office != filter.OfficeGovernor || state.Year != filter.Year2018 {
		t.Errorf("expected URL state, got %+v", state)
	}
}

func TestResultsFlowIntoLayerAndCamera(t *testing.T) {
	src := resultsSource()
	s, view := startedSession(t, src, "cargo=PRESIDENTE&candidato=22")

	eventually(t, "layer", func() bool { return len(view.layersDone()) == 1 })
	done := view.layersDone()[0]
	if done.Markers != 3 || !done.HasHeat {
		t.Errorf("unexpected layer %+v", done)
	}

	eventually(t, "fit", func() bool { return len(view.intents()) == 1 })
	fit := view.intents()[0]
	if fit.Kind != camera.KindFitBounds || fit.Bounds.SouthWest.Lat != -22.90 {
		t.Errorf("unexpected camera intent %+v", fit)
	}

	snap := s.Snapshot()
	if snap.Results.Stats.TotalVotes != 60 || snap.Results.Stats.Percent != 20 {
		t.Errorf("unexpected stats %+v", snap.Results.Stats)
	}
	eventually(t, "roster name", func() bool {
		return s.Snapshot().Results.Stats.Name == "FULANO (PL)"
	})
	if snap.Layer == nil || snap.Layer.Markers != 3 {
		t.Errorf("unexpected layer view %+v", snap.Layer)
	}
}

func TestUpdateIssuesOnlyDependentQueries(t *testing.T) {
	src := resultsSource()
	s, view := startedSession(t, src, "cargo=PRESIDENTE&candidato=22")
	eventually(t, "first layer", func() bool { return len(view.layersDone()) == 1 })

	if _, err := s.Set(filter.KeyZone, "4"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	eventually(t, "second layer", func() bool { return len(view.layersDone()) == 2 })

	if got := src.Calls("Roster"); got != 1 {
		t.Errorf("zone change refetched roster (%d calls)", got)
	}
	if got := src.Calls("Results"); got != 2 {
		t.Errorf("expected 2 results requests, got %d", got)
	}
	if got := view.lastQuery(); got != "ano=2022&cargo=PRESIDENTE&zona=4&candidato=22" {
		t.Errorf("unexpected URL %q", got)
	}

	// Toggles rewrite the URL without a new query
	if _, err := s.Set(filter.KeyHeatmap, "0"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if got := src.Calls("Results"); got != 2 {
		t.Errorf("toggle issued a results request")
	}
	if got := view.lastQuery(); got != "ano=2022&cargo=PRESIDENTE&zona=4&candidato=22&calor=0" {
		t.Errorf("unexpected URL %q", got)
	}
}

func TestOfficeChangeClearsCandidate(t *testing.T) {
	s, _ := startedSession(t, resultsSource(), "cargo=PRESIDENTE&candidato=22")

	state, err := s.Set(filter.KeyOffice, "GOVERNADOR")
	if err != nil {
		t.Fatalf("Set: %v", err)
	}
	if state.HasCandidate() {
		t.Errorf("candidate survived office change: %+v", state)
	}

	if _, err := s.Set("nope", "1"); !errors.Is(err, filter.ErrUnknownKey) {
		t.Errorf("expected unknown key error, got %v", err)
	}
}

func TestOpenIntelligenceRescopes(t *testing.T) {
	src := resultsSource()
	s, view := startedSession(t, src, "ano=2022&cargo=PRESIDENTE")

	err := s.OpenIntelligence(election.PanelExecutiveSummary, 1234, filter.OfficeFederalDeputy, filter.Year2018)
	if err != nil {
		t.Fatalf("OpenIntelligence: %v", err)
	}
	state := s.State()
	if state.CandidateNumber != 1234 || state.Office != filter.OfficeFederalDeputy || state.Year != filter.Year2018 {
		t.Errorf("expected re-scoped state, got %+v", state)
	}
	eventually(t, "panel", func() bool { return src.Calls("Intelligence") == 1 })
	eventually(t, "panel event", func() bool {
		for _, e := range view.eventsOf("intelligence") {
			if v := e.Payload.(AuxiliaryView); !v.Loading && v.Value != nil {
				return true
			}
		}
		return false
	})

	if err := s.OpenIntelligence("bogus", 1, filter.OfficePresident, filter.Year2022); err == nil {
		t.Error("expected error for unknown panel")
	}
}

func TestSelectSearchResultFliesAndSelects(t *testing.T) {
	src := resultsSource()
	s, view := startedSession(t, src, "cargo=PRESIDENTE&candidato=22")
	eventually(t, "fit", func() bool { return len(view.intents()) == 1 })

	s.Search("ciep")
	eventually(t, "search", func() bool { return len(s.aux.Search.Result().Value) == 1 })

	if err := s.SelectSearchResult("77"); err != nil {
		t.Fatalf("SelectSearchResult: %v", err)
	}
	intents := view.intents()
	last := intents[len(intents)-1]
	if last.Kind != camera.KindFlyTo || last.Zoom != 15 || last.Center.Lat != -22.95 {
		t.Errorf("unexpected fly-to %+v", last)
	}
	eventually(t, "detail", func() bool { return s.Snapshot().Selection.Detail != nil })
	if s.Snapshot().Selection.PlaceID != "77" {
		t.Errorf("expected place 77 selected")
	}
	if s.aux.Search.Result().Value != nil {
		t.Error("expected search results cleared")
	}

	if err := s.SelectSearchResult("missing"); !errors.Is(err, election.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}

	s.ClosePlace()
	if s.Snapshot().Selection.PlaceID != "" {
		t.Error("expected drawer closed")
	}
}

func TestExpandClusterSpiderfiesColocatedMarkers(t *testing.T) {
	src := &electiontest.Source{
		ResultsFunc: func(ctx context.Context, q election.ResultQuery) ([]election.ResultPoint, error) {
			return []election.ResultPoint{
				electiontest.Point("1", -22.9, -43.2, 1, 10),
				electiontest.Point("2", -22.9, -43.2, 2, 10),
				electiontest.Point("3", -22.9, -43.2, 3, 10),
			}, nil
		},
	}
	s, view := startedSession(t, src, "cargo=PRESIDENTE&candidato=22")

	eventually(t, "layer", func() bool { return s.builder.Current() != nil })

	clusters, err := s.Clusters(render.Box{
		SouthWest: election.LatLng{Lat: -23, Lng: -44},
		NorthEast: election.LatLng{Lat: -22, Lng: -43},
	}, 5)
	if err != nil {
		t.Fatalf("Clusters: %v", err)
	}
	if len(clusters) != 1 || clusters[0].Count != 3 {
		t.Fatalf("expected one group of 3, got %+v", clusters)
	}

	if err := s.ExpandCluster(clusters[0].ID); err != nil {
		t.Fatalf("ExpandCluster: %v", err)
	}
	events := view.eventsOf(EventSpiderfy)
	if len(events) != 1 || len(events[0].Payload.(SpiderView).Legs) != 3 {
		t.Errorf("expected one spiderfy event with 3 legs, got %+v", events)
	}
}

func TestClosedSessionRejectsOperations(t *testing.T) {
	s, view := startedSession(t, resultsSource(), "")
	s.Close()

	if err := s.Update(filter.Default()); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
	if err := s.Search("ab"); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
	if err := s.Attach(view); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
	if len(view.eventsOf(EventClosed)) != 1 {
		t.Error("expected a closed event")
	}
}

func TestManagerLifecycle(t *testing.T) {
	clk := clock.Fake(time.Unix(1000, 0))
	var mu sync.Mutex
	kinds := make(map[string]int)
	observer := ObserverFunc(func(e Event) {
		mu.Lock()
		defer mu.Unlock()
		kinds[e.Kind]++
	})

	m := NewManager(resultsSource(), ManagerConfig{
		Session:     DefaultConfig(),
		IdleTimeout: time.Minute,
		MaxSessions: 2,
	}, clk, observer)

	a, err := m.Create("cargo=SENADOR")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	b, err := m.Create("")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if a.ID() == b.ID() {
		t.Fatal("expected distinct ids")
	}
	if _, err := m.Create(""); !errors.Is(err, ErrLimit) {
		t.Errorf("expected session limit error, got %v", err)
	}

	got, err := m.Get(a.ID())
	if err != nil || got != a {
		t.Fatalf("Get: %v", err)
	}
	if _, err := m.Get("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	// b keeps a view attached and stays alive
	b.Attach(newRecordingView())
	clk.Advance(2 * time.Minute)
	if closed := m.CloseIdle(); closed != 1 {
		t.Errorf("expected 1 idle session closed, got %d", closed)
	}
	if _, err := m.Get(a.ID()); !errors.Is(err, ErrNotFound) {
		t.Error("idle session still registered")
	}

	mu.Lock()
	if kinds[EventFilter] < 2 || kinds[EventClosed] != 1 {
		t.Errorf("unexpected observed events %v", kinds)
	}
	mu.Unlock()

	if err := m.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if m.Len() != 0 {
		t.Errorf("expected no sessions after shutdown, got %d", m.Len())
	}
	if err := m.Close(b.ID()); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after shutdown, got %v", err)
	}
}

func TestLayerQueriesBeforeFirstBuild(t *testing.T) {
	s := New("s1", resultsSource(), DefaultConfig(), clock.Real())
	defer s.Close()

	if err := s.ExpandCluster(0); !errors.Is(err, ErrNoLayer) {
		t.Errorf("expected ErrNoLayer, got %v", err)
	}
	if _, err := s.Clusters(render.Box{}, 3); !errors.Is(err, ErrNoLayer) {
		t.Errorf("expected ErrNoLayer, got %v", err)
	}
}

func TestUpdateDropsCandidateOnOfficeChange(t *testing.T) {
	s, view := startedSession(t, resultsSource(), "cargo=PRESIDENTE&candidato=22")

	next := s.State()
	next.Office = filter.OfficeGovernor
	next.Municipality = " NITERÓI "
	if err := s.Update(next); err != nil {
		t.Fatalf("Update: %v", err)
	}

	state := s.State()
	if state.HasCandidate() || state.Office != filter.OfficeGovernor || state.Municipality != "NITERÓI" {
		t.Errorf("unexpected state %+v", state)
	}
	if q := view.lastQuery(); q != "ano=2022&cargo=GOVERNADOR&municipio=NITER%C3%93I" {
		t.Errorf("unexpected URL %q", q)
	}

	// the same office keeps an explicitly chosen candidate
	next = s.State()
	next.CandidateNumber = 15
	if err := s.Update(next); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if s.State().CandidateNumber != 15 {
		t.Errorf("expected candidate 15, got %+v", s.State())
	}
}

func TestReattachDoesNotRefitCamera(t *testing.T) {
	s, first := startedSession(t, resultsSource(), "cargo=PRESIDENTE&candidato=22")
	eventually(t, "fit", func() bool { return len(first.intents()) == 1 })

	s.Detach(first)
	second := newRecordingView()
	if err := s.Attach(second); err != nil {
		t.Fatalf("Attach: %v", err)
	}

	eventually(t, "redraw", func() bool { return len(second.layersDone()) == 1 })
	time.Sleep(50 * time.Millisecond)
	if intents := second.intents(); len(intents) != 0 {
		t.Errorf("redraw should not move the camera, got %+v", intents)
	}
	if q := second.lastQuery(); q != "ano=2022&cargo=PRESIDENTE&candidato=22" {
		t.Errorf("expected URL replay, got %q", q)
	}
}
