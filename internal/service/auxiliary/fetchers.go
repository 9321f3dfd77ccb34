// internal/service/auxiliary/fetchers.go

package auxiliary

import (
	"context"
	"encoding/json"
	"strings"
	"unicode/utf8"

	"mapaeleitoral/internal/domain/election"
	"mapaeleitoral/internal/domain/filter"
)

// Kind names an auxiliary widget
type Kind string

const (
	KindRoster          Kind = "roster"
	KindGrowth          Kind = "growth"
	KindStrategicPoints Kind = "strategic_points"
	KindOptions         Kind = "options"
	KindSearch          Kind = "search"
	KindIntelligence    Kind = "intelligence"
)

// Update is a change in one auxiliary widget
type Update struct {
	Kind    Kind
	Loading bool
	Value   interface{}
	Err     error
}

// RosterKey scopes the candidate roster
type RosterKey struct {
	Year   filter.Year
	Office filter.Office
}

// GrowthKey scopes the cycle-over-cycle growth card
type GrowthKey struct {
	Candidate int
	Office    filter.Office
}

// Config contains configuration for the auxiliary fetchers
type Config struct {
	// SearchMinLength is the shortest term that issues a search
	SearchMinLength int
}

// Fetchers groups the independent queries that feed the view's side
// widgets. Each one reacts only to its own slice of the filter state.
type Fetchers struct {
	Roster          *Query[RosterKey, []election.Candidate]
	Growth          *Query[GrowthKey, *election.Growth]
	StrategicPoints *Query[struct{}, []election.StrategicPoint]
	Options         *Query[filter.Year, *election.Options]
	Search          *Query[string, []election.PlaceSummary]
	Intelligence    *Query[election.IntelligenceQuery, json.RawMessage]
}

// NewFetchers wires every auxiliary query to the source. onUpdate
// receives every widget change.
func NewFetchers(src election.Source, cfg Config, onUpdate func(Update)) *Fetchers {
	if onUpdate == nil {
		onUpdate = func(Update) {}
	}
	if cfg.SearchMinLength <= 0 {
		cfg.SearchMinLength = 2
	}

	return &Fetchers{
		Roster: NewQuery(QueryConfig[RosterKey, []election.Candidate]{
			Name: "roster",
			Fetch: func(ctx context.Context, k RosterKey) ([]election.Candidate, error) {
				return src.Roster(ctx, k.Year, k.Office)
			},
			Skip: func(k RosterKey) bool {
				return !k.Year.Valid() || !k.Office.Valid()
			},
			OnChange: forward[RosterKey, []election.Candidate](KindRoster, onUpdate),
		}),
		Growth: NewQuery(QueryConfig[GrowthKey, *election.Growth]{
			Name: "growth",
			Fetch: func(ctx context.Context, k GrowthKey) (*election.Growth, error) {
				return src.Growth(ctx, k.Candidate, k.Office)
			},
			Skip: func(k GrowthKey) bool {
				return k.Candidate <= 0 || !k.Office.Valid()
			},
			OnChange: forward[GrowthKey, *election.Growth](KindGrowth, onUpdate),
		}),
		StrategicPoints: NewQuery(QueryConfig[struct{}, []election.StrategicPoint]{
			Name: "strategic points",
			Fetch: func(ctx context.Context, _ struct{}) ([]election.StrategicPoint, error) {
				return src.StrategicPoints(ctx)
			},
			OnChange: forward[struct{}, []election.StrategicPoint](KindStrategicPoints, onUpdate),
		}),
		Options: NewQuery(QueryConfig[filter.Year, *election.Options]{
			Name: "options",
			Fetch: func(ctx context.Context, y filter.Year) (*election.Options, error) {
				return src.Options(ctx, y)
			},
			Skip: func(y filter.Year) bool {
				return !y.Valid()
			},
			OnChange: forward[filter.Year, *election.Options](KindOptions, onUpdate),
		}),
		Search: NewQuery(QueryConfig[string, []election.PlaceSummary]{
			Name: "search",
			Fetch: func(ctx context.Context, term string) ([]election.PlaceSummary, error) {
				return src.SearchPlaces(ctx, term)
			},
			Skip: func(term string) bool {
				return utf8.RuneCountInString(term) < cfg.SearchMinLength
			},
			OnChange: forward[string, []election.PlaceSummary](KindSearch, onUpdate),
		}),
		Intelligence: NewQuery(QueryConfig[election.IntelligenceQuery, json.RawMessage]{
			Name: "intelligence",
			Fetch: func(ctx context.Context, q election.IntelligenceQuery) (json.RawMessage, error) {
				return src.Intelligence(ctx, q)
			},
			Skip: func(q election.IntelligenceQuery) bool {
				return !q.Complete()
			},
			OnChange: forward[election.IntelligenceQuery, json.RawMessage](KindIntelligence, onUpdate),
		}),
	}
}

func forward[K comparable, V any](kind Kind, onUpdate func(Update)) func(Result[K, V]) {
	return func(r Result[K, V]) {
		onUpdate(Update{Kind: kind, Loading: r.Loading, Value: r.Value, Err: r.Err})
	}
}

// ApplyState moves the state-keyed queries to the slices of s they
// depend on. Queries whose slice did not change are left alone.
func (f *Fetchers) ApplyState(s filter.State) {
	f.Roster.Set(RosterKey{Year: s.Year, Office: s.Office})
	f.Growth.Set(GrowthKey{Candidate: s.CandidateNumber, Office: s.Office})
	f.Options.Set(s.Year)
}

// LoadStrategicPoints fetches the strategic markers once per session
func (f *Fetchers) LoadStrategicPoints() {
	f.StrategicPoints.Set(struct{}{})
}

// SearchPlaces runs a place search. Terms shorter than the minimum
// length clear the results without a request.
func (f *Fetchers) SearchPlaces(term string) {
	f.Search.Set(strings.TrimSpace(term))
}

// OpenIntelligence loads an analysis panel
func (f *Fetchers) OpenIntelligence(q election.IntelligenceQuery) {
	f.Intelligence.Set(q)
}

// CloseIntelligence drops the open panel
func (f *Fetchers) CloseIntelligence() {
	f.Intelligence.Set(election.IntelligenceQuery{})
}

// Candidates returns the current roster
func (f *Fetchers) Candidates() []election.Candidate {
	return f.Roster.Result().Value
}

// Close stops every query
func (f *Fetchers) Close() {
	f.Roster.Close()
	f.Growth.Close()
	f.StrategicPoints.Close()
	f.Options.Close()
	f.Search.Close()
	f.Intelligence.Close()
}
