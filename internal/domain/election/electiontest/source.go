// internal/domain/election/electiontest/source.go

// Package electiontest provides an in-memory election.Source whose
// behaviour is programmed per test.
package electiontest

import (
	"context"
	"encoding/json"
	"sync"

	"mapaeleitoral/internal/domain/election"
	"mapaeleitoral/internal/domain/filter"
)

// Source is a programmable election.Source. Nil functions return empty
// results. Every call is counted by method name.
type Source struct {
	ResultsFunc         func(ctx context.Context, q election.ResultQuery) ([]election.ResultPoint, error)
	RosterFunc          func(ctx context.Context, year filter.Year, office filter.Office) ([]election.Candidate, error)
	StrategicPointsFunc func(ctx context.Context) ([]election.StrategicPoint, error)
	PlaceDetailFunc     func(ctx context.Context, id election.PlaceID, office filter.Office, year filter.Year) (*election.PlaceDetail, error)
	SearchPlacesFunc    func(ctx context.Context, term string) ([]election.PlaceSummary, error)
	GrowthFunc          func(ctx context.Context, candidate int, office filter.Office) (*election.Growth, error)
	OptionsFunc         func(ctx context.Context, year filter.Year) (*election.Options, error)
	IntelligenceFunc    func(ctx context.Context, q election.IntelligenceQuery) (json.RawMessage, error)

	mu    sync.Mutex
	calls map[string]int
}

var _ election.Source = (*Source)(nil)

func (s *Source) record(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.calls == nil {
		s.calls = make(map[string]int)
	}
	s.calls[name]++
}

// Calls returns how many times a method was invoked
func (s *Source) Calls(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[name]
}

func (s *Source) Results(ctx context.Context, q election.ResultQuery) ([]election.ResultPoint, error) {
	s.record("Results")
	if s.ResultsFunc == nil {
		return []election.ResultPoint{}, nil
	}
	return s.ResultsFunc(ctx, q)
}

func (s *Source) Roster(ctx context.Context, year filter.Year, office filter.Office) ([]election.Candidate, error) {
	s.record("Roster")
	if s.RosterFunc == nil {
		return []election.Candidate{}, nil
	}
	return s.RosterFunc(ctx, year, office)
}

func (s *Source) StrategicPoints(ctx context.Context) ([]election.StrategicPoint, error) {
	s.record("StrategicPoints")
	if s.StrategicPointsFunc == nil {
		return []election.StrategicPoint{}, nil
	}
	return s.StrategicPointsFunc(ctx)
}

func (s *Source) PlaceDetail(ctx context.Context, id election.PlaceID, office filter.Office, year filter.Year) (*election.PlaceDetail, error) {
	s.record("PlaceDetail")
	if s.PlaceDetailFunc == nil {
		return &election.PlaceDetail{Place: election.PlaceInfo{ID: id}}, nil
	}
	return s.PlaceDetailFunc(ctx, id, office, year)
}

func (s *Source) SearchPlaces(ctx context.Context, term string) ([]election.PlaceSummary, error) {
	s.record("SearchPlaces")
	if s.SearchPlacesFunc == nil {
		return []election.PlaceSummary{}, nil
	}
	return s.SearchPlacesFunc(ctx, term)
}

func (s *Source) Growth(ctx context.Context, candidate int, office filter.Office) (*election.Growth, error) {
	s.record("Growth")
	if s.GrowthFunc == nil {
		return &election.Growth{Candidate: candidate, Office: office}, nil
	}
	return s.GrowthFunc(ctx, candidate, office)
}

func (s *Source) Options(ctx context.Context, year filter.Year) (*election.Options, error) {
	s.record("Options")
	if s.OptionsFunc == nil {
		return &election.Options{}, nil
	}
	return s.OptionsFunc(ctx, year)
}

func (s *Source) Intelligence(ctx context.Context, q election.IntelligenceQuery) (json.RawMessage, error) {
	s.record("Intelligence")
	if s.IntelligenceFunc == nil {
		return json.RawMessage(`{}`), nil
	}
	return s.IntelligenceFunc(ctx, q)
}

// Point builds a result point with coordinates and vote fields
func Point(id string, lat, lng float64, votes, localTotal int64) election.ResultPoint {
	return election.ResultPoint{
		ID:         election.PlaceID(id),
		Name:       "Local " + id,
		Position:   &election.LatLng{Lat: lat, Lng: lng},
		VoteCount:  Int64(votes),
		LocalTotal: Int64(localTotal),
	}
}

// AggregatePoint builds a point as returned without a candidate
func AggregatePoint(id string, lat, lng float64) election.ResultPoint {
	return election.ResultPoint{
		ID:       election.PlaceID(id),
		Name:     "Local " + id,
		Position: &election.LatLng{Lat: lat, Lng: lng},
	}
}

// Int64 returns a pointer to v
func Int64(v int64) *int64 {
	return &v
}
