// internal/domain/election/source.go

package election

import (
	"context"
	"encoding/json"

	"mapaeleitoral/internal/domain/filter"
)

// Source provides election data to the map pipeline. The REST client
// and the direct database store both implement it.
type Source interface {
	// Results returns the per-place aggregates matching a query
	Results(ctx context.Context, q ResultQuery) ([]ResultPoint, error)

	// Roster returns the candidates running for an office in a year
	Roster(ctx context.Context, year filter.Year, office filter.Office) ([]Candidate, error)

	// StrategicPoints returns every operator-curated marker
	StrategicPoints(ctx context.Context) ([]StrategicPoint, error)

	// PlaceDetail returns the candidate ranking at one place. A zero
	// year asks for the current cycle.
	PlaceDetail(ctx context.Context, id PlaceID, office filter.Office, year filter.Year) (*PlaceDetail, error)

	// SearchPlaces finds places by name
	SearchPlaces(ctx context.Context, term string) ([]PlaceSummary, error)

	// Growth returns the cycle-over-cycle change for a candidate
	Growth(ctx context.Context, candidate int, office filter.Office) (*Growth, error)

	// Options returns the filter selector contents for a year
	Options(ctx context.Context, year filter.Year) (*Options, error)

	// Intelligence returns the raw payload of an analysis panel
	Intelligence(ctx context.Context, q IntelligenceQuery) (json.RawMessage, error)
}
