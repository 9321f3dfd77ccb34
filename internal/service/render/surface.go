// internal/service/render/surface.go

package render

import (
	"math"

	"mapaeleitoral/internal/domain/election"
)

// Marker is the render primitive for one polling place
type Marker struct {
	ID           election.PlaceID `json:"id"`
	Name         string           `json:"name"`
	Position     election.LatLng  `json:"position"`
	Votes        *int64           `json:"votes,omitempty"`
	Percent      *float64         `json:"percent,omitempty"`
	Neighborhood string           `json:"neighborhood,omitempty"`
	City         string           `json:"city,omitempty"`
}

// MarkerFor builds the primitive for a point. The second result is false
// when the point cannot be placed on the map.
func MarkerFor(p election.ResultPoint) (Marker, bool) {
	if !ValidPosition(p.Position) {
		return Marker{}, false
	}
	return Marker{
		ID:           p.ID,
		Name:         p.Name,
		Position:     *p.Position,
		Votes:        p.VoteCount,
		Percent:      p.PercentOfLocalTotal,
		Neighborhood: p.Neighborhood,
		City:         p.City,
	}, true
}

// ValidPosition reports whether a coordinate can be placed on the map
func ValidPosition(pos *election.LatLng) bool {
	if pos == nil {
		return false
	}
	if math.IsNaN(pos.Lat) || math.IsNaN(pos.Lng) || math.IsInf(pos.Lat, 0) || math.IsInf(pos.Lng, 0) {
		return false
	}
	return pos.Lat >= -90 && pos.Lat <= 90 && pos.Lng >= -180 && pos.Lng <= 180
}

// LayerSummary describes a finished build
type LayerSummary struct {
	Version uint64 `json:"version"`
	Markers int    `json:"markers"`
	Chunks  int    `json:"chunks"`
	Skipped int    `json:"skipped"`
	HasHeat bool   `json:"hasHeat"`
	Bounds  *Box   `json:"bounds,omitempty"`
}

// Surface is the map canvas the results layer is drawn on. Every call
// is tagged with the version of the point set it belongs to. The
// builder is the only writer of the results sub-layer.
type Surface interface {
	// ResetLayer releases the previous results layer and prepares an
	// empty one for version
	ResetLayer(version uint64) error

	// AddMarkers appends one chunk of markers to the layer
	AddMarkers(version uint64, markers []Marker) error

	// SetHeat installs the heat layer
	SetHeat(version uint64, heat *HeatLayer) error

	// LayerDone reports that every chunk of version has been added
	LayerDone(version uint64, summary LayerSummary) error
}
