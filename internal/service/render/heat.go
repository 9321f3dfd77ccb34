// internal/service/render/heat.go

package render

import (
	"mapaeleitoral/internal/domain/election"
)

// HeatConfig contains configuration for the heat layer
type HeatConfig struct {
	// CeilingRatio scales the largest vote count into the layer's
	// intensity ceiling
	CeilingRatio float64
	MinOpacity   float64
	Radius       int
	Blur         int
	MaxZoom      int
}

// DefaultHeatConfig returns the heat layer settings used by the map
func DefaultHeatConfig() HeatConfig {
	return HeatConfig{
		CeilingRatio: 0.4,
		MinOpacity:   0.2,
		Radius:       25,
		Blur:         20,
		MaxZoom:      12,
	}
}

// HeatSample is a weighted point encoded as [lat, lng, intensity]
type HeatSample [3]float64

// HeatLayer is the weighted sample set plus its rendering options
type HeatLayer struct {
	Samples    []HeatSample `json:"samples"`
	Max        float64      `json:"max"`
	MinOpacity float64      `json:"minOpacity"`
	Radius     int          `json:"radius"`
	Blur       int          `json:"blur"`
	MaxZoom    int          `json:"maxZoom"`
}

// BuildHeat returns the heat layer for a point set, or nil when no point
// has a positive vote count. Each sample's intensity is its vote count
// and the ceiling sits below the largest count so one outlier does not
// saturate the gradient.
func BuildHeat(points []election.ResultPoint, cfg HeatConfig) *HeatLayer {
	var maxVote int64
	samples := make([]HeatSample, 0, len(points))
	for _, p := range points {
		if !ValidPosition(p.Position) {
			continue
		}
		votes := p.Votes()
		if votes > maxVote {
			maxVote = votes
		}
		samples = append(samples, HeatSample{p.Position.Lat, p.Position.Lng, float64(votes)})
	}
	if maxVote <= 0 {
		return nil
	}

	return &HeatLayer{
		Samples:    samples,
		Max:        float64(maxVote) * cfg.CeilingRatio,
		MinOpacity: cfg.MinOpacity,
		Radius:     cfg.Radius,
		Blur:       cfg.Blur,
		MaxZoom:    cfg.MaxZoom,
	}
}
