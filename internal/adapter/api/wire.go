// internal/adapter/api/wire.go

package api

import (
	"bytes"
	"encoding/json"
	"strconv"

	"mapaeleitoral/internal/domain/election"
)

// flexFloat decodes coordinates sent either as JSON numbers or as
// numeric strings.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return err
		}
		*f = flexFloat(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*f = flexFloat(v)
	return nil
}

// resultRow is one element of the /results response
type resultRow struct {
	ID           election.PlaceID `json:"id"`
	Name         string           `json:"name"`
	Lat          *flexFloat       `json:"lat"`
	Lng          *flexFloat       `json:"lng"`
	Votes        *int64           `json:"votes"`
	LocalTotal   *int64           `json:"localTotal"`
	Percent      *float64         `json:"percent"`
	Neighborhood string           `json:"neighborhood"`
	City         string           `json:"city"`
	Zone         string           `json:"zone"`
}

// toDomain converts a row. Vote fields are dropped when the query had no
// candidate, since the upstream fills them with aggregate noise there.
func (r resultRow) toDomain(withCandidate bool) election.ResultPoint {
	p := election.ResultPoint{
		ID:           r.ID,
		Name:         r.Name,
		Neighborhood: r.Neighborhood,
		City:         r.City,
		Zone:         r.Zone,
	}
	if r.Lat != nil && r.Lng != nil {
		p.Position = &election.LatLng{Lat: float64(*r.Lat), Lng: float64(*r.Lng)}
	}
	if !withCandidate {
		return p
	}

	p.VoteCount = r.Votes
	p.LocalTotal = r.LocalTotal
	switch {
	case r.Percent != nil:
		pct := *r.Percent
		p.PercentOfLocalTotal = &pct
	case r.Votes != nil && r.LocalTotal != nil:
		pct := election.Percent(*r.Votes, *r.LocalTotal)
		p.PercentOfLocalTotal = &pct
	}
	return p
}

type strategicRow struct {
	ID          election.PlaceID `json:"id"`
	Lat         *flexFloat       `json:"lat"`
	Lng         *flexFloat       `json:"lng"`
	Title       string           `json:"title"`
	Description string           `json:"description"`
	IconKind    string           `json:"iconKind"`
	Color       string           `json:"color"`
	Active      bool             `json:"active"`
}

type placeRow struct {
	ID           election.PlaceID `json:"id"`
	Name         string           `json:"name"`
	Neighborhood string           `json:"neighborhood"`
	City         string           `json:"city"`
	Lat          *flexFloat       `json:"lat"`
	Lng          *flexFloat       `json:"lng"`
}

func (r placeRow) position() *election.LatLng {
	if r.Lat == nil || r.Lng == nil {
		return nil
	}
	return &election.LatLng{Lat: float64(*r.Lat), Lng: float64(*r.Lng)}
}
