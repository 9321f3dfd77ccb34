// internal/service/render/bounds.go

package render

import (
	"github.com/paulmach/orb"

	"mapaeleitoral/internal/domain/election"
)

// Box is a south-west / north-east bounding region
type Box struct {
	SouthWest election.LatLng `json:"southWest"`
	NorthEast election.LatLng `json:"northEast"`
}

// BoxFromBound converts an orb bound (lng, lat order) into a Box
func BoxFromBound(b orb.Bound) Box {
	return Box{
		SouthWest: election.LatLng{Lat: b.Min.Lat(), Lng: b.Min.Lon()},
		NorthEast: election.LatLng{Lat: b.Max.Lat(), Lng: b.Max.Lon()},
	}
}

// Bound converts the box back to an orb bound
func (b Box) Bound() orb.Bound {
	return orb.Bound{
		Min: orb.Point{b.SouthWest.Lng, b.SouthWest.Lat},
		Max: orb.Point{b.NorthEast.Lng, b.NorthEast.Lat},
	}
}

// Center returns the middle of the box
func (b Box) Center() election.LatLng {
	c := b.Bound().Center()
	return election.LatLng{Lat: c.Lat(), Lng: c.Lon()}
}

func toPoint(ll election.LatLng) orb.Point {
	return orb.Point{ll.Lng, ll.Lat}
}

// Bounds returns the region covering every marker, or nil when there are
// none.
func Bounds(markers []Marker) *Box {
	if len(markers) == 0 {
		return nil
	}
	mp := make(orb.MultiPoint, 0, len(markers))
	for _, m := range markers {
		mp = append(mp, toPoint(m.Position))
	}
	box := BoxFromBound(mp.Bound())
	return &box
}
