// internal/service/render/cluster.go

package render

import (
	"fmt"
	"math"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"

	"mapaeleitoral/internal/domain/election"
)

const tileSize = 256

// ClusterConfig contains configuration for the cluster index
type ClusterConfig struct {
	// Radius is the grid cell size in screen pixels
	Radius float64
	// MaxZoom is the last zoom level that clusters; markers are always
	// separate above it
	MaxZoom int
	// SpiderLegLength is the distance in pixels between the cluster
	// center and a spiderfied leaf
	SpiderLegLength float64
}

// DefaultClusterConfig returns the cluster settings used by the map
func DefaultClusterConfig() ClusterConfig {
	return ClusterConfig{
		Radius:          80,
		MaxZoom:         17,
		SpiderLegLength: 25,
	}
}

// Cluster is one glyph at a zoom level: either a single marker or a
// group of nearby ones.
type Cluster struct {
	ID       int             `json:"id"`
	Position election.LatLng `json:"position"`
	Count    int             `json:"count"`
	Votes    int64           `json:"votes"`
	Marker   *Marker         `json:"marker,omitempty"`
}

// SpiderLeg places one leaf of a fanned-out cluster at a pixel offset
// from the cluster center
type SpiderLeg struct {
	Marker Marker     `json:"marker"`
	Offset [2]float64 `json:"offset"`
}

type clusterNode struct {
	id       int
	pos      election.LatLng
	count    int
	votes    int64
	marker   int // leaf index, -1 for groups
	children []int
	formedAt int
}

// ClusterIndex groups markers per zoom level on a Web-Mercator pixel
// grid. Level z holds the glyphs shown at zoom z; groups are built
// bottom-up from the level above so every group at zoom z is a union of
// glyphs at z+1.
type ClusterIndex struct {
	cfg     ClusterConfig
	markers []Marker
	nodes   []clusterNode
	levels  [][]int
}

// NewClusterIndex indexes a marker set
func NewClusterIndex(markers []Marker, cfg ClusterConfig) *ClusterIndex {
	if cfg.Radius <= 0 {
		cfg.Radius = DefaultClusterConfig().Radius
	}
	if cfg.MaxZoom < 0 {
		cfg.MaxZoom = 0
	}
	if cfg.SpiderLegLength <= 0 {
		cfg.SpiderLegLength = DefaultClusterConfig().SpiderLegLength
	}

	idx := &ClusterIndex{
		cfg:     cfg,
		markers: markers,
		levels:  make([][]int, cfg.MaxZoom+2),
	}

	// Leaves live on the level above MaxZoom
	leaves := make([]int, 0, len(markers))
	for i, m := range markers {
		var votes int64
		if m.Votes != nil {
			votes = *m.Votes
		}
		leaves = append(leaves, idx.addNode(clusterNode{
			pos:      m.Position,
			count:    1,
			votes:    votes,
			marker:   i,
			formedAt: cfg.MaxZoom + 1,
		}))
	}
	idx.levels[cfg.MaxZoom+1] = leaves

	for z := cfg.MaxZoom; z >= 0; z-- {
		idx.levels[z] = idx.group(idx.levels[z+1], z)
	}
	return idx
}

func (idx *ClusterIndex) addNode(n clusterNode) int {
	n.id = len(idx.nodes)
	idx.nodes = append(idx.nodes, n)
	return n.id
}

type cellKey struct{ x, y int64 }

// group merges the glyphs of the level above that share a grid cell at
// zoom z
func (idx *ClusterIndex) group(above []int, z int) []int {
	cells := make(map[cellKey][]int)
	order := make([]cellKey, 0)
	for _, id := range above {
		px := pixel(idx.nodes[id].pos, z)
		key := cellKey{
			x: int64(math.Floor(px[0] / idx.cfg.Radius)),
			y: int64(math.Floor(px[1] / idx.cfg.Radius)),
		}
		if _, ok := cells[key]; !ok {
			order = append(order, key)
		}
		cells[key] = append(cells[key], id)
	}

	level := make([]int, 0, len(order))
	for _, key := range order {
		members := cells[key]
		if len(members) == 1 {
			level = append(level, members[0])
			continue
		}

		var count int
		var votes int64
		var lat, lng float64
		for _, id := range members {
			n := idx.nodes[id]
			count += n.count
			votes += n.votes
			lat += n.pos.Lat * float64(n.count)
			lng += n.pos.Lng * float64(n.count)
		}
		level = append(level, idx.addNode(clusterNode{
			pos:      election.LatLng{Lat: lat / float64(count), Lng: lng / float64(count)},
			count:    count,
			votes:    votes,
			marker:   -1,
			children: members,
			formedAt: z,
		}))
	}
	return level
}

// pixel projects a coordinate to global pixel space at zoom z
func pixel(ll election.LatLng, z int) orb.Point {
	f := maptile.Fraction(toPoint(ll), maptile.Zoom(z))
	return orb.Point{f[0] * tileSize, f[1] * tileSize}
}

func (idx *ClusterIndex) clampZoom(zoom int) int {
	if zoom < 0 {
		return 0
	}
	if zoom > idx.cfg.MaxZoom+1 {
		return idx.cfg.MaxZoom + 1
	}
	return zoom
}

// Clusters returns the glyphs visible inside box at a zoom level
func (idx *ClusterIndex) Clusters(box Box, zoom int) []Cluster {
	bound := box.Bound()
	level := idx.levels[idx.clampZoom(zoom)]

	out := make([]Cluster, 0, len(level))
	for _, id := range level {
		n := idx.nodes[id]
		if !bound.Contains(toPoint(n.pos)) {
			continue
		}
		out = append(out, idx.toCluster(n))
	}
	return out
}

func (idx *ClusterIndex) toCluster(n clusterNode) Cluster {
	c := Cluster{ID: n.id, Position: n.pos, Count: n.count, Votes: n.votes}
	if n.marker >= 0 {
		m := idx.markers[n.marker]
		c.Marker = &m
	}
	return c
}

// Cluster returns a glyph by id
func (idx *ClusterIndex) Cluster(id int) (Cluster, error) {
	if id < 0 || id >= len(idx.nodes) {
		return Cluster{}, fmt.Errorf("cluster %d: %w", id, election.ErrNotFound)
	}
	return idx.toCluster(idx.nodes[id]), nil
}

// Leaves returns every marker under a glyph, ordered by id
func (idx *ClusterIndex) Leaves(id int) ([]Marker, error) {
	if id < 0 || id >= len(idx.nodes) {
		return nil, fmt.Errorf("cluster %d: %w", id, election.ErrNotFound)
	}

	var leafIdx []int
	stack := []int{id}
	for len(stack) > 0 {
		n := idx.nodes[stack[len(stack)-1]]
		stack = stack[:len(stack)-1]
		if n.marker >= 0 {
			leafIdx = append(leafIdx, n.marker)
			continue
		}
		stack = append(stack, n.children...)
	}
	sort.Ints(leafIdx)

	leaves := make([]Marker, len(leafIdx))
	for i, li := range leafIdx {
		leaves[i] = idx.markers[li]
	}
	return leaves, nil
}

// ExpansionZoom returns the zoom at which a glyph splits into more than
// one glyph. A value above MaxZoom means the glyph only separates by
// spiderfying.
func (idx *ClusterIndex) ExpansionZoom(id int) (int, error) {
	if id < 0 || id >= len(idx.nodes) {
		return 0, fmt.Errorf("cluster %d: %w", id, election.ErrNotFound)
	}
	n := idx.nodes[id]
	if n.marker >= 0 {
		return idx.cfg.MaxZoom + 1, nil
	}
	return n.formedAt + 1, nil
}

// Spiderfy fans the leaves of a glyph out around its center: a circle
// for small groups and a spiral for larger ones.
func (idx *ClusterIndex) Spiderfy(id int) ([]SpiderLeg, error) {
	leaves, err := idx.Leaves(id)
	if err != nil {
		return nil, err
	}

	legs := make([]SpiderLeg, len(leaves))
	if len(leaves) <= 8 {
		circumference := idx.cfg.SpiderLegLength * (2 + float64(len(leaves)))
		radius := circumference / (2 * math.Pi)
		step := 2 * math.Pi / float64(len(leaves))
		for i, m := range leaves {
			angle := float64(i) * step
			legs[i] = SpiderLeg{Marker: m, Offset: [2]float64{radius * math.Cos(angle), radius * math.Sin(angle)}}
		}
		return legs, nil
	}

	legLength := idx.cfg.SpiderLegLength
	angle := 0.0
	for i, m := range leaves {
		angle += idx.cfg.SpiderLegLength/legLength + float64(i)*0.0005
		legs[i] = SpiderLeg{Marker: m, Offset: [2]float64{legLength * math.Cos(angle), legLength * math.Sin(angle)}}
		legLength += 2 * math.Pi * 5 / angle
	}
	return legs, nil
}

// MaxZoom returns the last zoom level that clusters
func (idx *ClusterIndex) MaxZoom() int {
	return idx.cfg.MaxZoom
}

// Len returns the number of indexed markers
func (idx *ClusterIndex) Len() int {
	return len(idx.markers)
}
