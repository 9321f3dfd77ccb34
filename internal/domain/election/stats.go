// internal/domain/election/stats.go

package election

import (
	"math"
	"sort"
)

// Stats summarises a result set for the sidebar cards
type Stats struct {
	TotalVotes int64   `json:"totalVotes"`
	Percent    float64 `json:"percent"`
	Places     int     `json:"places"`
	Zones      int     `json:"zones"`
	Name       string  `json:"name"`
	Candidates int     `json:"candidates"`
}

// ComputeStats aggregates a result set. Percent is total votes over the
// sum of the places' local totals, as a percentage rounded to two
// decimals, and zero when no local total is known.
func ComputeStats(points []ResultPoint) Stats {
	var votes, totals int64
	zones := make(map[string]struct{})
	for _, p := range points {
		votes += p.Votes()
		totals += p.Total()
		if p.Zone != "" {
			zones[p.Zone] = struct{}{}
		}
	}

	return Stats{
		TotalVotes: votes,
		Percent:    Percent(votes, totals),
		Places:     len(points),
		Zones:      len(zones),
	}
}

// Percent returns part/whole*100 rounded to two decimals, or zero when
// whole is zero.
func Percent(part, whole int64) float64 {
	if whole == 0 {
		return 0
	}
	return math.Round(float64(part)/float64(whole)*100*100) / 100
}

// NeighborhoodTotal is a neighborhood's summed votes
type NeighborhoodTotal struct {
	Name  string `json:"name"`
	Votes int64  `json:"votes"`
}

// Performance highlights where the selected candidate did best
type Performance struct {
	HasVotes         bool               `json:"hasVotes"`
	TotalVotes       int64              `json:"totalVotes"`
	BestAbsolute     *ResultPoint       `json:"bestAbsolute,omitempty"`
	BestRelative     *ResultPoint       `json:"bestRelative,omitempty"`
	BestNeighborhood *NeighborhoodTotal `json:"bestNeighborhood,omitempty"`
}

// ComputePerformance finds the best place by raw votes, the best place
// by share of its local total, and the best neighborhood by summed
// votes. Ties keep the earlier point.
func ComputePerformance(points []ResultPoint) Performance {
	var perf Performance
	byNeighborhood := make(map[string]int64)
	var bestShare float64

	for i := range points {
		p := &points[i]
		votes := p.Votes()
		perf.TotalVotes += votes
		if votes <= 0 {
			continue
		}
		perf.HasVotes = true

		if perf.BestAbsolute == nil || votes > perf.BestAbsolute.Votes() {
			perf.BestAbsolute = p
		}
		if total := p.Total(); total > 0 {
			share := float64(votes) / float64(total)
			if perf.BestRelative == nil || share > bestShare {
				perf.BestRelative = p
				bestShare = share
			}
		}
		if p.Neighborhood != "" {
			byNeighborhood[p.Neighborhood] += votes
		}
	}

	if len(byNeighborhood) > 0 {
		names := make([]string, 0, len(byNeighborhood))
		for name := range byNeighborhood {
			names = append(names, name)
		}
		sort.Slice(names, func(i, j int) bool {
			if byNeighborhood[names[i]] != byNeighborhood[names[j]] {
				return byNeighborhood[names[i]] > byNeighborhood[names[j]]
			}
			return names[i] < names[j]
		})
		perf.BestNeighborhood = &NeighborhoodTotal{Name: names[0], Votes: byNeighborhood[names[0]]}
	}

	return perf
}

// RankDetail orders a place ranking by votes, fills each entry's share
// of the leader and flags the highlighted candidate.
func RankDetail(detail *PlaceDetail, highlight int) {
	if detail == nil {
		return
	}
	sort.SliceStable(detail.Ranking, func(i, j int) bool {
		return detail.Ranking[i].Votes > detail.Ranking[j].Votes
	})
	var leader int64
	if len(detail.Ranking) > 0 {
		leader = detail.Ranking[0].Votes
	}
	for i := range detail.Ranking {
		entry := &detail.Ranking[i]
		entry.ShareOfLeader = 0
		if leader > 0 {
			entry.ShareOfLeader = float64(entry.Votes) / float64(leader) * 100
		}
		entry.Highlighted = highlight > 0 && entry.CandidateNumber == highlight
	}
}
