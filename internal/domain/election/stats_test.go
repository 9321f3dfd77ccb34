package election_test

import (
	"context"
	"errors"
	"testing"

	"mapaeleitoral/internal/domain/election"
	"mapaeleitoral/internal/domain/election/electiontest"
	"mapaeleitoral/internal/domain/filter"
)

func TestComputeStats(t *testing.T) {
	tests := []struct {
		name        string
		points      []election.ResultPoint
		wantVotes   int64
		wantPercent float64
		wantPlaces  int
	}{
		{
			name: "aggregate math",
			points: []election.ResultPoint{
				electiontest.Point("1", -22.9, -43.2, 10, 100),
				electiontest.Point("2", -22.8, -43.1, 20, 100),
				electiontest.Point("3", -22.7, -43.0, 30, 100),
			},
			wantVotes:   60,
			wantPercent: 20.00,
			wantPlaces:  3,
		},
		{
			name: "rounds to two decimals",
			points: []election.ResultPoint{
				electiontest.Point("1", 0, 0, 1, 3),
			},
			wantVotes:   1,
			wantPercent: 33.33,
			wantPlaces:  1,
		},
		{
			name: "zero denominator",
			points: []election.ResultPoint{
				electiontest.Point("1", 0, 0, 0, 0),
			},
			wantPercent: 0,
			wantPlaces:  1,
		},
		{
			name: "aggregate-only mode",
			points: []election.ResultPoint{
				electiontest.AggregatePoint("1", -22.9, -43.2),
				electiontest.AggregatePoint("2", -22.8, -43.1),
			},
			wantPlaces: 2,
		},
		{
			name: "empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := election.ComputeStats(tt.points)
			if got.TotalVotes != tt.wantVotes {
				t.Errorf("expected %d votes, got %d", tt.wantVotes, got.TotalVotes)
			}
			if got.Percent != tt.wantPercent {
				t.Errorf("expected %.2f%%, got %.2f%%", tt.wantPercent, got.Percent)
			}
			if got.Places != tt.wantPlaces {
				t.Errorf("expected %d places, got %d", tt.wantPlaces, got.Places)
			}
		})
	}
}

func TestComputeStatsCountsUniqueZones(t *testing.T) {
	points := []election.ResultPoint{
		{ID: "1", Zone: "4"},
		{ID: "2", Zone: "4"},
		{ID: "3", Zone: "179"},
		{ID: "4"},
	}
	if got := election.ComputeStats(points).Zones; got != 2 {
		t.Errorf("expected 2 zones, got %d", got)
	}
}

func TestComputePerformance(t *testing.T) {
	a := electiontest.Point("a", 0, 0, 50, 1000)
	a.Neighborhood = "CENTRO"
	b := electiontest.Point("b", 0, 0, 40, 80)
	b.Neighborhood = "TIJUCA"
	c := electiontest.Point("c", 0, 0, 30, 600)
	c.Neighborhood = "TIJUCA"

	perf := election.ComputePerformance([]election.ResultPoint{a, b, c})
	if !perf.HasVotes || perf.TotalVotes != 120 {
		t.Fatalf("unexpected totals %+v", perf)
	}
	if perf.BestAbsolute == nil || perf.BestAbsolute.ID != "a" {
		t.Errorf("expected best absolute a, got %+v", perf.BestAbsolute)
	}
	if perf.BestRelative == nil || perf.BestRelative.ID != "b" {
		t.Errorf("expected best relative b, got %+v", perf.BestRelative)
	}
	if perf.BestNeighborhood == nil || perf.BestNeighborhood.Name != "TIJUCA" || perf.BestNeighborhood.Votes != 70 {
		t.Errorf("unexpected best neighborhood %+v", perf.BestNeighborhood)
	}

	empty := election.ComputePerformance([]election.ResultPoint{electiontest.AggregatePoint("x", 0, 0)})
	if empty.HasVotes || empty.BestAbsolute != nil || empty.BestNeighborhood != nil {
		t.Errorf("expected no highlights in aggregate mode, got %+v", empty)
	}
}

func TestRankDetail(t *testing.T) {
	detail := &election.PlaceDetail{
		Ranking: []election.RankingEntry{
			{CandidateNumber: 13, Votes: 150},
			{CandidateNumber: 22, Votes: 300},
			{CandidateNumber: 12, Votes: 30},
		},
	}
	election.RankDetail(detail, 13)

	if detail.Ranking[0].CandidateNumber != 22 {
		t.Fatalf("expected leader 22, got %d", detail.Ranking[0].CandidateNumber)
	}
	if detail.Ranking[1].ShareOfLeader != 50 {
		t.Errorf("expected 50%% of leader, got %v", detail.Ranking[1].ShareOfLeader)
	}
	if !detail.Ranking[1].Highlighted || detail.Ranking[0].Highlighted {
		t.Errorf("highlight on wrong entry: %+v", detail.Ranking)
	}
}

func TestDisplayName(t *testing.T) {
	roster := []election.Candidate{
		{Number: 22, Name: "FULANO", Party: "PL"},
		{Number: 13, Name: "BELTRANO", Party: "PT"},
	}
	tests := []struct {
		number int
		want   string
	}{
		{0, "Todos os Locais"},
		{22, "FULANO (PL)"},
		{99, "Candidato 99"},
	}
	for _, tt := range tests {
		if got := election.DisplayName(roster, tt.number); got != tt.want {
			t.Errorf("DisplayName(%d) = %q, want %q", tt.number, got, tt.want)
		}
	}
}

func TestCompare(t *testing.T) {
	src := &electiontest.Source{
		ResultsFunc: func(ctx context.Context, q election.ResultQuery) ([]election.ResultPoint, error) {
			switch q.Candidate {
			case 13:
				return []election.ResultPoint{
					electiontest.Point("1", 0, 0, 10, 100),
					electiontest.Point("2", 0, 0, 30, 100),
				}, nil
			case 22:
				return []election.ResultPoint{electiontest.Point("1", 0, 0, 90, 100)}, nil
			}
			return nil, errors.New("unexpected candidate")
		},
	}

	cmp, err := election.Compare(context.Background(), src, filter.Year2022, filter.OfficePresident, 13, 22)
	if err != nil {
		t.Fatalf("Compare: %v", err)
	}
	if cmp.A.Votes != 40 || cmp.A.Percent != 20 || cmp.A.Places != 2 {
		t.Errorf("unexpected A %+v", cmp.A)
	}
	if cmp.B.Votes != 90 || cmp.B.Percent != 90 || cmp.B.Places != 1 {
		t.Errorf("unexpected B %+v", cmp.B)
	}
	if src.Calls("Results") != 2 {
		t.Errorf("expected 2 result queries, got %d", src.Calls("Results"))
	}

	if _, err := election.Compare(context.Background(), src, filter.Year2022, filter.OfficePresident, 13, 0); err == nil {
		t.Error("expected error for missing candidate")
	}
}

func TestPlaceIDAcceptsNumbers(t *testing.T) {
	var ids []election.PlaceID
	if err := jsonUnmarshal(`[12, "34", null]`, &ids); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if ids[0] != "12" || ids[1] != "34" || ids[2] != "" {
		t.Errorf("unexpected ids %v", ids)
	}
}
