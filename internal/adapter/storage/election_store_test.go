package storage

import (
	"strings"
	"testing"

	"mapaeleitoral/internal/domain/election"
	"mapaeleitoral/internal/domain/filter"
)

func TestBuildResultsQueryAggregateMode(t *testing.T) {
	query, args := buildResultsQuery(election.ResultQuery{
		Year:   filter.Year2022,
		Office: filter.OfficePresident,
	})

	if len(args) != 2 {
		t.Fatalf("expected 2 args, got %d: %v", len(args), args)
	}
	if !strings.Contains(query, "NULL::bigint") {
		t.Errorf("aggregate query should not select votes:\n%s", query)
	}
	if strings.Contains(query, "candidate_number = $3") {
		t.Errorf("aggregate query should not filter by candidate:\n%s", query)
	}
}

func TestBuildResultsQueryNumbersOptionalFilters(t *testing.T) {
	query, args := buildResultsQuery(election.ResultQuery{
		Year:      filter.Year2018,
		Office:    filter.OfficeGovernor,
		Candidate: 13,
		Zone:      "5",
		Party:     "PT",
	})

	want := []interface{}{2018, "GOVERNADOR", 13, "5", "PT"}
	if len(args) != len(want) {
		t.Fatalf("expected %d args, got %d: %v", len(want), len(args), args)
	}
	for i := range want {
		if args[i] != want[i] {
			t.Errorf("arg %d: expected %v, got %v", i, want[i], args[i])
		}
	}

	for _, fragment := range []string{"r.candidate_number = $3", "p.zone = $4", "c.party = $5"} {
		if !strings.Contains(query, fragment) {
			t.Errorf("query is missing %q:\n%s", fragment, query)
		}
	}
	if strings.Contains(query, "p.city =") || strings.Contains(query, "p.neighborhood =") {
		t.Errorf("absent filters should not add predicates:\n%s", query)
	}
}

func TestEscapeLike(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"escola", "escola"},
		{"100%", `100\%`},
		{"a_b", `a\_b`},
		{`c:\x`, `c:\\x`},
	}
	for _, tt := range tests {
		if got := escapeLike(tt.in); got != tt.want {
			t.Errorf("escapeLike(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPosition(t *testing.T) {
	lat, lng := -22.9, -43.2
	if position(&lat, nil) != nil {
		t.Error("missing longitude should yield no position")
	}
	p := position(&lat, &lng)
	if p == nil || p.Lat != lat || p.Lng != lng {
		t.Errorf("unexpected position %+v", p)
	}
}
