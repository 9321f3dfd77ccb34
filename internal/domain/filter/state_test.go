package filter

import "testing"

func TestOfficeOrYearChangeClearsCandidate(t *testing.T) {
	start := Default().WithCandidate(22)

	tests := []struct {
		name          string
		apply         func(State) State
		wantCandidate int
	}{
		{
			name:          "office change",
			apply:         func(s State) State { return s.WithOffice(OfficeGovernor) },
			wantCandidate: 0,
		},
		{
			name:          "year change",
			apply:         func(s State) State { return s.WithYear(Year2018) },
			wantCandidate: 0,
		},
		{
			name:          "same office keeps candidate",
			apply:         func(s State) State { return s.WithOffice(OfficePresident) },
			wantCandidate: 22,
		},
		{
			name:          "invalid office is ignored",
			apply:         func(s State) State { return s.WithOffice(Office("PREFEITO")) },
			wantCandidate: 22,
		},
		{
			name:          "zone change keeps candidate",
			apply:         func(s State) State { return s.WithZone("4") },
			wantCandidate: 22,
		},
		{
			name:          "explicit scope keeps named candidate",
			apply:         func(s State) State { return s.WithScope(Year2018, OfficeSenator, 123) },
			wantCandidate: 123,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.apply(start)
			if got.CandidateNumber != tt.wantCandidate {
				t.Errorf("expected candidate %d, got %d", tt.wantCandidate, got.CandidateNumber)
			}
		})
	}
}

func TestClearedKeepsScopeAndToggles(t *testing.T) {
	s := Default().
		WithOffice(OfficeGovernor).
		WithMunicipality("NITERÓI").
		WithNeighborhood("ICARAÍ").
		WithZone("71").
		WithParty("PL").
		WithCandidate(22).
		WithHeatmap(false)

	got := s.Cleared()
	want := State{
		Year:        Year2022,
		Office:      OfficeGovernor,
		ShowHeatmap: false,
		ShowMarkers: true,
	}
	if got != want {
		t.Errorf("expected %+v, got %+v", want, got)
	}
}

func TestSameQueryIgnoresToggles(t *testing.T) {
	a := Default().WithCandidate(13)
	b := a.WithHeatmap(false).WithMarkers(false)
	if !a.SameQuery(b) {
		t.Error("toggles should not change the query")
	}
	if a.SameQuery(a.WithZone("1")) {
		t.Error("zone should change the query")
	}
}

func TestParseOffice(t *testing.T) {
	tests := []struct {
		raw  string
		want Office
		ok   bool
	}{
		{"PRESIDENTE", OfficePresident, true},
		{" governador ", OfficeGovernor, true},
		{"DEPUTADO_FEDERAL", OfficeFederalDeputy, true},
		{"deputado estadual", OfficeStateDeputy, true},
		{"VEREADOR", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseOffice(tt.raw)
		if ok != tt.ok || (ok && got != tt.want) {
			t.Errorf("ParseOffice(%q) = %q, %v; want %q, %v", tt.raw, got, ok, tt.want, tt.ok)
		}
	}
}
