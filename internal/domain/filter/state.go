// internal/domain/filter/state.go

package filter

import "strings"

// Year identifies an election cycle
type Year int

const (
	Year2018 Year = 2018
	Year2022 Year = 2022
)

// Valid reports whether the year has published results
func (y Year) Valid() bool {
	return y == Year2018 || y == Year2022
}

// Office identifies the elected position. The string value is the
// wire form used by the results API and by the page URL.
type Office string

const (
	OfficePresident     Office = "PRESIDENTE"
	OfficeGovernor      Office = "GOVERNADOR"
	OfficeSenator       Office = "SENADOR"
	OfficeFederalDeputy Office = "DEPUTADO FEDERAL"
	OfficeStateDeputy   Office = "DEPUTADO ESTADUAL"
)

// Offices lists every office in display order
var Offices = []Office{
	OfficePresident,
	OfficeGovernor,
	OfficeSenator,
	OfficeFederalDeputy,
	OfficeStateDeputy,
}

// Valid reports whether the office is one of the known positions
func (o Office) Valid() bool {
	for _, known := range Offices {
		if o == known {
			return true
		}
	}
	return false
}

// ParseOffice normalises a raw office value. Case and surrounding
// whitespace are ignored; "DEPUTADO_FEDERAL" style separators are
// accepted as well.
func ParseOffice(raw string) (Office, bool) {
	normalized := strings.ToUpper(strings.TrimSpace(raw))
	normalized = strings.ReplaceAll(normalized, "_", " ")
	office := Office(normalized)
	return office, office.Valid()
}

// Defaults used when the URL carries no usable value
const (
	DefaultYear   = Year2022
	DefaultOffice = OfficePresident
)

// State is the canonical record of the operator's current query.
//
// State is a comparable value: two states are the same query exactly
// when they are ==. Optional text fields are empty when absent and the
// candidate number is zero when no candidate is selected.
//
// Text fields hold trimmed values and the candidate number is never
// negative. Decode and the With setters always produce such states;
// Normalize brings any other value into that form. Encode followed by
// Decode returns the normalised state.
type State struct {
	Year            Year
	Office          Office
	Municipality    string
	Neighborhood    string
	Zone            string
	Party           string
	CandidateNumber int
	ShowHeatmap     bool
	ShowMarkers     bool
}

// Default returns the state used when nothing else is known
func Default() State {
	return State{
		Year:        DefaultYear,
		Office:      DefaultOffice,
		ShowHeatmap: true,
		ShowMarkers: true,
	}
}

// Normalize trims the text fields and drops a non-positive candidate
func (s State) Normalize() State {
	s.Municipality = strings.TrimSpace(s.Municipality)
	s.Neighborhood = strings.TrimSpace(s.Neighborhood)
	s.Zone = strings.TrimSpace(s.Zone)
	s.Party = strings.TrimSpace(s.Party)
	if s.CandidateNumber < 0 {
		s.CandidateNumber = 0
	}
	return s
}

// HasCandidate reports whether a candidate number is selected
func (s State) HasCandidate() bool {
	return s.CandidateNumber > 0
}

// WithYear switches the election cycle. Candidate rosters are scoped by
// year, so a real change drops the selected candidate.
func (s State) WithYear(y Year) State {
	if !y.Valid() || y == s.Year {
		return s
	}
	s.Year = y
	s.CandidateNumber = 0
	return s
}

// WithOffice switches the office. Candidate rosters are scoped by
// office, so a real change drops the selected candidate.
func (s State) WithOffice(o Office) State {
	if !o.Valid() || o == s.Office {
		return s
	}
	s.Office = o
	s.CandidateNumber = 0
	return s
}

// WithScope sets year, office and candidate together. It is the only
// transition that may change office or year while keeping a candidate,
// because the caller names the candidate for the new scope explicitly.
func (s State) WithScope(y Year, o Office, candidate int) State {
	if y.Valid() {
		s.Year = y
	}
	if o.Valid() {
		s.Office = o
	}
	if candidate < 0 {
		candidate = 0
	}
	s.CandidateNumber = candidate
	return s
}

// WithCandidate selects a candidate; zero or negative clears it
func (s State) WithCandidate(number int) State {
	if number < 0 {
		number = 0
	}
	s.CandidateNumber = number
	return s
}

// WithMunicipality sets or clears the municipality filter
func (s State) WithMunicipality(v string) State {
	s.Municipality = strings.TrimSpace(v)
	return s
}

// WithNeighborhood sets or clears the neighborhood filter
func (s State) WithNeighborhood(v string) State {
	s.Neighborhood = strings.TrimSpace(v)
	return s
}

// WithZone sets or clears the electoral zone filter
func (s State) WithZone(v string) State {
	s.Zone = strings.TrimSpace(v)
	return s
}

// WithParty sets or clears the party filter
func (s State) WithParty(v string) State {
	s.Party = strings.TrimSpace(v)
	return s
}

// WithHeatmap toggles the heat layer
func (s State) WithHeatmap(on bool) State {
	s.ShowHeatmap = on
	return s
}

// WithMarkers toggles the marker layer
func (s State) WithMarkers(on bool) State {
	s.ShowMarkers = on
	return s
}

// Cleared drops geography, party and candidate filters while keeping
// the election scope and layer toggles.
func (s State) Cleared() State {
	s.Municipality = ""
	s.Neighborhood = ""
	s.Zone = ""
	s.Party = ""
	s.CandidateNumber = 0
	return s
}

// SameQuery reports whether two states issue the same results query.
// Layer toggles do not take part in the query.
func (s State) SameQuery(other State) bool {
	s.ShowHeatmap, s.ShowMarkers = other.ShowHeatmap, other.ShowMarkers
	return s == other
}
