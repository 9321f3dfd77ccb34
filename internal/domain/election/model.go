// internal/domain/election/model.go

package election

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/url"
	"strconv"

	"mapaeleitoral/internal/domain/filter"
)

// ErrNotFound is returned when a place or record does not exist
var ErrNotFound = errors.New("not found")

// PlaceID identifies a polling place. The upstream API emits it either
// as a number or as a string; both decode to the same value.
type PlaceID string

// UnmarshalJSON accepts numeric and string identifiers
func (id *PlaceID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = PlaceID(s)
		return nil
	}
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = PlaceID(n.String())
	return nil
}

// LatLng is a WGS84 coordinate pair
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// ResultPoint is one polling place in a results query. VoteCount,
// LocalTotal and PercentOfLocalTotal are nil when the query was issued
// without a candidate (aggregate-only mode). Position is nil when the
// place has no coordinates.
type ResultPoint struct {
	ID                  PlaceID  `json:"id"`
	Name                string   `json:"name"`
	Position            *LatLng  `json:"position,omitempty"`
	VoteCount           *int64   `json:"voteCount,omitempty"`
	LocalTotal          *int64   `json:"localTotal,omitempty"`
	PercentOfLocalTotal *float64 `json:"percentOfLocalTotal,omitempty"`
	Neighborhood        string   `json:"neighborhood,omitempty"`
	City                string   `json:"city,omitempty"`
	Zone                string   `json:"zone,omitempty"`
}

// Votes returns the vote count, or zero in aggregate-only mode
func (p ResultPoint) Votes() int64 {
	if p.VoteCount == nil {
		return 0
	}
	return *p.VoteCount
}

// Total returns the local total, or zero when unknown
func (p ResultPoint) Total() int64 {
	if p.LocalTotal == nil {
		return 0
	}
	return *p.LocalTotal
}

// ResultQuery is the subset of filter.State that drives the results
// endpoint.
type ResultQuery struct {
	Year         filter.Year
	Office       filter.Office
	Candidate    int
	Municipality string
	Neighborhood string
	Zone         string
	Party        string
}

// QueryFromState derives the results query for a filter state
func QueryFromState(s filter.State) ResultQuery {
	return ResultQuery{
		Year:         s.Year,
		Office:       s.Office,
		Candidate:    s.CandidateNumber,
		Municipality: s.Municipality,
		Neighborhood: s.Neighborhood,
		Zone:         s.Zone,
		Party:        s.Party,
	}
}

// Values encodes only the fields that are present
func (q ResultQuery) Values() url.Values {
	v := url.Values{}
	v.Set("year", strconv.Itoa(int(q.Year)))
	v.Set("office", string(q.Office))
	if q.Candidate > 0 {
		v.Set("number", strconv.Itoa(q.Candidate))
	}
	if q.Municipality != "" {
		v.Set("municipality", q.Municipality)
	}
	if q.Neighborhood != "" {
		v.Set("neighborhood", q.Neighborhood)
	}
	if q.Zone != "" {
		v.Set("zone", q.Zone)
	}
	if q.Party != "" {
		v.Set("party", q.Party)
	}
	return v
}

// Candidate is one roster entry
type Candidate struct {
	Number int           `json:"candidateNumber"`
	Name   string        `json:"candidateName"`
	Party  string        `json:"partyCode"`
	Office filter.Office `json:"office,omitempty"`
}

// Label renders the candidate as shown in selectors
func (c Candidate) Label() string {
	if c.Party == "" {
		return c.Name
	}
	return c.Name + " (" + c.Party + ")"
}

// DisplayName resolves the heading for the current selection: the
// roster label when the candidate is known, a numbered fallback
// otherwise, and the aggregate heading when no candidate is selected.
func DisplayName(roster []Candidate, number int) string {
	if number <= 0 {
		return "Todos os Locais"
	}
	for _, c := range roster {
		if c.Number == number {
			return c.Label()
		}
	}
	return "Candidato " + strconv.Itoa(number)
}

// StrategicPoint is an operator-curated marker composed onto the map
type StrategicPoint struct {
	ID          string `json:"id"`
	Position    LatLng `json:"position"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	IconKind    string `json:"iconKind"`
	Color       string `json:"color,omitempty"`
	Active      bool   `json:"active"`
}

// PlaceInfo describes a polling place in the detail drawer
type PlaceInfo struct {
	ID           PlaceID `json:"id"`
	Name         string  `json:"name"`
	Address      string  `json:"address,omitempty"`
	Neighborhood string  `json:"neighborhood,omitempty"`
	City         string  `json:"city,omitempty"`
}

// RankingEntry is one candidate's result at a place
type RankingEntry struct {
	CandidateNumber int     `json:"candidateNumber"`
	CandidateName   string  `json:"candidateName"`
	Party           string  `json:"partyCode,omitempty"`
	Votes           int64   `json:"votes"`
	ShareOfLeader   float64 `json:"shareOfLeader"`
	Highlighted     bool    `json:"highlighted,omitempty"`
}

// PlaceDetail is the per-candidate ranking at a single place
type PlaceDetail struct {
	Place   PlaceInfo      `json:"details"`
	Ranking []RankingEntry `json:"ranking"`
}

// PlaceSummary is a place search hit
type PlaceSummary struct {
	ID           PlaceID `json:"id"`
	Name         string  `json:"name"`
	Neighborhood string  `json:"neighborhood,omitempty"`
	City         string  `json:"city,omitempty"`
	Position     *LatLng `json:"position,omitempty"`
}

// Growth compares a candidate's votes across the two cycles
type Growth struct {
	Candidate     int           `json:"candidate"`
	Office        filter.Office `json:"office"`
	Votes2018     int64         `json:"votes2018"`
	Votes2022     int64         `json:"votes2022"`
	NominalChange int64         `json:"nominalChange"`
	PercentChange float64       `json:"percentChange"`
}

// PartyOption is a party in the filter selector
type PartyOption struct {
	Code       string `json:"partyCode"`
	Candidates int    `json:"candidates"`
}

// Options holds the filter selector contents
type Options struct {
	Municipalities []string      `json:"municipalities"`
	Neighborhoods  []string      `json:"neighborhoods"`
	Zones          []string      `json:"zones"`
	Parties        []PartyOption `json:"parties"`
}

// IntelligencePanel names an analysis panel
type IntelligencePanel string

const (
	PanelExecutiveSummary IntelligencePanel = "resumo"
	PanelDistribution     IntelligencePanel = "distribuicao"
	PanelTopPlaces        IntelligencePanel = "top20"
)

// Valid reports whether the panel is known
func (p IntelligencePanel) Valid() bool {
	switch p {
	case PanelExecutiveSummary, PanelDistribution, PanelTopPlaces:
		return true
	}
	return false
}

// IntelligenceQuery scopes an analysis panel
type IntelligenceQuery struct {
	Panel     IntelligencePanel
	Candidate int
	Office    filter.Office
	Year      filter.Year
}

// Complete reports whether every input the panel needs is present
func (q IntelligenceQuery) Complete() bool {
	return q.Panel.Valid() && q.Candidate > 0 && q.Office.Valid() && q.Year.Valid()
}
