// internal/service/session/views.go

package session

import (
	"mapaeleitoral/internal/domain/election"
	"mapaeleitoral/internal/domain/filter"
	"mapaeleitoral/internal/service/auxiliary"
	"mapaeleitoral/internal/service/results"
	"mapaeleitoral/internal/service/selection"
)

// FilterView is the JSON form of the filter state
type FilterView struct {
	Year         filter.Year   `json:"ano"`
	Office       filter.Office `json:"cargo"`
	Municipality string        `json:"municipio,omitempty"`
	Neighborhood string        `json:"bairro,omitempty"`
	Zone         string        `json:"zona,omitempty"`
	Party        string        `json:"partido,omitempty"`
	Candidate    int           `json:"candidato,omitempty"`
	ShowHeatmap  bool          `json:"calor"`
	ShowMarkers  bool          `json:"marcadores"`
	Query        string        `json:"query"`
}

func filterView(s filter.State) FilterView {
	return FilterView{
		Year:         s.Year,
		Office:       s.Office,
		Municipality: s.Municipality,
		Neighborhood: s.Neighborhood,
		Zone:         s.Zone,
		Party:        s.Party,
		Candidate:    s.CandidateNumber,
		ShowHeatmap:  s.ShowHeatmap,
		ShowMarkers:  s.ShowMarkers,
		Query:        filter.Encode(s),
	}
}

// ResultsView is the JSON form of the results query state
type ResultsView struct {
	Version     uint64               `json:"version"`
	Loading     bool                 `json:"loading"`
	Error       string               `json:"error,omitempty"`
	Stats       election.Stats       `json:"stats"`
	Performance election.Performance `json:"performance"`
}

func resultsView(snap results.Snapshot, roster []election.Candidate) ResultsView {
	v := ResultsView{
		Version:     snap.Version,
		Loading:     snap.Loading,
		Stats:       snap.Stats,
		Performance: snap.Performance,
	}
	v.Stats.Name = election.DisplayName(roster, snap.Query.Candidate)
	v.Stats.Candidates = len(roster)
	if snap.Err != nil {
		v.Error = snap.Err.Error()
	}
	return v
}

// SelectionView is the JSON form of the detail drawer
type SelectionView struct {
	PlaceID election.PlaceID      `json:"placeId,omitempty"`
	Loading bool                  `json:"loading"`
	Error   string                `json:"error,omitempty"`
	Detail  *election.PlaceDetail `json:"detail,omitempty"`
}

func selectionView(snap selection.Snapshot) SelectionView {
	v := SelectionView{
		PlaceID: snap.PlaceID,
		Loading: snap.Loading,
		Detail:  snap.Detail,
	}
	if snap.Err != nil {
		v.Error = snap.Err.Error()
	}
	return v
}

// AuxiliaryView is the JSON form of one side widget
type AuxiliaryView struct {
	Loading bool        `json:"loading"`
	Error   string      `json:"error,omitempty"`
	Value   interface{} `json:"value"`
}

func auxiliaryView(u auxiliary.Update) AuxiliaryView {
	v := AuxiliaryView{Loading: u.Loading, Value: u.Value}
	if u.Err != nil {
		v.Error = u.Err.Error()
	}
	return v
}

// Snapshot is the whole visible state of a session
type Snapshot struct {
	ID        string                   `json:"id"`
	Filter    FilterView               `json:"filter"`
	Results   ResultsView              `json:"results"`
	Selection SelectionView            `json:"selection"`
	Layer     *LayerView               `json:"layer,omitempty"`
	Auxiliary map[string]AuxiliaryView `json:"auxiliary"`
}

// LayerView summarises the drawn results layer
type LayerView struct {
	Version uint64 `json:"version"`
	Markers int    `json:"markers"`
	Skipped int    `json:"skipped"`
	HasHeat bool   `json:"hasHeat"`
}
