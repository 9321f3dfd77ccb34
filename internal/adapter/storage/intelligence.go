// internal/adapter/storage/intelligence.go

package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"mapaeleitoral/internal/domain/election"
)

const topPlacesLimit = 20

type executiveSummary struct {
	Candidate       int     `json:"candidate"`
	Office          string  `json:"office"`
	Year            int     `json:"year"`
	TotalVotes      int64   `json:"totalVotes"`
	Percent         float64 `json:"percent"`
	Places          int     `json:"places"`
	PlacesWithVotes int     `json:"placesWithVotes"`
}

type areaVotes struct {
	Name  string `json:"name"`
	Votes int64  `json:"votes"`
}

type distribution struct {
	Municipalities []areaVotes `json:"municipalities"`
	Neighborhoods  []areaVotes `json:"neighborhoods"`
}

type topPlace struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Neighborhood string  `json:"neighborhood,omitempty"`
	City         string  `json:"city,omitempty"`
	Votes        int64   `json:"votes"`
	Percent      float64 `json:"percent"`
}

// Intelligence computes an analysis panel from the results tables
func (s *ElectionStore) Intelligence(ctx context.Context, q election.IntelligenceQuery) (json.RawMessage, error) {
	if !q.Complete() {
		return nil, fmt.Errorf("intelligence panel %q: incomplete scope", q.Panel)
	}

	var (
		payload interface{}
		err     error
	)
	switch q.Panel {
	case election.PanelExecutiveSummary:
		payload, err = s.executiveSummary(ctx, q)
	case election.PanelDistribution:
		payload, err = s.distribution(ctx, q)
	case election.PanelTopPlaces:
		payload, err = s.topPlaces(ctx, q)
	}
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("error encoding %s panel: %w", q.Panel, err)
	}
	return data, nil
}

func (s *ElectionStore) executiveSummary(ctx context.Context, q election.IntelligenceQuery) (*executiveSummary, error) {
	query := `
		SELECT
			COALESCE(SUM(r.votes), 0)::bigint,
			COALESCE(SUM(pv.total_votes), 0)::bigint,
			COUNT(*),
			COUNT(*) FILTER (WHERE r.votes > 0)
		FROM place_votes pv
		LEFT JOIN results r ON r.place_id = pv.place_id AND r.year = pv.year
		     AND r.office = pv.office AND r.candidate_number = $1
		WHERE pv.office = $2 AND pv.year = $3
	`

	summary := executiveSummary{
		Candidate: q.Candidate,
		Office:    string(q.Office),
		Year:      int(q.Year),
	}
	var totals int64
	err := s.db.QueryRow(ctx, query, q.Candidate, string(q.Office), int(q.Year)).
		Scan(&summary.TotalVotes, &totals, &summary.Places, &summary.PlacesWithVotes)
	if err != nil {
		return nil, fmt.Errorf("error querying summary panel: %w", err)
	}

	summary.Percent = election.Percent(summary.TotalVotes, totals)
	return &summary, nil
}

func (s *ElectionStore) distribution(ctx context.Context, q election.IntelligenceQuery) (*distribution, error) {
	var (
		dist distribution
		err  error
	)
	dist.Municipalities, err = s.votesBy(ctx, "city", q)
	if err != nil {
		return nil, err
	}
	dist.Neighborhoods, err = s.votesBy(ctx, "neighborhood", q)
	if err != nil {
		return nil, err
	}
	return &dist, nil
}

// votesBy sums the candidate's votes per value of a places column.
// column is never user input.
func (s *ElectionStore) votesBy(ctx context.Context, column string, q election.IntelligenceQuery) ([]areaVotes, error) {
	query := fmt.Sprintf(`
		SELECT p.%[1]s, SUM(r.votes)::bigint AS votes
		FROM results r
		JOIN places p ON p.id = r.place_id
		WHERE r.candidate_number = $1 AND r.office = $2 AND r.year = $3
		  AND p.%[1]s IS NOT NULL AND p.%[1]s <> ''
		GROUP BY p.%[1]s
		ORDER BY votes DESC, p.%[1]s
	`, column)

	rows, err := s.db.Query(ctx, query, q.Candidate, string(q.Office), int(q.Year))
	if err != nil {
		return nil, fmt.Errorf("error querying votes by %s: %w", column, err)
	}
	defer rows.Close()

	areas := []areaVotes{}
	for rows.Next() {
		var a areaVotes
		if err := rows.Scan(&a.Name, &a.Votes); err != nil {
			return nil, fmt.Errorf("error scanning votes by %s: %w", column, err)
		}
		areas = append(areas, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating votes by %s: %w", column, err)
	}

	return areas, nil
}

func (s *ElectionStore) topPlaces(ctx context.Context, q election.IntelligenceQuery) ([]topPlace, error) {
	query := `
		SELECT p.id, p.name, p.neighborhood, p.city, r.votes, pv.total_votes
		FROM results r
		JOIN places p ON p.id = r.place_id
		JOIN place_votes pv ON pv.place_id = r.place_id AND pv.year = r.year
		     AND pv.office = r.office
		WHERE r.candidate_number = $1 AND r.office = $2 AND r.year = $3
		ORDER BY r.votes DESC, p.name
		LIMIT $4
	`

	rows, err := s.db.Query(ctx, query, q.Candidate, string(q.Office), int(q.Year), topPlacesLimit)
	if err != nil {
		return nil, fmt.Errorf("error querying top places: %w", err)
	}
	defer rows.Close()

	places := []topPlace{}
	for rows.Next() {
		var (
			p                  topPlace
			neighborhood, city *string
			total              int64
		)
		if err := rows.Scan(&p.ID, &p.Name, &neighborhood, &city, &p.Votes, &total); err != nil {
			return nil, fmt.Errorf("error scanning top place: %w", err)
		}
		p.Neighborhood = deref(neighborhood)
		p.City = deref(city)
		p.Percent = election.Percent(p.Votes, total)
		places = append(places, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating top places: %w", err)
	}

	return places, nil
}
