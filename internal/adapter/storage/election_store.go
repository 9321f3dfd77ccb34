// internal/adapter/storage/election_store.go

package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"mapaeleitoral/internal/domain/election"
	"mapaeleitoral/internal/domain/filter"
)

const searchLimit = 20

// ElectionStore reads election data straight from PostgreSQL. It is an
// alternative to the REST client for deployments colocated with the
// results database.
type ElectionStore struct {
	db *pgxpool.Pool
}

var _ election.Source = (*ElectionStore)(nil)

// NewElectionStore creates a new election store
func NewElectionStore(db *pgxpool.Pool) *ElectionStore {
	return &ElectionStore{
		db: db,
	}
}

// buildResultsQuery assembles the per-place results statement. Optional
// filters only add a predicate when present.
func buildResultsQuery(q election.ResultQuery) (string, []interface{}) {
	var sb strings.Builder
	args := []interface{}{int(q.Year), string(q.Office)}

	if q.Candidate > 0 {
		args = append(args, q.Candidate)
		sb.WriteString(`
		SELECT p.id, p.name, p.lat, p.lng, p.neighborhood, p.city, p.zone,
		       COALESCE(r.votes, 0), pv.total_votes
		FROM places p
		JOIN place_votes pv ON pv.place_id = p.id AND pv.year = $1 AND pv.office = $2
		LEFT JOIN results r ON r.place_id = p.id AND r.year = $1 AND r.office = $2
		     AND r.candidate_number = $3
		WHERE 1=1
		`)
	} else {
		sb.WriteString(`
		SELECT p.id, p.name, p.lat, p.lng, p.neighborhood, p.city, p.zone,
		       NULL::bigint, NULL::bigint
		FROM places p
		JOIN place_votes pv ON pv.place_id = p.id AND pv.year = $1 AND pv.office = $2
		WHERE 1=1
		`)
	}

	argIndex := len(args) + 1
	if q.Municipality != "" {
		sb.WriteString(fmt.Sprintf(" AND p.city = $%d", argIndex))
		args = append(args, q.Municipality)
		argIndex++
	}
	if q.Neighborhood != "" {
		sb.WriteString(fmt.Sprintf(" AND p.neighborhood = $%d", argIndex))
		args = append(args, q.Neighborhood)
		argIndex++
	}
	if q.Zone != "" {
		sb.WriteString(fmt.Sprintf(" AND p.zone = $%d", argIndex))
		args = append(args, q.Zone)
		argIndex++
	}
	if q.Party != "" {
		sb.WriteString(fmt.Sprintf(`
		AND EXISTS (
			SELECT 1 FROM results pr
			JOIN candidates c ON c.year = pr.year AND c.office = pr.office
			     AND c.number = pr.candidate_number
			WHERE pr.place_id = p.id AND pr.year = $1 AND pr.office = $2
			  AND c.party = $%d AND pr.votes > 0
		)`, argIndex))
		args = append(args, q.Party)
	}

	sb.WriteString(" ORDER BY p.name, p.id")
	return sb.String(), args
}

// Results returns the per-place aggregates matching a query
func (s *ElectionStore) Results(ctx context.Context, q election.ResultQuery) ([]election.ResultPoint, error) {
	query, args := buildResultsQuery(q)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying results: %w", err)
	}
	defer rows.Close()

	points := []election.ResultPoint{}
	for rows.Next() {
		var (
			p                  election.ResultPoint
			lat, lng           *float64
			neighborhood, city *string
			zone               *string
			votes, total       *int64
		)
		if err := rows.Scan(&p.ID, &p.Name, &lat, &lng, &neighborhood, &city, &zone, &votes, &total); err != nil {
			return nil, fmt.Errorf("error scanning result row: %w", err)
		}
		p.Position = position(lat, lng)
		p.Neighborhood = deref(neighborhood)
		p.City = deref(city)
		p.Zone = deref(zone)
		if votes != nil {
			p.VoteCount = votes
			p.LocalTotal = total
			pct := election.Percent(*votes, derefInt(total))
			p.PercentOfLocalTotal = &pct
		}
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating results: %w", err)
	}

	return points, nil
}

// Roster returns the candidates running for an office in a year
func (s *ElectionStore) Roster(ctx context.Context, year filter.Year, office filter.Office) ([]election.Candidate, error) {
	query := `
		SELECT number, name, party
		FROM candidates
		WHERE year = $1 AND office = $2
		ORDER BY number
	`

	rows, err := s.db.Query(ctx, query, int(year), string(office))
	if err != nil {
		return nil, fmt.Errorf("error querying roster: %w", err)
	}
	defer rows.Close()

	roster := []election.Candidate{}
	for rows.Next() {
		c := election.Candidate{Office: office}
		var party *string
		if err := rows.Scan(&c.Number, &c.Name, &party); err != nil {
			return nil, fmt.Errorf("error scanning candidate: %w", err)
		}
		c.Party = deref(party)
		roster = append(roster, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating roster: %w", err)
	}

	return roster, nil
}

// StrategicPoints returns every operator-curated marker with coordinates
func (s *ElectionStore) StrategicPoints(ctx context.Context) ([]election.StrategicPoint, error) {
	query := `
		SELECT id::text, lat, lng, title, description, icon_kind, color, active
		FROM strategic_points
		WHERE lat IS NOT NULL AND lng IS NOT NULL
		ORDER BY id
	`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error querying strategic points: %w", err)
	}
	defer rows.Close()

	points := []election.StrategicPoint{}
	for rows.Next() {
		var (
			p                  election.StrategicPoint
			description, color *string
		)
		if err := rows.Scan(
			&p.ID, &p.Position.Lat, &p.Position.Lng, &p.Title,
			&description, &p.IconKind, &color, &p.Active,
		); err != nil {
			return nil, fmt.Errorf("error scanning strategic point: %w", err)
		}
		p.Description = deref(description)
		p.Color = deref(color)
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating strategic points: %w", err)
	}

	return points, nil
}

// PlaceDetail returns the candidate ranking at one place
func (s *ElectionStore) PlaceDetail(ctx context.Context, id election.PlaceID, office filter.Office, year filter.Year) (*election.PlaceDetail, error) {
	if !year.Valid() {
		year = filter.DefaultYear
	}

	query := `
		SELECT id, name, address, neighborhood, city
		FROM places
		WHERE id = $1
	`

	var (
		detail                      election.PlaceDetail
		address, neighborhood, city *string
	)
	err := s.db.QueryRow(ctx, query, string(id)).Scan(
		&detail.Place.ID, &detail.Place.Name, &address, &neighborhood, &city,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("place %s: %w", id, election.ErrNotFound)
		}
		return nil, fmt.Errorf("error querying place: %w", err)
	}
	detail.Place.Address = deref(address)
	detail.Place.Neighborhood = deref(neighborhood)
	detail.Place.City = deref(city)

	rankingQuery := `
		SELECT r.candidate_number, COALESCE(c.name, ''), c.party, r.votes
		FROM results r
		LEFT JOIN candidates c ON c.year = r.year AND c.office = r.office
		     AND c.number = r.candidate_number
		WHERE r.place_id = $1 AND r.office = $2 AND r.year = $3
		ORDER BY r.votes DESC, r.candidate_number
	`

	rows, err := s.db.Query(ctx, rankingQuery, string(id), string(office), int(year))
	if err != nil {
		return nil, fmt.Errorf("error querying ranking: %w", err)
	}
	defer rows.Close()

	detail.Ranking = []election.RankingEntry{}
	for rows.Next() {
		var (
			entry election.RankingEntry
			party *string
		)
		if err := rows.Scan(&entry.CandidateNumber, &entry.CandidateName, &party, &entry.Votes); err != nil {
			return nil, fmt.Errorf("error scanning ranking entry: %w", err)
		}
		entry.Party = deref(party)
		detail.Ranking = append(detail.Ranking, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ranking: %w", err)
	}

	return &detail, nil
}

// SearchPlaces finds places whose name contains the term
func (s *ElectionStore) SearchPlaces(ctx context.Context, term string) ([]election.PlaceSummary, error) {
	query := `
		SELECT id, name, neighborhood, city, lat, lng
		FROM places
		WHERE name ILIKE '%' || $1 || '%'
		ORDER BY name
		LIMIT $2
	`

	rows, err := s.db.Query(ctx, query, escapeLike(term), searchLimit)
	if err != nil {
		return nil, fmt.Errorf("error searching places: %w", err)
	}
	defer rows.Close()

	places := []election.PlaceSummary{}
	for rows.Next() {
		var (
			p                  election.PlaceSummary
			neighborhood, city *string
			lat, lng           *float64
		)
		if err := rows.Scan(&p.ID, &p.Name, &neighborhood, &city, &lat, &lng); err != nil {
			return nil, fmt.Errorf("error scanning place: %w", err)
		}
		p.Neighborhood = deref(neighborhood)
		p.City = deref(city)
		p.Position = position(lat, lng)
		places = append(places, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating places: %w", err)
	}

	return places, nil
}

// Growth returns the change in a candidate's votes between the cycles
func (s *ElectionStore) Growth(ctx context.Context, candidate int, office filter.Office) (*election.Growth, error) {
	query := `
		SELECT
			COALESCE(SUM(votes) FILTER (WHERE year = $3), 0)::bigint,
			COALESCE(SUM(votes) FILTER (WHERE year = $4), 0)::bigint
		FROM results
		WHERE candidate_number = $1 AND office = $2
	`

	growth := election.Growth{Candidate: candidate, Office: office}
	err := s.db.QueryRow(ctx, query, candidate, string(office), int(filter.Year2018), int(filter.Year2022)).
		Scan(&growth.Votes2018, &growth.Votes2022)
	if err != nil {
		return nil, fmt.Errorf("error querying growth: %w", err)
	}

	growth.NominalChange = growth.Votes2022 - growth.Votes2018
	growth.PercentChange = election.Percent(growth.NominalChange, growth.Votes2018)
	return &growth, nil
}

// Options returns the filter selector contents for a year
func (s *ElectionStore) Options(ctx context.Context, year filter.Year) (*election.Options, error) {
	opts := election.Options{}

	columns := []struct {
		column string
		out    *[]string
	}{
		{"city", &opts.Municipalities},
		{"neighborhood", &opts.Neighborhoods},
		{"zone", &opts.Zones},
	}
	for _, c := range columns {
		values, err := s.distinctPlaceValues(ctx, c.column, year)
		if err != nil {
			return nil, err
		}
		*c.out = values
	}

	query := `
		SELECT party, COUNT(*)
		FROM candidates
		WHERE year = $1 AND party IS NOT NULL AND party <> ''
		GROUP BY party
		ORDER BY party
	`

	rows, err := s.db.Query(ctx, query, int(year))
	if err != nil {
		return nil, fmt.Errorf("error querying parties: %w", err)
	}
	defer rows.Close()

	opts.Parties = []election.PartyOption{}
	for rows.Next() {
		var p election.PartyOption
		if err := rows.Scan(&p.Code, &p.Candidates); err != nil {
			return nil, fmt.Errorf("error scanning party: %w", err)
		}
		opts.Parties = append(opts.Parties, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating parties: %w", err)
	}

	return &opts, nil
}

// distinctPlaceValues lists the non-empty values of a places column
// among places with results in the year. column is never user input.
func (s *ElectionStore) distinctPlaceValues(ctx context.Context, column string, year filter.Year) ([]string, error) {
	query := fmt.Sprintf(`
		SELECT DISTINCT p.%[1]s
		FROM places p
		JOIN place_votes pv ON pv.place_id = p.id
		WHERE pv.year = $1 AND p.%[1]s IS NOT NULL AND p.%[1]s <> ''
		ORDER BY p.%[1]s
	`, column)

	rows, err := s.db.Query(ctx, query, int(year))
	if err != nil {
		return nil, fmt.Errorf("error querying %s options: %w", column, err)
	}
	defer rows.Close()

	values := []string{}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("error scanning %s option: %w", column, err)
		}
		values = append(values, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating %s options: %w", column, err)
	}

	return values, nil
}

func position(lat, lng *float64) *election.LatLng {
	if lat == nil || lng == nil {
		return nil
	}
	return &election.LatLng{Lat: *lat, Lng: *lng}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefInt(n *int64) int64 {
	if n == nil {
		return 0
	}
	return *n
}

// escapeLike neutralises LIKE wildcards in user search terms
func escapeLike(term string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(term)
}
