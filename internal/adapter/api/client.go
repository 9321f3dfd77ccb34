// internal/adapter/api/client.go

package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"mapaeleitoral/internal/domain/election"
	"mapaeleitoral/internal/domain/filter"
)

// ErrStatus is wrapped by errors for non-2xx upstream responses
var ErrStatus = errors.New("unexpected status")

// Config holds the upstream API settings
type Config struct {
	BaseURL string
	// Timeout bounds a single request. Zero means no client-side
	// timeout; cancellation still flows through the context.
	Timeout time.Duration
}

// Client implements election.Source against the aggregate-results REST API
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
}

var _ election.Source = (*Client)(nil)

// NewClient creates a new API client
func NewClient(cfg Config) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q: scheme and host are required", cfg.BaseURL)
	}

	return &Client{
		baseURL: base,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}, nil
}

// Results returns the per-place aggregates for a query
func (c *Client) Results(ctx context.Context, q election.ResultQuery) ([]election.ResultPoint, error) {
	var rows []resultRow
	if err := c.getJSON(ctx, "/results", q.Values(), &rows); err != nil {
		return nil, fmt.Errorf("error fetching results: %w", err)
	}

	points := make([]election.ResultPoint, 0, len(rows))
	for _, row := range rows {
		points = append(points, row.toDomain(q.Candidate > 0))
	}
	return points, nil
}

// Roster returns the candidates for an office and year
func (c *Client) Roster(ctx context.Context, year filter.Year, office filter.Office) ([]election.Candidate, error) {
	query := url.Values{}
	query.Set("year", strconv.Itoa(int(year)))
	query.Set("office", string(office))

	var roster []election.Candidate
	if err := c.getJSON(ctx, "/rosters", query, &roster); err != nil {
		return nil, fmt.Errorf("error fetching roster: %w", err)
	}

	// Some deployments return the whole year; keep the requested office only.
	filtered := roster[:0]
	for _, cand := range roster {
		if cand.Office == "" || cand.Office == office {
			filtered = append(filtered, cand)
		}
	}
	return filtered, nil
}

// StrategicPoints returns every strategic marker
func (c *Client) StrategicPoints(ctx context.Context) ([]election.StrategicPoint, error) {
	var rows []strategicRow
	if err := c.getJSON(ctx, "/strategic-points", nil, &rows); err != nil {
		return nil, fmt.Errorf("error fetching strategic points: %w", err)
	}

	points := make([]election.StrategicPoint, 0, len(rows))
	for _, row := range rows {
		if row.Lat == nil || row.Lng == nil {
			continue
		}
		points = append(points, election.StrategicPoint{
			ID:          string(row.ID),
			Position:    election.LatLng{Lat: float64(*row.Lat), Lng: float64(*row.Lng)},
			Title:       row.Title,
			Description: row.Description,
			IconKind:    row.IconKind,
			Color:       row.Color,
			Active:      row.Active,
		})
	}
	return points, nil
}

// PlaceDetail returns the ranking at a place
func (c *Client) PlaceDetail(ctx context.Context, id election.PlaceID, office filter.Office, year filter.Year) (*election.PlaceDetail, error) {
	query := url.Values{}
	query.Set("office", string(office))
	if year.Valid() {
		query.Set("year", strconv.Itoa(int(year)))
	}

	var detail election.PlaceDetail
	if err := c.getJSON(ctx, "/places/"+url.PathEscape(string(id)), query, &detail); err != nil {
		return nil, fmt.Errorf("error fetching place %s: %w", id, err)
	}
	return &detail, nil
}

// SearchPlaces finds places by name
func (c *Client) SearchPlaces(ctx context.Context, term string) ([]election.PlaceSummary, error) {
	query := url.Values{}
	query.Set("q", term)

	var rows []placeRow
	if err := c.getJSON(ctx, "/places/search", query, &rows); err != nil {
		return nil, fmt.Errorf("error searching places: %w", err)
	}

	places := make([]election.PlaceSummary, 0, len(rows))
	for _, row := range rows {
		places = append(places, election.PlaceSummary{
			ID:           row.ID,
			Name:         row.Name,
			Neighborhood: row.Neighborhood,
			City:         row.City,
			Position:     row.position(),
		})
	}
	return places, nil
}

// Growth returns the cycle-over-cycle change for a candidate
func (c *Client) Growth(ctx context.Context, candidate int, office filter.Office) (*election.Growth, error) {
	query := url.Values{}
	query.Set("candidate", strconv.Itoa(candidate))
	query.Set("office", string(office))

	var growth election.Growth
	if err := c.getJSON(ctx, "/growth", query, &growth); err != nil {
		return nil, fmt.Errorf("error fetching growth: %w", err)
	}
	return &growth, nil
}

// Options returns the filter selector contents
func (c *Client) Options(ctx context.Context, year filter.Year) (*election.Options, error) {
	query := url.Values{}
	query.Set("year", strconv.Itoa(int(year)))

	var opts election.Options
	if err := c.getJSON(ctx, "/options", query, &opts); err != nil {
		return nil, fmt.Errorf("error fetching options: %w", err)
	}
	return &opts, nil
}

// Intelligence returns a raw analysis panel payload
func (c *Client) Intelligence(ctx context.Context, q election.IntelligenceQuery) (json.RawMessage, error) {
	query := url.Values{}
	query.Set("candidate", strconv.Itoa(q.Candidate))
	query.Set("office", string(q.Office))
	query.Set("year", strconv.Itoa(int(q.Year)))

	var payload json.RawMessage
	if err := c.getJSON(ctx, "/intelligence/"+url.PathEscape(string(q.Panel)), query, &payload); err != nil {
		return nil, fmt.Errorf("error fetching %s panel: %w", q.Panel, err)
	}
	return payload, nil
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out interface{}) error {
	u := *c.baseURL
	u.Path = c.baseURL.Path + path
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("error making request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return election.ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w %d: %s", ErrStatus, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("error decoding response: %w", err)
	}
	return nil
}
