// internal/domain/election/compare.go

package election

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"mapaeleitoral/internal/domain/filter"
)

// CandidateSummary is one side of a comparison
type CandidateSummary struct {
	Number  int     `json:"number"`
	Votes   int64   `json:"votes"`
	Percent float64 `json:"percent"`
	Places  int     `json:"places"`
}

// Comparison puts two candidates of the same office side by side
type Comparison struct {
	Year   filter.Year      `json:"year"`
	Office filter.Office    `json:"office"`
	A      CandidateSummary `json:"a"`
	B      CandidateSummary `json:"b"`
}

// Compare fetches both candidates' result sets in parallel and
// summarises them.
func Compare(ctx context.Context, src Source, year filter.Year, office filter.Office, a, b int) (*Comparison, error) {
	if a <= 0 || b <= 0 {
		return nil, fmt.Errorf("both candidates are required")
	}

	cmp := &Comparison{Year: year, Office: office}
	g, gctx := errgroup.WithContext(ctx)

	summarise := func(number int, out *CandidateSummary) func() error {
		return func() error {
			points, err := src.Results(gctx, ResultQuery{Year: year, Office: office, Candidate: number})
			if err != nil {
				return fmt.Errorf("candidate %d: %w", number, err)
			}
			stats := ComputeStats(points)
			*out = CandidateSummary{
				Number:  number,
				Votes:   stats.TotalVotes,
				Percent: stats.Percent,
				Places:  stats.Places,
			}
			return nil
		}
	}

	g.Go(summarise(a, &cmp.A))
	g.Go(summarise(b, &cmp.B))

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return cmp, nil
}
