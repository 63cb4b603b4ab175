package similarity

import (
	"context"

	"fixmycity-be/models"

	"golang.org/x/sync/errgroup"
)

// ScoreCandidates scores the query against every issue in the pool. Scoring
// is independent per candidate and runs on a bounded worker group; results
// land by index so the outcome never depends on completion order. Ordering
// of the final response is the selector's job.
func (c Config) ScoreCandidates(ctx context.Context, q Query, pool []models.Issue) ([]Candidate, error) {
	candidates := make([]Candidate, len(pool))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(c.ScoreWorkers)

	for i := range pool {
		i := i
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			score, onTitle, onGeo := c.Score(q, &pool[i])
			candidates[i] = Candidate{
				Issue:          pool[i],
				Score:          score,
				MatchedOnTitle: onTitle,
				MatchedOnGeo:   onGeo,
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return candidates, nil
}
