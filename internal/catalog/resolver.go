package catalog

import (
	"context"
	"log/slog"
	"time"

	"polpipe/internal/model"
)

// Matching policy: accept the best candidate at similarity >= 0.80; ties go
// to the higher service score, then to the earlier service-order position.
const defaultThreshold = 0.80

// Searcher is what the resolver needs from the catalog client.
type Searcher interface {
	Search(ctx context.Context, title, author string) ([]Candidate, error)
}

// Resolver turns a free-text title into a catalog identifier, or marks the
// line for manual review. It never returns an error: lookup problems are
// folded into the ResolvedIdentifier.
type Resolver struct {
	client    Searcher
	threshold float64
	attempts  int
	backoff   time.Duration
}

func NewResolver(client Searcher) *Resolver {
	return &Resolver{
		client:    client,
		threshold: defaultThreshold,
		attempts:  3,
		backoff:   200 * time.Millisecond,
	}
}

func (r *Resolver) Resolve(ctx context.Context, line model.OrderLine) model.ResolvedIdentifier {
	candidates, err := r.search(ctx, line)
	if err != nil {
		slog.Warn("catalog lookup failed", "title", line.Title, "error", err)
		return model.ResolvedIdentifier{LineIndex: line.LineIndex, MatchMethod: model.MatchLookupFailed}
	}
	if len(candidates) == 0 {
		return model.ResolvedIdentifier{LineIndex: line.LineIndex, MatchMethod: model.MatchNoCandidates}
	}

	best := candidates[0]
	bestScore := similarity(line.Title, best.Title)
	for _, cand := range candidates[1:] {
		score := similarity(line.Title, cand.Title)
		if score > bestScore || (score == bestScore && cand.Score > best.Score) {
			best, bestScore = cand, score
		}
	}

	if bestScore < r.threshold {
		return model.ResolvedIdentifier{
			LineIndex:   line.LineIndex,
			Confidence:  bestScore,
			MatchMethod: model.MatchBelowThreshold,
		}
	}

	return model.ResolvedIdentifier{
		LineIndex:   line.LineIndex,
		CatalogID:   best.Identifier,
		Confidence:  bestScore,
		MatchMethod: model.MatchTitle,
	}
}

func (r *Resolver) search(ctx context.Context, line model.OrderLine) ([]Candidate, error) {
	backoff := r.backoff
	var lastErr error
	for attempt := 0; attempt < r.attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			backoff *= 2
		}

		candidates, err := r.client.Search(ctx, line.Title, line.Author)
		if err == nil {
			return candidates, nil
		}
		lastErr = err
	}
	return nil, lastErr
}
