package catalog

import (
	"context"
	"errors"
	"testing"
	"time"

	"polpipe/internal/model"
)

func TestSimilarity(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		a, b string
		want float64
	}{
		{"identical", "Dune", "Dune", 1},
		{"case and punctuation insensitive", "dune!", "DUNE", 1},
		{"diacritics folded", "Café Europa", "cafe europa", 1},
		{"disjoint", "Dune", "Hamlet", 0},
		{"partial overlap", "Dune Messiah", "Dune", 2.0 / 3.0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := similarity(tc.a, tc.b)
			if diff := got - tc.want; diff > 1e-9 || diff < -1e-9 {
				t.Fatalf("similarity(%q, %q) = %v, want %v", tc.a, tc.b, got, tc.want)
			}
		})
	}
}

type fakeSearcher struct {
	candidates []Candidate
	err        error
	failures   int
	calls      int
}

func (f *fakeSearcher) Search(ctx context.Context, title, author string) ([]Candidate, error) {
	f.calls++
	if f.err != nil && (f.failures == 0 || f.calls <= f.failures) {
		return nil, f.err
	}
	return f.candidates, nil
}

func newTestResolver(s Searcher) *Resolver {
	r := NewResolver(s)
	r.backoff = time.Millisecond
	return r
}

func TestResolver_Resolve(t *testing.T) {
	t.Parallel()

	line := model.OrderLine{Title: "Dune", LineIndex: 3}

	t.Run("accepts a match above the threshold", func(t *testing.T) {
		searcher := &fakeSearcher{candidates: []Candidate{
			{Identifier: "ocn123", Title: "Dune", Score: 0.95},
			{Identifier: "ocn456", Title: "Dune Messiah", Score: 0.90},
		}}

		id := newTestResolver(searcher).Resolve(context.Background(), line)
		if id.CatalogID != "ocn123" {
			t.Fatalf("expected ocn123, got %q", id.CatalogID)
		}
		if id.MatchMethod != model.MatchTitle {
			t.Fatalf("expected %s, got %s", model.MatchTitle, id.MatchMethod)
		}
		if id.Confidence < 0.8 {
			t.Fatalf("expected confidence above threshold, got %v", id.Confidence)
		}
		if id.LineIndex != 3 {
			t.Fatalf("expected line index carried through, got %d", id.LineIndex)
		}
	})

	t.Run("ties break on service score", func(t *testing.T) {
		searcher := &fakeSearcher{candidates: []Candidate{
			{Identifier: "low", Title: "Dune", Score: 0.50},
			{Identifier: "high", Title: "Dune", Score: 0.99},
		}}

		id := newTestResolver(searcher).Resolve(context.Background(), line)
		if id.CatalogID != "high" {
			t.Fatalf("expected tie-break by service score, got %q", id.CatalogID)
		}
	})

	t.Run("below threshold returns no identifier but does not fail", func(t *testing.T) {
		searcher := &fakeSearcher{candidates: []Candidate{
			{Identifier: "ocn789", Title: "A Completely Different Title", Score: 0.99},
		}}

		id := newTestResolver(searcher).Resolve(context.Background(), line)
		if id.CatalogID != "" {
			t.Fatalf("expected empty catalog id, got %q", id.CatalogID)
		}
		if id.MatchMethod != model.MatchBelowThreshold {
			t.Fatalf("expected %s, got %s", model.MatchBelowThreshold, id.MatchMethod)
		}
	})

	t.Run("no candidates", func(t *testing.T) {
		searcher := &fakeSearcher{}
		id := newTestResolver(searcher).Resolve(context.Background(), line)
		if id.MatchMethod != model.MatchNoCandidates {
			t.Fatalf("expected %s, got %s", model.MatchNoCandidates, id.MatchMethod)
		}
	})

	t.Run("unreachable service retries then reports lookup_failed", func(t *testing.T) {
		searcher := &fakeSearcher{err: errors.New("connection refused")}

		id := newTestResolver(searcher).Resolve(context.Background(), line)
		if id.MatchMethod != model.MatchLookupFailed {
			t.Fatalf("expected %s, got %s", model.MatchLookupFailed, id.MatchMethod)
		}
		if id.CatalogID != "" {
			t.Fatalf("expected empty catalog id, got %q", id.CatalogID)
		}
		if searcher.calls != 3 {
			t.Fatalf("expected 3 attempts, got %d", searcher.calls)
		}
	})

	t.Run("recovers when a retry succeeds", func(t *testing.T) {
		searcher := &fakeSearcher{
			err:        errors.New("connection refused"),
			failures:   2,
			candidates: []Candidate{{Identifier: "ocn123", Title: "Dune", Score: 0.9}},
		}

		id := newTestResolver(searcher).Resolve(context.Background(), line)
		if id.CatalogID != "ocn123" {
			t.Fatalf("expected recovery on retry, got %+v", id)
		}
		if searcher.calls != 3 {
			t.Fatalf("expected 3 calls, got %d", searcher.calls)
		}
	})
}
