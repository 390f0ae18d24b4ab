package model

import "fmt"

// Match methods reported by the identifier resolver.
const (
	MatchTitle          = "title_match"
	MatchBelowThreshold = "below_threshold"
	MatchNoCandidates   = "no_candidates"
	MatchLookupFailed   = "lookup_failed"
)

// ResolvedIdentifier is the resolver's verdict for one order line. An empty
// CatalogID means the line needs manual review; it never blocks the pipeline.
type ResolvedIdentifier struct {
	LineIndex   int     `json:"line_index"`
	CatalogID   string  `json:"catalog_id,omitempty"`
	Confidence  float64 `json:"confidence"`
	MatchMethod string  `json:"match_method"`
}

// POLKey uniquely identifies a purchase-order line for idempotency purposes.
type POLKey struct {
	VendorOrderRef string `json:"vendor_order_ref"`
	LineIndex      int    `json:"line_index"`
}

func (k POLKey) String() string {
	return fmt.Sprintf("%s/%d", k.VendorOrderRef, k.LineIndex)
}

// POLRecord is a fully merged purchase-order line: template defaults,
// order-line overrides and the resolved identifier, ready for submission.
type POLRecord struct {
	Key    POLKey         `json:"key"`
	Fields map[string]any `json:"fields"`
}
