package model

// Vendor kinds the batch reader understands. Each kind maps a different raw
// export format onto the common OrderLine shape.
const (
	VendorAmazon  = "amazon"
	VendorGeneric = "generic"
)

// OrderLine is one normalized line of a vendor order confirmation. It is
// immutable once the batch reader has produced it.
type OrderLine struct {
	VendorID       string  `json:"vendor_id"`
	Title          string  `json:"title"`
	Author         string  `json:"author,omitempty"`
	UnitPrice      float64 `json:"unit_price"`
	Currency       string  `json:"currency"`
	VendorOrderRef string  `json:"vendor_order_ref"`
	Quantity       int     `json:"quantity"`
	LineIndex      int     `json:"line_index"`
}

// ReadError records a malformed input row that was excluded from the batch.
type ReadError struct {
	Line   int    `json:"line"`
	Reason string `json:"reason"`
}
