package model

import "time"

// Run statuses.
const (
	RunQueued    = "QUEUED"
	RunRunning   = "RUNNING"
	RunCompleted = "COMPLETED"
	RunFailed    = "FAILED"
)

// Submission statuses.
const (
	StatusSubmitted = "submitted"
	StatusDuplicate = "duplicate"
	StatusFailed    = "failed"
)

// Pipeline stages recorded on per-line outcomes.
const (
	StageRead    = "read"
	StageResolve = "resolve"
	StageMerge   = "merge"
	StageSubmit  = "submit"
)

// Batch is a stored vendor order-confirmation upload.
type Batch struct {
	ID           string    `json:"id"`
	Vendor       string    `json:"vendor"`
	TemplateName string    `json:"template_name"`
	Payload      []byte    `json:"-"`
	UploadedBy   string    `json:"uploaded_by"`
	UploadedAt   time.Time `json:"uploaded_at"`
}

// Run is one execution of the pipeline over a batch.
type Run struct {
	ID         string     `json:"id"`
	BatchID    string     `json:"batch_id"`
	Status     string     `json:"status"`
	Error      string     `json:"error,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// SubmissionResult is the submitter's verdict for one merged record.
type SubmissionResult struct {
	Key            POLKey `json:"pol_key"`
	Status         string `json:"status"`
	RemotePOLineID string `json:"remote_po_line_id,omitempty"`
	ErrorDetail    string `json:"error_detail,omitempty"`
}

// LineResult is the full disposition of one order line, whatever stage it
// reached. Every input line of a run has exactly one.
type LineResult struct {
	LineIndex      int     `json:"line_index"`
	VendorOrderRef string  `json:"vendor_order_ref,omitempty"`
	Title          string  `json:"title,omitempty"`
	Outcome        string  `json:"outcome"`
	Stage          string  `json:"stage"`
	Detail         string  `json:"detail,omitempty"`
	CatalogID      string  `json:"catalog_id,omitempty"`
	Confidence     float64 `json:"confidence,omitempty"`
	Unresolved     bool    `json:"unresolved,omitempty"`
	RemotePOLineID string  `json:"remote_po_line_id,omitempty"`
}

// RunReport aggregates a run for operator consumption. Detail rows are kept
// for everything an operator may need to act on manually.
type RunReport struct {
	Vendor     string       `json:"vendor"`
	Template   string       `json:"template"`
	Total      int          `json:"total"`
	Submitted  int          `json:"submitted"`
	Duplicate  int          `json:"duplicate"`
	Failed     int          `json:"failed"`
	Unresolved int          `json:"unresolved"`
	ReadErrors []ReadError  `json:"read_errors,omitempty"`
	Lines      []LineResult `json:"lines"`
}
