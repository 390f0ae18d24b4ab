package pipeline

import (
	"encoding/json"
	"io"

	"polpipe/internal/model"
)

type reportRow struct {
	Kind string `json:"kind"`
	model.LineResult
}

type readErrorRow struct {
	Kind   string `json:"kind"`
	Line   int    `json:"line"`
	Reason string `json:"reason"`
}

// WriteNDJSON emits the full per-line detail of a run as newline-delimited
// JSON: one object per read error, then one per processed line.
func WriteNDJSON(w io.Writer, report model.RunReport) error {
	enc := json.NewEncoder(w)
	for _, re := range report.ReadErrors {
		if err := enc.Encode(readErrorRow{Kind: "read_error", Line: re.Line, Reason: re.Reason}); err != nil {
			return err
		}
	}
	for _, line := range report.Lines {
		if err := enc.Encode(reportRow{Kind: "line", LineResult: line}); err != nil {
			return err
		}
	}
	return nil
}
