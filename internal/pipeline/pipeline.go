package pipeline

import (
	"context"
	"fmt"
	"io"
	"sort"

	"golang.org/x/sync/errgroup"

	"polpipe/internal/model"
	"polpipe/internal/vendor"
)

// Collaborator contracts, satisfied by catalog.Resolver, templates.Merger and
// acquisitions.Submitter.
type Resolver interface {
	Resolve(ctx context.Context, line model.OrderLine) model.ResolvedIdentifier
}

type Merger interface {
	Merge(templateName string, line model.OrderLine, id model.ResolvedIdentifier) (model.POLRecord, error)
}

type Submitter interface {
	Submit(ctx context.Context, record model.POLRecord) model.SubmissionResult
}

// Pipeline drives every order line of a batch through resolve -> merge ->
// submit and aggregates one disposition per input row. A single line's
// failure never aborts the batch; only an unreadable batch does.
type Pipeline struct {
	resolver  Resolver
	merger    Merger
	submitter Submitter
	workers   int
}

func New(resolver Resolver, merger Merger, submitter Submitter, workers int) *Pipeline {
	if workers < 1 {
		workers = 1
	}
	return &Pipeline{resolver: resolver, merger: merger, submitter: submitter, workers: workers}
}

func (p *Pipeline) Run(ctx context.Context, vendorKind, templateName string, r io.Reader) (model.RunReport, error) {
	lines, readErrs, err := vendor.Parse(vendorKind, r)
	if err != nil {
		return model.RunReport{}, fmt.Errorf("read batch: %w", err)
	}

	report := model.RunReport{
		Vendor:     vendorKind,
		Template:   templateName,
		Total:      len(lines) + len(readErrs),
		ReadErrors: readErrs,
		Lines:      make([]model.LineResult, len(lines)),
	}

	g := &errgroup.Group{}
	g.SetLimit(p.workers)
	for i, line := range lines {
		// Cancellation stops new lines from starting; lines already in
		// flight run to completion inside the submitter.
		if ctx.Err() != nil {
			report.Lines[i] = model.LineResult{
				LineIndex:      line.LineIndex,
				VendorOrderRef: line.VendorOrderRef,
				Title:          line.Title,
				Outcome:        model.StatusFailed,
				Stage:          model.StageSubmit,
				Detail:         "run cancelled",
			}
			continue
		}

		i, line := i, line
		g.Go(func() error {
			report.Lines[i] = p.processLine(ctx, templateName, line)
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(report.Lines, func(a, b int) bool {
		return report.Lines[a].LineIndex < report.Lines[b].LineIndex
	})
	for _, lr := range report.Lines {
		switch lr.Outcome {
		case model.StatusSubmitted:
			report.Submitted++
		case model.StatusDuplicate:
			report.Duplicate++
		case model.StatusFailed:
			report.Failed++
		}
		if lr.Unresolved {
			report.Unresolved++
		}
	}

	return report, nil
}

func (p *Pipeline) processLine(ctx context.Context, templateName string, line model.OrderLine) model.LineResult {
	result := model.LineResult{
		LineIndex:      line.LineIndex,
		VendorOrderRef: line.VendorOrderRef,
		Title:          line.Title,
	}

	id := p.resolver.Resolve(ctx, line)
	result.CatalogID = id.CatalogID
	result.Confidence = id.Confidence
	// An unresolved identifier flags the line for manual review but never
	// blocks merge or submission.
	result.Unresolved = id.CatalogID == ""

	record, err := p.merger.Merge(templateName, line, id)
	if err != nil {
		result.Outcome = model.StatusFailed
		result.Stage = model.StageMerge
		result.Detail = err.Error()
		return result
	}

	sub := p.submitter.Submit(ctx, record)
	result.Outcome = sub.Status
	result.Stage = model.StageSubmit
	result.Detail = sub.ErrorDetail
	result.RemotePOLineID = sub.RemotePOLineID
	return result
}
