package worker

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"polpipe/internal/model"
	"polpipe/internal/pipeline"
	"polpipe/internal/service"
)

// Archiver is satisfied by archive.Archive; nil means archiving is disabled.
type Archiver interface {
	StoreReport(ctx context.Context, runID string, report model.RunReport) error
}

// RunWorker polls for queued runs and executes the pipeline over each one.
type RunWorker struct {
	runSvc   *service.RunService
	pipeline *pipeline.Pipeline
	archiver Archiver
	interval time.Duration
}

func NewRunWorker(runSvc *service.RunService, pl *pipeline.Pipeline, archiver Archiver) *RunWorker {
	return &RunWorker{
		runSvc:   runSvc,
		pipeline: pl,
		archiver: archiver,
		interval: 2 * time.Second,
	}
}

func (w *RunWorker) Start(ctx context.Context) {
	slog.Info("starting run worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("run worker stopped")
			return
		case <-ticker.C:
			if err := w.processNext(ctx); err != nil {
				slog.Error("run processing failed", "error", err)
			}
		}
	}
}

func (w *RunWorker) processNext(ctx context.Context) error {
	run, batch, err := w.runSvc.ClaimQueued(ctx)
	if err != nil {
		return fmt.Errorf("claim run: %w", err)
	}
	if run == nil {
		return nil
	}

	slog.Info("run started", "run", run.ID, "vendor", batch.Vendor, "template", batch.TemplateName)

	report, err := w.pipeline.Run(ctx, batch.Vendor, batch.TemplateName, bytes.NewReader(batch.Payload))
	if err != nil {
		// Batch-level failure: the batch itself was unreadable.
		if failErr := w.runSvc.FailRun(context.WithoutCancel(ctx), run.ID, err); failErr != nil {
			return fmt.Errorf("record run failure: %w", failErr)
		}
		slog.Error("run failed", "run", run.ID, "error", err)
		return nil
	}

	// Results are persisted even when the run was cancelled midway, so the
	// report never loses a line that was already submitted.
	if err := w.runSvc.FinishRun(context.WithoutCancel(ctx), run.ID, report); err != nil {
		return fmt.Errorf("finish run: %w", err)
	}

	slog.Info("run completed",
		"run", run.ID,
		"total", report.Total,
		"submitted", report.Submitted,
		"duplicate", report.Duplicate,
		"failed", report.Failed,
		"unresolved", report.Unresolved,
	)

	if w.archiver != nil {
		if err := w.archiver.StoreReport(context.WithoutCancel(ctx), run.ID, report); err != nil {
			slog.Error("report archive failed", "run", run.ID, "error", err)
		}
	}

	return nil
}
