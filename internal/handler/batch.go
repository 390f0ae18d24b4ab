package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"polpipe/internal/model"
	"polpipe/internal/mw"
	"polpipe/internal/pipeline"
	"polpipe/internal/service"
	"polpipe/internal/templates"
)

const maxBatchBytes = 8 << 20

var knownVendors = map[string]bool{
	model.VendorAmazon:  true,
	model.VendorGeneric: true,
}

type uploadResponse struct {
	BatchID string `json:"batch_id"`
	RunID   string `json:"run_id"`
}

// UploadBatchHandler accepts a raw vendor CSV export and enqueues a pipeline
// run for it. The upload is stored verbatim; parsing happens in the run.
func UploadBatchHandler(runSvc *service.RunService, store *templates.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		operatorID, ok := r.Context().Value(mw.OperatorCtxKey).(string)
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		vendor := r.URL.Query().Get("vendor")
		if !knownVendors[vendor] {
			http.Error(w, "unknown vendor", http.StatusBadRequest)
			return
		}

		templateName := r.URL.Query().Get("template")
		if _, err := store.Get(templateName); err != nil {
			if errors.Is(err, templates.ErrTemplateNotFound) {
				http.Error(w, "unknown template", http.StatusBadRequest)
				return
			}
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBatchBytes))
		if err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		if len(payload) == 0 {
			http.Error(w, "empty batch", http.StatusBadRequest)
			return
		}

		batchID, runID, err := runSvc.CreateBatch(r.Context(), vendor, templateName, payload, operatorID)
		if err != nil {
			slog.Error("batch create failed", "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		if err := json.NewEncoder(w).Encode(uploadResponse{BatchID: batchID, RunID: runID}); err != nil {
			slog.Error("encode upload response", "error", err)
		}
	}
}

type runResponse struct {
	Run    model.Run        `json:"run"`
	Report *model.RunReport `json:"report,omitempty"`
}

func GetRunHandler(runSvc *service.RunService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		runID := chi.URLParam(r, "id")

		run, report, err := runSvc.GetRun(r.Context(), runID)
		if err != nil {
			if errors.Is(err, service.ErrRunNotFound) {
				http.NotFound(w, r)
				return
			}
			slog.Error("get run failed", "run", runID, "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(runResponse{Run: *run, Report: report}); err != nil {
			slog.Error("encode run response", "error", err)
		}
	}
}

func ListRunsHandler(runSvc *service.RunService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		runs, err := runSvc.ListRuns(r.Context(), 50)
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		if len(runs) == 0 {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(runs); err != nil {
			http.Error(w, "encode error", http.StatusInternalServerError)
		}
	}
}

// RunReportHandler streams the full per-line detail as NDJSON.
func RunReportHandler(runSvc *service.RunService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		runID := chi.URLParam(r, "id")

		_, report, err := runSvc.GetRun(r.Context(), runID)
		if err != nil {
			if errors.Is(err, service.ErrRunNotFound) {
				http.NotFound(w, r)
				return
			}
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		if report == nil {
			http.Error(w, "run has no report yet", http.StatusConflict)
			return
		}

		w.Header().Set("Content-Type", "application/x-ndjson")
		if err := pipeline.WriteNDJSON(w, *report); err != nil {
			slog.Error("write run report", "run", runID, "error", err)
		}
	}
}

type templateInfo struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Version     string `json:"version,omitempty"`
}

func ListTemplatesHandler(store *templates.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var out []templateInfo
		for _, t := range store.List() {
			out = append(out, templateInfo{Name: t.Name, Description: t.Description, Version: t.Version})
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(out); err != nil {
			http.Error(w, "encode error", http.StatusInternalServerError)
		}
	}
}
