package acquisitions

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"polpipe/internal/ledger"
	"polpipe/internal/model"
)

// POLCreator is what the submitter needs from the API client.
type POLCreator interface {
	CreatePOLine(ctx context.Context, record model.POLRecord) (string, error)
}

// Submitter drives one record through pending -> submitting -> terminal
// status. The ledger check happens before any network call, so re-runs of a
// fully submitted batch are free.
type Submitter struct {
	client   POLCreator
	ledger   ledger.Ledger
	attempts int
	backoff  time.Duration
}

func NewSubmitter(client POLCreator, ldg ledger.Ledger) *Submitter {
	return &Submitter{
		client:   client,
		ledger:   ldg,
		attempts: 4,
		backoff:  250 * time.Millisecond,
	}
}

func (s *Submitter) Submit(ctx context.Context, record model.POLRecord) model.SubmissionResult {
	entry, err := s.ledger.Get(ctx, record.Key)
	if err != nil {
		return model.SubmissionResult{
			Key:         record.Key,
			Status:      model.StatusFailed,
			ErrorDetail: "ledger lookup: " + err.Error(),
		}
	}
	if entry != nil {
		return model.SubmissionResult{
			Key:            record.Key,
			Status:         model.StatusDuplicate,
			RemotePOLineID: entry.RemotePOLineID,
		}
	}

	backoff := s.backoff
	var lastErr error
	for attempt := 0; attempt < s.attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return model.SubmissionResult{
					Key:         record.Key,
					Status:      model.StatusFailed,
					ErrorDetail: "run cancelled before retry: " + lastErr.Error(),
				}
			}
			backoff *= 2
		}

		// A cancelled run must not truncate an in-flight submission; the
		// client's own request timeout still bounds the call.
		poLineID, err := s.client.CreatePOLine(context.WithoutCancel(ctx), record)
		if err == nil {
			// The submission completed remotely; its ledger record must
			// survive run cancellation too, or a re-run would double-submit.
			if putErr := s.ledger.Put(context.WithoutCancel(ctx), record.Key, poLineID); putErr != nil {
				slog.Error("pol submitted but ledger write failed", "key", record.Key.String(), "error", putErr)
			}
			return model.SubmissionResult{
				Key:            record.Key,
				Status:         model.StatusSubmitted,
				RemotePOLineID: poLineID,
			}
		}

		var apiErr *APIError
		if errors.As(err, &apiErr) {
			return model.SubmissionResult{
				Key:         record.Key,
				Status:      model.StatusFailed,
				ErrorDetail: apiErr.Body,
			}
		}
		lastErr = err
	}

	return model.SubmissionResult{
		Key:         record.Key,
		Status:      model.StatusFailed,
		ErrorDetail: "submission retries exhausted: " + lastErr.Error(),
	}
}
