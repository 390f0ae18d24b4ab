package acquisitions

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"polpipe/internal/ledger"
	"polpipe/internal/model"
)

func TestClient_BearerAuth(t *testing.T) {
	t.Parallel()

	t.Run("attaches bearer token from the token endpoint", func(t *testing.T) {
		var tokenCalls atomic.Int32
		tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenCalls.Add(1)
			if r.Method != http.MethodPost {
				t.Errorf("expected POST to token endpoint, got %s", r.Method)
			}
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"access_token":"acq-token-1","token_type":"Bearer","expires_in":3600}`))
		}))
		defer tokenSrv.Close()

		var gotAuth string
		apiSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotAuth = r.Header.Get("Authorization")
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`{"po_line_id":"POL-42"}`))
		}))
		defer apiSrv.Close()

		client := NewClient(apiSrv.URL, tokenSrv.URL+"/oauth/token", "acq-client", "acq-secret")

		id, err := client.CreatePOLine(context.Background(), testRecord())
		if err != nil {
			t.Fatalf("expected create to succeed, got %v", err)
		}
		if id != "POL-42" {
			t.Fatalf("expected remote id POL-42, got %q", id)
		}
		if gotAuth != "Bearer acq-token-1" {
			t.Fatalf("expected bearer token on the API request, got %q", gotAuth)
		}
		if tokenCalls.Load() != 1 {
			t.Fatalf("expected 1 token fetch, got %d", tokenCalls.Load())
		}
	})

	t.Run("token endpoint failure is transient, not a rejection", func(t *testing.T) {
		tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer tokenSrv.Close()

		var apiCalls atomic.Int32
		apiSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			apiCalls.Add(1)
		}))
		defer apiSrv.Close()

		client := NewClient(apiSrv.URL, tokenSrv.URL+"/oauth/token", "acq-client", "acq-secret")

		_, err := client.CreatePOLine(context.Background(), testRecord())
		if err == nil {
			t.Fatal("expected an error when the token endpoint is down")
		}
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			t.Fatalf("token failure must not look like an API rejection: %v", err)
		}
		if apiCalls.Load() != 0 {
			t.Fatalf("expected no API call without a token, got %d", apiCalls.Load())
		}

		// The submitter treats it like any other transient fault: retry,
		// then fail the line.
		sub := newTestSubmitter(client, ledger.NewMemory())
		res := sub.Submit(context.Background(), testRecord())
		if res.Status != model.StatusFailed {
			t.Fatalf("expected failed after exhausted retries, got %+v", res)
		}
	})
}
