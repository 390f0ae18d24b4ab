package acquisitions

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/time/rate"

	"polpipe/internal/model"
)

// APIError is a structured rejection from the acquisitions API (4xx). It is
// never retried.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("acquisitions API rejected request: %d, body: %s", e.StatusCode, e.Body)
}

type createResponse struct {
	POLineID string `json:"po_line_id"`
}

// Client calls the acquisitions API's create-POL endpoint. Bearer token
// acquisition and refresh happen inside the oauth2 transport; callers never
// see credentials.
type Client struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
}

// NewClient builds a client using client-credentials bearer auth. An empty
// clientID skips auth, which is only useful against local mocks.
func NewClient(baseURL, tokenURL, clientID, clientSecret string) *Client {
	httpClient := &http.Client{Timeout: 15 * time.Second}
	if clientID != "" {
		cc := clientcredentials.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			TokenURL:     tokenURL,
		}
		httpClient = cc.Client(context.Background())
		httpClient.Timeout = 15 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		client:  httpClient,
		limiter: rate.NewLimiter(rate.Every(100*time.Millisecond), 1),
	}
}

// CreatePOLine submits a merged record. 2xx returns the remote PO line id;
// 4xx returns *APIError; anything else is a transient failure the caller may
// retry.
func (c *Client) CreatePOLine(ctx context.Context, record model.POLRecord) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter: %w", err)
	}

	payload, err := json.Marshal(record.Fields)
	if err != nil {
		return "", fmt.Errorf("marshal pol record: %w", err)
	}

	url := fmt.Sprintf("%s/api/po-lines", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		var res createResponse
		if err := json.Unmarshal(body, &res); err != nil {
			return "", fmt.Errorf("decode response: %w", err)
		}
		return res.POLineID, nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return "", &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	default:
		return "", fmt.Errorf("unexpected status: %d, body: %s", resp.StatusCode, string(body))
	}
}
