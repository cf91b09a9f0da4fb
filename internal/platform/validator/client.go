package validator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// Client talks to the external validator service over HTTP.
type Client struct {
	baseURL       string
	httpClient    *http.Client
	healthTimeout time.Duration
}

// NewClient creates a validator client. timeout bounds each validate call;
// healthTimeout bounds the health probe and should be short (a few seconds).
func NewClient(baseURL string, timeout, healthTimeout time.Duration) *Client {
	return &Client{
		baseURL:       baseURL,
		httpClient:    &http.Client{Timeout: timeout},
		healthTimeout: healthTimeout,
	}
}

// Health probes GET /health. Any error or non-2xx response counts as unhealthy.
func (c *Client) Health(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, c.healthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Warn().Err(err).Str("url", c.baseURL).Msg("validator health probe failed")
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

// ValidateRecommendation submits one recommendation for validation.
func (c *Client) ValidateRecommendation(ctx context.Context, req ValidationRequest) (*Result, error) {
	var result Result
	if err := c.post(ctx, "/validate/recommendation", req, &result); err != nil {
		return nil, err
	}
	if err := result.Validate(); err != nil {
		return nil, err
	}
	return &result, nil
}

// BatchItem pairs one batch result with its per-item error. Index positions
// mirror the request slice.
type BatchItem struct {
	Result *Result
	Err    error
}

// ValidateBatch submits all requests in one call to /validate/batch.
// A malformed item in the response yields a per-item error, not a batch failure.
func (c *Client) ValidateBatch(ctx context.Context, reqs []ValidationRequest) ([]BatchItem, error) {
	var results []Result
	if err := c.post(ctx, "/validate/batch", reqs, &results); err != nil {
		return nil, err
	}
	if len(results) != len(reqs) {
		return nil, fmt.Errorf("validator batch returned %d results for %d requests", len(results), len(reqs))
	}

	items := make([]BatchItem, len(results))
	for i := range results {
		r := results[i]
		if err := r.Validate(); err != nil {
			items[i] = BatchItem{Err: err}
			continue
		}
		items[i] = BatchItem{Result: &r}
	}
	return items, nil
}

func (c *Client) post(ctx context.Context, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("calling validator %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("validator %s returned status %d", path, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding validator response: %w", err)
	}
	return nil
}
