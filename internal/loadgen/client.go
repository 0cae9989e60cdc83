package loadgen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// client wraps http.Client with the few calls a load run makes.
type client struct {
	http    *http.Client
	baseURL string
}

func newClient(baseURL string, timeout time.Duration) *client {
	return &client{
		http:    &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

func (c *client) get(ctx context.Context, path string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: unexpected status %d", path, resp.StatusCode)
	}
	if v == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

// analyzeResult is the subset of the POST /analyze body a run inspects.
type analyzeResult struct {
	ID        string `json:"id"`
	Mismatch  bool   `json:"mismatch"`
	Persisted bool   `json:"persisted"`
}

// analyze submits one review and classifies the answer.
func (c *client) analyze(ctx context.Context, r Review) (outcome, analyzeResult, error) {
	body, err := json.Marshal(r)
	if err != nil {
		return outcomeFailed, analyzeResult{}, fmt.Errorf("marshal review: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/analyze", bytes.NewReader(body))
	if err != nil {
		return outcomeFailed, analyzeResult{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return outcomeFailed, analyzeResult{}, err
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusOK:
		var res analyzeResult
		if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
			return outcomeFailed, analyzeResult{}, fmt.Errorf("decode analysis: %w", err)
		}
		if !res.Persisted {
			return outcomeUnsaved, res, nil
		}
		return outcomeSaved, res, nil
	case http.StatusTooManyRequests:
		_, _ = io.Copy(io.Discard, resp.Body)
		return outcomeRejected, analyzeResult{}, nil
	default:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return outcomeFailed, analyzeResult{}, fmt.Errorf("POST /analyze: status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}
}
