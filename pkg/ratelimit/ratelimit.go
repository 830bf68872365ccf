// Package ratelimit gates query requests on an external rate-limiting
// service. The limiter itself lives outside this repository; this package
// only carries the client and the interface the handler consumes.
package ratelimit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrRateLimited is returned when the external limiter rejects the request.
var ErrRateLimited = errors.New("rate limit exceeded")

// Limiter answers whether a request identified by key may proceed. Any
// non-nil error means the request must not touch the database.
type Limiter interface {
	Allow(ctx context.Context, key string) error
}

// AllowAll is the limiter for deployments without a rate-limiting service.
type AllowAll struct{}

func (AllowAll) Allow(ctx context.Context, key string) error {
	return nil
}

// Client consults a remote limiter over HTTP: POST {"key": ...} to /check,
// expecting {"allowed": bool}.
type Client struct {
	http    *http.Client
	baseURL string
}

func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 2 * time.Second}
	}
	return &Client{http: httpClient, baseURL: baseURL}
}

type checkRequest struct {
	Key string `json:"key"`
}

type checkResponse struct {
	Allowed bool `json:"allowed"`
}

func (c *Client) Allow(ctx context.Context, key string) error {
	body, err := json.Marshal(checkRequest{Key: key})
	if err != nil {
		return fmt.Errorf("failed to marshal rate limit check: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/check", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build rate limit request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("rate limit check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return ErrRateLimited
	}
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("rate limit check returned status %d", resp.StatusCode)
	}

	var out checkResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return fmt.Errorf("failed to decode rate limit response: %w", err)
	}
	if !out.Allowed {
		return ErrRateLimited
	}
	return nil
}
