// Package cloudflare is a minimal Workers KV client covering the two
// operations the directory needs: reading the active-database pointer and
// flipping it after a bulk reload.
package cloudflare

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultBaseURL = "https://api.cloudflare.com/client/v4"

// ErrKeyNotFound is returned by Get when the key does not exist in the
// namespace.
var ErrKeyNotFound = errors.New("kv key not found")

type KVClient struct {
	http        *http.Client
	baseURL     string
	token       string
	accountID   string
	namespaceID string
}

type KVOption func(*KVClient)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(c *http.Client) KVOption {
	return func(kv *KVClient) {
		kv.http = c
	}
}

// WithBaseURL overrides the API base URL. Used by tests.
func WithBaseURL(u string) KVOption {
	return func(kv *KVClient) {
		kv.baseURL = strings.TrimSuffix(u, "/")
	}
}

func NewKV(token, accountID, namespaceID string, opts ...KVOption) (*KVClient, error) {
	if token == "" {
		return nil, errors.New("api token is required")
	}
	if accountID == "" {
		return nil, errors.New("account id is required")
	}
	if namespaceID == "" {
		return nil, errors.New("namespace id is required")
	}

	kv := &KVClient{
		http:        &http.Client{Timeout: 10 * time.Second},
		baseURL:     defaultBaseURL,
		token:       token,
		accountID:   accountID,
		namespaceID: namespaceID,
	}
	for _, opt := range opts {
		opt(kv)
	}
	return kv, nil
}

func (kv *KVClient) valueURL(key string) string {
	return fmt.Sprintf("%s/accounts/%s/storage/kv/namespaces/%s/values/%s",
		kv.baseURL, kv.accountID, kv.namespaceID, url.PathEscape(key))
}

// Get reads the raw value stored under key.
func (kv *KVClient) Get(ctx context.Context, key string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, kv.valueURL(key), nil)
	if err != nil {
		return "", fmt.Errorf("failed to build kv get request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+kv.token)

	resp, err := kv.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to get kv key %q: %w", key, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", fmt.Errorf("%w: %q", ErrKeyNotFound, key)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d getting kv key %q", resp.StatusCode, key)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read kv value for %q: %w", key, err)
	}
	return string(body), nil
}

// Put writes value under key.
func (kv *KVClient) Put(ctx context.Context, key, value string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, kv.valueURL(key), strings.NewReader(value))
	if err != nil {
		return fmt.Errorf("failed to build kv put request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+kv.token)
	req.Header.Set("Content-Type", "text/plain")

	resp, err := kv.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to put kv key %q: %w", key, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d putting kv key %q", resp.StatusCode, key)
	}
	return nil
}
