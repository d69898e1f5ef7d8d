package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"sellerdesk/internal/core/id"
)

const headerIdempotencyKey = "X-Idempotency-Key"

// APIError is an error body returned by the API.
type APIError struct {
	Status  int            `json:"-"`
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("api: HTTP %d", e.Status)
	}
	return fmt.Sprintf("api: %s: %s", e.Code, e.Message)
}

type apiClient struct {
	baseURL string
	token   string
	http    *http.Client
}

func newClient() (*apiClient, error) {
	base := strings.TrimRight(apiURL, "/")
	if _, err := url.ParseRequestURI(base); err != nil {
		return nil, fmt.Errorf("invalid --api %q: %w", apiURL, err)
	}
	if apiToken == "" {
		return nil, fmt.Errorf("no access token: pass --token or set SELLERDESK_TOKEN")
	}
	return &apiClient{
		baseURL: base,
		token:   apiToken,
		http:    &http.Client{Timeout: 2 * time.Minute},
	}, nil
}

// selectionPath returns the API path of the current view's selection.
func selectionPath(suffix string) string {
	return "/api/v1/selections/" + url.PathEscape(viewName) + suffix
}

func (c *apiClient) get(ctx context.Context, path string, query url.Values, out any) error {
	if len(query) > 0 {
		path += "?" + query.Encode()
	}
	return c.do(ctx, http.MethodGet, path, nil, "", out)
}

// post sends body as JSON. An empty idempotencyKey gets a fresh one, so a
// retried command never runs twice on the server.
func (c *apiClient) post(ctx context.Context, path string, body any, idempotencyKey string, out any) error {
	if idempotencyKey == "" {
		idempotencyKey = id.New().String()
	}
	return c.do(ctx, http.MethodPost, path, body, idempotencyKey, out)
}

func (c *apiClient) do(ctx context.Context, method, path string, body any, idempotencyKey string, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if idempotencyKey != "" {
		req.Header.Set(headerIdempotencyKey, idempotencyKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		apiErr := &APIError{Status: resp.StatusCode}
		_ = json.Unmarshal(data, apiErr)
		return apiErr
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
