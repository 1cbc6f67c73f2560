// Package sources holds the HTTP clients for the external catalog APIs.
// Each client is constructed with its own configuration and a bounded
// timeout; base URLs are overridable so tests can point clients at local
// servers. Clients translate transport and payload failures into errors;
// interpretation of the data is left to the source processors.
package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	syncdomain "github.com/tradeshelf/backend/internal/domain/sync"
)

// maxResponseSize limits response bodies to prevent memory exhaustion.
const maxResponseSize = 64 * 1024 * 1024 // 64MB

const defaultTimeout = 30 * time.Second

// HTTPError is a non-2xx response from a source API.
type HTTPError struct {
	Status     int
	StatusText string
	URL        string
}

// Error implements the error interface
func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s returned %d: %s", e.URL, e.Status, e.StatusText)
}

func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &http.Client{Timeout: timeout}
}

// getJSON issues a GET with optional headers and decodes the JSON body
// into out.
func getJSON(ctx context.Context, client *http.Client, url string, headers map[string]string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &HTTPError{Status: resp.StatusCode, StatusText: resp.Status, URL: url}
	}

	body := io.LimitReader(resp.Body, maxResponseSize)
	if err := json.NewDecoder(body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w: %w", url, syncdomain.ErrBadPayload, err)
	}
	return nil
}
