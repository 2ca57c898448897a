package infra

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// UserAgent is sent with every outbound request.
const UserAgent = "cryptoreport/1.0 (+https://github.com/seenimoa/cryptoreport)"

// HTTPClient is the shared client used by DoGet. Providers that need a
// different timeout build their own client and call DoGetWith.
var HTTPClient = &http.Client{
	Timeout: 30 * time.Second,
}

// ErrHTTP wraps a non-2xx response. Body holds at most the first 4 KiB.
type ErrHTTP struct {
	StatusCode int
	Status     string
	Body       []byte
}

func (e *ErrHTTP) Error() string {
	return fmt.Sprintf("HTTP %d %s: %s", e.StatusCode, e.Status, string(e.Body))
}

// DoGet performs a GET with the shared client.
// The caller is responsible for closing the returned ReadCloser.
func DoGet(ctx context.Context, url string, headers map[string]string) (io.ReadCloser, int, error) {
	return DoGetWith(ctx, HTTPClient, url, headers)
}

// DoGetWith performs a GET request with the given client and headers,
// returning the response body on 2xx and an *ErrHTTP otherwise.
func DoGetWith(ctx context.Context, client *http.Client, url string, headers map[string]string) (io.ReadCloser, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("HTTP GET %s: %w", req.URL.Path, err)
	}

	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, resp.StatusCode, &ErrHTTP{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       body,
		}
	}

	return resp.Body, resp.StatusCode, nil
}
