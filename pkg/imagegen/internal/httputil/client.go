// ABOUTME: Shared HTTP client with bearer auth headers and tuned transport timeouts
// ABOUTME: No automatic retries; respects HTTP_PROXY/HTTPS_PROXY and context cancellation

package httputil

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

// maxErrorBody bounds how much of a failed response body is kept for errors.
const maxErrorBody = 64 * 1024

// Client wraps an http.Client with default headers.
type Client struct {
	httpClient *http.Client
	headers    map[string]string
}

// NewClient creates a client that sends the given headers on every request.
// There is no overall timeout: image generation can stream for minutes, so
// the caller's context bounds the exchange.
func NewClient(headers map[string]string) *Client {
	if headers == nil {
		headers = make(map[string]string)
	}
	return &Client{
		httpClient: &http.Client{
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout:   30 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				TLSClientConfig:       &tls.Config{MinVersion: tls.VersionTLS12},
				TLSHandshakeTimeout:   10 * time.Second,
				ResponseHeaderTimeout: 5 * time.Minute,
				MaxIdleConns:          100,
				IdleConnTimeout:       90 * time.Second,
			},
		},
		headers: headers,
	}
}

// BearerHeaders returns the JSON + Authorization headers used by every call.
func BearerHeaders(apiKey string) map[string]string {
	return map[string]string{
		"Content-Type":  "application/json",
		"Authorization": "Bearer " + apiKey,
	}
}

// Do sends one HTTP request. Extra headers override the client defaults.
func (c *Client) Do(ctx context.Context, method, url string, body io.Reader, extra map[string]string) (*http.Response, error) {
	req, err := c.buildRequest(ctx, method, url, body)
	if err != nil {
		return nil, err
	}
	for k, v := range extra {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	return resp, nil
}

// buildRequest creates an http.Request with default headers applied.
func (c *Client) buildRequest(ctx context.Context, method, url string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request for %s %s: %w", method, url, err)
	}

	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	return req, nil
}

// IsSuccess reports a 2xx status.
func IsSuccess(statusCode int) bool {
	return statusCode >= 200 && statusCode < 300
}

// ReadErrorBody drains up to maxErrorBody bytes of a failed response.
func ReadErrorBody(resp *http.Response) string {
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil && len(data) == 0 {
		return err.Error()
	}
	return string(data)
}

// IsStreaming reports whether the response content type carries SSE or NDJSON framing.
func IsStreaming(resp *http.Response) bool {
	ct := resp.Header.Get("Content-Type")
	return strings.Contains(ct, "text/event-stream") || strings.Contains(ct, "application/x-ndjson")
}
