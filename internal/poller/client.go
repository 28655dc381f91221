package poller

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/jpalmerr/podbridge/internal/pod"
)

const maxResponseBodySize = 1 << 20 // 1MB

// DefaultStatusPath is the status endpoint served by the pod's local API.
const DefaultStatusPath = "/api/deviceStatus"

// one target, one outstanding request: a tiny pool is enough
const (
	defaultMaxIdleConns        = 2
	defaultMaxIdleConnsPerHost = 2
	defaultMaxConnsPerHost     = 2
	defaultIdleConnTimeout     = 60 * time.Second
)

// Target is the address of the pod's status endpoint.
type Target struct {
	Host string
	Port int

	// Path defaults to [DefaultStatusPath] when empty.
	Path string
}

// URL returns the full status URL, http://{host}:{port}{path}.
func (t Target) URL() string {
	path := t.Path
	if path == "" {
		path = DefaultStatusPath
	}
	if path[0] != '/' {
		path = "/" + path
	}
	return "http://" + net.JoinHostPort(t.Host, strconv.Itoa(t.Port)) + path
}

// Client is an HTTP client wrapper for fetching the status document.
//
// Client uses per-request timeouts via context rather than a global timeout
// so the scheduler can bound each cycle independently.
type Client struct {
	httpClient *http.Client
}

// NewClient creates a new polling [Client].
func NewClient() *Client {
	return &Client{
		httpClient: &http.Client{
			// no default timeout - we use per-request timeouts via context
			Transport: &http.Transport{
				MaxIdleConns:        defaultMaxIdleConns,
				MaxIdleConnsPerHost: defaultMaxIdleConnsPerHost,
				MaxConnsPerHost:     defaultMaxConnsPerHost,
				IdleConnTimeout:     defaultIdleConnTimeout,
			},
		},
	}
}

// Fetch performs one GET against url and decodes the JSON object it returns.
//
// The timeout is applied via context cancellation. Every failure is returned
// as a [*FetchError]; Fetch never retries.
func (c *Client) Fetch(ctx context.Context, url string, timeout time.Duration) (pod.RawPayload, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FetchError{Kind: Unreachable, URL: url, Err: fmt.Errorf("failed to create request: %w", err)}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &FetchError{Kind: classify(err), URL: url, Err: fmt.Errorf("request failed: %w", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		// drain so the connection can be reused
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBodySize))
		return nil, &FetchError{
			Kind:       BadResponse,
			URL:        url,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected status code %d", resp.StatusCode),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
	if err != nil {
		return nil, &FetchError{Kind: classify(err), URL: url, Err: fmt.Errorf("failed to read response body: %w", err)}
	}

	payload, err := pod.DecodePayload(body)
	if err != nil {
		return nil, &FetchError{Kind: BadResponse, URL: url, Err: err}
	}
	return payload, nil
}

// Close closes all idle connections in the client's connection pool.
//
// Safe to call multiple times and on a nil client. After Close, the client
// remains usable but new connections will be established as needed.
func (c *Client) Close() {
	if c == nil || c.httpClient == nil {
		return
	}
	if transport, ok := c.httpClient.Transport.(*http.Transport); ok {
		transport.CloseIdleConnections()
	}
}
