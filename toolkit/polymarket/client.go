package polymarket

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/hupe1980/roma/logging"
)

var (
	// ErrClosed is reported by operations after Close.
	ErrClosed = errors.New("polymarket toolkit closed")
	// ErrNoGraphKey is reported by on-chain operations without a Graph API key.
	ErrNoGraphKey = errors.New("graph api key not configured")
	// ErrNotFound is reported when an upstream lookup returns nothing.
	ErrNotFound = errors.New("market not found")
)

// APIError is a non-2xx upstream response.
type APIError struct {
	Client     string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s api: status %d", e.Client, e.StatusCode)
	}
	return fmt.Sprintf("%s api: status %d: %s", e.Client, e.StatusCode, e.Body)
}

const maxErrorBody = 512

// httpClient is the transport shared by the three upstream clients.
type httpClient struct {
	name    string
	baseURL string
	http    *http.Client
	owned   bool
	limiter *rate.Limiter
	metrics *Metrics
	logger  logging.Logger
}

func newHTTPClient(name, baseURL string, opts Options, metrics *Metrics) *httpClient {
	c := &httpClient{
		name:    name,
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    opts.HTTPClient,
		limiter: rate.NewLimiter(opts.RateLimit, opts.RateBurst),
		metrics: metrics,
		logger:  opts.Logger,
	}
	if c.http == nil {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		c.http = &http.Client{Timeout: opts.Timeout, Transport: transport}
		c.owned = true
	}
	return c
}

func (c *httpClient) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", c.name, err)
	}
	return c.do(req, path, out)
}

func (c *httpClient) postJSON(ctx context.Context, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("%s: encode request: %w", c.name, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%s: build request: %w", c.name, err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, "graphql", out)
}

func (c *httpClient) do(req *http.Request, op string, out any) (err error) {
	if err := c.limiter.Wait(req.Context()); err != nil {
		return fmt.Errorf("%s: rate limit: %w", c.name, err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	status := "error"
	defer func() {
		d := time.Since(start)
		c.metrics.observeFetch(c.name, status, d)
		if err != nil {
			c.logger.Warn("polymarket.fetch.error", "client", c.name, "op", op, "duration_ms", d.Milliseconds(), "error", err.Error())
			return
		}
		c.logger.Debug("polymarket.fetch.done", "client", c.name, "op", op, "duration_ms", d.Milliseconds())
	}()

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", c.name, err)
	}
	defer resp.Body.Close()

	status = strconv.Itoa(resp.StatusCode)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &APIError{Client: c.name, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		status = "decode_error"
		return fmt.Errorf("%s: decode response: %w", c.name, err)
	}
	return nil
}

// close releases idle connections of a transport the client owns.
func (c *httpClient) close() {
	if c.owned {
		c.http.CloseIdleConnections()
	}
}
