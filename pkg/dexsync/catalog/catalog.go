// Package catalog is the HTTP client for the remote resource catalog.
//
// The catalog exposes a paginated listing per resource,
//
//	GET /<endpoint>?limit=N&offset=M -> {"count": 367, "next": "...", "results": [{"name": "...", "url": "..."}]}
//
// and a detail document per entry at /<endpoint>/<name>.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/jamesainslie/dexsync/pkg/dexsync/logging"
	"golang.org/x/time/rate"
)

// HTTPError reports a non-success status from the catalog.
type HTTPError struct {
	Status int
	URL    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("catalog request %s: http %d %s", e.URL, e.Status, http.StatusText(e.Status))
}

// Count is the result of a staleness probe. Known is false when the
// server did not report a usable total.
type Count struct {
	N     int
	Known bool
}

func (c Count) String() string {
	if !c.Known {
		return "unknown"
	}
	return strconv.Itoa(c.N)
}

// ListEntry is one reference in a catalog listing.
type ListEntry struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

type listPage struct {
	Count   json.RawMessage `json:"count"`
	Next    *string         `json:"next"`
	Results []ListEntry     `json:"results"`
}

// Options configures a Client.
type Options struct {
	BaseURL   string
	Timeout   time.Duration
	RateLimit float64 // requests per second; 0 disables pacing
	PageSize  int
	UserAgent string

	// Transport replaces the HTTP transport. Used by tests.
	Transport http.RoundTripper
}

// Client talks to the catalog. It is safe for concurrent use.
type Client struct {
	http     *resty.Client
	pageSize int
	logger   *logging.Logger
}

const (
	defaultTimeout  = 30 * time.Second
	defaultPageSize = 100000
	maxPages        = 10000
)

// New creates a catalog client.
func New(opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("catalog base URL cannot be empty")
	}
	if _, err := url.Parse(opts.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid catalog base URL: %w", err)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.PageSize <= 0 {
		opts.PageSize = defaultPageSize
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "dexsync"
	}

	logger := logging.Get("catalog")

	cli := resty.New().
		SetBaseURL(strings.TrimRight(opts.BaseURL, "/")).
		SetTimeout(opts.Timeout).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", opts.UserAgent)
	if opts.Transport != nil {
		cli.SetTransport(opts.Transport)
	}

	if opts.RateLimit > 0 {
		burst := int(opts.RateLimit)
		if burst < 1 {
			burst = 1
		}
		limiter := rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
		cli.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
			return limiter.Wait(req.Context())
		})
	}

	cli.OnAfterResponse(func(_ *resty.Client, resp *resty.Response) error {
		logger.Debug("catalog response",
			"method", resp.Request.Method,
			"url", resp.Request.URL,
			"status", resp.StatusCode(),
			"elapsed", resp.Time(),
		)
		return nil
	})

	return &Client{http: cli, pageSize: opts.PageSize, logger: logger}, nil
}

// ProbeCount asks for the smallest listing page and returns the server's
// reported total for endpoint.
func (c *Client) ProbeCount(ctx context.Context, endpoint string) (Count, error) {
	page, err := c.fetchPage(ctx, "/"+strings.Trim(endpoint, "/"), map[string]string{"limit": "1"})
	if err != nil {
		return Count{}, err
	}
	return parseCount(page.Count), nil
}

// ListAll returns every entry of endpoint, following next links when the
// server pages the result. Entries are deduplicated by name in first-seen order.
func (c *Client) ListAll(ctx context.Context, endpoint string) ([]ListEntry, error) {
	target := "/" + strings.Trim(endpoint, "/")
	params := map[string]string{
		"limit":  strconv.Itoa(c.pageSize),
		"offset": "0",
	}

	seen := make(map[string]struct{})
	visited := make(map[string]struct{})
	var entries []ListEntry

	for pages := 0; pages < maxPages; pages++ {
		page, err := c.fetchPage(ctx, target, params)
		if err != nil {
			return nil, err
		}

		for _, e := range page.Results {
			if e.Name == "" {
				continue
			}
			if _, dup := seen[e.Name]; dup {
				continue
			}
			seen[e.Name] = struct{}{}
			entries = append(entries, e)
		}

		if page.Next == nil || *page.Next == "" {
			return entries, nil
		}
		next := *page.Next
		if _, loop := visited[next]; loop {
			c.logger.Warn("catalog repeated a next link, stopping pagination", "endpoint", endpoint, "next", next)
			return entries, nil
		}
		visited[next] = struct{}{}

		// Absolute next links bypass the base URL; query parameters ride along.
		target = next
		params = nil
	}

	return nil, fmt.Errorf("listing %s exceeded %d pages", endpoint, maxPages)
}

// Detail returns the raw detail document for one entry.
func (c *Client) Detail(ctx context.Context, endpoint, name string) ([]byte, error) {
	target := "/" + strings.Trim(endpoint, "/") + "/" + url.PathEscape(name)
	resp, err := c.http.R().
		SetContext(ctx).
		Get(target)
	if err != nil {
		return nil, fmt.Errorf("detail request %s: %w", target, err)
	}
	if err := checkStatus(resp); err != nil {
		return nil, err
	}
	return resp.Body(), nil
}

func (c *Client) fetchPage(ctx context.Context, target string, params map[string]string) (*listPage, error) {
	req := c.http.R().SetContext(ctx)
	if len(params) > 0 {
		req.SetQueryParams(params)
	}

	resp, err := req.Get(target)
	if err != nil {
		return nil, fmt.Errorf("listing request %s: %w", target, err)
	}
	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	var page listPage
	if err := json.Unmarshal(resp.Body(), &page); err != nil {
		return nil, fmt.Errorf("decoding listing %s: %w", resp.Request.URL, err)
	}
	return &page, nil
}

func checkStatus(resp *resty.Response) error {
	if resp.StatusCode() >= http.StatusOK && resp.StatusCode() < http.StatusMultipleChoices {
		return nil
	}
	return &HTTPError{Status: resp.StatusCode(), URL: resp.Request.URL}
}

// parseCount accepts only a JSON integer. Anything else is unknown, never zero.
func parseCount(raw json.RawMessage) Count {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return Count{}
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return Count{}
	}
	return Count{N: n, Known: true}
}
