package scholar

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

const (
	// BaseURL is the Semantic Scholar Academic Graph API base URL.
	BaseURL = "https://api.semanticscholar.org/graph/v1"

	// DefaultRateLimit is 1 request per second, the public unauthenticated
	// limit. Authenticated clients can raise it with WithRateLimit.
	DefaultRateLimit = 1.0

	// DefaultMaxRetries bounds the retry attempts on 429/5xx responses.
	DefaultMaxRetries = 4

	// DefaultBackoffBase is the first retry delay; it doubles per attempt.
	DefaultBackoffBase = 500 * time.Millisecond

	// DefaultPageLimit is the page size for references/citations listings.
	DefaultPageLimit = 100

	// paperFields are the fields requested for every paper lookup.
	paperFields = "title,abstract,venue,year,citationCount,referenceCount,externalIds,authors"
)

// Client is a rate-limited HTTP client for the Semantic Scholar API.
// The limiter is the only shared mutable state and is safe for concurrent
// use from a worker pool.
type Client struct {
	httpClient  *http.Client
	limiter     *rate.Limiter
	apiKey      string
	baseURL     string
	maxRetries  int
	backoffBase time.Duration
	pageLimit   int
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithAPIKey sets the API key for authenticated requests.
func WithAPIKey(key string) ClientOption {
	return func(c *Client) { c.apiKey = key }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(u string) ClientOption {
	return func(c *Client) { c.baseURL = u }
}

// WithRateLimit sets the requests-per-second limit.
func WithRateLimit(rps float64) ClientOption {
	return func(c *Client) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

// WithMaxRetries bounds the retry attempts for 429/5xx responses.
func WithMaxRetries(n int) ClientOption {
	return func(c *Client) {
		if n >= 0 {
			c.maxRetries = n
		}
	}
}

// WithBackoffBase sets the initial retry delay (doubles per attempt).
// Tests use this to avoid real sleeps.
func WithBackoffBase(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.backoffBase = d
		}
	}
}

// WithPageLimit sets the page size for paginated listings.
func WithPageLimit(n int) ClientOption {
	return func(c *Client) {
		if n > 0 {
			c.pageLimit = n
		}
	}
}

// NewClient creates a new Semantic Scholar API client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient:  &http.Client{Timeout: 60 * time.Second},
		limiter:     rate.NewLimiter(rate.Limit(DefaultRateLimit), 1),
		baseURL:     BaseURL,
		maxRetries:  DefaultMaxRetries,
		backoffBase: DefaultBackoffBase,
		pageLimit:   DefaultPageLimit,
	}

	// Check for API key in environment
	if key := os.Getenv("S2_API_KEY"); key != "" {
		c.apiKey = key
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// get performs a rate-limited GET with bounded exponential-backoff retries
// on 429 and 5xx responses. Network failures are retried on the same budget.
// 4xx responses other than 429 are not retried.
func (c *Client) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := c.backoffBase << (attempt - 1)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, fmt.Errorf("creating request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		if c.apiKey != "" {
			req.Header.Set("x-api-key", c.apiKey)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusOK:
			if readErr != nil {
				lastErr = readErr
				continue
			}
			return body, nil
		case resp.StatusCode == http.StatusNotFound:
			return nil, ErrNotFound
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			return nil, fmt.Errorf("%w: status %d", ErrAuth, resp.StatusCode)
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			lastErr = &APIError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
			continue
		default:
			return nil, &APIError{StatusCode: resp.StatusCode, Message: string(body)}
		}
	}

	return nil, fmt.Errorf("%w: %d attempts: %v", ErrTransient, c.maxRetries+1, lastErr)
}

// GetPaper fetches a paper by its identifier. The identifier may be a raw
// S2 paper ID or any prefixed form accepted by ParsePaperID.
func (c *Client) GetPaper(ctx context.Context, paperID string) (*PaperRecord, error) {
	params := url.Values{}
	params.Set("fields", paperFields)

	body, err := c.get(ctx, "/paper/"+url.PathEscape(ParsePaperID(paperID).String()), params)
	if err != nil {
		return nil, err
	}

	var paper PaperRecord
	if err := json.Unmarshal(body, &paper); err != nil {
		return nil, fmt.Errorf("%w: parsing paper %s: %v", ErrSchema, paperID, err)
	}

	return &paper, nil
}

// References fetches one page of the papers referenced by the given paper,
// starting at offset. The returned Page reports the offset to resume from.
func (c *Client) References(ctx context.Context, paperID string, offset int) (*Page, error) {
	return c.linked(ctx, paperID, "references", offset)
}

// Citations fetches one page of the papers citing the given paper,
// starting at offset.
func (c *Client) Citations(ctx context.Context, paperID string, offset int) (*Page, error) {
	return c.linked(ctx, paperID, "citations", offset)
}

func (c *Client) linked(ctx context.Context, paperID, kind string, offset int) (*Page, error) {
	params := url.Values{}
	params.Set("fields", paperFields)
	params.Set("limit", strconv.Itoa(c.pageLimit))
	if offset > 0 {
		params.Set("offset", strconv.Itoa(offset))
	}

	path := "/paper/" + url.PathEscape(ParsePaperID(paperID).String()) + "/" + kind
	body, err := c.get(ctx, path, params)
	if err != nil {
		return nil, err
	}

	var wire linkPage
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, fmt.Errorf("%w: parsing %s of %s: %v", ErrSchema, kind, paperID, err)
	}

	page := &Page{Offset: wire.Offset}
	if wire.Next != nil {
		page.Next = *wire.Next
		page.More = true
	}
	for _, entry := range wire.Data {
		switch {
		case entry.CitedPaper != nil:
			page.Records = append(page.Records, *entry.CitedPaper)
		case entry.CitingPaper != nil:
			page.Records = append(page.Records, *entry.CitingPaper)
		}
	}

	return page, nil
}

// AllReferences fetches up to max referenced papers, following pagination.
// A max of 0 means no bound beyond what the API returns.
func (c *Client) AllReferences(ctx context.Context, paperID string, max int) ([]PaperRecord, error) {
	return c.allLinked(ctx, paperID, "references", max)
}

// AllCitations fetches up to max citing papers, following pagination.
func (c *Client) AllCitations(ctx context.Context, paperID string, max int) ([]PaperRecord, error) {
	return c.allLinked(ctx, paperID, "citations", max)
}

func (c *Client) allLinked(ctx context.Context, paperID, kind string, max int) ([]PaperRecord, error) {
	var records []PaperRecord
	offset := 0
	for {
		page, err := c.linked(ctx, paperID, kind, offset)
		if err != nil {
			return nil, err
		}
		for _, rec := range page.Records {
			records = append(records, rec)
			if max > 0 && len(records) >= max {
				return records, nil
			}
		}
		if !page.More {
			return records, nil
		}
		offset = page.Next
	}
}
