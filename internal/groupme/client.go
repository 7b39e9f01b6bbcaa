// ABOUTME: HTTP client for the GroupMe v3 group messages endpoint
// ABOUTME: Fetches one page of records per call, paging with after_id or before_id

package groupme

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/time/rate"
)

// PageSize is the number of records requested per page
const PageSize = 100

// maxErrorBody caps how much of an error response is kept
const maxErrorBody = 64 << 10

// APIError is returned for any response other than 200 or 304.
// Body holds the response body verbatim, up to the first 64 KiB; Truncated
// reports that the body was longer and the rest was discarded.
type APIError struct {
	StatusCode int
	Body       string
	Truncated  bool
}

func (e *APIError) Error() string {
	return fmt.Sprintf("groupme api returned status %d: %s", e.StatusCode, strings.TrimSpace(e.Body))
}

// PageQuery selects a page. At most one of AfterID and BeforeID should be
// set; zero means unset. With neither set the API returns the newest page.
type PageQuery struct {
	AfterID  int64
	BeforeID int64
}

// Client talks to the GroupMe messages API.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
	limiter *rate.Limiter // nil means unthrottled
	logger  *slog.Logger
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the default http.Client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.client = hc }
}

// WithRateLimit spaces requests at most perSecond apart. Zero or negative
// leaves the client unthrottled.
func WithRateLimit(perSecond float64) Option {
	return func(c *Client) {
		if perSecond > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		} else {
			c.limiter = nil
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// NewClient creates a client for the API at baseURL (e.g. https://api.groupme.com).
func NewClient(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		token:   token,
		client:  &http.Client{},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "groupme")
	return c
}

// Messages fetches one page of a group's messages. An empty slice with a nil
// error means there is nothing more in the requested direction; the API
// answers 304 Not Modified in that case for before_id queries.
func (c *Client) Messages(ctx context.Context, groupID string, q PageQuery) ([]*Record, error) {
	params := url.Values{}
	params.Set("token", c.token)
	params.Set("limit", strconv.Itoa(PageSize))
	if q.AfterID != 0 {
		params.Set("after_id", strconv.FormatInt(q.AfterID, 10))
	}
	if q.BeforeID != 0 {
		params.Set("before_id", strconv.FormatInt(q.BeforeID, 10))
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("waiting for rate limiter: %w", err)
		}
	}

	endpoint := c.baseURL + "/v3/groups/" + url.PathEscape(groupID) + "/messages?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	c.logger.Debug("fetching page", "group_id", groupID, "after_id", q.AfterID, "before_id", q.BeforeID)

	resp, err := c.client.Do(req)
	if err != nil {
		// The url in *url.Error carries the token; report only the cause
		var uerr *url.Error
		if errors.As(err, &uerr) {
			return nil, fmt.Errorf("fetching messages: %w", uerr.Err)
		}
		return nil, fmt.Errorf("fetching messages: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotModified:
		return nil, nil
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody+1))
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if len(body) > maxErrorBody {
			body = body[:maxErrorBody]
			apiErr.Truncated = true
		}
		apiErr.Body = string(body)
		return nil, apiErr
	}

	var envelope struct {
		Response struct {
			Messages []json.RawMessage `json:"messages"`
		} `json:"response"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	records := make([]*Record, 0, len(envelope.Response.Messages))
	for _, raw := range envelope.Response.Messages {
		rec, err := ParseRecord(raw)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}
