// Package strava talks to the Strava OAuth endpoints and the athlete activity API.
package strava

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/torhovland/segmentor/internal/domain"
)

const (
	// DefaultBaseURL is the Strava v3 API root.
	DefaultBaseURL = "https://www.strava.com/api/v3"
	// MaxPageSize is the largest per_page value the API honours.
	MaxPageSize = 200

	maxErrorBody = 4 << 10
)

// APIError represents a non-successful API response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("strava api error: status %d", e.Status)
	}
	return fmt.Sprintf("strava api error: status %d: %s", e.Status, e.Message)
}

// ClientOption configures optional behaviour for the Client.
type ClientOption func(*Client)

// WithHTTPClient overrides the base HTTP client. Its transport is wrapped with bearer auth per call.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.base = hc
	}
}

// WithPageSize sets per_page, clamped to [1, MaxPageSize].
func WithPageSize(n int) ClientOption {
	return func(c *Client) {
		if n < 1 {
			n = 1
		}
		if n > MaxPageSize {
			n = MaxPageSize
		}
		c.pageSize = n
	}
}

// WithTimeout bounds a complete FetchActivities call. Zero disables the bound.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.timeout = d
	}
}

// Client fetches athlete activities. It retains no per-user state between calls.
type Client struct {
	baseURL  string
	base     *http.Client
	pageSize int
	timeout  time.Duration
}

// NewClient constructs a Client for the API rooted at baseURL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		base:     http.DefaultClient,
		pageSize: MaxPageSize,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchActivities enumerates every page of the authenticated athlete's activities.
// Nothing is returned unless all pages were read successfully.
func (c *Client) FetchActivities(ctx context.Context, accessToken string) ([]domain.RawActivity, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.base)
	hc := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"}))

	var all []domain.RawActivity
	for page := 1; ; page++ {
		batch, err := c.fetchPage(ctx, hc, page)
		if err != nil {
			return nil, fmt.Errorf("fetch activities page %d: %w", page, err)
		}
		all = append(all, batch...)
		if len(batch) < c.pageSize {
			return all, nil
		}
	}
}

func (c *Client) fetchPage(ctx context.Context, hc *http.Client, page int) ([]domain.RawActivity, error) {
	query := url.Values{}
	query.Set("page", strconv.Itoa(page))
	query.Set("per_page", strconv.Itoa(c.pageSize))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/athlete/activities?"+query.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, decodeAPIError(resp)
	}

	var batch []domain.RawActivity
	if err := json.NewDecoder(resp.Body).Decode(&batch); err != nil {
		return nil, fmt.Errorf("decode activities: %w", err)
	}
	return batch, nil
}

func decodeAPIError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	apiErr := &APIError{Status: resp.StatusCode}

	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Message != "" {
		apiErr.Message = payload.Message
	} else {
		apiErr.Message = strings.TrimSpace(string(body))
	}
	return apiErr
}
