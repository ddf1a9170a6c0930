// Package strava is a minimal client for the two Strava v3 endpoints the
// exporter needs: the athlete activity list and the activity detail.
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

	"golang.org/x/time/rate"

	"github.com/claude/stravasummary/internal/models"
)

// TokenSource supplies a currently-valid bearer token. It is consulted before
// every request.
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
}

// APIError is a non-2xx response from the API.
type APIError struct {
	Endpoint   string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("GET %s returned %d: %s", e.Endpoint, e.StatusCode, e.Body)
}

// maxErrorBody bounds how much of an error response ends up in messages.
const maxErrorBody = 512

// Client calls the Strava API.
type Client struct {
	baseURL    string
	tokens     TokenSource
	httpClient *http.Client
	limiter    *rate.Limiter
	perPage    int
}

// Options configures a Client. Zero values fall back to defaults.
type Options struct {
	Timeout           time.Duration
	PerPage           int
	RequestsPerSecond float64 // 0 disables pacing
}

// NewClient creates a Client rooted at baseURL (e.g. https://www.strava.com/api/v3).
func NewClient(baseURL string, tokens TokenSource, opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.PerPage <= 0 {
		opts.PerPage = 200
	}
	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		tokens:     tokens,
		httpClient: &http.Client{Timeout: opts.Timeout},
		limiter:    rate.NewLimiter(limit, 1),
		perPage:    opts.PerPage,
	}
}

// ListActivities returns every activity with a start time strictly after
// after and strictly before before, following pagination until an empty or
// short page. Pages are concatenated in server order.
func (c *Client) ListActivities(ctx context.Context, after, before time.Time) ([]models.ActivityRecord, error) {
	var all []models.ActivityRecord
	for page := 1; ; page++ {
		params := url.Values{}
		params.Set("after", strconv.FormatInt(after.Unix(), 10))
		params.Set("before", strconv.FormatInt(before.Unix(), 10))
		params.Set("page", strconv.Itoa(page))
		params.Set("per_page", strconv.Itoa(c.perPage))

		var batch []activityJSON
		if err := c.get(ctx, "/athlete/activities", params, &batch); err != nil {
			return nil, fmt.Errorf("listing activities (page %d): %w", page, err)
		}
		for _, a := range batch {
			all = append(all, a.record())
		}
		if len(batch) < c.perPage {
			return all, nil
		}
	}
}

// GetActivity returns the detailed representation of one activity, including
// its metric splits.
func (c *Client) GetActivity(ctx context.Context, id int64) (models.ActivityRecord, error) {
	var a activityJSON
	if err := c.get(ctx, "/activities/"+strconv.FormatInt(id, 10), nil, &a); err != nil {
		return models.ActivityRecord{}, fmt.Errorf("fetching activity %d: %w", id, err)
	}
	return a.record(), nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	token, err := c.tokens.AccessToken(ctx)
	if err != nil {
		return err
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("waiting for rate limiter: %w", err)
	}

	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &APIError{Endpoint: path, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}
	return nil
}
