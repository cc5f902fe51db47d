// Package rentcast provides a client for the Rentcast property data API.
package rentcast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

const defaultBaseURL = "https://api.rentcast.io/v1"

// ErrNotFound is returned when Rentcast has no data for the request.
var ErrNotFound = eris.New("rentcast: not found")

// APIError is a non-2xx response from Rentcast.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("rentcast: status %d: %s", e.StatusCode, e.Message)
}

// Temporary reports whether the request may succeed if retried later.
func (e *APIError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// Client defines the Rentcast operations used for valuation.
type Client interface {
	// RentEstimate returns the long-term rent AVM for a property.
	RentEstimate(ctx context.Context, p EstimateParams) (*RentResponse, error)
	// ValueEstimate returns the value AVM and the sale comparables behind it.
	ValueEstimate(ctx context.Context, p EstimateParams) (*ValueResponse, error)
	// Market returns sale and rental aggregates for a zip code.
	Market(ctx context.Context, zipCode string) (*MarketResponse, error)
}

// Option configures the Rentcast client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = u
	}
}

// WithHTTPClient sets the retrying HTTP client.
func WithHTTPClient(rc *retryablehttp.Client) Option {
	return func(c *httpClient) {
		c.http = rc
	}
}

// WithRateLimit caps outgoing requests per second. Zero disables limiting.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *retryablehttp.Client
	limiter *rate.Limiter
}

// NewClient creates a Rentcast client authenticating with apiKey.
func NewClient(apiKey string, opts ...Option) Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 2
	rc.RetryWaitMin = 200 * time.Millisecond
	rc.RetryWaitMax = 2 * time.Second
	rc.HTTPClient.Timeout = 15 * time.Second
	rc.Logger = nil
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler

	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http:    rc,
		limiter: rate.NewLimiter(rate.Limit(5), 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) RentEstimate(ctx context.Context, p EstimateParams) (*RentResponse, error) {
	var out RentResponse
	if err := c.get(ctx, "/avm/rent/long-term", estimateQuery(p), &out); err != nil {
		return nil, eris.Wrap(err, "rentcast: rent estimate")
	}
	return &out, nil
}

func (c *httpClient) ValueEstimate(ctx context.Context, p EstimateParams) (*ValueResponse, error) {
	var out ValueResponse
	if err := c.get(ctx, "/avm/value", estimateQuery(p), &out); err != nil {
		return nil, eris.Wrap(err, "rentcast: value estimate")
	}
	return &out, nil
}

func (c *httpClient) Market(ctx context.Context, zipCode string) (*MarketResponse, error) {
	q := url.Values{}
	q.Set("zipCode", zipCode)
	q.Set("dataType", "All")

	var out MarketResponse
	if err := c.get(ctx, "/markets", q, &out); err != nil {
		return nil, eris.Wrap(err, "rentcast: market")
	}
	return &out, nil
}

func estimateQuery(p EstimateParams) url.Values {
	q := url.Values{}
	q.Set("address", p.Address)
	if p.PropertyType != "" {
		q.Set("propertyType", p.PropertyType)
	}
	if p.Bedrooms > 0 {
		q.Set("bedrooms", strconv.Itoa(p.Bedrooms))
	}
	if p.Bathrooms > 0 {
		q.Set("bathrooms", strconv.FormatFloat(p.Bathrooms, 'f', -1, 64))
	}
	if p.SquareFootage > 0 {
		q.Set("squareFootage", strconv.Itoa(p.SquareFootage))
	}
	if p.CompCount > 0 {
		q.Set("compCount", strconv.Itoa(p.CompCount))
	}
	return q
}

func (c *httpClient) get(ctx context.Context, path string, q url.Values, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return eris.Wrap(err, "rate limit wait")
		}
	}

	reqURL := c.baseURL + path + "?" + q.Encode()
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return eris.Wrap(err, "create request")
	}
	req.Header.Set("X-Api-Key", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrap(err, "request failed")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return eris.Wrap(err, "read response body")
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode >= 300:
		return &APIError{StatusCode: resp.StatusCode, Message: errorMessage(body)}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return eris.Wrap(err, "decode response")
	}
	return nil
}

// errorMessage pulls "message" out of a Rentcast error body, falling back to
// the raw text.
func errorMessage(body []byte) string {
	var e struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(body, &e) == nil {
		if e.Message != "" {
			return e.Message
		}
		if e.Error != "" {
			return e.Error
		}
	}
	if len(body) > 200 {
		body = body[:200]
	}
	return string(body)
}

// IsTemporary reports whether err carries a retryable Rentcast status.
func IsTemporary(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Temporary()
}
