package scrape

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rotisserie/eris"

	"github.com/sells-group/property-engine/internal/resilience"
)

const maxResponseBytes = 2 << 20

// HTTPScraper delegates to an external scraping service that accepts
// {"url": ...} and answers with a Result document.
type HTTPScraper struct {
	endpoint string
	apiKey   string
	hosts    []string
	http     *retryablehttp.Client
}

// HTTPOption configures an HTTPScraper.
type HTTPOption func(*HTTPScraper)

// WithHTTPClient sets the retrying client used for requests.
func WithHTTPClient(rc *retryablehttp.Client) HTTPOption {
	return func(s *HTTPScraper) {
		s.http = rc
	}
}

// WithAPIKey sends key as a bearer token.
func WithAPIKey(key string) HTTPOption {
	return func(s *HTTPScraper) {
		s.apiKey = key
	}
}

// WithHosts limits the scraper to URLs whose host contains one of hosts.
func WithHosts(hosts ...string) HTTPOption {
	return func(s *HTTPScraper) {
		s.hosts = hosts
	}
}

// NewHTTPScraper creates a scraper posting to endpoint.
func NewHTTPScraper(endpoint string, opts ...HTTPOption) *HTTPScraper {
	s := &HTTPScraper{endpoint: endpoint}
	for _, opt := range opts {
		opt(s)
	}
	if s.http == nil {
		s.http = resilience.NewHTTPClient(resilience.HTTPClientConfig{Retries: 2})
	}
	return s
}

// Name implements ListingScraper.
func (s *HTTPScraper) Name() string { return "http" }

// Supports implements ListingScraper.
func (s *HTTPScraper) Supports(rawURL string) bool {
	if len(s.hosts) == 0 {
		return true
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	for _, h := range s.hosts {
		if strings.Contains(host, strings.ToLower(h)) {
			return true
		}
	}
	return false
}

// Scrape implements ListingScraper.
func (s *HTTPScraper) Scrape(ctx context.Context, listingURL string) (*Result, error) {
	payload, err := json.Marshal(map[string]string{"url": listingURL})
	if err != nil {
		return nil, eris.Wrap(err, "scrape: encode request")
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, eris.Wrap(err, "scrape: create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "scrape: request failed")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, eris.Wrap(err, "scrape: read response body")
	}

	if blocked, bt := DetectBlock(resp, body); blocked {
		return nil, eris.Wrapf(ErrBlocked, "scrape: %s (%s)", listingURL, bt)
	}
	if resilience.IsTransientHTTPStatus(resp.StatusCode) {
		return nil, resilience.NewTransientError(
			eris.Errorf("scrape: status %d", resp.StatusCode), resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("scrape: unexpected status %d: %s", resp.StatusCode, truncate(body, 200))
	}

	var res Result
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, eris.Wrap(err, "scrape: decode response")
	}
	res.Source = s.Name()
	return &res, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
