package scrape

import (
	"net/http"
	"strings"

	"github.com/rotisserie/eris"
)

// BlockType names the anti-bot wall a listing site put up.
type BlockType string

const (
	BlockNone       BlockType = ""
	BlockCloudflare BlockType = "cloudflare"
	BlockPerimeterX BlockType = "perimeterx"
	BlockCaptcha    BlockType = "captcha"
	BlockAccessDeny BlockType = "access_denied"
)

// ErrBlocked is returned when the listing site refused the scrape. It is
// never transient.
var ErrBlocked = eris.New("scrape: blocked by listing site")

// DetectBlock inspects a scraper service response for a forwarded block page.
func DetectBlock(resp *http.Response, body []byte) (bool, BlockType) {
	if resp == nil {
		return false, BlockNone
	}

	if resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusServiceUnavailable {
		if resp.Header.Get("cf-ray") != "" || strings.EqualFold(resp.Header.Get("server"), "cloudflare") {
			return true, BlockCloudflare
		}
	}

	lower := strings.ToLower(string(body))
	switch {
	case strings.Contains(lower, "px-captcha") || strings.Contains(lower, "perimeterx"):
		// Zillow and Realtor.com front their pages with PerimeterX.
		return true, BlockPerimeterX
	case strings.Contains(lower, "cf-browser-verification") || strings.Contains(lower, "checking your browser"):
		return true, BlockCloudflare
	case strings.Contains(lower, "captcha"):
		return true, BlockCaptcha
	case resp.StatusCode == http.StatusForbidden && strings.Contains(lower, "access denied"):
		return true, BlockAccessDeny
	}
	return false, BlockNone
}
