// Package heuristic derives a coarse listing record from nothing but a
// listing URL. It is the fallback tier when no scraper result is available.
package heuristic

import (
	"net/url"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Platform identifies the listing site a URL belongs to.
type Platform string

const (
	PlatformZillow  Platform = "zillow"
	PlatformRealtor Platform = "realtor"
	PlatformRedfin  Platform = "redfin"
	PlatformLoopNet Platform = "loopnet"
	PlatformUnknown Platform = "unknown"
)

// hostPlatforms is checked in order against the lower-cased hostname.
var hostPlatforms = []struct {
	host     string
	platform Platform
}{
	{"zillow.com", PlatformZillow},
	{"loopnet.com", PlatformLoopNet},
	{"realtor.com", PlatformRealtor},
	{"redfin.com", PlatformRedfin},
}

// Address is the location parsed from a URL. Empty strings are unknown.
type Address struct {
	Street  string `json:"street,omitempty"`
	City    string `json:"city,omitempty"`
	State   string `json:"state,omitempty"`
	ZipCode string `json:"zipCode,omitempty"`
}

// Empty reports whether no component was parsed.
func (a Address) Empty() bool {
	return a == Address{}
}

// DetectPlatform matches the URL host against the known listing sites.
func DetectPlatform(rawURL string) Platform {
	host := strings.ToLower(rawURL)
	if u, err := url.Parse(rawURL); err == nil && u.Host != "" {
		host = strings.ToLower(u.Hostname())
	}
	for _, hp := range hostPlatforms {
		if strings.Contains(host, hp.host) {
			return hp.platform
		}
	}
	return PlatformUnknown
}

// ParseAddress detects the platform and applies its slug rules. Anything the
// rules cannot find is left empty; nothing is guessed.
func ParseAddress(rawURL string) (Platform, Address) {
	platform := DetectPlatform(rawURL)
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return platform, Address{}
	}
	segs := pathSegments(u)

	switch platform {
	case PlatformZillow:
		return platform, parseZillow(segs)
	case PlatformRealtor:
		return platform, parseRealtor(segs)
	case PlatformRedfin:
		return platform, parseRedfin(segs)
	case PlatformLoopNet:
		return platform, parseLoopNet(segs)
	default:
		return platform, Address{}
	}
}

func pathSegments(u *url.URL) []string {
	var out []string
	for _, s := range strings.Split(u.Path, "/") {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// parseZillow reads /homedetails/<street>-<city>-<ST>-<zip>/<id>_zpid/.
func parseZillow(segs []string) Address {
	for i, s := range segs {
		if strings.EqualFold(s, "homedetails") && i+1 < len(segs) {
			return parseSlug(strings.Split(segs[i+1], "-"), true)
		}
	}
	// Building and community pages put the slug in other positions.
	for _, s := range segs {
		if a := parseSlug(strings.Split(s, "-"), true); !a.Empty() {
			return a
		}
	}
	return Address{}
}

// parseRealtor reads /realestateandhomes-detail/<street>_<city>_<ST>_<zip>_<id>.
func parseRealtor(segs []string) Address {
	for i, s := range segs {
		if !strings.EqualFold(s, "realestateandhomes-detail") || i+1 >= len(segs) {
			continue
		}
		parts := strings.Split(segs[i+1], "_")
		if len(parts) < 4 || !isState(parts[2]) {
			return Address{}
		}
		a := Address{
			Street: titleWords(strings.Split(parts[0], "-")),
			City:   titleWords(strings.Split(parts[1], "-")),
			State:  strings.ToUpper(parts[2]),
		}
		if isZip(parts[3]) {
			a.ZipCode = parts[3]
		}
		return a
	}
	return Address{}
}

// parseRedfin reads /<ST>/<City>/<street>-<zip>/home/<id>.
func parseRedfin(segs []string) Address {
	if len(segs) < 3 || !isState(segs[0]) {
		return Address{}
	}
	a := Address{
		State: strings.ToUpper(segs[0]),
		City:  titleWords(strings.Split(segs[1], "-")),
	}
	tokens := strings.Split(segs[2], "-")
	if n := len(tokens); n > 1 && isZip(tokens[n-1]) {
		a.ZipCode = tokens[n-1]
		tokens = tokens[:n-1]
	}
	a.Street = titleWords(tokens)
	return a
}

// parseLoopNet reads /Listing/<id>/<slug> or /Listing/<slug>/<id>.
func parseLoopNet(segs []string) Address {
	for i, s := range segs {
		if !strings.EqualFold(s, "listing") {
			continue
		}
		for _, cand := range segs[i+1:] {
			if isDigits(cand) {
				continue
			}
			return parseSlug(strings.Split(cand, "-"), false)
		}
	}
	return Address{}
}

// parseSlug finds a state code (followed by a zip when requireZip) scanning
// from the end, then splits the tokens before it at the first street suffix
// that follows a street name token.
func parseSlug(tokens []string, requireZip bool) Address {
	stateIdx := -1
	for i := len(tokens) - 1; i >= 0; i-- {
		if !isState(tokens[i]) {
			continue
		}
		hasZip := i+1 < len(tokens) && isZip(tokens[i+1])
		if hasZip || (!requireZip && i == len(tokens)-1) {
			stateIdx = i
			break
		}
	}
	if stateIdx < 0 {
		return Address{}
	}

	a := Address{State: strings.ToUpper(tokens[stateIdx])}
	if stateIdx+1 < len(tokens) && isZip(tokens[stateIdx+1]) {
		a.ZipCode = tokens[stateIdx+1]
	}

	suffixIdx := -1
	named := false
	for i := 0; i < stateIdx; i++ {
		tok := strings.ToLower(tokens[i])
		if streetSuffixes[tok] && named {
			suffixIdx = i
			break
		}
		if !isDigits(tok) && !directionals[tok] {
			named = true
		}
	}
	if suffixIdx < 0 {
		return a
	}
	a.Street = titleWords(tokens[:suffixIdx+1])
	if suffixIdx+1 < stateIdx {
		a.City = titleWords(tokens[suffixIdx+1 : stateIdx])
	}
	return a
}

// titleWords joins non-empty tokens with spaces in title case.
func titleWords(tokens []string) string {
	// Casers carry state, so one is built per call.
	caser := cases.Title(language.English)
	words := make([]string, 0, len(tokens))
	for _, t := range tokens {
		t = strings.ToLower(strings.TrimSpace(t))
		switch {
		case t == "":
		case directionals[t]:
			words = append(words, strings.ToUpper(t))
		default:
			words = append(words, caser.String(t))
		}
	}
	return strings.Join(words, " ")
}
