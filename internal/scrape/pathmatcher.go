package scrape

import (
	"net/url"
	"path"
	"strings"
)

// defaultExcludePatterns are search and browse pages on the supported
// listing sites. None of them describe a single property.
var defaultExcludePatterns = []string{
	"/homes/*",                     // zillow search
	"/city/*",                      // redfin city browse
	"/zipcode/*",                   // redfin zip browse
	"/realestateandhomes-search/*", // realtor search
	"/search/*",                    // loopnet search
	"/*_rb",                        // zillow region browse
}

// PathMatcher rejects URLs whose path matches a glob. A trailing "/*" also
// matches every deeper path under that prefix.
type PathMatcher struct {
	patterns []string
}

// NewPathMatcher lower-cases patterns. No patterns means the defaults.
func NewPathMatcher(patterns []string) *PathMatcher {
	if len(patterns) == 0 {
		patterns = defaultExcludePatterns
	}
	lowered := make([]string, len(patterns))
	for i, p := range patterns {
		lowered[i] = strings.ToLower(p)
	}
	return &PathMatcher{patterns: lowered}
}

// Patterns returns the configured patterns.
func (m *PathMatcher) Patterns() []string {
	return m.patterns
}

// IsExcluded reports whether rawURL is unparseable or matches a pattern.
func (m *PathMatcher) IsExcluded(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return true
	}
	p := strings.TrimSuffix(strings.ToLower(u.Path), "/")
	for _, pattern := range m.patterns {
		if matchPath(pattern, p) {
			return true
		}
	}
	return false
}

func matchPath(pattern, p string) bool {
	if ok, _ := path.Match(pattern, p); ok {
		return true
	}
	prefix, deep := strings.CutSuffix(pattern, "/*")
	return deep && (p == prefix || strings.HasPrefix(p, prefix+"/"))
}
