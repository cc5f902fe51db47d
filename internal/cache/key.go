package cache

import (
	"net/url"
	"strings"
)

// NormalizeKey canonicalizes a listing URL for cache lookup. Keys that parse
// as absolute URLs become lower-cased host+path without a trailing slash;
// anything else is lower-cased as-is.
func NormalizeKey(key string) string {
	u, err := url.Parse(key)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return strings.ToLower(key)
	}
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	out := strings.ToLower(u.Hostname() + path)
	return strings.TrimSuffix(out, "/")
}
