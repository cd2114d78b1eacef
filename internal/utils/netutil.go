package utils

import (
	"net/url"
	"strings"
)

// Absolute resolves href against base. Unparseable input comes back as is.
func Absolute(base, href string) string {
	u, err := url.Parse(href)
	if err != nil || href == "" {
		return href
	}
	if u.IsAbs() {
		return u.String()
	}
	if base == "" {
		return href
	}
	bu, err := url.Parse(base)
	if err != nil {
		return href
	}
	return bu.ResolveReference(u).String()
}

// UnwrapRedirect returns the target of a search-engine redirect link
// ("/l/?uddg=<escaped url>"), or link unchanged.
func UnwrapRedirect(link string) string {
	u, err := url.Parse(link)
	if err != nil {
		return link
	}
	for _, key := range []string{"uddg", "url", "q"} {
		if v := u.Query().Get(key); strings.HasPrefix(v, "http://") || strings.HasPrefix(v, "https://") {
			return v
		}
	}
	return link
}

// IsHTTP reports whether link is an absolute http(s) URL.
func IsHTTP(link string) bool {
	u, err := url.Parse(link)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
