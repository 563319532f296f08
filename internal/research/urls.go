package research

import (
	"errors"
	"net/url"
	"sort"
	"strings"
)

var errInvalidURL = errors.New("research: URL missing scheme or host")

// canonicalizeURL normalizes a URL for dedupe purposes: lowercase
// scheme/host, strip a default port, strip the fragment, strip tracking
// query parameters, and sort the remaining query parameters so
// "?b=2&a=1" and "?a=1&b=2" canonicalize identically.
func canonicalizeURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", err
	}
	if u.Scheme == "" || u.Host == "" {
		return "", errInvalidURL
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	q := u.Query()
	for _, tracking := range trackingParams {
		q.Del(tracking)
	}
	if len(q) > 0 {
		keys := make([]string, 0, len(q))
		for k := range q {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var sb strings.Builder
		for i, k := range keys {
			if i > 0 {
				sb.WriteByte('&')
			}
			sb.WriteString(url.QueryEscape(k))
			sb.WriteByte('=')
			sb.WriteString(url.QueryEscape(q.Get(k)))
		}
		u.RawQuery = sb.String()
	} else {
		u.RawQuery = ""
	}

	if strings.HasSuffix(u.Path, "/") && u.Path != "/" {
		u.Path = strings.TrimSuffix(u.Path, "/")
	}
	return u.String(), nil
}

var trackingParams = []string{"utm_source", "utm_medium", "utm_campaign", "utm_term", "utm_content", "ref", "fbclid", "gclid"}

func parseURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	return u.Hostname(), nil
}
