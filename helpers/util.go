package helpers

import (
	"net/url"
	"strings"
)

// NormalizeURL removes utm_* tracking parameters so that state store keys
// stay stable across marketing-campaign variations of the same URL.
// Unparseable URLs are returned unchanged.
func NormalizeURL(raw string) string {
	if raw == "" {
		return raw
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return raw
	}

	query := parsed.Query()
	changed := false
	for key := range query {
		if strings.HasPrefix(strings.ToLower(key), "utm_") {
			query.Del(key)
			changed = true
		}
	}
	if !changed {
		return raw
	}

	parsed.RawQuery = query.Encode()
	return parsed.String()
}

// ProxyRewrite routes the URL through the scraping proxy when its host is in
// the configured host list and an API key is present. Otherwise the URL is
// returned unchanged.
func ProxyRewrite(raw, apiKey string, hosts []string) string {
	if apiKey == "" || len(hosts) == 0 {
		return raw
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	for _, host := range hosts {
		if parsed.Hostname() == host || strings.HasSuffix(parsed.Hostname(), "."+host) {
			return "https://api.scraperapi.com/?api_key=" + url.QueryEscape(apiKey) +
				"&url=" + url.QueryEscape(raw)
		}
	}
	return raw
}
