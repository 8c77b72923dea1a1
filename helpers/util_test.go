package helpers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "strips utm parameters",
			input:    "https://shop.example.com/bike?utm_source=mail&utm_campaign=spring",
			expected: "https://shop.example.com/bike",
		},
		{
			name:     "keeps non-tracking parameters",
			input:    "https://shop.example.com/bike?color=black&utm_medium=cpc",
			expected: "https://shop.example.com/bike?color=black",
		},
		{
			name:     "case insensitive prefix",
			input:    "https://shop.example.com/bike?UTM_Source=mail",
			expected: "https://shop.example.com/bike",
		},
		{
			name:     "untouched without tracking params",
			input:    "https://shop.example.com/bike?color=black&size=m",
			expected: "https://shop.example.com/bike?color=black&size=m",
		},
		{
			name:     "empty string",
			input:    "",
			expected: "",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, NormalizeURL(tc.input))
		})
	}
}

func TestProxyRewrite(t *testing.T) {
	hosts := []string{"walled.example.com"}

	t.Run("rewrites listed host", func(t *testing.T) {
		got := ProxyRewrite("https://walled.example.com/p/1?x=1", "secret", hosts)
		assert.Contains(t, got, "https://api.scraperapi.com/?api_key=secret")
		assert.Contains(t, got, "url=https%3A%2F%2Fwalled.example.com%2Fp%2F1%3Fx%3D1")
	})

	t.Run("rewrites subdomain of listed host", func(t *testing.T) {
		got := ProxyRewrite("https://www.walled.example.com/p/1", "secret", hosts)
		assert.Contains(t, got, "api.scraperapi.com")
	})

	t.Run("leaves other hosts alone", func(t *testing.T) {
		url := "https://open.example.com/p/1"
		assert.Equal(t, url, ProxyRewrite(url, "secret", hosts))
	})

	t.Run("no-op without api key", func(t *testing.T) {
		url := "https://walled.example.com/p/1"
		assert.Equal(t, url, ProxyRewrite(url, "", hosts))
	})

	t.Run("no-op without host list", func(t *testing.T) {
		url := "https://walled.example.com/p/1"
		assert.Equal(t, url, ProxyRewrite(url, "secret", nil))
	})
}
