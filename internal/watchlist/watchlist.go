// Package watchlist loads the CSV watchlist into ordered WatchItems.
package watchlist

import (
	"encoding/csv"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"aviron/pricewatch/helpers"
	"aviron/pricewatch/internal/watch"
	"aviron/pricewatch/logger"
)

// Options controls how records become WatchItems
type Options struct {
	// StripUTM normalizes URLs by removing utm_* params so item state stays
	// stable across campaign links
	StripUTM bool
	// DefaultCurrency fills items whose record carries no currency
	DefaultCurrency string
}

// header aliases: the left-hand names are the legacy watchlist columns,
// the right-hand ones the plain spelling
var headerAliases = map[string]string{
	"product_name":       "name",
	"product_url":        "url",
	"price_selector_css": "selector",
	"price_attribute":    "attribute",
	"normalize_regex":    "regex",
	"name":               "name",
	"url":                "url",
	"selector":           "selector",
	"attribute":          "attribute",
	"regex":              "regex",
	"competitor":         "competitor",
	"currency":           "currency",
}

// Load reads the watchlist file and returns its items in file order.
// Rows missing a URL or selector are skipped with a warning; a malformed
// file is an error.
func Load(path string, opts Options) ([]watch.WatchItem, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open watchlist %s: %w", path, err)
	}
	defer f.Close()

	return Parse(f, opts)
}

// Parse reads CSV records from r. The first row must be a header.
func Parse(r io.Reader, opts Options) ([]watch.WatchItem, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read watchlist header: %w", err)
	}

	columns := make(map[int]string, len(header))
	for i, name := range header {
		key := strings.ToLower(strings.TrimSpace(name))
		if canonical, ok := headerAliases[key]; ok {
			columns[i] = canonical
		}
	}

	var items []watch.WatchItem
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("failed to read watchlist row %d: %w", line, err)
		}

		fields := make(map[string]string, len(columns))
		for i, value := range record {
			if name, ok := columns[i]; ok {
				fields[name] = strings.TrimSpace(value)
			}
		}

		item := watch.WatchItem{
			Competitor: fields["competitor"],
			Name:       fields["name"],
			URL:        fields["url"],
			Selector:   fields["selector"],
			Attribute:  fields["attribute"],
			Currency:   fields["currency"],
			StripRegex: fields["regex"],
		}
		if item.Currency == "" {
			item.Currency = opts.DefaultCurrency
		}
		if opts.StripUTM {
			item.URL = helpers.NormalizeURL(item.URL)
		}

		if err := validate(item); err != nil {
			logger.Warn("skipping watchlist row %d: %v", line, err)
			continue
		}

		items = append(items, item)
	}

	return items, nil
}

// validate enforces item identity: non-empty name, absolute URL, selector
func validate(item watch.WatchItem) error {
	if item.Name == "" {
		return fmt.Errorf("missing name")
	}
	if item.Selector == "" {
		return fmt.Errorf("%s: missing selector", item.Name)
	}
	parsed, err := url.Parse(item.URL)
	if err != nil || !parsed.IsAbs() || parsed.Host == "" {
		return fmt.Errorf("%s: url %q is not a well-formed absolute URL", item.Name, item.URL)
	}
	return nil
}
