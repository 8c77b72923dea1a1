package watch

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"

	"aviron/pricewatch/helpers"
	"aviron/pricewatch/logger"
	"aviron/pricewatch/pkg/errors"
	"aviron/pricewatch/services/cache"
)

// dollarAmountRegex finds candidate amounts for the last-resort fallback
var dollarAmountRegex = regexp.MustCompile(`\$([0-9][\d,\.]*)`)

// ExtractorConfig configures an Extractor
type ExtractorConfig struct {
	FetchTimeout  time.Duration
	BlockTime     time.Duration
	Fallbacks     bool
	PriceFloor    decimal.Decimal
	ScraperAPIKey string
	ProxyHosts    []string
}

// Extractor fetches a page and resolves the configured selector to the raw
// price text. Selector resolution is pure; only the fetch touches the network.
type Extractor struct {
	fetcher    *helpers.Fetcher
	cacheSvc   cache.CacheService
	normalizer *Normalizer
	config     ExtractorConfig
}

// NewExtractor creates an extractor. cacheSvc may be nil, in which case
// rate-limit blocks are not remembered across runs.
func NewExtractor(cfg ExtractorConfig, cacheSvc cache.CacheService) *Extractor {
	return &Extractor{
		fetcher:    helpers.NewFetcher(cfg.FetchTimeout),
		cacheSvc:   cacheSvc,
		normalizer: NewNormalizer(),
		config:     cfg,
	}
}

// Observe fetches the item's page and extracts the raw price text.
// Failures are reported on the observation, never panicked.
func (e *Extractor) Observe(ctx context.Context, item WatchItem) RawObservation {
	obs := RawObservation{ItemName: item.Name}

	host := hostOf(item.URL)
	if err := e.checkBlocked(host); err != nil {
		obs.Err = err
		return obs
	}

	target := helpers.ProxyRewrite(item.URL, e.config.ScraperAPIKey, e.config.ProxyHosts)
	body, err := e.fetcher.FetchPage(ctx, target)
	if err != nil {
		obs.Err = e.classifyFetchError(item, host, err)
		return obs
	}

	// The raw document text is kept for the last-resort fallback scan
	pageBytes, err := io.ReadAll(body)
	if err != nil {
		obs.Err = errors.NewFetch(item.Name, "failed to read page body", err)
		return obs
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(pageBytes)))
	if err != nil {
		obs.Err = errors.NewFetch(item.Name, "failed to parse HTML", err)
		return obs
	}

	raw, extractErr := ExtractText(doc, item.Selector, item.Attribute)
	if extractErr == nil {
		obs.RawText = raw
		return obs
	}

	if !e.config.Fallbacks {
		obs.Err = errors.NewSelector(item.Name, extractErr.Error())
		return obs
	}

	if raw, ok := extractJSONLD(doc); ok {
		logger.ForItem(item.Name).Debug().Str("price", raw).Msg("Price recovered from JSON-LD")
		obs.RawText = raw
		return obs
	}

	if raw, ok := e.extractLargestAmount(string(pageBytes)); ok {
		logger.ForItem(item.Name).Debug().Str("price", raw).Msg("Price recovered from page scan")
		obs.RawText = raw
		return obs
	}

	obs.Err = errors.NewSelector(item.Name, extractErr.Error()+" and no fallback price detected")
	return obs
}

// ExtractText resolves a selector against a parsed document and returns the
// raw price fragment. A selector matching more than one element uses the
// first match; zero matches is an error.
func ExtractText(doc *goquery.Document, selector, attribute string) (string, error) {
	sel := doc.Find(selector)
	switch sel.Length() {
	case 0:
		return "", fmt.Errorf("selector %q matched no elements", selector)
	case 1:
	default:
		logger.Debug("selector %q matched %d elements, using first", selector, sel.Length())
	}

	node := sel.First()
	if attribute != "" && attribute != "inner_text" {
		value, exists := node.Attr(attribute)
		if !exists {
			return "", fmt.Errorf("selector %q matched but attribute %q is absent", selector, attribute)
		}
		return strings.TrimSpace(value), nil
	}
	return strings.TrimSpace(node.Text()), nil
}

// checkBlocked consults the cross-run rate-limit block for the host
func (e *Extractor) checkBlocked(host string) error {
	if e.cacheSvc == nil || host == "" {
		return nil
	}
	if _, err := e.cacheSvc.Get(blockKey(host)); err == nil {
		return errors.NewRateLimit(host, e.config.BlockTime)
	}
	return nil
}

// classifyFetchError wraps a fetch failure and records a host block when the
// server asked us to back off
func (e *Extractor) classifyFetchError(item WatchItem, host string, err error) error {
	var rl *helpers.RateLimitedError
	if stderrors.As(err, &rl) {
		block := e.config.BlockTime
		if rl.RetryAfter > block {
			block = rl.RetryAfter
		}
		if e.cacheSvc != nil && host != "" {
			if setErr := e.cacheSvc.Set(blockKey(host), []byte(fmt.Sprintf("%d", int(block.Seconds()))), block); setErr != nil {
				logger.ForItem(item.Name).Warn().Err(setErr).Msg("Failed to record rate-limit block")
			}
		}
		return errors.NewRateLimit(host, block)
	}
	return errors.NewFetch(item.Name, "failed to fetch "+item.URL, err)
}

// extractJSONLD walks application/ld+json blocks looking for a price or
// offers.price field, the way storefronts publish structured product data
func extractJSONLD(doc *goquery.Document) (string, bool) {
	var found string
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		var data interface{}
		if err := json.Unmarshal([]byte(s.Text()), &data); err != nil {
			return true
		}
		if price, ok := findPriceField(data); ok {
			found = price
			return false
		}
		return true
	})
	return found, found != ""
}

// findPriceField recursively searches decoded JSON-LD for a price value
func findPriceField(data interface{}) (string, bool) {
	switch v := data.(type) {
	case map[string]interface{}:
		if price, ok := v["price"]; ok {
			if s := priceToString(price); s != "" {
				return s, true
			}
		}
		if offers, ok := v["offers"]; ok {
			if s, ok := findPriceField(offers); ok {
				return s, true
			}
		}
		for _, val := range v {
			if s, ok := findPriceField(val); ok {
				return s, true
			}
		}
	case []interface{}:
		for _, item := range v {
			if s, ok := findPriceField(item); ok {
				return s, true
			}
		}
	}
	return "", false
}

func priceToString(price interface{}) string {
	switch v := price.(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return decimal.NewFromFloat(v).String()
	}
	return ""
}

// extractLargestAmount scans the raw page for dollar amounts and picks the
// largest one at or above the configured floor. The floor keeps the scan from
// latching onto financing rates or monthly fees; when nothing clears it, the
// largest amount overall wins.
func (e *Extractor) extractLargestAmount(page string) (string, bool) {
	matches := dollarAmountRegex.FindAllStringSubmatch(page, -1)
	if len(matches) == 0 {
		return "", false
	}

	var best, bestAboveFloor decimal.Decimal
	var haveBest, haveAboveFloor bool
	for _, m := range matches {
		price := e.normalizer.Normalize("", m[1], "")
		if !price.Valid() {
			continue
		}
		if !haveBest || price.Amount.GreaterThan(best) {
			best = price.Amount
			haveBest = true
		}
		if price.Amount.GreaterThanOrEqual(e.config.PriceFloor) {
			if !haveAboveFloor || price.Amount.GreaterThan(bestAboveFloor) {
				bestAboveFloor = price.Amount
				haveAboveFloor = true
			}
		}
	}

	if haveAboveFloor {
		return "$" + bestAboveFloor.String(), true
	}
	if haveBest {
		return "$" + best.String(), true
	}
	return "", false
}

func hostOf(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return parsed.Hostname()
}

func blockKey(host string) string {
	return "block:" + host
}
