package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// EmailConfig holds the SMTP transport configuration for the notifier.
// It is passed into the notifier at construction so that transport
// settings never leak into the extraction/diff logic.
type EmailConfig struct {
	Host string
	Port int
	User string
	Pass string
	From string
	To   []string
}

// Enabled reports whether the configuration is complete enough to send mail
func (e EmailConfig) Enabled() bool {
	return e.Host != "" && e.User != "" && e.Pass != "" && len(e.To) > 0
}

// Addr returns the host:port SMTP address
func (e EmailConfig) Addr() string {
	return fmt.Sprintf("%s:%d", e.Host, e.Port)
}

// Config represents the application configuration
type Config struct {
	// Input and state files
	WatchlistPath string
	HistoryPath   string

	// Fetching
	FetchTimeout    time.Duration
	FetchMaxRetries int
	DomainGap       time.Duration
	RateLimitBlock  time.Duration

	// Normalization and classification
	DefaultCurrency    string
	ChangeThresholdPct float64
	StripUTM           bool

	// Extraction fallbacks
	ExtractFallbacks bool
	MinPriceFloor    decimal.Decimal

	// Notification
	Email               EmailConfig
	NotifyMode          string
	SendEmptyDigest     bool
	DigestSubjectPrefix string

	// Proxy rewrite for hosts that block plain fetches
	ScraperAPIKey string
	ProxyHosts    []string

	// Memcache configuration (optional, cross-run rate-limit blocks)
	MemcacheAddr string

	// Redis configuration (optional, outcome event stream)
	RedisAddr            string
	RedisDB              int
	RedisStream          string
	RedisStreamCount     int
	RedisStreamMaxLength int

	// Environment
	Environment string
}

// LoadConfig loads the configuration from environment variables with defaults
func LoadConfig() Config {
	fetchTimeout, _ := strconv.Atoi(getEnv("FETCH_TIMEOUT_SECONDS", "15"))
	maxRetries, _ := strconv.Atoi(getEnv("FETCH_MAX_RETRIES", "1"))
	domainGap, _ := strconv.Atoi(getEnv("MIN_DOMAIN_GAP_SECONDS", "3"))
	blockTime, _ := strconv.Atoi(getEnv("RATE_LIMIT_BLOCK_SECONDS", "300"))
	threshold, _ := strconv.ParseFloat(getEnv("CHANGE_THRESHOLD_PCT", "0"), 64)
	floor, err := decimal.NewFromString(getEnv("MIN_PRICE_FLOOR", "400"))
	if err != nil {
		floor = decimal.NewFromInt(400)
	}
	emailPort, _ := strconv.Atoi(getEnv("EMAIL_PORT", "587"))
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	redisStreamCount, _ := strconv.Atoi(getEnv("REDIS_STREAM_COUNT", "1"))
	redisStreamMaxLen, _ := strconv.Atoi(getEnv("REDIS_STREAM_MAX_LENGTH", "500"))

	emailUser := getEnv("EMAIL_USER", "")
	emailFrom := getEnv("EMAIL_FROM", "")
	if emailFrom == "" {
		if emailUser != "" {
			emailFrom = emailUser
		} else {
			emailFrom = "pricebot@example.com"
		}
	}

	return Config{
		WatchlistPath: getEnv("WATCHLIST_FILE", "watchlist.csv"),
		HistoryPath:   getEnv("HISTORY_FILE", "history.json"),

		FetchTimeout:    time.Duration(fetchTimeout) * time.Second,
		FetchMaxRetries: maxRetries,
		DomainGap:       time.Duration(domainGap) * time.Second,
		RateLimitBlock:  time.Duration(blockTime) * time.Second,

		DefaultCurrency:    strings.TrimSpace(getEnv("DEFAULT_CURRENCY", "USD")),
		ChangeThresholdPct: threshold,
		StripUTM:           getEnv("STRIP_UTM", "1") == "1",

		ExtractFallbacks: getEnv("EXTRACT_FALLBACKS", "1") == "1",
		MinPriceFloor:    floor,

		Email: EmailConfig{
			Host: getEnv("EMAIL_HOST", ""),
			Port: emailPort,
			User: emailUser,
			Pass: getEnv("EMAIL_PASS", ""),
			From: emailFrom,
			To:   splitList(getEnv("EMAIL_TO", "")),
		},
		NotifyMode:          getEnv("NOTIFY_MODE", "digest"),
		SendEmptyDigest:     getEnv("SEND_EMPTY_DIGEST", "0") == "1",
		DigestSubjectPrefix: getEnv("DIGEST_SUBJECT_PREFIX", "[PRICE DIGEST]"),

		ScraperAPIKey: getEnv("SCRAPERAPI_KEY", ""),
		ProxyHosts:    splitList(getEnv("PROXY_HOSTS", "")),

		MemcacheAddr: getEnv("MEMCACHE_ADDR", ""),

		RedisAddr:            getEnv("REDIS_ADDR", ""),
		RedisDB:              redisDB,
		RedisStream:          getEnv("REDIS_STREAM", "pricewatch"),
		RedisStreamCount:     redisStreamCount,
		RedisStreamMaxLength: redisStreamMaxLen,

		Environment: getEnv("PRICEWATCH_ENVIRONMENT", "development"),
	}
}

// Validate checks the configuration for invalid combinations
func (c *Config) Validate() error {
	if c.WatchlistPath == "" {
		return fmt.Errorf("watchlist path must not be empty")
	}
	if c.HistoryPath == "" {
		return fmt.Errorf("history path must not be empty")
	}
	if c.FetchTimeout <= 0 {
		return fmt.Errorf("fetch timeout must be positive, got %v", c.FetchTimeout)
	}
	if c.FetchMaxRetries < 0 {
		return fmt.Errorf("fetch max retries must not be negative, got %d", c.FetchMaxRetries)
	}
	if c.ChangeThresholdPct < 0 {
		return fmt.Errorf("change threshold must not be negative, got %f", c.ChangeThresholdPct)
	}
	if c.NotifyMode != "digest" && c.NotifyMode != "item" {
		return fmt.Errorf("notify mode must be 'digest' or 'item', got %q", c.NotifyMode)
	}
	if c.MinPriceFloor.IsNegative() {
		return fmt.Errorf("min price floor must not be negative, got %s", c.MinPriceFloor)
	}
	return nil
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// splitList splits a comma-separated environment value into trimmed entries
func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
