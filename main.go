// pricewatch runs the watchlist once and exits. The exit status is the
// machine-readable result for cron and CI wrappers:
//
//	0  every item observed, no changes undelivered
//	1  at least one item ended in ERROR
//	2  all items observed, but one or more notifications failed to deliver
//	3  fatal: configuration, watchlist or state store unusable
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"aviron/pricewatch/config"
	"aviron/pricewatch/internal/watch"
	"aviron/pricewatch/internal/watchlist"
	"aviron/pricewatch/logger"
	"aviron/pricewatch/services/cache"
	"aviron/pricewatch/services/notifier"
	"aviron/pricewatch/services/publisher"
	"aviron/pricewatch/services/runner"
	"aviron/pricewatch/services/store"
)

// exitFatal is the exit status for configuration, watchlist and store
// failures: nothing was classified, the run must not count as clean.
const exitFatal = 3

func main() {
	// Load environment variables
	godotenv.Load()

	// Initialize logger first
	logger.Init()
	log := logger.Default

	// Load and validate configuration
	cfg := config.LoadConfig()
	if err := cfg.Validate(); err != nil {
		log.Error().Err(err).Msg("Invalid configuration")
		os.Exit(exitFatal)
	}

	log.Info().
		Str("environment", cfg.Environment).
		Str("watchlist", cfg.WatchlistPath).
		Str("history", cfg.HistoryPath).
		Msg("Starting price watch run")

	items, err := watchlist.Load(cfg.WatchlistPath, watchlist.Options{
		StripUTM:        cfg.StripUTM,
		DefaultCurrency: cfg.DefaultCurrency,
	})
	if err != nil {
		log.Error().Err(err).Msg("Failed to load watchlist")
		os.Exit(exitFatal)
	}
	if len(items) == 0 {
		log.Warn().Msg("Watchlist is empty, nothing to do")
	}

	// Set up context cancelled by interrupt: remaining items are skipped,
	// already-committed state writes stand
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Warn().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	services, err := initializeServices(ctx, cfg)
	if err != nil {
		log.Error().Err(err).Msg("Failed to initialize services")
		os.Exit(exitFatal)
	}
	defer services.Cleanup()

	extractor := watch.NewExtractor(watch.ExtractorConfig{
		FetchTimeout:  cfg.FetchTimeout,
		BlockTime:     cfg.RateLimitBlock,
		Fallbacks:     cfg.ExtractFallbacks,
		PriceFloor:    cfg.MinPriceFloor,
		ScraperAPIKey: cfg.ScraperAPIKey,
		ProxyHosts:    cfg.ProxyHosts,
	}, services.Cache)

	r := runner.New(extractor, services.Store, services.Notifier, services.Publisher, runner.Options{
		DomainGap:  cfg.DomainGap,
		MaxRetries: cfg.FetchMaxRetries,
		Diff: watch.DiffOptions{
			ChangeThresholdPct: decimal.NewFromFloat(cfg.ChangeThresholdPct),
		},
	})

	summary, err := r.Run(ctx, items)
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("Run aborted")
		os.Exit(exitFatal)
	}

	log.Info().
		Int("init", summary.Init).
		Int("changed", summary.Changed).
		Int("unchanged", summary.Unchanged).
		Int("errors", summary.Errors).
		Int("delivery_failures", summary.DeliveryFailures).
		Msg("Run complete")

	os.Exit(summary.ExitCode())
}

// Services holds all the initialized services
type Services struct {
	Cache     cache.CacheService
	Store     store.Store
	Notifier  notifier.Notifier
	Publisher publisher.Publisher
}

// Cleanup cleans up all services
func (s *Services) Cleanup() {
	if s.Publisher != nil {
		s.Publisher.Close()
	}
}

// initializeServices initializes all required services
func initializeServices(ctx context.Context, cfg config.Config) (*Services, error) {
	services := &Services{}

	// Rate-limit block cache: memcache when configured, in-process otherwise
	if cfg.MemcacheAddr != "" {
		services.Cache = cache.NewMemcacheService(cfg.MemcacheAddr)
		logger.Info("Connected to Memcache at %s", cfg.MemcacheAddr)
	} else {
		services.Cache = cache.NewMemoryService()
	}

	fileStore, err := store.NewFileStore(cfg.HistoryPath)
	if err != nil {
		return nil, err
	}
	services.Store = fileStore
	logger.Info("Loaded %d price record(s) from %s", fileStore.Len(), cfg.HistoryPath)

	services.Notifier = buildNotifier(cfg)

	// Outcome event stream is optional
	if cfg.RedisAddr != "" {
		services.Publisher = publisher.NewRedisPublisher(
			ctx,
			cfg.RedisAddr,
			cfg.RedisDB,
			cfg.RedisStream,
			cfg.RedisStreamCount,
			cfg.RedisStreamMaxLength,
		)
		logger.Info("Connected to Redis at %s (DB: %d, Stream: %s)",
			cfg.RedisAddr, cfg.RedisDB, cfg.RedisStream)
	}

	return services, nil
}

// buildNotifier picks the notifier implementation from the configuration
func buildNotifier(cfg config.Config) notifier.Notifier {
	if !cfg.Email.Enabled() {
		logger.Warn("Email transport not configured, outcomes will only be logged")
		return notifier.NewLogNotifier()
	}

	sender := notifier.NewSMTPSender(cfg.Email)
	if cfg.NotifyMode == "item" {
		return notifier.NewEmailNotifier(sender)
	}
	return notifier.NewDigestNotifier(sender, cfg.DigestSubjectPrefix, cfg.SendEmptyDigest)
}
