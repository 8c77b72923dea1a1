package runner

import (
	"context"
	"encoding/json"
	stderrors "errors"
	mathrand "math/rand"
	"net/url"
	"time"

	"aviron/pricewatch/internal/watch"
	"aviron/pricewatch/logger"
	"aviron/pricewatch/pkg/errors"
	"aviron/pricewatch/services/notifier"
	"aviron/pricewatch/services/publisher"
	"aviron/pricewatch/services/store"
)

// Options tunes the run loop
type Options struct {
	// DomainGap is the minimum delay between fetches against the same host
	DomainGap time.Duration
	// MaxRetries bounds extra fetch attempts for retryable errors
	MaxRetries int
	// RetryDelay is the initial backoff before a retry, doubled per attempt
	RetryDelay time.Duration
	// Diff tunes classification
	Diff watch.DiffOptions
}

// Summary aggregates one run
type Summary struct {
	Init             int
	Changed          int
	Unchanged        int
	Errors           int
	DeliveryFailures int
	Lines            []string
}

// ExitCode maps the summary onto the documented process exit status:
// 0 clean, 1 at least one item ERROR, 2 delivery failures only.
func (s Summary) ExitCode() int {
	if s.Errors > 0 {
		return 1
	}
	if s.DeliveryFailures > 0 {
		return 2
	}
	return 0
}

// Runner drives the watchlist through extract → normalize → classify →
// persist → notify, one item at a time, in watchlist order. It is the sole
// writer of the state store and must not be invoked concurrently.
type Runner struct {
	extractor  *watch.Extractor
	normalizer *watch.Normalizer
	store      store.Store
	notifier   notifier.Notifier
	publisher  publisher.Publisher
	log        *logger.Logger
	opts       Options

	lastFetch map[string]time.Time
	sleep     func(time.Duration)
	now       func() time.Time
}

// New creates a runner. pub may be nil when no event stream is configured.
func New(extractor *watch.Extractor, st store.Store, not notifier.Notifier, pub publisher.Publisher, opts Options) *Runner {
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 2 * time.Second
	}
	return &Runner{
		extractor:  extractor,
		normalizer: watch.NewNormalizer(),
		store:      st,
		notifier:   not,
		publisher:  pub,
		log:        logger.ForRunner(),
		opts:       opts,
		lastFetch:  make(map[string]time.Time),
		sleep:      time.Sleep,
		now:        time.Now,
	}
}

// Run processes every item once and returns the aggregated summary.
// A store error aborts the run; everything else is contained per item.
// Cancellation stops before the next item; committed writes stand.
func (r *Runner) Run(ctx context.Context, items []watch.WatchItem) (Summary, error) {
	var summary Summary

	for _, item := range items {
		select {
		case <-ctx.Done():
			r.log.Warn().
				Int("remaining", len(items)-summary.total()).
				Msg("Run cancelled, aborting remaining items")
			return summary, ctx.Err()
		default:
		}

		outcome, err := r.processItem(ctx, item)
		if err != nil {
			// Only store failures surface here; without a trustworthy state
			// read/write the rest of the run cannot be classified safely.
			return summary, err
		}

		r.record(&summary, outcome)

		delivery, deliveryErr := r.notifier.Notify(outcome)
		if deliveryErr != nil {
			summary.DeliveryFailures++
			summary.Lines = append(summary.Lines, "DELIVERY • "+item.Name+": "+deliveryErr.Error())
			r.log.Error().Err(deliveryErr).Str("item", item.Name).Msg("Notification delivery failed")
		} else {
			r.log.Debug().
				Str("item", item.Name).
				Str("delivery", string(delivery)).
				Msg("Notifier handled outcome")
		}

		r.publish(outcome)
	}

	if err := r.notifier.Flush(); err != nil {
		summary.DeliveryFailures++
		summary.Lines = append(summary.Lines, "DELIVERY • "+err.Error())
		r.log.Error().Err(err).Msg("Digest delivery failed")
	}

	if r.publisher != nil {
		if err := r.publisher.TrimStreams(); err != nil {
			r.log.Warn().Err(err).Msg("Failed to trim event streams")
		}
	}

	return summary, nil
}

// processItem produces exactly one outcome for the item. The returned error
// is non-nil only for fatal store failures.
func (r *Runner) processItem(ctx context.Context, item watch.WatchItem) (watch.Outcome, error) {
	r.throttle(item.URL)

	obs := r.observeWithRetry(ctx, item)

	var current watch.NormalizedPrice
	if obs.Err == nil {
		current = r.normalizer.Normalize(item.Name, obs.RawText, item.StripRegex)
	}

	prior, exists, err := r.store.Get(item.Name)
	if err != nil {
		return watch.Outcome{}, err
	}
	var priorRecord *watch.PriceRecord
	if exists {
		priorRecord = &prior
	}

	outcome := watch.Classify(item, priorRecord, current, obs.Err, r.now(), r.opts.Diff)

	// The write commits before the notifier runs, so a crash after
	// notification can never leave a stale record behind.
	if record, ok := outcome.Record(); ok {
		if err := r.store.Put(record); err != nil {
			return watch.Outcome{}, err
		}
	}

	return outcome, nil
}

// observeWithRetry fetches with a bounded number of retries on retryable
// errors, backing off between attempts
func (r *Runner) observeWithRetry(ctx context.Context, item watch.WatchItem) watch.RawObservation {
	obs := r.extractor.Observe(ctx, item)
	delay := r.opts.RetryDelay

	for attempt := 0; attempt < r.opts.MaxRetries && obs.Err != nil; attempt++ {
		var watchErr *errors.WatchError
		if !stderrors.As(obs.Err, &watchErr) || !watchErr.IsRetryable() {
			break
		}
		r.log.Debug().
			Str("item", item.Name).
			Int("attempt", attempt+2).
			Dur("backoff", delay).
			Msg("Retrying fetch")
		r.sleep(delay)
		delay *= 2

		obs = r.extractor.Observe(ctx, item)
	}

	return obs
}

// throttle enforces the per-host minimum gap with a little jitter
func (r *Runner) throttle(rawURL string) {
	if r.opts.DomainGap <= 0 {
		return
	}
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Hostname() == "" {
		return
	}
	host := parsed.Hostname()

	if last, ok := r.lastFetch[host]; ok {
		elapsed := r.now().Sub(last)
		wait := r.opts.DomainGap - elapsed + time.Duration(mathrand.Int63n(int64(time.Second)))
		if wait > 0 {
			r.sleep(wait)
		}
	}
	r.lastFetch[host] = r.now()
}

// record tallies the outcome and keeps the user-visible event line
func (r *Runner) record(summary *Summary, outcome watch.Outcome) {
	switch outcome.Kind {
	case watch.OutcomeInit:
		summary.Init++
	case watch.OutcomeChanged:
		summary.Changed++
	case watch.OutcomeUnchanged:
		summary.Unchanged++
		r.log.Debug().Str("item", outcome.Item.Name).Msg("No change")
		return
	case watch.OutcomeError:
		summary.Errors++
	}

	line := notifier.EventLine(outcome)
	summary.Lines = append(summary.Lines, line)
	r.log.Info().Str("item", outcome.Item.Name).Msg(line)
}

// publish emits a notifiable outcome to the event stream, if one is wired
func (r *Runner) publish(outcome watch.Outcome) {
	if r.publisher == nil || !outcome.Notifiable() {
		return
	}
	data, err := outcomeJSON(outcome)
	if err != nil {
		r.log.Warn().Err(err).Str("item", outcome.Item.Name).Msg("Failed to encode outcome event")
		return
	}
	if err := r.publisher.Publish("outcome", data); err != nil {
		r.log.Warn().Err(err).Str("item", outcome.Item.Name).Msg("Failed to publish outcome event")
	}
}

// outcomeJSON encodes the event payload published to downstream streams
func outcomeJSON(outcome watch.Outcome) ([]byte, error) {
	return json.Marshal(outcome)
}

func (s Summary) total() int {
	return s.Init + s.Changed + s.Unchanged + s.Errors
}
