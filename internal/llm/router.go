package llm

// Router is the entry point of the engine: it selects a provider, dispatches
// under that provider's timeout and fails over to the next healthy provider
// when a call fails.
//
// One Generate call runs a bounded loop:
//
//	SELECTING   -> no provider: FAILED (not counted against the budget)
//	DISPATCHING -> success: DONE
//	            -> timeout/transport error: exclude provider, backoff,
//	               then SELECTING again or FAILED once the budget is spent
//
// The exclusion set lives only for the duration of one call. The only state
// shared between calls is the Monitor's health records.

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"airouter/internal/cache"
)

const (
	DefaultSystemPrompt = "You are a helpful assistant."
	DefaultMaxTokens    = 4000
	DefaultTemperature  = 0.7
	DefaultMaxRetries   = 3
	DefaultBackoff      = time.Second
)

// Options tune a single Generate call. Start from DefaultOptions.
type Options struct {
	SystemPrompt  string
	MaxTokens     int
	Temperature   float64
	PreferSpeed   bool
	PreferQuality bool
	// MaxRetries bounds dispatch attempts; <= 0 uses the router's default.
	MaxRetries int
	// Deadline, when set, aborts the retry loop once passed.
	Deadline time.Time
}

// DefaultOptions returns the documented defaults.
func DefaultOptions() Options {
	return Options{
		SystemPrompt:  DefaultSystemPrompt,
		MaxTokens:     DefaultMaxTokens,
		Temperature:   DefaultTemperature,
		PreferQuality: true,
		MaxRetries:    DefaultMaxRetries,
	}
}

func (o Options) withDefaults(maxRetries int) Options {
	if o.SystemPrompt == "" {
		o.SystemPrompt = DefaultSystemPrompt
	}
	if o.MaxTokens <= 0 {
		o.MaxTokens = DefaultMaxTokens
	}
	if o.Temperature < 0 {
		o.Temperature = 0
	}
	if o.Temperature > 1 {
		o.Temperature = 1
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = maxRetries
	}
	return o
}

// Result is a successful Generate outcome.
type Result struct {
	Text      string        `json:"text"`
	Provider  string        `json:"provider"`
	Model     string        `json:"model"`
	Quality   QualityTier   `json:"qualityTier"`
	Attempts  int           `json:"attempts"`
	RequestID string        `json:"requestId"`
	Latency   time.Duration `json:"latencyNs"`
}

// ProviderStatus is the diagnostic view of one provider.
type ProviderStatus struct {
	Available   bool        `json:"available"`
	Model       string      `json:"model"`
	QualityTier QualityTier `json:"qualityTier"`
	CostTier    CostTier    `json:"costTier"`
}

// RouterOptions configures NewRouter. Zero values select defaults; a negative
// Backoff disables the pause between attempts.
type RouterOptions struct {
	MaxRetries   int
	Backoff      time.Duration
	HealthTTL    time.Duration
	ProbeTimeout time.Duration
	// Cache stores health records; nil keeps them in process memory.
	Cache    cache.Cache
	Observer AttemptObserver
	Logger   logr.Logger
}

// Router implements the selection and failover loop over a fixed provider table.
type Router struct {
	table      *Table
	backends   map[string]Backend
	monitor    *Monitor
	selector   *Selector
	observer   AttemptObserver
	maxRetries int
	backoff    time.Duration
	log        logr.Logger

	// sleep waits between attempts; tests replace it.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewRouter creates a Router. Every provider in table needs a backend.
func NewRouter(table *Table, backends map[string]Backend, opts RouterOptions) (*Router, error) {
	for _, id := range table.IDs() {
		if backends[id] == nil {
			return nil, fmt.Errorf("llm router: provider %q has no backend", id)
		}
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = DefaultMaxRetries
	}
	switch {
	case opts.Backoff == 0:
		opts.Backoff = DefaultBackoff
	case opts.Backoff < 0:
		// Negative disables the pause between attempts.
		opts.Backoff = 0
	}
	if opts.Observer == nil {
		opts.Observer = nopObserver{}
	}
	if opts.Logger.GetSink() == nil {
		opts.Logger = logr.Discard()
	}

	monitor := NewMonitor(backends, opts.Cache, opts.HealthTTL, opts.ProbeTimeout, opts.Logger.WithName("health"))
	return &Router{
		table:      table,
		backends:   backends,
		monitor:    monitor,
		selector:   NewSelector(table, monitor, opts.Logger.WithName("selector")),
		observer:   opts.Observer,
		maxRetries: opts.MaxRetries,
		backoff:    opts.Backoff,
		log:        opts.Logger,
		sleep:      sleepContext,
	}, nil
}

// Providers returns the routing table in priority order.
func (r *Router) Providers() []Descriptor {
	return r.table.List()
}

// Generate produces text for prompt from the best available provider, failing
// over across providers as described on Router.
//
// Errors match ErrNoProviderAvailable (nothing could be tried) or
// ErrAllProvidersFailed (see *AllProvidersFailedError for each attempt).
func (r *Router) Generate(ctx context.Context, prompt string, opts Options) (*Result, error) {
	opts = opts.withDefaults(r.maxRetries)
	if !opts.Deadline.IsZero() {
		var cancel context.CancelFunc
		ctx, cancel = context.WithDeadline(ctx, opts.Deadline)
		defer cancel()
	}

	requestID := uuid.NewString()
	log := r.log.WithValues("requestID", requestID)
	start := time.Now()

	pref := Preference{PreferSpeed: opts.PreferSpeed, PreferQuality: opts.PreferQuality}
	var failures []*DispatchFailure

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, &AllProvidersFailedError{Failures: failures, Last: err}
		}

		// SELECTING
		d, err := r.selector.Select(ctx, pref)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, &AllProvidersFailedError{Failures: failures, Last: ctxErr}
			}
			if len(failures) == 0 {
				log.Info("no provider available", "error", err.Error())
				return nil, err
			}
			return nil, &AllProvidersFailedError{Failures: failures, Last: err}
		}

		// DISPATCHING
		req := Request{
			Prompt:       prompt,
			SystemPrompt: opts.SystemPrompt,
			MaxTokens:    min(opts.MaxTokens, d.MaxTokens),
			Temperature:  opts.Temperature,
		}
		callStart := time.Now()
		text, err := r.dispatch(ctx, d, req)
		elapsed := time.Since(callStart)

		if err == nil {
			r.observer.ObserveAttempt(Attempt{
				RequestID: requestID, Provider: d.ID, Model: d.Model,
				Number: attempt, Success: true, Elapsed: elapsed,
			})
			log.V(1).Info("generate succeeded", "provider", d.ID, "attempt", attempt)
			return &Result{
				Text:      text,
				Provider:  d.ID,
				Model:     d.Model,
				Quality:   d.Quality,
				Attempts:  attempt,
				RequestID: requestID,
				Latency:   time.Since(start),
			}, nil
		}

		failure := newDispatchFailure(d.ID, err)
		if ctxErr := ctx.Err(); ctxErr != nil {
			failure.Reason = ReasonCancelled
			failures = append(failures, failure)
			r.observer.ObserveAttempt(Attempt{
				RequestID: requestID, Provider: d.ID, Model: d.Model,
				Number: attempt, Reason: failure.Reason, Elapsed: elapsed,
			})
			log.Info("caller gave up during dispatch", "provider", d.ID, "attempt", attempt, "error", ctxErr.Error())
			return nil, &AllProvidersFailedError{Failures: failures, Last: ctxErr}
		}

		failures = append(failures, failure)
		pref.Exclude(d.ID)
		r.observer.ObserveAttempt(Attempt{
			RequestID: requestID, Provider: d.ID, Model: d.Model,
			Number: attempt, Reason: failure.Reason, Elapsed: elapsed,
		})
		log.Info("provider failed; excluding for this request",
			"provider", d.ID, "attempt", attempt, "reason", string(failure.Reason), "error", err.Error())

		// Backoff applies after every failure, the last one included.
		if err := r.sleep(ctx, r.backoff); err != nil {
			return nil, &AllProvidersFailedError{Failures: failures, Last: err}
		}
		if attempt >= opts.MaxRetries {
			return nil, &AllProvidersFailedError{Failures: failures, Last: failure}
		}
	}
}

// dispatch calls d's backend raced against d.Timeout and normalises the error.
func (r *Router) dispatch(ctx context.Context, d Descriptor, req Request) (string, error) {
	backend := r.backends[d.ID]
	text, err := raceTimeout(ctx, d.ID, d.Timeout, func(c context.Context) (string, error) {
		return backend.Generate(c, req)
	})
	if err == nil {
		return text, nil
	}

	var te *TransportError
	var to *TimeoutError
	switch {
	case errors.As(err, &te), errors.As(err, &to):
		return "", err
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return "", err
	default:
		return "", &TransportError{Provider: d.ID, Err: err}
	}
}

// ProviderStatus reports availability for every provider. Health is evaluated
// concurrently and honours the same TTL cache as routing. If ctx ends before
// every provider was evaluated, the partial view is discarded and ctx's error
// returned, since "unavailable" would be a guess.
func (r *Router) ProviderStatus(ctx context.Context) (map[string]ProviderStatus, error) {
	descs := r.table.List()
	out := make(map[string]ProviderStatus, len(descs))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for _, d := range descs {
		d := d
		g.Go(func() error {
			healthy := r.monitor.IsHealthy(gctx, d)
			if err := gctx.Err(); err != nil {
				return err
			}
			mu.Lock()
			out[d.ID] = ProviderStatus{
				Available:   healthy,
				Model:       d.Model,
				QualityTier: d.Quality,
				CostTier:    d.Cost,
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("llm router: provider status: %w", err)
	}
	return out, nil
}

// HealthRecord returns the stored probe outcome for a provider, if any.
func (r *Router) HealthRecord(ctx context.Context, id string) (HealthRecord, bool) {
	return r.monitor.Snapshot(ctx, id)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
