package skiptrace

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/stwalsh4118/parcelbook/internal/logger"
	"github.com/stwalsh4118/parcelbook/internal/metrics"
)

// Provider looks up one record at a time.
type Provider interface {
	Name() string
	Lookup(ctx context.Context, rec Record) Result
}

// BatchProvider can look up many records in a single vendor call.
type BatchProvider interface {
	Provider
	LookupBatch(ctx context.Context, recs []Record) []Result
}

// ProgressFunc is called after each record (or batch) completes.
type ProgressFunc func(done, total int, last Result)

// Config holds vendor endpoints and credentials.
type Config struct {
	BatchDataBaseURL string
	BatchDataAPIKey  string
	EnformionBaseURL string
	Enformion        EnformionCredentials
	Timeout          time.Duration
}

// Runner dispatches records to registered providers sequentially.
type Runner struct {
	providers map[string]Provider
	log       *logger.Logger
}

// NewRunner registers the given providers by name.
func NewRunner(log *logger.Logger, providers ...Provider) *Runner {
	r := &Runner{providers: make(map[string]Provider, len(providers)), log: log.WithComponent("skiptrace")}
	for _, p := range providers {
		r.providers[p.Name()] = p
	}
	return r
}

// NewDefaultRunner wires BatchData and both Enformion providers from cfg.
func NewDefaultRunner(cfg Config, log *logger.Logger) *Runner {
	client := &http.Client{Timeout: cfg.Timeout}
	return NewRunner(log,
		NewBatchData(client, cfg.BatchDataBaseURL, cfg.BatchDataAPIKey),
		NewEnformion(client, cfg.EnformionBaseURL, cfg.Enformion),
		NewEnformionAddress(client, cfg.EnformionBaseURL, cfg.Enformion),
	)
}

// Providers returns the registered provider names, sorted.
func (r *Runner) Providers() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Run traces recs with the named provider. Records are processed one after
// another; a batch provider gets them all in one call. Per-record failures
// are reported in the results, not as an error. If ctx ends, the remaining
// records are marked failed.
func (r *Runner) Run(ctx context.Context, provider string, recs []Record, progress ProgressFunc) ([]Result, error) {
	p, ok := r.providers[provider]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, provider)
	}

	r.log.Info("Skip trace started", map[string]interface{}{
		"provider": provider,
		"records":  len(recs),
	})

	results := make([]Result, 0, len(recs))
	total := len(recs)

	if bp, ok := p.(BatchProvider); ok && total > 0 {
		start := time.Now()
		batch := bp.LookupBatch(ctx, recs)
		elapsed := float64(time.Since(start).Milliseconds())
		for _, res := range batch {
			metrics.SkipTraceDurationMs.WithLabelValues(provider).Observe(elapsed / float64(total))
			r.record(provider, res)
			results = append(results, res)
			if progress != nil {
				progress(len(results), total, res)
			}
		}
		return results, nil
	}

	for _, rec := range recs {
		var res Result
		if err := ctx.Err(); err != nil {
			res = failed(rec, "", fmt.Errorf("cancelled: %w", err))
		} else {
			start := time.Now()
			res = p.Lookup(ctx, rec)
			metrics.SkipTraceDurationMs.WithLabelValues(provider).Observe(float64(time.Since(start).Milliseconds()))
		}
		r.record(provider, res)
		results = append(results, res)
		if progress != nil {
			progress(len(results), total, res)
		}
	}
	return results, nil
}

func (r *Runner) record(provider string, res Result) {
	metrics.SkipTraceRequestsTotal.WithLabelValues(provider, res.Status).Inc()
	if res.Status == StatusFailed {
		r.log.Warn("Skip trace lookup failed", map[string]interface{}{
			"provider":    provider,
			"property_id": res.PropertyID,
			"error":       res.Error,
		})
	}
}
