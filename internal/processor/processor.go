package processor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Aleph-Alpha/gravity/v1/breaker"
	"github.com/Aleph-Alpha/gravity/v1/embedding"
	"github.com/Aleph-Alpha/gravity/v1/logger"
	"github.com/Aleph-Alpha/gravity/v1/redis"
)

// ErrEmptyFingerprint is returned by Process for an empty fingerprint.
var ErrEmptyFingerprint = errors.New("processor: empty fingerprint")

// Cache is the processing cache. A miss is reported with an error for
// which redis.IsNilError is true.
type Cache interface {
	GetJSON(ctx context.Context, key string, dest interface{}) error
	SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// Result is a cached analysis. Degraded marks the placeholder written while
// the backend is unavailable.
type Result struct {
	Fingerprint string `json:"fingerprint"`
	Analysis
	Degraded    bool      `json:"degraded"`
	ProcessedAt time.Time `json:"processedAt"`

	// Cached is set when the result came from the cache.
	Cached bool `json:"-"`
}

// Placeholder returns the degraded result for fingerprint.
func Placeholder(fingerprint string, at time.Time) Result {
	return Result{
		Fingerprint: fingerprint,
		Analysis: Analysis{
			Summary:   PlaceholderSummary,
			Tags:      []string{TagPending, TagExternalError},
			Sentiment: SentimentNeutral,
		},
		Degraded:    true,
		ProcessedAt: at,
	}
}

// Processor deduplicates analyses by content fingerprint.
type Processor struct {
	cfg     Config
	cache   Cache
	breaker *breaker.Breaker
	retry   Retry
	analyze AnalyzeFunc
	logger  logger.Logger
	now     func() time.Time
}

// New returns a Processor. b is shared with the Gateway.
func New(cfg Config, cache Cache, b *breaker.Breaker, analyze AnalyzeFunc, log logger.Logger) *Processor {
	cfg.applyDefaults()
	return &Processor{
		cfg:     cfg,
		cache:   cache,
		breaker: b,
		retry:   NewRetry(cfg.RetryAttempts, cfg.RetryBackoff),
		analyze: analyze,
		logger:  log,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Process returns the analysis of payload, identified by fingerprint.
//
// A cached entry is returned as is. Otherwise the analysis runs through the
// breaker and retry; its result is cached for SuccessTTL. If the breaker is
// open or every attempt failed transiently, a placeholder is cached for
// PlaceholderTTL and returned without error. A permanent failure is returned
// and nothing is cached.
func (p *Processor) Process(ctx context.Context, fingerprint string, payload Payload) (Result, error) {
	if fingerprint == "" {
		return Result{}, ErrEmptyFingerprint
	}
	key := CacheKey(fingerprint)

	var cached Result
	err := p.cache.GetJSON(ctx, key, &cached)
	switch {
	case err == nil:
		cached.Cached = true
		return cached, nil
	case !redis.IsNilError(err):
		p.logger.WarnWithContext(ctx, "Processing cache lookup failed", err, map[string]interface{}{
			"fingerprint": fingerprint,
		})
	}

	var analysis Analysis
	err = p.retry.Do(ctx, func(ctx context.Context) error {
		return p.breaker.Execute(ctx, func(ctx context.Context) error {
			a, err := p.analyze(ctx, payload)
			if err != nil {
				return err
			}
			analysis = a
			return nil
		})
	})

	switch {
	case err == nil:
		res := Result{Fingerprint: fingerprint, Analysis: analysis, ProcessedAt: p.now()}
		p.store(ctx, key, res, p.cfg.SuccessTTL)
		return res, nil

	case ctx.Err() != nil:
		return Result{}, fmt.Errorf("processor: %s: %w", fingerprint, ctx.Err())

	case embedding.IsPermanent(err):
		return Result{}, fmt.Errorf("processor: %s: %w", fingerprint, err)
	}

	p.logger.WarnWithContext(ctx, "Inference unavailable, caching placeholder", err, map[string]interface{}{
		"fingerprint":   fingerprint,
		"breaker_state": p.breaker.State().String(),
	})
	res := Placeholder(fingerprint, p.now())
	p.store(ctx, key, res, p.cfg.PlaceholderTTL)
	return res, nil
}

func (p *Processor) store(ctx context.Context, key string, res Result, ttl time.Duration) {
	if err := p.cache.SetJSON(ctx, key, res, ttl); err != nil {
		p.logger.ErrorWithContext(ctx, "Failed to write processing cache", err, map[string]interface{}{
			"key": key,
		})
	}
}
