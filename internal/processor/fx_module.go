package processor

import (
	"github.com/Aleph-Alpha/gravity/v1/breaker"
	"github.com/Aleph-Alpha/gravity/v1/embedding"
	"github.com/Aleph-Alpha/gravity/v1/logger"
	"github.com/Aleph-Alpha/gravity/v1/metrics"
	"github.com/Aleph-Alpha/gravity/v1/observability"
	"github.com/Aleph-Alpha/gravity/v1/redis"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
)

// FXModule provides the shared breaker, *Gateway and *Processor. It needs
// Config, *embedding.Client and *redis.RedisClient.
var FXModule = fx.Module("processor",
	fx.Provide(
		NewBreaker,
		func(cfg Config, c *embedding.Client, b *breaker.Breaker) *Gateway {
			return NewGateway(cfg, c, b)
		},
		func(cfg Config, cache *redis.RedisClient, b *breaker.Breaker, c *embedding.Client, log logger.Logger) *Processor {
			cfg.applyDefaults()
			return New(cfg, cache, b, NewAnalyzer(c, cfg.MaxAnalysisChars), log)
		},
	),
)

// BreakerParams groups the dependencies of NewBreaker.
type BreakerParams struct {
	fx.In

	Config   Config
	Logger   logger.Logger
	Observer observability.Observer  `optional:"true"`
	Metrics  metrics.MetricsCollector `optional:"true"`
}

// NewBreaker builds the inference breaker. Permanent failures do not count
// against it; state changes are logged and, with metrics, exported as the
// gravity_breaker_state gauge (0 closed, 1 open, 2 half-open).
func NewBreaker(p BreakerParams) *breaker.Breaker {
	cfg := p.Config
	cfg.applyDefaults()
	bc := cfg.Breaker
	bc.IsSuccessful = func(err error) bool {
		return err == nil || embedding.IsPermanent(err)
	}

	var gauge *prometheus.GaugeVec
	if p.Metrics != nil {
		gauge = p.Metrics.CreateGauge("gravity_breaker_state", "Circuit breaker state (0 closed, 1 open, 2 half-open).", []string{"breaker"})
		gauge.WithLabelValues(bc.Name).Set(float64(breaker.StateClosed))
	}

	opts := []breaker.Option{
		breaker.WithStateChangeHook(func(name string, from, to breaker.State) {
			p.Logger.Warn("Circuit breaker state changed", nil, map[string]interface{}{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			})
			if gauge != nil {
				gauge.WithLabelValues(name).Set(float64(to))
			}
		}),
	}
	if p.Observer != nil {
		opts = append(opts, breaker.WithObserver(p.Observer))
	}
	return breaker.New(bc, opts...)
}
