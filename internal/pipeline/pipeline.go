// Package pipeline consumes the ingestion topics: it indexes new fragments
// and requested summaries, proposes associations for them, checks milestones,
// analyses uploaded documents and cleans up vectors after deletions.
package pipeline

import (
	"context"
	"errors"

	"github.com/Aleph-Alpha/gravity/internal/gravity"
	"github.com/Aleph-Alpha/gravity/internal/processor"
	"github.com/Aleph-Alpha/gravity/internal/store"
	"github.com/Aleph-Alpha/gravity/v1/kafka"
	"github.com/Aleph-Alpha/gravity/v1/logger"
	"github.com/Aleph-Alpha/gravity/v1/metrics"
	"github.com/cenkalti/backoff/v4"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// ErrNotVisible is returned when a fragment row never became readable.
	ErrNotVisible = errors.New("pipeline: fragment not visible")

	// ErrEmptyOwner is returned when an owner id sanitises to nothing.
	ErrEmptyOwner = errors.New("pipeline: empty owner id")

	// ErrFingerprintMismatch is returned when a downloaded document does not
	// hash to its announced fingerprint.
	ErrFingerprintMismatch = errors.New("pipeline: document fingerprint mismatch")
)

// Analyzer is the cache-gated document analysis.
type Analyzer interface {
	Process(ctx context.Context, fingerprint string, payload processor.Payload) (processor.Result, error)
}

// Blobs reads uploaded documents.
type Blobs interface {
	Download(ctx context.Context, key string) ([]byte, error)
}

// Milestones is notified after a fragment was processed.
type Milestones interface {
	OnFragmentPersisted(ctx context.Context, owner string, count int64) (bool, error)
}

// Pipeline holds the ingestion handlers.
type Pipeline struct {
	cfg        Config
	store      *store.Store
	engine     *gravity.Engine
	publisher  kafka.Publisher
	milestones Milestones
	summarizer processor.Completer
	analyzer   Analyzer
	blobs      Blobs
	logger     logger.Logger

	processed *prometheus.CounterVec
	proposed  prometheus.Counter

	// newTimer paces visibility retries. Nil uses the backoff package default.
	newTimer func() backoff.Timer
}

// Deps groups the collaborators of a Pipeline.
type Deps struct {
	Store      *store.Store
	Engine     *gravity.Engine
	Publisher  kafka.Publisher
	Milestones Milestones
	Summarizer processor.Completer
	Analyzer   Analyzer
	Blobs      Blobs
	Logger     logger.Logger

	// Metrics is optional.
	Metrics metrics.MetricsCollector
}

// New returns a Pipeline.
func New(cfg Config, d Deps) *Pipeline {
	cfg.applyDefaults()
	p := &Pipeline{
		cfg:        cfg,
		store:      d.Store,
		engine:     d.Engine,
		publisher:  d.Publisher,
		milestones: d.Milestones,
		summarizer: d.Summarizer,
		analyzer:   d.Analyzer,
		blobs:      d.Blobs,
		logger:     d.Logger,
	}
	if d.Metrics != nil {
		p.processed = d.Metrics.CreateCounter("gravity_fragments_processed_total",
			"Fragments handled by the ingestion pipeline by result", []string{"result"})
		p.proposed = d.Metrics.CreateCounter("gravity_associations_proposed_total",
			"Associations proposed by backward gravity search", nil).WithLabelValues()
	}
	return p
}

func (p *Pipeline) countProcessed(result string) {
	if p.processed != nil {
		p.processed.WithLabelValues(result).Inc()
	}
}

func (p *Pipeline) countProposed(n int) {
	if p.proposed != nil {
		p.proposed.Add(float64(n))
	}
}

func (p *Pipeline) timer() backoff.Timer {
	if p.newTimer == nil {
		return nil
	}
	return p.newTimer()
}
