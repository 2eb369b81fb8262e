// Package milestone requests a new topical radar for an owner when the
// number of processed fragments reaches a milestone, builds the radar from
// the requested snippets and stores the result on the owner's profile.
package milestone

import (
	"context"
	"fmt"

	"github.com/Aleph-Alpha/gravity/internal/events"
	"github.com/Aleph-Alpha/gravity/internal/model"
	"github.com/Aleph-Alpha/gravity/internal/store"
	"github.com/Aleph-Alpha/gravity/v1/kafka"
	"github.com/Aleph-Alpha/gravity/v1/logger"
)

// Completer runs a chat completion.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userText string) (string, error)
}

// Trigger owns the milestone rule and both radar consumers.
type Trigger struct {
	cfg       Config
	store     *store.Store
	publisher kafka.Publisher
	completer Completer
	logger    logger.Logger
}

// New returns a Trigger.
func New(cfg Config, s *store.Store, publisher kafka.Publisher, completer Completer, log logger.Logger) *Trigger {
	cfg.applyDefaults()
	return &Trigger{cfg: cfg, store: s, publisher: publisher, completer: completer, logger: log}
}

// ShouldFire reports whether count processed fragments is a milestone.
func (t *Trigger) ShouldFire(count int64) bool {
	return count == 1 || (count > 0 && count%int64(t.cfg.Every) == 0)
}

// OnFragmentPersisted publishes a recompute request when count, the owner's
// processed count right after a fragment was marked processed, is a
// milestone. A publish failure is returned with fired set to false; callers
// treat it as a secondary outcome.
func (t *Trigger) OnFragmentPersisted(ctx context.Context, owner string, count int64) (bool, error) {
	if !t.ShouldFire(count) {
		return false, nil
	}

	contents, err := t.store.RecentContents(ctx, owner, t.cfg.MaxSnippets)
	if err != nil {
		return false, fmt.Errorf("milestone: recent contents: %w", err)
	}
	snippets := make([]string, 0, len(contents))
	for _, c := range contents {
		snippets = append(snippets, model.Truncate(c, t.cfg.MaxSnippetLength))
	}

	evt := events.RecomputeRequested{OwnerID: owner, Snippets: snippets}
	if err := t.publisher.Publish(ctx, events.TopicRecomputeRequested, owner, evt, nil); err != nil {
		t.logger.ErrorWithContext(ctx, "Failed to request radar recompute", err, map[string]interface{}{
			"owner_id": owner,
			"count":    count,
		})
		return false, fmt.Errorf("milestone: publish: %w", err)
	}

	t.logger.InfoWithContext(ctx, "Milestone reached, radar recompute requested", nil, map[string]interface{}{
		"owner_id": owner,
		"count":    count,
		"snippets": len(snippets),
	})
	return true, nil
}
