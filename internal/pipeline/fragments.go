package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/Aleph-Alpha/gravity/internal/events"
	"github.com/Aleph-Alpha/gravity/internal/model"
	"github.com/Aleph-Alpha/gravity/v1/embedding"
	"github.com/Aleph-Alpha/gravity/v1/kafka"
	"github.com/Aleph-Alpha/gravity/v1/postgres"
	"github.com/Aleph-Alpha/gravity/v1/vectordb"
	"github.com/cenkalti/backoff/v4"
)

// Outcome separates the result of indexing a fragment from the follow-up
// work. Only Primary decides whether the event is redelivered.
type Outcome struct {
	// Primary is the error of loading, embedding or indexing the fragment.
	Primary error

	// Linking collects failures to publish association requests.
	Linking error

	// Milestone is the error of the milestone check.
	Milestone error

	// Completion is the error of announcing a summary on summary.completed.
	Completion error

	// Failure is the permanent embedding error that marked the fragment
	// failed. The event is acknowledged.
	Failure error

	// Status is the status the fragment ended in. Empty for guests.
	Status model.FragmentStatus

	Links int
	Fired bool
}

// HandleFragmentCreated consumes fragment.created.
func (p *Pipeline) HandleFragmentCreated(ctx context.Context, msg kafka.Message) error {
	var evt events.FragmentCreated
	if err := kafka.Decode(msg, &evt); err != nil {
		return err
	}

	out := p.ProcessFragment(ctx, evt)
	p.report(ctx, evt, out)
	return out.Primary
}

// ProcessFragment indexes the fragment named by evt, requests associations
// for it and checks the owner's milestone.
func (p *Pipeline) ProcessFragment(ctx context.Context, evt events.FragmentCreated) Outcome {
	owner := model.SanitizeOwner(evt.OwnerID)
	if owner == "" {
		return Outcome{Primary: kafka.Permanent(ErrEmptyOwner)}
	}

	if model.IsGuest(owner) {
		f := model.Fragment{
			ID:                evt.FragmentID,
			OwnerID:           owner,
			SourceFingerprint: evt.SourceDocFingerprint,
			Content:           model.Truncate(evt.Text, model.MaxContentLength),
			Kind:              model.FragmentKind(evt.Kind),
		}
		_, err := p.engine.IndexFragment(ctx, f, vectordb.SpaceGuest)
		return Outcome{Primary: classify(err)}
	}

	f, err := p.loadVisible(ctx, evt.FragmentID)
	if err != nil {
		return Outcome{Primary: err}
	}

	indexed, err := p.engine.IndexFragment(ctx, f, vectordb.SpaceUser)
	if err != nil {
		if !embedding.IsPermanent(err) {
			return Outcome{Primary: err}
		}
		if serr := p.store.SetFragmentStatus(ctx, f.ID, model.StatusFailed); serr != nil {
			return Outcome{Primary: serr}
		}
		return Outcome{Status: model.StatusFailed, Failure: err}
	}

	out := Outcome{Status: model.StatusProcessed}
	out.Links, out.Linking = p.requestLinks(ctx, f, indexed.Vector)

	if f.Status == model.StatusProcessed {
		return out
	}
	count, transitioned, err := p.store.MarkProcessed(ctx, f.OwnerID, f.ID)
	if err != nil {
		out.Primary = fmt.Errorf("pipeline: mark fragment %d processed: %w", f.ID, err)
		return out
	}
	if transitioned {
		out.Fired, out.Milestone = p.milestones.OnFragmentPersisted(ctx, f.OwnerID, count)
	}
	return out
}

// loadVisible reads the fragment, waiting for a row that is not visible yet.
func (p *Pipeline) loadVisible(ctx context.Context, id uint64) (model.Fragment, error) {
	policy := backoff.WithContext(backoff.WithMaxRetries(
		backoff.NewConstantBackOff(p.cfg.VisibilityDelay), uint64(p.cfg.VisibilityAttempts-1)), ctx)

	var f model.Fragment
	err := backoff.RetryNotifyWithTimer(func() error {
		var err error
		f, err = p.store.FindFragment(ctx, id)
		if err != nil && !errors.Is(err, postgres.ErrRecordNotFound) {
			return backoff.Permanent(fmt.Errorf("pipeline: load fragment %d: %w", id, err))
		}
		return err
	}, policy, nil, p.timer())

	if errors.Is(err, postgres.ErrRecordNotFound) {
		return model.Fragment{}, kafka.Permanent(fmt.Errorf("%w: %d after %d attempts: %v",
			ErrNotVisible, id, p.cfg.VisibilityAttempts, err))
	}
	return f, err
}

// requestLinks runs a backward search for f and publishes one
// association.requested per candidate.
func (p *Pipeline) requestLinks(ctx context.Context, f model.Fragment, vec []float32) (int, error) {
	candidates, err := p.engine.BackwardVector(ctx, f.OwnerID, f.ID, vec)
	if err != nil {
		return 0, err
	}

	var (
		sent int
		errs []error
	)
	for _, c := range candidates {
		evt := events.AssociationRequested{ClusterID: c.ClusterID, FragmentID: f.ID, Score: c.Score}
		if err := p.publisher.Publish(ctx, events.TopicAssociationRequested, events.IDKey(f.ID), evt, nil); err != nil {
			errs = append(errs, err)
			continue
		}
		sent++
	}
	p.countProposed(sent)
	return sent, errors.Join(errs...)
}

// classify marks embedding failures that will never succeed as permanent.
func classify(err error) error {
	if err != nil && embedding.IsPermanent(err) {
		return kafka.Permanent(err)
	}
	return err
}

func (p *Pipeline) report(ctx context.Context, evt events.FragmentCreated, out Outcome) {
	fields := map[string]interface{}{
		"fragment_id": evt.FragmentID,
		"owner_id":    evt.OwnerID,
		"status":      string(out.Status),
		"links":       out.Links,
		"milestone":   out.Fired,
	}

	switch {
	case out.Primary != nil:
		p.countProcessed("error")
		p.logger.ErrorWithContext(ctx, "Fragment processing failed", out.Primary, fields)
		return
	case out.Status == model.StatusFailed:
		p.countProcessed("failed")
		p.logger.WarnWithContext(ctx, "Fragment cannot be embedded", out.Failure, fields)
		return
	}

	p.countProcessed("ok")
	if out.Linking != nil {
		p.logger.WarnWithContext(ctx, "Association requests incomplete", out.Linking, fields)
	}
	if out.Milestone != nil {
		p.logger.WarnWithContext(ctx, "Milestone check failed", out.Milestone, fields)
	}
	p.logger.InfoWithContext(ctx, "Fragment processed", nil, fields)
}
