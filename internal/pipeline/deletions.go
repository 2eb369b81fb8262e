package pipeline

import (
	"context"
	"fmt"

	"github.com/Aleph-Alpha/gravity/internal/events"
	"github.com/Aleph-Alpha/gravity/internal/model"
	"github.com/Aleph-Alpha/gravity/v1/kafka"
	"github.com/Aleph-Alpha/gravity/v1/vectordb"
)

// HandleFragmentDeleted consumes fragment.deleted and removes the fragment's
// vectors. Highlights and summaries are both keyed by fragmentId.
func (p *Pipeline) HandleFragmentDeleted(ctx context.Context, msg kafka.Message) error {
	var evt events.Deleted
	if err := kafka.Decode(msg, &evt); err != nil {
		return err
	}
	if evt.Kind == events.DeletedCluster {
		return kafka.Permanent(fmt.Errorf("pipeline: cluster deletion on %s", msg.Topic))
	}

	owner := model.SanitizeOwner(evt.OwnerID)
	space := vectordb.SpaceUser
	if model.IsGuest(owner) {
		space = vectordb.SpaceGuest
	}
	if err := p.engine.RemoveFragment(ctx, owner, evt.ID, space); err != nil {
		return err
	}

	p.logger.DebugWithContext(ctx, "Fragment vectors removed", nil, map[string]interface{}{
		"fragment_id": evt.ID,
		"kind":        evt.Kind,
	})
	return nil
}

// HandleClusterDeleted consumes cluster.deleted. Removing the name vector and
// leftover associations again is harmless.
func (p *Pipeline) HandleClusterDeleted(ctx context.Context, msg kafka.Message) error {
	var evt events.Deleted
	if err := kafka.Decode(msg, &evt); err != nil {
		return err
	}
	if evt.Kind != events.DeletedCluster {
		return kafka.Permanent(fmt.Errorf("pipeline: %s deletion on %s", evt.Kind, msg.Topic))
	}

	if err := p.engine.RemoveCluster(ctx, model.SanitizeOwner(evt.OwnerID), evt.ID); err != nil {
		return err
	}
	n, err := p.store.DeleteAssociationsForCluster(ctx, evt.ID)
	if err != nil {
		return fmt.Errorf("pipeline: delete associations of cluster %d: %w", evt.ID, err)
	}

	p.logger.DebugWithContext(ctx, "Cluster vectors removed", nil, map[string]interface{}{
		"cluster_id":          evt.ID,
		"orphan_associations": n,
	})
	return nil
}
