package reconciler

import (
	"context"
	"errors"

	"github.com/Aleph-Alpha/gravity/internal/events"
	"github.com/Aleph-Alpha/gravity/v1/kafka"
)

// HandleAssociationRequested consumes association.requested. References to
// rows that are gone are acknowledged.
func (r *Reconciler) HandleAssociationRequested(ctx context.Context, msg kafka.Message) error {
	var evt events.AssociationRequested
	if err := kafka.Decode(msg, &evt); err != nil {
		return err
	}

	a, err := r.Reconcile(ctx, evt.ClusterID, evt.FragmentID, evt.Score)
	switch {
	case errors.Is(err, ErrZombie):
		r.logger.InfoWithContext(ctx, "Skipping association for missing row", err, map[string]interface{}{
			"cluster_id":  evt.ClusterID,
			"fragment_id": evt.FragmentID,
		})
		return nil
	case errors.Is(err, ErrOwnerMismatch):
		return kafka.Permanent(err)
	case err != nil:
		return err
	}

	r.logger.DebugWithContext(ctx, "Association reconciled", nil, map[string]interface{}{
		"association_id": a.ID,
		"cluster_id":     a.ClusterID,
		"fragment_id":    a.FragmentID,
		"score":          a.Score,
	})
	return nil
}
