// Package reconciler turns gravity candidates into association rows and
// owns the deletion paths of clusters and fragments.
package reconciler

import (
	"context"
	"errors"
	"fmt"

	"github.com/Aleph-Alpha/gravity/internal/events"
	"github.com/Aleph-Alpha/gravity/internal/gravity"
	"github.com/Aleph-Alpha/gravity/internal/model"
	"github.com/Aleph-Alpha/gravity/internal/store"
	"github.com/Aleph-Alpha/gravity/v1/kafka"
	"github.com/Aleph-Alpha/gravity/v1/logger"
	"github.com/Aleph-Alpha/gravity/v1/postgres"
)

var (
	// ErrZombie is returned when a cluster or fragment referenced by a
	// candidate no longer exists.
	ErrZombie = errors.New("reconciler: cluster or fragment no longer exists")

	// ErrOwnerMismatch is returned when a cluster and fragment belong to
	// different owners.
	ErrOwnerMismatch = errors.New("reconciler: cluster and fragment owners differ")

	// ErrNotFound is returned by the delete paths for rows that do not exist
	// or belong to someone else.
	ErrNotFound = errors.New("reconciler: not found")
)

// Linked is the secondary outcome of creating a cluster.
type Linked struct {
	Links int
	Err   error
}

// Reconciler writes associations and runs the delete flows.
type Reconciler struct {
	store     *store.Store
	engine    *gravity.Engine
	publisher kafka.Publisher
	logger    logger.Logger
}

// New returns a Reconciler.
func New(s *store.Store, engine *gravity.Engine, publisher kafka.Publisher, log logger.Logger) *Reconciler {
	return &Reconciler{store: s, engine: engine, publisher: publisher, logger: log}
}

// Reconcile links clusterID and fragmentID with score. Calling it again for
// the same pair updates the score of the existing row. The existence and
// owner checks run in the same transaction as the write.
func (r *Reconciler) Reconcile(ctx context.Context, clusterID, fragmentID uint64, score float32) (model.Association, error) {
	return r.link(ctx, clusterID, fragmentID, score)
}

func (r *Reconciler) link(ctx context.Context, clusterID, fragmentID uint64, score float32) (model.Association, error) {
	a := model.Association{ClusterID: clusterID, FragmentID: fragmentID, Score: score}
	err := r.store.LinkFragment(ctx, &a)
	switch {
	case err == nil:
		return a, nil
	case errors.Is(err, postgres.ErrRecordNotFound):
		return model.Association{}, fmt.Errorf("%w: %v", ErrZombie, err)
	case errors.Is(err, store.ErrOwnerMismatch):
		return model.Association{}, fmt.Errorf("%w: cluster %d, fragment %d", ErrOwnerMismatch, clusterID, fragmentID)
	}
	return model.Association{}, fmt.Errorf("reconciler: link %d/%d: %w", clusterID, fragmentID, err)
}

// CreateCluster stores the cluster, mirrors its name into the vector index
// and links it to the owner's existing fragments. Linking failures are
// reported in Linked and do not undo the cluster.
func (r *Reconciler) CreateCluster(ctx context.Context, c model.Cluster) (model.Cluster, Linked, error) {
	c.Active = true
	if err := r.store.CreateCluster(ctx, &c); err != nil {
		return model.Cluster{}, Linked{}, err
	}

	vectorID, err := r.engine.RegisterCluster(ctx, c)
	if err != nil {
		if delErr := r.store.DeleteCluster(ctx, c.ID); delErr != nil {
			r.logger.ErrorWithContext(ctx, "Failed to roll back cluster", delErr, map[string]interface{}{"cluster_id": c.ID})
		}
		return model.Cluster{}, Linked{}, err
	}
	if err := r.store.SetClusterVector(ctx, c.ID, vectorID); err != nil {
		r.logger.WarnWithContext(ctx, "Failed to record cluster vector id", err, map[string]interface{}{"cluster_id": c.ID})
	} else {
		c.VectorID = vectorID
	}

	links, err := r.LinkCluster(ctx, c)
	if err != nil {
		r.logger.WarnWithContext(ctx, "Forward linking incomplete", err, map[string]interface{}{
			"cluster_id": c.ID,
			"links":      links,
		})
	}
	return c, Linked{Links: links, Err: err}, nil
}

// LinkCluster runs a forward search for cluster and stores every candidate.
// It returns the number of associations written.
func (r *Reconciler) LinkCluster(ctx context.Context, cluster model.Cluster) (int, error) {
	candidates, err := r.engine.Forward(ctx, cluster)
	if err != nil {
		return 0, err
	}

	var (
		links int
		errs  []error
	)
	for _, c := range candidates {
		if _, err := r.link(ctx, cluster.ID, c.FragmentID, c.Score); err != nil {
			errs = append(errs, err)
			continue
		}
		links++
	}
	r.logger.DebugWithContext(ctx, "Cluster linked", nil, map[string]interface{}{
		"cluster_id": cluster.ID,
		"candidates": len(candidates),
		"links":      links,
	})
	return links, errors.Join(errs...)
}

// DeleteCluster removes the cluster of owner together with its associations
// and name vector, then announces the deletion.
func (r *Reconciler) DeleteCluster(ctx context.Context, owner string, id uint64) error {
	c, err := r.store.FindCluster(ctx, id)
	if err != nil || c.OwnerID != owner {
		return notFound("cluster", id, err)
	}
	if err := r.store.DeleteCluster(ctx, id); err != nil {
		return fmt.Errorf("reconciler: delete cluster %d: %w", id, err)
	}
	if err := r.engine.RemoveCluster(ctx, owner, id); err != nil {
		r.logger.WarnWithContext(ctx, "Cluster vector left behind", err, map[string]interface{}{"cluster_id": id})
	}
	r.announce(ctx, events.Deleted{Kind: events.DeletedCluster, ID: id, OwnerID: owner}, events.TopicClusterDeleted)
	return nil
}

// DeleteFragment removes the fragment of owner and its associations. Vector
// cleanup happens asynchronously on fragment.deleted.
func (r *Reconciler) DeleteFragment(ctx context.Context, owner string, id uint64) error {
	f, err := r.store.FindFragment(ctx, id)
	if err != nil || f.OwnerID != owner {
		return notFound("fragment", id, err)
	}
	if err := r.store.DeleteFragment(ctx, id); err != nil {
		return fmt.Errorf("reconciler: delete fragment %d: %w", id, err)
	}

	kind := events.DeletedHighlight
	if f.Kind == model.KindSummary {
		kind = events.DeletedSummary
	}
	r.announce(ctx, events.Deleted{Kind: kind, ID: id, OwnerID: owner}, events.TopicFragmentDeleted)
	return nil
}

// announce publishes a deletion. A failure leaves a zombie vector, which
// searches already tolerate, so it is only logged.
func (r *Reconciler) announce(ctx context.Context, evt events.Deleted, topic string) {
	if err := r.publisher.Publish(ctx, topic, events.IDKey(evt.ID), evt, nil); err != nil {
		r.logger.ErrorWithContext(ctx, "Failed to publish deletion", err, map[string]interface{}{
			"topic": topic,
			"id":    evt.ID,
		})
	}
}

func notFound(kind string, id uint64, err error) error {
	if err == nil || errors.Is(err, postgres.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s %d", ErrNotFound, kind, id)
	}
	return fmt.Errorf("reconciler: load %s %d: %w", kind, id, err)
}
