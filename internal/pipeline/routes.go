package pipeline

import (
	"github.com/Aleph-Alpha/gravity/internal/events"
	"github.com/Aleph-Alpha/gravity/internal/milestone"
	"github.com/Aleph-Alpha/gravity/internal/reconciler"
	"github.com/Aleph-Alpha/gravity/v1/kafka"
)

// Route binds a topic to its handler.
type Route struct {
	Topic   string
	Handler kafka.HandlerFunc
}

// Routes is the complete consumer table of the service.
func Routes(p *Pipeline, r *reconciler.Reconciler, m *milestone.Trigger) []Route {
	return []Route{
		{events.TopicFragmentCreated, p.HandleFragmentCreated},
		{events.TopicAssociationRequested, r.HandleAssociationRequested},
		{events.TopicRecomputeRequested, m.HandleRecomputeRequested},
		{events.TopicRecomputeCompleted, m.HandleRecomputeCompleted},
		{events.TopicFragmentDeleted, p.HandleFragmentDeleted},
		{events.TopicClusterDeleted, p.HandleClusterDeleted},
		{events.TopicDocumentIngested, p.HandleDocumentIngested},
		{events.TopicSummaryRequested, p.HandleSummaryRequested},
	}
}

// Register installs routes on router.
func Register(router *kafka.Router, routes []Route) {
	for _, rt := range routes {
		router.Handle(rt.Topic, rt.Handler)
	}
}
