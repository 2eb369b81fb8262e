// Package kafka is the event transport of the gravity engine.
//
// KafkaClient publishes JSON events through a single segmentio writer and
// opens consumer-group readers with manual commits, so delivery is
// at-least-once. Router holds the explicit topic to handler table:
//
//	router.Handle(events.TopicFragmentCreated, pipeline.HandleFragmentCreated)
//	router.Handle(events.TopicAssociationRequested, reconciler.HandleAssociationRequested)
//	err := router.Run(ctx)
//
// Handlers decode with Decode, which accepts exactly one JSON encoding and
// rejects everything else with ErrRejected. Rejected messages and errors
// marked with Permanent are logged and committed. Other errors are retried
// Config.MaxHandlerAttempts times and then written to "<topic>.dlq" with the
// last error in the x-error header.
//
// The OpenTelemetry trace context travels in message headers: Publish injects
// it and the router extracts it into the handler context.
package kafka
