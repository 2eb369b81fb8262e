// Package logger provides the structured zap logger shared by every component.
//
// The API takes a message, an optional error and optional field maps:
//
//	log := logger.NewLoggerClient(logger.Config{Level: logger.Info, ServiceName: "gravityd"})
//	log.Info("fragment processed", nil, map[string]interface{}{
//		"fragment_id": 42,
//		"owner_id":    "alice",
//	})
//
// With EnableTracing set, the *WithContext variants add trace_id and span_id of
// the active OpenTelemetry span so log lines correlate with traces that crossed
// the Kafka boundary.
//
// Configuration:
//
//	ZAP_LOGGER_LEVEL=debug|info|warning|error
//	LOGGER_ENABLE_TRACING=true
package logger
