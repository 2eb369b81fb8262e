package tracer

// Config drives the OpenTelemetry tracer provider.
type Config struct {
	ServiceName string `yaml:"service_name" env:"SERVICE_NAME"`
	AppEnv      string `yaml:"app_env" env:"APP_ENV"`

	// EnableExport sends spans to an OTLP/HTTP collector. When false spans are
	// still created (and propagated through Kafka headers) but never exported.
	EnableExport bool `yaml:"enable_export" env:"TRACER_ENABLE_EXPORT"`

	// Endpoint is the collector host:port. Empty uses the OTEL_EXPORTER_OTLP_* env defaults.
	Endpoint string `yaml:"endpoint" env:"OTEL_EXPORTER_OTLP_ENDPOINT"`

	// Insecure disables TLS towards the collector.
	Insecure bool `yaml:"insecure" env:"TRACER_INSECURE"`
}
