package metrics

// Config controls the Prometheus endpoint.
type Config struct {
	// Address the /metrics server listens on, e.g. ":9090".
	Address string `yaml:"address" env:"METRICS_ADDRESS"`

	// ServiceName becomes the constant "service" label on every metric.
	ServiceName string `yaml:"service_name" env:"SERVICE_NAME"`

	// EnableDefaultCollectors registers the Go, process and build info collectors.
	EnableDefaultCollectors bool `yaml:"enable_default_collectors" env:"METRICS_DEFAULT_COLLECTORS"`
}

// DefaultAddress is used when Config.Address is empty.
const DefaultAddress = ":9090"
