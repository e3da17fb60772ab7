package telemetry

// LoggingConfig controls log output.
type LoggingConfig struct {
	// Level is the minimum level to emit: trace, debug, info, warn, error.
	Level string `json:"level" validate:"omitempty,oneof=trace debug info warn error"`

	// Format is "console" for human-readable output or "json" for structured.
	Format string `json:"format" validate:"omitempty,oneof=console json"`
}

// DefaultLoggingConfig returns the logging defaults for CLI use.
func DefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		Level:  "info",
		Format: "console",
	}
}

// MetricsConfig controls the Prometheus metrics registry.
type MetricsConfig struct {
	// Enabled turns metric collection on. When false a no-op instance is
	// returned and every observation is discarded.
	Enabled bool `json:"enabled"`

	// Namespace prefixes every metric name.
	Namespace string `json:"namespace"`
}

// DefaultMetricsConfig returns the metrics defaults.
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Enabled:   true,
		Namespace: "azsync",
	}
}
