// Package telemetry builds the instrumentation spine: a span-and-metrics
// provider bootstrapped from OTLP exporters, an HTTP middleware enforcing
// one server span per request, and a logging bridge that stamps active
// trace/span IDs onto log records.
package telemetry

import "time"

// Config is the telemetry section of the server configuration (§6).
type Config struct {
	Enabled             bool    `mapstructure:"enabled"`
	ServiceName         string  `mapstructure:"service_name"`
	ServiceVersion      string  `mapstructure:"service_version"`
	Endpoint            string  `mapstructure:"endpoint"`
	Protocol            string  `mapstructure:"protocol"` // "http" or "grpc"
	SamplingRate        float64 `mapstructure:"sampling_rate"`
	LogLevel            string  `mapstructure:"log_level"`
	LogFormat           string  `mapstructure:"log_format"` // "json" or "text"
	TimeoutSeconds      int     `mapstructure:"timeout_seconds"`
	ExportBatchSize     int     `mapstructure:"export_batch_size"`
	ExportTimeoutMillis int     `mapstructure:"export_timeout_millis"`
}

// Timeout returns the configured export timeout as a duration, defaulting
// to 10s when unset.
func (c Config) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// ExportInterval is the periodic metrics export interval mandated by §4.4.
const ExportInterval = 10 * time.Second
