// Package observability provides OpenTelemetry-based tracing, metrics, and
// structured logging for the freelaudit pipeline jobs.
package observability

import "log/slog"

// Job identifies which pipeline job the process is running.
type Job string

const (
	// JobCollect scrapes marketplace profiles.
	JobCollect Job = "collect"
	// JobFetch clones qualifying repositories.
	JobFetch Job = "fetch"
	// JobScan drives the quality server against the clone tree.
	JobScan Job = "scan"
	// JobAggregate builds per-profile workbooks.
	JobAggregate Job = "aggregate"
	// JobTool covers the helper commands.
	JobTool Job = "tool"
)

const (
	defaultServiceName        = "freelaudit"
	defaultShutdownTimeoutSec = 5
)

// Config holds all observability configuration.
type Config struct {
	// ServiceName is the OTel resource service name.
	ServiceName string

	// ServiceVersion is the semantic version of the running binary.
	ServiceVersion string

	// Environment is the deployment environment (e.g. "research", "dev").
	Environment string

	// Job identifies the sub-command being executed.
	Job Job

	// OTLPEndpoint is the OTLP gRPC collector address (e.g. "localhost:4317").
	// Empty disables export; providers become no-op.
	OTLPEndpoint string

	// OTLPHeaders are additional gRPC metadata headers for the OTLP exporter.
	OTLPHeaders map[string]string

	OTLPInsecure bool

	// LogLevel controls the minimum slog severity.
	LogLevel slog.Level

	LogJSON bool

	// ShutdownTimeoutSec is the maximum seconds to wait for flush on shutdown.
	ShutdownTimeoutSec int
}

// DefaultConfig returns a Config with sensible defaults for zero-config startup.
func DefaultConfig() Config {
	return Config{
		ServiceName:        defaultServiceName,
		Job:                JobTool,
		LogLevel:           slog.LevelInfo,
		ShutdownTimeoutSec: defaultShutdownTimeoutSec,
	}
}
