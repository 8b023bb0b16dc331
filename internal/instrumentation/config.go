package instrumentation

import (
	"fmt"
	"os"
	"strconv"
)

// Exporter names accepted by Config.
const (
	ExporterPrometheus = "prometheus"
	ExporterOTLP       = "otlp"
	ExporterStdout     = "stdout"
	ExporterNone       = "none"
)

// Metric label values.
const (
	StatusSuccess = "success"
	StatusError   = "error"

	OAuthResultSuccess = "success"
	OAuthResultFailure = "failure"
	OAuthResultExpired = "expired"

	// ServiceGmail labels operations against the Gmail API.
	ServiceGmail = "gmail"
)

// Config controls the OpenTelemetry provider. Zero values are not usable
// directly; start from DefaultConfig.
type Config struct {
	// ServiceName appears in the service.name resource attribute.
	ServiceName string

	// ServiceVersion is the running binary version.
	ServiceVersion string

	// Enabled turns the whole provider on or off. Disabled providers hand
	// out no-op recorders so call sites never branch on it.
	Enabled bool

	// MetricsExporter selects "prometheus", "otlp" or "stdout".
	MetricsExporter string

	// TracingExporter selects "otlp", "stdout" or "none".
	TracingExporter string

	// OTLPEndpoint is the collector host:port, without protocol prefix.
	// Required when either exporter is "otlp".
	OTLPEndpoint string

	// OTLPInsecure switches OTLP export to plain HTTP. Leave false outside
	// local development.
	OTLPInsecure bool

	// TraceSamplingRate is the parent-based sampling ratio, 0.0 to 1.0.
	TraceSamplingRate float64

	// AuditLogging configures the tool-invocation audit stream.
	AuditLogging AuditLoggingConfig
}

// AuditLoggingConfig controls the audit log stream. Audit records may
// contain PII (recipient addresses) and should be routed to secure
// storage when IncludePII is on.
type AuditLoggingConfig struct {
	Enabled bool

	// IncludePII logs full recipient addresses instead of anonymized
	// hashes.
	IncludePII bool

	// LogLevel is the slog level for audit messages.
	LogLevel string
}

// DefaultConfig builds a Config from environment variables, falling back
// to defaults suited to a locally run server.
func DefaultConfig() Config {
	return Config{
		ServiceName:       envString("OTEL_SERVICE_NAME", "gmail-mcp"),
		ServiceVersion:    "unknown",
		Enabled:           envBool("INSTRUMENTATION_ENABLED", true),
		MetricsExporter:   envString("METRICS_EXPORTER", ExporterPrometheus),
		TracingExporter:   envString("TRACING_EXPORTER", ExporterNone),
		OTLPEndpoint:      envString("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		OTLPInsecure:      envBool("OTEL_EXPORTER_OTLP_INSECURE", false),
		TraceSamplingRate: envFloat("OTEL_TRACES_SAMPLER_ARG", 0.1),
		AuditLogging: AuditLoggingConfig{
			Enabled:    envBool("AUDIT_LOGGING_ENABLED", true),
			IncludePII: envBool("AUDIT_LOGGING_INCLUDE_PII", false),
			LogLevel:   envString("AUDIT_LOGGING_LEVEL", "info"),
		},
	}
}

// Validate rejects exporter names and sampling rates the provider cannot
// honor. NewProvider calls this; it is exported for callers that assemble
// a Config by hand.
func (c *Config) Validate() error {
	if c.TraceSamplingRate < 0 || c.TraceSamplingRate > 1 {
		return fmt.Errorf("trace sampling rate must be between 0.0 and 1.0, got %f", c.TraceSamplingRate)
	}

	switch c.MetricsExporter {
	case "", ExporterPrometheus, ExporterStdout:
	case ExporterOTLP:
		if c.OTLPEndpoint == "" {
			return fmt.Errorf("OTLP endpoint is required when the metrics exporter is %q", ExporterOTLP)
		}
	default:
		return fmt.Errorf("invalid metrics exporter %q, must be one of: prometheus, otlp, stdout", c.MetricsExporter)
	}

	switch c.TracingExporter {
	case "", ExporterNone, ExporterStdout:
	case ExporterOTLP:
		if c.OTLPEndpoint == "" {
			return fmt.Errorf("OTLP endpoint is required when the tracing exporter is %q", ExporterOTLP)
		}
	default:
		return fmt.Errorf("invalid tracing exporter %q, must be one of: otlp, stdout, none", c.TracingExporter)
	}

	return nil
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return parsed
}

func envFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return parsed
}
