// Package config loads ruleminer configuration from a YAML file and
// RULEMINER_* environment variables.
package config

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidConfig is wrapped by every Validate failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Store drivers.
const (
	DriverSQLite = "sqlite"
	DriverMemory = "memory"
)

// Telemetry protocols.
const (
	ProtocolHTTP = "http"
	ProtocolGRPC = "grpc"
)

// Config is the complete ruleminer configuration.
type Config struct {
	Pipeline    PipelineConfig    `koanf:"pipeline"`
	Transcripts TranscriptsConfig `koanf:"transcripts"`
	Store       StoreConfig       `koanf:"store"`
	Review      ReviewConfig      `koanf:"review"`
	Writer      WriterConfig      `koanf:"writer"`
	Secrets     SecretsConfig     `koanf:"secrets"`
	Logging     LoggingConfig     `koanf:"logging"`
	Telemetry   TelemetryConfig   `koanf:"telemetry"`
	Metrics     MetricsConfig     `koanf:"metrics"`
}

// PipelineConfig holds the mining and review thresholds.
type PipelineConfig struct {
	AutoApproveThreshold    float64  `koanf:"auto_approve_threshold"`
	ReviewThreshold         float64  `koanf:"review_threshold"`
	AutoApproveEnabled      bool     `koanf:"auto_approve_enabled"`
	ContextWindow           int      `koanf:"context_window"`
	GeneralizationThreshold int      `koanf:"generalization_threshold"`
	RecencyWindow           Duration `koanf:"recency_window"`
}

// TranscriptsConfig locates conversation transcripts.
type TranscriptsConfig struct {
	Dir     string `koanf:"dir"`
	Workers int    `koanf:"workers"`
}

// StoreConfig selects the store backend.
type StoreConfig struct {
	Driver string `koanf:"driver"`
	Path   string `koanf:"path"`
}

// ReviewConfig locates review artifacts.
type ReviewConfig struct {
	Dir     string `koanf:"dir"`
	Archive bool   `koanf:"archive"`
}

// WriterConfig locates the managed rule documents.
type WriterConfig struct {
	GlobalDocument  string `koanf:"global_document"`
	ProjectDocument string `koanf:"project_document"`
	RulesDir        string `koanf:"rules_dir"`
}

// SecretsConfig controls scrubbing of stored excerpts.
type SecretsConfig struct {
	Enabled       bool   `koanf:"enabled"`
	AllowlistFile string `koanf:"allowlist_file"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level    string `koanf:"level"`
	Format   string `koanf:"format"`
	Sampling bool   `koanf:"sampling"`
}

// TelemetryConfig controls trace export.
type TelemetryConfig struct {
	Enabled     bool    `koanf:"enabled"`
	Endpoint    string  `koanf:"endpoint"`
	Protocol    string  `koanf:"protocol"`
	Insecure    bool    `koanf:"insecure"`
	ServiceName string  `koanf:"service_name"`
	SampleRate  float64 `koanf:"sample_rate"`
	// APIKey is sent as the authorization header when set.
	APIKey Secret `koanf:"api_key"`
}

// MetricsConfig controls the Prometheus textfile written after each run.
type MetricsConfig struct {
	Textfile string `koanf:"textfile"`
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	p := c.Pipeline
	if p.ReviewThreshold < 0 || p.ReviewThreshold > 1 {
		return invalid("pipeline.review_threshold must be in [0,1], got %v", p.ReviewThreshold)
	}
	if p.AutoApproveThreshold < 0 || p.AutoApproveThreshold > 1 {
		return invalid("pipeline.auto_approve_threshold must be in [0,1], got %v", p.AutoApproveThreshold)
	}
	if p.AutoApproveThreshold < p.ReviewThreshold {
		return invalid("pipeline.auto_approve_threshold (%v) must not be below pipeline.review_threshold (%v)",
			p.AutoApproveThreshold, p.ReviewThreshold)
	}
	if p.ContextWindow < 0 {
		return invalid("pipeline.context_window must not be negative")
	}
	if p.GeneralizationThreshold < 2 {
		return invalid("pipeline.generalization_threshold must be at least 2, got %d", p.GeneralizationThreshold)
	}
	if p.RecencyWindow.Duration() <= 0 {
		return invalid("pipeline.recency_window must be positive")
	}
	if c.Transcripts.Workers < 1 {
		return invalid("transcripts.workers must be at least 1")
	}

	switch c.Store.Driver {
	case DriverSQLite:
		if c.Store.Path == "" {
			return invalid("store.path is required for the sqlite driver")
		}
	case DriverMemory:
	default:
		return invalid("unknown store.driver %q", c.Store.Driver)
	}

	if c.Review.Dir == "" {
		return invalid("review.dir is required")
	}
	if c.Writer.GlobalDocument == "" {
		return invalid("writer.global_document is required")
	}
	if c.Writer.ProjectDocument == "" && c.Writer.RulesDir == "" {
		return invalid("one of writer.project_document or writer.rules_dir is required")
	}

	switch c.Logging.Format {
	case "json", "console":
	default:
		return invalid("unknown logging.format %q", c.Logging.Format)
	}

	t := c.Telemetry
	switch t.Protocol {
	case ProtocolHTTP, ProtocolGRPC:
	default:
		return invalid("unknown telemetry.protocol %q", t.Protocol)
	}
	if t.Enabled && t.Endpoint == "" {
		return invalid("telemetry.endpoint is required when telemetry is enabled")
	}
	if t.SampleRate < 0 || t.SampleRate > 1 {
		return invalid("telemetry.sample_rate must be in [0,1], got %v", t.SampleRate)
	}
	return nil
}

// RecencyWindow returns the pipeline recency window.
func (c *Config) RecencyWindow() time.Duration {
	return c.Pipeline.RecencyWindow.Duration()
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}
