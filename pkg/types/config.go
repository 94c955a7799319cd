// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	DefaultPackage          = "doc_conv"
	DefaultResultExt        = "pdf"
	DefaultUserAgent        = "doc-conv-agent/0.1"
	DefaultTimeout          = 60 * time.Second
	DefaultSubmitDelay      = 1 * time.Second
	DefaultQueueWait        = 10 * time.Second
	DefaultPollDelay        = 1 * time.Second
	DefaultQueueCapacity    = 1000
	DefaultMaxStatusErrors  = 5
	DefaultConverterRetries = 3
)

// HTTPConfig holds shared HTTP settings used when talking to the sandbox.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests.
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`
}

// PathConfig names the three directories the marker-file store works in.
type PathConfig struct {
	// TargetDir is where producers drop files and their .eof markers.
	TargetDir string `json:"target_dir" yaml:"target_dir" mapstructure:"target_dir"`

	// ResultDir receives converted payloads and outcome .eof markers.
	ResultDir string `json:"result_dir" yaml:"result_dir" mapstructure:"result_dir"`

	// ErrorDir keeps the originals of failed tasks for later review.
	ErrorDir string `json:"error_dir" yaml:"error_dir" mapstructure:"error_dir"`
}

// ConverterConfig holds settings for the remote conversion sandbox.
type ConverterConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	// URL is the sandbox REST API root (e.g. "http://127.0.0.1:8090").
	URL string `json:"url" yaml:"url" mapstructure:"url"`

	// Package is the analysis package requested at task creation (default "doc_conv").
	Package string `json:"package" yaml:"package" mapstructure:"package"`

	// Extensions is the allow-list of file extensions, compared case-insensitively
	// and without the leading dot.
	Extensions []string `json:"extensions" yaml:"extensions" mapstructure:"extensions"`

	// APIToken is sent as a bearer token when set.
	APIToken string `json:"api_token,omitempty" yaml:"api_token,omitempty" mapstructure:"api_token"`

	// MaxRetries bounds retries of throttled or unavailable responses (default 3).
	MaxRetries int `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries"`
}

// ReportConfig holds settings for report analysis.
type ReportConfig struct {
	// Signatures lists signature names that reject a report outright.
	Signatures []string `json:"signatures" yaml:"signatures" mapstructure:"signatures"`
}

// SubmitterConfig holds settings for the submission worker.
type SubmitterConfig struct {
	// Delay is the back-off when no claimable file exists (default 1s).
	Delay time.Duration `json:"delay" yaml:"delay" mapstructure:"delay"`

	// QueueWait bounds how long a submitted task may wait for queue space (default 10s).
	QueueWait time.Duration `json:"queue_wait" yaml:"queue_wait" mapstructure:"queue_wait"`
}

// PollerConfig holds settings for the polling worker.
type PollerConfig struct {
	// Delay is the pause after each handled queue entry (default 1s).
	Delay time.Duration `json:"delay" yaml:"delay" mapstructure:"delay"`

	// DeleteCompleted removes finished remote tasks after a successful result.
	DeleteCompleted bool `json:"delete_completed" yaml:"delete_completed" mapstructure:"delete_completed"`

	// MaxStatusErrors is how many consecutive status-query failures an entry
	// survives before the task is failed (default 5).
	MaxStatusErrors int `json:"max_status_errors" yaml:"max_status_errors" mapstructure:"max_status_errors"`
}

// TracingConfig holds OpenTelemetry export settings.
type TracingConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled" mapstructure:"enabled"`

	// ServiceName defaults to OTEL_SERVICE_NAME, then "doc-conv-agent".
	ServiceName string `json:"service_name,omitempty" yaml:"service_name,omitempty" mapstructure:"service_name"`

	// Endpoint is the OTLP/gRPC collector (host:port or URL). Defaults to
	// OTEL_EXPORTER_OTLP_ENDPOINT, then localhost:4317.
	Endpoint string `json:"endpoint,omitempty" yaml:"endpoint,omitempty" mapstructure:"endpoint"`

	Insecure bool `json:"insecure" yaml:"insecure" mapstructure:"insecure"`

	// SampleRatio is the fraction of root spans kept; out-of-range values mean 1.
	SampleRatio float64 `json:"sample_ratio" yaml:"sample_ratio" mapstructure:"sample_ratio"`
}

// AgentConfig groups all agent settings.
type AgentConfig struct {
	Paths     PathConfig      `json:"paths" yaml:"paths" mapstructure:"paths"`
	Converter ConverterConfig `json:"converter" yaml:"converter" mapstructure:"converter"`
	Report    ReportConfig    `json:"report" yaml:"report" mapstructure:"report"`
	Submitter SubmitterConfig `json:"submitter" yaml:"submitter" mapstructure:"submitter"`
	Poller    PollerConfig    `json:"poller" yaml:"poller" mapstructure:"poller"`
	Tracing   TracingConfig   `json:"tracing" yaml:"tracing" mapstructure:"tracing"`

	// QueueCapacity bounds the in-memory work queue (default 1000).
	QueueCapacity int `json:"queue_capacity" yaml:"queue_capacity" mapstructure:"queue_capacity"`

	// ResultExt is the extension given to converted payloads (default "pdf").
	ResultExt string `json:"result_ext" yaml:"result_ext" mapstructure:"result_ext"`

	// Watch enables filesystem notifications on the target directory.
	Watch bool `json:"watch" yaml:"watch" mapstructure:"watch"`

	// MetricsAddr is the listen address for /metrics; empty disables it.
	MetricsAddr string `json:"metrics_addr,omitempty" yaml:"metrics_addr,omitempty" mapstructure:"metrics_addr"`
}

// ApplyDefaults fills zero-valued settings with their defaults.
func (c *AgentConfig) ApplyDefaults() {
	if c.Converter.Package == "" {
		c.Converter.Package = DefaultPackage
	}
	if c.Converter.Timeout <= 0 {
		c.Converter.Timeout = DefaultTimeout
	}
	if c.Converter.UserAgent == "" {
		c.Converter.UserAgent = DefaultUserAgent
	}
	if c.Converter.MaxRetries <= 0 {
		c.Converter.MaxRetries = DefaultConverterRetries
	}
	if c.Submitter.Delay <= 0 {
		c.Submitter.Delay = DefaultSubmitDelay
	}
	if c.Submitter.QueueWait <= 0 {
		c.Submitter.QueueWait = DefaultQueueWait
	}
	if c.Poller.Delay <= 0 {
		c.Poller.Delay = DefaultPollDelay
	}
	if c.Poller.MaxStatusErrors <= 0 {
		c.Poller.MaxStatusErrors = DefaultMaxStatusErrors
	}
	if c.QueueCapacity <= 0 {
		c.QueueCapacity = DefaultQueueCapacity
	}
	c.ResultExt = strings.TrimPrefix(c.ResultExt, ".")
	if c.ResultExt == "" {
		c.ResultExt = DefaultResultExt
	}
}

// Validate reports missing directories.
func (p PathConfig) Validate() error {
	var errs []error
	if p.TargetDir == "" {
		errs = append(errs, errors.New("paths.target_dir is required"))
	}
	if p.ResultDir == "" {
		errs = append(errs, errors.New("paths.result_dir is required"))
	}
	if p.ErrorDir == "" {
		errs = append(errs, errors.New("paths.error_dir is required"))
	}
	return errors.Join(errs...)
}

// Validate reports missing settings that have no sensible default.
func (c AgentConfig) Validate() error {
	var errs []error
	if err := c.Paths.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Converter.URL == "" {
		errs = append(errs, errors.New("converter.url is required"))
	}
	if len(c.Converter.Extensions) == 0 {
		errs = append(errs, errors.New("converter.extensions must list at least one extension"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// SplitList splits a comma-separated option into trimmed, non-empty items.
// Values that are already lists (e.g. YAML sequences) are passed through
// the same trimming.
func SplitList(items ...string) []string {
	var out []string
	for _, item := range items {
		for _, part := range strings.Split(item, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}
