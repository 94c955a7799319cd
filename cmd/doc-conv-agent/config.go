// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"

	"github.com/spf13/afero"
	"github.com/spf13/viper"

	"github.com/pdiddy/doc-conv-agent/internal/secrets"
	"github.com/pdiddy/doc-conv-agent/pkg/types"
)

// setDefaults registers every configuration key so environment variables
// are seen by Unmarshal even when no config file sets them.
func setDefaults(v *viper.Viper) {
	v.SetDefault("paths.target_dir", "")
	v.SetDefault("paths.result_dir", "")
	v.SetDefault("paths.error_dir", "")
	v.SetDefault("converter.url", "")
	v.SetDefault("converter.package", types.DefaultPackage)
	v.SetDefault("converter.extensions", "")
	v.SetDefault("converter.api_token", "")
	v.SetDefault("converter.timeout", types.DefaultTimeout)
	v.SetDefault("converter.user_agent", types.DefaultUserAgent)
	v.SetDefault("converter.max_retries", types.DefaultConverterRetries)
	v.SetDefault("report.signatures", "")
	v.SetDefault("submitter.delay", types.DefaultSubmitDelay)
	v.SetDefault("submitter.queue_wait", types.DefaultQueueWait)
	v.SetDefault("poller.delay", types.DefaultPollDelay)
	v.SetDefault("poller.delete_completed", false)
	v.SetDefault("poller.max_status_errors", types.DefaultMaxStatusErrors)
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", "")
	v.SetDefault("tracing.endpoint", "")
	v.SetDefault("tracing.insecure", false)
	v.SetDefault("tracing.sample_ratio", 1.0)
	v.SetDefault("queue_capacity", types.DefaultQueueCapacity)
	v.SetDefault("result_ext", types.DefaultResultExt)
	v.SetDefault("watch", true)
	v.SetDefault("metrics_addr", "")
	v.SetDefault("secrets_dir", ".secrets/")
}

// loadConfig builds the agent configuration from v. List settings accept
// either YAML sequences or comma-separated strings. The sandbox token falls
// back to the converter-api-token secret.
func loadConfig(v *viper.Viper, fsys afero.Fs) (types.AgentConfig, error) {
	var cfg types.AgentConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("decoding configuration: %w", err)
	}
	cfg.Converter.Extensions = types.SplitList(cfg.Converter.Extensions...)
	cfg.Report.Signatures = types.SplitList(cfg.Report.Signatures...)

	loaded, err := secrets.Load(fsys, v.GetString("secrets_dir"))
	if err != nil {
		return cfg, err
	}
	cfg.Converter.APIToken = secrets.Lookup(loaded, secrets.ConverterToken, cfg.Converter.APIToken)

	cfg.ApplyDefaults()
	return cfg, nil
}

// loadPaths is loadConfig for commands that only touch the directories.
func loadPaths() (types.AgentConfig, error) {
	cfg, err := loadConfig(viper.GetViper(), afero.NewOsFs())
	if err != nil {
		return cfg, err
	}
	if err := cfg.Paths.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
