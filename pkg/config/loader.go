package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// proxyYAMLConfig mirrors proxy.yaml on disk. Duration knobs are plain
// milliseconds ints (matching the `_ms`-suffixed names in spec.md §6)
// rather than time.Duration, since YAML has no native duration type.
type proxyYAMLConfig struct {
	EnableClientAuth   *bool  `yaml:"enable_client_auth"`
	CredentialsDir     string `yaml:"credentials_dir"`
	DatabaseURL        string `yaml:"database_url"`
	DashboardAPIKey    string `yaml:"dashboard_api_key"`
	StorageEnabled     *bool  `yaml:"storage_enabled"`
	SlowQueryThreshold int    `yaml:"slow_query_threshold_ms"`
	Listen             string `yaml:"listen"`

	Upstream    upstreamYAML    `yaml:"upstream"`
	Analysis    analysisYAML    `yaml:"analysis"`
	Proxy       proxyTimeout    `yaml:"proxy"`
	Pipeline    pipelineYAML    `yaml:"pipeline"`
	Credentials credentialsYAML `yaml:"credentials"`
}

type credentialsYAML struct {
	RefreshLeadMS int    `yaml:"refresh_lead_ms"`
	OAuthTokenURL string `yaml:"oauth_token_url"`
	OAuthClientID string `yaml:"oauth_client_id"`
}

type upstreamYAML struct {
	BaseURL            string `yaml:"base_url"`
	APIKeyHeader       string `yaml:"api_key_header"`
	OAuthBetaHeader    string `yaml:"oauth_beta_header"`
	OAuthBetaHeaderVal string `yaml:"oauth_beta_header_value"`
}

type analysisYAML struct {
	Enabled            *bool  `yaml:"ai_worker_enabled"`
	PollIntervalMS     int    `yaml:"ai_worker_poll_interval_ms"`
	MaxConcurrentJobs  int    `yaml:"ai_worker_max_concurrent_jobs"`
	MaxRetries         int    `yaml:"ai_analysis_max_retries"`
	TimeoutMS          int    `yaml:"ai_analysis_timeout_ms"`
	MaxPromptTokens    int    `yaml:"ai_analysis_max_prompt_tokens"`
	HeadMessages       int    `yaml:"ai_head_messages"`
	TailMessages       int    `yaml:"ai_tail_messages"`
	StuckSweepMS       int    `yaml:"ai_stuck_sweep_interval_ms"`
	StuckThresholdMS   int    `yaml:"ai_stuck_threshold_ms"`
	TokenizerModel     string `yaml:"ai_tokenizer_model"`
	ModelName          string `yaml:"ai_model_name"`
	APIKeyEnv          string `yaml:"ai_api_key_env"`
	BaseURL            string `yaml:"ai_base_url"`
}

type proxyTimeout struct {
	UpstreamTimeoutMS int `yaml:"claude_api_timeout_ms"`
	ServerTimeoutMS   int `yaml:"proxy_server_timeout_ms"`
}

type pipelineYAML struct {
	BatchSize         int `yaml:"batch_size"`
	FlushIntervalMS   int `yaml:"flush_interval_ms"`
	QueueDepth        int `yaml:"queue_depth"`
	EnqueueTimeoutMS  int `yaml:"enqueue_timeout_ms"`
	ShutdownTimeoutMS int `yaml:"shutdown_timeout_ms"`
	WriterCount       int `yaml:"writer_count"`
}

// Initialize loads, validates, and returns ready-to-use configuration.
//
// Steps performed:
//  1. Load proxy.yaml from configDir
//  2. Expand environment variables
//  3. Parse YAML and merge it onto an empty configuration
//  4. Apply system defaults to every knob left zero-valued
//  5. Validate all configuration
func Initialize(_ context.Context, configDir string) (*Config, error) {
	log := slog.With("config_dir", configDir)
	log.Info("Initializing configuration")

	cfg, err := load(configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	log.Info("Configuration initialized successfully",
		"upstream_base_url", cfg.Upstream.BaseURL,
		"analysis_enabled", cfg.Analysis.Enabled,
		"storage_enabled", cfg.StorageEnabled)

	return cfg, nil
}

func load(configDir string) (*Config, error) {
	path := filepath.Join(configDir, "proxy.yaml")

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			raw = []byte{}
		} else {
			return nil, NewLoadError(path, err)
		}
	}

	raw = ExpandEnv(raw)

	var yc proxyYAMLConfig
	if len(raw) > 0 {
		if err := yaml.Unmarshal(raw, &yc); err != nil {
			return nil, NewLoadError(path, fmt.Errorf("%w: %v", ErrInvalidYAML, err))
		}
	}

	cfg := &Config{configDir: configDir}

	// mergo.Merge copies every non-zero field of yc onto cfg's zero-valued
	// fields; WithOverride lets a later merge (user YAML) win over an
	// earlier one (none here, single file, but keeps the teacher's idiom
	// for a config surface that may grow additional sources later).
	durationCfg := configFromYAML(&yc)
	if err := mergo.Merge(cfg, durationCfg, mergo.WithOverride); err != nil {
		return nil, fmt.Errorf("merging configuration: %w", err)
	}

	applyDefaults(cfg)

	return cfg, nil
}

func configFromYAML(yc *proxyYAMLConfig) *Config {
	cfg := &Config{
		CredentialsDir:     yc.CredentialsDir,
		DatabaseURL:        yc.DatabaseURL,
		DashboardAPIKey:    yc.DashboardAPIKey,
		SlowQueryThreshold: time.Duration(yc.SlowQueryThreshold) * time.Millisecond,
		Listen:             yc.Listen,
		Upstream: UpstreamConfig{
			BaseURL:            yc.Upstream.BaseURL,
			APIKeyHeader:       yc.Upstream.APIKeyHeader,
			OAuthBetaHeader:    yc.Upstream.OAuthBetaHeader,
			OAuthBetaHeaderVal: yc.Upstream.OAuthBetaHeaderVal,
		},
		Analysis: AnalysisConfig{
			PollInterval:       time.Duration(yc.Analysis.PollIntervalMS) * time.Millisecond,
			MaxConcurrentJobs:  yc.Analysis.MaxConcurrentJobs,
			MaxRetries:         yc.Analysis.MaxRetries,
			Timeout:            time.Duration(yc.Analysis.TimeoutMS) * time.Millisecond,
			MaxPromptTokens:    yc.Analysis.MaxPromptTokens,
			HeadMessages:       yc.Analysis.HeadMessages,
			TailMessages:       yc.Analysis.TailMessages,
			StuckSweepInterval: time.Duration(yc.Analysis.StuckSweepMS) * time.Millisecond,
			StuckThreshold:     time.Duration(yc.Analysis.StuckThresholdMS) * time.Millisecond,
			TokenizerModel:     yc.Analysis.TokenizerModel,
			ModelName:          yc.Analysis.ModelName,
			APIKeyEnv:          yc.Analysis.APIKeyEnv,
			BaseURL:            yc.Analysis.BaseURL,
		},
		Proxy: ProxyConfig{
			UpstreamTimeout: time.Duration(yc.Proxy.UpstreamTimeoutMS) * time.Millisecond,
			ServerTimeout:   time.Duration(yc.Proxy.ServerTimeoutMS) * time.Millisecond,
		},
		Pipeline: PipelineConfig{
			BatchSize:       yc.Pipeline.BatchSize,
			FlushInterval:   time.Duration(yc.Pipeline.FlushIntervalMS) * time.Millisecond,
			QueueDepth:      yc.Pipeline.QueueDepth,
			EnqueueTimeout:  time.Duration(yc.Pipeline.EnqueueTimeoutMS) * time.Millisecond,
			ShutdownTimeout: time.Duration(yc.Pipeline.ShutdownTimeoutMS) * time.Millisecond,
			WriterCount:     yc.Pipeline.WriterCount,
		},
		Credentials: CredentialConfig{
			RefreshLead:   time.Duration(yc.Credentials.RefreshLeadMS) * time.Millisecond,
			OAuthTokenURL: yc.Credentials.OAuthTokenURL,
			OAuthClientID: yc.Credentials.OAuthClientID,
		},
	}

	if yc.EnableClientAuth != nil {
		cfg.EnableClientAuth = *yc.EnableClientAuth
	} else {
		cfg.EnableClientAuth = true
	}
	if yc.StorageEnabled != nil {
		cfg.StorageEnabled = *yc.StorageEnabled
	} else {
		cfg.StorageEnabled = true
	}
	if yc.Analysis.Enabled != nil {
		cfg.Analysis.Enabled = *yc.Analysis.Enabled
	} else {
		cfg.Analysis.Enabled = true
	}

	return cfg
}
