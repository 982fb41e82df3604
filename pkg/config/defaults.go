package config

import "time"

// Defaults has no fields and is not read by the loader; system defaults
// are filled in by applyDefaults below, which sets every knob still
// zero-valued after the YAML has been merged.
type Defaults struct{}

// applyDefaults fills in any zero-valued knob with the system default,
// matching spec.md §4 and §6's stated default values.
func applyDefaults(cfg *Config) {
	if cfg.Upstream.APIKeyHeader == "" {
		cfg.Upstream.APIKeyHeader = "x-api-key"
	}
	if cfg.Upstream.OAuthBetaHeader == "" {
		cfg.Upstream.OAuthBetaHeader = "anthropic-beta"
	}
	if cfg.Upstream.OAuthBetaHeaderVal == "" {
		cfg.Upstream.OAuthBetaHeaderVal = "oauth-2025-04-20"
	}

	if cfg.Proxy.UpstreamTimeout == 0 {
		cfg.Proxy.UpstreamTimeout = 10 * time.Minute
	}
	if cfg.Proxy.ServerTimeout == 0 {
		cfg.Proxy.ServerTimeout = 11 * time.Minute
	}

	if cfg.Pipeline.BatchSize == 0 {
		cfg.Pipeline.BatchSize = 100
	}
	if cfg.Pipeline.FlushInterval == 0 {
		cfg.Pipeline.FlushInterval = 1 * time.Second
	}
	if cfg.Pipeline.QueueDepth == 0 {
		cfg.Pipeline.QueueDepth = 10000
	}
	if cfg.Pipeline.EnqueueTimeout == 0 {
		cfg.Pipeline.EnqueueTimeout = 500 * time.Millisecond
	}
	if cfg.Pipeline.ShutdownTimeout == 0 {
		cfg.Pipeline.ShutdownTimeout = 30 * time.Second
	}
	if cfg.Pipeline.WriterCount == 0 {
		cfg.Pipeline.WriterCount = 4
	}

	if cfg.Analysis.PollInterval == 0 {
		cfg.Analysis.PollInterval = 5 * time.Second
	}
	if cfg.Analysis.MaxConcurrentJobs == 0 {
		cfg.Analysis.MaxConcurrentJobs = 3
	}
	if cfg.Analysis.MaxRetries == 0 {
		cfg.Analysis.MaxRetries = 3
	}
	if cfg.Analysis.Timeout == 0 {
		cfg.Analysis.Timeout = 60 * time.Second
	}
	if cfg.Analysis.MaxPromptTokens == 0 {
		cfg.Analysis.MaxPromptTokens = 855_000
	}
	if cfg.Analysis.HeadMessages == 0 {
		cfg.Analysis.HeadMessages = 5
	}
	if cfg.Analysis.TailMessages == 0 {
		cfg.Analysis.TailMessages = 20
	}
	if cfg.Analysis.StuckSweepInterval == 0 {
		cfg.Analysis.StuckSweepInterval = 60 * time.Second
	}
	if cfg.Analysis.StuckThreshold == 0 {
		cfg.Analysis.StuckThreshold = 5 * time.Minute
	}
	if cfg.Analysis.TokenizerModel == "" {
		cfg.Analysis.TokenizerModel = "cl100k_base"
	}

	if cfg.SlowQueryThreshold == 0 {
		cfg.SlowQueryThreshold = 200 * time.Millisecond
	}
	if cfg.Listen == "" {
		cfg.Listen = ":8080"
	}

	if cfg.Credentials.RefreshLead == 0 {
		cfg.Credentials.RefreshLead = 60 * time.Second
	}
	if cfg.Credentials.OAuthTokenURL == "" {
		cfg.Credentials.OAuthTokenURL = "https://console.anthropic.com/v1/oauth/token"
	}
}
