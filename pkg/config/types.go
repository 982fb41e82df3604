package config

import "time"

// Config is the umbrella configuration object returned by Initialize() and
// used throughout the proxy. Durations are already normalized to
// time.Duration; the raw YAML shape (proxyYAMLConfig) uses millisecond
// integers, matching the configuration surface named in spec.md §6.
type Config struct {
	configDir string

	EnableClientAuth     bool
	CredentialsDir       string
	DatabaseURL          string
	DashboardAPIKey      string
	StorageEnabled       bool
	SlowQueryThreshold   time.Duration
	Listen               string

	Upstream    UpstreamConfig
	Analysis    AnalysisConfig
	Proxy       ProxyConfig
	Pipeline    PipelineConfig
	Credentials CredentialConfig
}

// UpstreamConfig describes the proxied LLM provider.
type UpstreamConfig struct {
	BaseURL            string
	APIKeyHeader       string
	OAuthBetaHeader    string
	OAuthBetaHeaderVal string
}

// AnalysisConfig groups §4.G knobs.
type AnalysisConfig struct {
	Enabled            bool
	PollInterval       time.Duration
	MaxConcurrentJobs  int
	MaxRetries         int
	Timeout            time.Duration
	MaxPromptTokens    int
	HeadMessages       int
	TailMessages       int
	StuckSweepInterval time.Duration
	StuckThreshold     time.Duration
	TokenizerModel     string
	ModelName          string
	APIKeyEnv          string
	BaseURL            string
}

// ProxyConfig groups §4.D timeouts.
type ProxyConfig struct {
	UpstreamTimeout time.Duration
	ServerTimeout   time.Duration
}

// PipelineConfig groups §4.E write-pipeline knobs.
type PipelineConfig struct {
	BatchSize       int
	FlushInterval   time.Duration
	QueueDepth      int
	EnqueueTimeout  time.Duration
	ShutdownTimeout time.Duration
	WriterCount     int
}

// CredentialConfig groups §4.A credential store knobs.
type CredentialConfig struct {
	RefreshLead   time.Duration
	OAuthTokenURL string
	OAuthClientID string
}

// ConfigDir returns the directory configuration was loaded from.
func (c *Config) ConfigDir() string {
	return c.configDir
}
