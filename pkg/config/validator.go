package config

import "fmt"

// validate checks a fully loaded and defaulted Config for the invariants
// the rest of the system depends on, returning every violation found
// (not just the first) so operators see the complete picture in one pass.
func validate(cfg *Config) error {
	var errs []error

	if cfg.StorageEnabled && cfg.DatabaseURL == "" {
		errs = append(errs, NewValidationError("database_url", fmt.Errorf("%w: required when storage_enabled", ErrMissingRequiredField)))
	}
	if cfg.CredentialsDir == "" {
		errs = append(errs, NewValidationError("credentials_dir", ErrMissingRequiredField))
	}
	if cfg.DashboardAPIKey == "" {
		errs = append(errs, NewValidationError("dashboard_api_key", ErrMissingRequiredField))
	}
	if cfg.Upstream.BaseURL == "" {
		errs = append(errs, NewValidationError("upstream.base_url", ErrMissingRequiredField))
	}
	if cfg.Analysis.Enabled {
		if cfg.Analysis.ModelName == "" {
			errs = append(errs, NewValidationError("analysis.ai_model_name", ErrMissingRequiredField))
		}
		if cfg.Analysis.MaxConcurrentJobs <= 0 {
			errs = append(errs, NewValidationError("analysis.ai_worker_max_concurrent_jobs", fmt.Errorf("%w: must be > 0", ErrInvalidValue)))
		}
		if cfg.Analysis.HeadMessages < 0 || cfg.Analysis.TailMessages < 0 {
			errs = append(errs, NewValidationError("analysis.ai_head_messages/ai_tail_messages", fmt.Errorf("%w: must be >= 0", ErrInvalidValue)))
		}
	}
	if cfg.Proxy.ServerTimeout <= cfg.Proxy.UpstreamTimeout {
		errs = append(errs, NewValidationError("proxy.proxy_server_timeout_ms", fmt.Errorf("%w: must exceed claude_api_timeout_ms so persistence completes before the socket is cut", ErrInvalidValue)))
	}
	if cfg.Pipeline.BatchSize <= 0 {
		errs = append(errs, NewValidationError("pipeline.batch_size", fmt.Errorf("%w: must be > 0", ErrInvalidValue)))
	}

	if len(errs) == 0 {
		return nil
	}

	joined := ErrValidationFailed
	for _, e := range errs {
		joined = fmt.Errorf("%w; %v", joined, e)
	}
	return joined
}
