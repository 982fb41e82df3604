// Command proxy runs the multi-tenant LLM proxy: it fronts the upstream
// LLM provider for every configured tenant, links conversation lineage,
// persists requests/chunks/analyses durably, and serves the dashboard's
// Read API.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/tarsyio/llmproxy/pkg/analysis"
	"github.com/tarsyio/llmproxy/pkg/analysisllm"
	"github.com/tarsyio/llmproxy/pkg/api"
	"github.com/tarsyio/llmproxy/pkg/config"
	"github.com/tarsyio/llmproxy/pkg/credential"
	"github.com/tarsyio/llmproxy/pkg/linker"
	"github.com/tarsyio/llmproxy/pkg/logging"
	"github.com/tarsyio/llmproxy/pkg/masking"
	"github.com/tarsyio/llmproxy/pkg/proxy"
	"github.com/tarsyio/llmproxy/pkg/storage"
	"github.com/tarsyio/llmproxy/pkg/tokenizer"
	"github.com/tarsyio/llmproxy/pkg/tokenusage"
	"github.com/tarsyio/llmproxy/pkg/upstream"
	"github.com/tarsyio/llmproxy/pkg/version"
)

// Exit codes per spec.md §6: 0 clean shutdown, 1 startup misconfiguration,
// 2 unrecoverable runtime failure during shutdown drain.
const (
	exitOK               = 0
	exitMisconfiguration = 1
	exitShutdownFailure  = 2
)

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func main() {
	os.Exit(run())
}

func run() int {
	configDir := flag.String("config-dir", getEnv("CONFIG_DIR", "./deploy/config"), "path to configuration directory")
	logFormat := flag.String("log-format", getEnv("LOG_FORMAT", "json"), "log format: json or text")
	flag.Parse()

	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		log.Printf("no .env file at %s, continuing with existing environment", envPath)
	}

	logger := logging.Init(logging.Options{
		Format: logging.Format(*logFormat),
		Level:  slog.LevelInfo,
	})
	logger.Info("starting proxy", "version", version.Full(), "config_dir", *configDir)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Initialize(ctx, *configDir)
	if err != nil {
		logger.Error("failed to initialize configuration", "error", err)
		return exitMisconfiguration
	}

	masker := masking.New(masking.NewHeaderMasker())

	creds, err := credential.New(credential.Options{
		Dir:           cfg.CredentialsDir,
		RefreshLead:   cfg.Credentials.RefreshLead,
		OAuthTokenURL: cfg.Credentials.OAuthTokenURL,
		OAuthClientID: cfg.Credentials.OAuthClientID,
		Masker:        masker,
	})
	if err != nil {
		logger.Error("failed to initialize credential store", "error", err)
		return exitMisconfiguration
	}
	if err := creds.Start(ctx); err != nil {
		logger.Error("failed to start credential file watcher", "error", err)
		return exitMisconfiguration
	}
	defer creds.Stop()

	var store *storage.Store
	var writePipe *storage.WritePipeline
	var lk *linker.Linker
	if cfg.StorageEnabled {
		store, err = storage.Open(ctx, storage.PoolConfig{
			DSN:                cfg.DatabaseURL,
			SlowQueryThreshold: cfg.SlowQueryThreshold,
		})
		if err != nil {
			logger.Error("failed to open storage", "error", err)
			return exitMisconfiguration
		}
		defer store.Close()

		writePipe = storage.NewWritePipeline(store, storage.PipelineConfig(cfg.Pipeline))
		writePipe.Start(ctx)

		lk = linker.New(store)
	}

	upstreamClient := upstream.New(upstream.Config{
		BaseURL:            cfg.Upstream.BaseURL,
		APIKeyHeader:       cfg.Upstream.APIKeyHeader,
		OAuthBetaHeader:    cfg.Upstream.OAuthBetaHeader,
		OAuthBetaHeaderVal: cfg.Upstream.OAuthBetaHeaderVal,
		Timeout:            cfg.Proxy.UpstreamTimeout,
	})

	proxyHandler := proxy.New(proxy.Config{
		EnableClientAuth: cfg.EnableClientAuth,
		StorageEnabled:   cfg.StorageEnabled,
		UpstreamTimeout:  cfg.Proxy.UpstreamTimeout,
		ServerTimeout:    cfg.Proxy.ServerTimeout,
	}, creds, store, writePipe, lk, upstreamClient, masker)

	tokenAccountant := tokenusage.New(store)

	server := api.NewServer(cfg, store, tokenAccountant, proxyHandler)

	var analysisPool *analysis.Pool
	if cfg.Analysis.Enabled && cfg.StorageEnabled {
		counter, err := tokenizer.New(cfg.Analysis.TokenizerModel)
		if err != nil {
			logger.Error("failed to initialize tokenizer", "error", err)
			return exitMisconfiguration
		}

		llmClient, err := analysisllm.New(analysisllm.Options{
			APIKey:  os.Getenv(cfg.Analysis.APIKeyEnv),
			BaseURL: cfg.Analysis.BaseURL,
			Model:   cfg.Analysis.ModelName,
		})
		if err != nil {
			logger.Error("failed to initialize analysis model client", "error", err)
			return exitMisconfiguration
		}

		analysisPool = analysis.NewPool(store, llmClient, counter, analysis.Config{
			MaxConcurrentJobs:  cfg.Analysis.MaxConcurrentJobs,
			MaxRetries:         cfg.Analysis.MaxRetries,
			Timeout:            cfg.Analysis.Timeout,
			MaxPromptTokens:    cfg.Analysis.MaxPromptTokens,
			HeadMessages:       cfg.Analysis.HeadMessages,
			TailMessages:       cfg.Analysis.TailMessages,
			StuckSweepInterval: cfg.Analysis.StuckSweepInterval,
			StuckThreshold:     cfg.Analysis.StuckThreshold,
			PollInterval:       cfg.Analysis.PollInterval,
		})
		analysisPool.Start(ctx)
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", cfg.Listen)
		if err := server.Start(cfg.Listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received, draining")
	case err := <-errCh:
		logger.Error("http server failed", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("error shutting down http server", "error", err)
		return exitShutdownFailure
	}

	if analysisPool != nil {
		analysisPool.Stop()
	}

	if writePipe != nil {
		if err := writePipe.Stop(); err != nil {
			logger.Error("error flushing write pipeline", "error", err)
			return exitShutdownFailure
		}
	}

	logger.Info("shutdown complete")
	return exitOK
}
