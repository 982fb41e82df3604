// Package proxy implements the Proxy Handler: the RECEIVED → AUTHED →
// RESOLVED → DISPATCHED → {STREAMING|BUFFERED} → COMPLETED|FAILED state
// machine that fronts the upstream LLM provider for every tenant.
package proxy

import (
	"log/slog"
	"time"

	"github.com/tarsyio/llmproxy/pkg/credential"
	"github.com/tarsyio/llmproxy/pkg/linker"
	"github.com/tarsyio/llmproxy/pkg/masking"
	"github.com/tarsyio/llmproxy/pkg/storage"
	"github.com/tarsyio/llmproxy/pkg/upstream"
)

// Config groups the handler's tunables, translated from config.Config.
type Config struct {
	EnableClientAuth bool
	StorageEnabled   bool
	UpstreamTimeout  time.Duration
	ServerTimeout    time.Duration
}

// Handler implements the Proxy Handler state machine over its collaborators.
type Handler struct {
	cfg         Config
	credentials *credential.Store
	store       *storage.Store
	writePipe   *storage.WritePipeline
	linker      *linker.Linker
	upstream    *upstream.Client
	masker      *masking.Service
	log         *slog.Logger
}

// New constructs a Handler.
func New(cfg Config, creds *credential.Store, store *storage.Store, writePipe *storage.WritePipeline, lk *linker.Linker, up *upstream.Client, masker *masking.Service) *Handler {
	return &Handler{
		cfg:         cfg,
		credentials: creds,
		store:       store,
		writePipe:   writePipe,
		linker:      lk,
		upstream:    up,
		masker:      masker,
		log:         slog.With("component", "proxy_handler"),
	}
}

const maxBodyBytes = 10 << 20 // 10 MiB, well above any realistic message-completion request

func bearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) > len(prefix) && header[:len(prefix)] == prefix {
		return header[len(prefix):]
	}
	return ""
}
