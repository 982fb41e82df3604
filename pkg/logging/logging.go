// Package logging configures the process-wide slog handler and provides
// small helpers for attaching request/session scoped attributes.
package logging

import (
	"log/slog"
	"os"
)

// Format selects the slog handler shape.
type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

// Options configure the root logger.
type Options struct {
	Format Format
	Level  slog.Level
}

// Init installs the process-wide default logger and returns it.
func Init(opts Options) *slog.Logger {
	var handler slog.Handler
	hopts := &slog.HandlerOptions{Level: opts.Level}

	switch opts.Format {
	case FormatText:
		handler = slog.NewTextHandler(os.Stdout, hopts)
	default:
		handler = slog.NewJSONHandler(os.Stdout, hopts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// ForRequest returns a logger scoped to a single inbound request.
func ForRequest(requestID, tenant string) *slog.Logger {
	return slog.With("request_id", requestID, "tenant", tenant)
}

// ForSession returns a logger scoped to a conversation/branch pair.
func ForSession(conversationID, branchID string) *slog.Logger {
	return slog.With("conversation_id", conversationID, "branch_id", branchID)
}
