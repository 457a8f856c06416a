// Package push is the fire-and-forget notification collaborator. No
// delivery confirmation is awaited anywhere in the core.
package push

import (
	"context"
	"log/slog"
)

type Notifier interface {
	Send(ctx context.Context, text, targetUserID string, payload map[string]string)
}

// LogNotifier logs notifications instead of delivering them; the real
// transport lives outside this core.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n LogNotifier) Send(ctx context.Context, text, targetUserID string, payload map[string]string) {
	n.Logger.Info("push", "target", targetUserID, "text", text, "payload", payload)
}

// Noop discards notifications. Used by tests.
type Noop struct{}

func (Noop) Send(ctx context.Context, text, targetUserID string, payload map[string]string) {}
