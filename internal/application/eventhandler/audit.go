// Package eventhandler contains domain event subscribers.
package eventhandler

import (
	"context"
	"log/slog"

	"github.com/equilibrio-app/equilibrio-engine/internal/domain/shared"
)

// ═══════════════════════════════════════════════════════════════════════════
// AUDIT HANDLER
// Subscribes to every progression event and writes it to the structured log.
// The engine owns no notification channel; downstream surfaces (push, mail)
// subscribe to the same bus and consume the same payloads.
// ═══════════════════════════════════════════════════════════════════════════

// AuditHandler logs every published event.
type AuditHandler struct {
	logger *slog.Logger
}

// NewAuditHandler creates a new AuditHandler.
func NewAuditHandler(logger *slog.Logger) *AuditHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditHandler{logger: logger}
}

// Name implements shared.EventHandler.
func (h *AuditHandler) Name() string {
	return "audit"
}

// Handle implements shared.EventHandler.
func (h *AuditHandler) Handle(_ context.Context, event shared.Event) error {
	h.logger.Info("progression event",
		"event_type", event.EventType(),
		"aggregate_id", event.AggregateID(),
		"occurred_at", event.OccurredAt(),
		"payload", event.Payload(),
	)
	return nil
}
