package audit

import (
	"context"
	"fmt"

	"github.com/hostbridge/hostbridge/internal/store"
)

// Logger writes audit entries with parameter redaction, then publishes
// them to the bus. It is the only writer to the Audit Store.
type Logger struct {
	store store.AuditStore
	bus   *Bus
}

// NewLogger creates an audit Logger. bus is optional (nil-safe).
func NewLogger(s store.AuditStore, bus *Bus) *Logger {
	return &Logger{store: s, bus: bus}
}

// Record redacts obviously-sensitive parameter keys and inserts the entry.
// request_params_template is recorded in its pre-resolution form (secret
// templates, not resolved values) per the dispatch engine's ordering
// guarantee, so this redaction is defense-in-depth, not the primary
// mechanism that keeps secrets out of the log.
func (l *Logger) Record(ctx context.Context, e *store.AuditEntry) error {
	if len(e.RequestParamsTemplate) > 0 {
		e.RequestParamsTemplate = Redact(e.RequestParamsTemplate)
	}
	if err := l.store.InsertAuditEntry(ctx, e); err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	if l.bus != nil {
		l.bus.Publish(e)
	}
	return nil
}
