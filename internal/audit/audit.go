// Package audit records significant security events -- login, refresh
// rotation, reuse detection, invite use, balance purchase -- as an
// append-only trail. Adapted from the teacher's DBLogger: synchronous,
// best-effort, and never blocks the caller's outcome on a logging failure.
package audit

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/routecore/platform/internal/storage"
)

type Event string

const (
	EventLoginSuccess   Event = "login.success"
	EventLoginFailed    Event = "login.failed"
	EventRefreshRotated Event = "refresh.rotated"
	EventReuseDetected  Event = "refresh.reuse_detected"
	EventInviteUsed     Event = "invite.used"
	EventBalancePurchase Event = "balance.purchase"
)

// Logger defines the contract for recording an audit event. Handlers and
// services depend on this interface, not on DBLogger directly, so tests
// can substitute a no-op.
type Logger interface {
	Log(ctx context.Context, event Event, companyID, actorID, targetID string, metadata map[string]any)
}

// DBLogger writes events to the audit_logs table through the handle given
// to NewDBLogger (the pool, in cmd/api), never through a request's tx, so
// an event is written outside the transaction of the operation it
// describes and stays even if that transaction rolls back.
type DBLogger struct {
	db     storage.DBTX
	logger *slog.Logger
}

func NewDBLogger(db storage.DBTX, logger *slog.Logger) *DBLogger {
	return &DBLogger{db: db, logger: logger}
}

func (l *DBLogger) Log(ctx context.Context, event Event, companyID, actorID, targetID string, metadata map[string]any) {
	metaJSON, err := json.Marshal(metadata)
	if err != nil {
		l.logger.Error("audit: marshal metadata failed", "event", event, "error", err)
		metaJSON = []byte("{}")
	}

	_, err = l.db.Exec(ctx, `
		INSERT INTO audit_logs (id, company_id, actor_id, target_id, event, metadata, created_at)
		VALUES (gen_random_uuid(), NULLIF($1,'')::uuid, NULLIF($2,'')::uuid, NULLIF($3,'')::uuid, $4, $5, now())`,
		companyID, actorID, targetID, string(event), metaJSON)
	if err != nil {
		// The audit trail is valuable but never load-bearing: a failed
		// insert is logged, not propagated, so it can't roll back the
		// operation it was describing.
		l.logger.Error("audit: insert failed", "event", event, "error", err)
	}
}

// NoopLogger discards every event. Used in tests and anywhere an audit
// sink hasn't been wired yet.
type NoopLogger struct{}

func (NoopLogger) Log(context.Context, Event, string, string, string, map[string]any) {}

var _ Logger = (*DBLogger)(nil)
var _ Logger = NoopLogger{}
