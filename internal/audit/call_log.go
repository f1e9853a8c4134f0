package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/aviation-connect/adapters/pkg/redact"
)

// DBExecutor is the subset of pgxpool.Pool used by the writer.
type DBExecutor interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// CallRecord describes one dispatched vendor operation.
type CallRecord struct {
	ID              uuid.UUID
	Account         string
	Resource        string
	Operation       string
	Method          string
	Endpoint        string
	Outcome         string // "ok" or "error"
	Reauthenticated bool
	Duration        time.Duration
	Error           string
	At              time.Time
}

const schemaDDL = `
	CREATE SCHEMA IF NOT EXISTS audit;
	CREATE TABLE IF NOT EXISTS audit.t_vendor_call (
		s_id_call        UUID PRIMARY KEY,
		s_source         TEXT        NOT NULL,
		s_account        TEXT        NOT NULL,
		s_resource       TEXT        NOT NULL,
		s_operation      TEXT        NOT NULL,
		s_method         TEXT        NOT NULL,
		s_endpoint       TEXT        NOT NULL,
		s_outcome        TEXT        NOT NULL,
		b_reauthenticated BOOLEAN    NOT NULL DEFAULT FALSE,
		n_duration_ms    BIGINT      NOT NULL,
		s_error          TEXT,
		dt_called        TIMESTAMPTZ NOT NULL
	);
`

const insertCall = `
	INSERT INTO audit.t_vendor_call (
		s_id_call,
		s_source,
		s_account,
		s_resource,
		s_operation,
		s_method,
		s_endpoint,
		s_outcome,
		b_reauthenticated,
		n_duration_ms,
		s_error,
		dt_called
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	ON CONFLICT (s_id_call) DO NOTHING;
`

// CallLogWriter appends vendor call records to audit.t_vendor_call.
// A nil db turns every method into a no-op.
type CallLogWriter struct {
	db     DBExecutor
	logger *zap.Logger
	source string
}

// NewCallLogWriter constructs a writer. source identifies the adapter
// (e.g. "jetnet-adapter").
func NewCallLogWriter(db DBExecutor, logger *zap.Logger, source string) *CallLogWriter {
	return &CallLogWriter{
		db:     db,
		logger: logger,
		source: source,
	}
}

// EnsureSchema creates the audit table when missing.
func (w *CallLogWriter) EnsureSchema(ctx context.Context) error {
	if w.db == nil {
		return nil
	}
	_, err := w.db.Exec(ctx, schemaDDL)
	return err
}

// Record inserts rec. Error text is sanitized before it is stored.
func (w *CallLogWriter) Record(ctx context.Context, rec CallRecord) error {
	if w.db == nil {
		return nil
	}
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.At.IsZero() {
		rec.At = time.Now().UTC()
	}

	var errText *string
	if rec.Error != "" {
		s := redact.Sanitize(rec.Error)
		errText = &s
	}

	_, err := w.db.Exec(ctx, insertCall,
		rec.ID,
		w.source,
		rec.Account,
		rec.Resource,
		rec.Operation,
		rec.Method,
		rec.Endpoint,
		rec.Outcome,
		rec.Reauthenticated,
		rec.Duration.Milliseconds(),
		errText,
		rec.At,
	)
	if err != nil {
		w.logger.Error("audit.call_record_failed",
			zap.String("account", rec.Account),
			zap.String("resource", rec.Resource),
			zap.String("operation", rec.Operation),
			zap.Error(err),
		)
		return err
	}

	w.logger.Debug("audit.call_recorded",
		zap.String("account", rec.Account),
		zap.String("resource", rec.Resource),
		zap.String("operation", rec.Operation),
		zap.String("outcome", rec.Outcome),
	)
	return nil
}
