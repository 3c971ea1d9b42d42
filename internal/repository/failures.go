package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// FailureEvent is one journaled non-fatal extraction failure.
type FailureEvent struct {
	DocumentID string
	TenantID   string
	EventType  string // constants.FailureEventOCR
	Message    string
	Details    map[string]any
	Timestamp  time.Time
}

// FailureLogRepository is the append-only failure journal. This core never
// updates or deletes rows.
type FailureLogRepository interface {
	Append(ctx context.Context, ev FailureEvent) error
	ListByDocument(ctx context.Context, documentID string) ([]FailureEvent, error)
}

type failureLogRepo struct {
	db  *sql.DB
	log *slog.Logger
}

func NewFailureLogRepository(db *sql.DB, logger *slog.Logger) FailureLogRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &failureLogRepo{db: db, log: logger}
}

func (r *failureLogRepo) Append(ctx context.Context, ev FailureEvent) error {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	details := []byte("{}")
	if ev.Details != nil {
		if b, err := json.Marshal(ev.Details); err == nil {
			details = b
		}
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO document_failures (id, document_id, tenant_id, event_type, message, details, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		uuid.New().String(), ev.DocumentID, ev.TenantID, ev.EventType, ev.Message, string(details), ev.Timestamp,
	)
	if err != nil {
		r.log.Error("document_failure append failed", "document_id", ev.DocumentID, "error", err)
		return err
	}
	r.log.Debug("document_failure journaled",
		"document_id", ev.DocumentID, "event_type", ev.EventType, "message", ev.Message)
	return nil
}

func (r *failureLogRepo) ListByDocument(ctx context.Context, documentID string) ([]FailureEvent, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT document_id, tenant_id, event_type, message, details, created_at
		 FROM document_failures WHERE document_id = $1 ORDER BY created_at`,
		documentID,
	)
	if err != nil {
		r.log.Error("document_failure list failed", "document_id", documentID, "error", err)
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	var out []FailureEvent
	for rows.Next() {
		var ev FailureEvent
		var details string
		if err := rows.Scan(&ev.DocumentID, &ev.TenantID, &ev.EventType, &ev.Message, &details, &ev.Timestamp); err != nil {
			return nil, err
		}
		if details != "" {
			_ = json.Unmarshal([]byte(details), &ev.Details)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}
