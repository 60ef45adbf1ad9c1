package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	id "certo/pkg/domain"
	"certo/pkg/platform/auditlog"
	txcontext "certo/pkg/platform/tx"
)

// Store persists trail events in PostgreSQL.
type Store struct {
	db *sql.DB
}

// New creates a new PostgreSQL trail store.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// Append writes one trail event row.
func (s *Store) Append(ctx context.Context, event auditlog.Event) error {
	query := `
		INSERT INTO trail_events
			(id, category, occurred_at, tenant_id, operator_id, subject, action, reason, request_id, client_ip, client)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	var operatorID any
	if !event.OperatorID.IsZero() {
		operatorID = uuid.UUID(event.OperatorID)
	}
	_, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.New(),
		string(event.Category),
		event.Timestamp,
		uuid.UUID(event.TenantID),
		operatorID,
		event.Subject,
		event.Action,
		event.Reason,
		event.RequestID,
		event.ClientIP,
		event.Client,
	)
	if err != nil {
		return fmt.Errorf("append trail event: %w", err)
	}
	return nil
}

// ListByTenant returns all trail events for one tenant, oldest first.
func (s *Store) ListByTenant(ctx context.Context, tenantID id.TenantID) ([]auditlog.Event, error) {
	query := `
		SELECT category, occurred_at, tenant_id, operator_id, subject, action, reason, request_id, client_ip, client
		FROM trail_events
		WHERE tenant_id = $1
		ORDER BY occurred_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query, uuid.UUID(tenantID))
	if err != nil {
		return nil, fmt.Errorf("list trail events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

// ListRecent returns the most recent events across tenants, oldest first.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]auditlog.Event, error) {
	query := `
		SELECT category, occurred_at, tenant_id, operator_id, subject, action, reason, request_id, client_ip, client
		FROM (
			SELECT * FROM trail_events ORDER BY occurred_at DESC LIMIT $1
		) recent
		ORDER BY occurred_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent trail events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]auditlog.Event, error) {
	var events []auditlog.Event
	for rows.Next() {
		var (
			e          auditlog.Event
			category   string
			tenantID   uuid.UUID
			operatorID uuid.NullUUID
		)
		if err := rows.Scan(&category, &e.Timestamp, &tenantID, &operatorID, &e.Subject, &e.Action, &e.Reason, &e.RequestID, &e.ClientIP, &e.Client); err != nil {
			return nil, fmt.Errorf("scan trail event: %w", err)
		}
		e.Category = auditlog.EventCategory(category)
		e.TenantID = id.TenantID(tenantID)
		if operatorID.Valid {
			e.OperatorID = id.OperatorID(operatorID.UUID)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
