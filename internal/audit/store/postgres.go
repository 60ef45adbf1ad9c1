package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"certo/internal/audit/models"
	id "certo/pkg/domain"
	"certo/pkg/platform/sentinel"
	txcontext "certo/pkg/platform/tx"
)

// Postgres persists audits. Checklist responses live in a JSONB column:
// they are always read and written as one ordered unit with the aggregate.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

type dbRunner interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *Postgres) runner(ctx context.Context) dbRunner {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

const auditColumns = `
	id, tenant_id, audit_number, contract_id, client_name, iso_standard,
	audit_type, scope, lead_auditor,
	planned_start, planned_end, actual_start, actual_end,
	status, responses,
	certificate_number, certificate_issue_date, certificate_expiry_date,
	certificate_original_registration_date,
	created_at, updated_at`

func (s *Postgres) Create(ctx context.Context, audit *models.Audit) error {
	responses, err := json.Marshal(audit.Responses)
	if err != nil {
		return fmt.Errorf("marshal responses: %w", err)
	}
	query := `
		INSERT INTO audits (` + auditColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
	`
	_, err = s.runner(ctx).ExecContext(ctx, query,
		uuid.UUID(audit.ID), uuid.UUID(audit.TenantID), audit.AuditNumber,
		nullUUID(uuid.UUID(audit.ContractID)), audit.ClientName, audit.ISOStandard,
		string(audit.Type), audit.Scope, audit.LeadAuditor,
		nullTime(audit.PlannedStart), nullTime(audit.PlannedEnd),
		nullTime(audit.ActualStart), nullTime(audit.ActualEnd),
		string(audit.Status), responses,
		audit.CertificateNumber, nullTime(audit.CertificateIssueDate),
		nullTime(audit.CertificateExpiryDate), nullTime(audit.CertificateOriginalRegistration),
		audit.CreatedAt, audit.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create audit: %w", err)
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, tenantID id.TenantID, auditID id.AuditID) (*models.Audit, error) {
	query := `SELECT ` + auditColumns + ` FROM audits WHERE id = $1 AND tenant_id = $2`
	row := s.runner(ctx).QueryRowContext(ctx, query, uuid.UUID(auditID), uuid.UUID(tenantID))
	audit, err := scanAudit(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find audit: %w", err)
	}
	return audit, nil
}

func (s *Postgres) Update(ctx context.Context, audit *models.Audit) error {
	responses, err := json.Marshal(audit.Responses)
	if err != nil {
		return fmt.Errorf("marshal responses: %w", err)
	}
	query := `
		UPDATE audits SET
			scope = $3, lead_auditor = $4,
			planned_start = $5, planned_end = $6, actual_start = $7, actual_end = $8,
			status = $9, responses = $10,
			certificate_number = $11, certificate_issue_date = $12,
			certificate_expiry_date = $13, certificate_original_registration_date = $14,
			updated_at = $15
		WHERE id = $1 AND tenant_id = $2
	`
	res, err := s.runner(ctx).ExecContext(ctx, query,
		uuid.UUID(audit.ID), uuid.UUID(audit.TenantID),
		audit.Scope, audit.LeadAuditor,
		nullTime(audit.PlannedStart), nullTime(audit.PlannedEnd),
		nullTime(audit.ActualStart), nullTime(audit.ActualEnd),
		string(audit.Status), responses,
		audit.CertificateNumber, nullTime(audit.CertificateIssueDate),
		nullTime(audit.CertificateExpiryDate), nullTime(audit.CertificateOriginalRegistration),
		audit.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update audit: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update audit rows affected: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *Postgres) ListByTenant(ctx context.Context, tenantID id.TenantID) ([]*models.Audit, error) {
	query := `SELECT ` + auditColumns + ` FROM audits WHERE tenant_id = $1 ORDER BY audit_number`
	rows, err := s.runner(ctx).QueryContext(ctx, query, uuid.UUID(tenantID))
	if err != nil {
		return nil, fmt.Errorf("list audits: %w", err)
	}
	defer rows.Close()

	var out []*models.Audit
	for rows.Next() {
		audit, err := scanAudit(rows)
		if err != nil {
			return nil, fmt.Errorf("scan audit: %w", err)
		}
		out = append(out, audit)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAudit(row scanner) (*models.Audit, error) {
	var (
		a          models.Audit
		auditID    uuid.UUID
		tenantID   uuid.UUID
		contractID uuid.NullUUID
		auditType  string
		status     string
		responses  []byte

		plannedStart, plannedEnd, actualStart, actualEnd sql.NullTime
		issueDate, expiryDate, originalRegistration      sql.NullTime
	)
	if err := row.Scan(
		&auditID, &tenantID, &a.AuditNumber, &contractID, &a.ClientName, &a.ISOStandard,
		&auditType, &a.Scope, &a.LeadAuditor,
		&plannedStart, &plannedEnd, &actualStart, &actualEnd,
		&status, &responses,
		&a.CertificateNumber, &issueDate, &expiryDate, &originalRegistration,
		&a.CreatedAt, &a.UpdatedAt,
	); err != nil {
		return nil, err
	}
	a.ID = id.AuditID(auditID)
	a.TenantID = id.TenantID(tenantID)
	if contractID.Valid {
		a.ContractID = id.ContractID(contractID.UUID)
	}
	a.Type = models.AuditType(auditType)
	a.Status = models.AuditStatus(status)
	if len(responses) > 0 {
		if err := json.Unmarshal(responses, &a.Responses); err != nil {
			return nil, fmt.Errorf("unmarshal responses: %w", err)
		}
	}
	a.PlannedStart = timeOf(plannedStart)
	a.PlannedEnd = timeOf(plannedEnd)
	a.ActualStart = timeOf(actualStart)
	a.ActualEnd = timeOf(actualEnd)
	a.CertificateIssueDate = timeOf(issueDate)
	a.CertificateExpiryDate = timeOf(expiryDate)
	a.CertificateOriginalRegistration = timeOf(originalRegistration)
	return &a, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

func timeOf(nt sql.NullTime) time.Time {
	if nt.Valid {
		return nt.Time
	}
	return time.Time{}
}

func nullUUID(u uuid.UUID) uuid.NullUUID {
	return uuid.NullUUID{UUID: u, Valid: u != uuid.Nil}
}
