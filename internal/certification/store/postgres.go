package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"certo/internal/certification/models"
	id "certo/pkg/domain"
	"certo/pkg/platform/sentinel"
	txcontext "certo/pkg/platform/tx"
)

// Postgres persists certifications. A unique index on audit_id enforces the
// 1:1 relation with audits; reconciliation relies on it via CreateIfAbsent.
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

const certColumns = `
	id, tenant_id, audit_id, audit_number,
	certificate_number, cert_num_int,
	client_name, iso_standard, scope, certification_body, lead_auditor,
	status, issue_date, expiry_date, original_registration_date,
	created_at, updated_at`

func (s *Postgres) Create(ctx context.Context, cert *models.Certification) error {
	query := `
		INSERT INTO certifications (` + certColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`
	_, err := s.runner(ctx).ExecContext(ctx, query, certArgs(cert)...)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create certification: %w", err)
	}
	return nil
}

// CreateIfAbsent inserts cert unless a record for its audit already exists.
// ON CONFLICT (audit_id) DO NOTHING makes the find-or-create race safe: the
// loser of a concurrent insert simply refetches the winner's row.
func (s *Postgres) CreateIfAbsent(ctx context.Context, cert *models.Certification) (*models.Certification, bool, error) {
	query := `
		INSERT INTO certifications (` + certColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		ON CONFLICT (audit_id) DO NOTHING
	`
	res, err := s.runner(ctx).ExecContext(ctx, query, certArgs(cert)...)
	if err != nil {
		if isUniqueViolation(err) {
			// certificate-number collision, not the audit_id index
			return nil, false, sentinel.ErrConflict
		}
		return nil, false, fmt.Errorf("create certification: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("create certification rows affected: %w", err)
	}
	if affected == 1 {
		return cert, true, nil
	}
	existing, err := s.FindByAuditID(ctx, cert.TenantID, cert.AuditID)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (s *Postgres) FindByID(ctx context.Context, tenantID id.TenantID, certID id.CertificationID) (*models.Certification, error) {
	query := `SELECT ` + certColumns + ` FROM certifications WHERE id = $1 AND tenant_id = $2`
	row := s.runner(ctx).QueryRowContext(ctx, query, uuid.UUID(certID), uuid.UUID(tenantID))
	cert, err := scanCertification(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find certification: %w", err)
	}
	return cert, nil
}

func (s *Postgres) FindByAuditID(ctx context.Context, tenantID id.TenantID, auditID id.AuditID) (*models.Certification, error) {
	query := `SELECT ` + certColumns + ` FROM certifications WHERE audit_id = $1 AND tenant_id = $2`
	row := s.runner(ctx).QueryRowContext(ctx, query, uuid.UUID(auditID), uuid.UUID(tenantID))
	cert, err := scanCertification(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find certification by audit: %w", err)
	}
	return cert, nil
}

func (s *Postgres) Update(ctx context.Context, cert *models.Certification) error {
	query := `
		UPDATE certifications SET
			certificate_number = $3, cert_num_int = $4,
			scope = $5, certification_body = $6, lead_auditor = $7,
			status = $8, issue_date = $9, expiry_date = $10, original_registration_date = $11,
			updated_at = $12
		WHERE id = $1 AND tenant_id = $2
	`
	res, err := s.runner(ctx).ExecContext(ctx, query,
		uuid.UUID(cert.ID), uuid.UUID(cert.TenantID),
		cert.CertificateNumber, cert.CertNumInt,
		cert.Scope, cert.CertificationBody, cert.LeadAuditor,
		string(cert.Status), nullTime(cert.IssueDate), nullTime(cert.ExpiryDate),
		nullTime(cert.OriginalRegistrationDate),
		cert.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("update certification: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update certification rows affected: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *Postgres) ListByTenant(ctx context.Context, tenantID id.TenantID) ([]*models.Certification, error) {
	query := `SELECT ` + certColumns + ` FROM certifications WHERE tenant_id = $1 ORDER BY certificate_number`
	return s.list(ctx, query, uuid.UUID(tenantID))
}

// ListIssued returns active certifications across all tenants, for the
// surveillance sweeper.
func (s *Postgres) ListIssued(ctx context.Context) ([]*models.Certification, error) {
	query := `SELECT ` + certColumns + ` FROM certifications WHERE status = 'active' ORDER BY certificate_number`
	return s.list(ctx, query)
}

func (s *Postgres) list(ctx context.Context, query string, args ...any) ([]*models.Certification, error) {
	rows, err := s.runner(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list certifications: %w", err)
	}
	defer rows.Close()

	var out []*models.Certification
	for rows.Next() {
		cert, err := scanCertification(rows)
		if err != nil {
			return nil, fmt.Errorf("scan certification: %w", err)
		}
		out = append(out, cert)
	}
	return out, rows.Err()
}

func certArgs(cert *models.Certification) []any {
	return []any{
		uuid.UUID(cert.ID), uuid.UUID(cert.TenantID), uuid.UUID(cert.AuditID), cert.AuditNumber,
		cert.CertificateNumber, cert.CertNumInt,
		cert.ClientName, cert.ISOStandard, cert.Scope, cert.CertificationBody, cert.LeadAuditor,
		string(cert.Status), nullTime(cert.IssueDate), nullTime(cert.ExpiryDate),
		nullTime(cert.OriginalRegistrationDate),
		cert.CreatedAt, cert.UpdatedAt,
	}
}

func scanCertification(row scanner) (*models.Certification, error) {
	var (
		c        models.Certification
		certID   uuid.UUID
		tenantID uuid.UUID
		auditID  uuid.UUID
		status   string

		issueDate, expiryDate, originalRegistration sql.NullTime
	)
	if err := row.Scan(
		&certID, &tenantID, &auditID, &c.AuditNumber,
		&c.CertificateNumber, &c.CertNumInt,
		&c.ClientName, &c.ISOStandard, &c.Scope, &c.CertificationBody, &c.LeadAuditor,
		&status, &issueDate, &expiryDate, &originalRegistration,
		&c.CreatedAt, &c.UpdatedAt,
	); err != nil {
		return nil, err
	}
	c.ID = id.CertificationID(certID)
	c.TenantID = id.TenantID(tenantID)
	c.AuditID = id.AuditID(auditID)
	c.Status = models.CertStatus(status)
	c.IssueDate = timeOf(issueDate)
	c.ExpiryDate = timeOf(expiryDate)
	c.OriginalRegistrationDate = timeOf(originalRegistration)
	return &c, nil
}

type scanner interface {
	Scan(dest ...any) error
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
