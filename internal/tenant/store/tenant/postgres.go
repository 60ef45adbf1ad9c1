package tenant

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"certo/internal/tenant/models"
	id "certo/pkg/domain"
	"certo/pkg/platform/sentinel"
	txcontext "certo/pkg/platform/tx"
)

// PostgresStore persists tenants. A unique functional index on lower(name)
// backs CreateIfNameAvailable, so concurrent creates with the same name
// resolve to exactly one winner.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbRunner interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *PostgresStore) runner(ctx context.Context) dbRunner {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

const tenantColumns = `id, name, status, created_at, updated_at`

func (s *PostgresStore) CreateIfNameAvailable(ctx context.Context, tenant *models.Tenant) error {
	query := `INSERT INTO tenants (` + tenantColumns + `) VALUES ($1, $2, $3, $4, $5)`
	_, err := s.runner(ctx).ExecContext(ctx, query,
		uuid.UUID(tenant.ID), tenant.Name, string(tenant.Status),
		tenant.CreatedAt, tenant.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("create tenant: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, tenantID id.TenantID) (*models.Tenant, error) {
	query := `SELECT ` + tenantColumns + ` FROM tenants WHERE id = $1`
	row := s.runner(ctx).QueryRowContext(ctx, query, uuid.UUID(tenantID))
	tenant, err := scanTenant(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find tenant: %w", err)
	}
	return tenant, nil
}

func (s *PostgresStore) FindByName(ctx context.Context, name string) (*models.Tenant, error) {
	query := `SELECT ` + tenantColumns + ` FROM tenants WHERE lower(name) = lower($1)`
	row := s.runner(ctx).QueryRowContext(ctx, query, name)
	tenant, err := scanTenant(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find tenant by name: %w", err)
	}
	return tenant, nil
}

func (s *PostgresStore) Update(ctx context.Context, tenant *models.Tenant) error {
	query := `UPDATE tenants SET name = $2, status = $3, updated_at = $4 WHERE id = $1`
	res, err := s.runner(ctx).ExecContext(ctx, query,
		uuid.UUID(tenant.ID), tenant.Name, string(tenant.Status), tenant.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("update tenant: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update tenant rows affected: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	var count int
	err := s.runner(ctx).QueryRowContext(ctx, `SELECT count(*) FROM tenants`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count tenants: %w", err)
	}
	return count, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTenant(row scanner) (*models.Tenant, error) {
	var (
		t        models.Tenant
		tenantID uuid.UUID
		status   string
	)
	if err := row.Scan(&tenantID, &t.Name, &status, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	t.ID = id.TenantID(tenantID)
	t.Status = models.TenantStatus(status)
	return &t, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
