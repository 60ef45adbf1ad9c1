package apikey

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

// PostgresStore persists API keys. key_id carries a unique index since it is
// the public lookup handle presented on every authenticated request.
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

const keyColumns = `id, tenant_id, name, key_id, secret_hash, status, created_at, updated_at`

func (s *PostgresStore) Create(ctx context.Context, key *models.APIKey) error {
	query := `INSERT INTO api_keys (` + keyColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := s.runner(ctx).ExecContext(ctx, query,
		key.ID, uuid.UUID(key.TenantID), key.Name, key.KeyID, key.SecretHash,
		string(key.Status), key.CreatedAt, key.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create api key: %w", err)
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, key *models.APIKey) error {
	query := `UPDATE api_keys SET name = $2, status = $3, updated_at = $4 WHERE id = $1`
	res, err := s.runner(ctx).ExecContext(ctx, query,
		key.ID, key.Name, string(key.Status), key.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update api key: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update api key rows affected: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) FindByTenantAndID(ctx context.Context, tenantID id.TenantID, keyUUID uuid.UUID) (*models.APIKey, error) {
	query := `SELECT ` + keyColumns + ` FROM api_keys WHERE id = $1 AND tenant_id = $2`
	row := s.runner(ctx).QueryRowContext(ctx, query, keyUUID, uuid.UUID(tenantID))
	key, err := scanKey(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find api key: %w", err)
	}
	return key, nil
}

func (s *PostgresStore) FindByKeyID(ctx context.Context, keyID string) (*models.APIKey, error) {
	query := `SELECT ` + keyColumns + ` FROM api_keys WHERE key_id = $1`
	row := s.runner(ctx).QueryRowContext(ctx, query, keyID)
	key, err := scanKey(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find api key by key id: %w", err)
	}
	return key, nil
}

func (s *PostgresStore) ListByTenant(ctx context.Context, tenantID id.TenantID) ([]*models.APIKey, error) {
	query := `SELECT ` + keyColumns + ` FROM api_keys WHERE tenant_id = $1 ORDER BY created_at`
	rows, err := s.runner(ctx).QueryContext(ctx, query, uuid.UUID(tenantID))
	if err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	defer rows.Close()

	var out []*models.APIKey
	for rows.Next() {
		key, err := scanKey(rows)
		if err != nil {
			return nil, fmt.Errorf("scan api key: %w", err)
		}
		out = append(out, key)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CountByTenant(ctx context.Context, tenantID id.TenantID) (int, error) {
	var count int
	err := s.runner(ctx).QueryRowContext(ctx,
		`SELECT count(*) FROM api_keys WHERE tenant_id = $1`, uuid.UUID(tenantID),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count api keys: %w", err)
	}
	return count, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanKey(row scanner) (*models.APIKey, error) {
	var (
		k        models.APIKey
		tenantID uuid.UUID
		status   string
	)
	if err := row.Scan(
		&k.ID, &tenantID, &k.Name, &k.KeyID, &k.SecretHash,
		&status, &k.CreatedAt, &k.UpdatedAt,
	); err != nil {
		return nil, err
	}
	k.TenantID = id.TenantID(tenantID)
	k.Status = models.KeyStatus(status)
	return &k, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
