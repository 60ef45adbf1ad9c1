package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"certo/internal/contract/models"
	id "certo/pkg/domain"
	"certo/pkg/platform/sentinel"
	txcontext "certo/pkg/platform/tx"
)

// Postgres persists contracts.
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

const contractColumns = `
	id, tenant_id, contract_number, client_name, iso_standard,
	status, start_date, end_date, created_at, updated_at`

func (s *Postgres) Create(ctx context.Context, contract *models.Contract) error {
	query := `
		INSERT INTO contracts (` + contractColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := s.runner(ctx).ExecContext(ctx, query,
		uuid.UUID(contract.ID), uuid.UUID(contract.TenantID),
		contract.ContractNumber, contract.ClientName, contract.ISOStandard,
		string(contract.Status), nullTime(contract.StartDate), nullTime(contract.EndDate),
		contract.CreatedAt, contract.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create contract: %w", err)
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, tenantID id.TenantID, contractID id.ContractID) (*models.Contract, error) {
	query := `SELECT ` + contractColumns + ` FROM contracts WHERE id = $1 AND tenant_id = $2`
	row := s.runner(ctx).QueryRowContext(ctx, query, uuid.UUID(contractID), uuid.UUID(tenantID))
	contract, err := scanContract(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find contract: %w", err)
	}
	return contract, nil
}

func (s *Postgres) Update(ctx context.Context, contract *models.Contract) error {
	query := `
		UPDATE contracts SET
			status = $3, start_date = $4, end_date = $5, updated_at = $6
		WHERE id = $1 AND tenant_id = $2
	`
	res, err := s.runner(ctx).ExecContext(ctx, query,
		uuid.UUID(contract.ID), uuid.UUID(contract.TenantID),
		string(contract.Status), nullTime(contract.StartDate), nullTime(contract.EndDate),
		contract.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update contract: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update contract rows affected: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *Postgres) ListByTenant(ctx context.Context, tenantID id.TenantID) ([]*models.Contract, error) {
	query := `SELECT ` + contractColumns + ` FROM contracts WHERE tenant_id = $1 ORDER BY contract_number`
	rows, err := s.runner(ctx).QueryContext(ctx, query, uuid.UUID(tenantID))
	if err != nil {
		return nil, fmt.Errorf("list contracts: %w", err)
	}
	defer rows.Close()

	var out []*models.Contract
	for rows.Next() {
		contract, err := scanContract(rows)
		if err != nil {
			return nil, fmt.Errorf("scan contract: %w", err)
		}
		out = append(out, contract)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanContract(row scanner) (*models.Contract, error) {
	var (
		c          models.Contract
		contractID uuid.UUID
		tenantID   uuid.UUID
		status     string

		startDate, endDate sql.NullTime
	)
	if err := row.Scan(
		&contractID, &tenantID, &c.ContractNumber, &c.ClientName, &c.ISOStandard,
		&status, &startDate, &endDate, &c.CreatedAt, &c.UpdatedAt,
	); err != nil {
		return nil, err
	}
	c.ID = id.ContractID(contractID)
	c.TenantID = id.TenantID(tenantID)
	c.Status = models.ContractStatus(status)
	if startDate.Valid {
		c.StartDate = startDate.Time
	}
	if endDate.Valid {
		c.EndDate = endDate.Time
	}
	return &c, nil
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}
