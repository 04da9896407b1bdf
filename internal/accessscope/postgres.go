package accessscope

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// pgStore implements Store backed by PostgreSQL.
type pgStore struct {
	dbPool *pgxpool.Pool
	log    *zap.SugaredLogger
}

// NewPostgresStore constructs a PostgreSQL-backed linkage store.
func NewPostgresStore(dbPool *pgxpool.Pool, log *zap.SugaredLogger) Store {
	return &pgStore{dbPool: dbPool, log: log}
}

// EnsureSchema creates the linkage tables if they do not already exist.
// Safe to call repeatedly (idempotent).
func EnsureSchema(ctx context.Context, dbPool *pgxpool.Pool) error {
	_, err := dbPool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS app_users (
  tenant_id text NOT NULL,
  user_id text NOT NULL,
  role text NOT NULL DEFAULT '',
  rep_code int,
  active boolean NOT NULL DEFAULT true,
  created_at timestamptz NOT NULL DEFAULT NOW(),
  PRIMARY KEY (tenant_id, user_id)
);
CREATE TABLE IF NOT EXISTS sales_reps (
  tenant_id text NOT NULL,
  rep_code int NOT NULL,
  name text,
  manager_code int,
  active boolean NOT NULL DEFAULT true,
  PRIMARY KEY (tenant_id, rep_code)
);
CREATE INDEX IF NOT EXISTS sales_reps_manager_idx ON sales_reps(tenant_id, manager_code) WHERE active;
`)
	return err
}

func (p *pgStore) GetUserLink(ctx context.Context, tenantID, userID string) (UserLink, error) {
	row := p.dbPool.QueryRow(ctx,
		`SELECT role, rep_code FROM app_users WHERE tenant_id=$1 AND user_id=$2 AND active`,
		tenantID, userID)
	var link UserLink
	var role string
	if err := row.Scan(&role, &link.RepCode); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return UserLink{}, &UserNotFoundError{UserID: userID, TenantID: tenantID}
		}
		return UserLink{}, err
	}
	link.Role = Role(role)
	return link, nil
}

func (p *pgStore) ListDirectReports(ctx context.Context, tenantID string, managerCode int) ([]int, error) {
	rows, err := p.dbPool.Query(ctx,
		`SELECT rep_code FROM sales_reps WHERE tenant_id=$1 AND manager_code=$2 AND active ORDER BY rep_code`,
		tenantID, managerCode)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var codes []int
	for rows.Next() {
		var c int
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		codes = append(codes, c)
	}
	return codes, rows.Err()
}
