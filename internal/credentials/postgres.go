package credentials

import (
	"context"
	"errors"
	"os"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// pgResolver implements Resolver backed by PostgreSQL.
type pgResolver struct {
	dbPool *pgxpool.Pool
	log    *zap.SugaredLogger
}

// NewPostgresResolver constructs a PostgreSQL-backed contract resolver.
func NewPostgresResolver(dbPool *pgxpool.Pool, log *zap.SugaredLogger) Resolver {
	return &pgResolver{dbPool: dbPool, log: log}
}

// EnsureSchema creates the contract table if it does not already exist.
// Safe to call repeatedly (idempotent).
func EnsureSchema(ctx context.Context, dbPool *pgxpool.Pool) error {
	_, err := dbPool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS tenant_contracts (
  tenant_id text PRIMARY KEY,
  auth_type text NOT NULL,
  base_url text NOT NULL,
  legacy_token text,
  app_key text,
  username text,
  password text,
  client_id text,
  client_secret text,
  x_token text,
  active boolean NOT NULL DEFAULT true,
  created_at timestamptz NOT NULL DEFAULT NOW(),
  updated_at timestamptz NOT NULL DEFAULT NOW()
);
`)
	return err
}

func (p *pgResolver) Resolve(ctx context.Context, tenantID string) (TenantCredential, error) {
	row := p.dbPool.QueryRow(ctx, `
SELECT tenant_id, auth_type, base_url,
       COALESCE(legacy_token,''), COALESCE(app_key,''), COALESCE(username,''), COALESCE(password,''),
       COALESCE(client_id,''), COALESCE(client_secret,''), COALESCE(x_token,'')
FROM tenant_contracts WHERE tenant_id=$1 AND active`, tenantID)
	var rec contractRecord
	if err := row.Scan(&rec.TenantID, &rec.AuthType, &rec.BaseURL,
		&rec.LegacyToken, &rec.AppKey, &rec.Username, &rec.Password,
		&rec.ClientID, &rec.ClientSecret, &rec.XToken); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return TenantCredential{}, &NotConfiguredError{TenantID: tenantID}
		}
		return TenantCredential{}, err
	}
	return rec.credential()
}

// seedEntry mirrors one YAML document entry in TENANT_SEED_FILE.
type seedEntry struct {
	TenantID     string `yaml:"tenant_id"`
	AuthType     string `yaml:"auth_type"`
	BaseURL      string `yaml:"base_url"`
	LegacyToken  string `yaml:"legacy_token"`
	AppKey       string `yaml:"app_key"`
	Username     string `yaml:"username"`
	Password     string `yaml:"password"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	XToken       string `yaml:"x_token"`
}

// SeedFromFile ingests initial tenant contracts from a YAML file (dev bring-up).
func SeedFromFile(ctx context.Context, dbPool *pgxpool.Pool, path string) error {
	if path == "" {
		return nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var entries []seedEntry
	if err := yaml.Unmarshal(raw, &entries); err != nil {
		return err
	}
	return upsertSeed(ctx, dbPool, entries)
}

func upsertSeed(ctx context.Context, dbPool *pgxpool.Pool, entries []seedEntry) error {
	for _, e := range entries {
		_, err := dbPool.Exec(ctx, `
INSERT INTO tenant_contracts(tenant_id, auth_type, base_url, legacy_token, app_key, username, password, client_id, client_secret, x_token)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
ON CONFLICT (tenant_id) DO UPDATE SET
  auth_type=EXCLUDED.auth_type, base_url=EXCLUDED.base_url,
  legacy_token=EXCLUDED.legacy_token, app_key=EXCLUDED.app_key,
  username=EXCLUDED.username, password=EXCLUDED.password,
  client_id=EXCLUDED.client_id, client_secret=EXCLUDED.client_secret,
  x_token=EXCLUDED.x_token, updated_at=NOW()`,
			e.TenantID, e.AuthType, e.BaseURL, e.LegacyToken, e.AppKey, e.Username, e.Password, e.ClientID, e.ClientSecret, e.XToken)
		if err != nil {
			return err
		}
	}
	return nil
}
