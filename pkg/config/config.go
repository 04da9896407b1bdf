// pkg/config/config.go
package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env      string
	HTTPAddr string

	// OIDC / JWT for dashboard session tokens (identity middleware)
	Issuer   string
	Audience string
	JWKSURL  string

	// ERP integration knobs
	TokenLifetime  time.Duration // bearer token validity window observed on the ERP
	ERPTimeout     time.Duration // per-call HTTP timeout against the ERP
	ERPBatchSize   int           // max correlation keys per bulk query call
	ContractTTL    time.Duration // short read-cache for tenant contracts (0 = off)
	TenantSeedFile string        // optional YAML seed of tenant contracts (dev)

	// Redis & Postgres
	RedisURL    string
	DatabaseURL string
}

func Load() Config {
	_ = godotenv.Load()
	cfg := Config{
		Env:            env("VENDAGATE_ENV", "dev"),
		HTTPAddr:       env("VENDAGATE_HTTP_ADDR", ":8080"),
		Issuer:         env("OIDC_ISSUER", ""),
		Audience:       env("OIDC_AUDIENCE", "vendagate"),
		JWKSURL:        env("JWKS_URL", ""),
		TokenLifetime:  envDur("ERP_TOKEN_TTL_MIN", 20) * time.Minute,
		ERPTimeout:     envDur("ERP_HTTP_TIMEOUT_SEC", 10) * time.Second,
		ERPBatchSize:   envInt("ERP_BATCH_SIZE", 500),
		ContractTTL:    envDur("CONTRACT_CACHE_TTL_SEC", 120) * time.Second,
		TenantSeedFile: env("TENANT_SEED_FILE", ""),
		RedisURL:       env("REDIS_URL", ""),
		DatabaseURL:    env("DATABASE_URL", ""),
	}
	if cfg.DatabaseURL == "" {
		log.Println("[WARN] DATABASE_URL not set — using in-memory stores for dev")
	}
	return cfg
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
func envInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}
func envDur(k string, def int) time.Duration {
	if v := os.Getenv(k); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return time.Duration(i)
		}
	}
	return time.Duration(def)
}
