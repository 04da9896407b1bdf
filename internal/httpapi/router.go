// Package httpapi mounts the service's HTTP surface: the administrative forced
// token refresh, a scope echo for the dashboard, and the representative
// protected routes that every business query follows the pattern of.
package httpapi

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"vendagate/internal/accessscope"
	"vendagate/internal/erp"
	"vendagate/internal/tokenbroker"
)

type Deps struct {
	Log     *zap.SugaredLogger
	Pool    *pgxpool.Pool // nil in memory-only dev mode; pg-backed routes answer 503
	Broker  *tokenbroker.Broker
	Gateway *erp.Gateway
	Scopes  *accessscope.Resolver
}

// Routes mounts all endpoints on r. Identity middleware is applied by the
// caller; every handler here assumes a resolved UserIdentity in context.
func Routes(r chi.Router, d Deps) {
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true}`))
	})

	r.Route("/v1", func(pr chi.Router) {
		pr.Post("/tenants/{tenantID}/erp/token/refresh", d.refreshToken)
		pr.Delete("/tenants/{tenantID}/erp/token", d.dropToken)
		pr.Get("/me/scope", d.myScope)
		pr.Get("/partners", d.listPartners)
		pr.Get("/partners/{repCode}", d.partnersByRep)
		pr.Get("/products", d.listProducts)
	})
}

// EnsureSchema creates the table behind the representative partner routes.
// Safe to call repeatedly (idempotent).
func EnsureSchema(ctx context.Context, dbPool *pgxpool.Pool) error {
	_, err := dbPool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS partners (
  tenant_id text NOT NULL,
  codparc bigint NOT NULL,
  nome text NOT NULL DEFAULT '',
  codvend int,
  PRIMARY KEY (tenant_id, codparc)
);
`)
	return err
}
