package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"

	"vendagate/internal/accessscope"
	"vendagate/internal/credentials"
	"vendagate/internal/erp"
	"vendagate/internal/tokenbroker"
	"vendagate/pkg/db"
	"vendagate/pkg/middleware"
	"vendagate/pkg/problems"
)

// refreshToken is the administrative rotation trigger. It always forces a new
// authentication and reports only a truncated token preview, never the value.
func (d Deps) refreshToken(w http.ResponseWriter, r *http.Request) {
	id := middleware.IdentityFrom(r.Context())
	scope, err := d.Scopes.ResolveScope(r.Context(), id.UserID, id.TenantID)
	if err != nil {
		d.writeError(w, err)
		return
	}
	if !scope.IsAdmin {
		d.writeProblem(w, problems.SlugScopeViolation, "permission denied", http.StatusForbidden, "token rotation requires an admin role")
		return
	}
	tenantID := chi.URLParam(r, "tenantID")
	if tenantID != id.TenantID {
		d.writeProblem(w, problems.SlugScopeViolation, "permission denied", http.StatusForbidden, "cannot rotate another tenant's token")
		return
	}
	tok, err := d.Broker.GetToken(r.Context(), tenantID, true)
	if err != nil {
		d.writeError(w, err)
		return
	}
	writeJSON(w, map[string]any{
		"ok":            true,
		"token_preview": preview(tok.Bearer),
		"expires_at":    tok.ExpiresAt,
	}, http.StatusOK)
}

// dropToken evicts the cached ERP token without acquiring a replacement. Used
// after a credential rotation on the ERP side when the next business call
// should pick up fresh credentials on its own.
func (d Deps) dropToken(w http.ResponseWriter, r *http.Request) {
	id := middleware.IdentityFrom(r.Context())
	scope, err := d.Scopes.ResolveScope(r.Context(), id.UserID, id.TenantID)
	if err != nil {
		d.writeError(w, err)
		return
	}
	if !scope.IsAdmin {
		d.writeProblem(w, problems.SlugScopeViolation, "permission denied", http.StatusForbidden, "token eviction requires an admin role")
		return
	}
	tenantID := chi.URLParam(r, "tenantID")
	if tenantID != id.TenantID {
		d.writeProblem(w, problems.SlugScopeViolation, "permission denied", http.StatusForbidden, "cannot evict another tenant's token")
		return
	}
	if err := d.Broker.Invalidate(r.Context(), tenantID); err != nil {
		d.writeError(w, err)
		return
	}
	writeJSON(w, map[string]any{"ok": true}, http.StatusOK)
}

func (d Deps) myScope(w http.ResponseWriter, r *http.Request) {
	id := middleware.IdentityFrom(r.Context())
	scope, err := d.Scopes.ResolveScope(r.Context(), id.UserID, id.TenantID)
	if err != nil {
		d.writeError(w, err)
		return
	}
	resp := map[string]any{
		"user_id":        scope.UserID,
		"tenant_id":      scope.TenantID,
		"is_admin":       scope.IsAdmin,
		"own_rep_code":   scope.OwnRepCode,
		"team_rep_codes": scope.TeamRepCodes,
		"can_edit":       accessscope.CanCreateOrEdit(scope),
	}
	if !accessscope.CanCreateOrEdit(scope) {
		resp["denied_reason"] = accessscope.AccessDeniedMessage(scope)
	}
	writeJSON(w, resp, http.StatusOK)
}

type partnerRow struct {
	CodParc int64  `json:"codparc"`
	Nome    string `json:"nome"`
	CodVend *int   `json:"codvend"`
}

// listPartners shows the uniform pattern every protected query follows:
// resolve scope once and splice the entity predicate with named bindings.
func (d Deps) listPartners(w http.ResponseWriter, r *http.Request) {
	if d.Pool == nil {
		http.Error(w, "relational store not configured", http.StatusServiceUnavailable)
		return
	}
	id := middleware.IdentityFrom(r.Context())
	scope, err := d.Scopes.ResolveScope(r.Context(), id.UserID, id.TenantID)
	if err != nil {
		d.writeError(w, err)
		return
	}
	pred := accessscope.ForPartners(scope)
	args := pgx.NamedArgs{"tenant_id": id.TenantID}
	for k, v := range pred.Args {
		args[k] = v
	}
	tx, err := db.BeginTxWithTenant(r.Context(), d.Pool, id.TenantID)
	if err != nil {
		d.writeError(w, err)
		return
	}
	defer tx.Rollback(r.Context())
	rows, err := tx.Query(r.Context(),
		`SELECT par.codparc, par.nome, par.codvend FROM partners par WHERE par.tenant_id = @tenant_id`+pred.SQL+` ORDER BY par.nome`,
		args)
	if err != nil {
		d.writeError(w, err)
		return
	}
	defer rows.Close()
	out := []partnerRow{}
	for rows.Next() {
		var p partnerRow
		if err := rows.Scan(&p.CodParc, &p.Nome, &p.CodVend); err != nil {
			d.writeError(w, err)
			return
		}
		out = append(out, p)
	}
	writeJSON(w, map[string]any{"partners": out}, http.StatusOK)
}

// partnersByRep is the ad-hoc lookup path where the predicate cannot be
// applied wholesale; the visibility check must happen explicitly.
func (d Deps) partnersByRep(w http.ResponseWriter, r *http.Request) {
	repCode, err := strconv.Atoi(chi.URLParam(r, "repCode"))
	if err != nil {
		http.Error(w, "invalid rep code", http.StatusBadRequest)
		return
	}
	id := middleware.IdentityFrom(r.Context())
	scope, err := d.Scopes.ResolveScope(r.Context(), id.UserID, id.TenantID)
	if err != nil {
		d.writeError(w, err)
		return
	}
	if err := accessscope.EnsureRepVisible(scope, repCode); err != nil {
		d.writeError(w, err)
		return
	}
	if d.Pool == nil {
		http.Error(w, "relational store not configured", http.StatusServiceUnavailable)
		return
	}
	rows, err := d.Pool.Query(r.Context(),
		`SELECT par.codparc, par.nome, par.codvend FROM partners par WHERE par.tenant_id = @tenant_id AND par.codvend = @rep ORDER BY par.nome`,
		pgx.NamedArgs{"tenant_id": id.TenantID, "rep": repCode})
	if err != nil {
		d.writeError(w, err)
		return
	}
	defer rows.Close()
	out := []partnerRow{}
	for rows.Next() {
		var p partnerRow
		if err := rows.Scan(&p.CodParc, &p.Nome, &p.CodVend); err != nil {
			d.writeError(w, err)
			return
		}
		out = append(out, p)
	}
	writeJSON(w, map[string]any{"partners": out}, http.StatusOK)
}

// listProducts is the representative ERP-backed route: scope gate first, then
// a bulk query through the gateway.
func (d Deps) listProducts(w http.ResponseWriter, r *http.Request) {
	id := middleware.IdentityFrom(r.Context())
	if _, err := d.Scopes.ResolveScope(r.Context(), id.UserID, id.TenantID); err != nil {
		d.writeError(w, err)
		return
	}
	records, err := d.Gateway.LoadRecords(r.Context(), id.TenantID, erp.BulkQuery{
		RootEntity: "Produto",
		Fields:     []string{"CODPROD", "DESCRPROD"},
		OrderBy:    "DESCRPROD",
	})
	if err != nil {
		d.writeError(w, err)
		return
	}
	writeJSON(w, map[string]any{"products": records}, http.StatusOK)
}

// preview masks a token for the admin surface; at most half the token and
// never more than 8 characters are shown, so even short tokens stay partial.
func preview(token string) string {
	n := len(token) / 2
	if n > 8 {
		n = 8
	}
	return token[:n] + "…"
}

func writeJSON(w http.ResponseWriter, v any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (d Deps) writeProblem(w http.ResponseWriter, slug, title string, status int, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"type":   problems.Type(slug),
		"title":  title,
		"status": status,
		"detail": detail,
	})
}

// writeError maps the error taxonomy onto HTTP. Everything here is terminal
// for the request that triggered it.
func (d Deps) writeError(w http.ResponseWriter, err error) {
	var (
		notConf  *credentials.NotConfiguredError
		authFail *tokenbroker.AuthenticationFailedError
		authRej  *erp.AuthRejectedError
		upstream *erp.UpstreamError
		notFound *accessscope.UserNotFoundError
		scopeVio *accessscope.ScopeViolationError
	)
	switch {
	case errors.As(err, &notConf):
		d.writeProblem(w, problems.SlugNotConfigured, "tenant not configured", http.StatusUnprocessableEntity, err.Error())
	case errors.As(err, &authFail):
		d.writeProblem(w, problems.SlugAuthFailed, "ERP authentication failed", http.StatusBadGateway, err.Error())
	case errors.As(err, &authRej):
		d.writeProblem(w, problems.SlugAuthRejected, "ERP rejected credentials", http.StatusBadGateway, err.Error())
	case errors.As(err, &upstream):
		d.writeProblem(w, problems.SlugUpstream, "ERP upstream error", http.StatusBadGateway, err.Error())
	case errors.As(err, &notFound):
		d.writeProblem(w, problems.SlugUserNotFound, "user not linked", http.StatusForbidden, err.Error())
	case errors.As(err, &scopeVio):
		// Uniform policy: out-of-scope lookups answer 403, not 404.
		d.writeProblem(w, problems.SlugScopeViolation, "permission denied", http.StatusForbidden, err.Error())
	default:
		d.Log.Errorw("request failed", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
