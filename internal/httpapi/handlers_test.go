package httpapi_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"vendagate/internal/accessscope"
	"vendagate/internal/credentials"
	"vendagate/internal/erp"
	"vendagate/internal/httpapi"
	"vendagate/internal/tokenbroker"
	"vendagate/pkg/cache"
	"vendagate/pkg/middleware"
)

func intPtr(i int) *int { return &i }

type fixture struct {
	router *chi.Mux
	store  *erpCalls
}

type erpCalls struct {
	logins int64
}

func newFixture(t *testing.T, scopeStore accessscope.Store) fixture {
	t.Helper()
	calls := &erpCalls{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/login" {
			n := atomic.AddInt64(&calls.logins, 1)
			json.NewEncoder(w).Encode(map[string]string{"bearerToken": fmt.Sprintf("secret-bearer-token-%d", n)})
			return
		}
		w.Write([]byte(`{
			"responseBody": {
				"entities": {
					"total": "1",
					"metadata": {"fields": {"field": [{"name": "CODPROD"}, {"name": "DESCRPROD"}]}},
					"entity": [{"f0": {"$": "10"}, "f1": {"$": "Widget"}}]
				}
			}
		}`))
	}))
	t.Cleanup(srv.Close)

	resolver := credentials.NewMemoryResolver(credentials.TenantCredential{
		TenantID: "t1",
		BaseURL:  srv.URL,
		Auth:     credentials.Legacy{Token: "tk", AppKey: "ak", Username: "u", Password: "p"},
	})
	log := zap.NewNop().Sugar()
	broker := tokenbroker.New(resolver, cache.NewMemory(), 20*time.Minute, 10*time.Second, log)
	gateway := erp.NewGateway(resolver, broker, 10*time.Second, 500, log)

	r := chi.NewRouter()
	httpapi.Routes(r, httpapi.Deps{
		Log:     log,
		Broker:  broker,
		Gateway: gateway,
		Scopes:  accessscope.NewResolver(scopeStore, log),
	})
	return fixture{router: r, store: calls}
}

func do(f fixture, method, path string, id middleware.UserIdentity) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	req = req.WithContext(middleware.WithIdentity(context.Background(), id))
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestMyScopeManager(t *testing.T) {
	store := accessscope.NewMemoryStore()
	store.PutLink("t1", "u-mgr", accessscope.UserLink{Role: accessscope.RoleManager, RepCode: intPtr(5)})
	store.PutRep("t1", 10, 5)
	store.PutRep("t1", 11, 5)
	f := newFixture(t, store)

	rec := do(f, http.MethodGet, "/v1/me/scope", middleware.UserIdentity{UserID: "u-mgr", TenantID: "t1"})
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, false, body["is_admin"])
	require.Equal(t, float64(5), body["own_rep_code"])
	require.Equal(t, []any{float64(10), float64(11)}, body["team_rep_codes"])
	require.Equal(t, true, body["can_edit"])
}

func TestMyScopeUnlinkedUserIsForbidden(t *testing.T) {
	f := newFixture(t, accessscope.NewMemoryStore())

	rec := do(f, http.MethodGet, "/v1/me/scope", middleware.UserIdentity{UserID: "ghost", TenantID: "t1"})
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Contains(t, rec.Body.String(), "user-not-linked")
}

func TestRefreshTokenRequiresAdmin(t *testing.T) {
	store := accessscope.NewMemoryStore()
	store.PutLink("t1", "u-rep", accessscope.UserLink{Role: accessscope.RoleSalesRep, RepCode: intPtr(7)})
	f := newFixture(t, store)

	rec := do(f, http.MethodPost, "/v1/tenants/t1/erp/token/refresh", middleware.UserIdentity{UserID: "u-rep", TenantID: "t1"})
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Equal(t, int64(0), atomic.LoadInt64(&f.store.logins))
}

func TestRefreshTokenAdminGetsPreviewOnly(t *testing.T) {
	store := accessscope.NewMemoryStore()
	store.PutLink("t1", "u-admin", accessscope.UserLink{Role: accessscope.RoleAdmin})
	f := newFixture(t, store)

	rec := do(f, http.MethodPost, "/v1/tenants/t1/erp/token/refresh", middleware.UserIdentity{UserID: "u-admin", TenantID: "t1"})
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, true, body["ok"])
	require.Equal(t, "secret-b…", body["token_preview"])
	require.NotContains(t, rec.Body.String(), "secret-bearer-token-1")
	require.Equal(t, int64(1), atomic.LoadInt64(&f.store.logins))
}

func TestRefreshTokenOtherTenantForbidden(t *testing.T) {
	store := accessscope.NewMemoryStore()
	store.PutLink("t1", "u-admin", accessscope.UserLink{Role: accessscope.RoleAdmin})
	f := newFixture(t, store)

	rec := do(f, http.MethodPost, "/v1/tenants/t2/erp/token/refresh", middleware.UserIdentity{UserID: "u-admin", TenantID: "t1"})
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestDropTokenRequiresAdmin(t *testing.T) {
	store := accessscope.NewMemoryStore()
	store.PutLink("t1", "u-rep", accessscope.UserLink{Role: accessscope.RoleSalesRep, RepCode: intPtr(7)})
	f := newFixture(t, store)

	rec := do(f, http.MethodDelete, "/v1/tenants/t1/erp/token", middleware.UserIdentity{UserID: "u-rep", TenantID: "t1"})
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestDropTokenEvictsCachedToken(t *testing.T) {
	store := accessscope.NewMemoryStore()
	store.PutLink("t1", "u-admin", accessscope.UserLink{Role: accessscope.RoleAdmin})
	f := newFixture(t, store)
	admin := middleware.UserIdentity{UserID: "u-admin", TenantID: "t1"}

	rec := do(f, http.MethodGet, "/v1/products", admin)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, int64(1), atomic.LoadInt64(&f.store.logins))

	rec = do(f, http.MethodDelete, "/v1/tenants/t1/erp/token", admin)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, int64(1), atomic.LoadInt64(&f.store.logins), "eviction must not authenticate")

	// The next business call finds an empty cache and logs in again.
	rec = do(f, http.MethodGet, "/v1/products", admin)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, int64(2), atomic.LoadInt64(&f.store.logins))
}

func TestPartnersByRepOutOfScopeIs403(t *testing.T) {
	store := accessscope.NewMemoryStore()
	store.PutLink("t1", "u-rep", accessscope.UserLink{Role: accessscope.RoleSalesRep, RepCode: intPtr(7)})
	f := newFixture(t, store)

	rec := do(f, http.MethodGet, "/v1/partners/8", middleware.UserIdentity{UserID: "u-rep", TenantID: "t1"})
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Contains(t, rec.Body.String(), "scope-violation")
}

func TestProductsGoThroughGateway(t *testing.T) {
	store := accessscope.NewMemoryStore()
	store.PutLink("t1", "u-rep", accessscope.UserLink{Role: accessscope.RoleSalesRep, RepCode: intPtr(7)})
	f := newFixture(t, store)

	rec := do(f, http.MethodGet, "/v1/products", middleware.UserIdentity{UserID: "u-rep", TenantID: "t1"})
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Products []map[string]string `json:"products"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, []map[string]string{{"CODPROD": "10", "DESCRPROD": "Widget"}}, body.Products)
}
