// pkg/middleware/identity.go
package middleware

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"vendagate/pkg/config"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// UserIdentity is what the dashboard session resolves to. Role and rep linkage
// are never taken from the token; the scope resolver reads them from the store.
type UserIdentity struct {
	UserID   string
	TenantID string
}

type ctxIdentityKey struct{}

// jwksCache caches JWKS sets per URL.
type jwksCache struct {
	mu   sync.RWMutex
	sets map[string]cachedJWKS
}

type cachedJWKS struct {
	set     jwk.Set
	expires time.Time
}

func (c *jwksCache) get(ctx context.Context, url string, ttl time.Duration) (jwk.Set, error) {
	c.mu.RLock()
	if e, ok := c.sets[url]; ok && time.Now().Before(e.expires) {
		c.mu.RUnlock()
		return e.set, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sets == nil {
		c.sets = map[string]cachedJWKS{}
	}
	if e, ok := c.sets[url]; ok && time.Now().Before(e.expires) {
		return e.set, nil
	}
	set, err := jwk.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	c.sets[url] = cachedJWKS{set: set, expires: time.Now().Add(ttl)}
	return set, nil
}

// Identity validates the dashboard session JWT and populates UserIdentity in
// context. In dev, plain X-User-ID / X-Tenant-ID headers are accepted so the
// service can be exercised without an IdP.
func Identity(cfg config.Config) func(http.Handler) http.Handler {
	cache := &jwksCache{}
	jwksTTL := 6 * time.Hour
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/healthz" || r.URL.Path == "/metrics" {
				next.ServeHTTP(w, r)
				return
			}

			authz := r.Header.Get("Authorization")
			if strings.TrimSpace(authz) == "" {
				if cfg.Env == "dev" {
					uid := r.Header.Get("X-User-ID")
					tid := r.Header.Get("X-Tenant-ID")
					if uid != "" && tid != "" {
						ctx := context.WithValue(r.Context(), ctxIdentityKey{}, UserIdentity{UserID: uid, TenantID: tid})
						next.ServeHTTP(w, r.WithContext(ctx))
						return
					}
				}
				http.Error(w, "missing bearer", http.StatusUnauthorized)
				return
			}

			issuer := strings.TrimRight(cfg.Issuer, "/")
			if issuer == "" || cfg.JWKSURL == "" {
				http.Error(w, "auth not configured", http.StatusInternalServerError)
				return
			}
			set, err := cache.get(r.Context(), cfg.JWKSURL, jwksTTL)
			if err != nil {
				http.Error(w, "jwks fetch failed", http.StatusInternalServerError)
				return
			}
			if !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
				http.Error(w, "missing bearer", http.StatusUnauthorized)
				return
			}
			raw := strings.TrimSpace(authz[len("Bearer "):])

			parseOpts := []jwt.ParseOption{jwt.WithKeySet(set), jwt.WithIssuer(issuer), jwt.WithValidate(true), jwt.WithVerify(true)}
			if cfg.Audience != "" {
				parseOpts = append(parseOpts, jwt.WithAudience(cfg.Audience))
			}
			jt, perr := jwt.Parse([]byte(raw), parseOpts...)
			if perr != nil {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}

			id := UserIdentity{UserID: jt.Subject()}
			if v, ok := jt.Get("tenant_id"); ok {
				if s, ok := v.(string); ok {
					id.TenantID = s
				}
			}
			if id.TenantID == "" {
				id.TenantID = r.Header.Get("X-Tenant-ID")
			}
			if id.UserID == "" || id.TenantID == "" {
				http.Error(w, "identity incomplete", http.StatusUnauthorized)
				return
			}
			ctx := context.WithValue(r.Context(), ctxIdentityKey{}, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// IdentityFrom returns the resolved identity, zero value when absent.
func IdentityFrom(ctx context.Context) UserIdentity {
	if v := ctx.Value(ctxIdentityKey{}); v != nil {
		return v.(UserIdentity)
	}
	return UserIdentity{}
}

// WithIdentity injects an identity directly; handler tests use this.
func WithIdentity(ctx context.Context, id UserIdentity) context.Context {
	return context.WithValue(ctx, ctxIdentityKey{}, id)
}
