// Package tokenbroker produces valid ERP bearer tokens per tenant. Tokens are
// cached under a tenant-scoped key with a fixed lifetime; concurrent cache
// misses for one tenant are coalesced so a thundering herd performs a single
// authentication.
package tokenbroker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"vendagate/internal/credentials"
	"vendagate/pkg/cache"
)

// Token is the cached ERP credential. Never mutated in place; every refresh
// replaces the cache entry wholesale.
type Token struct {
	Bearer    string    `json:"bearer"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// AuthenticationFailedError means the ERP rejected the login/authenticate call
// or answered without a token field. Nothing is cached on this path.
type AuthenticationFailedError struct {
	TenantID string
	AuthType credentials.AuthType
	Cause    error
}

func (e *AuthenticationFailedError) Error() string {
	return fmt.Sprintf("tenant %s: %s authentication failed: %v", e.TenantID, e.AuthType, e.Cause)
}

func (e *AuthenticationFailedError) Unwrap() error { return e.Cause }

type Broker struct {
	resolver credentials.Resolver
	store    cache.Store
	client   *http.Client
	lifetime time.Duration
	log      *zap.SugaredLogger
	group    singleflight.Group
	now      func() time.Time
}

func New(resolver credentials.Resolver, store cache.Store, lifetime, timeout time.Duration, log *zap.SugaredLogger) *Broker {
	return &Broker{
		resolver: resolver,
		store:    store,
		client:   &http.Client{Timeout: timeout},
		lifetime: lifetime,
		log:      log,
		now:      time.Now,
	}
}

// TokenKey is the tenant-scoped cache key; tenants never share entries.
func TokenKey(tenantID string) string { return tenantID + ":sankhya:token" }

// GetToken returns a valid bearer token for the tenant. With forceRefresh the
// cache is skipped and the entry replaced unconditionally; otherwise a cached
// unexpired token is returned without any network call.
func (b *Broker) GetToken(ctx context.Context, tenantID string, forceRefresh bool) (Token, error) {
	if forceRefresh {
		return b.authenticate(ctx, tenantID)
	}
	if t, ok := b.cachedToken(ctx, tenantID); ok {
		cacheHits.Inc()
		return t, nil
	}
	cacheMisses.Inc()
	v, err, _ := b.group.Do(tenantID, func() (any, error) {
		// A coalesced caller may arrive just after the in-flight authentication
		// finished; the cache re-check avoids a redundant login.
		if t, ok := b.cachedToken(ctx, tenantID); ok {
			return t, nil
		}
		return b.authenticate(ctx, tenantID)
	})
	if err != nil {
		return Token{}, err
	}
	return v.(Token), nil
}

// Invalidate drops any cached token for the tenant without re-authenticating.
func (b *Broker) Invalidate(ctx context.Context, tenantID string) error {
	return b.store.Delete(ctx, TokenKey(tenantID))
}

func (b *Broker) cachedToken(ctx context.Context, tenantID string) (Token, bool) {
	raw, ok, err := b.store.Get(ctx, TokenKey(tenantID))
	if err != nil || !ok {
		return Token{}, false
	}
	var t Token
	if err := json.Unmarshal(raw, &t); err != nil {
		return Token{}, false
	}
	if !b.now().Before(t.ExpiresAt) {
		return Token{}, false
	}
	return t, true
}

func (b *Broker) authenticate(ctx context.Context, tenantID string) (Token, error) {
	cred, err := b.resolver.Resolve(ctx, tenantID)
	if err != nil {
		return Token{}, err
	}

	var bearer string
	switch a := cred.Auth.(type) {
	case credentials.Legacy:
		bearer, err = b.loginLegacy(ctx, cred.BaseURL, a)
	case credentials.OAuth2:
		bearer, err = b.loginOAuth2(ctx, cred.BaseURL, a)
	default:
		err = fmt.Errorf("unhandled auth protocol %q", cred.Auth.Type())
	}
	if err != nil {
		authentications.WithLabelValues(string(cred.Auth.Type()), "failure").Inc()
		return Token{}, &AuthenticationFailedError{TenantID: tenantID, AuthType: cred.Auth.Type(), Cause: err}
	}
	authentications.WithLabelValues(string(cred.Auth.Type()), "success").Inc()

	now := b.now()
	tok := Token{Bearer: bearer, IssuedAt: now, ExpiresAt: now.Add(b.lifetime)}
	// Cache write happens only after the full response is parsed, so a timed-out
	// acquisition cannot strand a half-written entry.
	raw, _ := json.Marshal(tok)
	if err := b.store.Set(ctx, TokenKey(tenantID), raw, b.lifetime); err != nil {
		b.log.Warnw("token cache write failed", "tenant", tenantID, "err", err)
	}
	return tok, nil
}

func (b *Broker) loginLegacy(ctx context.Context, baseURL string, a credentials.Legacy) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(baseURL, "/")+"/login", bytes.NewReader([]byte("{}")))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("token", a.Token)
	req.Header.Set("appkey", a.AppKey)
	req.Header.Set("username", a.Username)
	req.Header.Set("password", a.Password)
	return b.extractBearer(req)
}

func (b *Broker) loginOAuth2(ctx context.Context, baseURL string, a credentials.OAuth2) (string, error) {
	form := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {a.ClientID},
		"client_secret": {a.ClientSecret},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(baseURL, "/")+"/authenticate", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-Token", a.XToken)
	return b.extractBearer(req)
}

// extractBearer performs the login call and pulls the token out of the body.
// The ERP is inconsistent about the field name across protocol versions.
func (b *Broker) extractBearer(req *http.Request) (string, error) {
	resp, err := b.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	var out struct {
		BearerToken string `json:"bearerToken"`
		AccessToken string `json:"access_token"`
		Token       string `json:"token"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("decode auth response: %w", err)
	}
	for _, t := range []string{out.BearerToken, out.AccessToken, out.Token} {
		if t != "" {
			return t, nil
		}
	}
	return "", fmt.Errorf("auth response carries no token field")
}
