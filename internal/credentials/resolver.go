package credentials

import (
	"context"
	"encoding/json"
	"time"

	"vendagate/pkg/cache"
)

type Resolver interface {
	// Resolve loads the tenant's ERP contract. Fails with *NotConfiguredError
	// when no active contract row exists.
	Resolve(ctx context.Context, tenantID string) (TenantCredential, error)
}

// contractRecord is the flat serialization of a TenantCredential used for the
// cache entry and for store scans; the tagged Auth variant does not round-trip
// through JSON on its own.
type contractRecord struct {
	TenantID string   `json:"tenant_id"`
	AuthType AuthType `json:"auth_type"`
	BaseURL  string   `json:"base_url"`

	LegacyToken string `json:"legacy_token,omitempty"`
	AppKey      string `json:"app_key,omitempty"`
	Username    string `json:"username,omitempty"`
	Password    string `json:"password,omitempty"`

	ClientID     string `json:"client_id,omitempty"`
	ClientSecret string `json:"client_secret,omitempty"`
	XToken       string `json:"x_token,omitempty"`
}

func (r contractRecord) credential() (TenantCredential, error) {
	c := TenantCredential{TenantID: r.TenantID, BaseURL: r.BaseURL}
	switch r.AuthType {
	case AuthLegacy:
		c.Auth = Legacy{Token: r.LegacyToken, AppKey: r.AppKey, Username: r.Username, Password: r.Password}
	case AuthOAuth2:
		c.Auth = OAuth2{ClientID: r.ClientID, ClientSecret: r.ClientSecret, XToken: r.XToken}
	default:
		return TenantCredential{}, &NotConfiguredError{TenantID: r.TenantID}
	}
	return c, nil
}

func record(c TenantCredential) contractRecord {
	r := contractRecord{TenantID: c.TenantID, BaseURL: c.BaseURL, AuthType: c.Auth.Type()}
	switch a := c.Auth.(type) {
	case Legacy:
		r.LegacyToken, r.AppKey, r.Username, r.Password = a.Token, a.AppKey, a.Username, a.Password
	case OAuth2:
		r.ClientID, r.ClientSecret, r.XToken = a.ClientID, a.ClientSecret, a.XToken
	}
	return r
}

// cachedResolver wraps a Resolver with a short-TTL read cache. Contract changes
// are rare but token acquisition sits on the hot path, so staleness is bounded
// by a small ttl rather than invalidation.
type cachedResolver struct {
	inner Resolver
	store cache.Store
	ttl   time.Duration
}

// NewCached returns a Resolver that caches contract reads for ttl.
func NewCached(inner Resolver, store cache.Store, ttl time.Duration) Resolver {
	return &cachedResolver{inner: inner, store: store, ttl: ttl}
}

func contractKey(tenantID string) string { return tenantID + ":sankhya:contract" }

func (c *cachedResolver) Resolve(ctx context.Context, tenantID string) (TenantCredential, error) {
	if b, ok, err := c.store.Get(ctx, contractKey(tenantID)); err == nil && ok {
		var rec contractRecord
		if err := json.Unmarshal(b, &rec); err == nil {
			if cred, cerr := rec.credential(); cerr == nil {
				return cred, nil
			}
		}
	}
	cred, err := c.inner.Resolve(ctx, tenantID)
	if err != nil {
		return TenantCredential{}, err
	}
	// Cache write is best effort; a failed write never fails the resolve.
	if b, err := json.Marshal(record(cred)); err == nil {
		_ = c.store.Set(ctx, contractKey(tenantID), b, c.ttl)
	}
	return cred, nil
}
