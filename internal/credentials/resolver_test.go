package credentials_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"vendagate/internal/credentials"
	"vendagate/pkg/cache"
)

func TestMemoryResolverResolve(t *testing.T) {
	res := credentials.NewMemoryResolver(credentials.TenantCredential{
		TenantID: "t1",
		BaseURL:  "https://erp.example.com",
		Auth:     credentials.Legacy{Token: "tk", AppKey: "ak", Username: "u", Password: "p"},
	})

	cred, err := res.Resolve(context.Background(), "t1")
	require.NoError(t, err)
	require.Equal(t, "https://erp.example.com", cred.BaseURL)
	require.Equal(t, credentials.AuthLegacy, cred.Auth.Type())

	legacy, ok := cred.Auth.(credentials.Legacy)
	require.True(t, ok)
	require.Equal(t, "ak", legacy.AppKey)
}

func TestResolveUnknownTenantNotConfigured(t *testing.T) {
	res := credentials.NewMemoryResolver()

	_, err := res.Resolve(context.Background(), "ghost")
	var notConf *credentials.NotConfiguredError
	require.True(t, errors.As(err, &notConf))
	require.Equal(t, "ghost", notConf.TenantID)
}

// countingResolver records how often the backing store is hit.
type countingResolver struct {
	inner credentials.Resolver
	calls int
}

func (c *countingResolver) Resolve(ctx context.Context, tenantID string) (credentials.TenantCredential, error) {
	c.calls++
	return c.inner.Resolve(ctx, tenantID)
}

func TestCachedResolverHitsStoreOnce(t *testing.T) {
	inner := &countingResolver{inner: credentials.NewMemoryResolver(credentials.TenantCredential{
		TenantID: "t1",
		BaseURL:  "https://erp.example.com",
		Auth:     credentials.OAuth2{ClientID: "id", ClientSecret: "sec", XToken: "xt"},
	})}
	res := credentials.NewCached(inner, cache.NewMemory(), 2*time.Minute)

	for i := 0; i < 3; i++ {
		cred, err := res.Resolve(context.Background(), "t1")
		require.NoError(t, err)
		require.Equal(t, credentials.AuthOAuth2, cred.Auth.Type())
	}
	require.Equal(t, 1, inner.calls)

	oauth, _ := inner.inner.Resolve(context.Background(), "t1")
	a, ok := oauth.Auth.(credentials.OAuth2)
	require.True(t, ok)
	require.Equal(t, "xt", a.XToken)
}

func TestCachedResolverDoesNotCacheFailures(t *testing.T) {
	inner := &countingResolver{inner: credentials.NewMemoryResolver()}
	res := credentials.NewCached(inner, cache.NewMemory(), 2*time.Minute)

	for i := 0; i < 2; i++ {
		_, err := res.Resolve(context.Background(), "ghost")
		var notConf *credentials.NotConfiguredError
		require.True(t, errors.As(err, &notConf))
	}
	require.Equal(t, 2, inner.calls)
}
