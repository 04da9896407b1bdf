package credentials

import (
	"context"
	"sync"
)

// memResolver is the dev/test fallback used when DATABASE_URL is not set.
type memResolver struct {
	mu    sync.RWMutex
	creds map[string]TenantCredential
}

// NewMemoryResolver seeds an in-memory resolver with the given contracts.
func NewMemoryResolver(creds ...TenantCredential) *memResolver {
	m := &memResolver{creds: map[string]TenantCredential{}}
	for _, c := range creds {
		m.creds[c.TenantID] = c
	}
	return m
}

func (m *memResolver) Put(c TenantCredential) {
	m.mu.Lock()
	m.creds[c.TenantID] = c
	m.mu.Unlock()
}

func (m *memResolver) Resolve(_ context.Context, tenantID string) (TenantCredential, error) {
	m.mu.RLock()
	c, ok := m.creds[tenantID]
	m.mu.RUnlock()
	if !ok {
		return TenantCredential{}, &NotConfiguredError{TenantID: tenantID}
	}
	return c, nil
}
