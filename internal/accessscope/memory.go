package accessscope

import (
	"context"
	"sort"
	"sync"
)

// memStore is the dev/test fallback used when DATABASE_URL is not set.
type memStore struct {
	mu    sync.RWMutex
	links map[string]UserLink    // key: tenantID+":"+userID
	mgr   map[string]map[int]int // tenantID -> rep code -> manager code
}

var _ Store = (*memStore)(nil)

func NewMemoryStore() *memStore {
	return &memStore{
		links: map[string]UserLink{},
		mgr:   map[string]map[int]int{},
	}
}

func (m *memStore) PutLink(tenantID, userID string, link UserLink) {
	m.mu.Lock()
	m.links[tenantID+":"+userID] = link
	m.mu.Unlock()
}

// PutRep registers a rep and who they report to (managerCode 0 = nobody).
func (m *memStore) PutRep(tenantID string, repCode, managerCode int) {
	m.mu.Lock()
	if m.mgr[tenantID] == nil {
		m.mgr[tenantID] = map[int]int{}
	}
	m.mgr[tenantID][repCode] = managerCode
	m.mu.Unlock()
}

func (m *memStore) GetUserLink(_ context.Context, tenantID, userID string) (UserLink, error) {
	m.mu.RLock()
	link, ok := m.links[tenantID+":"+userID]
	m.mu.RUnlock()
	if !ok {
		return UserLink{}, &UserNotFoundError{UserID: userID, TenantID: tenantID}
	}
	return link, nil
}

func (m *memStore) ListDirectReports(_ context.Context, tenantID string, managerCode int) ([]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var codes []int
	for rep, mgr := range m.mgr[tenantID] {
		if mgr == managerCode {
			codes = append(codes, rep)
		}
	}
	sort.Ints(codes)
	return codes, nil
}
