package accessscope

import (
	"context"

	"go.uber.org/zap"
)

// UserLink is the user's role and sales-hierarchy position for one tenant.
type UserLink struct {
	Role    Role
	RepCode *int // nil for users without ERP sales-rep linkage
}

// Store is the relational capability the resolver depends on.
type Store interface {
	// GetUserLink fails with *UserNotFoundError when no active row exists.
	GetUserLink(ctx context.Context, tenantID, userID string) (UserLink, error)
	// ListDirectReports returns active rep codes whose manager code equals managerCode.
	ListDirectReports(ctx context.Context, tenantID string, managerCode int) ([]int, error)
}

type Resolver struct {
	store Store
	log   *zap.SugaredLogger
}

func NewResolver(store Store, log *zap.SugaredLogger) *Resolver {
	return &Resolver{store: store, log: log}
}

// ResolveScope computes the caller's visibility scope. Cheap (one or two point
// lookups), so every request resolves fresh; a rotated role never outlives the
// request that observed it.
func (r *Resolver) ResolveScope(ctx context.Context, userID, tenantID string) (Scope, error) {
	link, err := r.store.GetUserLink(ctx, tenantID, userID)
	if err != nil {
		return Scope{}, err
	}
	scope := Scope{UserID: userID, TenantID: tenantID, Role: link.Role}
	if link.Role == RoleAdmin {
		scope.IsAdmin = true
		return scope, nil
	}
	scope.OwnRepCode = link.RepCode
	if link.RepCode != nil {
		// One hierarchy level: a manager's direct reports. Deeper org trees have
		// not shown up in practice; see DESIGN.md.
		team, err := r.store.ListDirectReports(ctx, tenantID, *link.RepCode)
		if err != nil {
			return Scope{}, err
		}
		scope.TeamRepCodes = team
	}
	return scope, nil
}
