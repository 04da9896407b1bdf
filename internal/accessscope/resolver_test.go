package accessscope_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"vendagate/internal/accessscope"
)

func intPtr(i int) *int { return &i }

func newResolver(store accessscope.Store) *accessscope.Resolver {
	return accessscope.NewResolver(store, zap.NewNop().Sugar())
}

func TestResolveScopeAdmin(t *testing.T) {
	store := accessscope.NewMemoryStore()
	store.PutLink("t1", "u-admin", accessscope.UserLink{Role: accessscope.RoleAdmin, RepCode: intPtr(99)})

	scope, err := newResolver(store).ResolveScope(context.Background(), "u-admin", "t1")
	require.NoError(t, err)
	require.True(t, scope.IsAdmin)
	require.Nil(t, scope.OwnRepCode)
	require.Empty(t, scope.TeamRepCodes)
	require.Nil(t, scope.VisibleRepCodes())
}

func TestResolveScopeManagerWithTeam(t *testing.T) {
	store := accessscope.NewMemoryStore()
	store.PutLink("t1", "u-mgr", accessscope.UserLink{Role: accessscope.RoleManager, RepCode: intPtr(5)})
	store.PutRep("t1", 10, 5)
	store.PutRep("t1", 11, 5)
	store.PutRep("t1", 20, 7) // someone else's report

	scope, err := newResolver(store).ResolveScope(context.Background(), "u-mgr", "t1")
	require.NoError(t, err)
	require.False(t, scope.IsAdmin)
	require.Equal(t, 5, *scope.OwnRepCode)
	require.Equal(t, []int{10, 11}, scope.TeamRepCodes)
	require.Equal(t, []int{5, 10, 11}, scope.VisibleRepCodes())
}

func TestResolveScopeSoloRep(t *testing.T) {
	store := accessscope.NewMemoryStore()
	store.PutLink("t1", "u-rep", accessscope.UserLink{Role: accessscope.RoleSalesRep, RepCode: intPtr(7)})

	scope, err := newResolver(store).ResolveScope(context.Background(), "u-rep", "t1")
	require.NoError(t, err)
	require.False(t, scope.IsAdmin)
	require.Equal(t, []int{7}, scope.VisibleRepCodes())
	require.Empty(t, scope.TeamRepCodes)
}

func TestResolveScopeUserNotFound(t *testing.T) {
	store := accessscope.NewMemoryStore()

	_, err := newResolver(store).ResolveScope(context.Background(), "ghost", "t1")
	var notFound *accessscope.UserNotFoundError
	require.True(t, errors.As(err, &notFound))
	require.Equal(t, "ghost", notFound.UserID)
}
