package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sansecao/spec-workflow-mcp-pro/model"
	"github.com/sansecao/spec-workflow-mcp-pro/service/dao"
	"github.com/sansecao/spec-workflow-mcp-pro/service/dao/snapshot"
)

func TestService_VersionsNeverReused(t *testing.T) {
	ctx := context.Background()
	srv := New()
	scope := snapshot.Scope{ApprovalID: "a1", CategoryName: "auth"}

	v1, err := srv.NextVersion(ctx, scope)
	require.NoError(t, err)
	require.NoError(t, srv.Save(ctx, scope, &model.Snapshot{Version: v1, Comments: []model.Comment{{Comment: "c"}}}))
	v2, err := srv.NextVersion(ctx, scope)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, []int{v1, v2})

	assert.True(t, errors.Is(srv.Save(ctx, scope, &model.Snapshot{Version: v1}), snapshot.ErrExists))

	loaded, err := srv.Load(ctx, scope, v1)
	require.NoError(t, err)
	loaded.Comments[0].Comment = "changed"
	again, err := srv.Load(ctx, scope, v1)
	require.NoError(t, err)
	assert.Equal(t, "c", again.Comments[0].Comment)

	require.NoError(t, srv.DeleteAll(ctx, scope))
	_, err = srv.Load(ctx, scope, v1)
	assert.True(t, errors.Is(err, dao.ErrNotFound))
}
