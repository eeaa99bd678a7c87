package storage_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aliciakaith/flowgrid/pkg/apperr"
	"github.com/aliciakaith/flowgrid/pkg/storage"
)

func TestFlowRepo_NameUniquePerOrgCaseInsensitive(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	org := createOrg(t, store)

	_, err := store.Flows.Create(ctx, org.ID, "Payment Flow", "u-1")
	require.NoError(t, err)

	_, err = store.Flows.Create(ctx, org.ID, "payment flow", "u-1")
	require.Error(t, err)
	assert.Equal(t, apperr.Conflict, apperr.KindOf(err))

	// 其他组织不受影响
	org2, err := store.Orgs.Create(ctx, "other-org")
	require.NoError(t, err)
	_, err = store.Flows.Create(ctx, org2.ID, "Payment Flow", "u-2")
	require.NoError(t, err)
}

func TestFlowRepo_VersionSequenceGapFree(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	org := createOrg(t, store)

	f, err := store.Flows.Create(ctx, org.ID, "versioned", "u-1")
	require.NoError(t, err)

	graph := []byte(`{"nodes": [{"id": "s", "type": "start"}], "edges": []}`)
	for expected := 1; expected <= 4; expected++ {
		v, err := store.Flows.SaveVersion(ctx, f.ID, graph, nil)
		require.NoError(t, err)
		assert.Equal(t, expected, v.Version, "版本号应无间隙递增")
	}

	latest, err := store.Flows.GetLatestVersion(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, latest.Version)

	versions, err := store.Flows.ListVersions(ctx, f.ID)
	require.NoError(t, err)
	require.Len(t, versions, 4)
	assert.Equal(t, 4, versions[0].Version, "列表应新在前")
}

func TestFlowRepo_SoftDeleteHiddenFromList(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	org := createOrg(t, store)

	f, err := store.Flows.Create(ctx, org.ID, "doomed", "u-1")
	require.NoError(t, err)

	require.NoError(t, store.Flows.SoftDelete(ctx, org.ID, f.ID))

	// 组织范围的列表不再返回
	flows, err := store.Flows.ListByOrg(ctx, org.ID)
	require.NoError(t, err)
	for _, item := range flows {
		assert.NotEqual(t, f.ID, item.ID, "软删除的Flow不应出现在列表中")
	}

	// 按ID读取同样NotFound
	_, err = store.Flows.GetByID(ctx, org.ID, f.ID)
	require.Error(t, err)
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))

	// 重复删除NotFound
	err = store.Flows.SoftDelete(ctx, org.ID, f.ID)
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))
}

func TestFlowRepo_GetByID_OrgScoped(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	org := createOrg(t, store)
	other, err := store.Orgs.Create(ctx, "intruder-org")
	require.NoError(t, err)

	f, err := store.Flows.Create(ctx, org.ID, "mine", "u-1")
	require.NoError(t, err)

	_, err = store.Flows.GetByID(ctx, other.ID, f.ID)
	require.Error(t, err)
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err), "跨组织读取应视同不存在")
}

func TestFlowRepo_GetLatestVersion_Empty(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	org := createOrg(t, store)

	f, err := store.Flows.Create(ctx, org.ID, "no-versions", "u-1")
	require.NoError(t, err)

	_, err = store.Flows.GetLatestVersion(ctx, f.ID)
	require.Error(t, err)
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))
}

func TestFlowRepo_UpdateStatus(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	org := createOrg(t, store)

	f, err := store.Flows.Create(ctx, org.ID, "status", "u-1")
	require.NoError(t, err)
	assert.Equal(t, storage.FlowStatusDraft, f.Status)

	require.NoError(t, store.Flows.UpdateStatus(ctx, org.ID, f.ID, storage.FlowStatusActive))

	got, err := store.Flows.GetByID(ctx, org.ID, f.ID)
	require.NoError(t, err)
	assert.Equal(t, storage.FlowStatusActive, got.Status)

	err = store.Flows.UpdateStatus(ctx, org.ID, f.ID, "bogus")
	assert.Equal(t, apperr.Validation, apperr.KindOf(err))
}
