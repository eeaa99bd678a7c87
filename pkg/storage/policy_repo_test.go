package storage_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aliciakaith/flowgrid/pkg/apperr"
	"github.com/aliciakaith/flowgrid/pkg/storage"
)

func createUser(t *testing.T, store *storage.Store, orgID string) *storage.User {
	t.Helper()
	u := &storage.User{OrgID: orgID, Email: "user-" + t.Name() + "@example.test", RateLimit: 5}
	require.NoError(t, store.Users.Create(context.Background(), u))
	return u
}

func TestPolicyRepo_RateSamples(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	org := createOrg(t, store)
	u := createUser(t, store, org.ID)

	since := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		require.NoError(t, store.Policy.InsertSample(ctx, u.ID, "/api/v1/flows", "10.0.0.5"))
	}

	count, err := store.Policy.CountSamplesSince(ctx, u.ID, since)
	require.NoError(t, err)
	assert.Equal(t, 5, count)

	// 清理不影响窗口内采样
	n, err := store.Policy.DeleteSamplesBefore(ctx, time.Now().UTC().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Zero(t, n)

	// 全部清理
	n, err = store.Policy.DeleteSamplesBefore(ctx, time.Now().UTC().Add(time.Minute))
	require.NoError(t, err)
	assert.EqualValues(t, 5, n)
}

func TestPolicyRepo_Allowlist(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	org := createOrg(t, store)
	u := createUser(t, store, org.ID)

	require.NoError(t, store.Policy.AddAllowlist(ctx, u.ID, "10.0.0.5", "office"))

	// 重复添加冲突
	err := store.Policy.AddAllowlist(ctx, u.ID, "10.0.0.5", "")
	assert.Equal(t, apperr.Conflict, apperr.KindOf(err))

	allowed, err := store.Policy.IsIPAllowed(ctx, u.ID, "10.0.0.5")
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = store.Policy.IsIPAllowed(ctx, u.ID, "198.51.100.7")
	require.NoError(t, err)
	assert.False(t, allowed)

	require.NoError(t, store.Policy.DeleteAllowlist(ctx, u.ID, "10.0.0.5"))
	err = store.Policy.DeleteAllowlist(ctx, u.ID, "10.0.0.5")
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))
}

func TestUserRepo_EmailCaseInsensitive(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	org := createOrg(t, store)

	u := &storage.User{OrgID: org.ID, Email: "Ada@Example.Test"}
	require.NoError(t, store.Users.Create(ctx, u))

	got, err := store.Users.GetByEmail(ctx, "ada@example.test")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	dup := &storage.User{OrgID: org.ID, Email: "ADA@example.test"}
	err = store.Users.Create(ctx, dup)
	assert.Equal(t, apperr.Conflict, apperr.KindOf(err))
}

func TestUserRepo_PendingLifecycle(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	org := createOrg(t, store)

	require.NoError(t, store.Users.UpsertPending(ctx, "new@example.test", "hash", "123456"))

	p, err := store.Users.GetPending(ctx, "NEW@example.test")
	require.NoError(t, err)
	assert.Equal(t, "123456", p.VerificationCode)

	// 提升为正式用户后pending删除
	u := &storage.User{OrgID: org.ID}
	require.NoError(t, store.Users.PromotePending(ctx, "new@example.test", u))

	_, err = store.Users.GetPending(ctx, "new@example.test")
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))

	got, err := store.Users.GetByEmail(ctx, "new@example.test")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
}

func TestUserRepo_ReactivationWindow(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	org := createOrg(t, store)
	u := createUser(t, store, org.ID)

	require.NoError(t, store.Users.Deactivate(ctx, u.ID))
	got, err := store.Users.GetByID(ctx, u.ID)
	require.NoError(t, err)
	require.NotNil(t, got.DeactivatedAt)

	// 窗口内可恢复
	require.NoError(t, store.Users.Reactivate(ctx, u.ID))
	got, err = store.Users.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Nil(t, got.DeactivatedAt)

	// 模拟停用31天：直接改库
	old := time.Now().UTC().Add(-31 * 24 * time.Hour)
	_, err = store.DB().Exec(store.DB().Rebind(`UPDATE users SET deactivated_at = ? WHERE id = ?`), old, u.ID)
	require.NoError(t, err)

	err = store.Users.Reactivate(ctx, u.ID)
	require.Error(t, err)
	assert.Equal(t, apperr.Forbidden, apperr.KindOf(err))
}
