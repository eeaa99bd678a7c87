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

func createExecution(t *testing.T, store *storage.Store, orgID string) *storage.FlowExecution {
	t.Helper()
	ctx := context.Background()

	f, err := store.Flows.Create(ctx, orgID, "exec-flow-"+t.Name(), "u-1")
	require.NoError(t, err)
	_, err = store.Flows.SaveVersion(ctx, f.ID, []byte(`{"nodes": [{"id": "s", "type": "start"}], "edges": []}`), nil)
	require.NoError(t, err)

	exec, err := store.Executions.CreateExecution(ctx, f.ID, 1, storage.TriggerManual, []byte(`{}`))
	require.NoError(t, err)
	return exec
}

func TestExecutionRepo_TerminalStateSticky(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	org := createOrg(t, store)
	exec := createExecution(t, store, org.ID)

	require.NoError(t, store.Executions.FinishExecution(ctx, exec.ID, storage.ExecStatusCompleted, ""))

	got, err := store.Executions.GetExecution(ctx, exec.ID)
	require.NoError(t, err)
	assert.Equal(t, storage.ExecStatusCompleted, got.Status)
	require.NotNil(t, got.CompletedAt, "终态必须带completed_at")

	// 终态粘性：二次标记failed不覆盖
	require.NoError(t, store.Executions.FinishExecution(ctx, exec.ID, storage.ExecStatusFailed, "late writer"))
	got, err = store.Executions.GetExecution(ctx, exec.ID)
	require.NoError(t, err)
	assert.Equal(t, storage.ExecStatusCompleted, got.Status)
	assert.False(t, got.ErrorMessage.Valid)
}

func TestExecutionRepo_CancelIsNoopOnTerminal(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	org := createOrg(t, store)
	exec := createExecution(t, store, org.ID)

	require.NoError(t, store.Executions.CancelExecution(ctx, exec.ID))
	got, err := store.Executions.GetExecution(ctx, exec.ID)
	require.NoError(t, err)
	assert.Equal(t, storage.ExecStatusCancelled, got.Status)

	// 再次取消为空操作
	require.NoError(t, store.Executions.CancelExecution(ctx, exec.ID))
}

func TestExecutionRepo_DeleteScopedAndOrdered(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	org := createOrg(t, store)
	exec := createExecution(t, store, org.ID)

	now := time.Now().UTC()
	step := &storage.ExecutionStep{
		ExecutionID: exec.ID,
		NodeID:      "s",
		NodeType:    "start",
		Status:      storage.StepStatusRunning,
		StartedAt:   &now,
	}
	require.NoError(t, store.Executions.InsertStep(ctx, step))
	require.NoError(t, store.Executions.InsertLog(ctx, exec.ID, step.ID, storage.LogLevelInfo, "hello", nil))

	// 非本组织删除被拒
	intruder, err := store.Orgs.Create(ctx, "intruder")
	require.NoError(t, err)
	err = store.Executions.DeleteExecution(ctx, exec.ID, intruder.ID)
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))

	// 本组织删除：日志、步骤、执行全部消失
	require.NoError(t, store.Executions.DeleteExecution(ctx, exec.ID, org.ID))

	_, err = store.Executions.GetExecution(ctx, exec.ID)
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))

	steps, err := store.Executions.GetSteps(ctx, exec.ID)
	require.NoError(t, err)
	assert.Empty(t, steps)

	logs, err := store.Executions.GetLogs(ctx, exec.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, logs)
}

func TestExecutionRepo_StepUniquePerNode(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	org := createOrg(t, store)
	exec := createExecution(t, store, org.ID)

	now := time.Now().UTC()
	step := &storage.ExecutionStep{
		ExecutionID: exec.ID, NodeID: "n1", NodeType: "start",
		Status: storage.StepStatusRunning, StartedAt: &now,
	}
	require.NoError(t, store.Executions.InsertStep(ctx, step))

	dup := &storage.ExecutionStep{
		ExecutionID: exec.ID, NodeID: "n1", NodeType: "start",
		Status: storage.StepStatusRunning, StartedAt: &now,
	}
	err := store.Executions.InsertStep(ctx, dup)
	require.Error(t, err, "同一执行内节点步骤唯一")
}

func TestExecutionRepo_ListRecentForOrgScoped(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	org := createOrg(t, store)
	other, err := store.Orgs.Create(ctx, "other")
	require.NoError(t, err)

	mine := createExecution(t, store, org.ID)
	theirs := createExecution(t, store, other.ID)

	execs, err := store.Executions.ListRecentForOrg(ctx, org.ID, 10)
	require.NoError(t, err)
	require.Len(t, execs, 1)
	assert.Equal(t, mine.ID, execs[0].ID)
	assert.NotEqual(t, theirs.ID, execs[0].ID)
}

func TestExecutionRepo_LogsInInsertOrder(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	org := createOrg(t, store)
	exec := createExecution(t, store, org.ID)

	for _, msg := range []string{"first", "second", "third"} {
		require.NoError(t, store.Executions.InsertLog(ctx, exec.ID, "", storage.LogLevelInfo, msg, nil))
	}

	logs, err := store.Executions.GetLogs(ctx, exec.ID, 2)
	require.NoError(t, err)
	require.Len(t, logs, 2, "limit应生效")
	assert.Equal(t, "first", logs[0].Message)
	assert.Equal(t, "second", logs[1].Message)
}
