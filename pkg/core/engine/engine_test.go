package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aliciakaith/flowgrid/pkg/apperr"
	"github.com/aliciakaith/flowgrid/pkg/core/guard"
	"github.com/aliciakaith/flowgrid/pkg/provider"
	"github.com/aliciakaith/flowgrid/pkg/storage"
	"github.com/aliciakaith/flowgrid/pkg/storage/sqlite"
)

// setupEngineTest 创建sqlite存储与引擎
func setupEngineTest(t *testing.T) (*Engine, *storage.Store, string) {
	t.Helper()

	dbFile := filepath.Join(t.TempDir(), "engine_test.db")
	db, err := sqlx.Open("sqlite3", dbFile)
	require.NoError(t, err)
	t.Cleanup(func() {
		db.Close()
		os.Remove(dbFile)
	})

	store, err := storage.NewStore(db, sqlite.NewSQLiteDialect())
	require.NoError(t, err)

	ctx := context.Background()
	org, err := store.Orgs.Create(ctx, fmt.Sprintf("org-%s", t.Name()))
	require.NoError(t, err)

	providers := provider.NewRegistry(store.TxEvents, provider.MTNCredentials{}, provider.FlutterwaveCredentials{})
	eng := NewEngine(store, providers, &guard.Guard{AllowPrivate: true}, nil, nil)
	eng.SetGraceWindow(2 * time.Second)
	eng.Start()
	t.Cleanup(eng.Stop)

	return eng, store, org.ID
}

// createFlowWithGraph 创建Flow并保存一个版本
func createFlowWithGraph(t *testing.T, store *storage.Store, orgID, name string, graph string) *storage.Flow {
	t.Helper()
	ctx := context.Background()

	f, err := store.Flows.Create(ctx, orgID, name, "user-1")
	require.NoError(t, err)

	_, err = store.Flows.SaveVersion(ctx, f.ID, []byte(graph), nil)
	require.NoError(t, err)
	return f
}


// stepByNode 按节点ID查步骤
func stepByNode(t *testing.T, steps []*storage.ExecutionStep, nodeID string) *storage.ExecutionStep {
	t.Helper()
	for _, s := range steps {
		if s.NodeID == nodeID {
			return s
		}
	}
	t.Fatalf("未找到节点 %s 的步骤", nodeID)
	return nil
}

// waitForTerminal 轮询执行直到进入终态
func waitForTerminal(t *testing.T, store *storage.Store, execID string, timeout time.Duration) *storage.FlowExecution {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		exec, err := store.Executions.GetExecution(context.Background(), execID)
		require.NoError(t, err)
		if exec.Status != storage.ExecStatusRunning {
			return exec
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("等待执行终态超时")
	return nil
}

func TestStartExecution_HappyPath(t *testing.T) {
	eng, store, orgID := setupEngineTest(t)
	ctx := context.Background()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, `{"ok": true}`)
	}))
	defer server.Close()

	graph := fmt.Sprintf(`{
		"nodes": [
			{"id": "start", "type": "start"},
			{"id": "call", "type": "action", "kind": "http", "config": {"url": "%s", "method": "GET"}},
			{"id": "end", "type": "end"}
		],
		"edges": [
			{"from": "start", "to": "call"},
			{"from": "call", "to": "end"}
		]
	}`, server.URL)

	f := createFlowWithGraph(t, store, orgID, "Pay", graph)

	result, err := eng.StartExecution(ctx, orgID, f.ID, storage.TriggerDeploy, map[string]any{"source": "test"})
	require.NoError(t, err)
	assert.Equal(t, storage.ExecStatusRunning, result.Status)
	assert.Equal(t, "Pay", result.FlowName)
	assert.Equal(t, 1, result.Version)

	exec := waitForTerminal(t, store, result.ExecutionID, 5*time.Second)
	assert.Equal(t, storage.ExecStatusCompleted, exec.Status)
	require.NotNil(t, exec.CompletedAt)
	assert.Equal(t, storage.TriggerDeploy, exec.TriggerType)

	// 三个节点各产生一个completed步骤
	steps, err := store.Executions.GetSteps(ctx, exec.ID)
	require.NoError(t, err)
	require.Len(t, steps, 3)
	for _, s := range steps {
		assert.Equal(t, storage.StepStatusCompleted, s.Status, "节点 %s", s.NodeID)
		require.NotNil(t, s.CompletedAt)
		assert.False(t, s.CompletedAt.After(*exec.CompletedAt), "步骤完成时间不应晚于执行完成时间")
	}

	// http节点输出含响应状态
	var httpOut map[string]any
	require.NoError(t, json.Unmarshal(stepByNode(t, steps, "call").OutputData, &httpOut))
	assert.Equal(t, float64(200), httpOut["status"])

	// 至少3条info日志（每节点一条 + 计划与完成）
	logs, err := store.Executions.GetLogs(ctx, exec.ID, 0)
	require.NoError(t, err)
	infoCount := 0
	for _, l := range logs {
		if l.Level == storage.LogLevelInfo {
			infoCount++
		}
	}
	assert.GreaterOrEqual(t, infoCount, 3)

	// 完成通知已入队
	notifications, err := store.Notifications.ListByOrg(ctx, orgID, 10)
	require.NoError(t, err)
	require.NotEmpty(t, notifications)
}

func TestStartExecution_CycleFailsBeforeSteps(t *testing.T) {
	eng, store, orgID := setupEngineTest(t)
	ctx := context.Background()

	// 版本写入校验会拒绝环，这里直接落库一个带环版本模拟旧数据
	f, err := store.Flows.Create(ctx, orgID, "cyclic", "user-1")
	require.NoError(t, err)
	graph := `{
		"nodes": [{"id": "a", "type": "start"}, {"id": "b", "type": "transform"}, {"id": "c", "type": "end"}],
		"edges": [{"from": "a", "to": "b"}, {"from": "b", "to": "a"}, {"from": "b", "to": "c"}]
	}`
	_, err = store.Flows.SaveVersion(ctx, f.ID, []byte(graph), nil)
	require.NoError(t, err)

	result, err := eng.StartExecution(ctx, orgID, f.ID, storage.TriggerManual, nil)
	require.NoError(t, err)

	exec := waitForTerminal(t, store, result.ExecutionID, 5*time.Second)
	assert.Equal(t, storage.ExecStatusFailed, exec.Status)
	require.True(t, exec.ErrorMessage.Valid)
	assert.Contains(t, exec.ErrorMessage.String, "cycle")

	// 首个节点执行前失败：不产生任何步骤
	steps, err := store.Executions.GetSteps(ctx, exec.ID)
	require.NoError(t, err)
	assert.Empty(t, steps)
}

func TestStartExecution_Non2xxIsData(t *testing.T) {
	eng, store, orgID := setupEngineTest(t)
	ctx := context.Background()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		fmt.Fprint(w, `upstream sad`)
	}))
	defer server.Close()

	graph := fmt.Sprintf(`{
		"nodes": [
			{"id": "start", "type": "start"},
			{"id": "call", "type": "action", "kind": "http", "config": {"url": "%s"}}
		],
		"edges": [{"from": "start", "to": "call"}]
	}`, server.URL)
	f := createFlowWithGraph(t, store, orgID, "protocol-error", graph)

	result, err := eng.StartExecution(ctx, orgID, f.ID, storage.TriggerManual, nil)
	require.NoError(t, err)

	// 协议错误是数据：执行整体completed
	exec := waitForTerminal(t, store, result.ExecutionID, 5*time.Second)
	assert.Equal(t, storage.ExecStatusCompleted, exec.Status)

	steps, err := store.Executions.GetSteps(ctx, exec.ID)
	require.NoError(t, err)
	require.Len(t, steps, 2)

	var out map[string]any
	require.NoError(t, json.Unmarshal(stepByNode(t, steps, "call").OutputData, &out))
	assert.Equal(t, float64(502), out["status"])
	assert.Contains(t, out["error"], "upstream sad")
}

func TestStartExecution_TransportErrorFailsStep(t *testing.T) {
	eng, store, orgID := setupEngineTest(t)
	ctx := context.Background()

	// 无监听端口：连接被拒
	graph := `{
		"nodes": [
			{"id": "start", "type": "start"},
			{"id": "call", "type": "action", "kind": "http", "config": {"url": "http://127.0.0.1:1/unreachable"}},
			{"id": "end", "type": "end"}
		],
		"edges": [{"from": "start", "to": "call"}, {"from": "call", "to": "end"}]
	}`
	f := createFlowWithGraph(t, store, orgID, "transport-error", graph)

	result, err := eng.StartExecution(ctx, orgID, f.ID, storage.TriggerManual, nil)
	require.NoError(t, err)

	exec := waitForTerminal(t, store, result.ExecutionID, 5*time.Second)
	assert.Equal(t, storage.ExecStatusFailed, exec.Status)

	// 快速失败：end节点不启动
	steps, err := store.Executions.GetSteps(ctx, exec.ID)
	require.NoError(t, err)
	require.Len(t, steps, 2)
	assert.Equal(t, storage.StepStatusFailed, stepByNode(t, steps, "call").Status)
}

func TestCancelExecution_Cooperative(t *testing.T) {
	eng, store, orgID := setupEngineTest(t)
	ctx := context.Background()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(800 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	graph := fmt.Sprintf(`{
		"nodes": [
			{"id": "start", "type": "start"},
			{"id": "slow", "type": "action", "kind": "http", "config": {"url": "%s"}},
			{"id": "end", "type": "end"}
		],
		"edges": [{"from": "start", "to": "slow"}, {"from": "slow", "to": "end"}]
	}`, server.URL)
	f := createFlowWithGraph(t, store, orgID, "cancellable", graph)

	result, err := eng.StartExecution(ctx, orgID, f.ID, storage.TriggerManual, nil)
	require.NoError(t, err)

	// slow节点在飞行中取消
	time.Sleep(200 * time.Millisecond)
	require.NoError(t, eng.CancelExecution(ctx, orgID, result.ExecutionID))

	exec := waitForTerminal(t, store, result.ExecutionID, 5*time.Second)
	assert.Equal(t, storage.ExecStatusCancelled, exec.Status)

	// 给在飞节点留出完成时间，end节点不得启动
	time.Sleep(1200 * time.Millisecond)
	steps, err := store.Executions.GetSteps(ctx, exec.ID)
	require.NoError(t, err)
	for _, s := range steps {
		assert.NotEqual(t, "end", s.NodeID, "取消后不应启动后续节点")
	}

	// 取消是粘性终态：重复取消为空操作
	require.NoError(t, eng.CancelExecution(ctx, orgID, result.ExecutionID))
}

func TestStartExecution_NotFound(t *testing.T) {
	eng, store, orgID := setupEngineTest(t)
	ctx := context.Background()

	// 不存在的Flow
	_, err := eng.StartExecution(ctx, orgID, "missing-id", storage.TriggerManual, nil)
	require.Error(t, err)
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))

	// 无版本的Flow
	f, err := store.Flows.Create(ctx, orgID, "empty", "user-1")
	require.NoError(t, err)
	_, err = eng.StartExecution(ctx, orgID, f.ID, storage.TriggerManual, nil)
	require.Error(t, err)
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))

	// 软删除的Flow
	g := `{"nodes": [{"id": "s", "type": "start"}], "edges": []}`
	f2 := createFlowWithGraph(t, store, orgID, "deleted", g)
	require.NoError(t, store.Flows.SoftDelete(ctx, orgID, f2.ID))
	_, err = eng.StartExecution(ctx, orgID, f2.ID, storage.TriggerManual, nil)
	require.Error(t, err)
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))
}

func TestStartExecution_UnrecognizedActionFails(t *testing.T) {
	eng, store, orgID := setupEngineTest(t)
	ctx := context.Background()

	graph := `{
		"nodes": [
			{"id": "start", "type": "start"},
			{"id": "mystery", "type": "frobnicate", "kind": "wat"}
		],
		"edges": [{"from": "start", "to": "mystery"}]
	}`
	f := createFlowWithGraph(t, store, orgID, "unrecognized", graph)

	result, err := eng.StartExecution(ctx, orgID, f.ID, storage.TriggerManual, nil)
	require.NoError(t, err)

	exec := waitForTerminal(t, store, result.ExecutionID, 5*time.Second)
	assert.Equal(t, storage.ExecStatusFailed, exec.Status)

	steps, err := store.Executions.GetSteps(ctx, exec.ID)
	require.NoError(t, err)
	require.Len(t, steps, 2)
	mystery := stepByNode(t, steps, "mystery")
	assert.Equal(t, storage.StepStatusFailed, mystery.Status)
	assert.Contains(t, mystery.ErrorMessage.String, "frobnicate")
}
