// Package engine 流程执行引擎
// 载入版本快照、构建执行计划、按依赖顺序运行节点并持久化步骤与日志
package engine

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/aliciakaith/flowgrid/pkg/apperr"
	"github.com/aliciakaith/flowgrid/pkg/core/dag"
	"github.com/aliciakaith/flowgrid/pkg/core/flow"
	"github.com/aliciakaith/flowgrid/pkg/core/guard"
	"github.com/aliciakaith/flowgrid/pkg/provider"
	"github.com/aliciakaith/flowgrid/pkg/storage"
)

// ActionTimeout HTTP动作节点的超时
const ActionTimeout = 30 * time.Second

// DefaultGraceWindow 关停时排空在途执行的默认宽限期
const DefaultGraceWindow = 30 * time.Second

// Broadcaster 事件总线广播能力（由bus.Bus实现）
type Broadcaster interface {
	Publish(orgID, event string)
}

// Mailer 邮件发送能力（由mailer.Mailer实现）
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// StartResult StartExecution的返回值
type StartResult struct {
	ExecutionID string `json:"execution_id"`
	FlowName    string `json:"flow_name"`
	Version     int    `json:"version"`
	Status      string `json:"status"`
}

// Engine 执行引擎核心结构体（对外导出）
type Engine struct {
	store     *storage.Store
	providers *provider.Registry
	bus       Broadcaster
	mailer    Mailer
	guard     *guard.Guard

	actionClient *http.Client
	graceWindow  time.Duration

	mu       sync.RWMutex
	inflight map[string]struct{} // 在途执行ID集合
	running  bool
	quit     chan struct{} // 宽限期结束后关闭，节点间检查
	wg       sync.WaitGroup
}

// NewEngine 创建引擎实例（对外导出的工厂方法）
func NewEngine(store *storage.Store, providers *provider.Registry, g *guard.Guard, bus Broadcaster, mailer Mailer) *Engine {
	return &Engine{
		store:        store,
		providers:    providers,
		bus:          bus,
		mailer:       mailer,
		guard:        g,
		actionClient: &http.Client{Timeout: ActionTimeout},
		graceWindow:  DefaultGraceWindow,
		inflight:     make(map[string]struct{}),
		quit:         make(chan struct{}),
	}
}

// SetGraceWindow 配置关停宽限期（对外导出）
func (e *Engine) SetGraceWindow(d time.Duration) {
	e.graceWindow = d
}

// Start 启动引擎（对外导出）
func (e *Engine) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return
	}
	e.running = true
	log.Println("✅ 流程执行引擎已启动")
}

// Stop 停止引擎（对外导出）
// 排空在途执行至宽限期结束，幸存者标记为failed（error_message="shutdown"）
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	e.mu.Unlock()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Println("✅ 全部在途执行已排空")
	case <-time.After(e.graceWindow):
		log.Println("⚠️ 排空宽限期结束，标记幸存执行为failed")
	}

	close(e.quit)

	// 宽限期后仍在途的执行标记为failed；终态粘性保证已完成者不被覆盖
	e.mu.RLock()
	survivors := make([]string, 0, len(e.inflight))
	for id := range e.inflight {
		survivors = append(survivors, id)
	}
	e.mu.RUnlock()

	ctx := context.Background()
	for _, id := range survivors {
		if err := e.store.Executions.FinishExecution(ctx, id, storage.ExecStatusFailed, "shutdown"); err != nil {
			log.Printf("⚠️ 标记执行 %s 失败: %v", id, err)
		}
	}

	log.Println("🛑 流程执行引擎已停止")
}

// StartExecution 启动一次执行（对外导出）
// Flow已删除或无版本时返回NotFound；running行提交后立即返回，不等待完成
func (e *Engine) StartExecution(ctx context.Context, orgID, flowID, triggerType string, triggerData map[string]any) (*StartResult, error) {
	e.mu.RLock()
	running := e.running
	e.mu.RUnlock()
	if !running {
		return nil, apperr.E(apperr.Internal, "engine_not_running", "引擎未启动")
	}

	f, err := e.store.Flows.GetByID(ctx, orgID, flowID)
	if err != nil {
		return nil, err
	}

	version, err := e.store.Flows.GetLatestVersion(ctx, flowID)
	if err != nil {
		return nil, err
	}

	if triggerData == nil {
		triggerData = make(map[string]any)
	}
	triggerJSON, err := json.Marshal(triggerData)
	if err != nil {
		return nil, fmt.Errorf("序列化触发数据失败: %w", err)
	}

	exec, err := e.store.Executions.CreateExecution(ctx, flowID, version.Version, triggerType, triggerJSON)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.inflight[exec.ID] = struct{}{}
	e.mu.Unlock()

	e.wg.Add(1)
	go e.run(orgID, f, exec, version, triggerData)

	return &StartResult{
		ExecutionID: exec.ID,
		FlowName:    f.Name,
		Version:     version.Version,
		Status:      storage.ExecStatusRunning,
	}, nil
}

// CancelExecution 协作式取消（对外导出）
// running → cancelled，终态时为空操作；在途节点跑完自身超时后停止
func (e *Engine) CancelExecution(ctx context.Context, orgID, executionID string) error {
	ok, err := e.store.Executions.ExecutionBelongsToOrg(ctx, executionID, orgID)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.E(apperr.NotFound, "execution_not_found", "执行不存在")
	}
	return e.store.Executions.CancelExecution(ctx, executionID)
}

// DeleteExecution 删除执行及从属记录（对外导出，限组织）
func (e *Engine) DeleteExecution(ctx context.Context, orgID, executionID string) error {
	return e.store.Executions.DeleteExecution(ctx, executionID, orgID)
}

// run 单次执行的驱动协程
// node_outputs 映射仅由本协程持有，不跨协程共享
func (e *Engine) run(orgID string, f *storage.Flow, exec *storage.FlowExecution, version *storage.FlowVersion, triggerData map[string]any) {
	defer e.wg.Done()
	defer func() {
		e.mu.Lock()
		delete(e.inflight, exec.ID)
		e.mu.Unlock()
	}()

	ctx := context.Background()

	g, err := flow.ParseGraph(version.Graph)
	if err != nil {
		e.failExecution(ctx, orgID, f, exec, fmt.Sprintf("图载入失败: %v", apperr.MessageOf(err)))
		return
	}

	plan, err := dag.BuildPlan(g.NodeIDs(), g.PlanEdges())
	if err != nil {
		// 环或悬空节点：首个节点执行前即失败，不产生任何步骤
		e.failExecution(ctx, orgID, f, exec, apperr.MessageOf(err))
		return
	}

	e.logExec(ctx, exec.ID, "", storage.LogLevelInfo, fmt.Sprintf("执行计划就绪，共 %d 个节点", len(plan)), nil)

	outputs := make(map[string]any, len(plan))

	for _, nodeID := range plan {
		// 节点间检查：协作式取消与引擎关停
		select {
		case <-e.quit:
			return
		default:
		}

		current, err := e.store.Executions.GetExecution(ctx, exec.ID)
		if err == nil && current.Status == storage.ExecStatusCancelled {
			e.logExec(ctx, exec.ID, "", storage.LogLevelInfo, "收到取消请求，停止后续节点", nil)
			return
		}

		node, ok := g.Node(nodeID)
		if !ok {
			e.failExecution(ctx, orgID, f, exec, fmt.Sprintf("计划中的节点不存在: %s", nodeID))
			return
		}

		output, nodeErr := e.executeNode(ctx, orgID, exec, g, node, outputs, triggerData)
		if nodeErr != nil {
			// 快速失败：不重试、不补偿，下游节点不启动
			e.failExecution(ctx, orgID, f, exec, fmt.Sprintf("节点 %s 执行失败: %v", nodeID, nodeErr))
			return
		}
		outputs[nodeID] = output
	}

	if err := e.store.Executions.FinishExecution(ctx, exec.ID, storage.ExecStatusCompleted, ""); err != nil {
		log.Printf("⚠️ 更新执行 %s 终态失败: %v", exec.ID, err)
		return
	}
	e.logExec(ctx, exec.ID, "", storage.LogLevelInfo, "执行完成", nil)

	if _, err := e.store.Notifications.Insert(ctx, orgID, storage.NotifyInfo,
		"流程执行完成", fmt.Sprintf("流程 %s 执行成功", f.Name), exec.ID); err != nil {
		log.Printf("⚠️ 插入完成通知失败: %v", err)
	}
	e.broadcast(orgID, "notifications:update")
}

// failExecution 标记执行失败并产生错误通知
func (e *Engine) failExecution(ctx context.Context, orgID string, f *storage.Flow, exec *storage.FlowExecution, message string) {
	e.logExec(ctx, exec.ID, "", storage.LogLevelError, message, nil)

	if err := e.store.Executions.FinishExecution(ctx, exec.ID, storage.ExecStatusFailed, message); err != nil {
		log.Printf("⚠️ 更新执行 %s 终态失败: %v", exec.ID, err)
	}

	if _, err := e.store.Notifications.Insert(ctx, orgID, storage.NotifyError,
		"流程执行失败", fmt.Sprintf("流程 %s: %s", f.Name, message), exec.ID); err != nil {
		log.Printf("⚠️ 插入失败通知失败: %v", err)
	}
	e.broadcast(orgID, "notifications:update")

	e.sendErrorAlerts(ctx, orgID, f.Name, message)
}

// sendErrorAlerts 向开启告警的组织用户发送错误邮件
func (e *Engine) sendErrorAlerts(ctx context.Context, orgID, flowName, message string) {
	if e.mailer == nil {
		return
	}
	recipients, err := e.store.Users.ListAlertRecipients(ctx, orgID)
	if err != nil {
		log.Printf("⚠️ 查询告警用户失败: %v", err)
		return
	}
	subject := fmt.Sprintf("流程执行失败: %s", flowName)
	for _, u := range recipients {
		if err := e.mailer.Send(ctx, u.Email, subject, message); err != nil {
			log.Printf("⚠️ 发送告警邮件到 %s 失败: %v", u.Email, err)
		}
	}
}

// executeNode 单节点生命周期：插入步骤 → 收集输入 → 分发 → 更新步骤
func (e *Engine) executeNode(ctx context.Context, orgID string, exec *storage.FlowExecution, g *flow.Graph, node *flow.Node, outputs map[string]any, triggerData map[string]any) (map[string]any, error) {
	start := time.Now().UTC()
	step := &storage.ExecutionStep{
		ExecutionID: exec.ID,
		NodeID:      node.ID,
		NodeType:    node.Type,
		Status:      storage.StepStatusRunning,
		StartedAt:   &start,
	}
	if node.Kind != "" {
		step.NodeKind = sql.NullString{String: node.Kind, Valid: true}
	}

	if err := e.store.Executions.InsertStep(ctx, step); err != nil {
		return nil, err
	}

	e.logExec(ctx, exec.ID, step.ID, storage.LogLevelInfo, fmt.Sprintf("Executing node: %s", node.ID), nil)

	// 收集输入：每条入边在内存映射中查前驱输出
	inputs := make(map[string]any)
	for _, predID := range g.Predecessors(node.ID) {
		if out, ok := outputs[predID]; ok {
			inputs[predID] = out
		}
	}

	output, nodeErr := e.dispatch(ctx, orgID, exec.ID, step.ID, node, inputs, triggerData)

	end := time.Now().UTC()
	elapsed := end.Sub(start).Milliseconds()
	step.CompletedAt = &end
	step.ExecutionTimeMs = sql.NullInt64{Int64: elapsed, Valid: true}
	if data, err := json.Marshal(inputs); err == nil {
		step.InputData = data
	}

	if nodeErr != nil {
		step.Status = storage.StepStatusFailed
		step.ErrorMessage = sql.NullString{String: nodeErr.Error(), Valid: true}
		if err := e.store.Executions.UpdateStep(ctx, step); err != nil {
			log.Printf("⚠️ 更新失败步骤失败: %v", err)
		}
		meta, _ := json.Marshal(map[string]any{"node_id": node.ID, "node_type": node.Type})
		e.logExec(ctx, exec.ID, step.ID, storage.LogLevelError, fmt.Sprintf("节点执行失败: %v", nodeErr), meta)
		return nil, nodeErr
	}

	step.Status = storage.StepStatusCompleted
	if data, err := json.Marshal(output); err == nil {
		step.OutputData = data
	}
	if err := e.store.Executions.UpdateStep(ctx, step); err != nil {
		log.Printf("⚠️ 更新步骤失败: %v", err)
	}

	return output, nil
}

// dispatch 按节点类型分发
func (e *Engine) dispatch(ctx context.Context, orgID, executionID, stepID string, node *flow.Node, inputs map[string]any, triggerData map[string]any) (map[string]any, error) {
	switch cfg := node.DecodedConfig().(type) {
	case flow.PassConfig:
		if node.Type == flow.NodeTypeEnd {
			return map[string]any{
				"completed": true,
				"inputs":    inputs,
				"timestamp": time.Now().UTC().Format(time.RFC3339),
			}, nil
		}
		// start/trigger：输出即触发数据
		return triggerData, nil

	case flow.ConditionConfig:
		// 求值为全函数，从不失败步骤：字面量true/false直接采用，其余条件按输入是否非空决定passed
		return evalCondition(cfg.Condition, inputs), nil

	case flow.TransformConfig:
		return applyTransform(cfg, inputs)

	case flow.HTTPActionConfig:
		return e.httpAction(ctx, cfg)

	case flow.EmailActionConfig:
		return e.emailAction(ctx, cfg)

	case flow.ProviderActionConfig:
		return e.providers.Execute(ctx, orgID, cfg.Operation, cfg.Params)

	case flow.UnrecognizedConfig:
		e.logExec(ctx, executionID, stepID, storage.LogLevelWarn,
			fmt.Sprintf("未识别的节点: type=%s kind=%s", cfg.Type, cfg.Kind), nil)
		return nil, apperr.E(apperr.Validation, "unrecognized_action",
			fmt.Sprintf("未识别的动作节点: type=%s kind=%s", cfg.Type, cfg.Kind))
	}

	return nil, apperr.E(apperr.Internal, "config_not_decoded", "节点配置未解码")
}

// emailAction email动作：经Mailer能力发送
func (e *Engine) emailAction(ctx context.Context, cfg flow.EmailActionConfig) (map[string]any, error) {
	if e.mailer == nil {
		return nil, apperr.E(apperr.Validation, "mailer_not_configured", "邮件能力未配置")
	}
	if cfg.To == "" {
		return nil, apperr.E(apperr.Validation, "missing_recipient", "email节点缺少收件人")
	}
	if err := e.mailer.Send(ctx, cfg.To, cfg.Subject, cfg.Body); err != nil {
		return nil, err
	}
	return map[string]any{"sent": true, "to": cfg.To}, nil
}

// logExec 追加执行日志；失败只记进程日志
func (e *Engine) logExec(ctx context.Context, executionID, stepID, level, message string, metadata []byte) {
	if err := e.store.Executions.InsertLog(ctx, executionID, stepID, level, message, metadata); err != nil {
		log.Printf("⚠️ 追加执行日志失败: %v", err)
	}
}

// broadcast 广播总线事件；总线未接入时跳过
func (e *Engine) broadcast(orgID, event string) {
	if e.bus != nil {
		e.bus.Publish(orgID, event)
	}
}
