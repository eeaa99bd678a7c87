package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/aliciakaith/flowgrid/pkg/apperr"
)

// ExecutionRepo 执行聚合根Repository：执行、步骤、日志（对外导出）
// 同一执行内的写入顺序即提交顺序，读者按此顺序观察
type ExecutionRepo struct {
	db *sqlx.DB
}

// CreateExecution 写入running状态的执行行
func (r *ExecutionRepo) CreateExecution(ctx context.Context, flowID string, flowVersion int, triggerType string, triggerData []byte) (*FlowExecution, error) {
	e := &FlowExecution{
		ID:          uuid.NewString(),
		FlowID:      flowID,
		FlowVersion: flowVersion,
		Status:      ExecStatusRunning,
		TriggerType: triggerType,
		TriggerData: triggerData,
		StartedAt:   time.Now().UTC(),
	}

	query := r.db.Rebind(`
		INSERT INTO flow_executions (id, flow_id, flow_version, status, trigger_type, trigger_data, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if _, err := r.db.ExecContext(ctx, query,
		e.ID, e.FlowID, e.FlowVersion, e.Status, e.TriggerType, e.TriggerData, e.StartedAt); err != nil {
		return nil, fmt.Errorf("创建执行失败: %w", err)
	}
	return e, nil
}

// GetExecution 按ID查询执行
func (r *ExecutionRepo) GetExecution(ctx context.Context, id string) (*FlowExecution, error) {
	var e FlowExecution
	query := r.db.Rebind(`SELECT * FROM flow_executions WHERE id = ?`)
	if err := r.db.GetContext(ctx, &e, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.E(apperr.NotFound, "execution_not_found", "执行不存在")
		}
		return nil, fmt.Errorf("查询执行失败: %w", err)
	}
	return &e, nil
}

// FinishExecution 将执行置为终态；终态具有粘性，不会被二次覆盖
func (r *ExecutionRepo) FinishExecution(ctx context.Context, id, status, errorMessage string) error {
	switch status {
	case ExecStatusCompleted, ExecStatusFailed, ExecStatusCancelled:
	default:
		return apperr.E(apperr.Validation, "invalid_status", "非法的执行终态")
	}

	now := time.Now().UTC()
	var errMsg sql.NullString
	if errorMessage != "" {
		errMsg = sql.NullString{String: errorMessage, Valid: true}
	}

	// execution_time_ms 由 started_at 推算，在终态UPDATE成功后以第二条UPDATE写入
	query := r.db.Rebind(`
		UPDATE flow_executions
		SET status = ?, completed_at = ?, error_message = ?
		WHERE id = ? AND status = ?`)
	res, err := r.db.ExecContext(ctx, query, status, now, errMsg, id, ExecStatusRunning)
	if err != nil {
		return fmt.Errorf("更新执行终态失败: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// 已处于终态：按粘性语义静默返回
		return nil
	}

	upd := r.db.Rebind(`UPDATE flow_executions SET execution_time_ms = ? WHERE id = ?`)
	if e, err := r.GetExecution(ctx, id); err == nil {
		elapsed := now.Sub(e.StartedAt).Milliseconds()
		if _, err := r.db.ExecContext(ctx, upd, elapsed, id); err != nil {
			return fmt.Errorf("更新执行耗时失败: %w", err)
		}
	}
	return nil
}

// CancelExecution running → cancelled；终态时为空操作
// 协作式取消：不打断在途节点，由引擎在节点间检查
func (r *ExecutionRepo) CancelExecution(ctx context.Context, id string) error {
	return r.FinishExecution(ctx, id, ExecStatusCancelled, "")
}

// ListByFlow 列出某Flow的执行（新在前）
func (r *ExecutionRepo) ListByFlow(ctx context.Context, flowID string, limit int) ([]*FlowExecution, error) {
	if limit <= 0 {
		limit = 20
	}
	execs := make([]*FlowExecution, 0)
	query := r.db.Rebind(`SELECT * FROM flow_executions WHERE flow_id = ? ORDER BY started_at DESC LIMIT ?`)
	if err := r.db.SelectContext(ctx, &execs, query, flowID, limit); err != nil {
		return nil, fmt.Errorf("查询执行列表失败: %w", err)
	}
	return execs, nil
}

// ListRecentForOrg 列出组织内最近执行（经Flow联结限定组织范围；limit上限100）
func (r *ExecutionRepo) ListRecentForOrg(ctx context.Context, orgID string, limit int) ([]*FlowExecution, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	execs := make([]*FlowExecution, 0)
	query := r.db.Rebind(`
		SELECT e.* FROM flow_executions e
		JOIN flows f ON f.id = e.flow_id
		WHERE f.org_id = ?
		ORDER BY e.started_at DESC LIMIT ?`)
	if err := r.db.SelectContext(ctx, &execs, query, orgID, limit); err != nil {
		return nil, fmt.Errorf("查询最近执行失败: %w", err)
	}
	return execs, nil
}

// ExecutionBelongsToOrg 校验执行归属组织
func (r *ExecutionRepo) ExecutionBelongsToOrg(ctx context.Context, executionID, orgID string) (bool, error) {
	var count int
	query := r.db.Rebind(`
		SELECT COUNT(*) FROM flow_executions e
		JOIN flows f ON f.id = e.flow_id
		WHERE e.id = ? AND f.org_id = ?`)
	if err := r.db.GetContext(ctx, &count, query, executionID, orgID); err != nil {
		return false, fmt.Errorf("校验执行归属失败: %w", err)
	}
	return count > 0, nil
}

// DeleteExecution 删除执行及其从属记录：先日志、再步骤、最后执行行
func (r *ExecutionRepo) DeleteExecution(ctx context.Context, executionID, orgID string) error {
	ok, err := r.ExecutionBelongsToOrg(ctx, executionID, orgID)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.E(apperr.NotFound, "execution_not_found", "执行不存在")
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("开始事务失败: %w", err)
	}
	defer tx.Rollback()

	for _, q := range []string{
		`DELETE FROM execution_logs WHERE execution_id = ?`,
		`DELETE FROM execution_steps WHERE execution_id = ?`,
		`DELETE FROM flow_executions WHERE id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, tx.Rebind(q), executionID); err != nil {
			return fmt.Errorf("删除执行记录失败: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("提交事务失败: %w", err)
	}
	return nil
}

// ListStaleRunning 列出超过阈值仍为running的执行（读者视其为可疑）
func (r *ExecutionRepo) ListStaleRunning(ctx context.Context, threshold time.Duration) ([]*FlowExecution, error) {
	cutoff := time.Now().UTC().Add(-threshold)
	execs := make([]*FlowExecution, 0)
	query := r.db.Rebind(`SELECT * FROM flow_executions WHERE status = ? AND started_at < ?`)
	if err := r.db.SelectContext(ctx, &execs, query, ExecStatusRunning, cutoff); err != nil {
		return nil, fmt.Errorf("查询滞留执行失败: %w", err)
	}
	return execs, nil
}

// ========== 步骤 ==========

// InsertStep 插入节点步骤
func (r *ExecutionRepo) InsertStep(ctx context.Context, s *ExecutionStep) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	query := r.db.Rebind(`
		INSERT INTO execution_steps
		(id, execution_id, node_id, node_type, node_kind, status, started_at, retry_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if _, err := r.db.ExecContext(ctx, query,
		s.ID, s.ExecutionID, s.NodeID, s.NodeType, s.NodeKind, s.Status, s.StartedAt, s.RetryCount); err != nil {
		return fmt.Errorf("插入步骤失败: %w", err)
	}
	return nil
}

// UpdateStep 更新步骤终态与输入输出
func (r *ExecutionRepo) UpdateStep(ctx context.Context, s *ExecutionStep) error {
	query := r.db.Rebind(`
		UPDATE execution_steps
		SET status = ?, completed_at = ?, input_data = ?, output_data = ?, error_message = ?, execution_time_ms = ?
		WHERE id = ?`)
	if _, err := r.db.ExecContext(ctx, query,
		s.Status, s.CompletedAt, s.InputData, s.OutputData, s.ErrorMessage, s.ExecutionTimeMs, s.ID); err != nil {
		return fmt.Errorf("更新步骤失败: %w", err)
	}
	return nil
}

// GetSteps 按执行査询全部步骤（按开始时间排序）
func (r *ExecutionRepo) GetSteps(ctx context.Context, executionID string) ([]*ExecutionStep, error) {
	steps := make([]*ExecutionStep, 0)
	query := r.db.Rebind(`SELECT * FROM execution_steps WHERE execution_id = ? ORDER BY started_at ASC`)
	if err := r.db.SelectContext(ctx, &steps, query, executionID); err != nil {
		return nil, fmt.Errorf("查询步骤失败: %w", err)
	}
	return steps, nil
}

// ========== 日志 ==========

// InsertLog 追加执行日志
func (r *ExecutionRepo) InsertLog(ctx context.Context, executionID, stepID, level, message string, metadata []byte) error {
	var sid sql.NullString
	if stepID != "" {
		sid = sql.NullString{String: stepID, Valid: true}
	}
	query := r.db.Rebind(`
		INSERT INTO execution_logs (execution_id, step_id, level, message, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if _, err := r.db.ExecContext(ctx, query, executionID, sid, level, message, metadata, time.Now().UTC()); err != nil {
		return fmt.Errorf("追加日志失败: %w", err)
	}
	return nil
}

// GetLogs 査询执行日志（按插入顺序，limit限制条数）
func (r *ExecutionRepo) GetLogs(ctx context.Context, executionID string, limit int) ([]*ExecutionLog, error) {
	if limit <= 0 {
		limit = 200
	}
	logs := make([]*ExecutionLog, 0)
	query := r.db.Rebind(`SELECT * FROM execution_logs WHERE execution_id = ? ORDER BY id ASC LIMIT ?`)
	if err := r.db.SelectContext(ctx, &logs, query, executionID, limit); err != nil {
		return nil, fmt.Errorf("查询日志失败: %w", err)
	}
	return logs, nil
}
