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

// FlowRepo Flow聚合根Repository：Flow定义 + 版本快照（对外导出）
type FlowRepo struct {
	db *sqlx.DB
}

// Create 创建Flow，组织内名称大小写不敏感唯一
func (r *FlowRepo) Create(ctx context.Context, orgID, name, createdBy string) (*Flow, error) {
	now := time.Now().UTC()
	f := &Flow{
		ID:        uuid.NewString(),
		OrgID:     orgID,
		Name:      name,
		Status:    FlowStatusDraft,
		CreatedBy: createdBy,
		CreatedAt: now,
		UpdatedAt: now,
	}

	query := r.db.Rebind(`
		INSERT INTO flows (id, org_id, name, status, is_deleted, created_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if _, err := r.db.ExecContext(ctx, query,
		f.ID, f.OrgID, f.Name, f.Status, false, f.CreatedBy, f.CreatedAt, f.UpdatedAt); err != nil {
		if isUniqueViolation(err) {
			return nil, apperr.Wrap(apperr.Conflict, "flow_name_taken", "同名Flow已存在", err)
		}
		return nil, fmt.Errorf("创建Flow失败: %w", err)
	}
	return f, nil
}

// GetByID 按ID查询Flow（组织范围内，排除软删除）
func (r *FlowRepo) GetByID(ctx context.Context, orgID, id string) (*Flow, error) {
	var f Flow
	query := r.db.Rebind(`SELECT * FROM flows WHERE id = ? AND org_id = ? AND is_deleted = ?`)
	if err := r.db.GetContext(ctx, &f, query, id, orgID, false); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.E(apperr.NotFound, "flow_not_found", "Flow不存在")
		}
		return nil, fmt.Errorf("查询Flow失败: %w", err)
	}
	return &f, nil
}

// ListByOrg 列出组织内全部未删除Flow
func (r *FlowRepo) ListByOrg(ctx context.Context, orgID string) ([]*Flow, error) {
	flows := make([]*Flow, 0)
	query := r.db.Rebind(`SELECT * FROM flows WHERE org_id = ? AND is_deleted = ? ORDER BY created_at DESC`)
	if err := r.db.SelectContext(ctx, &flows, query, orgID, false); err != nil {
		return nil, fmt.Errorf("查询Flow列表失败: %w", err)
	}
	return flows, nil
}

// SoftDelete 软删除Flow；组织范围的列表接口不再返回该行
func (r *FlowRepo) SoftDelete(ctx context.Context, orgID, id string) error {
	query := r.db.Rebind(`UPDATE flows SET is_deleted = ?, updated_at = ? WHERE id = ? AND org_id = ? AND is_deleted = ?`)
	res, err := r.db.ExecContext(ctx, query, true, time.Now().UTC(), id, orgID, false)
	if err != nil {
		return fmt.Errorf("删除Flow失败: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.E(apperr.NotFound, "flow_not_found", "Flow不存在")
	}
	return nil
}

// UpdateStatus 更新Flow状态（draft/active/inactive）
func (r *FlowRepo) UpdateStatus(ctx context.Context, orgID, id, status string) error {
	switch status {
	case FlowStatusDraft, FlowStatusActive, FlowStatusInactive:
	default:
		return apperr.E(apperr.Validation, "invalid_status", "非法的Flow状态")
	}

	query := r.db.Rebind(`UPDATE flows SET status = ?, updated_at = ? WHERE id = ? AND org_id = ? AND is_deleted = ?`)
	res, err := r.db.ExecContext(ctx, query, status, time.Now().UTC(), id, orgID, false)
	if err != nil {
		return fmt.Errorf("更新Flow状态失败: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.E(apperr.NotFound, "flow_not_found", "Flow不存在")
	}
	return nil
}

// ========== 版本快照 ==========

// SaveVersion 保存新版本（事务内计算 max(version)+1，保证无间隙递增）
func (r *FlowRepo) SaveVersion(ctx context.Context, flowID string, graph, variables []byte) (*FlowVersion, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("开始事务失败: %w", err)
	}
	defer tx.Rollback()

	var maxVersion sql.NullInt64
	q := tx.Rebind(`SELECT MAX(version) FROM flow_versions WHERE flow_id = ?`)
	if err := tx.GetContext(ctx, &maxVersion, q, flowID); err != nil {
		return nil, fmt.Errorf("查询最大版本号失败: %w", err)
	}

	v := &FlowVersion{
		ID:        uuid.NewString(),
		FlowID:    flowID,
		Version:   int(maxVersion.Int64) + 1,
		Graph:     graph,
		Variables: variables,
		CreatedAt: time.Now().UTC(),
	}

	ins := tx.Rebind(`INSERT INTO flow_versions (id, flow_id, version, graph, variables, created_at) VALUES (?, ?, ?, ?, ?, ?)`)
	if _, err := tx.ExecContext(ctx, ins, v.ID, v.FlowID, v.Version, v.Graph, v.Variables, v.CreatedAt); err != nil {
		return nil, fmt.Errorf("保存版本失败: %w", err)
	}

	upd := tx.Rebind(`UPDATE flows SET updated_at = ? WHERE id = ?`)
	if _, err := tx.ExecContext(ctx, upd, time.Now().UTC(), flowID); err != nil {
		return nil, fmt.Errorf("更新Flow时间戳失败: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("提交事务失败: %w", err)
	}
	return v, nil
}

// ListVersions 列出Flow的全部版本（新在前）
func (r *FlowRepo) ListVersions(ctx context.Context, flowID string) ([]*FlowVersion, error) {
	versions := make([]*FlowVersion, 0)
	query := r.db.Rebind(`SELECT * FROM flow_versions WHERE flow_id = ? ORDER BY version DESC`)
	if err := r.db.SelectContext(ctx, &versions, query, flowID); err != nil {
		return nil, fmt.Errorf("查询版本列表失败: %w", err)
	}
	return versions, nil
}

// GetVersion 按版本号查询
func (r *FlowRepo) GetVersion(ctx context.Context, flowID string, version int) (*FlowVersion, error) {
	var v FlowVersion
	query := r.db.Rebind(`SELECT * FROM flow_versions WHERE flow_id = ? AND version = ?`)
	if err := r.db.GetContext(ctx, &v, query, flowID, version); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.E(apperr.NotFound, "version_not_found", "版本不存在")
		}
		return nil, fmt.Errorf("查询版本失败: %w", err)
	}
	return &v, nil
}

// GetLatestVersion 查询最新版本；无版本时返回NotFound
func (r *FlowRepo) GetLatestVersion(ctx context.Context, flowID string) (*FlowVersion, error) {
	var v FlowVersion
	query := r.db.Rebind(`SELECT * FROM flow_versions WHERE flow_id = ? ORDER BY version DESC LIMIT 1`)
	if err := r.db.GetContext(ctx, &v, query, flowID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.E(apperr.NotFound, "no_versions", "Flow尚无版本")
		}
		return nil, fmt.Errorf("查询最新版本失败: %w", err)
	}
	return &v, nil
}

// ListScheduled 列出全部未删除的active Flow（定时调度注册用；不按schedule变量筛选，由调用方读取版本变量判断）
func (r *FlowRepo) ListScheduled(ctx context.Context) ([]*Flow, error) {
	flows := make([]*Flow, 0)
	query := r.db.Rebind(`SELECT * FROM flows WHERE status = ? AND is_deleted = ?`)
	if err := r.db.SelectContext(ctx, &flows, query, FlowStatusActive, false); err != nil {
		return nil, fmt.Errorf("查询active Flow失败: %w", err)
	}
	return flows, nil
}
