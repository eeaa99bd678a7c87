package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/aliciakaith/flowgrid/pkg/apperr"
)

// PolicyRepo 策略相关Repository：速率采样、IP白名单、审计日志（对外导出）
type PolicyRepo struct {
	db *sqlx.DB
}

// ========== 速率采样 ==========

// InsertSample 追加一次请求采样
func (r *PolicyRepo) InsertSample(ctx context.Context, userID, endpoint, ip string) error {
	var ipVal sql.NullString
	if ip != "" {
		ipVal = sql.NullString{String: ip, Valid: true}
	}
	query := r.db.Rebind(`INSERT INTO api_rate_samples (user_id, endpoint, ip_address, timestamp) VALUES (?, ?, ?, ?)`)
	if _, err := r.db.ExecContext(ctx, query, userID, endpoint, ipVal, time.Now().UTC()); err != nil {
		return fmt.Errorf("追加速率采样失败: %w", err)
	}
	return nil
}

// CountSamplesSince 统计用户自since以来的采样数
func (r *PolicyRepo) CountSamplesSince(ctx context.Context, userID string, since time.Time) (int, error) {
	var count int
	query := r.db.Rebind(`SELECT COUNT(*) FROM api_rate_samples WHERE user_id = ? AND timestamp >= ?`)
	if err := r.db.GetContext(ctx, &count, query, userID, since); err != nil {
		return 0, fmt.Errorf("统计速率采样失败: %w", err)
	}
	return count, nil
}

// DeleteSamplesBefore 删除早于cutoff的采样（定时清理任务调用，保留24小时）
func (r *PolicyRepo) DeleteSamplesBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	query := r.db.Rebind(`DELETE FROM api_rate_samples WHERE timestamp < ?`)
	res, err := r.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("清理速率采样失败: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// ========== IP白名单 ==========

// ListAllowlist 列出用户的白名单条目
func (r *PolicyRepo) ListAllowlist(ctx context.Context, userID string) ([]*IPAllowlistEntry, error) {
	items := make([]*IPAllowlistEntry, 0)
	query := r.db.Rebind(`SELECT * FROM ip_allowlist WHERE user_id = ? ORDER BY created_at ASC`)
	if err := r.db.SelectContext(ctx, &items, query, userID); err != nil {
		return nil, fmt.Errorf("查询IP白名单失败: %w", err)
	}
	return items, nil
}

// AddAllowlist 添加白名单条目
func (r *PolicyRepo) AddAllowlist(ctx context.Context, userID, ip, description string) error {
	var desc sql.NullString
	if description != "" {
		desc = sql.NullString{String: description, Valid: true}
	}
	query := r.db.Rebind(`INSERT INTO ip_allowlist (user_id, ip_address, description, created_at) VALUES (?, ?, ?, ?)`)
	if _, err := r.db.ExecContext(ctx, query, userID, ip, desc, time.Now().UTC()); err != nil {
		if isUniqueViolation(err) {
			return apperr.Wrap(apperr.Conflict, "ip_exists", "该IP已在白名单中", err)
		}
		return fmt.Errorf("添加IP白名单失败: %w", err)
	}
	return nil
}

// DeleteAllowlist 删除白名单条目
func (r *PolicyRepo) DeleteAllowlist(ctx context.Context, userID, ip string) error {
	query := r.db.Rebind(`DELETE FROM ip_allowlist WHERE user_id = ? AND ip_address = ?`)
	res, err := r.db.ExecContext(ctx, query, userID, ip)
	if err != nil {
		return fmt.Errorf("删除IP白名单失败: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.E(apperr.NotFound, "ip_not_found", "白名单中无此IP")
	}
	return nil
}

// IsIPAllowed 判断IP是否在用户白名单中
func (r *PolicyRepo) IsIPAllowed(ctx context.Context, userID, ip string) (bool, error) {
	var count int
	query := r.db.Rebind(`SELECT COUNT(*) FROM ip_allowlist WHERE user_id = ? AND ip_address = ?`)
	if err := r.db.GetContext(ctx, &count, query, userID, ip); err != nil {
		return false, fmt.Errorf("查询IP白名单失败: %w", err)
	}
	return count > 0, nil
}

// ========== 审计日志 ==========

// InsertAudit 追加审计日志（只追加；调用方不向用户暴露插入失败）
func (r *PolicyRepo) InsertAudit(ctx context.Context, a *AuditLog) error {
	a.CreatedAt = time.Now().UTC()
	query := r.db.Rebind(`
		INSERT INTO audit_logs
		(user_id, action, target_type, target_id, route, method, ip, user_agent, status_code, request_id, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if _, err := r.db.ExecContext(ctx, query,
		a.UserID, a.Action, a.TargetType, a.TargetID, a.Route, a.Method,
		a.IP, a.UserAgent, a.StatusCode, a.RequestID, a.Metadata, a.CreatedAt); err != nil {
		return fmt.Errorf("追加审计日志失败: %w", err)
	}
	return nil
}
