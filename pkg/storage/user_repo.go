package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/aliciakaith/flowgrid/pkg/apperr"
)

// ReactivationWindow 停用后允许重新激活的窗口
const ReactivationWindow = 30 * 24 * time.Hour

// UserRepo 用户与注册待验证Repository（对外导出）
type UserRepo struct {
	db *sqlx.DB
}

// Create 创建用户，邮箱大小写不敏感唯一
func (r *UserRepo) Create(ctx context.Context, u *User) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.RateLimit < 1 {
		u.RateLimit = 100
	}
	u.Email = strings.ToLower(u.Email)
	u.CreatedAt = time.Now().UTC()

	query := r.db.Rebind(`
		INSERT INTO users
		(id, org_id, email, password_hash, first_name, last_name, deactivated_at,
		 rate_limit, allow_ip_whitelist, send_error_alerts, profile_picture, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := r.db.ExecContext(ctx, query,
		u.ID, u.OrgID, u.Email, u.PasswordHash, u.FirstName, u.LastName, u.DeactivatedAt,
		u.RateLimit, u.AllowIPWhitelist, u.SendErrorAlerts, u.ProfilePicture, u.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return apperr.Wrap(apperr.Conflict, "email_taken", "邮箱已被注册", err)
		}
		return fmt.Errorf("创建用户失败: %w", err)
	}
	return nil
}

// GetByID 按ID查询用户
func (r *UserRepo) GetByID(ctx context.Context, id string) (*User, error) {
	var u User
	query := r.db.Rebind(`SELECT * FROM users WHERE id = ?`)
	if err := r.db.GetContext(ctx, &u, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.E(apperr.NotFound, "user_not_found", "用户不存在")
		}
		return nil, fmt.Errorf("查询用户失败: %w", err)
	}
	return &u, nil
}

// GetByEmail 按邮箱查询用户（大小写不敏感）
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*User, error) {
	var u User
	query := r.db.Rebind(`SELECT * FROM users WHERE lower(email) = lower(?)`)
	if err := r.db.GetContext(ctx, &u, query, email); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.E(apperr.NotFound, "user_not_found", "用户不存在")
		}
		return nil, fmt.Errorf("查询用户失败: %w", err)
	}
	return &u, nil
}

// UpdateProfile 更新个人资料字段
func (r *UserRepo) UpdateProfile(ctx context.Context, id string, firstName, lastName, profilePicture sql.NullString) error {
	query := r.db.Rebind(`UPDATE users SET first_name = ?, last_name = ?, profile_picture = ? WHERE id = ?`)
	if _, err := r.db.ExecContext(ctx, query, firstName, lastName, profilePicture, id); err != nil {
		return fmt.Errorf("更新用户资料失败: %w", err)
	}
	return nil
}

// Deactivate 停用用户
func (r *UserRepo) Deactivate(ctx context.Context, id string) error {
	now := time.Now().UTC()
	query := r.db.Rebind(`UPDATE users SET deactivated_at = ? WHERE id = ? AND deactivated_at IS NULL`)
	if _, err := r.db.ExecContext(ctx, query, now, id); err != nil {
		return fmt.Errorf("停用用户失败: %w", err)
	}
	return nil
}

// Reactivate 重新激活用户
// 停用超过30天的用户不可重新激活
func (r *UserRepo) Reactivate(ctx context.Context, id string) error {
	u, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if u.DeactivatedAt == nil {
		return nil
	}
	if time.Since(*u.DeactivatedAt) > ReactivationWindow {
		return apperr.E(apperr.Forbidden, "reactivation_expired", "停用超过30天，无法重新激活")
	}

	query := r.db.Rebind(`UPDATE users SET deactivated_at = NULL WHERE id = ?`)
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("重新激活用户失败: %w", err)
	}
	return nil
}

// ListAlertRecipients 列出组织内开启错误告警的活跃用户
func (r *UserRepo) ListAlertRecipients(ctx context.Context, orgID string) ([]*User, error) {
	users := make([]*User, 0)
	query := r.db.Rebind(`SELECT * FROM users WHERE org_id = ? AND send_error_alerts = ? AND deactivated_at IS NULL`)
	if err := r.db.SelectContext(ctx, &users, query, orgID, true); err != nil {
		return nil, fmt.Errorf("查询告警用户失败: %w", err)
	}
	return users, nil
}

// ========== PendingUser ==========

// UpsertPending 创建或刷新注册待验证记录
func (r *UserRepo) UpsertPending(ctx context.Context, email, passwordHash, code string) error {
	email = strings.ToLower(email)
	now := time.Now().UTC()

	// 先删后插，保持单条记录语义（两种方言通用）
	del := r.db.Rebind(`DELETE FROM pending_users WHERE email = ?`)
	if _, err := r.db.ExecContext(ctx, del, email); err != nil {
		return fmt.Errorf("清理旧待验证记录失败: %w", err)
	}

	ins := r.db.Rebind(`INSERT INTO pending_users (email, password_hash, verification_code, last_sent_at) VALUES (?, ?, ?, ?)`)
	if _, err := r.db.ExecContext(ctx, ins, email, passwordHash, code, now); err != nil {
		return fmt.Errorf("创建待验证记录失败: %w", err)
	}
	return nil
}

// GetPending 查询待验证记录
func (r *UserRepo) GetPending(ctx context.Context, email string) (*PendingUser, error) {
	var p PendingUser
	query := r.db.Rebind(`SELECT * FROM pending_users WHERE email = lower(?)`)
	if err := r.db.GetContext(ctx, &p, query, email); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.E(apperr.NotFound, "pending_not_found", "无待验证记录")
		}
		return nil, fmt.Errorf("查询待验证记录失败: %w", err)
	}
	return &p, nil
}

// PromotePending 验证成功：在事务中创建User并删除待验证记录
func (r *UserRepo) PromotePending(ctx context.Context, email string, u *User) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("开始事务失败: %w", err)
	}
	defer tx.Rollback()

	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.RateLimit < 1 {
		u.RateLimit = 100
	}
	u.Email = strings.ToLower(email)
	u.CreatedAt = time.Now().UTC()

	ins := tx.Rebind(`
		INSERT INTO users
		(id, org_id, email, password_hash, first_name, last_name, deactivated_at,
		 rate_limit, allow_ip_whitelist, send_error_alerts, profile_picture, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if _, err := tx.ExecContext(ctx, ins,
		u.ID, u.OrgID, u.Email, u.PasswordHash, u.FirstName, u.LastName, u.DeactivatedAt,
		u.RateLimit, u.AllowIPWhitelist, u.SendErrorAlerts, u.ProfilePicture, u.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			return apperr.Wrap(apperr.Conflict, "email_taken", "邮箱已被注册", err)
		}
		return fmt.Errorf("创建用户失败: %w", err)
	}

	del := tx.Rebind(`DELETE FROM pending_users WHERE email = ?`)
	if _, err := tx.ExecContext(ctx, del, u.Email); err != nil {
		return fmt.Errorf("删除待验证记录失败: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("提交事务失败: %w", err)
	}
	return nil
}

// DeleteExpiredPending 删除过期待验证记录（定时清理任务调用）
func (r *UserRepo) DeleteExpiredPending(ctx context.Context, ttl time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-ttl)
	query := r.db.Rebind(`DELETE FROM pending_users WHERE last_sent_at < ?`)
	res, err := r.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("清理过期待验证记录失败: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
