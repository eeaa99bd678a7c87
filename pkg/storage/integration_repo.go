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

// IntegrationRepo Integration Repository（对外导出）
// 名称在组织内大小写不敏感唯一
type IntegrationRepo struct {
	db *sqlx.DB
}

// Create 创建Integration，初始状态pending
func (r *IntegrationRepo) Create(ctx context.Context, orgID, name, testURL string) (*Integration, error) {
	i := &Integration{
		ID:        uuid.NewString(),
		OrgID:     orgID,
		Name:      name,
		Status:    IntegrationStatusPending,
		CreatedAt: time.Now().UTC(),
	}
	if testURL != "" {
		i.TestURL = sql.NullString{String: testURL, Valid: true}
	}

	query := r.db.Rebind(`
		INSERT INTO integrations (id, org_id, name, status, test_url, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if _, err := r.db.ExecContext(ctx, query, i.ID, i.OrgID, i.Name, i.Status, i.TestURL, i.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			return nil, apperr.Wrap(apperr.Conflict, "integration_name_taken", "同名Integration已存在", err)
		}
		return nil, fmt.Errorf("创建Integration失败: %w", err)
	}
	return i, nil
}

// GetByID 组织范围内按ID查询
func (r *IntegrationRepo) GetByID(ctx context.Context, orgID, id string) (*Integration, error) {
	var i Integration
	query := r.db.Rebind(`SELECT * FROM integrations WHERE id = ? AND org_id = ?`)
	if err := r.db.GetContext(ctx, &i, query, id, orgID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.E(apperr.NotFound, "integration_not_found", "Integration不存在")
		}
		return nil, fmt.Errorf("查询Integration失败: %w", err)
	}
	return &i, nil
}

// ListByOrg 列出组织内全部Integration
func (r *IntegrationRepo) ListByOrg(ctx context.Context, orgID string) ([]*Integration, error) {
	items := make([]*Integration, 0)
	query := r.db.Rebind(`SELECT * FROM integrations WHERE org_id = ? ORDER BY created_at DESC`)
	if err := r.db.SelectContext(ctx, &items, query, orgID); err != nil {
		return nil, fmt.Errorf("查询Integration列表失败: %w", err)
	}
	return items, nil
}

// Update 更新名称与测试URL
func (r *IntegrationRepo) Update(ctx context.Context, orgID, id, name, testURL string) error {
	var tu sql.NullString
	if testURL != "" {
		tu = sql.NullString{String: testURL, Valid: true}
	}
	query := r.db.Rebind(`UPDATE integrations SET name = ?, test_url = ? WHERE id = ? AND org_id = ?`)
	res, err := r.db.ExecContext(ctx, query, name, tu, id, orgID)
	if err != nil {
		if isUniqueViolation(err) {
			return apperr.Wrap(apperr.Conflict, "integration_name_taken", "同名Integration已存在", err)
		}
		return fmt.Errorf("更新Integration失败: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.E(apperr.NotFound, "integration_not_found", "Integration不存在")
	}
	return nil
}

// UpdateStatus 更新健康状态并刷新last_checked（并发探测时最后写入者胜出）
func (r *IntegrationRepo) UpdateStatus(ctx context.Context, id, status string) error {
	switch status {
	case IntegrationStatusPending, IntegrationStatusActive, IntegrationStatusError:
	default:
		return apperr.E(apperr.Validation, "invalid_status", "非法的Integration状态")
	}
	query := r.db.Rebind(`UPDATE integrations SET status = ?, last_checked = ? WHERE id = ?`)
	if _, err := r.db.ExecContext(ctx, query, status, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("更新Integration状态失败: %w", err)
	}
	return nil
}

// Delete 删除Integration
func (r *IntegrationRepo) Delete(ctx context.Context, orgID, id string) error {
	query := r.db.Rebind(`DELETE FROM integrations WHERE id = ? AND org_id = ?`)
	res, err := r.db.ExecContext(ctx, query, id, orgID)
	if err != nil {
		return fmt.Errorf("删除Integration失败: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.E(apperr.NotFound, "integration_not_found", "Integration不存在")
	}
	return nil
}

// FindByNameKeyword 按名称关键字查找（启动自检用，大小写不敏感）
func (r *IntegrationRepo) FindByNameKeyword(ctx context.Context, keyword string) ([]*Integration, error) {
	items := make([]*Integration, 0)
	query := r.db.Rebind(`SELECT * FROM integrations WHERE lower(name) LIKE ?`)
	pattern := "%" + strings.ToLower(keyword) + "%"
	if err := r.db.SelectContext(ctx, &items, query, pattern); err != nil {
		return nil, fmt.Errorf("按关键字查询Integration失败: %w", err)
	}
	return items, nil
}
