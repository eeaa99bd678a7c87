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

// OrgRepo 组织Repository（对外导出）
type OrgRepo struct {
	db *sqlx.DB
}

// Create 创建组织，名称全局唯一
func (r *OrgRepo) Create(ctx context.Context, name string) (*Organization, error) {
	org := &Organization{
		ID:        uuid.NewString(),
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}

	query := r.db.Rebind(`INSERT INTO organizations (id, name, created_at) VALUES (?, ?, ?)`)
	if _, err := r.db.ExecContext(ctx, query, org.ID, org.Name, org.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			return nil, apperr.Wrap(apperr.Conflict, "org_name_taken", "组织名称已存在", err)
		}
		return nil, fmt.Errorf("创建组织失败: %w", err)
	}
	return org, nil
}

// GetByID 按ID查询组织
func (r *OrgRepo) GetByID(ctx context.Context, id string) (*Organization, error) {
	var org Organization
	query := r.db.Rebind(`SELECT * FROM organizations WHERE id = ?`)
	if err := r.db.GetContext(ctx, &org, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.E(apperr.NotFound, "org_not_found", "组织不存在")
		}
		return nil, fmt.Errorf("查询组织失败: %w", err)
	}
	return &org, nil
}

// GetByName 按名称查询组织
func (r *OrgRepo) GetByName(ctx context.Context, name string) (*Organization, error) {
	var org Organization
	query := r.db.Rebind(`SELECT * FROM organizations WHERE name = ?`)
	if err := r.db.GetContext(ctx, &org, query, name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.E(apperr.NotFound, "org_not_found", "组织不存在")
		}
		return nil, fmt.Errorf("查询组织失败: %w", err)
	}
	return &org, nil
}

// isUniqueViolation 判断错误是否为唯一性约束冲突（跨方言）
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || // sqlite
		strings.Contains(msg, "duplicate key value") // postgres
}
