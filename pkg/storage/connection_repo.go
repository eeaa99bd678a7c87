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

// ConnectionRepo 第三方凭证Repository（对外导出）
// config_enc 为Vault加密的不透明密文，明文不落库
type ConnectionRepo struct {
	db *sqlx.DB
}

// Create 保存凭证
func (r *ConnectionRepo) Create(ctx context.Context, c *Connection) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.CreatedAt = time.Now().UTC()

	query := r.db.Rebind(`
		INSERT INTO connections (id, owner_user_id, provider, env, label, config_enc, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if _, err := r.db.ExecContext(ctx, query,
		c.ID, c.OwnerUserID, c.Provider, c.Env, c.Label, c.ConfigEnc, c.CreatedAt); err != nil {
		return fmt.Errorf("保存凭证失败: %w", err)
	}
	return nil
}

// GetByID 按ID查询（限所有者）
func (r *ConnectionRepo) GetByID(ctx context.Context, ownerUserID, id string) (*Connection, error) {
	var c Connection
	query := r.db.Rebind(`SELECT * FROM connections WHERE id = ? AND owner_user_id = ?`)
	if err := r.db.GetContext(ctx, &c, query, id, ownerUserID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.E(apperr.NotFound, "connection_not_found", "凭证不存在")
		}
		return nil, fmt.Errorf("查询凭证失败: %w", err)
	}
	return &c, nil
}

// ListByOwner 列出用户的全部凭证
func (r *ConnectionRepo) ListByOwner(ctx context.Context, ownerUserID string) ([]*Connection, error) {
	items := make([]*Connection, 0)
	query := r.db.Rebind(`SELECT * FROM connections WHERE owner_user_id = ? ORDER BY created_at DESC`)
	if err := r.db.SelectContext(ctx, &items, query, ownerUserID); err != nil {
		return nil, fmt.Errorf("查询凭证列表失败: %w", err)
	}
	return items, nil
}

// Delete 删除凭证（限所有者）
func (r *ConnectionRepo) Delete(ctx context.Context, ownerUserID, id string) error {
	query := r.db.Rebind(`DELETE FROM connections WHERE id = ? AND owner_user_id = ?`)
	res, err := r.db.ExecContext(ctx, query, id, ownerUserID)
	if err != nil {
		return fmt.Errorf("删除凭证失败: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.E(apperr.NotFound, "connection_not_found", "凭证不存在")
	}
	return nil
}
