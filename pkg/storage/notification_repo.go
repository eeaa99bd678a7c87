package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// NotificationRepo 通知Repository（对外导出）
// postgres方言下插入会触发 notifications_channel 通知，由事件总线桥接消费
type NotificationRepo struct {
	db *sqlx.DB
}

// Insert 追加通知
func (r *NotificationRepo) Insert(ctx context.Context, orgID, typ, title, message, relatedID string) (*Notification, error) {
	n := &Notification{
		ID:        uuid.NewString(),
		OrgID:     orgID,
		Type:      typ,
		Title:     title,
		Message:   message,
		CreatedAt: time.Now().UTC(),
	}
	if relatedID != "" {
		n.RelatedID = sql.NullString{String: relatedID, Valid: true}
	}

	query := r.db.Rebind(`
		INSERT INTO notifications (id, org_id, type, title, message, related_id, is_read, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if _, err := r.db.ExecContext(ctx, query,
		n.ID, n.OrgID, n.Type, n.Title, n.Message, n.RelatedID, false, n.CreatedAt); err != nil {
		return nil, fmt.Errorf("追加通知失败: %w", err)
	}
	return n, nil
}

// ListByOrg 列出组织通知（新在前）
func (r *NotificationRepo) ListByOrg(ctx context.Context, orgID string, limit int) ([]*Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	items := make([]*Notification, 0)
	query := r.db.Rebind(`SELECT * FROM notifications WHERE org_id = ? ORDER BY created_at DESC LIMIT ?`)
	if err := r.db.SelectContext(ctx, &items, query, orgID, limit); err != nil {
		return nil, fmt.Errorf("查询通知失败: %w", err)
	}
	return items, nil
}

// MarkRead 标记单条已读
func (r *NotificationRepo) MarkRead(ctx context.Context, orgID, id string) error {
	query := r.db.Rebind(`UPDATE notifications SET is_read = ? WHERE id = ? AND org_id = ?`)
	if _, err := r.db.ExecContext(ctx, query, true, id, orgID); err != nil {
		return fmt.Errorf("标记通知已读失败: %w", err)
	}
	return nil
}

// MarkAllRead 标记组织内全部已读
func (r *NotificationRepo) MarkAllRead(ctx context.Context, orgID string) error {
	query := r.db.Rebind(`UPDATE notifications SET is_read = ? WHERE org_id = ? AND is_read = ?`)
	if _, err := r.db.ExecContext(ctx, query, true, orgID, false); err != nil {
		return fmt.Errorf("标记全部已读失败: %w", err)
	}
	return nil
}
