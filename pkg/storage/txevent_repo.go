package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// TxEventRepo 对外调用采样Repository（对外导出）
type TxEventRepo struct {
	db *sqlx.DB
}

// Insert 追加一次对外调用采样
func (r *TxEventRepo) Insert(ctx context.Context, orgID string, success bool, latencyMs int64) error {
	var lat sql.NullInt64
	if latencyMs >= 0 {
		lat = sql.NullInt64{Int64: latencyMs, Valid: true}
	}
	query := r.db.Rebind(`INSERT INTO tx_events (id, org_id, success, latency_ms, created_at) VALUES (?, ?, ?, ?, ?)`)
	if _, err := r.db.ExecContext(ctx, query, uuid.NewString(), orgID, success, lat, time.Now().UTC()); err != nil {
		return fmt.Errorf("追加调用采样失败: %w", err)
	}
	return nil
}

// SummaryByOrg 组织内自since以来的调用汇总（仪表盘用）
func (r *TxEventRepo) SummaryByOrg(ctx context.Context, orgID string, since time.Time) (*TxSummary, error) {
	var s TxSummary
	query := r.db.Rebind(`
		SELECT
			COUNT(*) AS total,
			COALESCE(SUM(CASE WHEN success THEN 1 ELSE 0 END), 0) AS success_count,
			COALESCE(AVG(latency_ms), 0) AS avg_latency_ms
		FROM tx_events
		WHERE org_id = ? AND created_at >= ?`)
	if err := r.db.GetContext(ctx, &s, query, orgID, since); err != nil {
		return nil, fmt.Errorf("查询调用汇总失败: %w", err)
	}
	return &s, nil
}
