// Package postgres PostgreSQL方言实现
// 生产环境使用；提供通知触发器DDL供事件总线桥接（LISTEN/NOTIFY）
package postgres

import (
	"strings"

	_ "github.com/lib/pq"
)

// NotifyChannel 通知插入时触发的通道名（对外导出）
const NotifyChannel = "notifications_channel"

// PostgresDialect PostgreSQL方言实现（对外导出）
type PostgresDialect struct{}

// NewPostgresDialect 创建PostgreSQL方言实例
func NewPostgresDialect() *PostgresDialect {
	return &PostgresDialect{}
}

// Name 返回方言名称
func (d *PostgresDialect) Name() string {
	return "postgres"
}

// DriverName 返回驱动名
func (d *PostgresDialect) DriverName() string {
	return "postgres"
}

// CreateTableSQL 转换基准DDL为PostgreSQL兼容格式
func (d *PostgresDialect) CreateTableSQL(schema string) string {
	result := schema

	// 替换DATETIME为TIMESTAMPTZ
	result = strings.ReplaceAll(result, "DATETIME", "TIMESTAMPTZ")

	// 替换自增主键
	result = strings.ReplaceAll(result, "INTEGER PRIMARY KEY AUTOINCREMENT", "BIGSERIAL PRIMARY KEY")

	// 替换BLOB为BYTEA
	result = strings.ReplaceAll(result, "BLOB", "BYTEA")

	return result
}

// ConfigureDB PostgreSQL无需额外配置语句
func (d *PostgresDialect) ConfigureDB() []string {
	return nil
}

// SupportsNotify PostgreSQL支持LISTEN/NOTIFY
func (d *PostgresDialect) SupportsNotify() bool {
	return true
}

// NotifySchema 返回通知触发器DDL
// notifications表每次插入时向 notifications_channel 发送 {"org_id": ...}
func (d *PostgresDialect) NotifySchema() []string {
	return []string{
		`CREATE OR REPLACE FUNCTION notify_org_event() RETURNS trigger AS $$
		BEGIN
			PERFORM pg_notify('` + NotifyChannel + `', json_build_object('org_id', NEW.org_id)::text);
			RETURN NEW;
		END;
		$$ LANGUAGE plpgsql;`,

		`DROP TRIGGER IF EXISTS trg_notifications_notify ON notifications;`,

		`CREATE TRIGGER trg_notifications_notify
		AFTER INSERT ON notifications
		FOR EACH ROW EXECUTE FUNCTION notify_org_event();`,
	}
}
