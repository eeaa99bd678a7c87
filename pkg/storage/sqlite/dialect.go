// Package sqlite SQLite方言实现
// 主要用于单元测试与本地开发；事件总线桥接（LISTEN/NOTIFY）不可用
package sqlite

import (
	_ "github.com/mattn/go-sqlite3"
)

// SQLiteDialect SQLite方言实现（对外导出）
type SQLiteDialect struct{}

// NewSQLiteDialect 创建SQLite方言实例
func NewSQLiteDialect() *SQLiteDialect {
	return &SQLiteDialect{}
}

// Name 返回方言名称
func (d *SQLiteDialect) Name() string {
	return "sqlite"
}

// DriverName 返回驱动名
func (d *SQLiteDialect) DriverName() string {
	return "sqlite3"
}

// CreateTableSQL 基准DDL即SQLite风格，原样返回
func (d *SQLiteDialect) CreateTableSQL(schema string) string {
	return schema
}

// ConfigureDB 返回SQLite连接配置
func (d *SQLiteDialect) ConfigureDB() []string {
	return []string{
		"PRAGMA foreign_keys = ON;",
		"PRAGMA busy_timeout = 5000;",
	}
}

// SupportsNotify SQLite不支持LISTEN/NOTIFY
func (d *SQLiteDialect) SupportsNotify() bool {
	return false
}

// NotifySchema 无触发器DDL
func (d *SQLiteDialect) NotifySchema() []string {
	return nil
}
