package storage

import (
	"fmt"
	"log"
	"strings"

	"github.com/jmoiron/sqlx"
)

// Store 持久化入口（对外导出）
// 启动时构建一次，按引用传递到各组件；替代原实现的进程级全局连接池
type Store struct {
	db      *sqlx.DB
	dialect Dialect

	Orgs          *OrgRepo
	Users         *UserRepo
	Flows         *FlowRepo
	Executions    *ExecutionRepo
	Integrations  *IntegrationRepo
	Connections   *ConnectionRepo
	Notifications *NotificationRepo
	TxEvents      *TxEventRepo
	Policy        *PolicyRepo
}

// NewStore 基于已打开的连接创建Store并初始化表结构（对外导出）
func NewStore(db *sqlx.DB, dialect Dialect) (*Store, error) {
	s := &Store{db: db, dialect: dialect}

	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("初始化表结构失败: %w", err)
	}

	s.Orgs = &OrgRepo{db: db}
	s.Users = &UserRepo{db: db}
	s.Flows = &FlowRepo{db: db}
	s.Executions = &ExecutionRepo{db: db}
	s.Integrations = &IntegrationRepo{db: db}
	s.Connections = &ConnectionRepo{db: db}
	s.Notifications = &NotificationRepo{db: db}
	s.TxEvents = &TxEventRepo{db: db}
	s.Policy = &PolicyRepo{db: db}

	return s, nil
}

// NewStoreFromDSN 通过DSN打开连接并创建Store（对外导出）
func NewStoreFromDSN(dsn string, dialect Dialect) (*Store, error) {
	db, err := sqlx.Open(dialect.DriverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("打开数据库失败: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("数据库连接失败: %w", err)
	}

	for _, stmt := range dialect.ConfigureDB() {
		if _, err := db.Exec(stmt); err != nil {
			log.Printf("⚠️ 数据库配置语句执行失败（忽略）: %v", err)
		}
	}

	return NewStore(db, dialect)
}

// DB 返回底层连接（对外导出，监听器等组件需要DSN级访问时使用）
func (s *Store) DB() *sqlx.DB {
	return s.db
}

// Dialect 返回当前方言（对外导出）
func (s *Store) Dialect() Dialect {
	return s.dialect
}

// Close 关闭连接，排空在途请求（对外导出）
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// initSchema 执行全部DDL
func (s *Store) initSchema() error {
	stmts := BaseSchema()
	stmts = append(stmts, s.dialect.NotifySchema()...)

	for _, stmt := range stmts {
		converted := s.dialect.CreateTableSQL(stmt)
		if _, err := s.db.Exec(converted); err != nil {
			if !strings.Contains(err.Error(), "already exists") {
				return fmt.Errorf("执行DDL失败: %w", err)
			}
		}
	}
	return nil
}
