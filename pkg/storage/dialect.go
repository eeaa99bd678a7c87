package storage

// Dialect SQL方言接口（对外导出）
// 封装不同数据库的DDL与能力差异；查询占位符统一用 ? 并经 sqlx.Rebind 转换
type Dialect interface {
	// Name 返回方言名称（"sqlite" 或 "postgres"）
	Name() string

	// DriverName 返回database/sql驱动名
	DriverName() string

	// CreateTableSQL 将基准DDL转换为该方言兼容格式
	CreateTableSQL(schema string) string

	// ConfigureDB 返回连接建立后需要执行的配置语句（如SQLite的PRAGMA）
	ConfigureDB() []string

	// SupportsNotify 是否支持 LISTEN/NOTIFY（事件总线桥接依赖）
	SupportsNotify() bool

	// NotifySchema 返回通知触发器DDL（仅postgres非空）
	NotifySchema() []string
}

// BaseSchema 返回基准DDL（SQLite风格，方言各自转换）
func BaseSchema() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS organizations (
			id VARCHAR(36) PRIMARY KEY,
			name VARCHAR(255) NOT NULL UNIQUE,
			created_at DATETIME NOT NULL
		);`,

		`CREATE TABLE IF NOT EXISTS users (
			id VARCHAR(36) PRIMARY KEY,
			org_id VARCHAR(36) NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
			email VARCHAR(255) NOT NULL,
			password_hash TEXT,
			first_name VARCHAR(100),
			last_name VARCHAR(100),
			deactivated_at DATETIME,
			rate_limit INT NOT NULL DEFAULT 100,
			allow_ip_whitelist BOOLEAN NOT NULL DEFAULT FALSE,
			send_error_alerts BOOLEAN NOT NULL DEFAULT FALSE,
			profile_picture TEXT,
			created_at DATETIME NOT NULL
		);
		CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email_lower ON users(lower(email));`,

		`CREATE TABLE IF NOT EXISTS pending_users (
			email VARCHAR(255) PRIMARY KEY,
			password_hash TEXT NOT NULL,
			verification_code VARCHAR(10) NOT NULL,
			last_sent_at DATETIME NOT NULL
		);`,

		`CREATE TABLE IF NOT EXISTS flows (
			id VARCHAR(36) PRIMARY KEY,
			org_id VARCHAR(36) NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
			name VARCHAR(255) NOT NULL,
			status VARCHAR(20) NOT NULL DEFAULT 'draft',
			is_deleted BOOLEAN NOT NULL DEFAULT FALSE,
			created_by VARCHAR(36) NOT NULL,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		);
		CREATE UNIQUE INDEX IF NOT EXISTS idx_flows_org_name ON flows(org_id, lower(name));`,

		`CREATE TABLE IF NOT EXISTS flow_versions (
			id VARCHAR(36) PRIMARY KEY,
			flow_id VARCHAR(36) NOT NULL REFERENCES flows(id) ON DELETE CASCADE,
			version INT NOT NULL,
			graph TEXT NOT NULL,
			variables TEXT,
			created_at DATETIME NOT NULL,
			UNIQUE(flow_id, version)
		);`,

		`CREATE TABLE IF NOT EXISTS flow_executions (
			id VARCHAR(36) PRIMARY KEY,
			flow_id VARCHAR(36) NOT NULL REFERENCES flows(id) ON DELETE CASCADE,
			flow_version INT NOT NULL,
			status VARCHAR(20) NOT NULL,
			trigger_type VARCHAR(20) NOT NULL,
			trigger_data TEXT,
			started_at DATETIME NOT NULL,
			completed_at DATETIME,
			error_message TEXT,
			execution_time_ms BIGINT
		);
		CREATE INDEX IF NOT EXISTS idx_flow_executions_flow_id ON flow_executions(flow_id);
		CREATE INDEX IF NOT EXISTS idx_flow_executions_status ON flow_executions(status);`,

		`CREATE TABLE IF NOT EXISTS execution_steps (
			id VARCHAR(36) PRIMARY KEY,
			execution_id VARCHAR(36) NOT NULL REFERENCES flow_executions(id) ON DELETE CASCADE,
			node_id VARCHAR(100) NOT NULL,
			node_type VARCHAR(50) NOT NULL,
			node_kind VARCHAR(50),
			status VARCHAR(20) NOT NULL,
			started_at DATETIME,
			completed_at DATETIME,
			input_data TEXT,
			output_data TEXT,
			error_message TEXT,
			execution_time_ms BIGINT,
			retry_count INT NOT NULL DEFAULT 0,
			UNIQUE(execution_id, node_id)
		);
		CREATE INDEX IF NOT EXISTS idx_execution_steps_execution_id ON execution_steps(execution_id);`,

		`CREATE TABLE IF NOT EXISTS execution_logs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			execution_id VARCHAR(36) NOT NULL REFERENCES flow_executions(id) ON DELETE CASCADE,
			step_id VARCHAR(36),
			level VARCHAR(10) NOT NULL,
			message TEXT NOT NULL,
			metadata TEXT,
			created_at DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_execution_logs_execution_id ON execution_logs(execution_id);`,

		`CREATE TABLE IF NOT EXISTS integrations (
			id VARCHAR(36) PRIMARY KEY,
			org_id VARCHAR(36) NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
			name VARCHAR(255) NOT NULL,
			status VARCHAR(20) NOT NULL DEFAULT 'pending',
			test_url TEXT,
			last_checked DATETIME,
			created_at DATETIME NOT NULL
		);
		CREATE UNIQUE INDEX IF NOT EXISTS idx_integrations_org_name ON integrations(org_id, lower(name));`,

		`CREATE TABLE IF NOT EXISTS connections (
			id VARCHAR(36) PRIMARY KEY,
			owner_user_id VARCHAR(36) NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			provider VARCHAR(50) NOT NULL,
			env VARCHAR(20) NOT NULL,
			label VARCHAR(255) NOT NULL,
			config_enc BLOB NOT NULL,
			created_at DATETIME NOT NULL
		);`,

		`CREATE TABLE IF NOT EXISTS notifications (
			id VARCHAR(36) PRIMARY KEY,
			org_id VARCHAR(36) NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
			type VARCHAR(10) NOT NULL,
			title VARCHAR(255) NOT NULL,
			message TEXT NOT NULL,
			related_id VARCHAR(36),
			is_read BOOLEAN NOT NULL DEFAULT FALSE,
			created_at DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_notifications_org_id ON notifications(org_id);`,

		`CREATE TABLE IF NOT EXISTS tx_events (
			id VARCHAR(36) PRIMARY KEY,
			org_id VARCHAR(36) NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
			success BOOLEAN NOT NULL,
			latency_ms BIGINT,
			created_at DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_tx_events_org_id ON tx_events(org_id);`,

		`CREATE TABLE IF NOT EXISTS api_rate_samples (
			user_id VARCHAR(36) NOT NULL,
			endpoint VARCHAR(255) NOT NULL,
			ip_address VARCHAR(64),
			timestamp DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_api_rate_samples_user_ts ON api_rate_samples(user_id, timestamp);`,

		`CREATE TABLE IF NOT EXISTS ip_allowlist (
			user_id VARCHAR(36) NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			ip_address VARCHAR(64) NOT NULL,
			description TEXT,
			created_at DATETIME NOT NULL,
			UNIQUE(user_id, ip_address)
		);`,

		`CREATE TABLE IF NOT EXISTS audit_logs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id VARCHAR(36),
			action VARCHAR(255) NOT NULL,
			target_type VARCHAR(50),
			target_id VARCHAR(36),
			route VARCHAR(255),
			method VARCHAR(10),
			ip VARCHAR(64),
			user_agent TEXT,
			status_code INT,
			request_id VARCHAR(36),
			metadata TEXT,
			created_at DATETIME NOT NULL
		);`,
	}
}
