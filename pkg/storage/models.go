// Package storage 提供平台的持久化层
// 所有实体按组织（Organization）划分租户边界，Repository按聚合根划分
package storage

import (
	"database/sql"
	"time"
)

// ========== 状态常量 ==========

// Flow状态
const (
	FlowStatusDraft    = "draft"
	FlowStatusActive   = "active"
	FlowStatusInactive = "inactive"
)

// FlowExecution状态
const (
	ExecStatusRunning   = "running"
	ExecStatusCompleted = "completed"
	ExecStatusFailed    = "failed"
	ExecStatusCancelled = "cancelled"
)

// 触发方式
const (
	TriggerManual   = "manual"
	TriggerWebhook  = "webhook"
	TriggerSchedule = "schedule"
	TriggerDeploy   = "deploy"
)

// ExecutionStep状态
const (
	StepStatusPending   = "pending"
	StepStatusRunning   = "running"
	StepStatusCompleted = "completed"
	StepStatusFailed    = "failed"
	StepStatusSkipped   = "skipped"
)

// 日志级别
const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)

// Integration状态
const (
	IntegrationStatusPending = "pending"
	IntegrationStatusActive  = "active"
	IntegrationStatusError   = "error"
)

// Notification类型
const (
	NotifyInfo  = "info"
	NotifyWarn  = "warn"
	NotifyError = "error"
)

// Connection环境
const (
	EnvSandbox    = "sandbox"
	EnvProduction = "production"
)

// ========== 实体 ==========

// Organization 组织（租户边界）
type Organization struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// User 用户
type User struct {
	ID               string         `db:"id" json:"id"`
	OrgID            string         `db:"org_id" json:"org_id"`
	Email            string         `db:"email" json:"email"`
	PasswordHash     sql.NullString `db:"password_hash" json:"-"`
	FirstName        sql.NullString `db:"first_name" json:"first_name,omitempty"`
	LastName         sql.NullString `db:"last_name" json:"last_name,omitempty"`
	DeactivatedAt    *time.Time     `db:"deactivated_at" json:"deactivated_at,omitempty"`
	RateLimit        int            `db:"rate_limit" json:"rate_limit"` // 每小时请求配额，≥1
	AllowIPWhitelist bool           `db:"allow_ip_whitelist" json:"allow_ip_whitelist"`
	SendErrorAlerts  bool           `db:"send_error_alerts" json:"send_error_alerts"`
	ProfilePicture   sql.NullString `db:"profile_picture" json:"profile_picture,omitempty"`
	CreatedAt        time.Time      `db:"created_at" json:"created_at"`
}

// PendingUser 注册待验证用户
// 验证成功时原子地创建User并删除本行；验证码24小时后过期
type PendingUser struct {
	Email            string    `db:"email" json:"email"`
	PasswordHash     string    `db:"password_hash" json:"-"`
	VerificationCode string    `db:"verification_code" json:"-"`
	LastSentAt       time.Time `db:"last_sent_at" json:"last_sent_at"`
}

// Flow 流程定义（组织内名称大小写不敏感唯一）
type Flow struct {
	ID        string    `db:"id" json:"id"`
	OrgID     string    `db:"org_id" json:"org_id"`
	Name      string    `db:"name" json:"name"`
	Status    string    `db:"status" json:"status"`
	IsDeleted bool      `db:"is_deleted" json:"-"`
	CreatedBy string    `db:"created_by" json:"created_by"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// FlowVersion 流程版本快照（写入后不可变）
// 版本号从1开始无间隙递增
type FlowVersion struct {
	ID        string    `db:"id" json:"id"`
	FlowID    string    `db:"flow_id" json:"flow_id"`
	Version   int       `db:"version" json:"version"`
	Graph     []byte    `db:"graph" json:"graph"`         // JSON: {nodes, edges}
	Variables []byte    `db:"variables" json:"variables"` // JSON
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// FlowExecution 一次流程执行实例
type FlowExecution struct {
	ID              string         `db:"id" json:"id"`
	FlowID          string         `db:"flow_id" json:"flow_id"`
	FlowVersion     int            `db:"flow_version" json:"flow_version"`
	Status          string         `db:"status" json:"status"`
	TriggerType     string         `db:"trigger_type" json:"trigger_type"`
	TriggerData     []byte         `db:"trigger_data" json:"trigger_data,omitempty"`
	StartedAt       time.Time      `db:"started_at" json:"started_at"`
	CompletedAt     *time.Time     `db:"completed_at" json:"completed_at,omitempty"`
	ErrorMessage    sql.NullString `db:"error_message" json:"error_message,omitempty"`
	ExecutionTimeMs sql.NullInt64  `db:"execution_time_ms" json:"execution_time_ms,omitempty"`
}

// ExecutionStep 执行中单个节点的运行记录
type ExecutionStep struct {
	ID              string         `db:"id" json:"id"`
	ExecutionID     string         `db:"execution_id" json:"execution_id"`
	NodeID          string         `db:"node_id" json:"node_id"`
	NodeType        string         `db:"node_type" json:"node_type"`
	NodeKind        sql.NullString `db:"node_kind" json:"node_kind,omitempty"`
	Status          string         `db:"status" json:"status"`
	StartedAt       *time.Time     `db:"started_at" json:"started_at,omitempty"`
	CompletedAt     *time.Time     `db:"completed_at" json:"completed_at,omitempty"`
	InputData       []byte         `db:"input_data" json:"input_data,omitempty"`
	OutputData      []byte         `db:"output_data" json:"output_data,omitempty"`
	ErrorMessage    sql.NullString `db:"error_message" json:"error_message,omitempty"`
	ExecutionTimeMs sql.NullInt64  `db:"execution_time_ms" json:"execution_time_ms,omitempty"`
	RetryCount      int            `db:"retry_count" json:"retry_count"`
}

// ExecutionLog 执行日志
type ExecutionLog struct {
	ID          int64          `db:"id" json:"id"`
	ExecutionID string         `db:"execution_id" json:"execution_id"`
	StepID      sql.NullString `db:"step_id" json:"step_id,omitempty"`
	Level       string         `db:"level" json:"level"`
	Message     string         `db:"message" json:"message"`
	Metadata    []byte         `db:"metadata" json:"metadata,omitempty"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
}

// Integration 组织声明的外部依赖及其最近健康状态
type Integration struct {
	ID          string         `db:"id" json:"id"`
	OrgID       string         `db:"org_id" json:"org_id"`
	Name        string         `db:"name" json:"name"`
	Status      string         `db:"status" json:"status"`
	TestURL     sql.NullString `db:"test_url" json:"test_url,omitempty"`
	LastChecked *time.Time     `db:"last_checked" json:"last_checked,omitempty"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
}

// Connection 第三方凭证（config_enc 为Vault加密后的不透明密文）
type Connection struct {
	ID          string    `db:"id" json:"id"`
	OwnerUserID string    `db:"owner_user_id" json:"owner_user_id"`
	Provider    string    `db:"provider" json:"provider"`
	Env         string    `db:"env" json:"env"`
	Label       string    `db:"label" json:"label"`
	ConfigEnc   []byte    `db:"config_enc" json:"-"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// Notification 用户可见事件队列
type Notification struct {
	ID        string         `db:"id" json:"id"`
	OrgID     string         `db:"org_id" json:"org_id"`
	Type      string         `db:"type" json:"type"`
	Title     string         `db:"title" json:"title"`
	Message   string         `db:"message" json:"message"`
	RelatedID sql.NullString `db:"related_id" json:"related_id,omitempty"`
	IsRead    bool           `db:"is_read" json:"is_read"`
	CreatedAt time.Time      `db:"created_at" json:"created_at"`
}

// TxEvent 对外调用的聚合采样，供仪表盘统计
type TxEvent struct {
	ID        string        `db:"id" json:"id"`
	OrgID     string        `db:"org_id" json:"org_id"`
	Success   bool          `db:"success" json:"success"`
	LatencyMs sql.NullInt64 `db:"latency_ms" json:"latency_ms,omitempty"`
	CreatedAt time.Time     `db:"created_at" json:"created_at"`
}

// APIRateSample 速率核算的追加采样
type APIRateSample struct {
	UserID    string         `db:"user_id" json:"user_id"`
	Endpoint  string         `db:"endpoint" json:"endpoint"`
	IPAddress sql.NullString `db:"ip_address" json:"ip_address,omitempty"`
	Timestamp time.Time      `db:"timestamp" json:"timestamp"`
}

// IPAllowlistEntry 用户IP白名单条目
type IPAllowlistEntry struct {
	UserID      string         `db:"user_id" json:"user_id"`
	IPAddress   string         `db:"ip_address" json:"ip_address"`
	Description sql.NullString `db:"description" json:"description,omitempty"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
}

// AuditLog 审计日志（只追加）
type AuditLog struct {
	ID         int64          `db:"id" json:"id"`
	UserID     sql.NullString `db:"user_id" json:"user_id,omitempty"`
	Action     string         `db:"action" json:"action"`
	TargetType sql.NullString `db:"target_type" json:"target_type,omitempty"`
	TargetID   sql.NullString `db:"target_id" json:"target_id,omitempty"`
	Route      sql.NullString `db:"route" json:"route,omitempty"`
	Method     sql.NullString `db:"method" json:"method,omitempty"`
	IP         sql.NullString `db:"ip" json:"ip,omitempty"`
	UserAgent  sql.NullString `db:"user_agent" json:"user_agent,omitempty"`
	StatusCode sql.NullInt64  `db:"status_code" json:"status_code,omitempty"`
	RequestID  sql.NullString `db:"request_id" json:"request_id,omitempty"`
	Metadata   []byte         `db:"metadata" json:"metadata,omitempty"`
	CreatedAt  time.Time      `db:"created_at" json:"created_at"`
}

// TxSummary 仪表盘的调用汇总
type TxSummary struct {
	Total        int     `db:"total" json:"total"`
	SuccessCount int     `db:"success_count" json:"success_count"`
	AvgLatencyMs float64 `db:"avg_latency_ms" json:"avg_latency_ms"`
}
