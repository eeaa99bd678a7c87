package dto

import "time"

// APIResponse 通用API响应结构
type APIResponse[T any] struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    T      `json:"data,omitempty"`
}

// NewSuccessResponse 创建成功响应
func NewSuccessResponse[T any](data T) APIResponse[T] {
	return APIResponse[T]{
		Code:    0,
		Message: "success",
		Data:    data,
	}
}

// NewErrorResponse 创建错误响应
func NewErrorResponse(code int, message string) APIResponse[any] {
	return APIResponse[any]{
		Code:    code,
		Message: message,
	}
}

// ListResponse 列表响应
type ListResponse[T any] struct {
	Total int `json:"total"`
	Items []T `json:"items"`
}

// UserProfile 用户资料视图
type UserProfile struct {
	ID             string     `json:"id"`
	OrgID          string     `json:"org_id"`
	Email          string     `json:"email"`
	FirstName      string     `json:"first_name,omitempty"`
	LastName       string     `json:"last_name,omitempty"`
	ProfilePicture string     `json:"profile_picture,omitempty"`
	RateLimit      int        `json:"rate_limit"`
	DeactivatedAt  *time.Time `json:"deactivated_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// FlowSummary Flow摘要视图
type FlowSummary struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Status    string    `json:"status"`
	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// VersionSummary 版本摘要视图
type VersionSummary struct {
	ID        string    `json:"id"`
	FlowID    string    `json:"flow_id"`
	Version   int       `json:"version"`
	CreatedAt time.Time `json:"created_at"`
}

// ExecutionSummary 执行摘要视图
type ExecutionSummary struct {
	ID              string     `json:"id"`
	FlowID          string     `json:"flow_id"`
	FlowVersion     int        `json:"flow_version"`
	Status          string     `json:"status"`
	TriggerType     string     `json:"trigger_type"`
	StartedAt       time.Time  `json:"started_at"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	ErrorMessage    string     `json:"error_message,omitempty"`
	ExecutionTimeMs int64      `json:"execution_time_ms,omitempty"`
}

// CurrentIPResponse 当前IP视图
type CurrentIPResponse struct {
	CurrentIP string `json:"currentIp"`
}

// SandboxFetchResponse 沙箱抓取结果
type SandboxFetchResponse struct {
	Status int    `json:"status"`
	Body   string `json:"body"`
}
