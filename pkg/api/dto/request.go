package dto

import "encoding/json"

// SignupRequest 注册请求
type SignupRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

// VerifyRequest 注册验证请求
type VerifyRequest struct {
	Email string `json:"email" binding:"required,email"`
	Code  string `json:"code" binding:"required,len=6"`
}

// LoginRequest 登录请求
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
	Remember bool   `json:"remember"`
}

// ForgotPasswordRequest 忘记口令请求
type ForgotPasswordRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// CreateFlowRequest 创建Flow请求
type CreateFlowRequest struct {
	Name string `json:"name" binding:"required"`
}

// SaveVersionRequest 保存版本请求
type SaveVersionRequest struct {
	Graph     json.RawMessage `json:"graph" binding:"required"`
	Variables json.RawMessage `json:"variables"`
}

// UpdateFlowStatusRequest 更新Flow状态请求
type UpdateFlowStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// StartExecutionRequest 启动执行请求
type StartExecutionRequest struct {
	FlowID      string         `json:"flow_id" binding:"required"`
	TriggerType string         `json:"trigger_type"`
	TriggerData map[string]any `json:"trigger_data"`
}

// CreateIntegrationRequest 创建Integration请求
type CreateIntegrationRequest struct {
	Name    string `json:"name" binding:"required"`
	APIKey  string `json:"apiKey"`
	TestURL string `json:"testUrl"`
}

// UpdateIntegrationRequest 更新Integration请求
type UpdateIntegrationRequest struct {
	Name    string `json:"name"`
	TestURL string `json:"testUrl"`
}

// VerifyIntegrationRequest 重验Integration请求
type VerifyIntegrationRequest struct {
	APIKey string `json:"apiKey"`
}

// CreateConnectionRequest 保存凭证请求
type CreateConnectionRequest struct {
	Provider string         `json:"provider" binding:"required"`
	Env      string         `json:"env" binding:"required,oneof=sandbox production"`
	Label    string         `json:"label" binding:"required"`
	Config   map[string]any `json:"config" binding:"required"`
}

// AddAllowlistRequest 添加IP白名单请求
type AddAllowlistRequest struct {
	IPAddress   string `json:"ip_address" binding:"required"`
	Description string `json:"description"`
}

// CreateNotificationRequest 创建通知请求
type CreateNotificationRequest struct {
	Type    string `json:"type" binding:"required,oneof=info warn error"`
	Title   string `json:"title" binding:"required"`
	Message string `json:"message" binding:"required"`
}

// SandboxFetchRequest 沙箱抓取请求
type SandboxFetchRequest struct {
	URL string `json:"url" binding:"required"`
}
