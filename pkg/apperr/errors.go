// Package apperr 定义平台统一的错误种类
// 各组件内部用 %w 包装错误，API边界根据Kind映射HTTP状态码
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind 错误种类（对外导出）
type Kind int

const (
	Unauthenticated Kind = iota + 1 // 未认证
	Forbidden                       // 无权限（IP拒绝、跨组织访问等）
	NotFound                        // 资源不存在
	Conflict                        // 唯一性冲突
	Validation                      // 参数校验失败
	RateLimited                     // 超出速率配额
	UpstreamUnavailable             // 上游服务网络错误
	Timeout                         // 上游服务超时
	InvalidGraph                    // 图结构非法（环、悬空边）
	Internal                        // 内部错误
)

// Error 带Kind的错误结构（对外导出）
type Error struct {
	Kind    Kind   // 错误种类
	Code    string // 机器可读错误码（如 flow_not_found）
	Message string // 用户可见消息
	Err     error  // 被包装的底层错误
}

// Error 实现error接口
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap 支持errors.Is/As链
func (e *Error) Unwrap() error {
	return e.Err
}

// E 创建错误（对外导出）
func E(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// Wrap 包装底层错误（对外导出）
func Wrap(kind Kind, code, message string, err error) *Error {
	return &Error{Kind: kind, Code: code, Message: message, Err: err}
}

// KindOf 提取错误的Kind，非apperr错误一律视为Internal（对外导出）
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// CodeOf 提取错误码，非apperr错误返回 internal_error（对外导出）
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return "internal_error"
}

// MessageOf 提取用户可见消息（对外导出）
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "internal error"
}

// HTTPStatus 将Kind映射为HTTP状态码（对外导出）
func HTTPStatus(kind Kind) int {
	switch kind {
	case Unauthenticated:
		return http.StatusUnauthorized
	case Forbidden:
		return http.StatusForbidden
	case NotFound:
		return http.StatusNotFound
	case Conflict:
		return http.StatusConflict
	case Validation, InvalidGraph:
		return http.StatusBadRequest
	case RateLimited:
		return http.StatusTooManyRequests
	case UpstreamUnavailable:
		return http.StatusBadGateway
	case Timeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
