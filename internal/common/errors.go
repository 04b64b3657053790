package common

import "net/http"

// ============================================================================
// 业务错误码定义
// ============================================================================

// 错误码为稳定的机器可读字符串，客户端据此区分处理方式
// （如 CONFLICT 提示刷新重试，INVALID_INPUT 提示修正输入）。
const (
	CodeUnauthenticated    = "UNAUTHENTICATED"     // 凭证缺失/无效/过期
	CodeForbidden          = "FORBIDDEN"           // 已认证但无权限
	CodeNotFound           = "NOT_FOUND"           // 资源不存在（含跨租户访问，刻意不区分）
	CodeInvalidInput       = "INVALID_INPUT"       // 请求参数错误
	CodeConflict           = "CONFLICT"            // 唯一约束冲突或状态已变更
	CodeInsufficientBudget = "INSUFFICIENT_BUDGET" // 预算不足
	CodeInternal           = "INTERNAL"            // 未预期的内部错误
)

// httpStatusByCode 错误码到 HTTP 状态码的映射
var httpStatusByCode = map[string]int{
	CodeUnauthenticated:    http.StatusUnauthorized,
	CodeForbidden:          http.StatusForbidden,
	CodeNotFound:           http.StatusNotFound,
	CodeInvalidInput:       http.StatusBadRequest,
	CodeConflict:           http.StatusConflict,
	CodeInsufficientBudget: http.StatusConflict,
	CodeInternal:           http.StatusInternalServerError,
}

// HTTPStatus 获取错误码对应的 HTTP 状态码
func HTTPStatus(code string) int {
	if status, ok := httpStatusByCode[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// ============================================================================
// 业务错误类型
// ============================================================================

// BusinessError 业务错误，携带稳定错误码并原样穿透到 HTTP 边界
type BusinessError struct {
	Code    string
	Message string
	Details any
}

// Error 实现 error 接口
func (e *BusinessError) Error() string {
	return e.Message
}

// NewBusinessError 创建业务错误
func NewBusinessError(code, message string) *BusinessError {
	return &BusinessError{Code: code, Message: message}
}

// WithDetails 附加错误详情（仅面向客户端的结构化信息，不含内部细节）
func (e *BusinessError) WithDetails(details any) *BusinessError {
	return &BusinessError{Code: e.Code, Message: e.Message, Details: details}
}

// 常用构造函数

// ErrUnauthenticated 未认证错误
func ErrUnauthenticated(message string) *BusinessError {
	if message == "" {
		message = "未认证，请先登录"
	}
	return NewBusinessError(CodeUnauthenticated, message)
}

// ErrForbidden 无权限错误
func ErrForbidden(message string) *BusinessError {
	if message == "" {
		message = "权限不足"
	}
	return NewBusinessError(CodeForbidden, message)
}

// ErrNotFound 资源不存在错误
func ErrNotFound(message string) *BusinessError {
	if message == "" {
		message = "资源不存在"
	}
	return NewBusinessError(CodeNotFound, message)
}

// ErrInvalidInput 参数错误
func ErrInvalidInput(message string) *BusinessError {
	if message == "" {
		message = "请求参数错误"
	}
	return NewBusinessError(CodeInvalidInput, message)
}

// ErrConflict 状态冲突错误
func ErrConflict(message string) *BusinessError {
	if message == "" {
		message = "资源状态已变更，请刷新后重试"
	}
	return NewBusinessError(CodeConflict, message)
}

// ErrInsufficientBudget 预算不足错误
func ErrInsufficientBudget(message string) *BusinessError {
	if message == "" {
		message = "本月预算不足"
	}
	return NewBusinessError(CodeInsufficientBudget, message)
}
