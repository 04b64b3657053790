package common

// ============================================================================
// 通用请求类型
// ============================================================================

// PaginationRequest 分页请求参数
type PaginationRequest struct {
	Page  int `json:"page" form:"page" binding:"omitempty,min=1"`   // 页码，从1开始
	Limit int `json:"limit" form:"limit" binding:"omitempty,min=1"` // 每页数量
}

// DefaultPagination 返回默认分页参数
func DefaultPagination() PaginationRequest {
	return PaginationRequest{
		Page:  1,
		Limit: 20,
	}
}

// GetPage 获取页码，最小为1
func (p PaginationRequest) GetPage() int {
	if p.Page < 1 {
		return 1
	}
	return p.Page
}

// GetOffset 计算数据库查询的偏移量
func (p PaginationRequest) GetOffset() int {
	if p.Page < 1 {
		p.Page = 1
	}
	return (p.Page - 1) * p.GetLimit()
}

// GetLimit 获取每页数量，提供默认值和上限
func (p PaginationRequest) GetLimit() int {
	if p.Limit < 1 {
		return 20
	}
	if p.Limit > 100 {
		return 100
	}
	return p.Limit
}

// ============================================================================
// 统一响应格式
// ============================================================================

// APIResponse 统一API成功响应
type APIResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

// PaginatedResponse 分页响应
type PaginatedResponse struct {
	Success    bool           `json:"success"`
	Data       any            `json:"data"`
	Pagination PaginationMeta `json:"pagination"`
	Message    string         `json:"message,omitempty"`
}

// PaginationMeta 分页元信息
type PaginationMeta struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
}

// NewPaginationMeta 创建分页元信息
func NewPaginationMeta(page, limit int, total int64) PaginationMeta {
	meta := PaginationMeta{
		Page:  page,
		Limit: limit,
		Total: total,
	}
	if limit > 0 {
		meta.TotalPages = int((total + int64(limit) - 1) / int64(limit))
	}
	return meta
}

// ErrorBody 错误响应主体
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// APIErrorResponse 统一API错误响应
type APIErrorResponse struct {
	Success bool      `json:"success"` // 恒为 false
	Error   ErrorBody `json:"error"`
}
