package common

import (
	"fmt"

	"gorm.io/gorm"
)

// BaseService 服务基类，封装通用的查询辅助方法
// 业务 Service 可嵌入此基类来复用分页/排序/搜索逻辑
type BaseService struct {
	DB *gorm.DB
}

// NewBaseService 创建 BaseService 实例
func NewBaseService(db *gorm.DB) *BaseService {
	return &BaseService{DB: db}
}

// ============================================================================
// 分页
// ============================================================================

// ApplyPagination 应用分页条件
func (s *BaseService) ApplyPagination(query *gorm.DB, req PaginationRequest) *gorm.DB {
	return query.Offset(req.GetOffset()).Limit(req.GetLimit())
}

// ============================================================================
// 排序
// ============================================================================

// ApplySorting 应用排序条件
// allowedFields: 允许的排序字段白名单（防注入）
func (s *BaseService) ApplySorting(query *gorm.DB, sortBy, sortOrder string, allowedFields []string) *gorm.DB {
	if sortBy == "" {
		return query.Order("created_at DESC")
	}

	allowed := false
	for _, field := range allowedFields {
		if field == sortBy {
			allowed = true
			break
		}
	}
	if !allowed {
		return query.Order("created_at DESC")
	}

	if sortOrder != "asc" && sortOrder != "desc" {
		sortOrder = "desc"
	}

	return query.Order(fmt.Sprintf("%s %s", sortBy, sortOrder))
}

// ============================================================================
// 关键词搜索
// ============================================================================

// ApplyKeywordSearch 应用关键词模糊搜索
// 示例: ApplyKeywordSearch(query, "可乐", []string{"name"})
func (s *BaseService) ApplyKeywordSearch(query *gorm.DB, keyword string, fields []string) *gorm.DB {
	if keyword == "" || len(fields) == 0 {
		return query
	}

	pattern := "%" + keyword + "%"
	condition := ""
	args := make([]any, 0, len(fields))
	for i, field := range fields {
		if i > 0 {
			condition += " OR "
		}
		condition += field + " LIKE ?"
		args = append(args, pattern)
	}
	return query.Where(condition, args...)
}
