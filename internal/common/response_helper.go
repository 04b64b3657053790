package common

import (
	"errors"
	"net/http"

	"backend/internal/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ResponseSuccess 返回成功响应
func ResponseSuccess(c *gin.Context, data any) {
	c.JSON(http.StatusOK, APIResponse{Success: true, Data: data})
}

// ResponseSuccessMessage 返回成功响应（带消息）
func ResponseSuccessMessage(c *gin.Context, message string, data any) {
	c.JSON(http.StatusOK, APIResponse{Success: true, Data: data, Message: message})
}

// ResponseCreated 返回创建成功响应（201）
func ResponseCreated(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, APIResponse{Success: true, Data: data})
}

// ResponseList 返回分页列表响应
func ResponseList(c *gin.Context, items any, total int64, req PaginationRequest) {
	c.JSON(http.StatusOK, PaginatedResponse{
		Success:    true,
		Data:       items,
		Pagination: NewPaginationMeta(req.Page, req.GetLimit(), total),
	})
}

// ResponseListMeta 返回分页列表响应（已有分页元信息）
func ResponseListMeta(c *gin.Context, items any, meta PaginationMeta) {
	c.JSON(http.StatusOK, PaginatedResponse{
		Success:    true,
		Data:       items,
		Pagination: meta,
	})
}

// ResponseErrorCode 按错误码返回错误响应
func ResponseErrorCode(c *gin.Context, code, message string) {
	c.JSON(HTTPStatus(code), APIErrorResponse{
		Success: false,
		Error:   ErrorBody{Code: code, Message: message},
	})
}

// ResponseError 将任意 error 映射为统一错误响应。
// 业务错误原样透出错误码；未知错误记录日志后统一返回 INTERNAL，
// 不向客户端泄漏内部细节。
func ResponseError(c *gin.Context, err error) {
	var bizErr *BusinessError
	if errors.As(err, &bizErr) {
		c.JSON(HTTPStatus(bizErr.Code), APIErrorResponse{
			Success: false,
			Error:   ErrorBody{Code: bizErr.Code, Message: bizErr.Message, Details: bizErr.Details},
		})
		return
	}

	logger.Get().Error("未处理的内部错误",
		zap.String("path", c.FullPath()),
		zap.String("method", c.Request.Method),
		zap.String("companyId", c.GetString("company_id")),
		zap.Error(err),
	)
	ResponseErrorCode(c, CodeInternal, "服务器内部错误")
}

// AbortWithError 中断并返回错误
func AbortWithError(c *gin.Context, code, message string) {
	ResponseErrorCode(c, code, message)
	c.Abort()
}
