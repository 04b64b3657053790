package middleware

import (
	"strings"

	"backend/internal/auth"
	"backend/internal/common"
	tenantctx "backend/internal/tenant"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// GinTenantContextMiddleware 将认证主体转换为 tenant.TenantContext 并注入标准
// context.Context。仅当上游已经通过 AuthMiddleware 验证身份后使用。
// 这是租户隔离的唯一闸口：此后所有经过 tenantdb 的数据访问自动携带公司过滤。
func GinTenantContextMiddleware(logger *zap.Logger) gin.HandlerFunc {
	log := logger
	if log == nil {
		log = zap.NewNop()
	}

	return func(c *gin.Context) {
		principal, exists := auth.GetPrincipal(c)
		if !exists {
			log.Warn("missing principal before tenant middleware", zap.String("path", c.FullPath()))
			common.AbortWithError(c, common.CodeUnauthenticated, "未认证")
			return
		}

		companyID := strings.TrimSpace(principal.CompanyID)
		if companyID == "" {
			log.Warn("token missing company id", zap.String("user", principal.UserID))
			common.AbortWithError(c, common.CodeForbidden, "无公司归属")
			return
		}

		tc := tenantctx.TenantContext{
			CompanyID: companyID,
			UserID:    strings.TrimSpace(principal.UserID),
		}

		c.Set("company_id", tc.CompanyID)
		c.Set("user_id", tc.UserID)

		ctx := tenantctx.WithTenantContext(c.Request.Context(), tc)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}
