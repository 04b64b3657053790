package auth

import (
	"context"

	"backend/internal/common"

	"github.com/gin-gonic/gin"
)

// userContextKey gin 上下文中认证主体的键
const userContextKey = "auth_principal"

// PrincipalStore 查询认证主体当前状态的最小接口，由 user 服务实现。
// 被禁用（isActive=false）的用户即使持有有效令牌也必须被拒绝。
type PrincipalStore interface {
	IsActive(ctx context.Context, userID string) (bool, error)
}

// AuthMiddleware JWT 认证中间件
func AuthMiddleware(jwtService *JWTService, store PrincipalStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			common.AbortWithError(c, common.CodeUnauthenticated, "缺少认证令牌")
			return
		}

		token, err := ParseBearerToken(authHeader)
		if err != nil {
			common.AbortWithError(c, common.CodeUnauthenticated, "无效的令牌格式")
			return
		}

		claims, err := jwtService.ValidateToken(c.Request.Context(), token)
		if err != nil {
			common.AbortWithError(c, common.CodeUnauthenticated, "令牌验证失败")
			return
		}

		if claims.TokenType != "access" {
			common.AbortWithError(c, common.CodeUnauthenticated, "令牌类型错误")
			return
		}

		if store != nil {
			active, err := store.IsActive(c.Request.Context(), claims.UserID)
			if err != nil {
				common.ResponseError(c, err)
				c.Abort()
				return
			}
			if !active {
				common.AbortWithError(c, common.CodeUnauthenticated, "账号已被禁用")
				return
			}
		}

		c.Set(userContextKey, &Principal{
			UserID:    claims.UserID,
			CompanyID: claims.CompanyID,
			Email:     claims.Email,
			Role:      claims.Role,
		})

		c.Next()
	}
}

// GetPrincipal 获取当前请求的认证主体
func GetPrincipal(c *gin.Context) (*Principal, bool) {
	value, exists := c.Get(userContextKey)
	if !exists {
		return nil, false
	}
	principal, ok := value.(*Principal)
	return principal, ok
}

// RequireRole 最低角色检查中间件，角色全序 USER < MANAGER < ADMIN
func RequireRole(min Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, exists := GetPrincipal(c)
		if !exists {
			common.AbortWithError(c, common.CodeUnauthenticated, "未认证")
			return
		}

		if !principal.Role.AtLeast(min) {
			common.AbortWithError(c, common.CodeForbidden, "权限不足")
			return
		}

		c.Next()
	}
}
