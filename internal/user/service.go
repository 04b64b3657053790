package user

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"backend/internal/auth"
	"backend/internal/common"
	"backend/internal/logger"
	"backend/internal/tenantdb"
)

// EmailSender 邀请邮件发送器，由通知模块实现
type EmailSender interface {
	Send(to, subject, body string) error
}

// Service 用户服务
type Service struct {
	common.BaseService
	db    *tenantdb.DB
	jwt   *auth.JWTService
	email EmailSender
}

// NewService 创建用户服务
func NewService(db *tenantdb.DB, jwt *auth.JWTService, email EmailSender) *Service {
	return &Service{
		BaseService: common.BaseService{DB: db.Gorm()},
		db:          db,
		jwt:         jwt,
		email:       email,
	}
}

// hashToken 刷新令牌只存散列，不存原文
func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// LoginRequest 登录请求
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// LoginResult 登录结果
type LoginResult struct {
	User   *User           `json:"user"`
	Tokens *auth.TokenPair `json:"tokens"`
}

// Authenticate 邮箱密码登录。登录发生在租户上下文建立之前，按邮箱全局查找。
func (s *Service) Authenticate(ctx context.Context, req *LoginRequest) (*LoginResult, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))

	var u User
	err := s.db.Gorm().WithContext(ctx).Where("email = ?", email).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, common.ErrUnauthenticated("邮箱或密码错误")
	}
	if err != nil {
		return nil, err
	}
	if !auth.CheckPassword(u.PasswordHash, req.Password) {
		return nil, common.ErrUnauthenticated("邮箱或密码错误")
	}
	if !u.IsActive {
		return nil, common.ErrForbidden("账号已被禁用")
	}

	tokens, err := s.jwt.GenerateTokenPair(u.ID, u.CompanyID, u.Email, u.Role)
	if err != nil {
		return nil, err
	}
	if err := s.db.Gorm().WithContext(ctx).Model(&User{}).Where("id = ?", u.ID).
		Update("refresh_token_hash", hashToken(tokens.RefreshToken)).Error; err != nil {
		return nil, err
	}

	logger.Info("用户登录", zap.String("user_id", u.ID), zap.String("company_id", u.CompanyID))
	return &LoginResult{User: &u, Tokens: tokens}, nil
}

// Refresh 用刷新令牌换取新的令牌对。要求令牌散列与存储一致，换发后旧令牌作废。
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*auth.TokenPair, error) {
	claims, err := s.jwt.ValidateToken(ctx, refreshToken)
	if err != nil {
		return nil, common.ErrUnauthenticated("刷新令牌无效")
	}
	if claims.TokenType != "refresh" {
		return nil, common.ErrUnauthenticated("刷新令牌无效")
	}

	var u User
	err = s.db.Gorm().WithContext(ctx).Where("id = ?", claims.UserID).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, common.ErrUnauthenticated("刷新令牌无效")
	}
	if err != nil {
		return nil, err
	}
	if !u.IsActive {
		return nil, common.ErrForbidden("账号已被禁用")
	}
	if u.RefreshTokenHash == "" || u.RefreshTokenHash != hashToken(refreshToken) {
		return nil, common.ErrUnauthenticated("刷新令牌无效")
	}

	tokens, err := s.jwt.GenerateTokenPair(u.ID, u.CompanyID, u.Email, u.Role)
	if err != nil {
		return nil, err
	}
	if err := s.db.Gorm().WithContext(ctx).Model(&User{}).Where("id = ?", u.ID).
		Update("refresh_token_hash", hashToken(tokens.RefreshToken)).Error; err != nil {
		return nil, err
	}
	return tokens, nil
}

// Logout 注销：拉黑当前访问令牌并清除刷新令牌
func (s *Service) Logout(ctx context.Context, userID, accessToken string) error {
	if err := s.jwt.InvalidateToken(ctx, accessToken); err != nil {
		logger.Warn("访问令牌拉黑失败", zap.Error(err), zap.String("user_id", userID))
	}
	return s.db.Gorm().WithContext(ctx).Model(&User{}).Where("id = ?", userID).
		Update("refresh_token_hash", "").Error
}

// IsActive 实现认证中间件的用户状态检查
func (s *Service) IsActive(ctx context.Context, userID string) (bool, error) {
	var u User
	err := s.db.Gorm().WithContext(ctx).Select("is_active").Where("id = ?", userID).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return u.IsActive, nil
}

// InviteRequest 邀请成员请求
type InviteRequest struct {
	Email string    `json:"email" binding:"required,email"`
	Name  string    `json:"name" binding:"required,min=1,max=100"`
	Role  auth.Role `json:"role" binding:"required"`
}

// InviteResult 邀请结果，临时密码仅在创建时返回一次
type InviteResult struct {
	User         *User  `json:"user"`
	TempPassword string `json:"tempPassword"`
}

// Invite 邀请成员加入当前公司。邀请邮件尽力而为，发送失败不影响创建。
func (s *Service) Invite(ctx context.Context, req *InviteRequest) (*InviteResult, error) {
	if !req.Role.Valid() {
		return nil, common.ErrInvalidInput("无效的角色")
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))

	var count int64
	if err := s.db.Gorm().WithContext(ctx).Model(&User{}).
		Where("email = ?", email).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, common.ErrConflict("邮箱已被使用")
	}

	tempPassword, err := generateTempPassword()
	if err != nil {
		return nil, err
	}
	passwordHash, err := auth.HashPassword(tempPassword)
	if err != nil {
		return nil, err
	}

	u := &User{
		ID:           uuid.New().String(),
		Email:        email,
		Name:         strings.TrimSpace(req.Name),
		Role:         req.Role,
		IsActive:     true,
		PasswordHash: passwordHash,
	}
	if err := s.db.Create(ctx, u); err != nil {
		return nil, err
	}

	if s.email != nil {
		subject := "零食商店账号邀请"
		body := fmt.Sprintf("<p>%s 您好，您已被邀请加入公司零食商店。</p><p>初始密码：<b>%s</b>，请登录后尽快修改。</p>",
			u.Name, tempPassword)
		if err := s.email.Send(u.Email, subject, body); err != nil {
			logger.Warn("邀请邮件发送失败", zap.Error(err), zap.String("email", u.Email))
		}
	}

	return &InviteResult{User: u, TempPassword: tempPassword}, nil
}

func generateTempPassword() (string, error) {
	buf := make([]byte, 9)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// ListRequest 成员列表请求
type ListRequest struct {
	common.PaginationRequest
	Keyword string `form:"keyword"`
	Role    string `form:"role"`
}

// List 分页查询当前公司成员
func (s *Service) List(ctx context.Context, req *ListRequest) ([]User, *common.PaginationMeta, error) {
	query := s.db.Scoped(ctx, &User{})
	if req.Keyword != "" {
		query = s.ApplyKeywordSearch(query, req.Keyword, []string{"name", "email"})
	}
	if req.Role != "" {
		query = query.Where("role = ?", req.Role)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, nil, err
	}

	var users []User
	if err := s.ApplyPagination(query, req.PaginationRequest).
		Order("created_at ASC").Find(&users).Error; err != nil {
		return nil, nil, err
	}
	meta := common.NewPaginationMeta(req.GetPage(), req.GetLimit(), total)
	return users, &meta, nil
}

// Get 查询当前公司内的单个成员
func (s *Service) Get(ctx context.Context, userID string) (*User, error) {
	var u User
	err := s.db.First(ctx, &u, "id = ?", userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, common.ErrNotFound("用户不存在")
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// UpdateRole 修改成员角色
func (s *Service) UpdateRole(ctx context.Context, actorID, userID string, role auth.Role) (*User, error) {
	if !role.Valid() {
		return nil, common.ErrInvalidInput("无效的角色")
	}
	if actorID == userID {
		return nil, common.ErrInvalidInput("不能修改自己的角色")
	}
	result := s.db.Scoped(ctx, &User{}).Where("id = ?", userID).Update("role", role)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, common.ErrNotFound("用户不存在")
	}
	return s.Get(ctx, userID)
}

// Deactivate 禁用成员。禁止操作自己，避免公司失去最后一个可用管理员。
func (s *Service) Deactivate(ctx context.Context, actorID, userID string) error {
	if actorID == userID {
		return common.ErrInvalidInput("不能禁用自己的账号")
	}
	result := s.db.Scoped(ctx, &User{}).Where("id = ?", userID).
		Updates(map[string]interface{}{"is_active": false, "refresh_token_hash": ""})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return common.ErrNotFound("用户不存在")
	}
	return nil
}

// Reactivate 恢复成员
func (s *Service) Reactivate(ctx context.Context, userID string) error {
	result := s.db.Scoped(ctx, &User{}).Where("id = ?", userID).Update("is_active", true)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return common.ErrNotFound("用户不存在")
	}
	return nil
}

// ChangePassword 修改本人密码
func (s *Service) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	var u User
	err := s.db.Gorm().WithContext(ctx).Where("id = ?", userID).First(&u).Error
	if err != nil {
		return err
	}
	if !auth.CheckPassword(u.PasswordHash, currentPassword) {
		return common.ErrInvalidInput("当前密码错误")
	}
	newHash, err := auth.HashPassword(newPassword)
	if err != nil {
		return err
	}
	return s.db.Gorm().WithContext(ctx).Model(&User{}).Where("id = ?", userID).
		Update("password_hash", newHash).Error
}
