package company

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"backend/internal/auth"
	"backend/internal/common"
	"backend/internal/logger"
	"backend/internal/tenantdb"
	"backend/internal/user"
)

// Service 公司服务
type Service struct {
	db *tenantdb.DB
}

// NewService 创建公司服务
func NewService(db *tenantdb.DB) *Service {
	return &Service{db: db}
}

// RegisterRequest 公司注册请求
type RegisterRequest struct {
	CompanyName    string `json:"companyName" binding:"required,min=1,max=100"`
	BusinessNumber string `json:"businessNumber" binding:"required,min=1,max=20"`
	AdminEmail     string `json:"adminEmail" binding:"required,email"`
	AdminName      string `json:"adminName" binding:"required,min=1,max=100"`
	AdminPassword  string `json:"adminPassword" binding:"required,min=8,max=72"`
}

// RegisterResult 注册结果
type RegisterResult struct {
	Company *Company   `json:"company"`
	Admin   *user.User `json:"admin"`
}

// Register 注册公司并创建初始管理员，二者在同一事务内完成
func (s *Service) Register(ctx context.Context, req *RegisterRequest) (*RegisterResult, error) {
	businessNumber := strings.TrimSpace(req.BusinessNumber)
	email := strings.ToLower(strings.TrimSpace(req.AdminEmail))

	passwordHash, err := auth.HashPassword(req.AdminPassword)
	if err != nil {
		return nil, err
	}

	company := &Company{
		ID:             uuid.New().String(),
		Name:           strings.TrimSpace(req.CompanyName),
		BusinessNumber: businessNumber,
	}
	admin := &user.User{
		ID:           uuid.New().String(),
		CompanyID:    company.ID,
		Email:        email,
		Name:         strings.TrimSpace(req.AdminName),
		Role:         auth.RoleAdmin,
		IsActive:     true,
		PasswordHash: passwordHash,
	}

	// 注册发生在任何租户上下文之外，直接使用底层连接
	err = s.db.Gorm().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&Company{}).Where("business_number = ?", businessNumber).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return common.ErrConflict("事业者番号已注册")
		}
		if err := tx.Model(&user.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return common.ErrConflict("邮箱已被使用")
		}
		if err := tx.Create(company).Error; err != nil {
			return err
		}
		return tx.Create(admin).Error
	})
	if err != nil {
		return nil, err
	}

	logger.Info("公司注册成功",
		zap.String("company_id", company.ID),
		zap.String("business_number", businessNumber))
	return &RegisterResult{Company: company, Admin: admin}, nil
}

// Get 获取当前公司信息
func (s *Service) Get(ctx context.Context, companyID string) (*Company, error) {
	var company Company
	err := s.db.Gorm().WithContext(ctx).Where("id = ?", companyID).First(&company).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, common.ErrNotFound("公司不存在")
	}
	if err != nil {
		return nil, err
	}
	return &company, nil
}

// Rename 修改公司名称
func (s *Service) Rename(ctx context.Context, companyID, name string) (*Company, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, common.ErrInvalidInput("公司名称不能为空")
	}
	result := s.db.Gorm().WithContext(ctx).Model(&Company{}).
		Where("id = ?", companyID).
		Updates(map[string]interface{}{"name": name, "updated_at": time.Now()})
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, common.ErrNotFound("公司不存在")
	}
	return s.Get(ctx, companyID)
}

// UpdateProfileRequest 公司信息与管理员密码的组合修改请求
type UpdateProfileRequest struct {
	CompanyName     string `json:"companyName" binding:"required,min=1,max=100"`
	CurrentPassword string `json:"currentPassword" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required,min=8,max=72"`
}

// UpdateProfile 在同一事务内修改公司名称和管理员密码，任一失败则整体回滚
func (s *Service) UpdateProfile(ctx context.Context, companyID, adminID string, req *UpdateProfileRequest) error {
	return s.db.Gorm().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var admin user.User
		err := tx.Where("id = ? AND company_id = ?", adminID, companyID).First(&admin).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return common.ErrNotFound("用户不存在")
		}
		if err != nil {
			return err
		}
		if !auth.CheckPassword(admin.PasswordHash, req.CurrentPassword) {
			return common.ErrInvalidInput("当前密码错误")
		}

		newHash, err := auth.HashPassword(req.NewPassword)
		if err != nil {
			return err
		}
		if err := tx.Model(&user.User{}).Where("id = ?", adminID).
			Update("password_hash", newHash).Error; err != nil {
			return err
		}

		result := tx.Model(&Company{}).Where("id = ?", companyID).
			Update("name", strings.TrimSpace(req.CompanyName))
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return common.ErrNotFound("公司不存在")
		}
		return nil
	})
}
