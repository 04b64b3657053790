package user

import (
	"time"

	"backend/internal/auth"
)

// User 公司成员
type User struct {
	ID               string    `json:"id" gorm:"primaryKey;type:uuid"`
	CompanyID        string    `json:"companyId" gorm:"type:uuid;not null;index"`
	Email            string    `json:"email" gorm:"size:255;not null;uniqueIndex"`
	Name             string    `json:"name" gorm:"size:100;not null"`
	Role             auth.Role `json:"role" gorm:"size:20;not null;default:'USER'"`
	IsActive         bool      `json:"isActive" gorm:"not null;default:true"`
	PasswordHash     string    `json:"-" gorm:"size:255;not null"`
	RefreshTokenHash string    `json:"-" gorm:"size:255"`
	CreatedAt        time.Time `json:"createdAt" gorm:"not null;autoCreateTime"`
	UpdatedAt        time.Time `json:"updatedAt" gorm:"not null;autoUpdateTime"`
}

// TableName 指定表名
func (User) TableName() string {
	return "users"
}

// GetCompanyID 实现 tenantdb.TenantOwned
func (u *User) GetCompanyID() string { return u.CompanyID }

// SetCompanyID 实现 tenantdb.TenantOwned
func (u *User) SetCompanyID(id string) { u.CompanyID = id }
