package cart

import (
	"time"

	"backend/internal/product"
)

// CartItem 购物车条目，同一用户同一商品只保留一行
type CartItem struct {
	ID        string    `json:"id" gorm:"primaryKey;type:uuid"`
	CompanyID string    `json:"companyId" gorm:"type:uuid;not null;index"`
	UserID    string    `json:"userId" gorm:"type:uuid;not null;uniqueIndex:idx_cart_user_product"`
	ProductID string    `json:"productId" gorm:"type:uuid;not null;uniqueIndex:idx_cart_user_product"`
	Quantity  int       `json:"quantity" gorm:"not null;check:quantity > 0"`
	CreatedAt time.Time `json:"createdAt" gorm:"not null;autoCreateTime"`
	UpdatedAt time.Time `json:"updatedAt" gorm:"not null;autoUpdateTime"`

	Product *product.Product `json:"product,omitempty" gorm:"foreignKey:ProductID"`
}

// TableName 指定表名
func (CartItem) TableName() string {
	return "cart_items"
}

// GetCompanyID 实现 tenantdb.TenantOwned
func (c *CartItem) GetCompanyID() string { return c.CompanyID }

// SetCompanyID 实现 tenantdb.TenantOwned
func (c *CartItem) SetCompanyID(id string) { c.CompanyID = id }
