package product

import "time"

// Category 商品分类
type Category struct {
	ID        string    `json:"id" gorm:"primaryKey;type:uuid"`
	CompanyID string    `json:"companyId" gorm:"type:uuid;not null;index"`
	Name      string    `json:"name" gorm:"size:50;not null"`
	SortOrder int       `json:"sortOrder" gorm:"not null;default:0"`
	CreatedAt time.Time `json:"createdAt" gorm:"not null;autoCreateTime"`
	UpdatedAt time.Time `json:"updatedAt" gorm:"not null;autoUpdateTime"`
}

// TableName 指定表名
func (Category) TableName() string {
	return "product_categories"
}

// GetCompanyID 实现 tenantdb.TenantOwned
func (c *Category) GetCompanyID() string { return c.CompanyID }

// SetCompanyID 实现 tenantdb.TenantOwned
func (c *Category) SetCompanyID(id string) { c.CompanyID = id }

// Product 零食商品。价格以日元整数存储，下架只改 is_active，不做物理删除，
// 保证历史采购明细的关联不被破坏。
type Product struct {
	ID          string    `json:"id" gorm:"primaryKey;type:uuid"`
	CompanyID   string    `json:"companyId" gorm:"type:uuid;not null;index"`
	CategoryID  *string   `json:"categoryId" gorm:"type:uuid;index"`
	Name        string    `json:"name" gorm:"size:100;not null"`
	Description string    `json:"description" gorm:"size:500"`
	Price       int64     `json:"price" gorm:"not null;check:price >= 0"`
	ImageKey    string    `json:"-" gorm:"size:255"`
	ImageURL    string    `json:"imageUrl" gorm:"-"`
	IsActive    bool      `json:"isActive" gorm:"not null;default:true;index"`
	CreatedAt   time.Time `json:"createdAt" gorm:"not null;autoCreateTime"`
	UpdatedAt   time.Time `json:"updatedAt" gorm:"not null;autoUpdateTime"`

	Category *Category `json:"category,omitempty" gorm:"foreignKey:CategoryID"`
}

// TableName 指定表名
func (Product) TableName() string {
	return "products"
}

// GetCompanyID 实现 tenantdb.TenantOwned
func (p *Product) GetCompanyID() string { return p.CompanyID }

// SetCompanyID 实现 tenantdb.TenantOwned
func (p *Product) SetCompanyID(id string) { p.CompanyID = id }
