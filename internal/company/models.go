package company

import "time"

// Company 公司（租户根实体）
// 所有租户级数据都通过 company_id 外键归属到唯一一家公司。
// 公司本身不在租户过滤范围内，不实现 tenantdb.TenantOwned。
type Company struct {
	ID             string    `json:"id" gorm:"primaryKey;type:uuid"`
	Name           string    `json:"name" gorm:"size:100;not null"`
	BusinessNumber string    `json:"businessNumber" gorm:"size:20;not null;uniqueIndex"` // 营业执照号
	CreatedAt      time.Time `json:"createdAt" gorm:"not null;autoCreateTime"`
	UpdatedAt      time.Time `json:"updatedAt" gorm:"not null;autoUpdateTime"`
}

// TableName 指定表名
func (Company) TableName() string {
	return "companies"
}
