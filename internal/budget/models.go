package budget

import "time"

// Budget 月度预算，每公司每月一行，amount 为剩余可用额度（日元）
type Budget struct {
	ID        string    `json:"id" gorm:"primaryKey;type:uuid"`
	CompanyID string    `json:"companyId" gorm:"type:uuid;not null;uniqueIndex:idx_budget_company_month"`
	Year      int       `json:"year" gorm:"not null;uniqueIndex:idx_budget_company_month"`
	Month     int       `json:"month" gorm:"not null;uniqueIndex:idx_budget_company_month"`
	Amount    int64     `json:"amount" gorm:"not null;check:amount >= 0"`
	CreatedAt time.Time `json:"createdAt" gorm:"not null;autoCreateTime"`
	UpdatedAt time.Time `json:"updatedAt" gorm:"not null;autoUpdateTime"`
}

// TableName 指定表名
func (Budget) TableName() string {
	return "budgets"
}

// GetCompanyID 实现 tenantdb.TenantOwned
func (b *Budget) GetCompanyID() string { return b.CompanyID }

// SetCompanyID 实现 tenantdb.TenantOwned
func (b *Budget) SetCompanyID(id string) { b.CompanyID = id }

// BudgetCriteria 预算基准，月度播种按此金额生成当月预算
type BudgetCriteria struct {
	ID        string    `json:"id" gorm:"primaryKey;type:uuid"`
	CompanyID string    `json:"companyId" gorm:"type:uuid;not null;uniqueIndex"`
	Amount    int64     `json:"amount" gorm:"not null;check:amount >= 0"`
	CreatedAt time.Time `json:"createdAt" gorm:"not null;autoCreateTime"`
	UpdatedAt time.Time `json:"updatedAt" gorm:"not null;autoUpdateTime"`
}

// TableName 指定表名
func (BudgetCriteria) TableName() string {
	return "budget_criteria"
}

// GetCompanyID 实现 tenantdb.TenantOwned
func (c *BudgetCriteria) GetCompanyID() string { return c.CompanyID }

// SetCompanyID 实现 tenantdb.TenantOwned
func (c *BudgetCriteria) SetCompanyID(id string) { c.CompanyID = id }
