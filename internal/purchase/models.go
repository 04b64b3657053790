package purchase

import (
	"time"

	"backend/internal/product"
)

// 申请状态
const (
	StatusPending   = "PENDING"
	StatusApproved  = "APPROVED"
	StatusRejected  = "REJECTED"
	StatusCancelled = "CANCELLED"
)

// PurchaseRequest 采购申请。TotalPrice 为商品小计与运费之和，
// 创建后金额不再随商品调价变动。
type PurchaseRequest struct {
	ID             string     `json:"id" gorm:"primaryKey;type:uuid"`
	CompanyID      string     `json:"companyId" gorm:"type:uuid;not null;index"`
	RequesterID    string     `json:"requesterId" gorm:"type:uuid;not null;index"`
	ApproverID     *string    `json:"approverId" gorm:"type:uuid"`
	Status         string     `json:"status" gorm:"size:20;not null;default:'PENDING';index"`
	TotalPrice     int64      `json:"totalPrice" gorm:"not null"`
	ShippingFee    int64      `json:"shippingFee" gorm:"not null;default:0"`
	RequestMessage string     `json:"requestMessage" gorm:"size:500"`
	RejectReason   string     `json:"rejectReason" gorm:"size:500"`
	DecidedAt      *time.Time `json:"decidedAt"`
	CreatedAt      time.Time  `json:"createdAt" gorm:"not null;autoCreateTime;index"`
	UpdatedAt      time.Time  `json:"updatedAt" gorm:"not null;autoUpdateTime"`

	Items []PurchaseItem `json:"items,omitempty" gorm:"foreignKey:PurchaseRequestID"`
}

// TableName 指定表名
func (PurchaseRequest) TableName() string {
	return "purchase_requests"
}

// GetCompanyID 实现 tenantdb.TenantOwned
func (r *PurchaseRequest) GetCompanyID() string { return r.CompanyID }

// SetCompanyID 实现 tenantdb.TenantOwned
func (r *PurchaseRequest) SetCompanyID(id string) { r.CompanyID = id }

// PurchaseItem 采购明细。PriceSnapshot 记录下单时的单价，
// 商品之后调价不影响历史申请。
type PurchaseItem struct {
	ID                string    `json:"id" gorm:"primaryKey;type:uuid"`
	CompanyID         string    `json:"companyId" gorm:"type:uuid;not null;index"`
	PurchaseRequestID string    `json:"purchaseRequestId" gorm:"type:uuid;not null;index"`
	ProductID         string    `json:"productId" gorm:"type:uuid;not null"`
	Quantity          int       `json:"quantity" gorm:"not null;check:quantity > 0"`
	PriceSnapshot     int64     `json:"priceSnapshot" gorm:"not null"`
	CreatedAt         time.Time `json:"createdAt" gorm:"not null;autoCreateTime"`

	Product *product.Product `json:"product,omitempty" gorm:"foreignKey:ProductID"`
}

// TableName 指定表名
func (PurchaseItem) TableName() string {
	return "purchase_items"
}

// GetCompanyID 实现 tenantdb.TenantOwned
func (i *PurchaseItem) GetCompanyID() string { return i.CompanyID }

// SetCompanyID 实现 tenantdb.TenantOwned
func (i *PurchaseItem) SetCompanyID(id string) { i.CompanyID = id }
