package notification

import "time"

// 通知关联目标类型
const (
	TargetPurchaseRequest = "PURCHASE_REQUEST"
	TargetBudget          = "BUDGET"
	TargetSystem          = "SYSTEM"
)

// Notification 站内通知，只追加和标记已读，不做修改
type Notification struct {
	ID         string    `json:"id" gorm:"primaryKey;type:uuid"`
	CompanyID  string    `json:"companyId" gorm:"type:uuid;not null;index"`
	ReceiverID string    `json:"receiverId" gorm:"type:uuid;not null;index:idx_notification_receiver"`
	Content    string    `json:"content" gorm:"size:500;not null"`
	TargetType string    `json:"targetType" gorm:"size:30;not null"`
	TargetID   string    `json:"targetId" gorm:"type:uuid"`
	IsRead     bool      `json:"isRead" gorm:"not null;default:false;index:idx_notification_receiver"`
	CreatedAt  time.Time `json:"createdAt" gorm:"not null;autoCreateTime;index"`
}

// TableName 指定表名
func (Notification) TableName() string {
	return "notifications"
}

// GetCompanyID 实现 tenantdb.TenantOwned
func (n *Notification) GetCompanyID() string { return n.CompanyID }

// SetCompanyID 实现 tenantdb.TenantOwned
func (n *Notification) SetCompanyID(id string) { n.CompanyID = id }
