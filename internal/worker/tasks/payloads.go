package tasks

// 任务类型
const (
	TypeBudgetSeedMonthly   = "budget:seed_monthly"
	TypeNotificationCleanup = "notification:cleanup"
)

// BudgetSeedPayload 预算播种任务载荷，空载荷时播种当前月份
type BudgetSeedPayload struct {
	Year  int `json:"year,omitempty"`
	Month int `json:"month,omitempty"`
}

// NotificationCleanupPayload 通知清理任务载荷
type NotificationCleanupPayload struct {
	RetainDays int `json:"retainDays,omitempty"`
}
