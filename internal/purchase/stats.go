package purchase

import (
	"context"
	"time"

	"backend/internal/common"
	"backend/internal/tenant"
)

// TopItem 消费排行条目
type TopItem struct {
	ProductID   string `json:"productId"`
	ProductName string `json:"productName"`
	Quantity    int64  `json:"quantity"`
	Amount      int64  `json:"amount"`
}

// MonthlySpend 月度消费
type MonthlySpend struct {
	Year   int   `json:"year"`
	Month  int   `json:"month"`
	Amount int64 `json:"amount"`
}

// DashboardStats 仪表盘统计，只统计已通过的申请
type DashboardStats struct {
	ThisMonthTotal  int64          `json:"thisMonthTotal"`
	LastMonthTotal  int64          `json:"lastMonthTotal"`
	ThisYearTotal   int64          `json:"thisYearTotal"`
	LastYearTotal   int64          `json:"lastYearTotal"`
	RemainingBudget int64          `json:"remainingBudget"`
	PendingCount    int64          `json:"pendingCount"`
	TopItems        []TopItem      `json:"topItems"`
	MonthlyTrend    []MonthlySpend `json:"monthlyTrend"`
}

func monthRange(year, month int) (time.Time, time.Time) {
	start := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.Local)
	return start, start.AddDate(0, 1, 0)
}

func yearRange(year int) (time.Time, time.Time) {
	start := time.Date(year, 1, 1, 0, 0, 0, 0, time.Local)
	return start, start.AddDate(1, 0, 0)
}

// approvedTotal 统计时间窗内已通过申请的金额合计
func (s *Service) approvedTotal(ctx context.Context, from, to time.Time) (int64, error) {
	var total int64
	err := s.db.Scoped(ctx, &PurchaseRequest{}).
		Where("status = ? AND created_at >= ? AND created_at < ?", StatusApproved, from, to).
		Select("COALESCE(SUM(total_price), 0)").
		Scan(&total).Error
	return total, err
}

// Dashboard 汇总当前公司的消费统计
func (s *Service) Dashboard(ctx context.Context) (*DashboardStats, error) {
	tc, ok := tenant.FromContext(ctx)
	if !ok {
		return nil, common.ErrForbidden("缺少租户上下文")
	}

	now := time.Now()
	stats := &DashboardStats{}

	thisMonthStart, thisMonthEnd := monthRange(now.Year(), int(now.Month()))
	// 从月初回退，月末日期上 AddDate 会把 3 月 31 日归一化到错误的月份
	lastMonth := thisMonthStart.AddDate(0, -1, 0)
	lastMonthStart, lastMonthEnd := monthRange(lastMonth.Year(), int(lastMonth.Month()))
	thisYearStart, thisYearEnd := yearRange(now.Year())
	lastYearStart, lastYearEnd := yearRange(now.Year() - 1)

	var err error
	if stats.ThisMonthTotal, err = s.approvedTotal(ctx, thisMonthStart, thisMonthEnd); err != nil {
		return nil, err
	}
	if stats.LastMonthTotal, err = s.approvedTotal(ctx, lastMonthStart, lastMonthEnd); err != nil {
		return nil, err
	}
	if stats.ThisYearTotal, err = s.approvedTotal(ctx, thisYearStart, thisYearEnd); err != nil {
		return nil, err
	}
	if stats.LastYearTotal, err = s.approvedTotal(ctx, lastYearStart, lastYearEnd); err != nil {
		return nil, err
	}

	if stats.RemainingBudget, err = s.budget.GetAvailable(ctx, tc.CompanyID, now.Year(), int(now.Month())); err != nil {
		return nil, err
	}

	if err := s.db.Scoped(ctx, &PurchaseRequest{}).
		Where("status = ?", StatusPending).
		Count(&stats.PendingCount).Error; err != nil {
		return nil, err
	}

	if stats.TopItems, err = s.topItems(ctx, thisYearStart, thisYearEnd, 5); err != nil {
		return nil, err
	}
	if stats.MonthlyTrend, err = s.monthlyTrend(ctx, now, 12); err != nil {
		return nil, err
	}
	return stats, nil
}

// topItems 时间窗内按金额排序的商品消费排行
func (s *Service) topItems(ctx context.Context, from, to time.Time, limit int) ([]TopItem, error) {
	items := make([]TopItem, 0, limit)
	err := s.db.Scoped(ctx, &PurchaseItem{}).
		Select("purchase_items.product_id AS product_id, " +
			"products.name AS product_name, " +
			"SUM(purchase_items.quantity) AS quantity, " +
			"SUM(purchase_items.price_snapshot * purchase_items.quantity) AS amount").
		Joins("JOIN purchase_requests ON purchase_requests.id = purchase_items.purchase_request_id").
		Joins("JOIN products ON products.id = purchase_items.product_id").
		Where("purchase_requests.status = ? AND purchase_requests.created_at >= ? AND purchase_requests.created_at < ?",
			StatusApproved, from, to).
		Group("purchase_items.product_id, products.name").
		Order("amount DESC").
		Limit(limit).
		Scan(&items).Error
	return items, err
}

// monthlyTrend 最近 N 个月的消费走势，按月逐个统计
func (s *Service) monthlyTrend(ctx context.Context, now time.Time, months int) ([]MonthlySpend, error) {
	trend := make([]MonthlySpend, 0, months)
	anchor := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.Local)
	for i := months - 1; i >= 0; i-- {
		m := anchor.AddDate(0, -i, 0)
		from, to := monthRange(m.Year(), int(m.Month()))
		amount, err := s.approvedTotal(ctx, from, to)
		if err != nil {
			return nil, err
		}
		trend = append(trend, MonthlySpend{
			Year:   m.Year(),
			Month:  int(m.Month()),
			Amount: amount,
		})
	}
	return trend, nil
}
