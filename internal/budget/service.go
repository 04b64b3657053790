package budget

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"backend/internal/auth"
	"backend/internal/common"
	"backend/internal/logger"
	"backend/internal/metrics"
	"backend/internal/tenantdb"
	"backend/internal/user"
)

// EmailSender 预算告警邮件发送器
type EmailSender interface {
	Send(to, subject, body string) error
}

// Service 预算服务
type Service struct {
	db    *tenantdb.DB
	email EmailSender
}

// NewService 创建预算服务
func NewService(db *tenantdb.DB, email EmailSender) *Service {
	return &Service{db: db, email: email}
}

// GetAvailable 查询指定月份的剩余预算，无记录按 0 处理
func (s *Service) GetAvailable(ctx context.Context, companyID string, year, month int) (int64, error) {
	var b Budget
	err := s.db.Gorm().WithContext(ctx).
		Where("company_id = ? AND year = ? AND month = ?", companyID, year, month).
		First(&b).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return b.Amount, nil
}

// Current 查询当前公司本月预算概况
func (s *Service) Current(ctx context.Context, companyID string) (*Budget, error) {
	now := time.Now()
	var b Budget
	err := s.db.Scoped(ctx, &Budget{}).
		Where("year = ? AND month = ?", now.Year(), int(now.Month())).
		First(&b).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &Budget{
			CompanyID: companyID,
			Year:      now.Year(),
			Month:     int(now.Month()),
			Amount:    0,
		}, nil
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// SeedMonthly 按预算基准播种指定月份的预算。已存在的行不覆盖，
// 手工调整过的额度不会被定时任务冲掉。单个公司失败只记日志，不中断其余公司。
// 由调度器在无租户上下文下调用。
func (s *Service) SeedMonthly(ctx context.Context, year, month int) error {
	var criteria []BudgetCriteria
	if err := s.db.Gorm().WithContext(ctx).Find(&criteria).Error; err != nil {
		return fmt.Errorf("budget: load criteria: %w", err)
	}

	var failed int
	for _, c := range criteria {
		var count int64
		err := s.db.Gorm().WithContext(ctx).Model(&Budget{}).
			Where("company_id = ? AND year = ? AND month = ?", c.CompanyID, year, month).
			Count(&count).Error
		if err != nil {
			failed++
			logger.Error("预算播种查询失败", zap.Error(err), zap.String("company_id", c.CompanyID))
			continue
		}
		if count > 0 {
			continue
		}
		b := &Budget{
			ID:        uuid.New().String(),
			CompanyID: c.CompanyID,
			Year:      year,
			Month:     month,
			Amount:    c.Amount,
		}
		if err := s.db.Gorm().WithContext(ctx).Create(b).Error; err != nil {
			failed++
			logger.Error("预算播种创建失败", zap.Error(err), zap.String("company_id", c.CompanyID))
			continue
		}
	}

	logger.Info("预算播种完成",
		zap.Int("year", year), zap.Int("month", month),
		zap.Int("total", len(criteria)), zap.Int("failed", failed))
	if failed > 0 {
		return fmt.Errorf("budget: seed %d/%d companies failed", failed, len(criteria))
	}
	return nil
}

// TryDebit 在事务内原子扣减预算。条件更新保证任何并发交错下余额不为负，
// 余额不足返回 INSUFFICIENT_BUDGET。
func (s *Service) TryDebit(tx *gorm.DB, companyID string, year, month int, amount int64) error {
	if amount < 0 {
		return common.ErrInvalidInput("扣减金额不能为负数")
	}
	if amount == 0 {
		return nil
	}

	result := tx.Model(&Budget{}).
		Where("company_id = ? AND year = ? AND month = ? AND amount >= ?",
			companyID, year, month, amount).
		Update("amount", gorm.Expr("amount - ?", amount))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		metrics.BudgetDebitsTotal.WithLabelValues(companyID, "insufficient").Inc()
		return common.ErrInsufficientBudget("本月预算不足")
	}
	metrics.BudgetDebitsTotal.WithLabelValues(companyID, "success").Inc()
	return nil
}

// UpsertMonthRequest 管理员设置月度预算请求
type UpsertMonthRequest struct {
	Year   int   `json:"year" binding:"required,min=2000,max=2100"`
	Month  int   `json:"month" binding:"required,min=1,max=12"`
	Amount int64 `json:"amount" binding:"min=0"`
}

// UpsertMonth 管理员设置某月预算额度，已存在则覆盖
func (s *Service) UpsertMonth(ctx context.Context, companyID string, req *UpsertMonthRequest) (*Budget, error) {
	if req.Amount < 0 {
		return nil, common.ErrInvalidInput("预算金额不能为负数")
	}

	var b Budget
	err := s.db.Gorm().WithContext(ctx).
		Where("company_id = ? AND year = ? AND month = ?", companyID, req.Year, req.Month).
		First(&b).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		b = Budget{
			ID:        uuid.New().String(),
			CompanyID: companyID,
			Year:      req.Year,
			Month:     req.Month,
			Amount:    req.Amount,
		}
		if err := s.db.Gorm().WithContext(ctx).Create(&b).Error; err != nil {
			return nil, err
		}
		return &b, nil
	}
	if err != nil {
		return nil, err
	}

	if err := s.db.Gorm().WithContext(ctx).Model(&Budget{}).
		Where("id = ?", b.ID).Update("amount", req.Amount).Error; err != nil {
		return nil, err
	}
	b.Amount = req.Amount
	return &b, nil
}

// GetCriteria 查询当前公司的预算基准
func (s *Service) GetCriteria(ctx context.Context) (*BudgetCriteria, error) {
	var c BudgetCriteria
	err := s.db.Scoped(ctx, &BudgetCriteria{}).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, common.ErrNotFound("未设置预算基准")
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// UpsertCriteria 设置预算基准
func (s *Service) UpsertCriteria(ctx context.Context, companyID string, amount int64) (*BudgetCriteria, error) {
	if amount < 0 {
		return nil, common.ErrInvalidInput("预算金额不能为负数")
	}

	var c BudgetCriteria
	err := s.db.Scoped(ctx, &BudgetCriteria{}).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c = BudgetCriteria{
			ID:        uuid.New().String(),
			CompanyID: companyID,
			Amount:    amount,
		}
		if err := s.db.Create(ctx, &c); err != nil {
			return nil, err
		}
		return &c, nil
	}
	if err != nil {
		return nil, err
	}

	if err := s.db.Scoped(ctx, &BudgetCriteria{}).
		Where("id = ?", c.ID).Update("amount", amount).Error; err != nil {
		return nil, err
	}
	c.Amount = amount
	return &c, nil
}

// CheckAvailable 采购前的预算预检。额度为零或候选金额超出剩余额度时拒绝，
// 并向管理层发送告警邮件。邮件失败不影响拒绝结果，真正的扣减仍由 TryDebit 裁决。
func (s *Service) CheckAvailable(ctx context.Context, companyID string, total int64) error {
	now := time.Now()
	available, err := s.GetAvailable(ctx, companyID, now.Year(), int(now.Month()))
	if err != nil {
		return err
	}
	if available <= 0 {
		s.sendAlert(ctx, companyID, available, total)
		return common.ErrInsufficientBudget("本月预算已用尽")
	}
	if total > available {
		s.sendAlert(ctx, companyID, available, total)
		return common.ErrInsufficientBudget(
			fmt.Sprintf("本月剩余预算 %d 円，不足以支付 %d 円", available, total))
	}
	return nil
}

// sendAlert 向公司全部管理层发送预算不足告警，尽力而为
func (s *Service) sendAlert(ctx context.Context, companyID string, available, requested int64) {
	if s.email == nil {
		return
	}
	var managers []user.User
	err := s.db.Gorm().WithContext(ctx).
		Where("company_id = ? AND role IN ? AND is_active = ?",
			companyID, []auth.Role{auth.RoleManager, auth.RoleAdmin}, true).
		Find(&managers).Error
	if err != nil {
		logger.Warn("预算告警收件人查询失败", zap.Error(err), zap.String("company_id", companyID))
		return
	}

	subject := "零食商店预算告警"
	body := fmt.Sprintf("<p>本月零食预算不足：剩余 %d 円，本次申请 %d 円。</p><p>请确认预算设置。</p>",
		available, requested)
	for _, m := range managers {
		if err := s.email.Send(m.Email, subject, body); err != nil {
			logger.Warn("预算告警邮件发送失败", zap.Error(err), zap.String("email", m.Email))
		}
	}
}
