package handlers

import (
	"context"
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"backend/internal/budget"
	"backend/internal/worker/tasks"
)

// BudgetHandler 预算定时任务处理器
type BudgetHandler struct {
	service *budget.Service
	logger  *zap.Logger
}

// NewBudgetHandler 创建预算处理器
func NewBudgetHandler(service *budget.Service, logger *zap.Logger) *BudgetHandler {
	return &BudgetHandler{service: service, logger: logger}
}

// HandleSeedMonthly 按预算基准播种当月预算。任务不携带租户上下文，
// 遍历全部公司执行。
func (h *BudgetHandler) HandleSeedMonthly(ctx context.Context, task *asynq.Task) error {
	var payload tasks.BudgetSeedPayload
	if len(task.Payload()) > 0 {
		if err := json.Unmarshal(task.Payload(), &payload); err != nil {
			h.logger.Error("预算播种载荷解析失败", zap.Error(err))
			return err
		}
	}
	if payload.Year == 0 || payload.Month == 0 {
		now := time.Now()
		payload.Year = now.Year()
		payload.Month = int(now.Month())
	}

	h.logger.Info("开始预算播种",
		zap.Int("year", payload.Year), zap.Int("month", payload.Month))
	return h.service.SeedMonthly(ctx, payload.Year, payload.Month)
}
