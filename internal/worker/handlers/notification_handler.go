package handlers

import (
	"context"
	"encoding/json"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"backend/internal/notification"
	"backend/internal/worker/tasks"
)

// NotificationHandler 通知定时任务处理器
type NotificationHandler struct {
	service *notification.Service
	logger  *zap.Logger
}

// NewNotificationHandler 创建通知处理器
func NewNotificationHandler(service *notification.Service, logger *zap.Logger) *NotificationHandler {
	return &NotificationHandler{service: service, logger: logger}
}

// HandleCleanup 清理过期的已读通知
func (h *NotificationHandler) HandleCleanup(ctx context.Context, task *asynq.Task) error {
	var payload tasks.NotificationCleanupPayload
	if len(task.Payload()) > 0 {
		if err := json.Unmarshal(task.Payload(), &payload); err != nil {
			h.logger.Error("通知清理载荷解析失败", zap.Error(err))
			return err
		}
	}

	deleted, err := h.service.Cleanup(ctx, payload.RetainDays)
	if err != nil {
		return err
	}
	h.logger.Info("通知清理任务完成", zap.Int64("deleted", deleted))
	return nil
}
