package notification

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"backend/internal/auth"
	"backend/internal/common"
	"backend/internal/logger"
	"backend/internal/metrics"
	"backend/internal/tenantdb"
	"backend/internal/user"
)

// Service 通知服务
type Service struct {
	common.BaseService
	db  *tenantdb.DB
	hub *Hub
}

// NewService 创建通知服务
func NewService(db *tenantdb.DB, hub *Hub) *Service {
	return &Service{
		BaseService: common.BaseService{DB: db.Gorm()},
		db:          db,
		hub:         hub,
	}
}

// CreateAndPush 创建通知并推送。先落库再推送，推送失败只记日志，
// 用户掉线也不会丢通知。
func (s *Service) CreateAndPush(ctx context.Context, receiverID, content, targetType, targetID string) (*Notification, error) {
	n := &Notification{
		ID:         uuid.New().String(),
		ReceiverID: receiverID,
		Content:    content,
		TargetType: targetType,
		TargetID:   targetID,
	}
	if err := s.db.Create(ctx, n); err != nil {
		return nil, err
	}

	if s.hub != nil {
		if err := s.hub.SendToUser(n.CompanyID, receiverID, n); err != nil {
			metrics.NotificationsDeliveredTotal.WithLabelValues("websocket", "failed").Inc()
			logger.Warn("通知推送失败",
				zap.Error(err), zap.String("receiver_id", receiverID), zap.String("notification_id", n.ID))
		} else {
			metrics.NotificationsDeliveredTotal.WithLabelValues("websocket", "sent").Inc()
		}
	}
	return n, nil
}

// NotifyCompanyManagers 向当前公司全部 MANAGER/ADMIN 逐个发送通知。
// 单个接收人失败不影响其余接收人。
func (s *Service) NotifyCompanyManagers(ctx context.Context, content, targetType, targetID string) error {
	var managers []user.User
	err := s.db.Scoped(ctx, &user.User{}).
		Where("role IN ? AND is_active = ?", []auth.Role{auth.RoleManager, auth.RoleAdmin}, true).
		Find(&managers).Error
	if err != nil {
		return err
	}

	for _, m := range managers {
		if _, err := s.CreateAndPush(ctx, m.ID, content, targetType, targetID); err != nil {
			logger.Error("管理层通知创建失败",
				zap.Error(err), zap.String("receiver_id", m.ID))
		}
	}
	return nil
}

// ListRequest 通知列表请求
type ListRequest struct {
	common.PaginationRequest
	UnreadOnly bool `form:"unreadOnly"`
}

// List 查询本人通知，新的在前
func (s *Service) List(ctx context.Context, receiverID string, req *ListRequest) ([]Notification, *common.PaginationMeta, error) {
	query := s.db.Scoped(ctx, &Notification{}).Where("receiver_id = ?", receiverID)
	if req.UnreadOnly {
		query = query.Where("is_read = ?", false)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, nil, err
	}

	var notifications []Notification
	if err := s.ApplyPagination(query, req.PaginationRequest).
		Order("created_at DESC").Find(&notifications).Error; err != nil {
		return nil, nil, err
	}
	meta := common.NewPaginationMeta(req.GetPage(), req.GetLimit(), total)
	return notifications, &meta, nil
}

// UnreadCount 本人未读数
func (s *Service) UnreadCount(ctx context.Context, receiverID string) (int64, error) {
	var count int64
	err := s.db.Scoped(ctx, &Notification{}).
		Where("receiver_id = ? AND is_read = ?", receiverID, false).
		Count(&count).Error
	return count, err
}

// MarkRead 标记单条已读，只能操作本人的通知
func (s *Service) MarkRead(ctx context.Context, receiverID, notificationID string) error {
	result := s.db.Scoped(ctx, &Notification{}).
		Where("id = ? AND receiver_id = ?", notificationID, receiverID).
		Update("is_read", true)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return common.ErrNotFound("通知不存在")
	}
	return nil
}

// MarkAllRead 全部标记已读
func (s *Service) MarkAllRead(ctx context.Context, receiverID string) (int64, error) {
	result := s.db.Scoped(ctx, &Notification{}).
		Where("receiver_id = ? AND is_read = ?", receiverID, false).
		Update("is_read", true)
	return result.RowsAffected, result.Error
}

// Cleanup 清理超过保留期的已读通知。由调度器在无租户上下文下调用，
// 跨全部公司执行。
func (s *Service) Cleanup(ctx context.Context, retainDays int) (int64, error) {
	if retainDays <= 0 {
		retainDays = 30
	}
	cutoff := time.Now().AddDate(0, 0, -retainDays)
	result := s.db.Gorm().WithContext(ctx).
		Where("is_read = ? AND created_at < ?", true, cutoff).
		Delete(&Notification{})
	if result.Error != nil {
		return 0, result.Error
	}
	logger.Info("通知清理完成",
		zap.Int64("deleted", result.RowsAffected), zap.Time("cutoff", cutoff))
	return result.RowsAffected, nil
}
