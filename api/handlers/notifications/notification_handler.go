package notifications

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"backend/internal/common"
	"backend/internal/logger"
	notificationSvc "backend/internal/notification"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// 跨域由网关层控制
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handler 通知处理器
type Handler struct {
	svc *notificationSvc.Service
	hub *notificationSvc.Hub
}

// NewHandler 创建处理器
func NewHandler(svc *notificationSvc.Service, hub *notificationSvc.Hub) *Handler {
	return &Handler{svc: svc, hub: hub}
}

// Connect WebSocket 连接
// @Summary 建立通知推送的 WebSocket 连接
// @Tags Notifications
// @Security BearerAuth
// @Router /api/ws/notifications [get]
func (h *Handler) Connect(c *gin.Context) {
	companyID := c.GetString("company_id")
	userID := c.GetString("user_id")

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn("WebSocket 升级失败", zap.Error(err), zap.String("user_id", userID))
		return
	}

	h.hub.Register(companyID, userID, conn)

	// 读循环只为响应心跳和感知断开，客户端消息不做处理
	conn.SetReadLimit(1024)
	conn.SetReadDeadline(time.Now().Add(90 * time.Second))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(90 * time.Second))
	})
	go func() {
		defer func() {
			h.hub.Unregister(companyID, userID, conn)
			_ = conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// List 通知列表
// @Summary 分页查询本人通知
// @Tags Notifications
// @Security BearerAuth
// @Produce json
// @Param page query int false "页码"
// @Param limit query int false "每页数量"
// @Param unreadOnly query bool false "只看未读"
// @Success 200 {object} common.PaginatedResponse
// @Router /api/notifications [get]
func (h *Handler) List(c *gin.Context) {
	var req notificationSvc.ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		common.ResponseErrorCode(c, common.CodeInvalidInput, "参数错误: "+err.Error())
		return
	}

	userID := c.GetString("user_id")
	notifications, meta, err := h.svc.List(c.Request.Context(), userID, &req)
	if err != nil {
		common.ResponseError(c, err)
		return
	}
	common.ResponseListMeta(c, notifications, *meta)
}

// UnreadCount 未读数
// @Summary 查询本人未读通知数
// @Tags Notifications
// @Security BearerAuth
// @Produce json
// @Success 200 {object} common.APIResponse
// @Router /api/notifications/unread-count [get]
func (h *Handler) UnreadCount(c *gin.Context) {
	userID := c.GetString("user_id")
	count, err := h.svc.UnreadCount(c.Request.Context(), userID)
	if err != nil {
		common.ResponseError(c, err)
		return
	}
	common.ResponseSuccess(c, gin.H{"count": count})
}

// MarkRead 标记已读
// @Summary 标记单条通知为已读
// @Tags Notifications
// @Security BearerAuth
// @Param id path string true "通知ID"
// @Produce json
// @Success 200 {object} common.APIResponse
// @Router /api/notifications/{id}/read [post]
func (h *Handler) MarkRead(c *gin.Context) {
	userID := c.GetString("user_id")
	if err := h.svc.MarkRead(c.Request.Context(), userID, c.Param("id")); err != nil {
		common.ResponseError(c, err)
		return
	}
	common.ResponseSuccessMessage(c, "已标记为已读", nil)
}

// MarkAllRead 全部标记已读
// @Summary 全部通知标记为已读
// @Tags Notifications
// @Security BearerAuth
// @Produce json
// @Success 200 {object} common.APIResponse
// @Router /api/notifications/read-all [post]
func (h *Handler) MarkAllRead(c *gin.Context) {
	userID := c.GetString("user_id")
	updated, err := h.svc.MarkAllRead(c.Request.Context(), userID)
	if err != nil {
		common.ResponseError(c, err)
		return
	}
	common.ResponseSuccessMessage(c, "已全部标记为已读", gin.H{"updated": updated})
}
