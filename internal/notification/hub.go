package notification

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"backend/internal/logger"
	"backend/internal/metrics"
)

type clientConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *clientConn) write(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return c.conn.WriteMessage(messageType, data)
}

// Hub 管理各公司用户的 WebSocket 连接。每个用户最多一条连接，
// 新连接注册时旧连接被关闭，避免同一用户收到重复推送。
type Hub struct {
	mu                sync.RWMutex
	clients           map[string]map[string]*clientConn // companyID -> userID -> conn
	keepAliveInterval time.Duration
	logger            *zap.Logger
}

// HubOption 配置 hub
type HubOption func(*Hub)

// WithKeepAliveInterval 设置心跳间隔
func WithKeepAliveInterval(interval time.Duration) HubOption {
	return func(h *Hub) { h.keepAliveInterval = interval }
}

// WithHubLogger 设置日志器
func WithHubLogger(l *zap.Logger) HubOption {
	return func(h *Hub) { h.logger = l }
}

// NewHub 创建 Hub
func NewHub(opts ...HubOption) *Hub {
	hub := &Hub{
		clients:           make(map[string]map[string]*clientConn),
		keepAliveInterval: 30 * time.Second,
		logger:            logger.Get(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(hub)
		}
	}
	return hub
}

// Register 注册连接，同一用户的旧连接被顶替关闭
func (h *Hub) Register(companyID, userID string, conn *websocket.Conn) {
	client := &clientConn{conn: conn}

	h.mu.Lock()
	if _, ok := h.clients[companyID]; !ok {
		h.clients[companyID] = make(map[string]*clientConn)
	}
	old := h.clients[companyID][userID]
	h.clients[companyID][userID] = client
	h.mu.Unlock()

	if old != nil {
		_ = old.conn.Close()
	} else {
		metrics.WebSocketConnectionsGauge.WithLabelValues(companyID).Inc()
	}
	h.startKeepAlive(companyID, userID, client)
}

// Unregister 移除连接。只有当前注册的连接才会被移除，
// 被顶替的旧连接关闭时不影响新连接。
func (h *Hub) Unregister(companyID, userID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	users, ok := h.clients[companyID]
	if !ok {
		return
	}
	client, ok := users[userID]
	if !ok || client.conn != conn {
		return
	}
	delete(users, userID)
	if len(users) == 0 {
		delete(h.clients, companyID)
	}
	metrics.WebSocketConnectionsGauge.WithLabelValues(companyID).Dec()
}

// SendToUser 向指定用户推送通知。用户不在线时静默丢弃，
// 未读列表以数据库为准。
func (h *Hub) SendToUser(companyID, userID string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	h.mu.RLock()
	client := h.clients[companyID][userID]
	h.mu.RUnlock()
	if client == nil {
		return nil
	}

	if err := client.write(websocket.TextMessage, data); err != nil {
		h.Unregister(companyID, userID, client.conn)
		_ = client.conn.Close()
		return err
	}
	return nil
}

// CloseCompany 关闭公司下所有连接
func (h *Hub) CloseCompany(companyID string) {
	h.mu.Lock()
	users := h.clients[companyID]
	delete(h.clients, companyID)
	h.mu.Unlock()

	for _, client := range users {
		_ = client.conn.Close()
		metrics.WebSocketConnectionsGauge.WithLabelValues(companyID).Dec()
	}
}

// IsConnected 指定用户是否在线
func (h *Hub) IsConnected(companyID, userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.clients[companyID][userID] != nil
}

func (h *Hub) startKeepAlive(companyID, userID string, client *clientConn) {
	if h.keepAliveInterval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(h.keepAliveInterval)
		defer ticker.Stop()
		for range ticker.C {
			client.mu.Lock()
			err := client.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
			client.mu.Unlock()
			if err != nil {
				h.Unregister(companyID, userID, client.conn)
				_ = client.conn.Close()
				return
			}
		}
	}()
}
