package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// API 指标
var (
	// APIRequestsTotal API 请求总数
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "snackstore_api_requests_total",
			Help: "API 请求总数",
		},
		[]string{"method", "path", "status"},
	)

	// APIRequestDuration API 请求延迟（秒）
	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "snackstore_api_request_duration_seconds",
			Help:    "API 请求延迟分布",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// 购买申请指标
var (
	// PurchaseRequestsTotal 购买申请创建总数
	PurchaseRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "snackstore_purchase_requests_total",
			Help: "购买申请创建总数",
		},
		[]string{"company_id", "kind"}, // kind: cart, immediate
	)

	// PurchaseDecisionsTotal 购买申请审批决定总数
	PurchaseDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "snackstore_purchase_decisions_total",
			Help: "购买申请审批决定总数",
		},
		[]string{"company_id", "decision"}, // decision: approved, rejected, cancelled, conflict
	)

	// PurchasePendingGauge 待审批购买申请数
	PurchasePendingGauge = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "snackstore_purchase_pending",
			Help: "待审批购买申请数",
		},
		[]string{"company_id"},
	)
)

// 预算指标
var (
	// BudgetDebitsTotal 预算扣减总数
	BudgetDebitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "snackstore_budget_debits_total",
			Help: "预算扣减尝试总数",
		},
		[]string{"company_id", "result"}, // result: success, insufficient
	)
)

// 通知指标
var (
	// NotificationsDeliveredTotal 通知投递总数
	NotificationsDeliveredTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "snackstore_notifications_delivered_total",
			Help: "通知投递总数",
		},
		[]string{"channel", "status"}, // channel: websocket, email; status: delivered, offline, failed
	)

	// WebSocketConnectionsGauge 当前 WebSocket 连接数
	WebSocketConnectionsGauge = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "snackstore_websocket_connections",
			Help: "当前 WebSocket 连接数",
		},
		[]string{"company_id"},
	)
)
