package api

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"backend/internal/auth"
	"backend/internal/budget"
	"backend/internal/cart"
	"backend/internal/company"
	"backend/internal/config"
	"backend/internal/notification"
	"backend/internal/product"
	"backend/internal/purchase"
	"backend/internal/storage"
	"backend/internal/tenantdb"
	"backend/internal/user"
)

// AppContainer 汇集全部服务依赖，供路由注册和 Worker 构建使用
type AppContainer struct {
	DB         *tenantdb.DB
	JWTService *auth.JWTService
	Hub        *notification.Hub
	Email      *notification.EmailService
	Store      *storage.LocalStorage

	Companies     *company.Service
	Users         *user.Service
	Products      *product.Service
	Carts         *cart.Service
	Budgets       *budget.Service
	Purchases     *purchase.Service
	Notifications *notification.Service
}

// NewAppContainer 按依赖顺序组装服务
func NewAppContainer(gdb *gorm.DB, cfg *config.Config, redisClient *redis.Client) (*AppContainer, error) {
	db := tenantdb.New(gdb)

	// 避免把有类型的 nil 指针塞进接口，绕过黑名单降级判断
	var redisUniversal redis.UniversalClient
	if redisClient != nil {
		redisUniversal = redisClient
	}
	jwtService := auth.NewJWTService(
		cfg.Auth.JWTSecret,
		cfg.Auth.Issuer,
		time.Duration(cfg.Auth.AccessExpiryHours)*time.Hour,
		time.Duration(cfg.Auth.RefreshExpiryHours)*time.Hour,
		redisUniversal,
	)

	store, err := storage.NewLocalStorage(
		cfg.Storage.BasePath,
		cfg.Storage.MaxFileSize,
		cfg.Auth.JWTSecret,
		"/files",
	)
	if err != nil {
		return nil, fmt.Errorf("api: init storage: %w", err)
	}

	emailService := notification.NewEmailService(&notification.EmailConfig{
		SMTPHost:    cfg.Email.SMTPHost,
		SMTPPort:    cfg.Email.SMTPPort,
		Username:    cfg.Email.Username,
		Password:    cfg.Email.Password,
		FromAddress: cfg.Email.FromAddress,
		FromName:    cfg.Email.FromName,
		UseTLS:      cfg.Email.UseTLS,
		QueueSize:   cfg.Email.QueueSize,
		Workers:     cfg.Email.Workers,
	})

	hub := notification.NewHub()
	notificationService := notification.NewService(db, hub)

	budgetService := budget.NewService(db, emailService)
	signedTTL := time.Duration(cfg.Storage.SignedURLTTL) * time.Second

	container := &AppContainer{
		DB:         db,
		JWTService: jwtService,
		Hub:        hub,
		Email:      emailService,
		Store:      store,

		Companies:     company.NewService(db),
		Users:         user.NewService(db, jwtService, emailService),
		Products:      product.NewService(db, store, signedTTL),
		Carts:         cart.NewService(db),
		Budgets:       budgetService,
		Purchases:     purchase.NewService(db, budgetService, &purchaseNotifier{svc: notificationService}),
		Notifications: notificationService,
	}
	return container, nil
}

// purchaseNotifier 把通知服务适配为审批流程的通知出口
type purchaseNotifier struct {
	svc *notification.Service
}

func (n *purchaseNotifier) CreateAndPush(ctx context.Context, receiverID, content, targetType, targetID string) error {
	_, err := n.svc.CreateAndPush(ctx, receiverID, content, targetType, targetID)
	return err
}

func (n *purchaseNotifier) NotifyCompanyManagers(ctx context.Context, content, targetType, targetID string) error {
	return n.svc.NotifyCompanyManagers(ctx, content, targetType, targetID)
}

// Close 释放容器持有的后台资源
func (c *AppContainer) Close() {
	if c.Email != nil {
		c.Email.Stop()
	}
}
