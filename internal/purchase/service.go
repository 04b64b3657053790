package purchase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"backend/internal/budget"
	"backend/internal/cart"
	"backend/internal/common"
	"backend/internal/logger"
	"backend/internal/metrics"
	"backend/internal/product"
	"backend/internal/tenant"
	"backend/internal/tenantdb"
)

// Notifier 审批流程的通知出口，由通知模块实现
type Notifier interface {
	CreateAndPush(ctx context.Context, receiverID, content, targetType, targetID string) error
	NotifyCompanyManagers(ctx context.Context, content, targetType, targetID string) error
}

// Service 采购申请服务
type Service struct {
	common.BaseService
	db       *tenantdb.DB
	budget   *budget.Service
	notifier Notifier
}

// NewService 创建采购申请服务
func NewService(db *tenantdb.DB, budgetSvc *budget.Service, notifier Notifier) *Service {
	return &Service{
		BaseService: common.BaseService{DB: db.Gorm()},
		db:          db,
		budget:      budgetSvc,
		notifier:    notifier,
	}
}

// ItemInput 申请明细输入
type ItemInput struct {
	ProductID string `json:"productId" binding:"required,uuid"`
	Quantity  int    `json:"quantity" binding:"required,min=1"`
}

// CreateRequest 采购申请创建请求
type CreateRequest struct {
	Items          []ItemInput `json:"items" binding:"required,min=1,dive"`
	ShippingFee    int64       `json:"shippingFee" binding:"min=0"`
	RequestMessage string      `json:"requestMessage" binding:"max=500"`
}

func (s *Service) validateCreate(req *CreateRequest) error {
	if len(req.Items) == 0 {
		return common.ErrInvalidInput("申请明细不能为空")
	}
	if req.ShippingFee < 0 {
		return common.ErrInvalidInput("运费不能为负数")
	}
	seen := make(map[string]struct{}, len(req.Items))
	for _, item := range req.Items {
		if item.ProductID == "" {
			return common.ErrInvalidInput("商品ID不能为空")
		}
		if item.Quantity < 1 {
			return common.ErrInvalidInput("数量必须大于0")
		}
		if _, dup := seen[item.ProductID]; dup {
			return common.ErrInvalidInput("申请明细中商品重复")
		}
		seen[item.ProductID] = struct{}{}
	}
	return nil
}

// loadActiveProducts 取申请涉及的在售商品，缺一个即报错
func (s *Service) loadActiveProducts(ctx context.Context, items []ItemInput) (map[string]*product.Product, error) {
	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ProductID)
	}

	var products []product.Product
	err := s.db.Scoped(ctx, &product.Product{}).
		Where("id IN ? AND is_active = ?", ids, true).
		Find(&products).Error
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*product.Product, len(products))
	for i := range products {
		byID[products[i].ID] = &products[i]
	}
	for _, item := range items {
		if _, ok := byID[item.ProductID]; !ok {
			return nil, common.ErrInvalidInput("商品不存在或已下架")
		}
	}
	return byID, nil
}

func buildItems(requestID string, inputs []ItemInput, products map[string]*product.Product) ([]PurchaseItem, int64) {
	items := make([]PurchaseItem, 0, len(inputs))
	var subtotal int64
	for _, in := range inputs {
		p := products[in.ProductID]
		items = append(items, PurchaseItem{
			ID:                uuid.New().String(),
			PurchaseRequestID: requestID,
			ProductID:         in.ProductID,
			Quantity:          in.Quantity,
			PriceSnapshot:     p.Price,
		})
		subtotal += p.Price * int64(in.Quantity)
	}
	return items, subtotal
}

// CreateFromCart 从购物车提交采购申请。明细必须与购物车完全一致，
// 申请创建与清空购物车在同一事务内完成，之后向管理层推送待审批通知。
func (s *Service) CreateFromCart(ctx context.Context, requesterID string, req *CreateRequest) (*PurchaseRequest, error) {
	if err := s.validateCreate(req); err != nil {
		return nil, err
	}
	tc, ok := tenant.FromContext(ctx)
	if !ok {
		return nil, common.ErrForbidden("缺少租户上下文")
	}

	var cartItems []cart.CartItem
	err := s.db.Scoped(ctx, &cart.CartItem{}).
		Where("user_id = ?", requesterID).Find(&cartItems).Error
	if err != nil {
		return nil, err
	}
	cartByProduct := make(map[string]int, len(cartItems))
	for _, item := range cartItems {
		cartByProduct[item.ProductID] = item.Quantity
	}
	if len(req.Items) != len(cartByProduct) {
		return nil, common.ErrInvalidInput("申请明细与购物车不一致")
	}
	for _, item := range req.Items {
		if qty, ok := cartByProduct[item.ProductID]; !ok || qty != item.Quantity {
			return nil, common.ErrInvalidInput("申请明细与购物车不一致")
		}
	}

	products, err := s.loadActiveProducts(ctx, req.Items)
	if err != nil {
		return nil, err
	}

	request := &PurchaseRequest{
		ID:             uuid.New().String(),
		RequesterID:    requesterID,
		Status:         StatusPending,
		ShippingFee:    req.ShippingFee,
		RequestMessage: req.RequestMessage,
	}
	items, subtotal := buildItems(request.ID, req.Items, products)
	request.TotalPrice = subtotal + req.ShippingFee

	// 预检只做提前拦截，真正的额度裁决在审批扣减时
	if err := s.budget.CheckAvailable(ctx, tc.CompanyID, request.TotalPrice); err != nil {
		return nil, err
	}

	// 只清掉提交到申请里的条目，校验后才加入购物车的商品要留下
	productIDs := make([]string, 0, len(req.Items))
	for _, item := range req.Items {
		productIDs = append(productIDs, item.ProductID)
	}

	err = s.db.Transaction(ctx, func(tx *tenantdb.DB) error {
		if err := tx.Create(ctx, request); err != nil {
			return err
		}
		for i := range items {
			if err := tx.Create(ctx, &items[i]); err != nil {
				return err
			}
		}
		return tx.Scoped(ctx, &cart.CartItem{}).
			Where("user_id = ? AND product_id IN ?", requesterID, productIDs).
			Delete(&cart.CartItem{}).Error
	})
	if err != nil {
		return nil, err
	}

	metrics.PurchaseRequestsTotal.WithLabelValues(tc.CompanyID, "cart").Inc()
	metrics.PurchasePendingGauge.WithLabelValues(tc.CompanyID).Inc()
	logger.Info("采购申请创建",
		zap.String("request_id", request.ID),
		zap.String("requester_id", requesterID),
		zap.Int64("total", request.TotalPrice))

	if s.notifier != nil {
		content := fmt.Sprintf("新的采购申请待审批，金额 %d 円", request.TotalPrice)
		if err := s.notifier.NotifyCompanyManagers(ctx, content, "PURCHASE_REQUEST", request.ID); err != nil {
			logger.Warn("审批通知发送失败", zap.Error(err), zap.String("request_id", request.ID))
		}
	}
	return s.Get(ctx, request.ID)
}

// CreateImmediate 即时采购。创建即为已审批，审批人记为本人，
// 预算扣减与创建在同一事务内，余额不足则整体失败。
func (s *Service) CreateImmediate(ctx context.Context, requesterID string, req *CreateRequest) (*PurchaseRequest, error) {
	if err := s.validateCreate(req); err != nil {
		return nil, err
	}
	tc, ok := tenant.FromContext(ctx)
	if !ok {
		return nil, common.ErrForbidden("缺少租户上下文")
	}

	products, err := s.loadActiveProducts(ctx, req.Items)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	request := &PurchaseRequest{
		ID:             uuid.New().String(),
		RequesterID:    requesterID,
		ApproverID:     &requesterID,
		Status:         StatusApproved,
		ShippingFee:    req.ShippingFee,
		RequestMessage: req.RequestMessage,
		DecidedAt:      &now,
	}
	items, subtotal := buildItems(request.ID, req.Items, products)
	request.TotalPrice = subtotal + req.ShippingFee

	err = s.db.Transaction(ctx, func(tx *tenantdb.DB) error {
		if err := tx.Create(ctx, request); err != nil {
			return err
		}
		for i := range items {
			if err := tx.Create(ctx, &items[i]); err != nil {
				return err
			}
		}
		return s.budget.TryDebit(tx.Gorm(), tc.CompanyID, now.Year(), int(now.Month()), request.TotalPrice)
	})
	if err != nil {
		return nil, err
	}

	metrics.PurchaseRequestsTotal.WithLabelValues(tc.CompanyID, "immediate").Inc()
	logger.Info("即时采购完成",
		zap.String("request_id", request.ID), zap.Int64("total", request.TotalPrice))
	return s.Get(ctx, request.ID)
}

// Approve 审批通过。状态翻转用条件更新保证只有一个审批人成功，
// 翻转与预算扣减同事务，预算不足时整体回滚，申请保持待审批。
func (s *Service) Approve(ctx context.Context, approverID, requestID string) (*PurchaseRequest, error) {
	request, err := s.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	err = s.db.Transaction(ctx, func(tx *tenantdb.DB) error {
		result := tx.Scoped(ctx, &PurchaseRequest{}).
			Where("id = ? AND status = ?", requestID, StatusPending).
			Updates(map[string]interface{}{
				"status":      StatusApproved,
				"approver_id": approverID,
				"decided_at":  now,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			metrics.PurchaseDecisionsTotal.WithLabelValues(request.CompanyID, "conflict").Inc()
			return common.ErrConflict("申请已被处理")
		}
		created := request.CreatedAt
		return s.budget.TryDebit(tx.Gorm(), request.CompanyID,
			created.Year(), int(created.Month()), request.TotalPrice)
	})
	if err != nil {
		return nil, err
	}

	metrics.PurchaseDecisionsTotal.WithLabelValues(request.CompanyID, "approved").Inc()
	metrics.PurchasePendingGauge.WithLabelValues(request.CompanyID).Dec()
	logger.Info("采购申请通过",
		zap.String("request_id", requestID), zap.String("approver_id", approverID))

	if s.notifier != nil {
		content := fmt.Sprintf("您的采购申请已通过，金额 %d 円", request.TotalPrice)
		if err := s.notifier.CreateAndPush(ctx, request.RequesterID, content, "PURCHASE_REQUEST", requestID); err != nil {
			logger.Warn("审批结果通知失败", zap.Error(err), zap.String("request_id", requestID))
		}
	}
	return s.Get(ctx, requestID)
}

// Reject 驳回申请，必须填写理由
func (s *Service) Reject(ctx context.Context, approverID, requestID, reason string) (*PurchaseRequest, error) {
	if reason == "" {
		return nil, common.ErrInvalidInput("驳回理由不能为空")
	}
	request, err := s.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	result := s.db.Scoped(ctx, &PurchaseRequest{}).
		Where("id = ? AND status = ?", requestID, StatusPending).
		Updates(map[string]interface{}{
			"status":        StatusRejected,
			"approver_id":   approverID,
			"reject_reason": reason,
			"decided_at":    now,
		})
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		metrics.PurchaseDecisionsTotal.WithLabelValues(request.CompanyID, "conflict").Inc()
		return nil, common.ErrConflict("申请已被处理")
	}

	metrics.PurchaseDecisionsTotal.WithLabelValues(request.CompanyID, "rejected").Inc()
	metrics.PurchasePendingGauge.WithLabelValues(request.CompanyID).Dec()

	if s.notifier != nil {
		content := fmt.Sprintf("您的采购申请被驳回：%s", reason)
		if err := s.notifier.CreateAndPush(ctx, request.RequesterID, content, "PURCHASE_REQUEST", requestID); err != nil {
			logger.Warn("审批结果通知失败", zap.Error(err), zap.String("request_id", requestID))
		}
	}
	return s.Get(ctx, requestID)
}

// Cancel 撤回申请。只有申请人本人能撤回待审批的申请，无其他副作用。
func (s *Service) Cancel(ctx context.Context, requesterID, requestID string) (*PurchaseRequest, error) {
	request, err := s.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if request.RequesterID != requesterID {
		return nil, common.ErrForbidden("只能撤回本人的申请")
	}

	now := time.Now()
	result := s.db.Scoped(ctx, &PurchaseRequest{}).
		Where("id = ? AND requester_id = ? AND status = ?", requestID, requesterID, StatusPending).
		Updates(map[string]interface{}{
			"status":     StatusCancelled,
			"decided_at": now,
		})
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		metrics.PurchaseDecisionsTotal.WithLabelValues(request.CompanyID, "conflict").Inc()
		return nil, common.ErrConflict("申请已被处理")
	}

	metrics.PurchaseDecisionsTotal.WithLabelValues(request.CompanyID, "cancelled").Inc()
	metrics.PurchasePendingGauge.WithLabelValues(request.CompanyID).Dec()
	return s.Get(ctx, requestID)
}

// Get 查询单个申请
func (s *Service) Get(ctx context.Context, requestID string) (*PurchaseRequest, error) {
	var request PurchaseRequest
	err := s.db.Scoped(ctx, &PurchaseRequest{}).
		Preload("Items").Preload("Items.Product").
		Where("id = ?", requestID).First(&request).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, common.ErrNotFound("申请不存在")
	}
	if err != nil {
		return nil, err
	}
	return &request, nil
}

// ListRequest 申请列表请求
type ListRequest struct {
	common.PaginationRequest
	Status      string `form:"status"`
	RequesterID string `form:"-"`
}

// List 分页查询申请。RequesterID 非空时只查该成员的申请。
func (s *Service) List(ctx context.Context, req *ListRequest) ([]PurchaseRequest, *common.PaginationMeta, error) {
	query := s.db.Scoped(ctx, &PurchaseRequest{})
	if req.Status != "" {
		query = query.Where("status = ?", req.Status)
	}
	if req.RequesterID != "" {
		query = query.Where("requester_id = ?", req.RequesterID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, nil, err
	}

	var requests []PurchaseRequest
	if err := s.ApplyPagination(query, req.PaginationRequest).
		Preload("Items").Preload("Items.Product").
		Order("created_at DESC").Find(&requests).Error; err != nil {
		return nil, nil, err
	}
	meta := common.NewPaginationMeta(req.GetPage(), req.GetLimit(), total)
	return requests, &meta, nil
}
