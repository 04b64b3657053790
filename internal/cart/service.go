package cart

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"backend/internal/common"
	"backend/internal/product"
	"backend/internal/tenantdb"
)

// Service 购物车服务
type Service struct {
	db *tenantdb.DB
}

// NewService 创建购物车服务
func NewService(db *tenantdb.DB) *Service {
	return &Service{db: db}
}

// AddRequest 加购请求
type AddRequest struct {
	ProductID string `json:"productId" binding:"required,uuid"`
	Quantity  int    `json:"quantity" binding:"required,min=1"`
}

// Add 加入购物车。商品已在购物车时累加数量。
func (s *Service) Add(ctx context.Context, userID string, req *AddRequest) (*CartItem, error) {
	var p product.Product
	err := s.db.Scoped(ctx, &product.Product{}).
		Where("id = ? AND is_active = ?", req.ProductID, true).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, common.ErrNotFound("商品不存在或已下架")
	}
	if err != nil {
		return nil, err
	}

	var itemID string
	err = s.db.Transaction(ctx, func(tx *tenantdb.DB) error {
		var existing CartItem
		err := tx.Scoped(ctx, &CartItem{}).
			Where("user_id = ? AND product_id = ?", userID, req.ProductID).
			First(&existing).Error
		if err == nil {
			itemID = existing.ID
			return tx.Scoped(ctx, &CartItem{}).Where("id = ?", existing.ID).
				Update("quantity", gorm.Expr("quantity + ?", req.Quantity)).Error
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		item := &CartItem{
			ID:        uuid.New().String(),
			UserID:    userID,
			ProductID: req.ProductID,
			Quantity:  req.Quantity,
		}
		itemID = item.ID
		return tx.Create(ctx, item)
	})
	if err != nil {
		return nil, err
	}
	return s.getItem(ctx, userID, itemID)
}

// UpdateQuantity 修改数量
func (s *Service) UpdateQuantity(ctx context.Context, userID, itemID string, quantity int) (*CartItem, error) {
	if quantity < 1 {
		return nil, common.ErrInvalidInput("数量必须大于0")
	}
	result := s.db.Scoped(ctx, &CartItem{}).
		Where("id = ? AND user_id = ?", itemID, userID).
		Update("quantity", quantity)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, common.ErrNotFound("购物车条目不存在")
	}
	return s.getItem(ctx, userID, itemID)
}

// Remove 移除条目
func (s *Service) Remove(ctx context.Context, userID, itemID string) error {
	result := s.db.Scoped(ctx, &CartItem{}).
		Where("id = ? AND user_id = ?", itemID, userID).
		Delete(&CartItem{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return common.ErrNotFound("购物车条目不存在")
	}
	return nil
}

// Clear 清空本人购物车
func (s *Service) Clear(ctx context.Context, userID string) error {
	return s.db.Scoped(ctx, &CartItem{}).
		Where("user_id = ?", userID).Delete(&CartItem{}).Error
}

// List 查询本人购物车，带商品信息
func (s *Service) List(ctx context.Context, userID string) ([]CartItem, int64, error) {
	var items []CartItem
	err := s.db.Scoped(ctx, &CartItem{}).
		Where("user_id = ?", userID).
		Preload("Product").
		Order("created_at ASC").
		Find(&items).Error
	if err != nil {
		return nil, 0, err
	}

	var total int64
	for _, item := range items {
		if item.Product != nil {
			total += item.Product.Price * int64(item.Quantity)
		}
	}
	return items, total, nil
}

func (s *Service) getItem(ctx context.Context, userID, itemID string) (*CartItem, error) {
	var item CartItem
	err := s.db.Scoped(ctx, &CartItem{}).
		Where("id = ? AND user_id = ?", itemID, userID).
		Preload("Product").First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, common.ErrNotFound("购物车条目不存在")
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}
