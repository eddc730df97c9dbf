package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"aimarket_dev_v1_202608/internal/model"
	"aimarket_dev_v1_202608/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ==================== PurchaseService 购买服务 ====================

// CreatePurchaseInput 创建购买记录的入参
// 支付在上游完成，这里只在支付确认后落单
type CreatePurchaseInput struct {
	UserID        int64
	ToolID        int64
	CustomerEmail string
}

// PurchaseService 购买记录服务
type PurchaseService struct {
	purchaseRepo repository.PurchaseRepository
	toolRepo     repository.ToolRepository
}

// NewPurchaseService 创建购买服务
func NewPurchaseService(purchaseRepo repository.PurchaseRepository, toolRepo repository.ToolRepository) *PurchaseService {
	return &PurchaseService{
		purchaseRepo: purchaseRepo,
		toolRepo:     toolRepo,
	}
}

// ==================== 落单 ====================

// Create 支付确认后创建待交付的购买记录
func (s *PurchaseService) Create(ctx context.Context, input *CreatePurchaseInput) (*model.Purchase, error) {
	tool, err := s.toolRepo.GetByID(ctx, input.ToolID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrToolNotFound
		}
		return nil, err
	}

	if tool.Status != model.ToolStatusActive {
		return nil, fmt.Errorf("工具 %q 未上架，无法购买", tool.Name)
	}

	purchase := &model.Purchase{
		OrderNo:       newOrderNo(),
		UserID:        input.UserID,
		ToolID:        tool.ID,
		CustomerEmail: input.CustomerEmail,
		PriceAmount:   tool.PriceAmount,
		Currency:      tool.Currency,
		Status:        model.PurchaseStatusPending,
	}

	if err := s.purchaseRepo.Create(ctx, purchase); err != nil {
		return nil, err
	}
	return purchase, nil
}

// ==================== 查询 ====================

// GetByID 获取购买记录
func (s *PurchaseService) GetByID(ctx context.Context, id int64) (*model.Purchase, error) {
	purchase, err := s.purchaseRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPurchaseNotFound
		}
		return nil, err
	}
	return purchase, nil
}

// GetByOrderNo 按订单号获取购买记录，供买家凭订单号查单
func (s *PurchaseService) GetByOrderNo(ctx context.Context, orderNo string) (*model.Purchase, error) {
	purchase, err := s.purchaseRepo.GetByOrderNo(ctx, orderNo)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPurchaseNotFound
		}
		return nil, err
	}
	return purchase, nil
}

// List 购买记录列表
func (s *PurchaseService) List(ctx context.Context, filter repository.PurchaseFilter) ([]model.Purchase, int64, error) {
	return s.purchaseRepo.List(ctx, filter)
}

// GetStats 购买统计
func (s *PurchaseService) GetStats(ctx context.Context, toolID int64, startDate, endDate time.Time) (*repository.PurchaseStats, error) {
	return s.purchaseRepo.GetStats(ctx, toolID, startDate, endDate)
}

// ==================== 状态流转 ====================

// UpdateStatus 管理端状态变更，按单向流转规则校验
// pending → completed / cancelled，pending、completed → refunded，禁止回退
func (s *PurchaseService) UpdateStatus(ctx context.Context, id int64, status string) error {
	purchase, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}

	switch status {
	case model.PurchaseStatusCompleted:
		if !purchase.CanComplete() {
			return fmt.Errorf("订单状态 %s 不允许置为已完成", purchase.Status)
		}
	case model.PurchaseStatusCancelled:
		if !purchase.CanCancel() {
			return fmt.Errorf("订单状态 %s 不允许取消", purchase.Status)
		}
	case model.PurchaseStatusRefunded:
		if !purchase.CanRefund() {
			return fmt.Errorf("订单状态 %s 不允许退款", purchase.Status)
		}
	default:
		return fmt.Errorf("不支持的目标状态: %s", status)
	}

	return s.purchaseRepo.UpdateStatus(ctx, id, status)
}

// newOrderNo 生成订单号
func newOrderNo() string {
	return "AIM-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:20])
}
