package repository

import (
	"context"
	"time"

	"aimarket_dev_v1_202608/internal/model"

	"gorm.io/gorm"
)

// ==================== 过滤条件 ====================

// PurchaseFilter 购买记录过滤条件
type PurchaseFilter struct {
	UserID              int64
	ToolID              int64
	Status              string
	NeedsManualFollowup *bool
	StartDate           *time.Time
	EndDate             *time.Time
	Keyword             string
	Page                int
	PageSize            int
}

// PurchaseStats 购买统计
type PurchaseStats struct {
	TotalPurchases  int64
	TotalAmount     int64
	PendingCount    int64
	CompletedCount  int64
	CancelledCount  int64
	RefundedCount   int64
	ManualFollowups int64
}

// ==================== PurchaseRepository 购买仓库 ====================

// PurchaseRepository 购买记录仓库接口
type PurchaseRepository interface {
	Create(ctx context.Context, purchase *model.Purchase) error
	GetByID(ctx context.Context, id int64) (*model.Purchase, error)
	GetByOrderNo(ctx context.Context, orderNo string) (*model.Purchase, error)
	List(ctx context.Context, filter PurchaseFilter) ([]model.Purchase, int64, error)
	Update(ctx context.Context, purchase *model.Purchase) error
	UpdateFields(ctx context.Context, id int64, fields map[string]interface{}) error
	UpdateStatus(ctx context.Context, id int64, status string) error
	CountManualFollowups(ctx context.Context) (int64, error)
	GetStats(ctx context.Context, toolID int64, startDate, endDate time.Time) (*PurchaseStats, error)
}

type purchaseRepository struct {
	db *gorm.DB
}

// NewPurchaseRepository 创建购买仓库
func NewPurchaseRepository(db *gorm.DB) PurchaseRepository {
	return &purchaseRepository{db: db}
}

func (r *purchaseRepository) Create(ctx context.Context, purchase *model.Purchase) error {
	return r.db.WithContext(ctx).Create(purchase).Error
}

func (r *purchaseRepository) GetByID(ctx context.Context, id int64) (*model.Purchase, error) {
	var purchase model.Purchase
	err := r.db.WithContext(ctx).First(&purchase, id).Error
	if err != nil {
		return nil, err
	}
	return &purchase, nil
}

func (r *purchaseRepository) GetByOrderNo(ctx context.Context, orderNo string) (*model.Purchase, error) {
	var purchase model.Purchase
	err := r.db.WithContext(ctx).Where("order_no = ?", orderNo).First(&purchase).Error
	if err != nil {
		return nil, err
	}
	return &purchase, nil
}

func (r *purchaseRepository) List(ctx context.Context, filter PurchaseFilter) ([]model.Purchase, int64, error) {
	var purchases []model.Purchase
	var total int64

	db := r.db.WithContext(ctx).Model(&model.Purchase{})

	if filter.UserID > 0 {
		db = db.Where("user_id = ?", filter.UserID)
	}
	if filter.ToolID > 0 {
		db = db.Where("tool_id = ?", filter.ToolID)
	}
	if filter.Status != "" {
		db = db.Where("status = ?", filter.Status)
	}
	if filter.NeedsManualFollowup != nil {
		db = db.Where("needs_manual_followup = ?", *filter.NeedsManualFollowup)
	}
	if filter.StartDate != nil {
		db = db.Where("created_at >= ?", filter.StartDate)
	}
	if filter.EndDate != nil {
		db = db.Where("created_at <= ?", filter.EndDate)
	}
	if filter.Keyword != "" {
		keyword := "%" + filter.Keyword + "%"
		db = db.Where("order_no LIKE ? OR customer_email LIKE ?", keyword, keyword)
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}
	offset := (filter.Page - 1) * filter.PageSize

	err := db.Order("created_at DESC").
		Limit(filter.PageSize).
		Offset(offset).
		Find(&purchases).Error

	return purchases, total, err
}

func (r *purchaseRepository) Update(ctx context.Context, purchase *model.Purchase) error {
	return r.db.WithContext(ctx).Save(purchase).Error
}

func (r *purchaseRepository) UpdateFields(ctx context.Context, id int64, fields map[string]interface{}) error {
	return r.db.WithContext(ctx).Model(&model.Purchase{}).Where("id = ?", id).Updates(fields).Error
}

func (r *purchaseRepository) UpdateStatus(ctx context.Context, id int64, status string) error {
	return r.db.WithContext(ctx).Model(&model.Purchase{}).Where("id = ?", id).Update("status", status).Error
}

func (r *purchaseRepository) CountManualFollowups(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Purchase{}).
		Where("needs_manual_followup = ?", true).
		Where("status = ?", model.PurchaseStatusPending).
		Count(&count).Error
	return count, err
}

func (r *purchaseRepository) GetStats(ctx context.Context, toolID int64, startDate, endDate time.Time) (*PurchaseStats, error) {
	var stats PurchaseStats

	db := r.db.WithContext(ctx).Model(&model.Purchase{}).
		Where("created_at BETWEEN ? AND ?", startDate, endDate)
	if toolID > 0 {
		db = db.Where("tool_id = ?", toolID)
	}

	var result struct {
		Count  int64
		Amount int64
	}
	if err := db.Select("COUNT(*) as count, COALESCE(SUM(price_amount), 0) as amount").Scan(&result).Error; err != nil {
		return nil, err
	}
	stats.TotalPurchases = result.Count
	stats.TotalAmount = result.Amount

	type StatusCount struct {
		Status string
		Count  int64
	}
	var statusCounts []StatusCount
	countDB := r.db.WithContext(ctx).Model(&model.Purchase{}).
		Where("created_at BETWEEN ? AND ?", startDate, endDate)
	if toolID > 0 {
		countDB = countDB.Where("tool_id = ?", toolID)
	}
	if err := countDB.Select("status, COUNT(*) as count").Group("status").Scan(&statusCounts).Error; err != nil {
		return nil, err
	}

	for _, sc := range statusCounts {
		switch sc.Status {
		case model.PurchaseStatusPending:
			stats.PendingCount = sc.Count
		case model.PurchaseStatusCompleted:
			stats.CompletedCount = sc.Count
		case model.PurchaseStatusCancelled:
			stats.CancelledCount = sc.Count
		case model.PurchaseStatusRefunded:
			stats.RefundedCount = sc.Count
		}
	}

	manual, err := r.CountManualFollowups(ctx)
	if err != nil {
		return nil, err
	}
	stats.ManualFollowups = manual

	return &stats, nil
}
