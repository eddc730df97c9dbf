package repository

import (
	"context"

	"aimarket_dev_v1_202608/internal/model"

	"gorm.io/gorm"
)

// ==================== 过滤条件 ====================

// ToolFilter 工具列表过滤条件
type ToolFilter struct {
	VendorID      int64
	Status        string
	FulfillMethod string
	Keyword       string
	Page          int
	PageSize      int
}

// ==================== ToolRepository 工具仓库 ====================

// ToolRepository 工具仓库接口
type ToolRepository interface {
	Create(ctx context.Context, tool *model.Tool) error
	GetByID(ctx context.Context, id int64) (*model.Tool, error)
	GetBySlug(ctx context.Context, slug string) (*model.Tool, error)
	List(ctx context.Context, filter ToolFilter) ([]model.Tool, int64, error)
	ListByFulfillMethod(ctx context.Context, method string) ([]model.Tool, error)
	Update(ctx context.Context, tool *model.Tool) error
	UpdateFields(ctx context.Context, id int64, fields map[string]interface{}) error
	Delete(ctx context.Context, id int64) error
}

type toolRepository struct {
	db *gorm.DB
}

// NewToolRepository 创建工具仓库
func NewToolRepository(db *gorm.DB) ToolRepository {
	return &toolRepository{db: db}
}

func (r *toolRepository) Create(ctx context.Context, tool *model.Tool) error {
	return r.db.WithContext(ctx).Create(tool).Error
}

func (r *toolRepository) GetByID(ctx context.Context, id int64) (*model.Tool, error) {
	var tool model.Tool
	err := r.db.WithContext(ctx).First(&tool, id).Error
	if err != nil {
		return nil, err
	}
	return &tool, nil
}

func (r *toolRepository) GetBySlug(ctx context.Context, slug string) (*model.Tool, error) {
	var tool model.Tool
	err := r.db.WithContext(ctx).Where("slug = ?", slug).First(&tool).Error
	if err != nil {
		return nil, err
	}
	return &tool, nil
}

func (r *toolRepository) List(ctx context.Context, filter ToolFilter) ([]model.Tool, int64, error) {
	var tools []model.Tool
	var total int64

	db := r.db.WithContext(ctx).Model(&model.Tool{})

	if filter.VendorID > 0 {
		db = db.Where("vendor_id = ?", filter.VendorID)
	}
	if filter.Status != "" {
		db = db.Where("status = ?", filter.Status)
	}
	if filter.FulfillMethod != "" {
		db = db.Where("fulfill_method = ?", filter.FulfillMethod)
	}
	if filter.Keyword != "" {
		keyword := "%" + filter.Keyword + "%"
		db = db.Where("name LIKE ? OR description LIKE ?", keyword, keyword)
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
		Find(&tools).Error

	return tools, total, err
}

func (r *toolRepository) ListByFulfillMethod(ctx context.Context, method string) ([]model.Tool, error) {
	var tools []model.Tool
	err := r.db.WithContext(ctx).
		Where("fulfill_method = ?", method).
		Where("status = ?", model.ToolStatusActive).
		Find(&tools).Error
	return tools, err
}

func (r *toolRepository) Update(ctx context.Context, tool *model.Tool) error {
	return r.db.WithContext(ctx).Save(tool).Error
}

func (r *toolRepository) UpdateFields(ctx context.Context, id int64, fields map[string]interface{}) error {
	return r.db.WithContext(ctx).Model(&model.Tool{}).Where("id = ?", id).Updates(fields).Error
}

func (r *toolRepository) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Delete(&model.Tool{}, id).Error
}
