package service

import (
	"context"
	"errors"
	"fmt"

	"aimarket_dev_v1_202608/internal/model"
	"aimarket_dev_v1_202608/internal/repository"

	"gorm.io/gorm"
)

// ==================== LicenseService 密钥库存服务 ====================

// LicenseStats 某个工具的密钥库存概况
type LicenseStats struct {
	Total     int64 `json:"total"`
	Used      int64 `json:"used"`
	Available int64 `json:"available"`
	LowStock  bool  `json:"low_stock"`
}

// LicenseService 密钥库存服务：密钥池唯一的写入口
type LicenseService struct {
	licenseRepo repository.LicenseKeyRepository
	toolRepo    repository.ToolRepository
}

// NewLicenseService 创建密钥库存服务
func NewLicenseService(licenseRepo repository.LicenseKeyRepository, toolRepo repository.ToolRepository) *LicenseService {
	return &LicenseService{
		licenseRepo: licenseRepo,
		toolRepo:    toolRepo,
	}
}

// ReserveKey 为某个用户原子分配一个密钥
// 池空返回 repository.ErrNoKeysAvailable，由调用方转人工兜底
func (s *LicenseService) ReserveKey(ctx context.Context, toolID, userID int64) (*model.LicenseKey, error) {
	return s.licenseRepo.ReserveNext(ctx, toolID, userID)
}

// BulkAdd 批量导入密钥（厂商上传），重复值静默跳过
func (s *LicenseService) BulkAdd(ctx context.Context, toolID int64, keyValues []string) (*repository.BulkAddResult, error) {
	if _, err := s.toolRepo.GetByID(ctx, toolID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrToolNotFound
		}
		return nil, err
	}

	if len(keyValues) == 0 {
		return nil, fmt.Errorf("密钥列表不能为空")
	}

	return s.licenseRepo.BulkAdd(ctx, toolID, keyValues)
}

// ListKeys 厂商端密钥明细，可只看未分配的
func (s *LicenseService) ListKeys(ctx context.Context, toolID int64, onlyUnused bool) ([]model.LicenseKey, error) {
	if _, err := s.toolRepo.GetByID(ctx, toolID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrToolNotFound
		}
		return nil, err
	}

	return s.licenseRepo.ListByTool(ctx, toolID, onlyUnused)
}

// Stats 获取库存概况，用于厂商端告警展示，不参与分配决策
func (s *LicenseService) Stats(ctx context.Context, toolID int64) (*LicenseStats, error) {
	if _, err := s.toolRepo.GetByID(ctx, toolID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrToolNotFound
		}
		return nil, err
	}

	total, used, err := s.licenseRepo.CountByTool(ctx, toolID)
	if err != nil {
		return nil, err
	}

	available := total - used
	return &LicenseStats{
		Total:     total,
		Used:      used,
		Available: available,
		LowStock:  available < model.LowStockThreshold,
	}, nil
}
