package repository

import (
	"context"
	"errors"
	"time"

	"aimarket_dev_v1_202608/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNoKeysAvailable 密钥池已空
// 不是故障：调用方必须将其转为人工交付兜底，而不是向买家报错
var ErrNoKeysAvailable = errors.New("no unused license keys available")

// ==================== LicenseKeyRepository 密钥仓库 ====================

// BulkAddResult 批量导入结果
type BulkAddResult struct {
	Added             int
	SkippedDuplicates int
}

// LicenseKeyRepository 密钥仓库接口
type LicenseKeyRepository interface {
	ReserveNext(ctx context.Context, toolID, userID int64) (*model.LicenseKey, error)
	BulkAdd(ctx context.Context, toolID int64, keyValues []string) (*BulkAddResult, error)
	GetByID(ctx context.Context, id int64) (*model.LicenseKey, error)
	ListByTool(ctx context.Context, toolID int64, onlyUnused bool) ([]model.LicenseKey, error)
	CountByTool(ctx context.Context, toolID int64) (total, used int64, err error)
}

type licenseKeyRepository struct {
	db *gorm.DB
}

// NewLicenseKeyRepository 创建密钥仓库
func NewLicenseKeyRepository(db *gorm.DB) LicenseKeyRepository {
	return &licenseKeyRepository{db: db}
}

// ReserveNext 原子分配一个未使用的密钥
// 核心约束：选取和占用必须对并发调用不可分割，禁止先读后写两步。
// 实现为条件更新（claim-if-unused）：UPDATE ... WHERE id = ? AND is_used = false，
// RowsAffected = 0 说明该密钥已被并发请求抢走，换下一个候选继续。
func (r *licenseKeyRepository) ReserveNext(ctx context.Context, toolID, userID int64) (*model.LicenseKey, error) {
	var reserved *model.LicenseKey

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now()

		for {
			var candidate model.LicenseKey
			err := tx.Where("tool_id = ? AND is_used = ?", toolID, false).
				Order("id").
				First(&candidate).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNoKeysAvailable
			}
			if err != nil {
				return err
			}

			res := tx.Model(&model.LicenseKey{}).
				Where("id = ? AND is_used = ?", candidate.ID, false).
				Updates(map[string]interface{}{
					"is_used":          true,
					"assigned_user_id": userID,
					"assigned_at":      now,
				})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				// 被并发请求抢先占用，尝试下一个候选
				continue
			}

			// 同一事务内重算工具的已用计数，license_keys 表是唯一事实来源
			if err := recountToolLicenses(tx, toolID); err != nil {
				return err
			}

			candidate.IsUsed = true
			candidate.AssignedUserID = &userID
			candidate.AssignedAt = &now
			reserved = &candidate
			return nil
		}
	})
	if err != nil {
		return nil, err
	}
	return reserved, nil
}

// BulkAdd 批量导入密钥，同工具下已存在的值静默跳过（重复上传幂等）
func (r *licenseKeyRepository) BulkAdd(ctx context.Context, toolID int64, keyValues []string) (*BulkAddResult, error) {
	result := &BulkAddResult{}

	// 去重输入
	seen := make(map[string]struct{}, len(keyValues))
	unique := make([]string, 0, len(keyValues))
	for _, v := range keyValues {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			result.SkippedDuplicates++
			continue
		}
		seen[v] = struct{}{}
		unique = append(unique, v)
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(unique) > 0 {
			keys := make([]model.LicenseKey, len(unique))
			for i, v := range unique {
				keys[i] = model.LicenseKey{ToolID: toolID, KeyValue: v}
			}

			// 唯一索引 (tool_id, key_value) 冲突时直接忽略
			res := tx.Clauses(clause.OnConflict{DoNothing: true}).CreateInBatches(keys, 100)
			if res.Error != nil {
				return res.Error
			}
			result.Added = int(res.RowsAffected)
			result.SkippedDuplicates += len(unique) - result.Added
		}

		// 导入完成后重算密钥计数
		return recountToolLicenses(tx, toolID)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (r *licenseKeyRepository) GetByID(ctx context.Context, id int64) (*model.LicenseKey, error) {
	var key model.LicenseKey
	err := r.db.WithContext(ctx).First(&key, id).Error
	if err != nil {
		return nil, err
	}
	return &key, nil
}

func (r *licenseKeyRepository) ListByTool(ctx context.Context, toolID int64, onlyUnused bool) ([]model.LicenseKey, error) {
	var keys []model.LicenseKey
	db := r.db.WithContext(ctx).Where("tool_id = ?", toolID)
	if onlyUnused {
		db = db.Where("is_used = ?", false)
	}
	err := db.Order("id").Find(&keys).Error
	return keys, err
}

func (r *licenseKeyRepository) CountByTool(ctx context.Context, toolID int64) (total, used int64, err error) {
	if err = r.db.WithContext(ctx).Model(&model.LicenseKey{}).
		Where("tool_id = ?", toolID).Count(&total).Error; err != nil {
		return 0, 0, err
	}
	if err = r.db.WithContext(ctx).Model(&model.LicenseKey{}).
		Where("tool_id = ? AND is_used = ?", toolID, true).Count(&used).Error; err != nil {
		return 0, 0, err
	}
	return total, used, nil
}

// recountToolLicenses 从 license_keys 表重算并回写工具上的计数缓存
func recountToolLicenses(tx *gorm.DB, toolID int64) error {
	var total, used int64
	if err := tx.Model(&model.LicenseKey{}).
		Where("tool_id = ?", toolID).Count(&total).Error; err != nil {
		return err
	}
	if err := tx.Model(&model.LicenseKey{}).
		Where("tool_id = ? AND is_used = ?", toolID, true).Count(&used).Error; err != nil {
		return err
	}
	return tx.Model(&model.Tool{}).Where("id = ?", toolID).Updates(map[string]interface{}{
		"total_licenses": total,
		"used_licenses":  used,
	}).Error
}
