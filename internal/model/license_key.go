package model

import (
	"time"
)

// ==================== LicenseKey 许可密钥 ====================

// LicenseKey 单个许可密钥，属于某个工具的密钥池
// 一旦 IsUsed 置为 true，AssignedUserID 和 AssignedAt 同时写入且不再变更
type LicenseKey struct {
	ID     int64 `gorm:"primaryKey;autoIncrement"`
	ToolID int64 `gorm:"not null;index;uniqueIndex:idx_tool_key_value"`

	KeyValue string `gorm:"size:255;not null;uniqueIndex:idx_tool_key_value"`

	// 分配信息
	IsUsed         bool       `gorm:"default:false;index"`
	AssignedUserID *int64     // 可为空，未分配时为 NULL
	AssignedAt     *time.Time // 可为空，未分配时为 NULL

	// 审计
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (*LicenseKey) TableName() string {
	return "license_keys"
}
