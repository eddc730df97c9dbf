package model

import (
	"time"

	"gorm.io/gorm"
)

// ==================== 交付方式常量 ====================

// FulfillMethod 工具的交付方式
const (
	FulfillMethodBulkKeys     = "bulk_keys"     // 批量密钥池
	FulfillMethodCouponCode   = "coupon_code"   // 共享优惠码
	FulfillMethodApiProvision = "api_provision" // 第三方 API 开通
	FulfillMethodManual       = "manual"        // 人工交付
)

// ToolStatus 工具上架状态
const (
	ToolStatusDraft  = "draft"  // 草稿
	ToolStatusActive = "active" // 已上架
	ToolStatusPaused = "paused" // 已下架
)

// LowStockThreshold 密钥库存告警阈值
const LowStockThreshold = 10

// ==================== Tool AI 工具商品 ====================

// Tool 可购买的 AI 工具
type Tool struct {
	ID       int64 `gorm:"primaryKey;autoIncrement"`
	VendorID int64 `gorm:"index;not null"`

	// 基本信息
	Name        string `gorm:"size:255;not null"`
	Slug        string `gorm:"size:255;uniqueIndex"`
	Description string `gorm:"type:text"`
	WebsiteURL  string `gorm:"size:500"`
	VendorEmail string `gorm:"size:255"`

	// 价格（分为单位存储）
	PriceAmount int64
	Currency    string `gorm:"size:10;default:USD"`

	// 交付配置
	FulfillMethod string `gorm:"size:32;index;default:manual"`
	CouponCode    string `gorm:"size:128"` // 交付方式为 coupon_code 时使用
	RedemptionURL string `gorm:"size:500"`
	WebhookURL    string `gorm:"size:500"` // 交付方式为 api_provision 时使用
	Instructions  string `gorm:"type:text"`

	// 密钥计数（缓存值，license_keys 表为准）
	TotalLicenses int `gorm:"default:0"`
	UsedLicenses  int `gorm:"default:0"`

	// 状态
	Status string `gorm:"size:32;index;default:draft"`

	// 审计字段
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt gorm.DeletedAt `gorm:"index"`
}

func (*Tool) TableName() string {
	return "tools"
}

// GetPrice 获取价格（元）
func (t *Tool) GetPrice() float64 {
	return float64(t.PriceAmount) / 100
}

// AvailableLicenses 获取剩余可用密钥数
func (t *Tool) AvailableLicenses() int {
	n := t.TotalLicenses - t.UsedLicenses
	if n < 0 {
		return 0
	}
	return n
}

// IsLowStock 密钥库存是否低于告警阈值
func (t *Tool) IsLowStock() bool {
	return t.FulfillMethod == FulfillMethodBulkKeys && t.AvailableLicenses() < LowStockThreshold
}

// KnownFulfillMethod 交付方式是否为已知枚举值
func (t *Tool) KnownFulfillMethod() bool {
	switch t.FulfillMethod {
	case FulfillMethodBulkKeys, FulfillMethodCouponCode, FulfillMethodApiProvision, FulfillMethodManual:
		return true
	}
	return false
}
