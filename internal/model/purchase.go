package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ==================== 购买状态常量 ====================

// PurchaseStatus 购买记录状态
// 状态只能单向流转：pending → completed / cancelled，pending、completed → refunded
const (
	PurchaseStatusPending   = "pending"   // 待交付
	PurchaseStatusCompleted = "completed" // 已完成
	PurchaseStatusCancelled = "cancelled" // 已取消
	PurchaseStatusRefunded  = "refunded"  // 已退款
)

// ==================== Purchase 购买记录 ====================

// Purchase 买家对某个工具的购买
type Purchase struct {
	ID      int64  `gorm:"primaryKey;autoIncrement"`
	OrderNo string `gorm:"size:64;uniqueIndex;not null"`

	// 买家信息
	UserID        int64  `gorm:"index;not null"`
	CustomerEmail string `gorm:"size:255"`

	// 商品信息
	ToolID int64 `gorm:"index;not null"`

	// 金额（分为单位存储）
	PriceAmount int64
	Currency    string `gorm:"size:10;default:USD"`

	// 交付结果
	Status             string         `gorm:"size:32;index;default:pending"`
	LicenseKey         string         `gorm:"size:255"` // 交付时分配的密钥（可为空）
	AccessInstructions datatypes.JSON `gorm:"type:jsonb"`

	// 人工跟进标记，自动交付失败降级后置位
	NeedsManualFollowup bool `gorm:"default:false;index"`

	// 审计字段
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt gorm.DeletedAt `gorm:"index"`
}

func (*Purchase) TableName() string {
	return "purchases"
}

// GetPrice 获取实付金额（元）
func (p *Purchase) GetPrice() float64 {
	return float64(p.PriceAmount) / 100
}

// CanComplete 检查是否可以置为已完成
func (p *Purchase) CanComplete() bool {
	return p.Status == PurchaseStatusPending
}

// CanCancel 检查是否可以取消
func (p *Purchase) CanCancel() bool {
	return p.Status == PurchaseStatusPending
}

// CanRefund 检查是否可以退款
func (p *Purchase) CanRefund() bool {
	return p.Status == PurchaseStatusPending || p.Status == PurchaseStatusCompleted
}
