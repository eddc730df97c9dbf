package model

import (
	"time"
)

// ==================== 佣金状态常量 ====================

// EarningStatus 佣金状态
// pending → requested（纳入提现申请）→ paid（提现打款完成）
const (
	EarningStatusPending   = "pending"   // 待提现
	EarningStatusRequested = "requested" // 已纳入提现申请
	EarningStatusPaid      = "paid"      // 已打款
)

// PayoutStatus 提现申请状态
const (
	PayoutStatusPending   = "pending"   // 待处理
	PayoutStatusPaid      = "paid"      // 已打款
	PayoutStatusRejected  = "rejected"  // 已驳回
	PayoutStatusCancelled = "cancelled" // 已取消
)

// MinPayoutAmount 最低提现金额（分）
const MinPayoutAmount int64 = 1000

// ==================== Affiliate 推广者 ====================

// Affiliate 推广者资料
type Affiliate struct {
	ID     int64 `gorm:"primaryKey;autoIncrement"`
	UserID int64 `gorm:"uniqueIndex;not null"`

	// 推广配置
	ReferralCode   string  `gorm:"size:64;uniqueIndex"`
	CommissionRate float64 `gorm:"default:0.1"` // 默认佣金比例，结算时由调用方解析后传入

	// 收款信息
	PayoutEmail string `gorm:"size:255"`

	// 审计
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (*Affiliate) TableName() string {
	return "affiliates"
}

// HasPayoutInfo 是否已配置收款邮箱
func (a *Affiliate) HasPayoutInfo() bool {
	return a.PayoutEmail != ""
}

// ==================== AffiliateEarning 佣金记录 ====================

// AffiliateEarning 单笔购买对应的佣金
// PurchaseID 唯一索引保证同一笔购买重试时不会重复入账
type AffiliateEarning struct {
	ID          int64 `gorm:"primaryKey;autoIncrement"`
	AffiliateID int64 `gorm:"index;not null"`
	ToolID      int64 `gorm:"index"`
	PurchaseID  int64 `gorm:"uniqueIndex;not null"`

	// 金额（分）
	Amount int64

	// 状态
	Status   string `gorm:"size:32;index;default:pending"`
	PayoutID *int64 `gorm:"index"` // 纳入提现申请后关联

	// 审计
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (*AffiliateEarning) TableName() string {
	return "affiliate_earnings"
}

// GetAmount 获取佣金金额（元）
func (e *AffiliateEarning) GetAmount() float64 {
	return float64(e.Amount) / 100
}

// ==================== AffiliatePayout 提现申请 ====================

// AffiliatePayout 批量提现申请，创建后金额不再变更，仅状态由外部打款流程推进
type AffiliatePayout struct {
	ID          int64  `gorm:"primaryKey;autoIncrement"`
	ReferenceNo string `gorm:"size:64;uniqueIndex;not null"`
	AffiliateID int64  `gorm:"index;not null"`

	// 金额（分）
	Amount int64

	// 状态与收款信息
	Status      string `gorm:"size:32;index;default:pending"`
	PayoutEmail string `gorm:"size:255"`

	// 审计
	CreatedAt time.Time
	UpdatedAt time.Time

	// 关联
	Earnings []AffiliateEarning `gorm:"foreignKey:PayoutID"`
}

func (*AffiliatePayout) TableName() string {
	return "affiliate_payouts"
}

// GetAmount 获取提现金额（元）
func (p *AffiliatePayout) GetAmount() float64 {
	return float64(p.Amount) / 100
}
