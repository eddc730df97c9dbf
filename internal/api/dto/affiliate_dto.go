package dto

import "time"

// ==================== 佣金入账 ====================

// AccrueCommissionRequest 佣金入账请求（结算流程回调）
type AccrueCommissionRequest struct {
	AffiliateID    int64   `json:"affiliate_id" binding:"required"`
	ToolID         int64   `json:"tool_id"`
	PurchaseID     int64   `json:"purchase_id" binding:"required"`
	PurchaseAmount float64 `json:"purchase_amount" binding:"required"`
	CommissionRate float64 `json:"commission_rate" binding:"required"`
}

// EarningVO 佣金记录视图对象
type EarningVO struct {
	ID          int64     `json:"id"`
	AffiliateID int64     `json:"affiliate_id"`
	ToolID      int64     `json:"tool_id"`
	PurchaseID  int64     `json:"purchase_id"`
	Amount      float64   `json:"amount"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

// ==================== 提现 ====================

// PayoutVO 提现申请视图对象
type PayoutVO struct {
	ID          int64     `json:"id"`
	ReferenceNo string    `json:"reference_no"`
	AffiliateID int64     `json:"affiliate_id"`
	Amount      float64   `json:"amount"`
	Status      string    `json:"status"`
	PayoutEmail string    `json:"payout_email"`
	CreatedAt   time.Time `json:"created_at"`
}

// ResolveReferralResponse 推广码解析响应（结算流程用码换推广者）
type ResolveReferralResponse struct {
	AffiliateID    int64   `json:"affiliate_id"`
	ReferralCode   string  `json:"referral_code"`
	CommissionRate float64 `json:"commission_rate"`
}

// ==================== 推广者概况 ====================

// AffiliateSummaryResponse 推广者看板概况
type AffiliateSummaryResponse struct {
	AffiliateID    int64   `json:"affiliate_id"`
	ReferralCode   string  `json:"referral_code"`
	PendingBalance float64 `json:"pending_balance"`
	PayoutEmail    string  `json:"payout_email,omitempty"`
}
