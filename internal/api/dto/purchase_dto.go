package dto

import "time"

// ==================== 购买创建 ====================

// CreatePurchaseRequest 支付确认后落单请求
type CreatePurchaseRequest struct {
	UserID        int64  `json:"user_id" binding:"required"`
	ToolID        int64  `json:"tool_id" binding:"required"`
	CustomerEmail string `json:"customer_email" binding:"required,email"`
}

// ==================== 交付 ====================

// FulfillRequest 交付请求
type FulfillRequest struct {
	ToolID        int64  `json:"tool_id" binding:"required"`
	CustomerEmail string `json:"customer_email"`
}

// FulfillmentVO 交付结果视图对象
type FulfillmentVO struct {
	Method                 string            `json:"method"`
	Payload                map[string]string `json:"payload"`
	Instructions           string            `json:"instructions,omitempty"`
	RequiresManualFollowup bool              `json:"requires_manual_followup"`
}

// FulfillResponse 交付响应，返回给结算流程渲染购买成功页
type FulfillResponse struct {
	Success     bool           `json:"success"`
	Message     string         `json:"message"`
	Fulfillment *FulfillmentVO `json:"fulfillment"`
}

// ==================== 购买列表与详情 ====================

// ListPurchasesRequest 购买列表请求
type ListPurchasesRequest struct {
	UserID         int64  `form:"user_id"`
	ToolID         int64  `form:"tool_id"`
	Status         string `form:"status"` // pending, completed, cancelled, refunded
	ManualFollowup string `form:"manual_followup"`
	StartDate      string `form:"start_date"` // 2026-01-01
	EndDate        string `form:"end_date"`
	Keyword        string `form:"keyword"` // 搜索：订单号、买家邮箱
	Page           int    `form:"page,default=1"`
	PageSize       int    `form:"page_size,default=20"`
}

// ListPurchasesResponse 购买列表响应
type ListPurchasesResponse struct {
	Total int64            `json:"total"`
	List  []PurchaseListItem `json:"list"`
}

// PurchaseListItem 购买列表项
type PurchaseListItem struct {
	ID                  int64     `json:"id"`
	OrderNo             string    `json:"order_no"`
	UserID              int64     `json:"user_id"`
	ToolID              int64     `json:"tool_id"`
	CustomerEmail       string    `json:"customer_email"`
	Status              string    `json:"status"`
	Price               float64   `json:"price"`
	Currency            string    `json:"currency"`
	NeedsManualFollowup bool      `json:"needs_manual_followup"`
	CreatedAt           time.Time `json:"created_at"`
}

// PurchaseVO 购买详情视图对象
type PurchaseVO struct {
	ID                  int64     `json:"id"`
	OrderNo             string    `json:"order_no"`
	UserID              int64     `json:"user_id"`
	ToolID              int64     `json:"tool_id"`
	CustomerEmail       string    `json:"customer_email"`
	Status              string    `json:"status"`
	Price               float64   `json:"price"`
	Currency            string    `json:"currency"`
	LicenseKey          string    `json:"license_key,omitempty"`
	AccessInstructions  string    `json:"access_instructions,omitempty"`
	NeedsManualFollowup bool      `json:"needs_manual_followup"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// UpdatePurchaseStatusRequest 管理端状态变更请求
type UpdatePurchaseStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// ==================== 购买统计 ====================

// PurchaseStatsRequest 购买统计请求
type PurchaseStatsRequest struct {
	ToolID    int64  `form:"tool_id"`
	StartDate string `form:"start_date" binding:"required"`
	EndDate   string `form:"end_date" binding:"required"`
}

// PurchaseStatsResponse 购买统计响应
type PurchaseStatsResponse struct {
	TotalPurchases  int     `json:"total_purchases"`
	TotalAmount     float64 `json:"total_amount"`
	PendingCount    int     `json:"pending_count"`
	CompletedCount  int     `json:"completed_count"`
	CancelledCount  int     `json:"cancelled_count"`
	RefundedCount   int     `json:"refunded_count"`
	ManualFollowups int     `json:"manual_followups"`
}
