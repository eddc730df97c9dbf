package dto

import "time"

// ==================== 工具管理 ====================

// CreateToolRequest 创建工具请求
type CreateToolRequest struct {
	VendorID      int64   `json:"vendor_id" binding:"required"`
	Name          string  `json:"name" binding:"required"`
	Slug          string  `json:"slug"`
	Description   string  `json:"description"`
	WebsiteURL    string  `json:"website_url"`
	VendorEmail   string  `json:"vendor_email"`
	Price         float64 `json:"price"`
	Currency      string  `json:"currency"`
	FulfillMethod string  `json:"fulfill_method"` // bulk_keys, coupon_code, api_provision, manual
	CouponCode    string  `json:"coupon_code"`
	RedemptionURL string  `json:"redemption_url"`
	WebhookURL    string  `json:"webhook_url"`
	Instructions  string  `json:"instructions"`
}

// ListToolsRequest 工具列表请求
type ListToolsRequest struct {
	VendorID      int64  `form:"vendor_id"`
	Status        string `form:"status"`
	FulfillMethod string `form:"fulfill_method"`
	Keyword       string `form:"keyword"`
	Page          int    `form:"page,default=1"`
	PageSize      int    `form:"page_size,default=20"`
}

// ListToolsResponse 工具列表响应
type ListToolsResponse struct {
	Total int64    `json:"total"`
	List  []ToolVO `json:"list"`
}

// ToolVO 工具视图对象
type ToolVO struct {
	ID            int64     `json:"id"`
	VendorID      int64     `json:"vendor_id"`
	Name          string    `json:"name"`
	Slug          string    `json:"slug"`
	Description   string    `json:"description,omitempty"`
	WebsiteURL    string    `json:"website_url,omitempty"`
	Price         float64   `json:"price"`
	Currency      string    `json:"currency"`
	FulfillMethod string    `json:"fulfill_method"`
	TotalLicenses int       `json:"total_licenses"`
	UsedLicenses  int       `json:"used_licenses"`
	LowStock      bool      `json:"low_stock"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
}

// ==================== 密钥管理 ====================

// BulkAddKeysRequest 批量导入密钥请求
type BulkAddKeysRequest struct {
	Keys []string `json:"keys" binding:"required"`
}

// BulkAddKeysResponse 批量导入密钥响应
type BulkAddKeysResponse struct {
	Added             int `json:"added"`
	SkippedDuplicates int `json:"skipped_duplicates"`
}

// ListKeysRequest 密钥明细请求
type ListKeysRequest struct {
	OnlyUnused bool `form:"only_unused"`
}

// LicenseKeyVO 密钥视图对象
type LicenseKeyVO struct {
	ID             int64      `json:"id"`
	KeyValue       string     `json:"key_value"`
	IsUsed         bool       `json:"is_used"`
	AssignedUserID *int64     `json:"assigned_user_id,omitempty"`
	AssignedAt     *time.Time `json:"assigned_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// ListKeysResponse 密钥明细响应
type ListKeysResponse struct {
	Total int            `json:"total"`
	List  []LicenseKeyVO `json:"list"`
}

// LicenseStatsResponse 密钥库存概况响应
type LicenseStatsResponse struct {
	Total     int64 `json:"total"`
	Used      int64 `json:"used"`
	Available int64 `json:"available"`
	LowStock  bool  `json:"low_stock"`
}
