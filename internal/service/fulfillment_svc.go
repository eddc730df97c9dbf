package service

import (
	"context"
	"encoding/json"
	"errors"
	"log"

	"aimarket_dev_v1_202608/internal/model"
	"aimarket_dev_v1_202608/internal/repository"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ==================== 错误定义 ====================

var (
	// ErrPurchaseNotFound 购买记录不存在，交付调用直接失败，不重试
	ErrPurchaseNotFound = errors.New("purchase not found")
	// ErrToolNotFound 工具不存在，交付调用直接失败，不重试
	ErrToolNotFound = errors.New("tool not found")
	// ErrPurchaseToolMismatch 购买记录与工具不匹配
	ErrPurchaseToolMismatch = errors.New("purchase does not reference the given tool")
)

// ==================== 交付结果 ====================

// FulfillmentOutcome 单次策略执行的结构化结果，序列化后存入购买记录
type FulfillmentOutcome struct {
	Method                 string            `json:"method"`
	Success                bool              `json:"success"`
	Payload                map[string]string `json:"payload"`
	Instructions           string            `json:"instructions,omitempty"`
	RequiresManualFollowup bool              `json:"requires_manual_followup"`
	FallbackReason         string            `json:"fallback_reason,omitempty"`
}

// FulfillmentResult 返回给结算流程的用户可见结果
// 策略内部的任何失败都已降级为人工兜底，买家永远看到一条成功语义的消息
type FulfillmentResult struct {
	Success     bool                `json:"success"`
	Message     string              `json:"message"`
	Fulfillment *FulfillmentOutcome `json:"fulfillment"`
}

// 兜底原因标记，供运营工具筛查
const (
	FallbackNoKeysAvailable = "no_keys_available"
	FallbackReserveFailed   = "reserve_failed"
	FallbackProvisionFailed = "provision_failed"
)

// 买家可见的四类交付消息
const (
	MsgLicenseKeyDelivered = "购买成功！您的许可密钥已生成，请查看访问说明"
	MsgCouponDelivered     = "购买成功！请使用优惠码前往兑换页面激活产品"
	MsgAccountProvisioned  = "购买成功！您的账号已自动开通，请查收登录信息"
	MsgManualProcessing    = "购买成功！订单正在人工处理中，预计 24-48 小时内交付"
)

// ==================== FulfillmentService 交付服务 ====================

// FulfillmentService 交付调度服务：加载购买与工具，按配置的交付方式执行策略，
// 并把结果落库到购买记录
type FulfillmentService struct {
	purchaseRepo repository.PurchaseRepository
	toolRepo     repository.ToolRepository
	licenseRepo  repository.LicenseKeyRepository
	provision    ProvisionClient
}

// NewFulfillmentService 创建交付服务
func NewFulfillmentService(
	purchaseRepo repository.PurchaseRepository,
	toolRepo repository.ToolRepository,
	licenseRepo repository.LicenseKeyRepository,
	provision ProvisionClient,
) *FulfillmentService {
	return &FulfillmentService{
		purchaseRepo: purchaseRepo,
		toolRepo:     toolRepo,
		licenseRepo:  licenseRepo,
		provision:    provision,
	}
}

// ==================== 交付调度 ====================

// Fulfill 执行一次交付并持久化结果
// 除加载失败外不返回错误：策略失败一律降级为人工兜底结果
func (s *FulfillmentService) Fulfill(ctx context.Context, purchaseID, toolID int64, customerEmail string) (*FulfillmentResult, error) {
	purchase, err := s.purchaseRepo.GetByID(ctx, purchaseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPurchaseNotFound
		}
		return nil, err
	}

	tool, err := s.toolRepo.GetByID(ctx, toolID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrToolNotFound
		}
		return nil, err
	}

	if purchase.ToolID != tool.ID {
		return nil, ErrPurchaseToolMismatch
	}

	if customerEmail == "" {
		customerEmail = purchase.CustomerEmail
	}

	outcome := s.resolve(ctx, purchase, tool, customerEmail)

	if err := s.persistOutcome(ctx, purchase, outcome); err != nil {
		return nil, err
	}

	return &FulfillmentResult{
		Success:     outcome.Success,
		Message:     messageFor(outcome),
		Fulfillment: outcome,
	}, nil
}

// persistOutcome 把交付结果写回购买记录
// 只有成功且无需人工跟进才置为已完成；需要人工跟进的保持待交付，便于运营排查。
// 状态只在待交付 → 已完成时写入：重复交付已完成的订单不得把状态拨回待交付
func (s *FulfillmentService) persistOutcome(ctx context.Context, purchase *model.Purchase, outcome *FulfillmentOutcome) error {
	serialized, err := json.Marshal(outcome)
	if err != nil {
		return err
	}

	fields := map[string]interface{}{
		"access_instructions":   datatypes.JSON(serialized),
		"needs_manual_followup": outcome.RequiresManualFollowup,
	}

	if key, ok := outcome.Payload["license_key"]; ok && key != "" {
		fields["license_key"] = key
	}

	if outcome.Success && !outcome.RequiresManualFollowup && purchase.CanComplete() {
		fields["status"] = model.PurchaseStatusCompleted
	}

	return s.purchaseRepo.UpdateFields(ctx, purchase.ID, fields)
}

// ==================== 策略解析 ====================

// resolve 按工具配置的交付方式执行对应策略
// 未识别的交付方式按人工交付处理并记录告警，不让配置问题打断买家流程
func (s *FulfillmentService) resolve(ctx context.Context, purchase *model.Purchase, tool *model.Tool, customerEmail string) *FulfillmentOutcome {
	switch tool.FulfillMethod {
	case model.FulfillMethodBulkKeys:
		return s.resolveBulkKeys(ctx, purchase, tool)
	case model.FulfillMethodCouponCode:
		return s.resolveCouponCode(tool)
	case model.FulfillMethodApiProvision:
		return s.resolveApiProvision(ctx, purchase, tool, customerEmail)
	case model.FulfillMethodManual:
		return s.resolveManual(tool)
	default:
		log.Printf("[Fulfill] 工具 %d 配置了未识别的交付方式 %q，按人工交付处理", tool.ID, tool.FulfillMethod)
		return s.resolveManual(tool)
	}
}

// resolveBulkKeys 从密钥池原子分配一个密钥，池空时降级为人工兜底
func (s *FulfillmentService) resolveBulkKeys(ctx context.Context, purchase *model.Purchase, tool *model.Tool) *FulfillmentOutcome {
	key, err := s.licenseRepo.ReserveNext(ctx, tool.ID, purchase.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNoKeysAvailable) {
			log.Printf("[Fulfill] 工具 %d 密钥池已空，订单 %s 转人工交付", tool.ID, purchase.OrderNo)
			return s.manualFallback(tool, FallbackNoKeysAvailable)
		}
		log.Printf("[Fulfill] 工具 %d 密钥分配失败: %v，订单 %s 转人工交付", tool.ID, err, purchase.OrderNo)
		return s.manualFallback(tool, FallbackReserveFailed)
	}

	return &FulfillmentOutcome{
		Method:  model.FulfillMethodBulkKeys,
		Success: true,
		Payload: map[string]string{
			"license_key":    key.KeyValue,
			"website_url":    tool.WebsiteURL,
			"redemption_url": tool.RedemptionURL,
		},
		Instructions: tool.Instructions,
	}
}

// resolveCouponCode 优惠码共享使用、不稀缺，永远成功
func (s *FulfillmentService) resolveCouponCode(tool *model.Tool) *FulfillmentOutcome {
	return &FulfillmentOutcome{
		Method:  model.FulfillMethodCouponCode,
		Success: true,
		Payload: map[string]string{
			"coupon_code":    tool.CouponCode,
			"redemption_url": tool.RedemptionURL,
		},
		Instructions: tool.Instructions,
	}
}

// resolveApiProvision 调用厂商 Webhook 自动开通账号，每次交付只尝试一次
// HTTP 失败、网络错误、超时一律降级为人工兜底
func (s *FulfillmentService) resolveApiProvision(ctx context.Context, purchase *model.Purchase, tool *model.Tool, customerEmail string) *FulfillmentOutcome {
	result, err := s.provision.Provision(ctx, tool.WebhookURL, &ProvisionRequest{
		PurchaseID:    purchase.ID,
		OrderNo:       purchase.OrderNo,
		CustomerEmail: customerEmail,
		ToolID:        tool.ID,
		ToolName:      tool.Name,
	})
	if err != nil {
		log.Printf("[Fulfill] 工具 %d API 开通失败: %v，订单 %s 转人工交付", tool.ID, err, purchase.OrderNo)
		return s.manualFallback(tool, FallbackProvisionFailed)
	}

	return &FulfillmentOutcome{
		Method:  model.FulfillMethodApiProvision,
		Success: true,
		Payload: map[string]string{
			"login_url": result.LoginURL,
			"username":  result.Username,
			"password":  result.Password,
		},
		Instructions: tool.Instructions,
	}
}

// resolveManual 人工交付本身就是正常路径，不需要跟进标记
func (s *FulfillmentService) resolveManual(tool *model.Tool) *FulfillmentOutcome {
	return &FulfillmentOutcome{
		Method:  model.FulfillMethodManual,
		Success: true,
		Payload: map[string]string{
			"vendor_email":   tool.VendorEmail,
			"estimated_time": "24-48 hours",
		},
		Instructions: tool.Instructions,
	}
}

// manualFallback 自动策略失败后的兜底结果，带原因标记并要求人工跟进
func (s *FulfillmentService) manualFallback(tool *model.Tool, reason string) *FulfillmentOutcome {
	return &FulfillmentOutcome{
		Method:  model.FulfillMethodManual,
		Success: true,
		Payload: map[string]string{
			"vendor_email":   tool.VendorEmail,
			"estimated_time": "24-48 hours",
		},
		Instructions:           tool.Instructions,
		RequiresManualFollowup: true,
		FallbackReason:         reason,
	}
}

// ==================== 消息选择 ====================

// messageFor 按交付方式和结果选择买家可见消息
func messageFor(outcome *FulfillmentOutcome) string {
	if outcome.RequiresManualFollowup {
		return MsgManualProcessing
	}
	switch outcome.Method {
	case model.FulfillMethodBulkKeys:
		return MsgLicenseKeyDelivered
	case model.FulfillMethodCouponCode:
		return MsgCouponDelivered
	case model.FulfillMethodApiProvision:
		return MsgAccountProvisioned
	default:
		return MsgManualProcessing
	}
}
