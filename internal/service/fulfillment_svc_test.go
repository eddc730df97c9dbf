package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"aimarket_dev_v1_202608/internal/model"
	"aimarket_dev_v1_202608/internal/repository"
)

func setupFulfillmentTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("连接测试数据库失败: %v", err)
	}

	err = db.AutoMigrate(&model.Tool{}, &model.LicenseKey{}, &model.Purchase{})
	if err != nil {
		t.Fatalf("数据库迁移失败: %v", err)
	}

	return db
}

func newFulfillmentService(db *gorm.DB) *FulfillmentService {
	return NewFulfillmentService(
		repository.NewPurchaseRepository(db),
		repository.NewToolRepository(db),
		repository.NewLicenseKeyRepository(db),
		NewProvisionClient(),
	)
}

func createFulfillmentFixture(t *testing.T, db *gorm.DB, method string) (*model.Tool, *model.Purchase) {
	tool := &model.Tool{
		VendorID:      1,
		Name:          "测试工具",
		Slug:          "test-tool-" + method,
		VendorEmail:   "vendor@example.com",
		PriceAmount:   9900,
		FulfillMethod: method,
		CouponCode:    "SAVE20",
		RedemptionURL: "https://tool.example.com/redeem",
		WebsiteURL:    "https://tool.example.com",
		Instructions:  "按说明激活",
		Status:        model.ToolStatusActive,
	}
	if err := db.Create(tool).Error; err != nil {
		t.Fatalf("创建测试工具失败: %v", err)
	}

	purchase := &model.Purchase{
		OrderNo:       "AIM-TEST-" + method,
		UserID:        100,
		CustomerEmail: "buyer@example.com",
		ToolID:        tool.ID,
		PriceAmount:   tool.PriceAmount,
		Status:        model.PurchaseStatusPending,
	}
	if err := db.Create(purchase).Error; err != nil {
		t.Fatalf("创建测试购买记录失败: %v", err)
	}

	return tool, purchase
}

func TestFulfillmentService_BulkKeys(t *testing.T) {
	db := setupFulfillmentTestDB(t)
	svc := newFulfillmentService(db)
	ctx := context.Background()

	tool, purchase := createFulfillmentFixture(t, db, model.FulfillMethodBulkKeys)
	licenseRepo := repository.NewLicenseKeyRepository(db)
	if _, err := licenseRepo.BulkAdd(ctx, tool.ID, []string{"KEY-001"}); err != nil {
		t.Fatalf("BulkAdd() error = %v", err)
	}

	result, err := svc.Fulfill(ctx, purchase.ID, tool.ID, "")
	if err != nil {
		t.Fatalf("Fulfill() error = %v", err)
	}

	if !result.Success {
		t.Error("Success = false, want true")
	}
	if result.Message != MsgLicenseKeyDelivered {
		t.Errorf("Message = %q, want 密钥交付消息", result.Message)
	}
	if result.Fulfillment.Payload["license_key"] != "KEY-001" {
		t.Errorf("license_key = %q, want KEY-001", result.Fulfillment.Payload["license_key"])
	}
	if result.Fulfillment.RequiresManualFollowup {
		t.Error("RequiresManualFollowup = true, want false")
	}

	// 购买记录置为已完成，密钥写回
	var found model.Purchase
	db.First(&found, purchase.ID)
	if found.Status != model.PurchaseStatusCompleted {
		t.Errorf("购买状态 = %s, want completed", found.Status)
	}
	if found.LicenseKey != "KEY-001" {
		t.Errorf("LicenseKey = %q, want KEY-001", found.LicenseKey)
	}
	if found.NeedsManualFollowup {
		t.Error("NeedsManualFollowup = true, want false")
	}
}

func TestFulfillmentService_BulkKeys_PoolExhausted(t *testing.T) {
	db := setupFulfillmentTestDB(t)
	svc := newFulfillmentService(db)
	ctx := context.Background()

	// 密钥池为空：降级人工兜底，但买家仍看到成功
	tool, purchase := createFulfillmentFixture(t, db, model.FulfillMethodBulkKeys)

	result, err := svc.Fulfill(ctx, purchase.ID, tool.ID, "")
	if err != nil {
		t.Fatalf("Fulfill() error = %v", err)
	}

	if !result.Success {
		t.Error("兜底交付 Success = false, want true")
	}
	if result.Message != MsgManualProcessing {
		t.Errorf("Message = %q, want 人工处理消息", result.Message)
	}
	if result.Fulfillment.Method != model.FulfillMethodManual {
		t.Errorf("Method = %s, want manual", result.Fulfillment.Method)
	}
	if !result.Fulfillment.RequiresManualFollowup {
		t.Error("RequiresManualFollowup = false, want true")
	}
	if result.Fulfillment.FallbackReason != FallbackNoKeysAvailable {
		t.Errorf("FallbackReason = %s, want no_keys_available", result.Fulfillment.FallbackReason)
	}

	// 购买记录保持待交付并标记人工跟进
	var found model.Purchase
	db.First(&found, purchase.ID)
	if found.Status != model.PurchaseStatusPending {
		t.Errorf("购买状态 = %s, want pending", found.Status)
	}
	if !found.NeedsManualFollowup {
		t.Error("NeedsManualFollowup = false, want true")
	}
}

func TestFulfillmentService_CouponCode(t *testing.T) {
	db := setupFulfillmentTestDB(t)
	svc := newFulfillmentService(db)
	ctx := context.Background()

	tool, purchase := createFulfillmentFixture(t, db, model.FulfillMethodCouponCode)

	result, err := svc.Fulfill(ctx, purchase.ID, tool.ID, "")
	if err != nil {
		t.Fatalf("Fulfill() error = %v", err)
	}

	if !result.Success {
		t.Error("Success = false, want true")
	}
	if result.Message != MsgCouponDelivered {
		t.Errorf("Message = %q, want 优惠码交付消息", result.Message)
	}
	if result.Fulfillment.Payload["coupon_code"] != "SAVE20" {
		t.Errorf("coupon_code = %q, want SAVE20", result.Fulfillment.Payload["coupon_code"])
	}
	if result.Fulfillment.Payload["redemption_url"] != tool.RedemptionURL {
		t.Errorf("redemption_url = %q, want %q", result.Fulfillment.Payload["redemption_url"], tool.RedemptionURL)
	}

	var found model.Purchase
	db.First(&found, purchase.ID)
	if found.Status != model.PurchaseStatusCompleted {
		t.Errorf("购买状态 = %s, want completed", found.Status)
	}
}

func TestFulfillmentService_ApiProvision(t *testing.T) {
	db := setupFulfillmentTestDB(t)
	svc := newFulfillmentService(db)
	ctx := context.Background()

	// 厂商 Webhook 正常返回账号信息
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ProvisionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if req.CustomerEmail != "buyer@example.com" {
			t.Errorf("Webhook 收到的 customer_email = %q", req.CustomerEmail)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(ProvisionResult{
			LoginURL: "https://tool.example.com/login",
			Username: "buyer@example.com",
			Password: "generated-pass",
		})
	}))
	defer server.Close()

	tool, purchase := createFulfillmentFixture(t, db, model.FulfillMethodApiProvision)
	db.Model(tool).Update("webhook_url", server.URL)

	result, err := svc.Fulfill(ctx, purchase.ID, tool.ID, "")
	if err != nil {
		t.Fatalf("Fulfill() error = %v", err)
	}

	if !result.Success {
		t.Error("Success = false, want true")
	}
	if result.Message != MsgAccountProvisioned {
		t.Errorf("Message = %q, want 账号开通消息", result.Message)
	}
	if result.Fulfillment.Payload["login_url"] != "https://tool.example.com/login" {
		t.Errorf("login_url = %q", result.Fulfillment.Payload["login_url"])
	}
	if result.Fulfillment.Payload["password"] != "generated-pass" {
		t.Errorf("password = %q", result.Fulfillment.Payload["password"])
	}

	var found model.Purchase
	db.First(&found, purchase.ID)
	if found.Status != model.PurchaseStatusCompleted {
		t.Errorf("购买状态 = %s, want completed", found.Status)
	}
}

func TestFulfillmentService_ApiProvision_WebhookError(t *testing.T) {
	db := setupFulfillmentTestDB(t)
	svc := newFulfillmentService(db)
	ctx := context.Background()

	// 厂商 Webhook 返回 500：降级人工兜底，不重试
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	tool, purchase := createFulfillmentFixture(t, db, model.FulfillMethodApiProvision)
	db.Model(tool).Update("webhook_url", server.URL)

	result, err := svc.Fulfill(ctx, purchase.ID, tool.ID, "")
	if err != nil {
		t.Fatalf("Fulfill() error = %v", err)
	}

	if !result.Success {
		t.Error("兜底交付 Success = false, want true")
	}
	if result.Fulfillment.Method != model.FulfillMethodManual {
		t.Errorf("Method = %s, want manual", result.Fulfillment.Method)
	}
	if result.Fulfillment.FallbackReason != FallbackProvisionFailed {
		t.Errorf("FallbackReason = %s, want provision_failed", result.Fulfillment.FallbackReason)
	}
	if calls != 1 {
		t.Errorf("Webhook 调用次数 = %d, want 1", calls)
	}

	var found model.Purchase
	db.First(&found, purchase.ID)
	if found.Status != model.PurchaseStatusPending {
		t.Errorf("购买状态 = %s, want pending", found.Status)
	}
	if !found.NeedsManualFollowup {
		t.Error("NeedsManualFollowup = false, want true")
	}
}

func TestFulfillmentService_Manual(t *testing.T) {
	db := setupFulfillmentTestDB(t)
	svc := newFulfillmentService(db)
	ctx := context.Background()

	tool, purchase := createFulfillmentFixture(t, db, model.FulfillMethodManual)

	result, err := svc.Fulfill(ctx, purchase.ID, tool.ID, "")
	if err != nil {
		t.Fatalf("Fulfill() error = %v", err)
	}

	if !result.Success {
		t.Error("Success = false, want true")
	}
	if result.Message != MsgManualProcessing {
		t.Errorf("Message = %q, want 人工处理消息", result.Message)
	}
	if result.Fulfillment.Payload["vendor_email"] != "vendor@example.com" {
		t.Errorf("vendor_email = %q", result.Fulfillment.Payload["vendor_email"])
	}

	// 人工交付是正常路径：不需要人工跟进标记，状态置为已完成
	if result.Fulfillment.RequiresManualFollowup {
		t.Error("人工交付 RequiresManualFollowup = true, want false")
	}
	var found model.Purchase
	db.First(&found, purchase.ID)
	if found.Status != model.PurchaseStatusCompleted {
		t.Errorf("购买状态 = %s, want completed", found.Status)
	}
}

func TestFulfillmentService_UnknownMethod(t *testing.T) {
	db := setupFulfillmentTestDB(t)
	svc := newFulfillmentService(db)
	ctx := context.Background()

	// 未识别的交付方式按人工交付处理，不打断买家流程
	tool, purchase := createFulfillmentFixture(t, db, "telepathy")

	result, err := svc.Fulfill(ctx, purchase.ID, tool.ID, "")
	if err != nil {
		t.Fatalf("Fulfill() error = %v", err)
	}
	if !result.Success {
		t.Error("Success = false, want true")
	}
	if result.Fulfillment.Method != model.FulfillMethodManual {
		t.Errorf("Method = %s, want manual", result.Fulfillment.Method)
	}
}

func TestFulfillmentService_RepeatFulfillKeepsCompleted(t *testing.T) {
	db := setupFulfillmentTestDB(t)
	svc := newFulfillmentService(db)
	ctx := context.Background()

	tool, purchase := createFulfillmentFixture(t, db, model.FulfillMethodCouponCode)

	if _, err := svc.Fulfill(ctx, purchase.ID, tool.ID, ""); err != nil {
		t.Fatalf("首次 Fulfill() error = %v", err)
	}

	var found model.Purchase
	db.First(&found, purchase.ID)
	if found.Status != model.PurchaseStatusCompleted {
		t.Fatalf("首次交付后状态 = %s, want completed", found.Status)
	}

	// 结算回调重试同一笔订单：状态单向流转，已完成不得被拨回待交付
	result, err := svc.Fulfill(ctx, purchase.ID, tool.ID, "")
	if err != nil {
		t.Fatalf("重复 Fulfill() error = %v", err)
	}
	if !result.Success {
		t.Error("重复交付 Success = false, want true")
	}

	db.First(&found, purchase.ID)
	if found.Status != model.PurchaseStatusCompleted {
		t.Errorf("重复交付后状态 = %s, want completed", found.Status)
	}
}

func TestFulfillmentService_OutcomePersisted(t *testing.T) {
	db := setupFulfillmentTestDB(t)
	svc := newFulfillmentService(db)
	ctx := context.Background()

	tool, purchase := createFulfillmentFixture(t, db, model.FulfillMethodCouponCode)

	if _, err := svc.Fulfill(ctx, purchase.ID, tool.ID, ""); err != nil {
		t.Fatalf("Fulfill() error = %v", err)
	}

	// 交付结果完整序列化到购买记录，可回放
	var found model.Purchase
	db.First(&found, purchase.ID)

	var stored FulfillmentOutcome
	if err := json.Unmarshal(found.AccessInstructions, &stored); err != nil {
		t.Fatalf("反序列化交付结果失败: %v", err)
	}
	if stored.Method != model.FulfillMethodCouponCode {
		t.Errorf("落库 Method = %s, want coupon_code", stored.Method)
	}
	if stored.Payload["coupon_code"] != "SAVE20" {
		t.Errorf("落库 coupon_code = %q, want SAVE20", stored.Payload["coupon_code"])
	}
}

func TestFulfillmentService_NotFound(t *testing.T) {
	db := setupFulfillmentTestDB(t)
	svc := newFulfillmentService(db)
	ctx := context.Background()

	tool, purchase := createFulfillmentFixture(t, db, model.FulfillMethodManual)

	if _, err := svc.Fulfill(ctx, 9999, tool.ID, ""); !errors.Is(err, ErrPurchaseNotFound) {
		t.Errorf("购买不存在 error = %v, want ErrPurchaseNotFound", err)
	}
	if _, err := svc.Fulfill(ctx, purchase.ID, 9999, ""); !errors.Is(err, ErrToolNotFound) {
		t.Errorf("工具不存在 error = %v, want ErrToolNotFound", err)
	}
}

func TestFulfillmentService_ToolMismatch(t *testing.T) {
	db := setupFulfillmentTestDB(t)
	svc := newFulfillmentService(db)
	ctx := context.Background()

	_, purchase := createFulfillmentFixture(t, db, model.FulfillMethodManual)

	other := &model.Tool{
		VendorID:      2,
		Name:          "另一个工具",
		Slug:          "other-tool",
		FulfillMethod: model.FulfillMethodManual,
		Status:        model.ToolStatusActive,
	}
	if err := db.Create(other).Error; err != nil {
		t.Fatalf("创建测试工具失败: %v", err)
	}

	_, err := svc.Fulfill(ctx, purchase.ID, other.ID, "")
	if !errors.Is(err, ErrPurchaseToolMismatch) {
		t.Errorf("error = %v, want ErrPurchaseToolMismatch", err)
	}

	// 不匹配时不得触碰购买记录
	var found model.Purchase
	db.First(&found, purchase.ID)
	if found.Status != model.PurchaseStatusPending {
		t.Errorf("购买状态 = %s, want pending", found.Status)
	}
}
