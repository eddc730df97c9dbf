package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"aimarket_dev_v1_202608/internal/model"
)

func setupAffiliateTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("连接测试数据库失败: %v", err)
	}

	// 并发用例共用一个 :memory: 库，必须收敛到单连接
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("获取底层 SQL DB 失败: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	err = db.AutoMigrate(&model.Affiliate{}, &model.AffiliateEarning{}, &model.AffiliatePayout{})
	if err != nil {
		t.Fatalf("数据库迁移失败: %v", err)
	}

	return db
}

func createTestAffiliate(t *testing.T, db *gorm.DB) *model.Affiliate {
	affiliate := &model.Affiliate{
		UserID:         1,
		ReferralCode:   "REF-001",
		CommissionRate: 0.1,
		PayoutEmail:    "aff@example.com",
	}
	if err := db.Create(affiliate).Error; err != nil {
		t.Fatalf("创建测试推广者失败: %v", err)
	}
	return affiliate
}

func TestAffiliateEarningRepo_CreateIfAbsent(t *testing.T) {
	db := setupAffiliateTestDB(t)
	repo := NewAffiliateEarningRepository(db)
	ctx := context.Background()
	affiliate := createTestAffiliate(t, db)

	earning := &model.AffiliateEarning{
		AffiliateID: affiliate.ID,
		ToolID:      10,
		PurchaseID:  100,
		Amount:      500,
		Status:      model.EarningStatusPending,
	}

	inserted, err := repo.CreateIfAbsent(ctx, earning)
	if err != nil {
		t.Fatalf("CreateIfAbsent() error = %v", err)
	}
	if !inserted {
		t.Error("首次入账应返回 inserted = true")
	}

	// 同一笔购买重复入账：不插入、不报错
	dup := &model.AffiliateEarning{
		AffiliateID: affiliate.ID,
		ToolID:      10,
		PurchaseID:  100,
		Amount:      500,
		Status:      model.EarningStatusPending,
	}
	inserted, err = repo.CreateIfAbsent(ctx, dup)
	if err != nil {
		t.Fatalf("重复 CreateIfAbsent() error = %v", err)
	}
	if inserted {
		t.Error("重复入账应返回 inserted = false")
	}

	// 余额只计入一次
	sum, err := repo.SumPendingByAffiliate(ctx, affiliate.ID)
	if err != nil {
		t.Fatalf("SumPendingByAffiliate() error = %v", err)
	}
	if sum != 500 {
		t.Errorf("待提现余额 = %d, want 500", sum)
	}
}

func TestAffiliatePayoutRepo_CreateWithClaim(t *testing.T) {
	db := setupAffiliateTestDB(t)
	earningRepo := NewAffiliateEarningRepository(db)
	payoutRepo := NewAffiliatePayoutRepository(db)
	ctx := context.Background()
	affiliate := createTestAffiliate(t, db)

	// 三笔待提现佣金共 1200 分
	amounts := []int64{500, 400, 300}
	for i, amount := range amounts {
		earningRepo.CreateIfAbsent(ctx, &model.AffiliateEarning{
			AffiliateID: affiliate.ID,
			PurchaseID:  int64(100 + i),
			Amount:      amount,
			Status:      model.EarningStatusPending,
		})
	}

	payout := &model.AffiliatePayout{
		ReferenceNo: "PO-TEST-001",
		AffiliateID: affiliate.ID,
		PayoutEmail: affiliate.PayoutEmail,
	}
	if err := payoutRepo.CreateWithClaim(ctx, payout, model.MinPayoutAmount); err != nil {
		t.Fatalf("CreateWithClaim() error = %v", err)
	}

	if payout.Amount != 1200 {
		t.Errorf("提现金额 = %d, want 1200", payout.Amount)
	}

	// 佣金全部转为已申请并挂接到本次提现
	earnings, err := earningRepo.ListByAffiliate(ctx, affiliate.ID, model.EarningStatusRequested)
	if err != nil {
		t.Fatalf("ListByAffiliate() error = %v", err)
	}
	if len(earnings) != 3 {
		t.Fatalf("已申请佣金数 = %d, want 3", len(earnings))
	}
	for _, e := range earnings {
		if e.PayoutID == nil || *e.PayoutID != payout.ID {
			t.Errorf("佣金 %d 未挂接到提现申请", e.ID)
		}
	}

	// 待提现余额清零
	sum, _ := earningRepo.SumPendingByAffiliate(ctx, affiliate.ID)
	if sum != 0 {
		t.Errorf("认领后待提现余额 = %d, want 0", sum)
	}
}

func TestAffiliatePayoutRepo_CreateWithClaim_BelowMinimum(t *testing.T) {
	db := setupAffiliateTestDB(t)
	earningRepo := NewAffiliateEarningRepository(db)
	payoutRepo := NewAffiliatePayoutRepository(db)
	ctx := context.Background()
	affiliate := createTestAffiliate(t, db)

	// 余额 999 分，差 1 分到门槛
	earningRepo.CreateIfAbsent(ctx, &model.AffiliateEarning{
		AffiliateID: affiliate.ID,
		PurchaseID:  100,
		Amount:      999,
		Status:      model.EarningStatusPending,
	})

	payout := &model.AffiliatePayout{
		ReferenceNo: "PO-TEST-002",
		AffiliateID: affiliate.ID,
	}
	err := payoutRepo.CreateWithClaim(ctx, payout, model.MinPayoutAmount)
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("error = %v, want ErrInsufficientBalance", err)
	}

	// 整体回滚：申请不落库，佣金保持待提现
	var payoutCount int64
	db.Model(&model.AffiliatePayout{}).Count(&payoutCount)
	if payoutCount != 0 {
		t.Errorf("回滚后提现申请数 = %d, want 0", payoutCount)
	}

	sum, _ := earningRepo.SumPendingByAffiliate(ctx, affiliate.ID)
	if sum != 999 {
		t.Errorf("回滚后待提现余额 = %d, want 999", sum)
	}
}

func TestAffiliatePayoutRepo_CreateWithClaim_ExactMinimum(t *testing.T) {
	db := setupAffiliateTestDB(t)
	earningRepo := NewAffiliateEarningRepository(db)
	payoutRepo := NewAffiliatePayoutRepository(db)
	ctx := context.Background()
	affiliate := createTestAffiliate(t, db)

	// 恰好到门槛应放行
	earningRepo.CreateIfAbsent(ctx, &model.AffiliateEarning{
		AffiliateID: affiliate.ID,
		PurchaseID:  100,
		Amount:      model.MinPayoutAmount,
		Status:      model.EarningStatusPending,
	})

	payout := &model.AffiliatePayout{
		ReferenceNo: "PO-TEST-003",
		AffiliateID: affiliate.ID,
	}
	if err := payoutRepo.CreateWithClaim(ctx, payout, model.MinPayoutAmount); err != nil {
		t.Fatalf("CreateWithClaim() error = %v", err)
	}
	if payout.Amount != model.MinPayoutAmount {
		t.Errorf("提现金额 = %d, want %d", payout.Amount, model.MinPayoutAmount)
	}
}

func TestAffiliatePayoutRepo_CreateWithClaim_NoDoubleClaim(t *testing.T) {
	db := setupAffiliateTestDB(t)
	earningRepo := NewAffiliateEarningRepository(db)
	payoutRepo := NewAffiliatePayoutRepository(db)
	ctx := context.Background()
	affiliate := createTestAffiliate(t, db)

	earningRepo.CreateIfAbsent(ctx, &model.AffiliateEarning{
		AffiliateID: affiliate.ID,
		PurchaseID:  100,
		Amount:      2000,
		Status:      model.EarningStatusPending,
	})

	first := &model.AffiliatePayout{ReferenceNo: "PO-TEST-A", AffiliateID: affiliate.ID}
	if err := payoutRepo.CreateWithClaim(ctx, first, model.MinPayoutAmount); err != nil {
		t.Fatalf("首次 CreateWithClaim() error = %v", err)
	}

	// 第二次申请认领不到任何佣金，必须以余额不足失败，而不是重复认领同一笔
	second := &model.AffiliatePayout{ReferenceNo: "PO-TEST-B", AffiliateID: affiliate.ID}
	err := payoutRepo.CreateWithClaim(ctx, second, model.MinPayoutAmount)
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("二次申请 error = %v, want ErrInsufficientBalance", err)
	}

	// 唯一一笔佣金仍只挂接在第一次申请上
	earning, err := earningRepo.GetByPurchaseID(ctx, 100)
	if err != nil {
		t.Fatalf("GetByPurchaseID() error = %v", err)
	}
	if earning.PayoutID == nil || *earning.PayoutID != first.ID {
		t.Errorf("佣金挂接的提现申请有误")
	}
	if earning.Status != model.EarningStatusRequested {
		t.Errorf("佣金状态 = %s, want requested", earning.Status)
	}
}

func TestAffiliatePayoutRepo_CreateWithClaim_Concurrent(t *testing.T) {
	db := setupAffiliateTestDB(t)
	earningRepo := NewAffiliateEarningRepository(db)
	payoutRepo := NewAffiliatePayoutRepository(db)
	ctx := context.Background()
	affiliate := createTestAffiliate(t, db)

	earningRepo.CreateIfAbsent(ctx, &model.AffiliateEarning{
		AffiliateID: affiliate.ID,
		PurchaseID:  100,
		Amount:      2000,
		Status:      model.EarningStatusPending,
	})

	// 两个并发申请抢同一笔余额：恰好一个成功，另一个余额不足
	errs := make(chan error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(ref string) {
			defer wg.Done()
			payout := &model.AffiliatePayout{ReferenceNo: ref, AffiliateID: affiliate.ID}
			errs <- payoutRepo.CreateWithClaim(ctx, payout, model.MinPayoutAmount)
		}(fmt.Sprintf("PO-RACE-%d", i))
	}
	wg.Wait()
	close(errs)

	var succeeded, insufficient int
	for err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, ErrInsufficientBalance):
			insufficient++
		default:
			t.Errorf("CreateWithClaim() error = %v", err)
		}
	}

	if succeeded != 1 || insufficient != 1 {
		t.Errorf("成功 %d / 余额不足 %d, want 1 / 1", succeeded, insufficient)
	}

	// 总提现金额不得超过总佣金
	var claimed int64
	db.Model(&model.AffiliatePayout{}).Select("COALESCE(SUM(amount), 0)").Scan(&claimed)
	if claimed != 2000 {
		t.Errorf("提现总额 = %d, want 2000", claimed)
	}
}

func TestAffiliateEarningRepo_MarkPaidByPayout(t *testing.T) {
	db := setupAffiliateTestDB(t)
	earningRepo := NewAffiliateEarningRepository(db)
	payoutRepo := NewAffiliatePayoutRepository(db)
	ctx := context.Background()
	affiliate := createTestAffiliate(t, db)

	earningRepo.CreateIfAbsent(ctx, &model.AffiliateEarning{
		AffiliateID: affiliate.ID,
		PurchaseID:  100,
		Amount:      1500,
		Status:      model.EarningStatusPending,
	})

	payout := &model.AffiliatePayout{ReferenceNo: "PO-TEST-PAID", AffiliateID: affiliate.ID}
	if err := payoutRepo.CreateWithClaim(ctx, payout, model.MinPayoutAmount); err != nil {
		t.Fatalf("CreateWithClaim() error = %v", err)
	}

	updated, err := earningRepo.MarkPaidByPayout(ctx, payout.ID)
	if err != nil {
		t.Fatalf("MarkPaidByPayout() error = %v", err)
	}
	if updated != 1 {
		t.Errorf("更新行数 = %d, want 1", updated)
	}

	earning, _ := earningRepo.GetByPurchaseID(ctx, 100)
	if earning.Status != model.EarningStatusPaid {
		t.Errorf("佣金状态 = %s, want paid", earning.Status)
	}
}
