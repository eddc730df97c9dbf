package repository

import (
	"context"
	"errors"

	"aimarket_dev_v1_202608/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrInsufficientBalance 待提现余额低于最低提现金额
var ErrInsufficientBalance = errors.New("pending balance below minimum payout amount")

// ==================== AffiliateRepository 推广者仓库 ====================

// AffiliateRepository 推广者资料仓库接口
type AffiliateRepository interface {
	Create(ctx context.Context, affiliate *model.Affiliate) error
	GetByID(ctx context.Context, id int64) (*model.Affiliate, error)
	GetByUserID(ctx context.Context, userID int64) (*model.Affiliate, error)
	GetByReferralCode(ctx context.Context, code string) (*model.Affiliate, error)
	UpdateFields(ctx context.Context, id int64, fields map[string]interface{}) error
}

type affiliateRepository struct {
	db *gorm.DB
}

// NewAffiliateRepository 创建推广者仓库
func NewAffiliateRepository(db *gorm.DB) AffiliateRepository {
	return &affiliateRepository{db: db}
}

func (r *affiliateRepository) Create(ctx context.Context, affiliate *model.Affiliate) error {
	return r.db.WithContext(ctx).Create(affiliate).Error
}

func (r *affiliateRepository) GetByID(ctx context.Context, id int64) (*model.Affiliate, error) {
	var affiliate model.Affiliate
	err := r.db.WithContext(ctx).First(&affiliate, id).Error
	if err != nil {
		return nil, err
	}
	return &affiliate, nil
}

func (r *affiliateRepository) GetByUserID(ctx context.Context, userID int64) (*model.Affiliate, error) {
	var affiliate model.Affiliate
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&affiliate).Error
	if err != nil {
		return nil, err
	}
	return &affiliate, nil
}

func (r *affiliateRepository) GetByReferralCode(ctx context.Context, code string) (*model.Affiliate, error) {
	var affiliate model.Affiliate
	err := r.db.WithContext(ctx).Where("referral_code = ?", code).First(&affiliate).Error
	if err != nil {
		return nil, err
	}
	return &affiliate, nil
}

func (r *affiliateRepository) UpdateFields(ctx context.Context, id int64, fields map[string]interface{}) error {
	return r.db.WithContext(ctx).Model(&model.Affiliate{}).Where("id = ?", id).Updates(fields).Error
}

// ==================== AffiliateEarningRepository 佣金仓库 ====================

// AffiliateEarningRepository 佣金记录仓库接口
type AffiliateEarningRepository interface {
	// CreateIfAbsent 按购买记录幂等入账，purchase_id 已存在时返回 false 且不报错
	CreateIfAbsent(ctx context.Context, earning *model.AffiliateEarning) (bool, error)
	GetByPurchaseID(ctx context.Context, purchaseID int64) (*model.AffiliateEarning, error)
	ListByAffiliate(ctx context.Context, affiliateID int64, status string) ([]model.AffiliateEarning, error)
	SumPendingByAffiliate(ctx context.Context, affiliateID int64) (int64, error)
	MarkPaidByPayout(ctx context.Context, payoutID int64) (int64, error)
}

type affiliateEarningRepository struct {
	db *gorm.DB
}

// NewAffiliateEarningRepository 创建佣金仓库
func NewAffiliateEarningRepository(db *gorm.DB) AffiliateEarningRepository {
	return &affiliateEarningRepository{db: db}
}

func (r *affiliateEarningRepository) CreateIfAbsent(ctx context.Context, earning *model.AffiliateEarning) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "purchase_id"}},
			DoNothing: true,
		}).
		Create(earning)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *affiliateEarningRepository) GetByPurchaseID(ctx context.Context, purchaseID int64) (*model.AffiliateEarning, error) {
	var earning model.AffiliateEarning
	err := r.db.WithContext(ctx).Where("purchase_id = ?", purchaseID).First(&earning).Error
	if err != nil {
		return nil, err
	}
	return &earning, nil
}

func (r *affiliateEarningRepository) ListByAffiliate(ctx context.Context, affiliateID int64, status string) ([]model.AffiliateEarning, error) {
	var earnings []model.AffiliateEarning
	db := r.db.WithContext(ctx).Where("affiliate_id = ?", affiliateID)
	if status != "" {
		db = db.Where("status = ?", status)
	}
	err := db.Order("created_at DESC").Find(&earnings).Error
	return earnings, err
}

func (r *affiliateEarningRepository) SumPendingByAffiliate(ctx context.Context, affiliateID int64) (int64, error) {
	var sum int64
	err := r.db.WithContext(ctx).Model(&model.AffiliateEarning{}).
		Where("affiliate_id = ? AND status = ?", affiliateID, model.EarningStatusPending).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&sum).Error
	return sum, err
}

// MarkPaidByPayout 提现打款完成后将关联佣金置为已打款
func (r *affiliateEarningRepository) MarkPaidByPayout(ctx context.Context, payoutID int64) (int64, error) {
	res := r.db.WithContext(ctx).Model(&model.AffiliateEarning{}).
		Where("payout_id = ? AND status = ?", payoutID, model.EarningStatusRequested).
		Update("status", model.EarningStatusPaid)
	return res.RowsAffected, res.Error
}

// ==================== AffiliatePayoutRepository 提现仓库 ====================

// AffiliatePayoutRepository 提现申请仓库接口
type AffiliatePayoutRepository interface {
	// CreateWithClaim 创建提现申请并原子认领全部待提现佣金
	// 认领到的金额低于 minAmount 时整体回滚并返回 ErrInsufficientBalance
	CreateWithClaim(ctx context.Context, payout *model.AffiliatePayout, minAmount int64) error
	GetByID(ctx context.Context, id int64) (*model.AffiliatePayout, error)
	ListByAffiliate(ctx context.Context, affiliateID int64) ([]model.AffiliatePayout, error)
	UpdateStatus(ctx context.Context, id int64, status string) error
}

type affiliatePayoutRepository struct {
	db *gorm.DB
}

// NewAffiliatePayoutRepository 创建提现仓库
func NewAffiliatePayoutRepository(db *gorm.DB) AffiliatePayoutRepository {
	return &affiliatePayoutRepository{db: db}
}

// CreateWithClaim 提现申请的关键路径
// 认领必须是单条条件批量更新（WHERE affiliate_id = ? AND status = 'pending'），
// 两个并发申请不可能认领到同一笔佣金：后到的一方更新到 0 行，余额不足回滚。
func (r *affiliatePayoutRepository) CreateWithClaim(ctx context.Context, payout *model.AffiliatePayout, minAmount int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		payout.Amount = 0
		payout.Status = model.PayoutStatusPending
		if err := tx.Create(payout).Error; err != nil {
			return err
		}

		// 原子认领：待提现 → 已申请，并挂接到本次提现
		res := tx.Model(&model.AffiliateEarning{}).
			Where("affiliate_id = ? AND status = ?", payout.AffiliateID, model.EarningStatusPending).
			Updates(map[string]interface{}{
				"status":    model.EarningStatusRequested,
				"payout_id": payout.ID,
			})
		if res.Error != nil {
			return res.Error
		}

		// 以实际认领到的行汇总金额，而不是事先读出来的余额
		var claimed int64
		if err := tx.Model(&model.AffiliateEarning{}).
			Where("payout_id = ?", payout.ID).
			Select("COALESCE(SUM(amount), 0)").
			Scan(&claimed).Error; err != nil {
			return err
		}

		if claimed < minAmount {
			return ErrInsufficientBalance
		}

		payout.Amount = claimed
		return tx.Model(&model.AffiliatePayout{}).
			Where("id = ?", payout.ID).
			Update("amount", claimed).Error
	})
}

func (r *affiliatePayoutRepository) GetByID(ctx context.Context, id int64) (*model.AffiliatePayout, error) {
	var payout model.AffiliatePayout
	err := r.db.WithContext(ctx).First(&payout, id).Error
	if err != nil {
		return nil, err
	}
	return &payout, nil
}

func (r *affiliatePayoutRepository) ListByAffiliate(ctx context.Context, affiliateID int64) ([]model.AffiliatePayout, error) {
	var payouts []model.AffiliatePayout
	err := r.db.WithContext(ctx).
		Where("affiliate_id = ?", affiliateID).
		Order("created_at DESC").
		Find(&payouts).Error
	return payouts, err
}

func (r *affiliatePayoutRepository) UpdateStatus(ctx context.Context, id int64, status string) error {
	return r.db.WithContext(ctx).Model(&model.AffiliatePayout{}).
		Where("id = ?", id).Update("status", status).Error
}
