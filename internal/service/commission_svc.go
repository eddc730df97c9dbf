package service

import (
	"context"
	"errors"
	"math"
	"strings"

	"aimarket_dev_v1_202608/internal/model"
	"aimarket_dev_v1_202608/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ==================== 错误定义 ====================

var (
	// ErrAffiliateNotFound 推广者不存在
	ErrAffiliateNotFound = errors.New("affiliate not found")
	// ErrMissingPayoutInfo 未配置收款邮箱，提现前置条件不满足
	ErrMissingPayoutInfo = errors.New("affiliate has no payout email on file")
	// ErrPayoutNotFound 提现申请不存在
	ErrPayoutNotFound = errors.New("payout not found")
)

// ==================== CommissionService 佣金服务 ====================

// CommissionService 佣金入账与提现服务
type CommissionService struct {
	affiliateRepo repository.AffiliateRepository
	earningRepo   repository.AffiliateEarningRepository
	payoutRepo    repository.AffiliatePayoutRepository
}

// NewCommissionService 创建佣金服务
func NewCommissionService(
	affiliateRepo repository.AffiliateRepository,
	earningRepo repository.AffiliateEarningRepository,
	payoutRepo repository.AffiliatePayoutRepository,
) *CommissionService {
	return &CommissionService{
		affiliateRepo: affiliateRepo,
		earningRepo:   earningRepo,
		payoutRepo:    payoutRepo,
	}
}

// ==================== 佣金入账 ====================

// Accrue 为一笔已完成的推广购买入账佣金
// 幂等键为 purchase_id：同一笔购买重试入账时返回已有记录，不会重复计佣
// 佣金比例由调用方解析后传入（按推广者还是按工具取值属于结算流程的职责）
func (s *CommissionService) Accrue(ctx context.Context, affiliateID, toolID, purchaseID, purchaseAmount int64, rate float64) (*model.AffiliateEarning, error) {
	if _, err := s.affiliateRepo.GetByID(ctx, affiliateID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAffiliateNotFound
		}
		return nil, err
	}

	earning := &model.AffiliateEarning{
		AffiliateID: affiliateID,
		ToolID:      toolID,
		PurchaseID:  purchaseID,
		Amount:      int64(math.Round(float64(purchaseAmount) * rate)),
		Status:      model.EarningStatusPending,
	}

	inserted, err := s.earningRepo.CreateIfAbsent(ctx, earning)
	if err != nil {
		return nil, err
	}
	if !inserted {
		// 该购买已入账过，返回已有记录
		return s.earningRepo.GetByPurchaseID(ctx, purchaseID)
	}
	return earning, nil
}

// ==================== 提现 ====================

// RequestPayout 发起提现申请
// 创建申请和认领待提现佣金在同一事务内完成，并发申请不会重复认领同一笔佣金
func (s *CommissionService) RequestPayout(ctx context.Context, affiliateID int64) (*model.AffiliatePayout, error) {
	affiliate, err := s.affiliateRepo.GetByID(ctx, affiliateID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAffiliateNotFound
		}
		return nil, err
	}

	if !affiliate.HasPayoutInfo() {
		return nil, ErrMissingPayoutInfo
	}

	payout := &model.AffiliatePayout{
		ReferenceNo: newPayoutReferenceNo(),
		AffiliateID: affiliate.ID,
		PayoutEmail: affiliate.PayoutEmail,
	}

	if err := s.payoutRepo.CreateWithClaim(ctx, payout, model.MinPayoutAmount); err != nil {
		return nil, err
	}
	return payout, nil
}

// MarkPayoutPaid 外部打款流程完成后回写状态，并把关联佣金置为已打款
func (s *CommissionService) MarkPayoutPaid(ctx context.Context, payoutID int64) error {
	payout, err := s.payoutRepo.GetByID(ctx, payoutID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrPayoutNotFound
		}
		return err
	}

	if err := s.payoutRepo.UpdateStatus(ctx, payout.ID, model.PayoutStatusPaid); err != nil {
		return err
	}
	_, err = s.earningRepo.MarkPaidByPayout(ctx, payout.ID)
	return err
}

// ==================== 查询 ====================

// PendingBalance 推广者当前待提现余额（分）
func (s *CommissionService) PendingBalance(ctx context.Context, affiliateID int64) (int64, error) {
	return s.earningRepo.SumPendingByAffiliate(ctx, affiliateID)
}

// ListEarnings 佣金明细
func (s *CommissionService) ListEarnings(ctx context.Context, affiliateID int64, status string) ([]model.AffiliateEarning, error) {
	return s.earningRepo.ListByAffiliate(ctx, affiliateID, status)
}

// ListPayouts 提现记录
func (s *CommissionService) ListPayouts(ctx context.Context, affiliateID int64) ([]model.AffiliatePayout, error) {
	return s.payoutRepo.ListByAffiliate(ctx, affiliateID)
}

// GetAffiliate 按 ID 查推广者资料
func (s *CommissionService) GetAffiliate(ctx context.Context, affiliateID int64) (*model.Affiliate, error) {
	affiliate, err := s.affiliateRepo.GetByID(ctx, affiliateID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAffiliateNotFound
		}
		return nil, err
	}
	return affiliate, nil
}

// ResolveReferralCode 结算流程用推广码换取推广者信息
func (s *CommissionService) ResolveReferralCode(ctx context.Context, code string) (*model.Affiliate, error) {
	affiliate, err := s.affiliateRepo.GetByReferralCode(ctx, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAffiliateNotFound
		}
		return nil, err
	}
	return affiliate, nil
}

// GetByUserID 按用户查推广者资料
func (s *CommissionService) GetByUserID(ctx context.Context, userID int64) (*model.Affiliate, error) {
	affiliate, err := s.affiliateRepo.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAffiliateNotFound
		}
		return nil, err
	}
	return affiliate, nil
}

// newPayoutReferenceNo 生成提现申请编号
func newPayoutReferenceNo() string {
	return "PO-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:16])
}
