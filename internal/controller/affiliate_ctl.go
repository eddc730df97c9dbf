package controller

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"aimarket_dev_v1_202608/internal/api/dto"
	"aimarket_dev_v1_202608/internal/model"
	"aimarket_dev_v1_202608/internal/repository"
	"aimarket_dev_v1_202608/internal/service"
)

// AffiliateController 推广者控制器
type AffiliateController struct {
	commissionSvc *service.CommissionService
}

// NewAffiliateController 创建推广者控制器
func NewAffiliateController(commissionSvc *service.CommissionService) *AffiliateController {
	return &AffiliateController{commissionSvc: commissionSvc}
}

// ==================== 佣金入账 ====================

// AccrueCommission 结算流程回调入账
// POST /api/affiliates/commissions
func (c *AffiliateController) AccrueCommission(ctx *gin.Context) {
	var req dto.AccrueCommissionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	earning, err := c.commissionSvc.Accrue(ctx,
		req.AffiliateID, req.ToolID, req.PurchaseID,
		int64(req.PurchaseAmount*100), req.CommissionRate)
	if err != nil {
		if errors.Is(err, service.ErrAffiliateNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"error": "推广者不存在"})
			return
		}
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"data": buildEarningVO(earning)})
}

// ==================== 提现 ====================

// RequestPayout 发起提现申请
// POST /api/affiliates/:id/payouts
func (c *AffiliateController) RequestPayout(ctx *gin.Context) {
	id, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "无效的ID"})
		return
	}

	payout, err := c.commissionSvc.RequestPayout(ctx, id)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrAffiliateNotFound):
			ctx.JSON(http.StatusNotFound, gin.H{"error": "推广者不存在"})
		case errors.Is(err, service.ErrMissingPayoutInfo):
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "请先配置收款邮箱"})
		case errors.Is(err, repository.ErrInsufficientBalance):
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "待提现余额不足最低提现金额"})
		default:
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"data":    buildPayoutVO(payout),
		"message": "提现申请已提交",
	})
}

// MarkPayoutPaid 外部打款完成回调
// PATCH /api/affiliates/payouts/:payout_id/paid
func (c *AffiliateController) MarkPayoutPaid(ctx *gin.Context) {
	payoutID, err := strconv.ParseInt(ctx.Param("payout_id"), 10, 64)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "无效的ID"})
		return
	}

	if err := c.commissionSvc.MarkPayoutPaid(ctx, payoutID); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"message": "打款状态已更新"})
}

// ResolveReferral 推广码解析
// GET /api/affiliates/resolve?code=XXX
// 结算流程在下单时用推广码换取推广者 ID 与佣金比例
func (c *AffiliateController) ResolveReferral(ctx *gin.Context) {
	code := ctx.Query("code")
	if code == "" {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "缺少推广码"})
		return
	}

	affiliate, err := c.commissionSvc.ResolveReferralCode(ctx, code)
	if err != nil {
		if errors.Is(err, service.ErrAffiliateNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"error": "推广码无效"})
			return
		}
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"data": dto.ResolveReferralResponse{
			AffiliateID:    affiliate.ID,
			ReferralCode:   affiliate.ReferralCode,
			CommissionRate: affiliate.CommissionRate,
		},
	})
}

// ==================== 查询 ====================

// GetSummary 推广者概况
// GET /api/affiliates/:id/summary
func (c *AffiliateController) GetSummary(ctx *gin.Context) {
	id, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "无效的ID"})
		return
	}

	affiliate, err := c.commissionSvc.GetAffiliate(ctx, id)
	if err != nil {
		if errors.Is(err, service.ErrAffiliateNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"error": "推广者不存在"})
			return
		}
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	balance, err := c.commissionSvc.PendingBalance(ctx, id)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"data": dto.AffiliateSummaryResponse{
			AffiliateID:    affiliate.ID,
			ReferralCode:   affiliate.ReferralCode,
			PendingBalance: float64(balance) / 100,
			PayoutEmail:    affiliate.PayoutEmail,
		},
	})
}

// ListEarnings 佣金明细
// GET /api/affiliates/:id/earnings
func (c *AffiliateController) ListEarnings(ctx *gin.Context) {
	id, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "无效的ID"})
		return
	}

	earnings, err := c.commissionSvc.ListEarnings(ctx, id, ctx.Query("status"))
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	list := make([]dto.EarningVO, len(earnings))
	for i := range earnings {
		list[i] = *buildEarningVO(&earnings[i])
	}

	ctx.JSON(http.StatusOK, gin.H{"data": list})
}

// ListPayouts 提现记录
// GET /api/affiliates/:id/payouts
func (c *AffiliateController) ListPayouts(ctx *gin.Context) {
	id, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "无效的ID"})
		return
	}

	payouts, err := c.commissionSvc.ListPayouts(ctx, id)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	list := make([]dto.PayoutVO, len(payouts))
	for i := range payouts {
		list[i] = *buildPayoutVO(&payouts[i])
	}

	ctx.JSON(http.StatusOK, gin.H{"data": list})
}

// ==================== 响应构建 ====================

func buildEarningVO(e *model.AffiliateEarning) *dto.EarningVO {
	return &dto.EarningVO{
		ID:          e.ID,
		AffiliateID: e.AffiliateID,
		ToolID:      e.ToolID,
		PurchaseID:  e.PurchaseID,
		Amount:      e.GetAmount(),
		Status:      e.Status,
		CreatedAt:   e.CreatedAt,
	}
}

func buildPayoutVO(p *model.AffiliatePayout) *dto.PayoutVO {
	return &dto.PayoutVO{
		ID:          p.ID,
		ReferenceNo: p.ReferenceNo,
		AffiliateID: p.AffiliateID,
		Amount:      p.GetAmount(),
		Status:      p.Status,
		PayoutEmail: p.PayoutEmail,
		CreatedAt:   p.CreatedAt,
	}
}
