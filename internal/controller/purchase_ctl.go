package controller

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"aimarket_dev_v1_202608/internal/api/dto"
	"aimarket_dev_v1_202608/internal/model"
	"aimarket_dev_v1_202608/internal/repository"
	"aimarket_dev_v1_202608/internal/service"
)

// PurchaseController 购买控制器
type PurchaseController struct {
	purchaseSvc *service.PurchaseService
	fulfillSvc  *service.FulfillmentService
}

// NewPurchaseController 创建购买控制器
func NewPurchaseController(purchaseSvc *service.PurchaseService, fulfillSvc *service.FulfillmentService) *PurchaseController {
	return &PurchaseController{
		purchaseSvc: purchaseSvc,
		fulfillSvc:  fulfillSvc,
	}
}

// ==================== 落单与交付 ====================

// Create 支付确认后落单
// POST /api/purchases
func (c *PurchaseController) Create(ctx *gin.Context) {
	var req dto.CreatePurchaseRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	purchase, err := c.purchaseSvc.Create(ctx, &service.CreatePurchaseInput{
		UserID:        req.UserID,
		ToolID:        req.ToolID,
		CustomerEmail: req.CustomerEmail,
	})
	if err != nil {
		if errors.Is(err, service.ErrToolNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"error": "工具不存在"})
			return
		}
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"data": buildPurchaseVO(purchase)})
}

// Fulfill 执行交付
// POST /api/purchases/:id/fulfill
func (c *PurchaseController) Fulfill(ctx *gin.Context) {
	id, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "无效的ID"})
		return
	}

	var req dto.FulfillRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := c.fulfillSvc.Fulfill(ctx, id, req.ToolID, req.CustomerEmail)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrPurchaseNotFound):
			ctx.JSON(http.StatusNotFound, gin.H{"error": "购买记录不存在"})
		case errors.Is(err, service.ErrToolNotFound):
			ctx.JSON(http.StatusNotFound, gin.H{"error": "工具不存在"})
		case errors.Is(err, service.ErrPurchaseToolMismatch):
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "购买记录与工具不匹配"})
		default:
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"data": dto.FulfillResponse{
			Success: result.Success,
			Message: result.Message,
			Fulfillment: &dto.FulfillmentVO{
				Method:                 result.Fulfillment.Method,
				Payload:                result.Fulfillment.Payload,
				Instructions:           result.Fulfillment.Instructions,
				RequiresManualFollowup: result.Fulfillment.RequiresManualFollowup,
			},
		},
	})
}

// ==================== 列表与详情 ====================

// List 购买记录列表
// GET /api/purchases
func (c *PurchaseController) List(ctx *gin.Context) {
	var req dto.ListPurchasesRequest
	if err := ctx.ShouldBindQuery(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	filter := repository.PurchaseFilter{
		UserID:   req.UserID,
		ToolID:   req.ToolID,
		Status:   req.Status,
		Keyword:  req.Keyword,
		Page:     req.Page,
		PageSize: req.PageSize,
	}

	if req.ManualFollowup != "" {
		v := req.ManualFollowup == "true" || req.ManualFollowup == "1"
		filter.NeedsManualFollowup = &v
	}
	if req.StartDate != "" {
		if t, err := time.Parse("2006-01-02", req.StartDate); err == nil {
			filter.StartDate = &t
		}
	}
	if req.EndDate != "" {
		if t, err := time.Parse("2006-01-02", req.EndDate); err == nil {
			endOfDay := t.Add(24*time.Hour - time.Second)
			filter.EndDate = &endOfDay
		}
	}

	purchases, total, err := c.purchaseSvc.List(ctx, filter)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	list := make([]dto.PurchaseListItem, len(purchases))
	for i, p := range purchases {
		list[i] = dto.PurchaseListItem{
			ID:                  p.ID,
			OrderNo:             p.OrderNo,
			UserID:              p.UserID,
			ToolID:              p.ToolID,
			CustomerEmail:       p.CustomerEmail,
			Status:              p.Status,
			Price:               p.GetPrice(),
			Currency:            p.Currency,
			NeedsManualFollowup: p.NeedsManualFollowup,
			CreatedAt:           p.CreatedAt,
		}
	}

	ctx.JSON(http.StatusOK, gin.H{
		"data": dto.ListPurchasesResponse{
			Total: total,
			List:  list,
		},
	})
}

// GetByID 购买详情
// GET /api/purchases/:id
func (c *PurchaseController) GetByID(ctx *gin.Context) {
	id, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "无效的ID"})
		return
	}

	purchase, err := c.purchaseSvc.GetByID(ctx, id)
	if err != nil {
		ctx.JSON(http.StatusNotFound, gin.H{"error": "购买记录不存在"})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"data": buildPurchaseVO(purchase)})
}

// GetByOrderNo 按订单号查单
// GET /api/purchases/order/:order_no
func (c *PurchaseController) GetByOrderNo(ctx *gin.Context) {
	orderNo := ctx.Param("order_no")

	purchase, err := c.purchaseSvc.GetByOrderNo(ctx, orderNo)
	if err != nil {
		if errors.Is(err, service.ErrPurchaseNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"error": "购买记录不存在"})
			return
		}
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"data": buildPurchaseVO(purchase)})
}

// ==================== 状态变更 ====================

// UpdateStatus 管理端状态变更（退款/取消）
// PATCH /api/purchases/:id/status
func (c *PurchaseController) UpdateStatus(ctx *gin.Context) {
	id, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "无效的ID"})
		return
	}

	var req dto.UpdatePurchaseStatusRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := c.purchaseSvc.UpdateStatus(ctx, id, req.Status); err != nil {
		if errors.Is(err, service.ErrPurchaseNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"error": "购买记录不存在"})
			return
		}
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"message": "状态已更新"})
}

// ==================== 统计 ====================

// GetStats 购买统计
// GET /api/purchases/stats
func (c *PurchaseController) GetStats(ctx *gin.Context) {
	var req dto.PurchaseStatsRequest
	if err := ctx.ShouldBindQuery(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	startDate, err := time.Parse("2006-01-02", req.StartDate)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "起始日期格式错误"})
		return
	}
	endDate, err := time.Parse("2006-01-02", req.EndDate)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "结束日期格式错误"})
		return
	}
	endDate = endDate.Add(24*time.Hour - time.Second)

	stats, err := c.purchaseSvc.GetStats(ctx, req.ToolID, startDate, endDate)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"data": dto.PurchaseStatsResponse{
			TotalPurchases:  int(stats.TotalPurchases),
			TotalAmount:     float64(stats.TotalAmount) / 100,
			PendingCount:    int(stats.PendingCount),
			CompletedCount:  int(stats.CompletedCount),
			CancelledCount:  int(stats.CancelledCount),
			RefundedCount:   int(stats.RefundedCount),
			ManualFollowups: int(stats.ManualFollowups),
		},
	})
}

// ==================== 响应构建 ====================

func buildPurchaseVO(p *model.Purchase) *dto.PurchaseVO {
	return &dto.PurchaseVO{
		ID:                  p.ID,
		OrderNo:             p.OrderNo,
		UserID:              p.UserID,
		ToolID:              p.ToolID,
		CustomerEmail:       p.CustomerEmail,
		Status:              p.Status,
		Price:               p.GetPrice(),
		Currency:            p.Currency,
		LicenseKey:          p.LicenseKey,
		AccessInstructions:  string(p.AccessInstructions),
		NeedsManualFollowup: p.NeedsManualFollowup,
		CreatedAt:           p.CreatedAt,
		UpdatedAt:           p.UpdatedAt,
	}
}
