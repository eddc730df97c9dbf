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

// ToolController 工具控制器
type ToolController struct {
	toolRepo   repository.ToolRepository
	licenseSvc *service.LicenseService
}

// NewToolController 创建工具控制器
func NewToolController(toolRepo repository.ToolRepository, licenseSvc *service.LicenseService) *ToolController {
	return &ToolController{
		toolRepo:   toolRepo,
		licenseSvc: licenseSvc,
	}
}

// ==================== 工具管理 ====================

// Create 创建工具
// POST /api/tools
func (c *ToolController) Create(ctx *gin.Context) {
	var req dto.CreateToolRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	method := req.FulfillMethod
	if method == "" {
		method = model.FulfillMethodManual
	}

	tool := &model.Tool{
		VendorID:      req.VendorID,
		Name:          req.Name,
		Slug:          req.Slug,
		Description:   req.Description,
		WebsiteURL:    req.WebsiteURL,
		VendorEmail:   req.VendorEmail,
		PriceAmount:   int64(req.Price * 100),
		Currency:      req.Currency,
		FulfillMethod: method,
		CouponCode:    req.CouponCode,
		RedemptionURL: req.RedemptionURL,
		WebhookURL:    req.WebhookURL,
		Instructions:  req.Instructions,
		Status:        model.ToolStatusActive,
	}
	if tool.Currency == "" {
		tool.Currency = "USD"
	}

	// 未知的交付方式在录入时就拦下，不留到交付环节才暴露
	if !tool.KnownFulfillMethod() {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "不支持的交付方式: " + method})
		return
	}

	if err := c.toolRepo.Create(ctx, tool); err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"data": buildToolVO(tool)})
}

// List 工具列表
// GET /api/tools
func (c *ToolController) List(ctx *gin.Context) {
	var req dto.ListToolsRequest
	if err := ctx.ShouldBindQuery(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tools, total, err := c.toolRepo.List(ctx, repository.ToolFilter{
		VendorID:      req.VendorID,
		Status:        req.Status,
		FulfillMethod: req.FulfillMethod,
		Keyword:       req.Keyword,
		Page:          req.Page,
		PageSize:      req.PageSize,
	})
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	list := make([]dto.ToolVO, len(tools))
	for i := range tools {
		list[i] = *buildToolVO(&tools[i])
	}

	ctx.JSON(http.StatusOK, gin.H{
		"data": dto.ListToolsResponse{
			Total: total,
			List:  list,
		},
	})
}

// GetByID 工具详情
// GET /api/tools/:id
func (c *ToolController) GetByID(ctx *gin.Context) {
	id, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "无效的ID"})
		return
	}

	tool, err := c.toolRepo.GetByID(ctx, id)
	if err != nil {
		ctx.JSON(http.StatusNotFound, gin.H{"error": "工具不存在"})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"data": buildToolVO(tool)})
}

// ==================== 密钥管理 ====================

// BulkAddKeys 批量导入密钥
// POST /api/tools/:id/license-keys
func (c *ToolController) BulkAddKeys(ctx *gin.Context) {
	id, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "无效的ID"})
		return
	}

	var req dto.BulkAddKeysRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := c.licenseSvc.BulkAdd(ctx, id, req.Keys)
	if err != nil {
		if errors.Is(err, service.ErrToolNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"error": "工具不存在"})
			return
		}
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"data": dto.BulkAddKeysResponse{
			Added:             result.Added,
			SkippedDuplicates: result.SkippedDuplicates,
		},
		"message": "密钥导入完成",
	})
}

// ListKeys 密钥明细
// GET /api/tools/:id/license-keys
func (c *ToolController) ListKeys(ctx *gin.Context) {
	id, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "无效的ID"})
		return
	}

	var req dto.ListKeysRequest
	if err := ctx.ShouldBindQuery(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	keys, err := c.licenseSvc.ListKeys(ctx, id, req.OnlyUnused)
	if err != nil {
		if errors.Is(err, service.ErrToolNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"error": "工具不存在"})
			return
		}
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	list := make([]dto.LicenseKeyVO, len(keys))
	for i, k := range keys {
		list[i] = dto.LicenseKeyVO{
			ID:             k.ID,
			KeyValue:       k.KeyValue,
			IsUsed:         k.IsUsed,
			AssignedUserID: k.AssignedUserID,
			AssignedAt:     k.AssignedAt,
			CreatedAt:      k.CreatedAt,
		}
	}

	ctx.JSON(http.StatusOK, gin.H{
		"data": dto.ListKeysResponse{
			Total: len(list),
			List:  list,
		},
	})
}

// GetLicenseStats 密钥库存概况
// GET /api/tools/:id/license-keys/stats
func (c *ToolController) GetLicenseStats(ctx *gin.Context) {
	id, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "无效的ID"})
		return
	}

	stats, err := c.licenseSvc.Stats(ctx, id)
	if err != nil {
		if errors.Is(err, service.ErrToolNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"error": "工具不存在"})
			return
		}
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"data": dto.LicenseStatsResponse{
			Total:     stats.Total,
			Used:      stats.Used,
			Available: stats.Available,
			LowStock:  stats.LowStock,
		},
	})
}

// ==================== 响应构建 ====================

func buildToolVO(t *model.Tool) *dto.ToolVO {
	return &dto.ToolVO{
		ID:            t.ID,
		VendorID:      t.VendorID,
		Name:          t.Name,
		Slug:          t.Slug,
		Description:   t.Description,
		WebsiteURL:    t.WebsiteURL,
		Price:         t.GetPrice(),
		Currency:      t.Currency,
		FulfillMethod: t.FulfillMethod,
		TotalLicenses: t.TotalLicenses,
		UsedLicenses:  t.UsedLicenses,
		LowStock:      t.IsLowStock(),
		Status:        t.Status,
		CreatedAt:     t.CreatedAt,
	}
}
