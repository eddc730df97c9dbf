package router

import (
	"net/http"

	controller2 "aimarket_dev_v1_202608/internal/controller"
	"aimarket_dev_v1_202608/internal/middleware"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// InitRoutes 注册所有路由
func InitRoutes(r *gin.Engine,
	toolCtl *controller2.ToolController,
	purchaseCtl *controller2.PurchaseController,
	affiliateCtl *controller2.AffiliateController) {
	// 1. Swagger 文档路由
	// 访问 http://localhost:8080/swagger/index.html 即可查看
	// doc.json 由 swag init 生成，生成物不提交仓库；部署前执行生成即可挂载
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// 2. API 路由组
	api := r.Group("/api")
	{
		// 健康检查
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})

		// tool 工具管理与密钥库存
		tools := api.Group("/tools")
		{
			// GET /api/tools
			tools.GET("", toolCtl.List)
			tools.GET("/:id", toolCtl.GetByID)
			tools.POST("", middleware.JWTAuth(), middleware.RequireRole(middleware.RoleVendor, middleware.RoleAdmin), toolCtl.Create)

			// 密钥库存只开放给厂商和管理员
			tools.POST("/:id/license-keys", middleware.JWTAuth(), middleware.RequireRole(middleware.RoleVendor, middleware.RoleAdmin), toolCtl.BulkAddKeys)
			tools.GET("/:id/license-keys", middleware.JWTAuth(), middleware.RequireRole(middleware.RoleVendor, middleware.RoleAdmin), toolCtl.ListKeys)
			tools.GET("/:id/license-keys/stats", middleware.JWTAuth(), middleware.RequireRole(middleware.RoleVendor, middleware.RoleAdmin), toolCtl.GetLicenseStats)
		}

		// purchase 购买与交付
		purchases := api.Group("/purchases")
		{
			// GET /api/purchases/stats 必须注册在 /:id 之前
			purchases.GET("/stats", purchaseCtl.GetStats)

			purchases.POST("", purchaseCtl.Create)
			purchases.GET("", purchaseCtl.List)
			purchases.GET("/:id", purchaseCtl.GetByID)
			purchases.GET("/order/:order_no", purchaseCtl.GetByOrderNo)

			// POST /api/purchases/:id/fulfill
			// 支付确认后由结算流程调用，触发交付调度
			purchases.POST("/:id/fulfill", purchaseCtl.Fulfill)
			purchases.PATCH("/:id/status", middleware.JWTAuth(), middleware.RequireRole(middleware.RoleAdmin), purchaseCtl.UpdateStatus)
		}

		// affiliate 佣金与提现
		affiliates := api.Group("/affiliates")
		{
			// POST /api/affiliates/commissions 由结算流程在交付成功后调用
			affiliates.POST("/commissions", affiliateCtl.AccrueCommission)
			affiliates.GET("/resolve", affiliateCtl.ResolveReferral)

			affiliates.GET("/:id/summary", affiliateCtl.GetSummary)
			affiliates.GET("/:id/earnings", affiliateCtl.ListEarnings)
			affiliates.GET("/:id/payouts", affiliateCtl.ListPayouts)
			affiliates.POST("/:id/payouts", affiliateCtl.RequestPayout)

			// 打款完成后由财务流程回写
			affiliates.PATCH("/payouts/:payout_id/paid", middleware.JWTAuth(), middleware.RequireRole(middleware.RoleAdmin), affiliateCtl.MarkPayoutPaid)
		}
	}
}
