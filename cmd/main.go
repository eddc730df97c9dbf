package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"aimarket_dev_v1_202608/internal/controller"
	"aimarket_dev_v1_202608/internal/model"
	"aimarket_dev_v1_202608/internal/repository"
	"aimarket_dev_v1_202608/internal/router"
	"aimarket_dev_v1_202608/internal/service"
	"aimarket_dev_v1_202608/internal/task"
	"aimarket_dev_v1_202608/pkg/database"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func main() {
	// 1. 初始化数据库
	db := initDatabase()

	// 2. 初始化依赖
	deps := initDependencies(db)

	// 3. 启动定时任务
	initTasks(deps)

	// 4. 初始化路由
	r := gin.Default()
	router.InitRoutes(r, deps.Controllers.Tool, deps.Controllers.Purchase, deps.Controllers.Affiliate)

	// 5. 启动服务
	startServer(r)
}

// ==================== 依赖容器 ====================

// Dependencies 依赖容器
type Dependencies struct {
	DB          *gorm.DB
	Repos       *Repositories
	Services    *Services
	Controllers *Controllers
}

// Repositories 仓库集合
type Repositories struct {
	Tool            repository.ToolRepository
	LicenseKey      repository.LicenseKeyRepository
	Purchase        repository.PurchaseRepository
	Affiliate       repository.AffiliateRepository
	AffiliateEarn   repository.AffiliateEarningRepository
	AffiliatePayout repository.AffiliatePayoutRepository
}

// Services 服务集合
type Services struct {
	License     *service.LicenseService
	Fulfillment *service.FulfillmentService
	Purchase    *service.PurchaseService
	Commission  *service.CommissionService
}

// Controllers 控制器集合
type Controllers struct {
	Tool      *controller.ToolController
	Purchase  *controller.PurchaseController
	Affiliate *controller.AffiliateController
}

// ==================== 初始化函数 ====================

// initDatabase 初始化数据库
func initDatabase() *gorm.DB {
	dsn := getEnv("DATABASE_DSN", fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
		getEnv("DB_HOST", "localhost"),
		getEnv("DB_USER", "aimarket"),
		getEnv("DB_PASSWORD", "aimarket"),
		getEnv("DB_NAME", "aimarket"),
		getEnv("DB_PORT", "5432"),
	))

	return database.InitDB(dsn,
		// Catalog
		&model.Tool{}, &model.LicenseKey{},
		// Order
		&model.Purchase{},
		// Affiliate
		&model.Affiliate{}, &model.AffiliateEarning{}, &model.AffiliatePayout{},
	)
}

// initDependencies 初始化所有依赖
func initDependencies(db *gorm.DB) *Dependencies {
	// -------- Repo 层 --------
	repos := initRepositories(db)

	// -------- 业务服务 --------
	provisionClient := service.NewProvisionClient()

	services := &Services{
		License:     service.NewLicenseService(repos.LicenseKey, repos.Tool),
		Purchase:    service.NewPurchaseService(repos.Purchase, repos.Tool),
		Commission:  service.NewCommissionService(repos.Affiliate, repos.AffiliateEarn, repos.AffiliatePayout),
		Fulfillment: service.NewFulfillmentService(repos.Purchase, repos.Tool, repos.LicenseKey, provisionClient),
	}

	// -------- Controller 层 --------
	controllers := &Controllers{
		Tool:      controller.NewToolController(repos.Tool, services.License),
		Purchase:  controller.NewPurchaseController(services.Purchase, services.Fulfillment),
		Affiliate: controller.NewAffiliateController(services.Commission),
	}

	return &Dependencies{
		DB:          db,
		Repos:       repos,
		Services:    services,
		Controllers: controllers,
	}
}

// initRepositories 初始化所有仓库
func initRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Tool:            repository.NewToolRepository(db),
		LicenseKey:      repository.NewLicenseKeyRepository(db),
		Purchase:        repository.NewPurchaseRepository(db),
		Affiliate:       repository.NewAffiliateRepository(db),
		AffiliateEarn:   repository.NewAffiliateEarningRepository(db),
		AffiliatePayout: repository.NewAffiliatePayoutRepository(db),
	}
}

// ==================== 定时任务 ====================

// initTasks 初始化定时任务
func initTasks(deps *Dependencies) {
	// 库存巡检
	stockTask := task.NewStockTask(
		deps.Repos.Tool,
		deps.Repos.Purchase,
		deps.Services.License,
	)
	stockTask.Start()

	log.Println("定时任务已启动")
}

// ==================== 服务启动 ====================

// startServer 启动服务
func startServer(r *gin.Engine) {
	port := getEnv("SERVER_PORT", "8080")

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}

	// 异步启动服务
	go func() {
		log.Printf("服务启动在 :%s", port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("服务启动失败: %v", err)
		}
	}()

	// 等待退出信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("正在关闭服务...")

	// 优雅关闭，最多等待 30 秒
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("服务强制关闭: %v", err)
	}

	log.Println("服务已退出")
}

// ==================== 工具函数 ====================

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
