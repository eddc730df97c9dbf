package task

import (
	"context"
	"log"
	"sync"
	"time"

	"aimarket_dev_v1_202608/internal/model"
	"aimarket_dev_v1_202608/internal/repository"
	"aimarket_dev_v1_202608/internal/service"

	"github.com/robfig/cron/v3"
)

type StockTask struct {
	ToolRepo     repository.ToolRepository
	PurchaseRepo repository.PurchaseRepository
	LicenseSvc   *service.LicenseService
	Cron         *cron.Cron

	// 控制并发统计的数量，避免扫描期间挤占业务连接
	concurrencyLimit int
	sleepTime        time.Duration
}

func NewStockTask(toolRepo repository.ToolRepository, purchaseRepo repository.PurchaseRepository, licenseSvc *service.LicenseService) *StockTask {
	return &StockTask{
		ToolRepo:         toolRepo,
		PurchaseRepo:     purchaseRepo,
		LicenseSvc:       licenseSvc,
		Cron:             cron.New(cron.WithSeconds()), // 支持秒级控制
		concurrencyLimit: 10,                           // 库存统计是纯查询，上限不用太高
		sleepTime:        20 * time.Millisecond,        // 每个协程启动间隔，平滑波峰
	}
}

// Start 启动定时任务
func (t *StockTask) Start() {
	// 首次执行
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		log.Println("[Task] 服务启动，正在执行首次库存巡检...")
		t.scanJob(ctx)
	}()

	// 定时策略
	_, err := t.Cron.AddFunc("0 0 0/1 * * *", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		t.scanJob(ctx)
	})

	if err != nil {
		log.Fatalf("无法启动库存巡检任务: %v", err)
	}

	t.Cron.Start()
	log.Println("库存巡检任务已启动 (每小时检查一次)")
}

// Stop 停止定时任务
func (t *StockTask) Stop() {
	t.Cron.Stop()
}

// scanJob 巡检所有密钥池交付的工具，对低库存工具记录告警
// 同时统计待人工跟进的订单数量，提醒运营清理积压
func (t *StockTask) scanJob(ctx context.Context) {
	tools, err := t.ToolRepo.ListByFulfillMethod(ctx, model.FulfillMethodBulkKeys)
	if err != nil {
		log.Printf("[Cron] 密钥池工具查询失败: %v", err)
		return
	}

	sem := make(chan struct{}, t.concurrencyLimit)
	var wg sync.WaitGroup

	log.Printf("[Cron] 开始巡检 %d 个密钥池工具的库存，并发上限: %d", len(tools), t.concurrencyLimit)

	for _, tool := range tools {
		// 检查上下文是否已取消（超时处理）
		select {
		case <-ctx.Done():
			log.Println("[Cron] 任务超时停止")
			return
		default:
		}

		sem <- struct{}{}
		wg.Add(1)

		time.Sleep(t.sleepTime)

		currentTool := tool

		go func(tl model.Tool) {
			defer wg.Done()
			defer func() { <-sem }()

			stats, err := t.LicenseSvc.Stats(ctx, tl.ID)
			if err != nil {
				// 日志仅记录，不中断其他协程
				log.Printf("[Cron] 工具 [%s] 库存统计失败: %v", tl.Name, err)
				return
			}

			if stats.LowStock {
				log.Printf("[Cron] 工具 [%s] 库存告警: 剩余 %d 个密钥（共 %d，已用 %d），请通知厂商 %s 补货",
					tl.Name, stats.Available, stats.Total, stats.Used, tl.VendorEmail)
			}
		}(currentTool)
	}

	wg.Wait()

	manual, err := t.PurchaseRepo.CountManualFollowups(ctx)
	if err != nil {
		log.Printf("[Cron] 人工跟进订单统计失败: %v", err)
	} else if manual > 0 {
		log.Printf("[Cron] 当前有 %d 笔订单等待人工跟进", manual)
	}

	log.Println("[Cron] 本轮库存巡检完成")
}
