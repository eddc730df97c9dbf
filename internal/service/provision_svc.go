package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// ==================== API 开通客户端 ====================

// ProvisionRequest 发给厂商 Webhook 的开通请求
type ProvisionRequest struct {
	PurchaseID    int64  `json:"purchase_id"`
	OrderNo       string `json:"order_no"`
	CustomerEmail string `json:"customer_email"`
	ToolID        int64  `json:"tool_id"`
	ToolName      string `json:"tool_name"`
}

// ProvisionResult 厂商 Webhook 返回的账号信息
type ProvisionResult struct {
	LoginURL string `json:"login_url"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// ProvisionClient 第三方 API 开通客户端
// 每次交付只调用一次，不在客户端内部重试；超时与 HTTP 失败同等对待
type ProvisionClient interface {
	Provision(ctx context.Context, webhookURL string, req *ProvisionRequest) (*ProvisionResult, error)
}

type restyProvisionClient struct {
	client *resty.Client
}

// NewProvisionClient 创建基于 Resty 的开通客户端
func NewProvisionClient() ProvisionClient {
	client := resty.New().
		SetTimeout(10 * time.Second). // 出站调用的唯一网络阻塞点，必须有界
		SetHeader("User-Agent", "AIMarket-Go-App/1.0")

	return &restyProvisionClient{client: client}
}

func (c *restyProvisionClient) Provision(ctx context.Context, webhookURL string, req *ProvisionRequest) (*ProvisionResult, error) {
	var result ProvisionResult

	resp, err := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(req).
		SetResult(&result).
		Post(webhookURL)
	if err != nil {
		return nil, fmt.Errorf("请求厂商 Webhook 失败: %w", err)
	}

	if resp.IsError() {
		return nil, fmt.Errorf("厂商 Webhook 错误 [%d]: %s", resp.StatusCode(), resp.String())
	}

	return &result, nil
}
