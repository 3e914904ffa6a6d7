package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/langchou/rentdesk/internal/models"
)

// DefaultEndpoint 原预约表单使用的车辆目录接口
const DefaultEndpoint = "https://exam-server-7c41747804bf.herokuapp.com/carsList"

// FetchError 目录拉取失败（网络错误、非 2xx、响应无法解析）
type FetchError struct {
	StatusCode int // 0 表示未拿到响应
	Body       string
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("failed to fetch car data: status=%d", e.StatusCode)
	}
	return fmt.Sprintf("failed to fetch car data: %v", e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// UserMessage 展示给用户的错误信息
func (e *FetchError) UserMessage() string {
	return "Error: " + e.Error()
}

// listResponse 目录接口响应结构
type listResponse struct {
	Data []models.Vehicle `json:"data"`
}

// Client 车辆目录 HTTP 客户端
// 单次请求，带超时，不做自动重试
type Client struct {
	httpClient *http.Client
	endpoint   string
	logger     *zap.Logger
}

// NewClient 创建目录客户端
func NewClient(endpoint string, timeout time.Duration, logger *zap.Logger) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		endpoint: endpoint,
		logger:   logger,
	}
}

// Endpoint 返回目录地址
func (c *Client) Endpoint() string {
	return c.endpoint
}

// ListVehicles 拉取车辆目录
func (c *Client) ListVehicles(ctx context.Context) ([]models.Vehicle, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint, nil)
	if err != nil {
		return nil, &FetchError{Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "RentDesk/1.0")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &FetchError{Err: fmt.Errorf("list vehicles request: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &FetchError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var listResp listResponse
	if err := json.NewDecoder(resp.Body).Decode(&listResp); err != nil {
		return nil, &FetchError{Err: fmt.Errorf("decode response: %w", err)}
	}
	if listResp.Data == nil {
		return nil, &FetchError{Err: fmt.Errorf("decode response: missing data field")}
	}

	c.logger.Debug("Fetched vehicle catalog",
		zap.String("endpoint", c.endpoint),
		zap.Int("vehicles", len(listResp.Data)),
		zap.Duration("elapsed", time.Since(start)),
	)

	return listResp.Data, nil
}
