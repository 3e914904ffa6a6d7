package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/langchou/rentdesk/internal/service"
	"github.com/langchou/rentdesk/pkg/ws"
)

// Handler HTTP 处理器
type Handler struct {
	logger   *zap.Logger
	service  *service.ReservationService
	wsHub    *ws.Hub
	gatherer prometheus.Gatherer
	upgrader websocket.Upgrader
}

// NewHandler 创建处理器
func NewHandler(
	logger *zap.Logger,
	svc *service.ReservationService,
	wsHub *ws.Hub,
	gatherer prometheus.Gatherer,
) *Handler {
	return &Handler{
		logger:   logger,
		service:  svc,
		wsHub:    wsHub,
		gatherer: gatherer,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // 开发环境允许所有来源
			},
		},
	}
}

// RegisterRoutes 注册路由
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	// API 路由
	api := r.Group("/api")
	{
		// 车辆目录
		api.GET("/vehicles", h.ListVehicles)
		api.GET("/vehicle-types", h.ListVehicleTypes)
		api.GET("/charges", h.ListChargeOptions)
		api.POST("/catalog/reload", h.ReloadCatalog)

		// 报价
		api.POST("/quote", h.Quote)

		// 预约会话
		api.POST("/sessions", h.CreateSession)
		api.GET("/sessions/:id", h.GetSession)
		api.POST("/sessions/:id/events", h.ApplyEvent)
		api.GET("/sessions/:id/print", h.PrintSession)
	}

	// WebSocket
	r.GET("/ws/sessions/:id", h.HandleSessionWebSocket)

	// 健康检查
	r.GET("/health", h.HealthCheck)

	// Prometheus
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{})))
}

// HealthCheck 健康检查
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":     "ok",
		"catalog":    h.service.CatalogStatus(),
		"ws_clients": h.wsHub.ClientCount(),
	})
}
