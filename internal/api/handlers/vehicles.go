package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/langchou/rentdesk/internal/models"
)

// ListVehicles 获取车辆列表
// GET /api/vehicles?type=SUV
func (h *Handler) ListVehicles(c *gin.Context) {
	vehicleType := c.DefaultQuery("type", models.AllTypes)

	vehicles, err := h.service.Vehicles(c.Request.Context(), vehicleType)
	if err != nil {
		h.respondError(c, err, nil)
		return
	}
	if vehicles == nil {
		vehicles = []models.Vehicle{}
	}

	c.JSON(http.StatusOK, gin.H{"data": vehicles})
}

// ListVehicleTypes 车型下拉选项
func (h *Handler) ListVehicleTypes(c *gin.Context) {
	types, err := h.service.VehicleTypes(c.Request.Context())
	if err != nil {
		h.respondError(c, err, nil)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": types})
}

// ListChargeOptions 附加费用选项
func (h *Handler) ListChargeOptions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": h.service.ChargeOptions()})
}

// ReloadCatalog 重新拉取车辆目录
// POST /api/catalog/reload
// 拉取失败后不会自动重试，只能由用户通过此接口触发
func (h *Handler) ReloadCatalog(c *gin.Context) {
	vehicles, err := h.service.ReloadCatalog(c.Request.Context())
	if err != nil {
		h.logger.Warn("Catalog reload failed", zap.Error(err))
		h.respondError(c, err, nil)
		return
	}

	h.logger.Info("Catalog reloaded via API", zap.Int("vehicles", len(vehicles)))
	c.JSON(http.StatusOK, gin.H{
		"message":  "Catalog reloaded",
		"vehicles": len(vehicles),
	})
}
