package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/langchou/rentdesk/internal/api/catalog"
	"github.com/langchou/rentdesk/internal/pricing"
	"github.com/langchou/rentdesk/internal/reservation"
	"github.com/langchou/rentdesk/internal/service"
	"github.com/langchou/rentdesk/internal/state"
)

// errorStatus 错误对应的 HTTP 状态码和响应消息
func errorStatus(err error) (int, string) {
	var fetchErr *catalog.FetchError
	var rateErr *pricing.MissingRateError

	switch {
	case errors.As(err, &fetchErr):
		return http.StatusBadGateway, fetchErr.UserMessage()
	case errors.Is(err, service.ErrCatalogUnavailable):
		return http.StatusBadGateway, "Error: " + err.Error()
	case errors.Is(err, state.ErrCatalogLoading):
		return http.StatusServiceUnavailable, err.Error()
	case errors.As(err, &rateErr):
		return http.StatusUnprocessableEntity, rateErr.Error()
	case errors.Is(err, service.ErrSessionNotFound),
		errors.Is(err, reservation.ErrVehicleNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, reservation.ErrVehicleTypeMismatch),
		errors.Is(err, reservation.ErrUnknownCharge),
		errors.Is(err, reservation.ErrUnknownEvent),
		errors.Is(err, reservation.ErrNegativeDiscount):
		return http.StatusBadRequest, err.Error()
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

// respondError 写入错误响应，data 非空时一并返回
func (h *Handler) respondError(c *gin.Context, err error, data interface{}) {
	status, msg := errorStatus(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed", zap.String("path", c.Request.URL.Path), zap.Error(err))
	}

	body := gin.H{"error": msg}
	if data != nil {
		body["data"] = data
	}
	c.JSON(status, body)
}
