package handlers

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/langchou/rentdesk/internal/reservation"
	"github.com/langchou/rentdesk/internal/service"
)

// Quote 无状态报价
// POST /api/quote
func (h *Handler) Quote(c *gin.Context) {
	var req service.QuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	q, err := h.service.Quote(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, err, nil)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": q})
}

// CreateSession 创建预约会话
func (h *Handler) CreateSession(c *gin.Context) {
	view := h.service.CreateSession()
	c.JSON(http.StatusCreated, gin.H{"data": view})
}

// GetSession 获取会话表单和计算结果
// 计算失败时仍返回表单，便于前端展示错误
func (h *Handler) GetSession(c *gin.Context) {
	view, err := h.service.GetSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err, view)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": view})
}

// ApplyEvent 应用一次表单事件
// POST /api/sessions/:id/events
func (h *Handler) ApplyEvent(c *gin.Context) {
	var event reservation.Event
	if err := c.ShouldBindJSON(&event); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid event"})
		return
	}

	view, err := h.service.ApplyEvent(c.Request.Context(), c.Param("id"), event)
	if err != nil {
		h.respondError(c, err, view)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": view})
}

// PrintSession 下载预约单
// GET /api/sessions/:id/print
func (h *Handler) PrintSession(c *gin.Context) {
	id := c.Param("id")

	var buf bytes.Buffer
	if err := h.service.Print(c.Request.Context(), id, &buf); err != nil {
		h.respondError(c, err, nil)
		return
	}

	h.logger.Debug("Reservation printed", zap.String("session_id", id))
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="reservation-%s.txt"`, id))
	c.Data(http.StatusOK, "text/plain; charset=utf-8", buf.Bytes())
}
