package handlers

import (
	"encoding/json"
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/langchou/rentdesk/internal/reservation"
	"github.com/langchou/rentdesk/internal/service"
	"github.com/langchou/rentdesk/pkg/ws"
)

// HandleSessionWebSocket 订阅会话
// 客户端发送表单事件，所有订阅者收到重新计算后的汇总
func (h *Handler) HandleSessionWebSocket(c *gin.Context) {
	id := c.Param("id")

	view, err := h.service.GetSession(c.Request.Context(), id)
	if errors.Is(err, service.ErrSessionNotFound) {
		h.respondError(c, err, nil)
		return
	}

	conn, err2 := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err2 != nil {
		h.logger.Error("Failed to upgrade websocket", zap.Error(err2))
		return
	}

	client := ws.NewClient(h.wsHub, conn, view.ID, h.handleSessionMessage)
	client.Register()

	// 连接时先推送当前快照
	client.Send(ws.MsgTypeInit, view)
	if err != nil {
		_, msg := errorStatus(err)
		client.Send(ws.MsgTypeError, gin.H{"error": msg})
	}

	// 启动读写协程
	go client.ReadPump()
	go client.WritePump()
}

// handleSessionMessage 处理客户端发来的表单事件
// 汇总由服务推送给会话的全部订阅者，这里只回复被拒绝的事件
func (h *Handler) handleSessionMessage(client *ws.Client, data []byte) {
	var event reservation.Event
	if err := json.Unmarshal(data, &event); err != nil {
		client.Send(ws.MsgTypeError, gin.H{"error": "Invalid event"})
		return
	}

	view, err := h.service.ApplyEvent(client.Context(), client.SessionID(), event)
	if err != nil && view == nil {
		_, msg := errorStatus(err)
		client.Send(ws.MsgTypeError, gin.H{"error": msg})
	}
}
