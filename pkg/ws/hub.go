package ws

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// MessageType WebSocket 消息类型
const (
	MsgTypeInit    = "init"    // 连接时的会话快照
	MsgTypeSummary = "summary" // 表单重新计算后的结果
	MsgTypeError   = "error"   // 错误消息
)

// Message WebSocket 消息结构
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// sessionMessage 发往某个会话订阅者的消息
type sessionMessage struct {
	sessionID string
	data      []byte
}

// MessageHandler 处理客户端发来的消息
type MessageHandler func(c *Client, data []byte)

// Client WebSocket 客户端，订阅单个预约会话
type Client struct {
	hub       *Hub
	conn      *websocket.Conn
	send      chan []byte
	sessionID string
	onMessage MessageHandler

	// 连接断开或会话关闭时取消
	ctx    context.Context
	cancel context.CancelFunc
}

// Hub WebSocket 连接管理中心，按会话分组
type Hub struct {
	logger     *zap.Logger
	sessions   map[string]map[*Client]bool
	broadcast  chan sessionMessage
	unregister chan *Client
	done       chan struct{}
	mu         sync.RWMutex
}

// NewHub 创建 Hub
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		logger:     logger,
		sessions:   make(map[string]map[*Client]bool),
		broadcast:  make(chan sessionMessage, 256),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run 运行 Hub，直到 Stop
func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			return

		case client := <-h.unregister:
			h.mu.Lock()
			h.remove(client)
			h.mu.Unlock()
			h.logger.Info("WebSocket client disconnected",
				zap.String("session_id", client.sessionID),
				zap.Int("total_clients", h.ClientCount()))

		case msg := <-h.broadcast:
			h.mu.Lock()
			for client := range h.sessions[msg.sessionID] {
				select {
				case client.send <- msg.data:
				default:
					// 慢消费者，关闭连接
					h.remove(client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Stop 停止 Hub
func (h *Hub) Stop() {
	close(h.done)
}

// remove 调用方需持有写锁
func (h *Hub) remove(client *Client) {
	subs, ok := h.sessions[client.sessionID]
	if !ok || !subs[client] {
		return
	}
	delete(subs, client)
	close(client.send)
	client.cancel()
	if len(subs) == 0 {
		delete(h.sessions, client.sessionID)
	}
}

// CloseSession 断开会话的全部订阅者
func (h *Hub) CloseSession(sessionID string) {
	h.mu.Lock()
	subs := h.sessions[sessionID]
	n := len(subs)
	for client := range subs {
		h.remove(client)
	}
	h.mu.Unlock()

	if n > 0 {
		h.logger.Info("Closed session subscribers",
			zap.String("session_id", sessionID),
			zap.Int("clients", n))
	}
}

// PublishSession 推送结构化消息给会话的所有订阅者
func (h *Hub) PublishSession(sessionID string, msgType string, data interface{}) {
	jsonData, err := encode(msgType, data)
	if err != nil {
		h.logger.Error("Failed to marshal session message", zap.Error(err))
		return
	}
	select {
	case h.broadcast <- sessionMessage{sessionID: sessionID, data: jsonData}:
	case <-h.done:
	}
}

// ClientCount 获取客户端数量
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, subs := range h.sessions {
		n += len(subs)
	}
	return n
}

// SessionClientCount 某个会话的订阅数量
func (h *Hub) SessionClientCount(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions[sessionID])
}

// NewClient 创建客户端
func NewClient(hub *Hub, conn *websocket.Conn, sessionID string, onMessage MessageHandler) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		hub:       hub,
		conn:      conn,
		send:      make(chan []byte, 256),
		sessionID: sessionID,
		onMessage: onMessage,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Context 客户端生命周期，断开后取消
func (c *Client) Context() context.Context {
	return c.ctx
}

// SessionID 客户端订阅的会话
func (c *Client) SessionID() string {
	return c.sessionID
}

// Register 注册客户端，返回后即可收到该会话的推送
func (c *Client) Register() {
	h := c.hub
	h.mu.Lock()
	subs, ok := h.sessions[c.sessionID]
	if !ok {
		subs = make(map[*Client]bool)
		h.sessions[c.sessionID] = subs
	}
	subs[c] = true
	h.mu.Unlock()

	h.logger.Info("WebSocket client connected",
		zap.String("session_id", c.sessionID),
		zap.Int("total_clients", h.ClientCount()))
}

// Unregister 注销客户端
func (c *Client) Unregister() {
	select {
	case c.hub.unregister <- c:
	case <-c.hub.done:
	}
}

// Send 直接回复该客户端，缓冲区满时丢弃
func (c *Client) Send(msgType string, data interface{}) {
	jsonData, err := encode(msgType, data)
	if err != nil {
		c.hub.logger.Error("Failed to marshal client message", zap.Error(err))
		return
	}

	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	if !c.hub.sessions[c.sessionID][c] {
		return
	}
	select {
	case c.send <- jsonData:
	default:
		c.hub.logger.Warn("Client buffer full, dropping message", zap.String("session_id", c.sessionID))
	}
}

// ReadPump 读取客户端发来的表单事件
func (c *Client) ReadPump() {
	defer func() {
		c.cancel()
		c.Unregister()
		c.conn.Close()
	}()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			break
		}
		if c.onMessage != nil {
			c.onMessage(c, data)
		}
	}
}

// WritePump 发送消息
func (c *Client) WritePump() {
	defer c.conn.Close()

	for message := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			break
		}
	}
}

func encode(msgType string, data interface{}) ([]byte, error) {
	return json.Marshal(Message{Type: msgType, Data: data})
}
