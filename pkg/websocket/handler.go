package websocket

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Handler WebSocket HTTP处理器
type Handler struct {
	hub *Hub
}

// NewHandler 创建新的WebSocket处理器
func NewHandler(hub *Hub) *Handler {
	return &Handler{
		hub: hub,
	}
}

// RegisterRoutes 统一注册路由
func RegisterRoutes(r *gin.Engine, handler *Handler) {
	r.GET(RouteWebSocket, handler.HandleWebSocket)
	r.GET(RouteWebSocket+"/stats", handler.GetStats)
}

// HandleWebSocket 处理WebSocket连接请求，不做认证，局域网内任意设备可接入
func (h *Handler) HandleWebSocket(c *gin.Context) {
	HandleWebSocket(h.hub, c.Writer, c.Request)
}

// GetStats 获取WebSocket统计信息
func (h *Handler) GetStats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"total_connections":  h.hub.Count(),
		"max_connections":    h.hub.config.MaxConnections,
		"heartbeat_interval": h.hub.config.HeartbeatInterval.String(),
		"connection_timeout": h.hub.config.ConnectionTimeout.String(),
		"message_buffer_size": h.hub.config.MessageBufferSize,
		"max_message_size":   h.hub.config.MaxMessageSize,
		"enable_compression": h.hub.config.EnableCompression,
	})
}
