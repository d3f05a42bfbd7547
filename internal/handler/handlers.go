package handlers

import (
	"HibiscusSOS/internal/store"
	"HibiscusSOS/pkg/cache"
	"HibiscusSOS/pkg/websocket"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const (
	ServiceName    = "Offline SOS Alert Server"
	ServiceVersion = "1.0.0"

	cacheKeyAlerts = "alerts:list"
	cacheKeyStats  = "stats:events"
)

// Handlers HTTP管理接口处理器集合
type Handlers struct {
	db    *gorm.DB
	store *store.Store
	hub   *websocket.Hub
	cache cache.Cache
}

// NewHandlers 创建处理器集合
func NewHandlers(db *gorm.DB, s *store.Store, hub *websocket.Hub, c cache.Cache) *Handlers {
	return &Handlers{
		db:    db,
		store: s,
		hub:   hub,
		cache: c,
	}
}

// RegisterRoutes 统一注册管理接口路由
func (h *Handlers) RegisterRoutes(r *gin.Engine) {
	r.GET("/", h.Status)
	r.GET("/stats", h.Stats)
	r.GET("/alerts", h.ListAlerts)
	r.DELETE("/alerts", h.ClearAlerts)
	r.GET("/health", h.HealthCheck)
}
