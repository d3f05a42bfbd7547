package handlers

import (
	"net/http"
	"time"

	"HibiscusSOS/internal/models"
	"HibiscusSOS/pkg/errors"
	"HibiscusSOS/pkg/metrics"
	"HibiscusSOS/pkg/response"

	"github.com/gin-gonic/gin"
)

const snapshotTTL = 2 * time.Second

// Status 服务状态描述
func (h *Handlers) Status(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service":          ServiceName,
		"version":          ServiceVersion,
		"status":           "running",
		"connectedClients": h.hub.Count(),
		"timestamp":        time.Now().UTC().Format(time.RFC3339),
		"system":           metrics.CollectSystemStats(),
	})
}

// Stats 运行事件聚合统计
func (h *Handlers) Stats(c *gin.Context) {
	var stats []models.EventStat
	cached, hit := h.cache.Get(c.Request.Context(), cacheKeyStats)
	if typed, ok := cached.([]models.EventStat); hit && ok {
		stats = typed
	} else {
		var err error
		stats, err = h.store.AggregateStats()
		if err != nil {
			response.Error(c, http.StatusInternalServerError, errors.GetMessage(err))
			return
		}
		_ = h.cache.Set(c.Request.Context(), cacheKeyStats, stats, snapshotTTL)
	}

	c.JSON(http.StatusOK, gin.H{
		"success":          true,
		"stats":            stats,
		"connectedClients": h.hub.Count(),
	})
}

// ListAlerts 全量警报快照
func (h *Handlers) ListAlerts(c *gin.Context) {
	var alerts []*models.AlertPayload
	cached, hit := h.cache.Get(c.Request.Context(), cacheKeyAlerts)
	if typed, ok := cached.([]*models.AlertPayload); hit && ok {
		alerts = typed
	} else {
		var err error
		alerts, err = h.store.ListAlerts()
		if err != nil {
			response.Error(c, http.StatusInternalServerError, errors.GetMessage(err))
			return
		}
		_ = h.cache.Set(c.Request.Context(), cacheKeyAlerts, alerts, snapshotTTL)
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"alerts":  alerts,
		"count":   len(alerts),
	})
}

// ClearAlerts 删除全部警报记录，运行事件表不受影响
func (h *Handlers) ClearAlerts(c *gin.Context) {
	if err := h.store.ClearAlerts(); err != nil {
		response.Error(c, http.StatusInternalServerError, errors.GetMessage(err))
		return
	}

	_ = h.cache.Delete(c.Request.Context(), cacheKeyAlerts)
	_ = h.cache.Delete(c.Request.Context(), cacheKeyStats)

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "All alerts cleared",
	})
}
