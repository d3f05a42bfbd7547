package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"HibiscusSOS/internal/models"
	"HibiscusSOS/internal/store"
	"HibiscusSOS/pkg/cache"
	"HibiscusSOS/pkg/util"
	"HibiscusSOS/pkg/websocket"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T) (*gin.Engine, *store.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := util.OpenDatabase("sqlite", dsn)
	require.NoError(t, err)

	eventStore, err := store.NewStore(db)
	require.NoError(t, err)

	hub := websocket.NewHub(websocket.DefaultConfig(), eventStore)
	t.Cleanup(hub.Close)

	snapshotCache := cache.NewGoCache(cache.LocalConfig{
		DefaultExpiration: time.Minute,
		CleanupInterval:   time.Minute,
	})

	r := gin.New()
	NewHandlers(db, eventStore, hub, snapshotCache).RegisterRoutes(r)
	return r, eventStore
}

func doRequest(t *testing.T, r *gin.Engine, method, path string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	r.ServeHTTP(w, req)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w, body
}

func seedAlert(t *testing.T, s *store.Store, id, alertType string) {
	t.Helper()
	require.NoError(t, s.PutAlert(&models.AlertPayload{
		ID:        id,
		Timestamp: "2026-09-01T08:00:00Z",
		AlertType: alertType,
	}))
}

func TestStatus(t *testing.T) {
	r, _ := newTestRouter(t)

	w, body := doRequest(t, r, http.MethodGet, "/")
	assert.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, ServiceName, body["service"])
	assert.Equal(t, ServiceVersion, body["version"])
	assert.Equal(t, "running", body["status"])
	assert.Equal(t, float64(0), body["connectedClients"])
	assert.NotEmpty(t, body["timestamp"])
	assert.Contains(t, body, "system")
}

func TestListAlertsEndpoint(t *testing.T) {
	r, eventStore := newTestRouter(t)

	seedAlert(t, eventStore, "a1", "medical")
	seedAlert(t, eventStore, "a2", "fire")

	w, body := doRequest(t, r, http.MethodGet, "/alerts")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, float64(2), body["count"])

	alerts, ok := body["alerts"].([]interface{})
	require.True(t, ok)
	require.Len(t, alerts, 2)
}

func TestListAlertsEndpointEmpty(t *testing.T) {
	r, _ := newTestRouter(t)

	w, body := doRequest(t, r, http.MethodGet, "/alerts")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, float64(0), body["count"])
}

func TestClearAlertsEndpoint(t *testing.T) {
	r, eventStore := newTestRouter(t)

	seedAlert(t, eventStore, "a1", "medical")
	eventStore.AppendEvent(models.EventAlertReceived, map[string]interface{}{"alertId": "a1"})

	w, body := doRequest(t, r, http.MethodDelete, "/alerts")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "All alerts cleared", body["message"])

	// 清空后立即可见，不受快照缓存影响
	_, body = doRequest(t, r, http.MethodGet, "/alerts")
	assert.Equal(t, float64(0), body["count"])

	// 运行事件保留
	stats, err := eventStore.AggregateStats()
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, models.EventAlertReceived, stats[0].EventType)
}

func TestStatsEndpoint(t *testing.T) {
	r, eventStore := newTestRouter(t)

	eventStore.AppendEvent(models.EventServerStarted, map[string]interface{}{"port": 3000})
	eventStore.AppendEvent(models.EventClientConnected, map[string]interface{}{"sessionId": "s1"})
	eventStore.AppendEvent(models.EventClientConnected, map[string]interface{}{"sessionId": "s2"})

	w, body := doRequest(t, r, http.MethodGet, "/stats")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, float64(0), body["connectedClients"])

	stats, ok := body["stats"].([]interface{})
	require.True(t, ok)
	require.Len(t, stats, 2)

	// 按最近发生时间倒序，client_connected 在前
	first, ok := stats[0].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, models.EventClientConnected, first["eventType"])
	assert.Equal(t, float64(2), first["count"])
}

func TestHealthCheckEndpoint(t *testing.T) {
	r, _ := newTestRouter(t)

	w, body := doRequest(t, r, http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", body["status"])
}
