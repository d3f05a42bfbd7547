package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	connectedClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sos_connected_clients",
		Help: "当前接入的客户端会话数",
	})

	alertsReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sos_alerts_received_total",
		Help: "接收到的SOS警报数，按类型",
	}, []string{"alert_type"})

	alertsRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sos_alerts_rejected_total",
		Help: "校验失败被拒绝的SOS警报数",
	})

	clientsNotified = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sos_clients_notified_total",
		Help: "广播累计通知的客户端数",
	})

	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sos_http_requests_total",
		Help: "HTTP请求数，按方法、路径、状态码",
	}, []string{"method", "path", "status"})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sos_http_request_duration_seconds",
		Help:    "HTTP请求耗时",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})
)

// SetConnectedClients 更新连接数指标
func SetConnectedClients(n int64) {
	connectedClients.Set(float64(n))
}

// AlertReceived 记录一条接收的警报
func AlertReceived(alertType string, notified int) {
	alertsReceived.WithLabelValues(alertType).Inc()
	clientsNotified.Add(float64(notified))
}

// AlertRejected 记录一条被拒绝的警报
func AlertRejected() {
	alertsRejected.Inc()
}

// GinMiddleware HTTP请求指标中间件
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		httpRequests.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		httpDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

// GinHandler 暴露 /metrics
func GinHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
