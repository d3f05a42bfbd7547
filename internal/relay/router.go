package relay

import (
	"time"

	"HibiscusSOS/internal/models"
	"HibiscusSOS/internal/store"
	"HibiscusSOS/pkg/errors"
	"HibiscusSOS/pkg/metrics"
	"HibiscusSOS/pkg/websocket"

	"github.com/sirupsen/logrus"
)

// Broadcaster 广播出口，由 websocket.Hub 实现
type Broadcaster interface {
	BroadcastExcept(originID string, data []byte) int
}

// Router 所有入站警报的唯一通道：校验、落库、扇出、审计
type Router struct {
	store       *store.Store
	broadcaster Broadcaster
}

// NewRouter 创建警报路由
func NewRouter(s *store.Store, b Broadcaster) *Router {
	return &Router{
		store:       s,
		broadcaster: b,
	}
}

// broadcastAlert 广播载荷：原始警报附加服务端接收时间与来源会话
type broadcastAlert struct {
	*models.AlertPayload
	ReceivedAt string `json:"receivedAt"`
	FromClient string `json:"fromClient"`
}

// SubmitAlert 处理一条警报提交，返回通知到的客户端数
// 顺序固定：先落库后广播，落库失败不广播
func (r *Router) SubmitAlert(originID string, alert *models.AlertPayload) (int, error) {
	if err := validate(alert); err != nil {
		metrics.AlertRejected()
		return 0, err
	}

	if err := r.store.PutAlert(alert); err != nil {
		return 0, err
	}

	data, err := websocket.Envelope(websocket.MessageTypeAlertBroadcast, &broadcastAlert{
		AlertPayload: alert,
		ReceivedAt:   time.Now().UTC().Format(time.RFC3339),
		FromClient:   originID,
	})
	if err != nil {
		// 落库已成功，序列化失败只影响本次扇出
		logrus.Errorf("警报 %s 广播序列化失败: %v", alert.ID, err)
		return 0, nil
	}

	// 通知数为扇出快照的大小，不代表每个目标都成功收到
	notified := r.broadcaster.BroadcastExcept(originID, data)

	logrus.Infof("警报 %s 已存储并广播给 %d 个客户端", alert.ID, notified)
	metrics.AlertReceived(alert.AlertType, notified)

	r.store.AppendEvent(models.EventAlertReceived, map[string]interface{}{
		"alertId":         alert.ID,
		"alertType":       alert.AlertType,
		"clientId":        originID,
		"clientsNotified": notified,
	})

	return notified, nil
}

// ListAlerts 返回全部历史警报
func (r *Router) ListAlerts() ([]*models.AlertPayload, error) {
	return r.store.ListAlerts()
}

// validate 校验必填字段，缺失即拒绝，不产生任何副作用
func validate(alert *models.AlertPayload) error {
	if alert.ID == "" || alert.AlertType == "" || alert.Timestamp == "" {
		return errors.WithCode(errors.CodeValidation,
			"Missing required fields: id, alertType, timestamp")
	}
	return nil
}
