package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"HibiscusSOS/internal/models"
	"HibiscusSOS/pkg/metrics"

	"github.com/sirupsen/logrus"
)

// Message 定义WebSocket消息结构
type Message struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp int64           `json:"timestamp,omitempty"`
}

// Envelope 将载荷封装为指定类型的消息并序列化
func Envelope(msgType string, data interface{}) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(&Message{
		Type:      msgType,
		Data:      raw,
		Timestamp: time.Now().Unix(),
	})
}

// AlertRouter 警报提交与查询入口，由 relay.Router 实现
type AlertRouter interface {
	SubmitAlert(originID string, alert *models.AlertPayload) (clientsNotified int, err error)
	ListAlerts() ([]*models.AlertPayload, error)
}

// EventSink 运行事件落库入口，由 store.Store 实现
type EventSink interface {
	AppendEvent(eventType string, details map[string]interface{})
}

// Hub 管理所有WebSocket会话
type Hub struct {
	// 注册的会话
	sessions map[string]*Session
	// 注册会话通道
	register chan *Session
	// 注销会话通道
	unregister chan *Session
	// 会话计数
	sessionCount int64
	// 配置
	config *Config
	// 警报路由
	router AlertRouter
	// 运行事件落库
	events EventSink
	// 互斥锁
	mu sync.RWMutex
	// 上下文
	ctx    context.Context
	cancel context.CancelFunc
}

// NewHub 创建新的Hub实例
func NewHub(config *Config, events EventSink) *Hub {
	if config == nil {
		config = DefaultConfig()
	}

	ctx, cancel := context.WithCancel(context.Background())

	hub := &Hub{
		sessions:   make(map[string]*Session),
		register:   make(chan *Session, 64),
		unregister: make(chan *Session, 64),
		config:     config,
		events:     events,
		ctx:        ctx,
		cancel:     cancel,
	}

	go hub.run()
	return hub
}

// SetRouter 注入警报路由，必须在接入第一个连接前调用
func (h *Hub) SetRouter(router AlertRouter) {
	h.router = router
}

// run Hub主循环
func (h *Hub) run() {
	ticker := time.NewTicker(h.config.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-h.ctx.Done():
			return
		case session := <-h.register:
			h.registerSession(session)
		case session := <-h.unregister:
			h.unregisterSession(session)
		case <-ticker.C:
			h.checkHeartbeats()
		}
	}
}

// registerSession 注册会话
func (h *Hub) registerSession(session *Session) {
	h.mu.Lock()

	if atomic.LoadInt64(&h.sessionCount) >= h.config.MaxConnections {
		h.mu.Unlock()
		session.Conn.Close()
		logrus.Warnf("达到最大连接数限制: %d", h.config.MaxConnections)
		return
	}

	h.sessions[session.ID] = session
	atomic.AddInt64(&h.sessionCount, 1)
	session.setState(StateActive)
	h.mu.Unlock()

	metrics.SetConnectedClients(atomic.LoadInt64(&h.sessionCount))

	if h.events != nil {
		h.events.AppendEvent(models.EventClientConnected, map[string]interface{}{
			"sessionId":  session.ID,
			"remoteAddr": session.RemoteAddr,
			"platform":   session.Platform,
		})
	}

	logrus.Infof("会话已注册: %s, 当前连接数: %d",
		session.ID, atomic.LoadInt64(&h.sessionCount))
}

// unregisterSession 注销会话
func (h *Hub) unregisterSession(session *Session) {
	h.mu.Lock()
	_, exists := h.sessions[session.ID]
	if exists {
		delete(h.sessions, session.ID)
		atomic.AddInt64(&h.sessionCount, -1)
	}
	h.mu.Unlock()

	if !exists {
		return
	}

	session.closeSend()
	metrics.SetConnectedClients(atomic.LoadInt64(&h.sessionCount))

	if h.events != nil {
		h.events.AppendEvent(models.EventClientDisconnected, map[string]interface{}{
			"sessionId": session.ID,
			"reason":    session.CloseReason(),
		})
	}

	logrus.Infof("会话已注销: %s, 原因: %s, 当前连接数: %d",
		session.ID, session.CloseReason(), atomic.LoadInt64(&h.sessionCount))
}

// AllExcept 返回除指定会话外所有存活会话的快照
// 广播使用快照而非实时结构，与注销并发时不会投递给刚移除的会话
func (h *Hub) AllExcept(sessionID string) []*Session {
	h.mu.RLock()
	defer h.mu.RUnlock()

	targets := make([]*Session, 0, len(h.sessions))
	for id, session := range h.sessions {
		if id == sessionID {
			continue
		}
		if session.Alive() {
			targets = append(targets, session)
		}
	}
	return targets
}

// BroadcastExcept 将数据推送给除来源外的所有会话，返回快照大小
// 单个目标投递失败不影响其他目标，不重试
func (h *Hub) BroadcastExcept(originID string, data []byte) int {
	targets := h.AllExcept(originID)
	for _, target := range targets {
		if !target.deliver(data) {
			logrus.Warnf("会话 %s 投递失败，消息被丢弃", target.ID)
		}
	}
	return len(targets)
}

// Count 获取当前会话数
func (h *Hub) Count() int {
	return int(atomic.LoadInt64(&h.sessionCount))
}

// checkHeartbeats 检查心跳，超时的连接直接关闭，由读协程走注销流程
func (h *Hub) checkHeartbeats() {
	h.mu.RLock()
	defer h.mu.RUnlock()

	now := time.Now()
	for _, session := range h.sessions {
		if now.Sub(session.lastPing()) > h.config.ConnectionTimeout {
			logrus.Warnf("会话 %s 心跳超时，准备关闭", session.ID)
			session.setCloseReason("heartbeat timeout")
			if session.Conn != nil {
				session.Conn.Close()
			}
		}
	}
}

// Close 关闭Hub
func (h *Hub) Close() {
	h.cancel()

	h.mu.Lock()
	for _, session := range h.sessions {
		if session.Conn != nil {
			session.Conn.Close()
		}
	}
	h.mu.Unlock()

	logrus.Info("WebSocket Hub已关闭")
}
