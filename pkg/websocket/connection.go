package websocket

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"HibiscusSOS/internal/models"
	"HibiscusSOS/pkg/errors"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/mssola/user_agent"
	"github.com/sirupsen/logrus"
)

// Session 表示一个客户端会话，连接断开即销毁，不做任何持久化
type Session struct {
	ID         string
	Conn       *websocket.Conn
	Send       chan []byte
	Hub        *Hub
	RemoteAddr string
	Platform   string

	mu          sync.RWMutex
	state       string
	isAlive     bool
	lastPingAt  time.Time
	closeReason string
}

// WelcomePayload 欢迎消息载荷
type WelcomePayload struct {
	Message   string `json:"message"`
	ServerID  string `json:"serverId"`
	Timestamp string `json:"timestamp"`
}

// AlertAckPayload 警报提交确认载荷
type AlertAckPayload struct {
	Success         bool   `json:"success"`
	Message         string `json:"message,omitempty"`
	AlertID         string `json:"alertId,omitempty"`
	ClientsNotified *int   `json:"clientsNotified,omitempty"`
}

// AlertListPayload 历史警报查询载荷
type AlertListPayload struct {
	Success bool                   `json:"success"`
	Message string                 `json:"message,omitempty"`
	Alerts  []*models.AlertPayload `json:"alerts"`
	Count   int                    `json:"count"`
}

// HeartbeatPayload 心跳载荷
type HeartbeatPayload struct {
	Timestamp string `json:"timestamp"`
}

// HeartbeatResponsePayload 心跳响应载荷
type HeartbeatResponsePayload struct {
	Received   string `json:"received"`
	ServerTime string `json:"serverTime"`
}

// ErrorPayload 协议错误载荷
type ErrorPayload struct {
	Message string `json:"message"`
}

// newUpgrader 根据配置创建WebSocket升级器
func newUpgrader(cfg *Config) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  cfg.ReadBufferSize,
		WriteBufferSize: cfg.WriteBufferSize,
		CheckOrigin: func(r *http.Request) bool {
			// 局域网/热点场景，放开Origin检查
			return true
		},
		EnableCompression: cfg.EnableCompression,
	}
}

// HandleWebSocket 处理WebSocket连接
func HandleWebSocket(hub *Hub, w http.ResponseWriter, r *http.Request) {
	upgrader := newUpgrader(hub.config)
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logrus.Errorf("WebSocket升级失败: %v", err)
		return
	}

	ua := user_agent.New(r.UserAgent())
	osInfo := ua.OSInfo()

	session := &Session{
		ID:         uuid.NewString(),
		Conn:       conn,
		Send:       make(chan []byte, hub.config.MessageBufferSize),
		Hub:        hub,
		RemoteAddr: r.RemoteAddr,
		Platform:   osInfo.FullName,
		state:      StateConnecting,
		isAlive:    true,
		lastPingAt: time.Now(),
	}

	hub.register <- session

	// 欢迎消息携带分配的会话ID，客户端以此识别自己的广播
	welcome, _ := Envelope(MessageTypeConnected, &WelcomePayload{
		Message:   MsgConnectionEstablished,
		ServerID:  session.ID,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	session.deliver(welcome)

	go session.writePump()
	go session.readPump()
}

// readPump 读取消息的协程
func (s *Session) readPump() {
	defer func() {
		s.Hub.unregister <- s
		s.Conn.Close()
	}()

	s.Conn.SetReadLimit(int64(s.Hub.config.MaxMessageSize))
	s.Conn.SetReadDeadline(time.Now().Add(s.Hub.config.ConnectionTimeout))
	s.Conn.SetPongHandler(func(string) error {
		s.touch()
		s.Conn.SetReadDeadline(time.Now().Add(s.Hub.config.ConnectionTimeout))
		return nil
	})

	for {
		_, message, err := s.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logrus.Errorf("会话 %s 读取错误: %v", s.ID, err)
				if s.Hub.events != nil {
					s.Hub.events.AppendEvent(models.EventSocketError, map[string]interface{}{
						"sessionId": s.ID,
						"error":     err.Error(),
					})
				}
			}
			s.setCloseReason(err.Error())
			break
		}

		s.handleMessage(message)
	}
}

// writePump 发送消息的协程
func (s *Session) writePump() {
	pingEvery := time.Duration(float64(s.Hub.config.HeartbeatInterval) * 0.9)
	ticker := time.NewTicker(pingEvery)
	defer func() {
		ticker.Stop()
		s.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-s.Send:
			s.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				s.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := s.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			s.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := s.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage 按消息类型分发，协议错误不关闭连接
func (s *Session) handleMessage(raw []byte) {
	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		logrus.Errorf("会话 %s 消息解析失败: %v", s.ID, err)
		s.sendError("invalid message format")
		return
	}

	switch msg.Type {
	case MessageTypeSOSAlert:
		s.handleSOSAlert(msg)
	case MessageTypeGetAlerts:
		s.handleGetAlerts()
	case MessageTypeHeartbeat:
		s.handleHeartbeat(msg)
	case MessageTypePing:
		s.handlePing()
	default:
		logrus.Warnf("会话 %s 未知的消息类型: %s", s.ID, msg.Type)
		s.sendError("not implemented: " + msg.Type)
	}
}

// handleSOSAlert 处理警报提交
func (s *Session) handleSOSAlert(msg Message) {
	var alert models.AlertPayload
	if err := json.Unmarshal(msg.Data, &alert); err != nil {
		s.ack(MessageTypeSOSAlertAck, &AlertAckPayload{
			Success: false,
			Message: "invalid alert payload: " + err.Error(),
		})
		return
	}

	notified, err := s.Hub.router.SubmitAlert(s.ID, &alert)
	if err != nil {
		s.ack(MessageTypeSOSAlertAck, &AlertAckPayload{
			Success: false,
			Message: errors.GetMessage(err),
		})
		return
	}

	s.ack(MessageTypeSOSAlertAck, &AlertAckPayload{
		Success:         true,
		Message:         "SOS alert received and broadcasted",
		AlertID:         alert.ID,
		ClientsNotified: &notified,
	})
}

// handleGetAlerts 处理历史警报查询，存储失败返回空列表加错误信息
func (s *Session) handleGetAlerts() {
	alerts, err := s.Hub.router.ListAlerts()
	if err != nil {
		s.ack(MessageTypeAlerts, &AlertListPayload{
			Success: false,
			Message: errors.GetMessage(err),
			Alerts:  []*models.AlertPayload{},
		})
		return
	}

	logrus.Infof("向会话 %s 发送 %d 条历史警报", s.ID, len(alerts))
	s.ack(MessageTypeAlerts, &AlertListPayload{
		Success: true,
		Alerts:  alerts,
		Count:   len(alerts),
	})
}

// handleHeartbeat 处理心跳，原样回显客户端时间戳
func (s *Session) handleHeartbeat(msg Message) {
	s.touch()

	var hb HeartbeatPayload
	_ = json.Unmarshal(msg.Data, &hb)

	s.ack(MessageTypeHeartbeatResponse, &HeartbeatResponsePayload{
		Received:   hb.Timestamp,
		ServerTime: time.Now().UTC().Format(time.RFC3339),
	})
}

// handlePing 处理ping消息
func (s *Session) handlePing() {
	s.touch()
	data, _ := json.Marshal(&Message{Type: MessageTypePong, Timestamp: time.Now().Unix()})
	s.deliver(data)
}

// ack 发送响应消息
func (s *Session) ack(msgType string, payload interface{}) {
	data, err := Envelope(msgType, payload)
	if err != nil {
		logrus.Errorf("会话 %s 响应序列化失败: %v", s.ID, err)
		return
	}
	if !s.deliver(data) {
		logrus.Warnf("会话 %s 发送缓冲区已满", s.ID)
	}
}

// sendError 发送协议错误消息，连接保持打开
func (s *Session) sendError(message string) {
	s.ack(MessageTypeError, &ErrorPayload{Message: message})
}

// deliver 非阻塞投递，会话已关闭或缓冲区满时返回false
func (s *Session) deliver(data []byte) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.isAlive {
		return false
	}
	select {
	case s.Send <- data:
		return true
	default:
		return false
	}
}

// closeSend 标记会话死亡并关闭发送通道，只能由Hub注销流程调用
func (s *Session) closeSend() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isAlive {
		return
	}
	s.isAlive = false
	s.state = StateClosed
	close(s.Send)
}

// Alive 返回会话是否存活
func (s *Session) Alive() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isAlive
}

// State 返回当前会话状态
func (s *Session) State() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Session) setState(state string) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastPingAt = time.Now()
	s.mu.Unlock()
}

func (s *Session) lastPing() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastPingAt
}

// CloseReason 返回断开原因
func (s *Session) CloseReason() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closeReason == "" {
		return "transport closed"
	}
	return s.closeReason
}

func (s *Session) setCloseReason(reason string) {
	s.mu.Lock()
	if s.closeReason == "" {
		s.closeReason = reason
	}
	s.mu.Unlock()
}
