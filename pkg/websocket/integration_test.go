package websocket_test

import (
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"HibiscusSOS/internal/relay"
	"HibiscusSOS/internal/store"
	"HibiscusSOS/pkg/util"
	ws "HibiscusSOS/pkg/websocket"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testServer 起一个接近生产装配的完整服务端
func newTestServer(t *testing.T) (*httptest.Server, *ws.Hub, *store.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	// 每个测试独立的共享缓存内存库，避免连接池拿到不同的空库
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := util.OpenDatabase("sqlite", dsn)
	require.NoError(t, err)

	eventStore, err := store.NewStore(db)
	require.NoError(t, err)

	hub := ws.NewHub(ws.DefaultConfig(), eventStore)
	hub.SetRouter(relay.NewRouter(eventStore, hub))

	r := gin.New()
	ws.RegisterRoutes(r, ws.NewHandler(hub))

	server := httptest.NewServer(r)
	t.Cleanup(func() {
		hub.Close()
		server.Close()
	})
	return server, hub, eventStore
}

func dial(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + ws.RouteWebSocket
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) *ws.Message {
	t.Helper()

	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg ws.Message
	require.NoError(t, json.Unmarshal(raw, &msg))
	return &msg
}

// readWelcome 消费欢迎消息并返回服务端分配的会话ID
func readWelcome(t *testing.T, conn *websocket.Conn) string {
	t.Helper()

	msg := readMessage(t, conn)
	require.Equal(t, ws.MessageTypeConnected, msg.Type)

	var welcome ws.WelcomePayload
	require.NoError(t, json.Unmarshal(msg.Data, &welcome))
	assert.Equal(t, ws.MsgConnectionEstablished, welcome.Message)
	require.NotEmpty(t, welcome.ServerID)
	return welcome.ServerID
}

func sendMessage(t *testing.T, conn *websocket.Conn, msgType string, data interface{}) {
	t.Helper()

	raw, err := json.Marshal(data)
	require.NoError(t, err)
	payload, err := json.Marshal(&ws.Message{Type: msgType, Data: raw})
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, payload))
}

func TestAlertRelayEndToEnd(t *testing.T) {
	server, hub, eventStore := newTestServer(t)

	sender := dial(t, server)
	receiver := dial(t, server)

	senderID := readWelcome(t, sender)
	readWelcome(t, receiver)

	assert.Eventually(t, func() bool { return hub.Count() == 2 },
		2*time.Second, 20*time.Millisecond)

	sendMessage(t, sender, ws.MessageTypeSOSAlert, map[string]interface{}{
		"id":        "alert-001",
		"timestamp": "2026-09-01T10:00:00Z",
		"alertType": "medical",
		"message":   "need help",
		"location":  map[string]float64{"latitude": 31.23, "longitude": 121.47},
	})

	// 提交方收到确认
	ack := readMessage(t, sender)
	require.Equal(t, ws.MessageTypeSOSAlertAck, ack.Type)
	var ackPayload ws.AlertAckPayload
	require.NoError(t, json.Unmarshal(ack.Data, &ackPayload))
	assert.True(t, ackPayload.Success)
	assert.Equal(t, "alert-001", ackPayload.AlertID)
	require.NotNil(t, ackPayload.ClientsNotified)
	assert.Equal(t, 1, *ackPayload.ClientsNotified)

	// 其他客户端收到广播，提交方不收
	broadcast := readMessage(t, receiver)
	require.Equal(t, ws.MessageTypeAlertBroadcast, broadcast.Type)

	var relayed struct {
		ID         string `json:"id"`
		AlertType  string `json:"alertType"`
		ReceivedAt string `json:"receivedAt"`
		FromClient string `json:"fromClient"`
	}
	require.NoError(t, json.Unmarshal(broadcast.Data, &relayed))
	assert.Equal(t, "alert-001", relayed.ID)
	assert.Equal(t, "medical", relayed.AlertType)
	assert.NotEmpty(t, relayed.ReceivedAt)
	assert.Equal(t, senderID, relayed.FromClient)

	// 警报已落库
	alerts, err := eventStore.ListAlerts()
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, "alert-001", alerts[0].ID)
	require.NotNil(t, alerts[0].Location)
	assert.InDelta(t, 31.23, alerts[0].Location.Latitude, 0.0001)
}

func TestAlertRelayNoReceivers(t *testing.T) {
	server, _, _ := newTestServer(t)

	sender := dial(t, server)
	readWelcome(t, sender)

	sendMessage(t, sender, ws.MessageTypeSOSAlert, map[string]interface{}{
		"id":        "alert-solo",
		"timestamp": "2026-09-01T10:00:00Z",
		"alertType": "fire",
	})

	ack := readMessage(t, sender)
	require.Equal(t, ws.MessageTypeSOSAlertAck, ack.Type)
	var ackPayload ws.AlertAckPayload
	require.NoError(t, json.Unmarshal(ack.Data, &ackPayload))
	assert.True(t, ackPayload.Success)
	require.NotNil(t, ackPayload.ClientsNotified)
	assert.Equal(t, 0, *ackPayload.ClientsNotified)
}

func TestAlertValidationOverWire(t *testing.T) {
	server, _, eventStore := newTestServer(t)

	conn := dial(t, server)
	readWelcome(t, conn)

	sendMessage(t, conn, ws.MessageTypeSOSAlert, map[string]string{
		"message": "missing everything",
	})

	ack := readMessage(t, conn)
	require.Equal(t, ws.MessageTypeSOSAlertAck, ack.Type)
	var ackPayload ws.AlertAckPayload
	require.NoError(t, json.Unmarshal(ack.Data, &ackPayload))
	assert.False(t, ackPayload.Success)
	assert.Equal(t, "Missing required fields: id, alertType, timestamp", ackPayload.Message)

	// 被拒绝的警报不落库
	alerts, err := eventStore.ListAlerts()
	require.NoError(t, err)
	assert.Empty(t, alerts)
}

func TestGetAlertsOverWire(t *testing.T) {
	server, _, _ := newTestServer(t)

	conn := dial(t, server)
	readWelcome(t, conn)

	sendMessage(t, conn, ws.MessageTypeSOSAlert, map[string]interface{}{
		"id":        "alert-h1",
		"timestamp": "2026-09-01T09:00:00Z",
		"alertType": "accident",
	})
	readMessage(t, conn) // ack

	sendMessage(t, conn, ws.MessageTypeGetAlerts, nil)

	msg := readMessage(t, conn)
	require.Equal(t, ws.MessageTypeAlerts, msg.Type)

	var list ws.AlertListPayload
	require.NoError(t, json.Unmarshal(msg.Data, &list))
	assert.True(t, list.Success)
	assert.Equal(t, 1, list.Count)
	require.Len(t, list.Alerts, 1)
	assert.Equal(t, "alert-h1", list.Alerts[0].ID)
	assert.NotEmpty(t, list.Alerts[0].StoredAt)
}

func TestHeartbeatOverWire(t *testing.T) {
	server, _, _ := newTestServer(t)

	conn := dial(t, server)
	readWelcome(t, conn)

	sendMessage(t, conn, ws.MessageTypeHeartbeat, map[string]string{
		"timestamp": "2026-09-01T12:00:00Z",
	})

	msg := readMessage(t, conn)
	require.Equal(t, ws.MessageTypeHeartbeatResponse, msg.Type)

	var hb ws.HeartbeatResponsePayload
	require.NoError(t, json.Unmarshal(msg.Data, &hb))
	assert.Equal(t, "2026-09-01T12:00:00Z", hb.Received)
	assert.NotEmpty(t, hb.ServerTime)
}

func TestUnknownTypeKeepsConnectionOpen(t *testing.T) {
	server, _, _ := newTestServer(t)

	conn := dial(t, server)
	readWelcome(t, conn)

	sendMessage(t, conn, "time_travel", nil)

	msg := readMessage(t, conn)
	require.Equal(t, ws.MessageTypeError, msg.Type)
	var errPayload ws.ErrorPayload
	require.NoError(t, json.Unmarshal(msg.Data, &errPayload))
	assert.Contains(t, errPayload.Message, "time_travel")

	// 同一连接继续可用
	sendMessage(t, conn, ws.MessageTypeHeartbeat, map[string]string{"timestamp": "t1"})
	msg = readMessage(t, conn)
	assert.Equal(t, ws.MessageTypeHeartbeatResponse, msg.Type)
}

func TestDisconnectShrinksFanout(t *testing.T) {
	server, hub, _ := newTestServer(t)

	sender := dial(t, server)
	receiver := dial(t, server)
	readWelcome(t, sender)
	readWelcome(t, receiver)

	assert.Eventually(t, func() bool { return hub.Count() == 2 },
		2*time.Second, 20*time.Millisecond)

	receiver.Close()
	assert.Eventually(t, func() bool { return hub.Count() == 1 },
		2*time.Second, 20*time.Millisecond)

	sendMessage(t, sender, ws.MessageTypeSOSAlert, map[string]interface{}{
		"id":        "alert-after-leave",
		"timestamp": "2026-09-01T11:00:00Z",
		"alertType": "flood",
	})

	ack := readMessage(t, sender)
	var ackPayload ws.AlertAckPayload
	require.NoError(t, json.Unmarshal(ack.Data, &ackPayload))
	assert.True(t, ackPayload.Success)
	require.NotNil(t, ackPayload.ClientsNotified)
	assert.Equal(t, 0, *ackPayload.ClientsNotified)
}
