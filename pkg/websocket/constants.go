package websocket

// WebSocket消息类型常量
const (
	// 客户端上行
	MessageTypeSOSAlert  = "sos_alert"
	MessageTypeGetAlerts = "get_alerts"
	MessageTypeHeartbeat = "heartbeat"
	MessageTypePing      = "ping"

	// 服务端下行
	MessageTypeConnected         = "connected"
	MessageTypeSOSAlertAck       = "sos_alert_ack"
	MessageTypeAlerts            = "alerts"
	MessageTypeAlertBroadcast    = "sos_alert_broadcast"
	MessageTypeHeartbeatResponse = "heartbeat_response"
	MessageTypePong              = "pong"
	MessageTypeError             = "error"

	// 会话状态
	StateConnecting = "connecting"
	StateActive     = "active"
	StateClosed     = "closed"

	// 默认配置值
	DefaultMaxConnections    = 1000
	DefaultHeartbeatInterval = 25
	DefaultConnectionTimeout = 60
	DefaultMessageBufferSize = 256
	DefaultReadBufferSize    = 1024
	DefaultWriteBufferSize   = 1024
	DefaultMaxMessageSize    = 1 << 20 // 1MB

	// 环境变量配置键
	EnvWebSocketMaxConnections    = "WEBSOCKET_MAX_CONNECTIONS"
	EnvWebSocketHeartbeatInterval = "WEBSOCKET_HEARTBEAT_INTERVAL"
	EnvWebSocketConnectionTimeout = "WEBSOCKET_CONNECTION_TIMEOUT"
	EnvWebSocketMessageBufferSize = "WEBSOCKET_MESSAGE_BUFFER_SIZE"
	EnvWebSocketReadBufferSize    = "WEBSOCKET_READ_BUFFER_SIZE"
	EnvWebSocketWriteBufferSize   = "WEBSOCKET_WRITE_BUFFER_SIZE"
	EnvWebSocketMaxMessageSize    = "WEBSOCKET_MAX_MESSAGE_SIZE"
	EnvWebSocketEnableCompression = "WEBSOCKET_ENABLE_COMPRESSION"

	// 路由路径
	RouteWebSocket = "/ws"

	// 欢迎语
	MsgConnectionEstablished = "Connected to SOS Alert Server"
)
