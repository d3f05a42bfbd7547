package models

import "time"

// 运行事件类型
const (
	EventServerStarted      = "server_started"
	EventClientConnected    = "client_connected"
	EventClientDisconnected = "client_disconnected"
	EventAlertReceived      = "sos_alert_received"
	EventSocketError        = "socket_error"
)

// ServerEvent 运行审计事件，只追加不修改
type ServerEvent struct {
	ID        uint   `gorm:"primaryKey"`
	EventType string `gorm:"not null;index"`
	Details   string // JSON 字符串
	Timestamp time.Time
}

func (ServerEvent) TableName() string {
	return "server_events"
}

// EventStat 按事件类型聚合的统计
// last_occurrence 是 MAX() 表达式结果，拿原始文本避免驱动类型转换问题
type EventStat struct {
	EventType      string `json:"eventType"`
	Count          int64  `json:"count"`
	LastOccurrence string `json:"lastOccurrence"`
}
