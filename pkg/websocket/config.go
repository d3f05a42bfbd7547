package websocket

import (
	"fmt"
	"time"

	"HibiscusSOS/pkg/util"
)

// Config WebSocket配置
type Config struct {
	// 最大连接数
	MaxConnections int64
	// 心跳间隔
	HeartbeatInterval time.Duration
	// 连接超时时间
	ConnectionTimeout time.Duration
	// 发送缓冲区大小
	MessageBufferSize int
	// 读缓冲区大小
	ReadBufferSize int
	// 写缓冲区大小
	WriteBufferSize int
	// 最大消息大小
	MaxMessageSize int
	// 是否启用压缩
	EnableCompression bool
}

// DefaultConfig 默认配置
func DefaultConfig() *Config {
	return &Config{
		MaxConnections:    DefaultMaxConnections,
		HeartbeatInterval: DefaultHeartbeatInterval * time.Second,
		ConnectionTimeout: DefaultConnectionTimeout * time.Second,
		MessageBufferSize: DefaultMessageBufferSize,
		ReadBufferSize:    DefaultReadBufferSize,
		WriteBufferSize:   DefaultWriteBufferSize,
		MaxMessageSize:    DefaultMaxMessageSize,
		EnableCompression: false,
	}
}

// LoadConfigFromEnv 从环境变量加载WebSocket配置
func LoadConfigFromEnv() *Config {
	config := DefaultConfig()

	if maxConnections := util.GetIntEnv(EnvWebSocketMaxConnections); maxConnections > 0 {
		config.MaxConnections = maxConnections
	}

	if heartbeatInterval := util.GetIntEnv(EnvWebSocketHeartbeatInterval); heartbeatInterval > 0 {
		config.HeartbeatInterval = time.Duration(heartbeatInterval) * time.Second
	}

	if connectionTimeout := util.GetIntEnv(EnvWebSocketConnectionTimeout); connectionTimeout > 0 {
		config.ConnectionTimeout = time.Duration(connectionTimeout) * time.Second
	}

	if messageBufferSize := util.GetIntEnv(EnvWebSocketMessageBufferSize); messageBufferSize > 0 {
		config.MessageBufferSize = int(messageBufferSize)
	}

	if readBuf := util.GetIntEnv(EnvWebSocketReadBufferSize); readBuf > 0 {
		config.ReadBufferSize = int(readBuf)
	}

	if writeBuf := util.GetIntEnv(EnvWebSocketWriteBufferSize); writeBuf > 0 {
		config.WriteBufferSize = int(writeBuf)
	}

	if maxMsg := util.GetIntEnv(EnvWebSocketMaxMessageSize); maxMsg > 0 {
		config.MaxMessageSize = int(maxMsg)
	}

	if enableCompression := util.GetEnv(EnvWebSocketEnableCompression); enableCompression != "" {
		config.EnableCompression = enableCompression == "true" || enableCompression == "1"
	}

	return config
}

// ValidateConfig 验证WebSocket配置
func ValidateConfig(config *Config) error {
	if config == nil {
		return fmt.Errorf("配置不能为空")
	}

	if config.MaxConnections <= 0 {
		return fmt.Errorf("最大连接数必须大于0")
	}

	if config.HeartbeatInterval <= 0 {
		return fmt.Errorf("心跳间隔必须大于0")
	}

	if config.ConnectionTimeout <= 0 {
		return fmt.Errorf("连接超时时间必须大于0")
	}

	if config.MessageBufferSize <= 0 {
		return fmt.Errorf("消息缓冲区大小必须大于0")
	}

	if config.ReadBufferSize <= 0 || config.WriteBufferSize <= 0 {
		return fmt.Errorf("读/写缓冲区大小必须大于0")
	}

	if config.MaxMessageSize <= 0 {
		return fmt.Errorf("最大消息大小必须大于0")
	}

	// 心跳间隔应该小于连接超时时间
	if config.HeartbeatInterval >= config.ConnectionTimeout {
		return fmt.Errorf("心跳间隔必须小于连接超时时间")
	}

	return nil
}
