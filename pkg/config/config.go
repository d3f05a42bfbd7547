package config

import (
	"log"
	"os"
	"path/filepath"

	"HibiscusSOS/pkg/logger"
	"HibiscusSOS/pkg/util"
)

// Config 服务全局配置，全部来自环境变量
type Config struct {
	Port     string `env:"PORT"`
	DataDir  string `env:"DATA_DIR"`
	DBDriver string `env:"DB_DRIVER"`
	DSN      string `env:"DSN"`
	Mode     string `env:"MODE"`
	Log      logger.LogConfig

	RateLimit string `env:"RATE_LIMIT"`

	BackupEnabled  bool   `env:"BACKUP_ENABLED"`
	BackupPath     string `env:"BACKUP_PATH"`
	BackupSchedule string `env:"BACKUP_SCHEDULE"`
}

var GlobalConfig *Config

// Load 加载配置
func Load() error {
	// 1. 根据环境加载 .env 文件
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development" // 默认使用开发环境
	}
	if err := util.LoadEnv(env); err != nil {
		log.Printf("Failed to load .env file: %v", err)
	}

	// 2. 加载全局配置
	GlobalConfig = &Config{
		Port:     util.GetEnv("PORT", "3000"),
		DataDir:  util.GetEnv("DATA_DIR", "data"),
		DBDriver: util.GetEnv("DB_DRIVER", "sqlite"),
		DSN:      util.GetEnv("DSN"),
		Mode:     util.GetEnv("MODE"),
		Log: logger.LogConfig{
			Level:      util.GetEnv("LOG_LEVEL"),
			Filename:   util.GetEnv("LOG_FILENAME"),
			MaxSize:    int(util.GetIntEnv("LOG_MAX_SIZE")),
			MaxAge:     int(util.GetIntEnv("LOG_MAX_AGE")),
			MaxBackups: int(util.GetIntEnv("LOG_MAX_BACKUPS")),
		},
		RateLimit:      util.GetEnv("RATE_LIMIT"),
		BackupEnabled:  util.GetBoolEnv("BACKUP_ENABLED"),
		BackupPath:     util.GetEnv("BACKUP_PATH", "backups"),
		BackupSchedule: util.GetEnv("BACKUP_SCHEDULE", "0 3 * * *"),
	}

	// SQLite 默认落在数据目录下的单文件
	if GlobalConfig.DBDriver == "sqlite" && GlobalConfig.DSN == "" {
		GlobalConfig.DSN = filepath.Join(GlobalConfig.DataDir, "sos_alerts.db")
	}

	return nil
}
