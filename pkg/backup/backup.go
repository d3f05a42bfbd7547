package backup

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"HibiscusSOS/pkg/config"
	"HibiscusSOS/pkg/logger"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// StartBackupScheduler 启动备份调度器，返回cron实例供优雅关停
func StartBackupScheduler() (*cron.Cron, error) {
	c := cron.New()

	schedule := config.GlobalConfig.BackupSchedule
	_, err := c.AddFunc(schedule, func() {
		if err := ExecuteBackup(); err != nil {
			logger.Warn("backup failed", zap.Error(err))
		} else {
			logger.Info("backup completed")
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid backup schedule %q: %w", schedule, err)
	}

	c.Start()
	return c, nil
}

// ExecuteBackup 将SQLite数据文件复制到备份目录
func ExecuteBackup() error {
	if config.GlobalConfig.DBDriver != "sqlite" {
		return fmt.Errorf("backup only supports sqlite, got %s", config.GlobalConfig.DBDriver)
	}

	dst := filepath.Join(config.GlobalConfig.BackupPath,
		fmt.Sprintf("sos_backup_%s.db", time.Now().Format("20060102_150405")))
	return copyDatabaseFile(config.GlobalConfig.DSN, dst)
}

// copyDatabaseFile 复制数据库文件，目标目录不存在时创建
func copyDatabaseFile(src, dst string) error {
	backupDir := filepath.Dir(dst)
	if _, err := os.Stat(backupDir); os.IsNotExist(err) {
		if err := os.MkdirAll(backupDir, os.ModePerm); err != nil {
			return fmt.Errorf("failed to create backup directory: %v", err)
		}
	}

	sourceFile, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("error opening source file: %v", err)
	}
	defer sourceFile.Close()

	destFile, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("error creating destination file: %v", err)
	}
	defer destFile.Close()

	if _, err := io.Copy(destFile, sourceFile); err != nil {
		return fmt.Errorf("error copying data: %v", err)
	}

	logger.Info("sqlite database backup completed", zap.String("dst", dst))
	return nil
}
