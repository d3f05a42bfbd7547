package store

import (
	"encoding/json"
	"sync"
	"time"

	"HibiscusSOS/internal/models"
	"HibiscusSOS/pkg/errors"
	"HibiscusSOS/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store 持久层，负责警报表与运行事件表的全部读写
// 写操作串行执行，读操作可并发
type Store struct {
	db *gorm.DB
	mu sync.Mutex // 串行化写入
}

// NewStore 创建Store并迁移表结构
func NewStore(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&models.SOSAlert{}, &models.ServerEvent{}); err != nil {
		return nil, errors.Wrap(err, errors.CodeStore, "migrate tables failed")
	}
	return &Store{db: db}, nil
}

// PutAlert 按ID插入或覆盖警报记录，created_at 首次写入后不再变更
func (s *Store) PutAlert(payload *models.AlertPayload) error {
	record := payload.ToModel()

	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"timestamp", "alert_type", "message",
			"user_name", "user_phone", "user_email",
			"latitude", "longitude", "location_accuracy",
			"altitude", "heading", "speed", "location_timestamp",
			"device_platform", "device_version", "additional_data",
		}),
	}).Create(record).Error
	if err != nil {
		return errors.Wrapf(err, errors.CodeStore, "store alert %s failed", payload.ID)
	}
	return nil
}

// ListAlerts 返回全部警报快照，按入库时间倒序
func (s *Store) ListAlerts() ([]*models.AlertPayload, error) {
	var records []models.SOSAlert
	if err := s.db.Order("created_at DESC, id DESC").Find(&records).Error; err != nil {
		return nil, errors.Wrap(err, errors.CodeStore, "list alerts failed")
	}

	alerts := make([]*models.AlertPayload, 0, len(records))
	for i := range records {
		alerts = append(alerts, records[i].ToPayload())
	}
	return alerts, nil
}

// ClearAlerts 删除所有警报记录，不影响运行事件表
func (s *Store) ClearAlerts() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.db.Where("1 = 1").Delete(&models.SOSAlert{}).Error; err != nil {
		return errors.Wrap(err, errors.CodeStore, "clear alerts failed")
	}
	return nil
}

// AppendEvent 追加运行事件，失败只记日志不向调用方传播
// 审计写入不能阻塞警报主链路
func (s *Store) AppendEvent(eventType string, details map[string]interface{}) {
	raw, err := json.Marshal(details)
	if err != nil {
		logger.Warn("marshal event details failed", zap.String("event", eventType), zap.Error(err))
		raw = []byte("{}")
	}

	event := &models.ServerEvent{
		EventType: eventType,
		Details:   string(raw),
		Timestamp: time.Now(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.db.Create(event).Error; err != nil {
		logger.Warn("append server event failed", zap.String("event", eventType), zap.Error(err))
	}
}

// AggregateStats 按事件类型聚合计数，按最近发生时间倒序
func (s *Store) AggregateStats() ([]models.EventStat, error) {
	var stats []models.EventStat
	err := s.db.Model(&models.ServerEvent{}).
		Select("event_type AS event_type, COUNT(*) AS count, MAX(timestamp) AS last_occurrence").
		Group("event_type").
		Order("last_occurrence DESC").
		Scan(&stats).Error
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeStore, "aggregate stats failed")
	}
	return stats, nil
}

// DB 返回底层连接，健康检查使用
func (s *Store) DB() *gorm.DB {
	return s.db
}
