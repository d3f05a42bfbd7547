package models

import (
	"encoding/json"
	"time"
)

// SOS Alert（求助警报）的持久化记录
// 移动端上报的嵌套结构在入库时被拍平为列，读取时再还原
type SOSAlert struct {
	ID                string `gorm:"primaryKey"`
	Timestamp         string `gorm:"not null"` // 客户端上报的事件时间，服务端不校验
	AlertType         string `gorm:"not null"` // "medical" "fire" "general" 等分类标签
	Message           string
	UserName          string
	UserPhone         string
	UserEmail         string
	Latitude          *float64
	Longitude         *float64
	LocationAccuracy  *float64
	Altitude          *float64
	Heading           *float64
	Speed             *float64
	LocationTimestamp string
	DevicePlatform    string
	DeviceVersion     string
	AdditionalData    string    // JSON 字符串
	CreatedAt         time.Time // 服务端入库时间
}

func (SOSAlert) TableName() string {
	return "sos_alerts"
}

// AlertUser 求助人信息
type AlertUser struct {
	Name  string `json:"name,omitempty"`
	Phone string `json:"phone,omitempty"`
	Email string `json:"email,omitempty"`
}

// AlertLocation 求助位置，latitude 为空视为无位置信息
type AlertLocation struct {
	Latitude  float64  `json:"latitude"`
	Longitude float64  `json:"longitude"`
	Accuracy  *float64 `json:"accuracy,omitempty"`
	Altitude  *float64 `json:"altitude,omitempty"`
	Heading   *float64 `json:"heading,omitempty"`
	Speed     *float64 `json:"speed,omitempty"`
	Timestamp string   `json:"timestamp,omitempty"`
}

// AlertDevice 上报设备信息
type AlertDevice struct {
	Platform string `json:"platform,omitempty"`
	Version  string `json:"version,omitempty"`
}

// AlertPayload SOS警报的传输结构（WebSocket与HTTP共用）
type AlertPayload struct {
	ID             string                 `json:"id"`
	Timestamp      string                 `json:"timestamp"`
	AlertType      string                 `json:"alertType"`
	Message        string                 `json:"message,omitempty"`
	User           *AlertUser             `json:"user,omitempty"`
	Location       *AlertLocation         `json:"location,omitempty"`
	Device         *AlertDevice           `json:"device,omitempty"`
	AdditionalData map[string]interface{} `json:"additionalData,omitempty"`
	StoredAt       string                 `json:"storedAt,omitempty"`
}

// ToModel 将传输结构拍平为数据库记录
func (p *AlertPayload) ToModel() *SOSAlert {
	record := &SOSAlert{
		ID:        p.ID,
		Timestamp: p.Timestamp,
		AlertType: p.AlertType,
		Message:   p.Message,
	}

	if p.User != nil {
		record.UserName = p.User.Name
		record.UserPhone = p.User.Phone
		record.UserEmail = p.User.Email
	}

	if p.Location != nil {
		lat, lng := p.Location.Latitude, p.Location.Longitude
		record.Latitude = &lat
		record.Longitude = &lng
		record.LocationAccuracy = p.Location.Accuracy
		record.Altitude = p.Location.Altitude
		record.Heading = p.Location.Heading
		record.Speed = p.Location.Speed
		record.LocationTimestamp = p.Location.Timestamp
	}

	if p.Device != nil {
		record.DevicePlatform = p.Device.Platform
		record.DeviceVersion = p.Device.Version
	}

	data := p.AdditionalData
	if data == nil {
		data = map[string]interface{}{}
	}
	if raw, err := json.Marshal(data); err == nil {
		record.AdditionalData = string(raw)
	} else {
		record.AdditionalData = "{}"
	}

	return record
}

// ToPayload 将数据库记录还原为传输结构
// location 仅在 latitude 非空时还原，与入库规则对称
func (a *SOSAlert) ToPayload() *AlertPayload {
	payload := &AlertPayload{
		ID:        a.ID,
		Timestamp: a.Timestamp,
		AlertType: a.AlertType,
		Message:   a.Message,
		StoredAt:  a.CreatedAt.UTC().Format(time.RFC3339),
	}

	if a.UserName != "" || a.UserPhone != "" || a.UserEmail != "" {
		payload.User = &AlertUser{
			Name:  a.UserName,
			Phone: a.UserPhone,
			Email: a.UserEmail,
		}
	}

	if a.Latitude != nil {
		loc := &AlertLocation{
			Latitude:  *a.Latitude,
			Accuracy:  a.LocationAccuracy,
			Altitude:  a.Altitude,
			Heading:   a.Heading,
			Speed:     a.Speed,
			Timestamp: a.LocationTimestamp,
		}
		if a.Longitude != nil {
			loc.Longitude = *a.Longitude
		}
		payload.Location = loc
	}

	if a.DevicePlatform != "" || a.DeviceVersion != "" {
		payload.Device = &AlertDevice{
			Platform: a.DevicePlatform,
			Version:  a.DeviceVersion,
		}
	}

	payload.AdditionalData = map[string]interface{}{}
	if a.AdditionalData != "" {
		_ = json.Unmarshal([]byte(a.AdditionalData), &payload.AdditionalData)
	}

	return payload
}
