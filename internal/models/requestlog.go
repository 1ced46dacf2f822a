package models

import "time"

// Represents a logged broker request
type RequestLog struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	Timestamp      time.Time `gorm:"index" json:"timestamp"`
	ClientID       string    `gorm:"index;size:64" json:"client_id,omitempty"`
	Tier           string    `json:"tier,omitempty"`
	Method         string    `json:"method"`
	Path           string    `gorm:"index" json:"path"`
	StatusCode     int       `gorm:"index" json:"status_code"`
	ResponseTimeMs int       `json:"response_time_ms"`
	IPAddress      string    `json:"ip_address"`
	UserAgent      string    `json:"user_agent"`
	ErrorCode      string    `json:"error_code,omitempty"`
}

func (RequestLog) TableName() string {
	return "request_logs"
}
