package models

import "time"

// UsageWindow counts a client's admitted calls inside the current fixed hour.
// WindowStart is floored to the hour; rollover is detected lazily on the next
// quota check rather than by a background timer.
type UsageWindow struct {
	ClientID    string    `gorm:"primaryKey;size:64" json:"client_id"`
	WindowStart time.Time `gorm:"not null" json:"window_start"`
	Count       int       `gorm:"not null;default:0" json:"count"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (UsageWindow) TableName() string {
	return "usage_windows"
}
