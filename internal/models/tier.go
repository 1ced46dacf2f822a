package models

import "time"

const (
	TierFree    = "free"
	TierPremium = "premium"
)

// TierRecord maps a client to its subscription tier. One active record per
// client, mutated only by an explicit upgrade and never downgraded.
type TierRecord struct {
	ClientID    string `gorm:"primaryKey;size:64" json:"client_id"`
	TierKind    string `gorm:"not null;default:'free'" json:"tier_kind"`
	HourlyQuota int    `gorm:"not null" json:"hourly_quota"`

	// Reserved for admission ordering under upstream scarcity. Nothing reads it yet.
	Priority int `gorm:"not null" json:"priority"`

	OwnerEmail string    `json:"owner_email,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (TierRecord) TableName() string {
	return "tier_records"
}

func (t *TierRecord) IsPremium() bool {
	return t.TierKind == TierPremium
}
