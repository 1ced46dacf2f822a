package models

import "time"

// CredentialRecord is the short-lived secret shared by every client of a tier.
// At most one live record exists per tier; Version increments on each
// successful renewal and backs the compare-and-swap during concurrent refresh.
type CredentialRecord struct {
	TierKind  string    `gorm:"primaryKey;size:32" json:"tier_kind"`
	Value     string    `gorm:"not null" json:"-"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
	Version   int64     `gorm:"not null;default:0" json:"version"`
}

func (CredentialRecord) TableName() string {
	return "credential_records"
}

// Usable reports whether the credential is still safe to hand out, keeping a
// lead time of margin before actual expiry to avoid racing it mid-call.
func (c *CredentialRecord) Usable(now time.Time, margin time.Duration) bool {
	return now.Before(c.ExpiresAt.Add(-margin))
}
