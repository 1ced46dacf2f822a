package models

import "time"

// ClientIdentity is the durable opaque identifier issued to each caller.
// Created once, immutable for the caller's lifetime.
type ClientIdentity struct {
	ID        string    `gorm:"primaryKey;size:64" json:"id"`
	CreatedAt time.Time `json:"created_at"`
}

func (ClientIdentity) TableName() string {
	return "client_identities"
}
