package model

import "time"

// Session is an authentication session. The token ID travels inside the JWT;
// the row is the source of truth for expiry and revocation.
type Session struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	TokenID   string    `gorm:"size:64;not null;uniqueIndex" json:"token_id"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	ExpiresAt time.Time `gorm:"not null" json:"expires_at"`
	IsActive  bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}
