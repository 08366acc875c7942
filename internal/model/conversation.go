package model

import "time"

type Conversation struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	UserID     uint      `gorm:"not null;index" json:"user_id"`
	Title      string    `gorm:"size:256;not null" json:"title"`
	ModelMode  string    `gorm:"size:32;not null;default:normal" json:"model_mode"`
	IsArchived bool      `gorm:"not null;default:false" json:"is_archived"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
