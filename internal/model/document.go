package model

import "time"

// Document is the per-upload metadata record. Chunk content and embeddings
// live in DocumentChunk; ContentPreview keeps the first part of the extracted
// text for listings.
type Document struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	UserID         uint      `gorm:"not null;index" json:"user_id"`
	ConversationID uint      `gorm:"not null;index" json:"conversation_id"`
	Filename       string    `gorm:"size:256;not null" json:"filename"`
	ContentHash    string    `gorm:"size:64;not null;index" json:"content_hash"`
	FileType       string    `gorm:"size:64;not null" json:"file_type"`
	FileSize       int64     `gorm:"not null" json:"file_size"`
	ContentPreview string    `gorm:"type:text" json:"-"`
	ChunkCount     int       `gorm:"not null" json:"chunk_count"`
	IsProcessed    bool      `gorm:"not null;default:false" json:"is_processed"`
	CreatedAt      time.Time `json:"created_at"`
}
