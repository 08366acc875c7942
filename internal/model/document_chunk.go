package model

import (
	"time"

	"github.com/pgvector/pgvector-go"
)

// EmbeddingDim is the width of the vector column. It must match the embedding
// model configured for ingestion; repositories reject vectors of any other size.
const EmbeddingDim = 384

type DocumentChunk struct {
	ID             uint             `gorm:"primaryKey" json:"id"`
	DocumentID     uint             `gorm:"not null;index" json:"document_id"`
	UserID         uint             `gorm:"not null;index" json:"user_id"`
	ConversationID uint             `gorm:"not null;index" json:"conversation_id"`
	ChunkIndex     int              `gorm:"not null" json:"chunk_index"`
	Content        string           `gorm:"type:text;not null" json:"content"`
	Embedding      *pgvector.Vector `gorm:"type:vector(384)" json:"-"`
	Filename       string           `gorm:"size:256" json:"filename"`
	FileType       string           `gorm:"size:64" json:"file_type"`
	CreatedAt      time.Time        `json:"created_at"`
}
