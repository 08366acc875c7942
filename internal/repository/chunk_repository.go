package repository

import (
	"fmt"

	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"pharmgpt/internal/model"
)

type ChunkRepository struct {
	db *gorm.DB
}

// ScoredChunk is a retrieval hit: the chunk plus its cosine similarity to the
// query vector (1 = identical direction).
type ScoredChunk struct {
	model.DocumentChunk
	Similarity float32 `json:"similarity"`
}

func NewChunkRepository(db *gorm.DB) *ChunkRepository {
	return &ChunkRepository{db: db}
}

func (r *ChunkRepository) CreateBatch(chunks []model.DocumentChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	for i := range chunks {
		if err := validateEmbedding(chunks[i].Embedding); err != nil {
			return fmt.Errorf("chunk %d: %w", chunks[i].ChunkIndex, err)
		}
	}
	if err := r.db.CreateInBatches(&chunks, 200).Error; err != nil {
		return fmt.Errorf("create chunks batch failed: %w", err)
	}
	return nil
}

// SearchByConversation returns the top-k nearest chunks by cosine distance,
// scoped to one (user, conversation).
func (r *ChunkRepository) SearchByConversation(userID, conversationID uint, embedding []float32, limit int) ([]ScoredChunk, error) {
	if limit <= 0 {
		return []ScoredChunk{}, nil
	}
	vec := pgvector.NewVector(embedding)
	if err := validateEmbedding(&vec); err != nil {
		return nil, err
	}

	var hits []ScoredChunk
	err := r.db.Model(&model.DocumentChunk{}).
		Select("*, 1 - (embedding <=> ?) AS similarity", vec).
		Where("user_id = ? AND conversation_id = ? AND embedding IS NOT NULL", userID, conversationID).
		Order(clause.Expr{SQL: "embedding <=> ?", Vars: []interface{}{vec}}).
		Limit(limit).
		Find(&hits).Error
	if err != nil {
		return nil, fmt.Errorf("search chunks by conversation failed: %w", err)
	}
	return hits, nil
}

// SearchByUser searches across every conversation the user owns.
func (r *ChunkRepository) SearchByUser(userID uint, embedding []float32, limit int) ([]ScoredChunk, error) {
	if limit <= 0 {
		return []ScoredChunk{}, nil
	}
	vec := pgvector.NewVector(embedding)
	if err := validateEmbedding(&vec); err != nil {
		return nil, err
	}

	var hits []ScoredChunk
	err := r.db.Model(&model.DocumentChunk{}).
		Select("*, 1 - (embedding <=> ?) AS similarity", vec).
		Where("user_id = ? AND embedding IS NOT NULL", userID).
		Order(clause.Expr{SQL: "embedding <=> ?", Vars: []interface{}{vec}}).
		Limit(limit).
		Find(&hits).Error
	if err != nil {
		return nil, fmt.Errorf("search chunks by user failed: %w", err)
	}
	return hits, nil
}

func (r *ChunkRepository) DeleteByDocumentID(documentID uint) error {
	if err := r.db.Where("document_id = ?", documentID).Delete(&model.DocumentChunk{}).Error; err != nil {
		return fmt.Errorf("delete chunks by document failed: %w", err)
	}
	return nil
}

func (r *ChunkRepository) DeleteByConversation(userID, conversationID uint) error {
	if err := r.db.Where("user_id = ? AND conversation_id = ?", userID, conversationID).
		Delete(&model.DocumentChunk{}).Error; err != nil {
		return fmt.Errorf("delete chunks by conversation failed: %w", err)
	}
	return nil
}

func (r *ChunkRepository) CountByDocumentID(documentID uint) (int64, error) {
	var count int64
	if err := r.db.Model(&model.DocumentChunk{}).
		Where("document_id = ?", documentID).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count chunks failed: %w", err)
	}
	return count, nil
}

func validateEmbedding(vec *pgvector.Vector) error {
	if vec == nil {
		return fmt.Errorf("embedding vector is nil")
	}
	if got := len(vec.Slice()); got != model.EmbeddingDim {
		return fmt.Errorf("embedding dimension mismatch: got %d, want %d", got, model.EmbeddingDim)
	}
	return nil
}
