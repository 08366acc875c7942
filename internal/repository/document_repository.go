package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"pharmgpt/internal/model"
)

type DocumentRepository struct {
	db *gorm.DB
}

func NewDocumentRepository(db *gorm.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

func (r *DocumentRepository) Create(doc *model.Document) error {
	if err := r.db.Create(doc).Error; err != nil {
		return fmt.Errorf("create document failed: %w", err)
	}
	return nil
}

func (r *DocumentRepository) ListByConversation(userID, conversationID uint) ([]model.Document, error) {
	var docs []model.Document
	if err := r.db.Where("user_id = ? AND conversation_id = ?", userID, conversationID).
		Order("created_at DESC").
		Find(&docs).Error; err != nil {
		return nil, fmt.Errorf("list documents by conversation failed: %w", err)
	}
	return docs, nil
}

func (r *DocumentRepository) ListByUserID(userID uint, limit int) ([]model.Document, error) {
	if limit <= 0 || limit > 200 {
		limit = 100
	}
	var docs []model.Document
	if err := r.db.Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&docs).Error; err != nil {
		return nil, fmt.Errorf("list documents failed: %w", err)
	}
	return docs, nil
}

func (r *DocumentRepository) GetByIDAndUserID(id, userID uint) (*model.Document, error) {
	var doc model.Document
	if err := r.db.Where("id = ? AND user_id = ?", id, userID).First(&doc).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get document failed: %w", err)
	}
	return &doc, nil
}

// GetByHash looks up a document by content hash inside one conversation, which
// is the duplicate-detection scope.
func (r *DocumentRepository) GetByHash(userID, conversationID uint, contentHash string) (*model.Document, error) {
	var doc model.Document
	err := r.db.
		Where("user_id = ? AND conversation_id = ? AND content_hash = ?", userID, conversationID, contentHash).
		First(&doc).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get document by hash failed: %w", err)
	}
	return &doc, nil
}

func (r *DocumentRepository) SetProcessed(id uint, chunkCount int) error {
	updates := map[string]interface{}{
		"is_processed": true,
		"chunk_count":  chunkCount,
	}
	if err := r.db.Model(&model.Document{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return fmt.Errorf("set document processed failed: %w", err)
	}
	return nil
}

func (r *DocumentRepository) DeleteByIDAndUserID(id, userID uint) error {
	if err := r.db.Where("id = ? AND user_id = ?", id, userID).Delete(&model.Document{}).Error; err != nil {
		return fmt.Errorf("delete document failed: %w", err)
	}
	return nil
}

func (r *DocumentRepository) DeleteByConversation(userID, conversationID uint) error {
	if err := r.db.Where("user_id = ? AND conversation_id = ?", userID, conversationID).
		Delete(&model.Document{}).Error; err != nil {
		return fmt.Errorf("delete documents by conversation failed: %w", err)
	}
	return nil
}

func (r *DocumentRepository) CountByUserID(userID uint) (int64, error) {
	var count int64
	if err := r.db.Model(&model.Document{}).
		Where("user_id = ?", userID).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count documents failed: %w", err)
	}
	return count, nil
}

// FileTypeAggregate is one row of the per-file-type stats rollup.
type FileTypeAggregate struct {
	FileType  string
	Count     int64
	SizeBytes int64
	Chunks    int64
	Processed int64
}

// AggregateStats rolls up document counts, sizes, and chunk totals per file
// type. conversationID 0 aggregates across all of the user's conversations.
func (r *DocumentRepository) AggregateStats(userID, conversationID uint) ([]FileTypeAggregate, error) {
	query := r.db.Model(&model.Document{}).
		Select("file_type, COUNT(*) AS count, COALESCE(SUM(file_size), 0) AS size_bytes, "+
			"COALESCE(SUM(chunk_count), 0) AS chunks, COUNT(*) FILTER (WHERE is_processed) AS processed").
		Where("user_id = ?", userID)
	if conversationID != 0 {
		query = query.Where("conversation_id = ?", conversationID)
	}
	var rows []FileTypeAggregate
	if err := query.Group("file_type").Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("aggregate document stats failed: %w", err)
	}
	return rows, nil
}

func (r *DocumentRepository) CountByConversation(userID, conversationID uint) (int64, error) {
	var count int64
	if err := r.db.Model(&model.Document{}).
		Where("user_id = ? AND conversation_id = ?", userID, conversationID).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count documents failed: %w", err)
	}
	return count, nil
}
