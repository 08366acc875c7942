package repository

import (
	"fmt"

	"gorm.io/gorm"

	"pharmgpt/internal/model"
)

type MessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

func (r *MessageRepository) Create(message *model.Message) error {
	if err := r.db.Create(message).Error; err != nil {
		return fmt.Errorf("create message failed: %w", err)
	}
	return nil
}

func (r *MessageRepository) CreateBatch(messages []model.Message) error {
	if len(messages) == 0 {
		return nil
	}
	if err := r.db.Create(&messages).Error; err != nil {
		return fmt.Errorf("create messages batch failed: %w", err)
	}
	return nil
}

func (r *MessageRepository) ListByConversationID(conversationID uint, limit int) ([]model.Message, error) {
	if limit <= 0 || limit > 500 {
		limit = 200
	}

	var messages []model.Message
	if err := r.db.Where("conversation_id = ?", conversationID).
		Order("created_at ASC").
		Limit(limit).
		Find(&messages).Error; err != nil {
		return nil, fmt.Errorf("list messages failed: %w", err)
	}
	return messages, nil
}

// ListAllByConversationID returns the complete conversation without a row
// cap, for export and duplication.
func (r *MessageRepository) ListAllByConversationID(conversationID uint) ([]model.Message, error) {
	var messages []model.Message
	if err := r.db.Where("conversation_id = ?", conversationID).
		Order("created_at ASC").
		Find(&messages).Error; err != nil {
		return nil, fmt.Errorf("list all messages failed: %w", err)
	}
	return messages, nil
}

// ListRecentByConversationID returns the most recent n messages in
// chronological order, for prompt context building.
func (r *MessageRepository) ListRecentByConversationID(conversationID uint, n int) ([]model.Message, error) {
	if n <= 0 {
		n = 20
	}

	var messages []model.Message
	if err := r.db.Where("conversation_id = ?", conversationID).
		Order("created_at DESC").
		Limit(n).
		Find(&messages).Error; err != nil {
		return nil, fmt.Errorf("list recent messages failed: %w", err)
	}
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

func (r *MessageRepository) DeleteByConversationID(conversationID uint) error {
	if err := r.db.Where("conversation_id = ?", conversationID).Delete(&model.Message{}).Error; err != nil {
		return fmt.Errorf("delete messages by conversation failed: %w", err)
	}
	return nil
}
