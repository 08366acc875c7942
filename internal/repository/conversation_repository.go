package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"pharmgpt/internal/model"
)

type ConversationRepository struct {
	db *gorm.DB
}

func NewConversationRepository(db *gorm.DB) *ConversationRepository {
	return &ConversationRepository{db: db}
}

func (r *ConversationRepository) Create(conversation *model.Conversation) error {
	if err := r.db.Create(conversation).Error; err != nil {
		return fmt.Errorf("create conversation failed: %w", err)
	}
	return nil
}

func (r *ConversationRepository) ListByUserID(userID uint, includeArchived bool, limit int) ([]model.Conversation, error) {
	if limit <= 0 || limit > 200 {
		limit = 100
	}
	q := r.db.Where("user_id = ?", userID)
	if !includeArchived {
		q = q.Where("is_archived = ?", false)
	}
	var conversations []model.Conversation
	if err := q.Order("updated_at DESC").Limit(limit).Find(&conversations).Error; err != nil {
		return nil, fmt.Errorf("list conversations failed: %w", err)
	}
	return conversations, nil
}

func (r *ConversationRepository) GetByIDAndUserID(conversationID, userID uint) (*model.Conversation, error) {
	var conversation model.Conversation
	if err := r.db.Where("id = ? AND user_id = ?", conversationID, userID).First(&conversation).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get conversation failed: %w", err)
	}
	return &conversation, nil
}

func (r *ConversationRepository) UpdateTitle(conversationID, userID uint, title string) error {
	if err := r.db.Model(&model.Conversation{}).
		Where("id = ? AND user_id = ?", conversationID, userID).
		Update("title", title).Error; err != nil {
		return fmt.Errorf("update conversation title failed: %w", err)
	}
	return nil
}

func (r *ConversationRepository) SetArchived(conversationID, userID uint, archived bool) error {
	if err := r.db.Model(&model.Conversation{}).
		Where("id = ? AND user_id = ?", conversationID, userID).
		Update("is_archived", archived).Error; err != nil {
		return fmt.Errorf("set conversation archived failed: %w", err)
	}
	return nil
}

// Touch bumps updated_at so recently used conversations sort first.
func (r *ConversationRepository) Touch(conversationID uint) error {
	if err := r.db.Model(&model.Conversation{}).
		Where("id = ?", conversationID).
		Update("updated_at", gorm.Expr("NOW()")).Error; err != nil {
		return fmt.Errorf("touch conversation failed: %w", err)
	}
	return nil
}

func (r *ConversationRepository) DeleteByIDAndUserID(conversationID, userID uint) error {
	if err := r.db.Where("id = ? AND user_id = ?", conversationID, userID).Delete(&model.Conversation{}).Error; err != nil {
		return fmt.Errorf("delete conversation failed: %w", err)
	}
	return nil
}
