package repository

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"pharmgpt/internal/model"
)

type SessionRepository struct {
	db *gorm.DB
}

func NewSessionRepository(db *gorm.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) Create(session *model.Session) error {
	if err := r.db.Create(session).Error; err != nil {
		return fmt.Errorf("create session failed: %w", err)
	}
	return nil
}

// GetActiveByTokenID returns the session only if it is active and unexpired.
func (r *SessionRepository) GetActiveByTokenID(tokenID string) (*model.Session, error) {
	var session model.Session
	err := r.db.
		Where("token_id = ? AND is_active = ? AND expires_at > ?", tokenID, true, time.Now()).
		First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("query session by token failed: %w", err)
	}
	return &session, nil
}

func (r *SessionRepository) Revoke(tokenID string) error {
	if err := r.db.Model(&model.Session{}).Where("token_id = ?", tokenID).Update("is_active", false).Error; err != nil {
		return fmt.Errorf("revoke session failed: %w", err)
	}
	return nil
}

// DeleteExpired removes sessions past their expiry, returning the count.
func (r *SessionRepository) DeleteExpired() (int64, error) {
	res := r.db.Where("expires_at <= ?", time.Now()).Delete(&model.Session{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete expired sessions failed: %w", res.Error)
	}
	return res.RowsAffected, nil
}
