package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"pharmgpt/internal/model"
	"pharmgpt/internal/pkg/jwtutil"
	"pharmgpt/internal/repository"
)

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrUsernameExists    = errors.New("username already exists")
	ErrEmailExists       = errors.New("email already exists")
	ErrInvalidCredential = errors.New("invalid username or password")
	ErrSessionExpired    = errors.New("session expired or revoked")
)

// AuthService handles registration, login, and session lifecycle. Tokens are
// JWTs whose token_id claim maps to a sessions row, so logout revokes them
// before expiry.
type AuthService struct {
	userRepo       *repository.UserRepository
	sessionRepo    *repository.SessionRepository
	jwtSecret      string
	sessionTimeout time.Duration
}

type RegisterInput struct {
	Username string
	Email    string
	Password string
}

type LoginInput struct {
	Username string
	Password string
}

type AuthResult struct {
	Token string
	User  *model.User
}

func NewAuthService(userRepo *repository.UserRepository, sessionRepo *repository.SessionRepository, jwtSecret string, sessionTimeout time.Duration) *AuthService {
	if sessionTimeout <= 0 {
		sessionTimeout = 24 * time.Hour
	}
	return &AuthService{
		userRepo:       userRepo,
		sessionRepo:    sessionRepo,
		jwtSecret:      jwtSecret,
		sessionTimeout: sessionTimeout,
	}
}

func (s *AuthService) Register(input RegisterInput) (*AuthResult, error) {
	username := strings.TrimSpace(input.Username)
	email := strings.TrimSpace(strings.ToLower(input.Email))
	password := strings.TrimSpace(input.Password)

	if username == "" || email == "" || password == "" || len(password) < 8 {
		return nil, ErrInvalidInput
	}

	existingByName, err := s.userRepo.GetByUsername(username)
	if err != nil {
		return nil, err
	}
	if existingByName != nil {
		return nil, ErrUsernameExists
	}

	existingByEmail, err := s.userRepo.GetByEmail(email)
	if err != nil {
		return nil, err
	}
	if existingByEmail != nil {
		return nil, ErrEmailExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password failed: %w", err)
	}

	user := &model.User{
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
	}
	if err := s.userRepo.Create(user); err != nil {
		return nil, err
	}

	token, err := s.openSession(user)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Token: token, User: user}, nil
}

func (s *AuthService) Login(input LoginInput) (*AuthResult, error) {
	username := strings.TrimSpace(input.Username)
	password := strings.TrimSpace(input.Password)
	if username == "" || password == "" {
		return nil, ErrInvalidInput
	}

	user, err := s.userRepo.GetByUsername(username)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidCredential
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredential
	}

	now := time.Now()
	if err := s.userRepo.UpdateLastLogin(user.ID, now); err != nil {
		return nil, err
	}
	user.LastLoginAt = &now

	token, err := s.openSession(user)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Token: token, User: user}, nil
}

// Logout revokes the session behind the token. Revoking an unknown token
// is a no-op.
func (s *AuthService) Logout(tokenString string) error {
	claims, err := jwtutil.ParseToken(s.jwtSecret, tokenString)
	if err != nil {
		return ErrInvalidCredential
	}
	return s.sessionRepo.Revoke(claims.TokenID)
}

// ValidateToken checks both the JWT signature and the backing session row.
func (s *AuthService) ValidateToken(tokenString string) (*jwtutil.Claims, error) {
	claims, err := jwtutil.ParseToken(s.jwtSecret, tokenString)
	if err != nil {
		return nil, err
	}
	session, err := s.sessionRepo.GetActiveByTokenID(claims.TokenID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrSessionExpired
	}
	return claims, nil
}

func (s *AuthService) ChangePassword(userID uint, currentPassword, newPassword string) error {
	newPassword = strings.TrimSpace(newPassword)
	if userID == 0 || len(newPassword) < 8 {
		return ErrInvalidInput
	}

	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrInvalidCredential
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(currentPassword)); err != nil {
		return ErrInvalidCredential
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password failed: %w", err)
	}
	return s.userRepo.UpdatePasswordHash(userID, string(hash))
}

func (s *AuthService) GetUserByID(id uint) (*model.User, error) {
	if id == 0 {
		return nil, ErrInvalidInput
	}
	return s.userRepo.GetByID(id)
}

// CleanupExpiredSessions removes stale session rows. Called periodically
// from the bootstrap.
func (s *AuthService) CleanupExpiredSessions() (int64, error) {
	return s.sessionRepo.DeleteExpired()
}

func (s *AuthService) openSession(user *model.User) (string, error) {
	tokenID := uuid.NewString()
	expiresAt := time.Now().Add(s.sessionTimeout)

	session := &model.Session{
		TokenID:   tokenID,
		UserID:    user.ID,
		ExpiresAt: expiresAt,
		IsActive:  true,
	}
	if err := s.sessionRepo.Create(session); err != nil {
		return "", err
	}
	return jwtutil.GenerateToken(s.jwtSecret, user.ID, user.Username, tokenID, expiresAt)
}
