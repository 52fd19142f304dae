package repositories

import (
	"context"
	"time"

	"github.com/you/mcmarket/domain"
	"gorm.io/gorm"
)

// TokenRepositoryImpl implements domain.TokenRepository using GORM
type TokenRepositoryImpl struct {
	base
}

// NewTokenRepository creates a new token repository
func NewTokenRepository(db *gorm.DB) domain.TokenRepository {
	return &TokenRepositoryImpl{base{db: db}}
}

func (r *TokenRepositoryImpl) CreateRefreshToken(ctx context.Context, token *domain.RefreshToken) error {
	return r.conn(ctx).Create(token).Error
}

func (r *TokenRepositoryImpl) FindRefreshTokenByHash(ctx context.Context, hash string) (*domain.RefreshToken, error) {
	var token domain.RefreshToken
	if err := r.conn(ctx).Where("token_hash = ?", hash).First(&token).Error; err != nil {
		return nil, notFound(err, domain.ErrTokenInvalid)
	}
	return &token, nil
}

func (r *TokenRepositoryImpl) RevokeRefreshToken(ctx context.Context, id uint) error {
	return r.conn(ctx).Model(&domain.RefreshToken{}).
		Where("id = ? AND revoked_at IS NULL", id).
		Update("revoked_at", time.Now()).Error
}

func (r *TokenRepositoryImpl) RevokeSession(ctx context.Context, sessionID string) error {
	return r.conn(ctx).Model(&domain.RefreshToken{}).
		Where("session_id = ? AND revoked_at IS NULL", sessionID).
		Update("revoked_at", time.Now()).Error
}

func (r *TokenRepositoryImpl) RevokeAllRefreshTokens(ctx context.Context, userID uint) error {
	return r.conn(ctx).Model(&domain.RefreshToken{}).
		Where("user_id = ? AND revoked_at IS NULL", userID).
		Update("revoked_at", time.Now()).Error
}

func (r *TokenRepositoryImpl) CreatePasswordReset(ctx context.Context, token *domain.PasswordResetToken) error {
	return r.conn(ctx).Create(token).Error
}

func (r *TokenRepositoryImpl) FindPasswordResetByHash(ctx context.Context, hash string) (*domain.PasswordResetToken, error) {
	var token domain.PasswordResetToken
	if err := r.conn(ctx).Where("token_hash = ?", hash).First(&token).Error; err != nil {
		return nil, notFound(err, domain.ErrInvalidResetToken)
	}
	return &token, nil
}

func (r *TokenRepositoryImpl) MarkPasswordResetUsed(ctx context.Context, id uint) error {
	return r.conn(ctx).Model(&domain.PasswordResetToken{}).Where("id = ?", id).Update("used_at", time.Now()).Error
}

func (r *TokenRepositoryImpl) CreateEmailVerification(ctx context.Context, token *domain.EmailVerificationToken) error {
	return r.conn(ctx).Create(token).Error
}

func (r *TokenRepositoryImpl) FindEmailVerificationByHash(ctx context.Context, hash string) (*domain.EmailVerificationToken, error) {
	var token domain.EmailVerificationToken
	if err := r.conn(ctx).Where("token_hash = ?", hash).First(&token).Error; err != nil {
		return nil, notFound(err, domain.ErrInvalidVerifyToken)
	}
	return &token, nil
}

func (r *TokenRepositoryImpl) MarkEmailVerificationUsed(ctx context.Context, id uint) error {
	return r.conn(ctx).Model(&domain.EmailVerificationToken{}).Where("id = ?", id).Update("used_at", time.Now()).Error
}
