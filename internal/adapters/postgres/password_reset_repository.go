package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/viralforge/mesh/services/core-platform/two-factor-auth-service/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type passwordResetRepository struct {
	db *gorm.DB
}

func (r *passwordResetRepository) CreatePasswordResetToken(ctx context.Context, userID uuid.UUID, tokenHash string, createdAt, expiresAt time.Time) error {
	rec := passwordResetTokenModel{
		UserID:    userID,
		TokenHash: tokenHash,
		CreatedAt: createdAt,
		ExpiresAt: expiresAt,
	}
	return r.db.WithContext(ctx).Create(&rec).Error
}

func (r *passwordResetRepository) ConsumePasswordResetToken(ctx context.Context, userID uuid.UUID, tokenHash string, usedAt time.Time) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec passwordResetTokenModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("token_hash = ?", tokenHash).
			Where("user_id = ?", userID).
			Where("used_at IS NULL").
			Where("expires_at > ?", usedAt).
			Take(&rec).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrNotFound
			}
			return err
		}
		return tx.Model(&passwordResetTokenModel{}).
			Where("token_id = ?", rec.TokenID).
			Update("used_at", usedAt).Error
	})
}
