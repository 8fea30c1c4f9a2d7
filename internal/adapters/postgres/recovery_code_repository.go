package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type recoveryCodeRepository struct {
	db *gorm.DB
}

func (r *recoveryCodeRepository) Replace(ctx context.Context, userID uuid.UUID, codeHashes []string, createdAt time.Time) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", userID).Delete(&recoveryCodeModel{}).Error; err != nil {
			return err
		}
		if len(codeHashes) == 0 {
			return nil
		}
		records := make([]recoveryCodeModel, 0, len(codeHashes))
		for _, hash := range codeHashes {
			records = append(records, recoveryCodeModel{
				UserID:    userID,
				CodeHash:  hash,
				CreatedAt: createdAt,
			})
		}
		return tx.Create(&records).Error
	})
}

// Consume is a single conditional UPDATE; concurrent callers race on the row lock
// and only the first sees a row affected.
func (r *recoveryCodeRepository) Consume(ctx context.Context, userID uuid.UUID, codeHash string, usedAt time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&recoveryCodeModel{}).
		Where("user_id = ?", userID).
		Where("code_hash = ?", codeHash).
		Where("used_at IS NULL").
		Update("used_at", usedAt)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *recoveryCodeRepository) CountRemaining(ctx context.Context, userID uuid.UUID) (int, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&recoveryCodeModel{}).
		Where("user_id = ?", userID).
		Where("used_at IS NULL").
		Count(&count).Error; err != nil {
		return 0, err
	}
	return int(count), nil
}
