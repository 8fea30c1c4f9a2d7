package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/viralforge/mesh/services/core-platform/two-factor-auth-service/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type rememberedDeviceRepository struct {
	db *gorm.DB
}

func (r *rememberedDeviceRepository) Put(ctx context.Context, device domain.RememberedDevice) error {
	rec := rememberedDeviceModel{
		DeviceID:      device.DeviceID,
		UserID:        device.UserID,
		SecurityStamp: device.SecurityStamp,
		IssuedAt:      device.IssuedAt,
		ExpiresAt:     device.ExpiresAt,
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "device_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"security_stamp",
			"issued_at",
			"expires_at",
		}),
	}).Create(&rec).Error
}

func (r *rememberedDeviceRepository) Get(ctx context.Context, userID, deviceID uuid.UUID) (domain.RememberedDevice, error) {
	var rec rememberedDeviceModel
	if err := r.db.WithContext(ctx).
		Where("device_id = ?", deviceID).
		Where("user_id = ?", userID).
		Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.RememberedDevice{}, domain.ErrNotFound
		}
		return domain.RememberedDevice{}, err
	}
	return toDomainRememberedDevice(rec), nil
}

func (r *rememberedDeviceRepository) DeleteAllForUser(ctx context.Context, userID uuid.UUID) error {
	return r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&rememberedDeviceModel{}).Error
}
