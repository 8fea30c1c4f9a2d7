package postgres

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/viralforge/mesh/services/core-platform/two-factor-auth-service/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type securityRecordRepository struct {
	db *gorm.DB
}

func (r *securityRecordRepository) GetByID(ctx context.Context, userID uuid.UUID) (domain.UserSecurityRecord, error) {
	return r.take(ctx, r.db.WithContext(ctx).Where("user_id = ?", userID))
}

func (r *securityRecordRepository) GetByLogin(ctx context.Context, identifier string) (domain.UserSecurityRecord, error) {
	normalized := strings.ToLower(strings.TrimSpace(identifier))
	return r.take(ctx, r.db.WithContext(ctx).
		Where("lower(email) = ? OR lower(user_name) = ?", normalized, normalized).
		Order(clause.OrderBy{Expression: clause.Expr{
			SQL:                "lower(email) = ? DESC",
			Vars:               []any{normalized},
			WithoutParentheses: true,
		}}))
}

func (r *securityRecordRepository) GetByEmail(ctx context.Context, email string) (domain.UserSecurityRecord, error) {
	return r.take(ctx, r.db.WithContext(ctx).Where("lower(email) = ?", strings.ToLower(strings.TrimSpace(email))))
}

func (r *securityRecordRepository) SetTOTPSecretIfEmpty(ctx context.Context, userID uuid.UUID, secret string, updatedAt time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&userModel{}).
		Where("user_id = ?", userID).
		Where("totp_secret = ''").
		Updates(map[string]any{
			"totp_secret": secret,
			"updated_at":  updatedAt,
		})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected > 0 {
		return true, nil
	}
	if err := r.exists(ctx, userID); err != nil {
		return false, err
	}
	return false, nil
}

func (r *securityRecordRepository) ReplaceTOTPSecret(ctx context.Context, userID uuid.UUID, secret, securityStamp string, updatedAt time.Time) error {
	return r.update(ctx, userID, map[string]any{
		"totp_secret":    secret,
		"security_stamp": securityStamp,
		"updated_at":     updatedAt,
	})
}

func (r *securityRecordRepository) SetTwoFactorEnabled(ctx context.Context, userID uuid.UUID, enabled bool, updatedAt time.Time) error {
	return r.update(ctx, userID, map[string]any{
		"two_factor_enabled": enabled,
		"updated_at":         updatedAt,
	})
}

func (r *securityRecordRepository) UpdatePassword(ctx context.Context, userID uuid.UUID, passwordHash, securityStamp string, updatedAt time.Time) error {
	return r.update(ctx, userID, map[string]any{
		"password_hash":  passwordHash,
		"security_stamp": securityStamp,
		"updated_at":     updatedAt,
	})
}

func (r *securityRecordRepository) take(ctx context.Context, query *gorm.DB) (domain.UserSecurityRecord, error) {
	var rec userModel
	if err := query.Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.UserSecurityRecord{}, domain.ErrNotFound
		}
		return domain.UserSecurityRecord{}, err
	}
	roles, err := r.loadRoleNames(ctx, rec.UserID)
	if err != nil {
		return domain.UserSecurityRecord{}, err
	}
	return toDomainSecurityRecord(rec, roles), nil
}

func (r *securityRecordRepository) update(ctx context.Context, userID uuid.UUID, fields map[string]any) error {
	res := r.db.WithContext(ctx).
		Model(&userModel{}).
		Where("user_id = ?", userID).
		Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *securityRecordRepository) exists(ctx context.Context, userID uuid.UUID) error {
	var count int64
	if err := r.db.WithContext(ctx).Model(&userModel{}).Where("user_id = ?", userID).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *securityRecordRepository) loadRoleNames(ctx context.Context, userID uuid.UUID) ([]string, error) {
	var names []string
	if err := r.db.WithContext(ctx).
		Model(&userRoleModel{}).
		Joins("JOIN roles ON roles.role_id = user_roles.role_id").
		Where("user_roles.user_id = ?", userID).
		Order("roles.name ASC").
		Pluck("roles.name", &names).Error; err != nil {
		return nil, err
	}
	return names, nil
}
