package postgres

import (
	"github.com/viralforge/mesh/services/core-platform/two-factor-auth-service/internal/domain"
	"github.com/viralforge/mesh/services/core-platform/two-factor-auth-service/internal/ports"
)

func toDomainSecurityRecord(row userModel, roles []string) domain.UserSecurityRecord {
	return domain.UserSecurityRecord{
		UserID:           row.UserID,
		Email:            row.Email,
		UserName:         row.UserName,
		PasswordHash:     row.PasswordHash,
		SecurityStamp:    row.SecurityStamp,
		EmailConfirmed:   row.EmailConfirmed,
		TwoFactorEnabled: row.TwoFactorEnabled,
		TOTPSecret:       row.TOTPSecret,
		Roles:            roles,
		CreatedAt:        row.CreatedAt,
		UpdatedAt:        row.UpdatedAt,
	}
}

func toDomainRememberedDevice(row rememberedDeviceModel) domain.RememberedDevice {
	return domain.RememberedDevice{
		DeviceID:      row.DeviceID,
		UserID:        row.UserID,
		SecurityStamp: row.SecurityStamp,
		IssuedAt:      row.IssuedAt.UTC(),
		ExpiresAt:     row.ExpiresAt.UTC(),
	}
}

func toOutboxRecord(row authOutboxModel) ports.OutboxRecord {
	return ports.OutboxRecord{
		OutboxID:       row.OutboxID,
		EventType:      row.EventType,
		PartitionKey:   row.PartitionKey,
		Payload:        []byte(row.Payload),
		RetryCount:     row.RetryCount,
		LastError:      row.LastError,
		CreatedAt:      row.CreatedAt,
		PublishedAt:    row.PublishedAt,
		LastErrorAt:    row.LastErrorAt,
		FirstSeenAt:    row.FirstSeenAt,
		ClaimToken:     row.ClaimToken,
		ClaimUntil:     row.ClaimUntil,
		DeadLetteredAt: row.DeadLetteredAt,
	}
}
