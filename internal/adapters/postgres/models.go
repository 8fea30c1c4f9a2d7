package postgres

import (
	"time"

	"github.com/google/uuid"
)

type roleModel struct {
	RoleID    uuid.UUID `gorm:"column:role_id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name      string    `gorm:"column:name"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (roleModel) TableName() string { return "roles" }

type userModel struct {
	UserID           uuid.UUID `gorm:"column:user_id;type:uuid;default:gen_random_uuid();primaryKey"`
	Email            string    `gorm:"column:email"`
	UserName         string    `gorm:"column:user_name"`
	PasswordHash     string    `gorm:"column:password_hash"`
	SecurityStamp    string    `gorm:"column:security_stamp"`
	EmailConfirmed   bool      `gorm:"column:email_confirmed"`
	TwoFactorEnabled bool      `gorm:"column:two_factor_enabled"`
	TOTPSecret       string    `gorm:"column:totp_secret"`
	CreatedAt        time.Time `gorm:"column:created_at"`
	UpdatedAt        time.Time `gorm:"column:updated_at"`
}

func (userModel) TableName() string { return "users" }

type userRoleModel struct {
	UserID uuid.UUID `gorm:"column:user_id;type:uuid;primaryKey"`
	RoleID uuid.UUID `gorm:"column:role_id;type:uuid;primaryKey"`
}

func (userRoleModel) TableName() string { return "user_roles" }

type recoveryCodeModel struct {
	CodeID    int64      `gorm:"column:code_id;primaryKey"`
	UserID    uuid.UUID  `gorm:"column:user_id"`
	CodeHash  string     `gorm:"column:code_hash"`
	CreatedAt time.Time  `gorm:"column:created_at"`
	UsedAt    *time.Time `gorm:"column:used_at"`
}

func (recoveryCodeModel) TableName() string { return "recovery_codes" }

type rememberedDeviceModel struct {
	DeviceID      uuid.UUID `gorm:"column:device_id;type:uuid;primaryKey"`
	UserID        uuid.UUID `gorm:"column:user_id"`
	SecurityStamp string    `gorm:"column:security_stamp"`
	IssuedAt      time.Time `gorm:"column:issued_at"`
	ExpiresAt     time.Time `gorm:"column:expires_at"`
}

func (rememberedDeviceModel) TableName() string { return "remembered_devices" }

type passwordResetTokenModel struct {
	TokenID   uuid.UUID  `gorm:"column:token_id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID    uuid.UUID  `gorm:"column:user_id"`
	TokenHash string     `gorm:"column:token_hash"`
	CreatedAt time.Time  `gorm:"column:created_at"`
	ExpiresAt time.Time  `gorm:"column:expires_at"`
	UsedAt    *time.Time `gorm:"column:used_at"`
}

func (passwordResetTokenModel) TableName() string { return "password_reset_tokens" }

type authOutboxModel struct {
	OutboxID       uuid.UUID  `gorm:"column:outbox_id;type:uuid;primaryKey"`
	EventType      string     `gorm:"column:event_type"`
	PartitionKey   string     `gorm:"column:partition_key"`
	Payload        string     `gorm:"column:payload;type:jsonb"`
	CreatedAt      time.Time  `gorm:"column:created_at"`
	FirstSeenAt    time.Time  `gorm:"column:first_seen_at"`
	PublishedAt    *time.Time `gorm:"column:published_at"`
	RetryCount     int        `gorm:"column:retry_count"`
	LastError      *string    `gorm:"column:last_error"`
	LastErrorAt    *time.Time `gorm:"column:last_error_at"`
	ClaimToken     *string    `gorm:"column:claim_token"`
	ClaimUntil     *time.Time `gorm:"column:claim_until"`
	DeadLetteredAt *time.Time `gorm:"column:dead_lettered_at"`
}

func (authOutboxModel) TableName() string { return "auth_outbox" }
