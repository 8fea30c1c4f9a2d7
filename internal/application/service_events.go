package application

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/viralforge/mesh/services/core-platform/two-factor-auth-service/internal/ports"
)

const (
	// eventTypeSignInSucceeded is emitted when a login reaches Authenticated.
	eventTypeSignInSucceeded = "auth.signin.succeeded"
	// eventTypeTwoFactorRequired is emitted when primary auth requires a second factor.
	eventTypeTwoFactorRequired  = "auth.2fa.required"
	eventTypeSecondFactorFailed = "auth.2fa.failed"
	eventTypeRecoveryRedeemed   = "auth.recovery_code.redeemed"
	eventTypeTwoFactorEnabled   = "auth.2fa.enabled"
	eventTypeTwoFactorDisabled  = "auth.2fa.disabled"
	eventTypeAuthenticatorReset = "auth.authenticator.reset"
	eventTypePasswordReset      = "auth.password.reset"
	eventTypePasswordChanged    = "auth.password.changed"
	// eventTypeEmailRequested asks the notification service to deliver an email.
	eventTypeEmailRequested = "notification.email.requested"
)

// eventRecorder appends audit events to the outbox. Failures are logged, never returned:
// an audit write must not flip the outcome of a sign-in that already happened.
type eventRecorder struct {
	outbox ports.OutboxRepository
	nowFn  func() time.Time
}

func (r *eventRecorder) record(ctx context.Context, eventType string, userID uuid.UUID, fields map[string]any) {
	if r == nil || r.outbox == nil {
		return
	}
	now := r.nowFn()
	payload := map[string]any{
		"user_id":     userID.String(),
		"occurred_at": now,
	}
	for k, v := range fields {
		payload[k] = v
	}
	raw, err := json.Marshal(payload)
	if err == nil {
		err = r.outbox.Enqueue(ctx, ports.OutboxEvent{
			EventID:      uuid.New(),
			EventType:    eventType,
			PartitionKey: userID.String(),
			Payload:      raw,
			OccurredAt:   now,
		})
	}
	if err != nil {
		slog.Default().WarnContext(ctx, "audit event not recorded",
			"service", serviceName,
			"module", "application",
			"layer", "application",
			"operation", "record_event",
			"outcome", "failure",
			"event_type", eventType,
			"error", err,
		)
	}
}
