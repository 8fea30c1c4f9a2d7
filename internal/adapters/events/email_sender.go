package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/viralforge/mesh/services/core-platform/two-factor-auth-service/internal/domain"
	"github.com/viralforge/mesh/services/core-platform/two-factor-auth-service/internal/ports"
)

const EmailRequestedEventType = "notification.email.requested"

type emailRequestedPayload struct {
	To          string    `json:"to"`
	Subject     string    `json:"subject"`
	Body        string    `json:"body"`
	RequestedAt time.Time `json:"requested_at"`
}

// OutboxEmailSender hands mail to the notification service as an outbox event.
type OutboxEmailSender struct {
	outbox ports.OutboxRepository
	nowFn  func() time.Time
}

func NewOutboxEmailSender(outbox ports.OutboxRepository) *OutboxEmailSender {
	return &OutboxEmailSender{outbox: outbox, nowFn: func() time.Time { return time.Now().UTC() }}
}

func (s *OutboxEmailSender) SendEmail(ctx context.Context, to, subject, body string) error {
	to = strings.TrimSpace(to)
	if to == "" {
		return fmt.Errorf("%w: recipient is required", domain.ErrInvalidInput)
	}
	now := s.nowFn()
	payload, err := json.Marshal(emailRequestedPayload{To: to, Subject: subject, Body: body, RequestedAt: now})
	if err != nil {
		return fmt.Errorf("encode email request: %w", err)
	}
	return s.outbox.Enqueue(ctx, ports.OutboxEvent{
		EventID:      uuid.New(),
		EventType:    EmailRequestedEventType,
		PartitionKey: strings.ToLower(to),
		Payload:      payload,
		OccurredAt:   now,
	})
}
