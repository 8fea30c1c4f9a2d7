package ports

import "context"

// EventPublisher is the outbound domain-event publish port.
// partitionKey keeps one user's events ordered on the broker.
type EventPublisher interface {
	Publish(ctx context.Context, eventType, partitionKey string, payload []byte) error
}
