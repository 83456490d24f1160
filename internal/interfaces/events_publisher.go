package interfaces

import "context"

// EventPublisher delivers domain events to an external broker.
type EventPublisher interface {
	Publish(ctx context.Context, event any) error
}
