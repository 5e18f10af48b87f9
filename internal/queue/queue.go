package queue

import (
	"context"
	"fmt"
)

// Publisher publishes broadcast messages to a queue.
type Publisher interface {
	Publish(ctx context.Context, queue string, msg BroadcastMessage) error
	Close() error
}

// MessageHandler handles a consumed queue message.
type MessageHandler func(ctx context.Context, msg BroadcastMessage) error

// Consumer consumes broadcast messages from a queue.
type Consumer interface {
	Consume(ctx context.Context, queue string, handler MessageHandler) error
	Close() error
}

const (
	// BroadcastQueue is the durable work queue holding accepted broadcasts.
	BroadcastQueue = "broadcasts"

	broadcastRoutingKey = "broadcasts"
)

// DLQName returns the dead-letter queue name for a work queue, e.g. dlq.broadcasts.
func DLQName(queue string) string {
	return fmt.Sprintf("dlq.%s", queue)
}

// WorkQueueNames returns all work queues.
func WorkQueueNames() []string {
	return []string{BroadcastQueue}
}

// DLQNames returns all dead-letter queues.
func DLQNames() []string {
	return []string{DLQName(BroadcastQueue)}
}
