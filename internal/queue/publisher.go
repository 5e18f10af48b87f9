package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const broadcastMessageType = "broadcast.submitted"

// RabbitMQPublisher enqueues accepted broadcasts on the durable work queue.
type RabbitMQPublisher struct {
	client *RabbitMQ
}

func NewRabbitMQPublisher(client *RabbitMQ) *RabbitMQPublisher {
	return &RabbitMQPublisher{client: client}
}

// Publish sends one persistent message per broadcast. MessageId is the batch id
// so a dead-lettered message maps back to its history row, and the timestamp is
// the submission time rather than the publish time.
func (p *RabbitMQPublisher) Publish(ctx context.Context, queue string, msg BroadcastMessage) error {
	if p == nil || p.client == nil {
		return fmt.Errorf("publisher is not initialized")
	}
	if queue == "" {
		return fmt.Errorf("queue name is required")
	}
	if err := msg.Validate(); err != nil {
		return fmt.Errorf("invalid broadcast message: %w", err)
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal broadcast message: %w", err)
	}

	ch, err := p.client.channel(ctx)
	if err != nil {
		return err
	}
	defer ch.Close()

	publishing := amqp.Publishing{
		ContentType:   "application/json",
		DeliveryMode:  amqp.Persistent,
		Timestamp:     publishedAt(msg),
		Type:          broadcastMessageType,
		MessageId:     msg.BatchID,
		CorrelationId: msg.CorrelationID,
		Body:          payload,
	}

	if err := ch.PublishWithContext(ctx, "", queue, false, false, publishing); err != nil {
		return fmt.Errorf("failed to publish message to queue %q: %w", queue, err)
	}

	return nil
}

func publishedAt(msg BroadcastMessage) time.Time {
	if msg.SubmittedAt.IsZero() {
		return time.Now().UTC()
	}
	return msg.SubmittedAt.UTC()
}

func (p *RabbitMQPublisher) Close() error {
	if p == nil || p.client == nil {
		return nil
	}
	return p.client.Close()
}
