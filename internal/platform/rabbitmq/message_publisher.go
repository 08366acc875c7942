package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"pharmgpt/internal/model"
)

// MessagePublisher enqueues chat messages for the persist worker. Channels
// are not safe for concurrent use, so each publish opens its own and lets
// the connection multiplex.
type MessagePublisher struct {
	conn  *amqp.Connection
	queue string
}

func NewMessagePublisher(conn *amqp.Connection, queueName string) *MessagePublisher {
	return &MessagePublisher{conn: conn, queue: queueName}
}

// Publish writes the message to the durable queue as persistent JSON.
func (p *MessagePublisher) Publish(ctx context.Context, msg model.Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message payload failed: %w", err)
	}

	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("open rabbitmq channel failed: %w", err)
	}
	defer ch.Close()

	// Declaring on every publish is idempotent and keeps the publisher
	// working even if the worker has not created the queue yet.
	if _, err := ch.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue failed: %w", err)
	}

	err = ch.PublishWithContext(ctx, "", p.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         payload,
	})
	if err != nil {
		return fmt.Errorf("publish message failed: %w", err)
	}
	return nil
}
