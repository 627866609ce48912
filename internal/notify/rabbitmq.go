package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/streadway/amqp"
	"go.uber.org/zap"

	"github.com/example/studentkit/internal/models"
)

// RabbitMQ publishes share events to a durable queue and consumes them.
type RabbitMQ struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	queue   string
	logger  *zap.Logger

	// amqp channels are not safe for concurrent publishing.
	mu sync.Mutex
}

// NewRabbitMQ connects, opens a channel and declares the queue.
func NewRabbitMQ(url, queue string, logger *zap.Logger) (*RabbitMQ, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}

	_, err = ch.QueueDeclare(
		queue, // name
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare queue %s: %w", queue, err)
	}

	logger.Info("Connected to RabbitMQ", zap.String("queue", queue))
	return &RabbitMQ{conn: conn, channel: ch, queue: queue, logger: logger}, nil
}

// Notify publishes the event as a persistent JSON message.
func (r *RabbitMQ) Notify(ctx context.Context, event models.ShareEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode share event: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	err = r.channel.Publish(
		"",      // exchange
		r.queue, // routing key (queue name)
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Type:         event.Type,
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    event.OccurredAt,
		})
	if err != nil {
		return fmt.Errorf("failed to publish to queue %s: %w", r.queue, err)
	}
	r.logger.Debug("Published share event", zap.String("type", event.Type), zap.String("shareID", event.ShareID))
	return nil
}

// Consume delivers queued events to handle until ctx is done or the connection closes.
// A message is acked once handle succeeds; messages that cannot be decoded or handled
// are rejected without requeueing.
func (r *RabbitMQ) Consume(ctx context.Context, handle func(context.Context, models.ShareEvent) error) error {
	msgs, err := r.channel.Consume(
		r.queue, // queue
		"",      // consumer
		false,   // auto-ack
		false,   // exclusive
		false,   // no-local
		false,   // no-wait
		nil,     // args
	)
	if err != nil {
		return fmt.Errorf("failed to register a consumer for queue %s: %w", r.queue, err)
	}

	r.logger.Info("Waiting for share events", zap.String("queue", r.queue))
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return nil
			}
			r.deliver(ctx, d, handle)
		}
	}
}

func (r *RabbitMQ) deliver(ctx context.Context, d amqp.Delivery, handle func(context.Context, models.ShareEvent) error) {
	var event models.ShareEvent
	if err := json.Unmarshal(d.Body, &event); err != nil {
		r.logger.Warn("Dropping undecodable share event", zap.Error(err))
		_ = d.Reject(false)
		return
	}
	if err := handle(ctx, event); err != nil {
		r.logger.Warn("Failed to handle share event",
			zap.String("type", event.Type), zap.String("shareID", event.ShareID), zap.Error(err))
		_ = d.Reject(false)
		return
	}
	_ = d.Ack(false)
}

// Close closes the RabbitMQ channel and connection.
func (r *RabbitMQ) Close() error {
	var lastErr error
	if r.channel != nil {
		if err := r.channel.Close(); err != nil {
			r.logger.Warn("Error closing RabbitMQ channel", zap.Error(err))
			lastErr = err
		}
	}
	if r.conn != nil {
		if err := r.conn.Close(); err != nil {
			r.logger.Warn("Error closing RabbitMQ connection", zap.Error(err))
			lastErr = err
		}
	}
	return lastErr
}
