package messagequeue

import (
	"context"
	"fmt"
	"sync"

	"github.com/streadway/amqp"
	"go.uber.org/zap"
)

// RabbitMQPublisher implements the Publisher interface using RabbitMQ.
type RabbitMQPublisher struct {
	conn     *amqp.Connection
	logger   *zap.Logger
	mu       sync.Mutex // amqp.Channel is not safe for concurrent publishing
	channel  *amqp.Channel
	declared map[string]bool
}

// NewRabbitMQPublisherConfig contains options for creating a new RabbitMQPublisher.
type NewRabbitMQPublisherConfig struct {
	URL string
	// Queues are declared up front; other queues are declared on first publish.
	Queues []string
}

// NewRabbitMQPublisher dials the broker, opens a channel and declares the configured queues.
func NewRabbitMQPublisher(cfg NewRabbitMQPublisherConfig, logger *zap.Logger) (*RabbitMQPublisher, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open a RabbitMQ channel: %w", err)
	}

	p := &RabbitMQPublisher{conn: conn, channel: ch, logger: logger, declared: make(map[string]bool)}
	for _, q := range cfg.Queues {
		if err := p.declare(q); err != nil {
			p.Close()
			return nil, err
		}
	}

	logger.Info("Successfully connected to RabbitMQ and opened a channel", zap.Strings("queues", cfg.Queues))
	return p, nil
}

// declare must be called with mu held or before the publisher is shared.
func (p *RabbitMQPublisher) declare(queueName string) error {
	if p.declared[queueName] {
		return nil
	}
	_, err := p.channel.QueueDeclare(
		queueName, // name
		true,      // durable
		false,     // delete when unused
		false,     // exclusive
		false,     // no-wait
		nil,       // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", queueName, err)
	}
	p.declared[queueName] = true
	return nil
}

// Publish sends a persistent JSON message to queueName via the default exchange.
func (p *RabbitMQPublisher) Publish(ctx context.Context, queueName string, body []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.declare(queueName); err != nil {
		return err
	}

	err := p.channel.Publish(
		"",        // exchange
		queueName, // routing key (queue name)
		false,     // mandatory
		false,     // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
		})
	if err != nil {
		return fmt.Errorf("failed to publish a message to queue %s: %w", queueName, err)
	}
	p.logger.Debug("Published message", zap.String("queue", queueName), zap.Int("bytes", len(body)))
	return nil
}

// Close closes the RabbitMQ channel and connection.
func (p *RabbitMQPublisher) Close() error {
	var lastErr error
	if p.channel != nil {
		if err := p.channel.Close(); err != nil {
			p.logger.Warn("Error closing RabbitMQ channel", zap.Error(err))
			lastErr = err
		}
	}
	if p.conn != nil {
		if err := p.conn.Close(); err != nil {
			p.logger.Warn("Error closing RabbitMQ connection", zap.Error(err))
			lastErr = err
		}
	}
	return lastErr
}
