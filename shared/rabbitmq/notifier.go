// Package rabbitmq publishes purge run summaries to an AMQP exchange so other
// systems-management components can react to retention events.
package rabbitmq

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Config holds RabbitMQ connection and exchange configuration
type Config struct {
	Host              string
	Port              int
	User              string
	Password          string
	VHost             string
	Exchange          string
	RoutingKey        string
	RetryAttempts     int
	RetryInterval     time.Duration
	Heartbeat         time.Duration
	ConnectionTimeout time.Duration
}

// Notifier is a publish-only RabbitMQ client
type Notifier struct {
	config  *Config
	conn    *amqp.Connection
	channel *amqp.Channel
	logger  *slog.Logger
}

// NewNotifier connects to RabbitMQ with retry and declares the target exchange
func NewNotifier(config *Config, logger *slog.Logger) (*Notifier, error) {
	n := &Notifier{
		config: config,
		logger: logger,
	}

	if err := n.connect(); err != nil {
		return nil, fmt.Errorf("failed to create RabbitMQ notifier: %w", err)
	}

	return n, nil
}

func (n *Notifier) connect() error {
	var err error

	dsn := fmt.Sprintf("amqp://%s:%s@%s:%d%s",
		n.config.User,
		n.config.Password,
		n.config.Host,
		n.config.Port,
		n.config.VHost,
	)

	amqpConfig := amqp.Config{
		Heartbeat: n.config.Heartbeat,
		Locale:    "en_US",
	}

	attempts := n.config.RetryAttempts
	if attempts < 1 {
		attempts = 1
	}

	for attempt := 1; attempt <= attempts; attempt++ {
		n.logger.Info("Connecting to RabbitMQ",
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", attempts),
		)

		n.conn, err = amqp.DialConfig(dsn, amqpConfig)
		if err == nil {
			break
		}

		n.logger.Error("Failed to connect to RabbitMQ",
			slog.Any("error", err),
			slog.Int("attempt", attempt),
		)

		if attempt < attempts {
			time.Sleep(n.config.RetryInterval)
		}
	}

	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ after %d attempts: %w", attempts, err)
	}

	n.channel, err = n.conn.Channel()
	if err != nil {
		n.conn.Close()
		return fmt.Errorf("failed to create channel: %w", err)
	}

	err = n.channel.ExchangeDeclare(
		n.config.Exchange, // name
		"topic",           // type
		true,              // durable
		false,             // auto-deleted
		false,             // internal
		false,             // no-wait
		nil,               // arguments
	)
	if err != nil {
		n.channel.Close()
		n.conn.Close()
		return fmt.Errorf("failed to declare exchange: %w", err)
	}

	n.logger.Info("RabbitMQ notifier initialized",
		slog.String("exchange", n.config.Exchange),
		slog.String("routing_key", n.config.RoutingKey),
	)

	return nil
}

// Publish sends one JSON message to the configured exchange
func (n *Notifier) Publish(ctx context.Context, body []byte) error {
	err := n.channel.PublishWithContext(
		ctx,
		n.config.Exchange,   // exchange
		n.config.RoutingKey, // routing key
		false,               // mandatory
		false,               // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
		},
	)

	if err != nil {
		n.logger.Error("Failed to publish message to RabbitMQ",
			slog.Any("error", err),
		)
		return fmt.Errorf("failed to publish message: %w", err)
	}

	n.logger.Debug("Message published to RabbitMQ",
		slog.Int("body_size", len(body)),
	)

	return nil
}

// Close releases the channel and connection
func (n *Notifier) Close() error {
	if n.channel != nil {
		if err := n.channel.Close(); err != nil {
			n.logger.Error("Failed to close RabbitMQ channel",
				slog.Any("error", err),
			)
		}
	}
	if n.conn != nil {
		if err := n.conn.Close(); err != nil {
			n.logger.Error("Failed to close RabbitMQ connection",
				slog.Any("error", err),
			)
			return err
		}
	}
	return nil
}
