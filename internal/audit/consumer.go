package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/Kamal-Moha/blnk-Ledger-Test/internal/config"
	"github.com/Kamal-Moha/blnk-Ledger-Test/internal/events"
)

// Journal is where consumed events are recorded.
type Journal interface {
	Insert(ctx context.Context, e *Entry) error
}

// RabbitMQConsumer consumes transaction events from RabbitMQ and records
// them in the journal
type RabbitMQConsumer struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	config  config.RabbitMQConfig
	journal Journal
	logger  *zap.Logger
}

// NewRabbitMQConsumer connects, declares the topology and binds the queue
func NewRabbitMQConsumer(cfg config.RabbitMQConfig, journal Journal, logger *zap.Logger) (*RabbitMQConsumer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	err = channel.ExchangeDeclare(
		cfg.Exchange, // name
		"topic",      // type
		true,         // durable
		false,        // auto-deleted
		false,        // internal
		false,        // no-wait
		nil,          // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	queue, err := channel.QueueDeclare(
		cfg.Queue, // name
		true,      // durable
		false,     // delete when unused
		false,     // exclusive
		false,     // no-wait
		nil,       // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}

	if err := channel.QueueBind(queue.Name, cfg.RoutingKey, cfg.Exchange, false, nil); err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to bind queue: %w", err)
	}

	logger.Info("RabbitMQ consumer initialized",
		zap.String("exchange", cfg.Exchange),
		zap.String("queue", cfg.Queue),
		zap.String("routing_key", cfg.RoutingKey),
	)

	return &RabbitMQConsumer{
		conn:    conn,
		channel: channel,
		config:  cfg,
		journal: journal,
		logger:  logger,
	}, nil
}

// Start consumes messages until ctx is cancelled
func (c *RabbitMQConsumer) Start(ctx context.Context) error {
	msgs, err := c.channel.Consume(
		c.config.Queue, // queue
		"",             // consumer tag (auto-generated)
		false,          // auto-ack (we'll ack manually)
		false,          // exclusive
		false,          // no-local
		false,          // no-wait
		nil,            // args
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	c.logger.Info("RabbitMQ consumer started", zap.String("queue", c.config.Queue))

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("context cancelled, stopping RabbitMQ consumer")
			return nil

		case msg, ok := <-msgs:
			if !ok {
				return fmt.Errorf("message channel closed")
			}

			err := HandleMessage(ctx, c.journal, msg.Body)
			switch {
			case err == nil:
				msg.Ack(false)
			case isPermanent(err):
				// malformed messages would be redelivered forever
				c.logger.Error("dropping invalid message", zap.String("message_id", msg.MessageId), zap.Error(err))
				msg.Nack(false, false)
			default:
				c.logger.Warn("failed to handle message, requeueing", zap.String("message_id", msg.MessageId), zap.Error(err))
				msg.Nack(false, true)
			}
		}
	}
}

// Close closes the RabbitMQ connection and channel
func (c *RabbitMQConsumer) Close() error {
	if c.channel != nil {
		if err := c.channel.Close(); err != nil {
			c.logger.Warn("error closing channel", zap.Error(err))
		}
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

func isPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// HandleMessage decodes one event body and records it in journal.
func HandleMessage(ctx context.Context, journal Journal, body []byte) error {
	var event events.TransactionEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return &permanentError{fmt.Errorf("failed to unmarshal event: %w", err)}
	}

	if err := validateEvent(&event); err != nil {
		return &permanentError{fmt.Errorf("invalid event: %w", err)}
	}

	occurredAt, err := time.Parse(time.RFC3339Nano, event.Timestamp)
	if err != nil {
		return &permanentError{fmt.Errorf("failed to parse timestamp: %w", err)}
	}

	entry := &Entry{
		EventID:       event.EventID,
		EventType:     event.EventType,
		TransactionID: event.TransactionID,
		Reference:     event.Reference,
		Source:        event.Source,
		Destination:   event.Destination,
		Currency:      event.Amount.CurrencyCode,
		Amount:        event.Amount.Minor,
		Precision:     event.Amount.Precision,
		AmountValue:   event.Amount.Value,
		Status:        event.Status,
		Inflight:      event.Inflight,
		OccurredAt:    occurredAt,
	}

	if err := journal.Insert(ctx, entry); err != nil {
		return fmt.Errorf("failed to record event %s: %w", event.EventID, err)
	}
	return nil
}

// validateEvent validates the transaction event structure
func validateEvent(event *events.TransactionEvent) error {
	if event.EventID == "" {
		return fmt.Errorf("event ID is required")
	}
	if event.TransactionID == "" {
		return fmt.Errorf("transaction ID is required")
	}
	if event.Source == "" || event.Destination == "" {
		return fmt.Errorf("source and destination are required")
	}
	if event.Amount.CurrencyCode == "" {
		return fmt.Errorf("currency code is required")
	}
	if event.Amount.Minor <= 0 {
		return fmt.Errorf("amount must be positive")
	}
	if event.Status == "" {
		return fmt.Errorf("status is required")
	}
	if event.Timestamp == "" {
		return fmt.Errorf("timestamp is required")
	}
	return nil
}
