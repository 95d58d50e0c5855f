package mailer

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const (
	ExchangeName = "ba.events"
	RoutingKey   = "mail.send"
	QueueName    = "mail.send.q"
)

type channelPublisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
}

// QueueSender publishes messages to the mail exchange instead of sending them.
type QueueSender struct {
	conn    *amqp091.Connection
	channel channelPublisher
	closer  func() error
}

func NewConnection(url string) (*amqp091.Connection, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	return conn, nil
}

func declareExchange(ch *amqp091.Channel) error {
	return ch.ExchangeDeclare(ExchangeName, "topic", true, false, false, false, nil)
}

func NewQueueSender(url string) (*QueueSender, error) {
	conn, err := NewConnection(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	if err := declareExchange(ch); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}
	return &QueueSender{conn: conn, channel: ch, closer: ch.Close}, nil
}

func (q *QueueSender) Send(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode mail: %w", err)
	}
	err = q.channel.PublishWithContext(ctx, ExchangeName, RoutingKey, false, false, amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish mail: %w", err)
	}
	return nil
}

func (q *QueueSender) Close() {
	if q.closer != nil {
		_ = q.closer()
	}
	if q.conn != nil {
		_ = q.conn.Close()
	}
}

// Consumer drains the mail queue into a Sender. Failed deliveries are
// requeued; malformed ones are dropped.
type Consumer struct {
	conn    *amqp091.Connection
	channel *amqp091.Channel
	sender  Sender
	logger  *zap.Logger
}

func NewConsumer(url string, sender Sender, logger *zap.Logger) (*Consumer, error) {
	conn, err := NewConnection(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	closeAll := func() {
		ch.Close()
		conn.Close()
	}
	if err := declareExchange(ch); err != nil {
		closeAll()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}
	q, err := ch.QueueDeclare(QueueName, true, false, false, false, nil)
	if err != nil {
		closeAll()
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}
	if err := ch.QueueBind(q.Name, RoutingKey, ExchangeName, false, nil); err != nil {
		closeAll()
		return nil, fmt.Errorf("failed to bind queue: %w", err)
	}
	if err := ch.Qos(8, 0, false); err != nil {
		closeAll()
		return nil, fmt.Errorf("failed to set qos: %w", err)
	}

	logger.Info("mail consumer initialized",
		zap.String("exchange", ExchangeName),
		zap.String("queue", QueueName),
		zap.String("routing_key", RoutingKey),
	)
	return &Consumer{conn: conn, channel: ch, sender: sender, logger: logger}, nil
}

// Run consumes until ctx is cancelled or the channel closes.
func (c *Consumer) Run(ctx context.Context) error {
	deliveries, err := c.channel.ConsumeWithContext(ctx, QueueName, "ba-worker", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("mail delivery channel closed")
			}
			c.process(ctx, d)
		}
	}
}

func (c *Consumer) process(ctx context.Context, d amqp091.Delivery) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("mail handler panic recovered", zap.Any("panic", r))
			_ = d.Nack(false, true)
		}
	}()

	switch err := Handle(ctx, c.sender, d.Body); {
	case err == nil:
		if ackErr := d.Ack(false); ackErr != nil {
			c.logger.Error("failed to ack mail", zap.Error(ackErr))
		}
	case isPermanent(err):
		c.logger.Error("dropping malformed mail message", zap.Error(err))
		_ = d.Nack(false, false)
	default:
		c.logger.Warn("mail send failed, requeueing", zap.Error(err))
		_ = d.Nack(false, true)
	}
}

func (c *Consumer) Close() {
	if c.channel != nil {
		_ = c.channel.Close()
	}
	if c.conn != nil {
		_ = c.conn.Close()
	}
}

type permanentError struct{ err error }

func (e permanentError) Error() string { return e.err.Error() }
func (e permanentError) Unwrap() error { return e.err }

func isPermanent(err error) bool {
	_, ok := err.(permanentError)
	return ok
}

// Handle decodes one queued message and sends it.
func Handle(ctx context.Context, sender Sender, body []byte) error {
	var msg Message
	if err := json.Unmarshal(body, &msg); err != nil {
		return permanentError{fmt.Errorf("decode mail: %w", err)}
	}
	if err := msg.Validate(); err != nil {
		return permanentError{err}
	}
	return sender.Send(ctx, msg)
}
