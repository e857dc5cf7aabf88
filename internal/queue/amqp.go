package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/lazypower/keepstreak/internal/habit"
)

// ExchangeName is the topic exchange habit events are published to.
const ExchangeName = "keepstreak.events"

// BindingKey matches every habit event routing key.
const BindingKey = "habit.*"

func dial(url string) (*amqp091.Connection, *amqp091.Channel, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("connect rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(
		ExchangeName,
		"topic",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		ch.Close()
		conn.Close()
		return nil, nil, fmt.Errorf("declare exchange: %w", err)
	}
	return conn, ch, nil
}

// AMQPPublisher publishes events as persistent JSON messages.
type AMQPPublisher struct {
	conn    *amqp091.Connection
	channel *amqp091.Channel
}

func NewAMQPPublisher(url string) (*AMQPPublisher, error) {
	conn, ch, err := dial(url)
	if err != nil {
		return nil, err
	}
	return &AMQPPublisher{conn: conn, channel: ch}, nil
}

func (p *AMQPPublisher) Publish(ctx context.Context, ev habit.Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	err = p.channel.PublishWithContext(ctx,
		ExchangeName,
		RoutingKey(ev.Trigger),
		false,
		false,
		amqp091.Publishing{
			ContentType:  "application/json",
			MessageId:    ev.ID,
			Body:         body,
			DeliveryMode: amqp091.Persistent,
		},
	)
	if err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

// IsConnected reports whether the underlying connection is still open.
func (p *AMQPPublisher) IsConnected() bool {
	return p.conn != nil && !p.conn.IsClosed()
}

func (p *AMQPPublisher) Close() {
	if p.channel != nil {
		_ = p.channel.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
}

// AMQPConsumer reads events from a durable queue bound to BindingKey with
// manual acknowledgement. Failed or panicking handlers nack with requeue.
type AMQPConsumer struct {
	conn    *amqp091.Connection
	channel *amqp091.Channel
	queue   string
	logger  *zap.Logger
}

func NewAMQPConsumer(url, queueName string, logger *zap.Logger) (*AMQPConsumer, error) {
	conn, ch, err := dial(url)
	if err != nil {
		return nil, err
	}
	q, err := ch.QueueDeclare(
		queueName,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare queue: %w", err)
	}
	if err := ch.QueueBind(q.Name, BindingKey, ExchangeName, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("bind queue: %w", err)
	}
	if err := ch.Qos(1, 0, false); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("set qos: %w", err)
	}

	logger.Info("consumer initialized",
		zap.String("queue", q.Name),
		zap.String("exchange", ExchangeName),
		zap.String("binding", BindingKey),
	)
	return &AMQPConsumer{conn: conn, channel: ch, queue: q.Name, logger: logger}, nil
}

func (c *AMQPConsumer) Consume(ctx context.Context, h Handler) error {
	deliveries, err := c.channel.ConsumeWithContext(ctx,
		c.queue,
		"keepstreak-notify",
		false, // manual ack
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("register consumer: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-deliveries:
			if !ok {
				return nil
			}
			c.handle(ctx, msg, h)
		}
	}
}

func (c *AMQPConsumer) handle(ctx context.Context, msg amqp091.Delivery, h Handler) {
	log := c.logger.With(zap.String("routing_key", msg.RoutingKey), zap.String("message_id", msg.MessageId))

	defer func() {
		if r := recover(); r != nil {
			log.Error("handler panic recovered", zap.Any("panic", r))
			if err := msg.Nack(false, true); err != nil {
				log.Error("nack after panic failed", zap.Error(err))
			}
		}
	}()

	var ev habit.Event
	if err := json.Unmarshal(msg.Body, &ev); err != nil {
		// Malformed payloads are dropped, not requeued.
		log.Error("decode event failed, rejecting", zap.Error(err))
		if err := msg.Nack(false, false); err != nil {
			log.Error("nack failed", zap.Error(err))
		}
		return
	}

	if err := h(ctx, ev); err != nil {
		log.Error("handler error, requeueing", zap.Int64("habit_id", ev.HabitID), zap.Error(err))
		if err := msg.Nack(false, true); err != nil {
			log.Error("nack failed", zap.Error(err))
		}
		return
	}
	if err := msg.Ack(false); err != nil {
		log.Error("ack failed", zap.Error(err))
	}
}

func (c *AMQPConsumer) Close() {
	if c.channel != nil {
		_ = c.channel.Close()
	}
	if c.conn != nil {
		_ = c.conn.Close()
	}
}
