// Package broker wraps an AMQP connection/channel for the durable
// exchange/queue binding described in spec §4.5/§6, grounded on
// go-enhanced-rag-service's amqp.Dial/Channel/Publish usage.
package broker

import (
	"context"
	"fmt"

	"github.com/streadway/amqp"
	"go.uber.org/zap"
)

// Acknowledger is the subset of amqp.Acknowledger a Delivery needs.
// Keeping it as an interface (rather than embedding amqp.Delivery
// directly) lets tests construct a Delivery with a fake acknowledger
// instead of a live channel.
type Acknowledger interface {
	Ack(tag uint64, multiple bool) error
	Nack(tag uint64, multiple, requeue bool) error
}

// Delivery is the subset of amqp.Delivery the consumer needs, kept
// narrow so tests can fake it without a live broker.
type Delivery struct {
	Body         []byte
	tag          uint64
	acknowledger Acknowledger
}

// NewDelivery builds a Delivery directly, for tests that need to
// drive consumer.Consumer without a live broker connection.
func NewDelivery(body []byte, tag uint64, ack Acknowledger) Delivery {
	return Delivery{Body: body, tag: tag, acknowledger: ack}
}

// Ack acknowledges the message.
func (d Delivery) Ack() error { return d.acknowledger.Ack(d.tag, false) }

// Nack rejects the message. requeue controls whether the broker
// redelivers it; poison messages must pass requeue=false.
func (d Delivery) Nack(requeue bool) error { return d.acknowledger.Nack(d.tag, false, requeue) }

// Connection owns a durable AMQP connection and channel, declares the
// exchange/queue/binding, and exposes manual-ack consumption with
// prefetch=1 (spec §4.5/§5).
type Connection struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	queue   string
	logger  *zap.Logger
}

// Dial connects to url and declares a durable exchange, a durable
// queue bound to it with routingKey, and sets prefetch=1 on the
// channel.
func Dial(url, exchange, queue, routingKey string, logger *zap.Logger) (*Connection, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial broker: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange %q: %w", exchange, err)
	}

	q, err := ch.QueueDeclare(queue, true, false, false, false, nil)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare queue %q: %w", queue, err)
	}

	if err := ch.QueueBind(q.Name, routingKey, exchange, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("bind queue %q: %w", queue, err)
	}

	if err := ch.Qos(1, 0, false); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("set prefetch: %w", err)
	}

	logger.Info("broker connected",
		zap.String("exchange", exchange),
		zap.String("queue", q.Name),
		zap.String("routing_key", routingKey))

	return &Connection{conn: conn, channel: ch, queue: q.Name, logger: logger}, nil
}

// Consume returns a channel of Delivery values for manual ack/nack by
// the caller. One message is delivered at a time per prefetch=1.
func (c *Connection) Consume(ctx context.Context) (<-chan Delivery, error) {
	raw, err := c.channel.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("consume queue %q: %w", c.queue, err)
	}

	out := make(chan Delivery)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case d, ok := <-raw:
				if !ok {
					return
				}
				select {
				case out <- Delivery{Body: d.Body, tag: d.DeliveryTag, acknowledger: d.Acknowledger}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// Publish sends a persistent (delivery_mode=2) message to exchange
// with routingKey.
func (c *Connection) Publish(ctx context.Context, exchange, routingKey string, body []byte) error {
	return c.channel.Publish(exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
}

// Close shuts down the channel then the connection, matching the
// worker's graceful-shutdown ordering (spec §4.5 cancellation).
func (c *Connection) Close() error {
	if err := c.channel.Close(); err != nil {
		c.logger.Warn("closing broker channel", zap.Error(err))
	}
	return c.conn.Close()
}
