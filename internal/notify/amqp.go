package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"expensetracker/internal/logger"
)

const publishTimeout = 5 * time.Second

// publisher is the subset of *amqp091.Channel used for sending.
type publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
}

// AMQPDispatcher publishes notifications as persistent JSON messages on a
// durable direct exchange.
type AMQPDispatcher struct {
	conn       *amqp091.Connection
	channel    *amqp091.Channel
	pub        publisher
	exchange   string
	routingKey string
}

// NewAMQPDispatcher connects to the broker and declares the exchange and
// queue. The queue name doubles as the routing key.
func NewAMQPDispatcher(url, exchange, queue string) (*AMQPDispatcher, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	d := &AMQPDispatcher{
		conn:       conn,
		channel:    channel,
		pub:        channel,
		exchange:   exchange,
		routingKey: queue,
	}

	if err := d.setup(); err != nil {
		d.Close()
		return nil, fmt.Errorf("setup exchange and queue: %w", err)
	}

	return d, nil
}

func (d *AMQPDispatcher) setup() error {
	if err := d.channel.ExchangeDeclare(
		d.exchange, // name
		"direct",   // type
		true,       // durable
		false,      // auto-deleted
		false,      // internal
		false,      // no-wait
		nil,        // arguments
	); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	if _, err := d.channel.QueueDeclare(
		d.routingKey, // name
		true,         // durable
		false,        // delete when unused
		false,        // exclusive
		false,        // no-wait
		nil,          // arguments
	); err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	if err := d.channel.QueueBind(d.routingKey, d.routingKey, d.exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}

	return nil
}

// Dispatch publishes msg, giving up after five seconds.
func (d *AMQPDispatcher) Dispatch(ctx context.Context, msg Message) error {
	body, err := msg.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err = d.pub.PublishWithContext(
		ctx,
		d.exchange,   // exchange
		d.routingKey, // routing key
		false,        // mandatory
		false,        // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    msg.CreatedAt,
			Type:         msg.Type,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish message: %w", err)
	}

	logger.Named("notify").Debugw("Published budget notification",
		"user_id", msg.UserID,
		"budget_id", msg.BudgetID,
		"type", msg.Type,
		"exchange", d.exchange,
	)
	return nil
}

// Close closes the channel and the connection.
func (d *AMQPDispatcher) Close() error {
	if d.channel != nil {
		d.channel.Close()
	}
	if d.conn != nil {
		return d.conn.Close()
	}
	return nil
}
