package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

const EventsExchange = "creaverse_events"

// RabbitMQ wraps one connection and channel bound to a topic exchange.
type RabbitMQ struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
	mu       sync.Mutex
}

// ConnectRabbitMQ dials the broker and declares the topic exchange.
func ConnectRabbitMQ(url, exchange string) (*RabbitMQ, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	// Создаем exchange типа topic
	if err := channel.ExchangeDeclare(
		exchange,
		"topic",
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,   // args
	); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}
	slog.Info("RabbitMQ initialized", "exchange", exchange)
	return &RabbitMQ{conn: conn, channel: channel, exchange: exchange}, nil
}

func (r *RabbitMQ) Connected() bool {
	return r != nil && r.conn != nil && !r.conn.IsClosed()
}

func (r *RabbitMQ) Publish(ctx context.Context, routingKey string, body []byte) error {
	if !r.Connected() {
		return fmt.Errorf("RabbitMQ channel not initialized")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.channel.PublishWithContext(ctx,
		r.exchange,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
		},
	)
}

// Consume binds queueName to the exchange with bindingKey and calls handle for
// every delivery until ctx is done or the channel closes.
func (r *RabbitMQ) Consume(ctx context.Context, queueName, bindingKey string, handle func(context.Context, []byte)) error {
	if !r.Connected() {
		return fmt.Errorf("RabbitMQ channel not initialized")
	}
	q, err := r.channel.QueueDeclare(
		queueName,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		return fmt.Errorf("failed to declare queue: %w", err)
	}
	if err := r.channel.QueueBind(q.Name, bindingKey, r.exchange, false, nil); err != nil {
		return fmt.Errorf("failed to bind queue: %w", err)
	}
	msgs, err := r.channel.Consume(
		q.Name,
		"",
		true,  // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to start consumer: %w", err)
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					slog.Warn("RabbitMQ delivery channel closed", "queue", q.Name)
					return
				}
				handle(ctx, msg.Body)
			}
		}
	}()
	return nil
}

func (r *RabbitMQ) Close() error {
	if r == nil || r.conn == nil {
		return nil
	}
	if r.channel != nil {
		_ = r.channel.Close()
	}
	return r.conn.Close()
}
