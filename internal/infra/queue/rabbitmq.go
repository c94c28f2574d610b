package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"sprachtrainer-gateway/internal/domain"
	"sprachtrainer-gateway/internal/infra/metrics"
)

// RabbitAuthEvents публикует события аутентификации в очередь RabbitMQ.
type RabbitAuthEvents struct {
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue string
}

var _ domain.AuthEventSink = (*RabbitAuthEvents)(nil)

// NewRabbitAuthEvents подключается к RabbitMQ и объявляет durable-очередь.
func NewRabbitAuthEvents(amqpURL, queue string) (*RabbitAuthEvents, error) {
	if amqpURL == "" {
		return nil, fmt.Errorf("amqp url пуст")
	}
	if queue == "" {
		return nil, fmt.Errorf("имя очереди пусто")
	}
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("подключение к rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("открытие канала: %w", err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("объявление очереди: %w", err)
	}
	return &RabbitAuthEvents{conn: conn, ch: ch, queue: queue}, nil
}

// Publish отправляет событие в очередь.
func (q *RabbitAuthEvents) Publish(ctx context.Context, event domain.AuthEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("кодирование события: %w", err)
	}
	start := time.Now()
	err = q.ch.PublishWithContext(ctx, "", q.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    event.At,
		Body:         payload,
	})
	metrics.ObserveNetworkRequest("rabbitmq", "publish", q.queue, start, err)
	if err != nil {
		return fmt.Errorf("публикация события: %w", err)
	}
	return nil
}

// Close закрывает канал и соединение.
func (q *RabbitAuthEvents) Close() error {
	if err := q.ch.Close(); err != nil {
		_ = q.conn.Close()
		return err
	}
	return q.conn.Close()
}
