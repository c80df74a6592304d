package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"tg-memes-bot/internal/domain"
	"tg-memes-bot/internal/infra/metrics"
)

// RabbitAdmissionQueue реализует очередь задач поверх AMQP.
type RabbitAdmissionQueue struct {
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue string

	mu         sync.Mutex
	deliveries <-chan amqp.Delivery
}

// NewRabbitAdmissionQueue подключается к брокеру и объявляет durable очередь.
func NewRabbitAdmissionQueue(amqpURL, queue string) (*RabbitAdmissionQueue, error) {
	if amqpURL == "" {
		return nil, errors.New("amqp url is empty")
	}
	if queue == "" {
		return nil, errors.New("queue name is empty")
	}
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare queue: %w", err)
	}
	return &RabbitAdmissionQueue{conn: conn, ch: ch, queue: queue}, nil
}

// Enqueue публикует задачу в очередь.
func (q *RabbitAdmissionQueue) Enqueue(ctx context.Context, job domain.AdmissionJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	start := time.Now()
	err = q.ch.PublishWithContext(ctx, "", q.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         payload,
	})
	metrics.ObserveNetworkRequest("rabbitmq", "publish", q.queue, start, err)
	if err != nil {
		return fmt.Errorf("publish job: %w", err)
	}
	return nil
}

// Pop блокирующе читает задачу из очереди.
func (q *RabbitAdmissionQueue) Pop(ctx context.Context) (domain.AdmissionJob, error) {
	deliveries, err := q.consumer()
	if err != nil {
		return domain.AdmissionJob{}, err
	}
	for {
		select {
		case <-ctx.Done():
			return domain.AdmissionJob{}, ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return domain.AdmissionJob{}, errors.New("amqp queue: канал доставки закрыт")
			}
			var job domain.AdmissionJob
			if err := json.Unmarshal(d.Body, &job); err != nil {
				// Нечитаемое сообщение возвращать в очередь бессмысленно.
				_ = d.Nack(false, false)
				continue
			}
			if err := d.Ack(false); err != nil {
				return domain.AdmissionJob{}, fmt.Errorf("ack job: %w", err)
			}
			return job, nil
		}
	}
}

// Len возвращает число сообщений в очереди.
func (q *RabbitAdmissionQueue) Len(ctx context.Context) (int64, error) {
	start := time.Now()
	state, err := q.ch.QueueInspect(q.queue)
	metrics.ObserveNetworkRequest("rabbitmq", "inspect", q.queue, start, err)
	if err != nil {
		return 0, fmt.Errorf("inspect queue: %w", err)
	}
	return int64(state.Messages), nil
}

// Close закрывает канал и подключение.
func (q *RabbitAdmissionQueue) Close() error {
	if err := q.ch.Close(); err != nil {
		_ = q.conn.Close()
		return err
	}
	return q.conn.Close()
}

func (q *RabbitAdmissionQueue) consumer() (<-chan amqp.Delivery, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.deliveries != nil {
		return q.deliveries, nil
	}
	deliveries, err := q.ch.Consume(q.queue, "", false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("start consumer: %w", err)
	}
	q.deliveries = deliveries
	return deliveries, nil
}

var _ domain.AdmissionQueue = (*RabbitAdmissionQueue)(nil)
