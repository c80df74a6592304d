package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"tg-memes-bot/internal/domain"
)

// RedisAdmissionQueue реализует очередь задач на базе Redis lists.
type RedisAdmissionQueue struct {
	client *redis.Client
	key    string
}

// NewRedisAdmissionQueue создаёт очередь по указанному ключу.
func NewRedisAdmissionQueue(client *redis.Client, key string) *RedisAdmissionQueue {
	return &RedisAdmissionQueue{client: client, key: key}
}

// Enqueue публикует задачу в очередь.
func (q *RedisAdmissionQueue) Enqueue(ctx context.Context, job domain.AdmissionJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	if err := q.client.LPush(ctx, q.key, payload).Err(); err != nil {
		return fmt.Errorf("push job: %w", err)
	}
	return nil
}

// Pop блокирующе читает задачу из очереди.
func (q *RedisAdmissionQueue) Pop(ctx context.Context) (domain.AdmissionJob, error) {
	for {
		if err := ctx.Err(); err != nil {
			return domain.AdmissionJob{}, err
		}

		res, err := q.client.BRPop(ctx, time.Second, q.key).Result()
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				if ctx.Err() != nil {
					return domain.AdmissionJob{}, ctx.Err()
				}
				continue
			}
			if errors.Is(err, redis.Nil) {
				continue
			}
			return domain.AdmissionJob{}, err
		}
		if len(res) != 2 {
			return domain.AdmissionJob{}, errors.New("redis queue: unexpected response")
		}
		var job domain.AdmissionJob
		if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
			return domain.AdmissionJob{}, fmt.Errorf("decode job: %w", err)
		}
		return job, nil
	}
}

// Len возвращает число задач в очереди.
func (q *RedisAdmissionQueue) Len(ctx context.Context) (int64, error) {
	n, err := q.client.LLen(ctx, q.key).Result()
	if err != nil {
		return 0, fmt.Errorf("len queue: %w", err)
	}
	return n, nil
}

var _ domain.AdmissionQueue = (*RedisAdmissionQueue)(nil)
