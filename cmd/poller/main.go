package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"tg-memes-bot/internal/adapters/reddit"
	"tg-memes-bot/internal/adapters/repo"
	"tg-memes-bot/internal/domain"
	"tg-memes-bot/internal/infra/cache"
	"tg-memes-bot/internal/infra/config"
	"tg-memes-bot/internal/infra/db"
	applog "tg-memes-bot/internal/infra/log"
	"tg-memes-bot/internal/infra/metrics"
	"tg-memes-bot/internal/infra/queue"
)

// Сколько живёт барьер от повторной постановки поста в очередь.
const enqueueBarrierTTL = 48 * time.Hour

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.StartServer(ctx, logger.With().Str("component", "metrics").Logger(), ":9091")

	pool, err := db.Connect(cfg.PGDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("poller: нет подключения к БД")
	}
	defer pool.Close()
	storage := repo.NewPostgres(pool, logger.With().Str("component", "repo").Logger())
	if err := storage.EnsureSchema(ctx); err != nil {
		logger.Fatal().Err(err).Msg("poller: не удалось подготовить схему БД")
	}

	jobs, barrier := buildQueue(cfg, logger)

	feed := reddit.NewClient(cfg.Reddit.Subreddits, cfg.Reddit.RequestLimit, cfg.Reddit.UserAgent, logger.With().Str("component", "reddit").Logger())

	logger.Info().
		Strs("subreddits", cfg.Reddit.Subreddits).
		Dur("interval", cfg.Pipeline.PollInterval).
		Msg("poller: запущен")

	poll(ctx, logger, feed, jobs, barrier)

	pollTicker := time.NewTicker(cfg.Pipeline.PollInterval)
	defer pollTicker.Stop()
	pruneTicker := time.NewTicker(24 * time.Hour)
	defer pruneTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("poller: остановка")
			return
		case <-pollTicker.C:
			poll(ctx, logger, feed, jobs, barrier)
		case <-pruneTicker.C:
			prune(ctx, logger, storage, cfg.History.RetentionDays)
		}
	}
}

// buildQueue выбирает реализацию очереди: RabbitMQ, если задан адрес,
// иначе Redis. Барьер от повторной постановки работает только с Redis.
func buildQueue(cfg config.AppConfig, logger zerolog.Logger) (domain.AdmissionQueue, domain.Cache) {
	var barrier domain.Cache
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		barrier = cache.NewRedis(client)
		if cfg.RabbitURL == "" {
			return queue.NewRedisAdmissionQueue(client, cfg.Queues.Admission), barrier
		}
	}
	if cfg.RabbitURL == "" {
		logger.Fatal().Msg("poller: не задан ни RABBITMQ_URL, ни REDIS_ADDR")
	}
	jobs, err := queue.NewRabbitAdmissionQueue(cfg.RabbitURL, cfg.Queues.Admission)
	if err != nil {
		logger.Fatal().Err(err).Msg("poller: не удалось инициализировать очередь RabbitMQ")
	}
	return jobs, barrier
}

func poll(ctx context.Context, logger zerolog.Logger, feed domain.FeedSource, jobs domain.AdmissionQueue, barrier domain.Cache) {
	subs, err := feed.Fetch(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("poller: опрос ленты не удался")
		return
	}

	enqueued := 0
	for _, sub := range subs {
		job := domain.AdmissionJob{
			ID:         uuid.NewString(),
			Submission: sub,
			EnqueuedAt: time.Now().UTC(),
		}
		err := enqueueOnce(ctx, jobs, barrier, job)
		if err != nil {
			logger.Error().Err(err).Str("post_id", sub.ID).Msg("poller: не удалось поставить задачу")
			continue
		}
		enqueued++
	}

	if depth, err := jobs.Len(ctx); err == nil {
		metrics.QueueDepth.Set(float64(depth))
	}
	logger.Info().Int("fetched", len(subs)).Int("enqueued", enqueued).Msg("poller: опрос завершён")
}

func enqueueOnce(ctx context.Context, jobs domain.AdmissionQueue, barrier domain.Cache, job domain.AdmissionJob) error {
	if barrier == nil {
		return jobs.Enqueue(ctx, job)
	}
	return barrier.Once("enqueued:"+job.Submission.ID, enqueueBarrierTTL, func() error {
		return jobs.Enqueue(ctx, job)
	})
}

func prune(ctx context.Context, logger zerolog.Logger, storage *repo.Postgres, retentionDays int) {
	if retentionDays <= 0 {
		return
	}
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	removed, err := storage.Prune(ctx, cutoff)
	if err != nil {
		logger.Error().Err(err).Msg("poller: очистка истории не удалась")
		return
	}
	metrics.HistoryPruned.Add(float64(removed))
	logger.Info().Int64("removed", removed).Time("cutoff", cutoff).Msg("poller: история очищена")
}
