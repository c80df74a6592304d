package main

import (
	"context"
	"errors"
	"os/signal"
	"sync"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"tg-memes-bot/internal/adapters/hasher"
	"tg-memes-bot/internal/adapters/media"
	"tg-memes-bot/internal/adapters/ocr"
	"tg-memes-bot/internal/adapters/repo"
	"tg-memes-bot/internal/adapters/telegram"
	"tg-memes-bot/internal/domain"
	"tg-memes-bot/internal/infra/config"
	"tg-memes-bot/internal/infra/db"
	apphttp "tg-memes-bot/internal/infra/http"
	applog "tg-memes-bot/internal/infra/log"
	"tg-memes-bot/internal/infra/metrics"
	"tg-memes-bot/internal/infra/queue"
	"tg-memes-bot/internal/usecase/admission"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.StartServer(ctx, logger.With().Str("component", "metrics").Logger(), ":9090")

	pool, err := db.Connect(cfg.PGDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: нет подключения к БД")
	}
	defer pool.Close()
	storage := repo.NewPostgres(pool, logger.With().Str("component", "repo").Logger())
	if err := storage.EnsureSchema(ctx); err != nil {
		logger.Fatal().Err(err).Msg("worker: не удалось подготовить схему БД")
	}

	jobs := buildQueue(cfg, logger)

	assembler, err := media.NewAssembler(media.Config{
		TempDir:         cfg.Media.TempDir,
		RetryMax:        cfg.Media.RetryMax,
		RetryBackoff:    cfg.Media.RetryBackoff,
		MaxGifSizeMB:    cfg.Media.MaxGifSizeMB,
		FFmpegTimeout:   cfg.Media.FFmpegTimeout,
		DownloadTimeout: cfg.Media.DownloadTimeout,
	}, logger.With().Str("component", "media").Logger())
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: не удалось создать сборщик медиа")
	}
	assembler.CleanTempDir()

	if cfg.Telegram.Token == "" {
		logger.Fatal().Msg("worker: не указан токен Telegram (TG_BOT_TOKEN)")
	}
	botAPI, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: не удалось создать бота")
	}
	publisher := telegram.NewPublisher(botAPI, cfg.Telegram.Channel, cfg.Telegram.Caption, logger.With().Str("component", "telegram").Logger())

	service := admission.NewService(
		logger.With().Str("component", "admission").Logger(),
		storage,
		storage,
		assembler,
		ocr.NewTesseract(cfg.OCR.TesseractBin, cfg.OCR.TesseractTimeout, logger.With().Str("component", "ocr").Logger()),
		hasher.NewDHash(),
		publisher,
		admission.NewTermFilter(cfg.Filter.BannedTerms),
		admission.Options{
			OCREnabled:    cfg.Filter.OCREnabled,
			HashThreshold: cfg.Dedup.HashThreshold,
			Workers:       cfg.Pipeline.Workers,
		},
	)

	apphttp.StartStatusServer(ctx, logger.With().Str("component", "status").Logger(), ":8081", func(ctx context.Context) (any, error) {
		candidates, records, err := storage.StoredCounts(ctx)
		if err != nil {
			return nil, err
		}
		depth, err := jobs.Len(ctx)
		if err != nil {
			depth = -1
		}
		return map[string]any{
			"candidates_seen": candidates,
			"history_records": records,
			"queue_depth":     depth,
		}, nil
	})

	logger.Info().Int("workers", cfg.Pipeline.Workers).Msg("worker: запущен")

	var wg sync.WaitGroup
	for w := 0; w < cfg.Pipeline.Workers; w++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			runWorker(ctx, logger.With().Int("worker", n).Logger(), jobs, service)
		}(w)
	}
	wg.Wait()
	logger.Info().Msg("worker: остановка")
}

func buildQueue(cfg config.AppConfig, logger zerolog.Logger) domain.AdmissionQueue {
	if cfg.RabbitURL != "" {
		jobs, err := queue.NewRabbitAdmissionQueue(cfg.RabbitURL, cfg.Queues.Admission)
		if err != nil {
			logger.Fatal().Err(err).Msg("worker: не удалось инициализировать очередь RabbitMQ")
		}
		return jobs
	}
	if cfg.RedisAddr == "" {
		logger.Fatal().Msg("worker: не задан ни RABBITMQ_URL, ни REDIS_ADDR")
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	return queue.NewRedisAdmissionQueue(client, cfg.Queues.Admission)
}

func runWorker(ctx context.Context, logger zerolog.Logger, jobs domain.AdmissionQueue, service *admission.Service) {
	for {
		job, err := jobs.Pop(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return
			}
			logger.Error().Err(err).Msg("worker: не удалось получить задачу")
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		logger.Debug().
			Str("job_id", job.ID).
			Str("post_id", job.Submission.ID).
			Bool("manual", job.Manual).
			Msg("worker: задача получена")
		service.Process(ctx, job.Submission)

		if depth, err := jobs.Len(ctx); err == nil {
			metrics.QueueDepth.Set(float64(depth))
		}
	}
}
