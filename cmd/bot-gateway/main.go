package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	chi "github.com/go-chi/chi/v5"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"tg-memes-bot/internal/adapters/bot"
	"tg-memes-bot/internal/adapters/repo"
	"tg-memes-bot/internal/domain"
	"tg-memes-bot/internal/infra/config"
	"tg-memes-bot/internal/infra/db"
	applog "tg-memes-bot/internal/infra/log"
	"tg-memes-bot/internal/infra/queue"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv)

	pool, err := db.Connect(cfg.PGDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("bot-gateway: нет подключения к БД")
	}
	defer pool.Close()
	storage := repo.NewPostgres(pool, logger.With().Str("component", "repo").Logger())

	jobs := buildQueue(cfg, logger)

	if cfg.Telegram.Token == "" {
		logger.Fatal().Msg("bot-gateway: не указан токен Telegram (TG_BOT_TOKEN)")
	}
	botAPI, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		logger.Fatal().Err(err).Msg("bot-gateway: не удалось создать бота")
	}

	h := bot.NewHandler(botAPI, logger.With().Str("component", "bot").Logger(), jobs, storage.StoredCounts, cfg.Telegram.Admins)

	r := chi.NewRouter()
	r.Post("/bot/webhook", func(w http.ResponseWriter, r *http.Request) {
		var update tgbotapi.Update
		if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.HandleUpdate(r.Context(), update)
		w.WriteHeader(http.StatusOK)
	})

	srv := &http.Server{Addr: fmt.Sprintf(":%d", cfg.Port), Handler: r}
	go func() {
		logger.Info().Int("port", cfg.Port).Msg("bot-gateway: запущен")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("bot-gateway: HTTP сервер остановлен")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	logger.Info().Msg("bot-gateway: остановка")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

func buildQueue(cfg config.AppConfig, logger zerolog.Logger) domain.AdmissionQueue {
	if cfg.RabbitURL != "" {
		jobs, err := queue.NewRabbitAdmissionQueue(cfg.RabbitURL, cfg.Queues.Admission)
		if err != nil {
			logger.Fatal().Err(err).Msg("bot-gateway: не удалось инициализировать очередь RabbitMQ")
		}
		return jobs
	}
	if cfg.RedisAddr == "" {
		logger.Fatal().Msg("bot-gateway: не задан ни RABBITMQ_URL, ни REDIS_ADDR")
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	return queue.NewRedisAdmissionQueue(client, cfg.Queues.Admission)
}
