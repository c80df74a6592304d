package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"tg-memes-bot/internal/adapters/telegram"
	"tg-memes-bot/internal/domain"
	"tg-memes-bot/internal/infra/metrics"
)

// CountsFunc отдаёт количества сохранённых кандидатов и записей истории.
type CountsFunc func(ctx context.Context) (candidates, records int64, err error)

// Handler обслуживает апдейты административного бота. Бот отвечает только
// пользователям из списка администраторов.
type Handler struct {
	bot    *tgbotapi.BotAPI
	log    zerolog.Logger
	jobs   domain.AdmissionQueue
	counts CountsFunc
	admins map[int64]struct{}
}

// NewHandler создаёт обработчик. adminIDs — идентификаторы Telegram-аккаунтов,
// которым разрешены команды.
func NewHandler(bot *tgbotapi.BotAPI, log zerolog.Logger, jobs domain.AdmissionQueue, counts CountsFunc, adminIDs []int64) *Handler {
	admins := make(map[int64]struct{}, len(adminIDs))
	for _, id := range adminIDs {
		admins[id] = struct{}{}
	}
	return &Handler{bot: bot, log: log, jobs: jobs, counts: counts, admins: admins}
}

// HandleUpdate обрабатывает входящий апдейт.
func (h *Handler) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	if upd.Message == nil {
		return
	}
	h.handleMessage(ctx, upd.Message)
}

func (h *Handler) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil {
		return
	}
	text := strings.TrimSpace(msg.Text)

	// /start и /ping доступны всем, остальные команды — только администраторам.
	switch {
	case strings.HasPrefix(text, "/start"):
		h.handleStart(msg.Chat.ID)
		return
	case strings.HasPrefix(text, "/ping"):
		h.reply(msg.Chat.ID, "pong")
		return
	}

	if _, ok := h.admins[msg.From.ID]; !ok {
		h.log.Warn().Int64("user_id", msg.From.ID).Msg("bot: команда от постороннего пользователя")
		h.reply(msg.Chat.ID, "Доступ запрещён")
		return
	}

	switch {
	case strings.HasPrefix(text, "/status"):
		h.handleStatus(ctx, msg.Chat.ID)
	case strings.HasPrefix(text, "/queue"):
		h.handleQueue(ctx, msg.Chat.ID)
	case strings.HasPrefix(text, "/post"):
		url := strings.TrimSpace(strings.TrimPrefix(text, "/post"))
		h.handlePost(ctx, msg.Chat.ID, url)
	default:
		h.reply(msg.Chat.ID, "Неизвестная команда. Доступны: /ping, /status, /queue, /post <url>")
	}
}

func (h *Handler) handleStart(chatID int64) {
	h.reply(chatID, strings.Join([]string{
		"Бот управления конвейером мемов.",
		"",
		"/ping — проверить, что бот жив",
		"/status — размеры хранилища",
		"/queue — глубина очереди задач",
		"/post <url> — поставить пост в очередь вручную",
	}, "\n"))
}

func (h *Handler) handleStatus(ctx context.Context, chatID int64) {
	candidates, records, err := h.counts(ctx)
	if err != nil {
		h.log.Error().Err(err).Msg("bot: не удалось получить статистику хранилища")
		h.reply(chatID, "Не удалось получить статистику")
		return
	}
	h.reply(chatID, fmt.Sprintf("Просмотрено постов: %d\nЗаписей истории: %d", candidates, records))
}

func (h *Handler) handleQueue(ctx context.Context, chatID int64) {
	depth, err := h.jobs.Len(ctx)
	if err != nil {
		h.log.Error().Err(err).Msg("bot: не удалось получить глубину очереди")
		h.reply(chatID, "Не удалось получить глубину очереди")
		return
	}
	h.reply(chatID, fmt.Sprintf("Задач в очереди: %d", depth))
}

func (h *Handler) handlePost(ctx context.Context, chatID int64, url string) {
	if url == "" || !strings.HasPrefix(url, "http") {
		h.reply(chatID, "Использование: /post <url>")
		return
	}

	id := uuid.NewString()
	job := domain.AdmissionJob{
		ID: id,
		Submission: domain.RawSubmission{
			ID:        "manual-" + id,
			URL:       url,
			CreatedAt: time.Now().UTC(),
		},
		Manual:     true,
		EnqueuedAt: time.Now().UTC(),
	}
	if err := h.jobs.Enqueue(ctx, job); err != nil {
		h.log.Error().Err(err).Str("url", url).Msg("bot: не удалось поставить задачу")
		h.reply(chatID, "Не удалось поставить задачу в очередь")
		return
	}
	h.reply(chatID, "Пост поставлен в очередь: "+url)
}

func (h *Handler) reply(chatID int64, text string) {
	for _, part := range telegram.SplitMessage(text) {
		msg := tgbotapi.NewMessage(chatID, part)
		start := time.Now()
		_, err := h.bot.Send(msg)
		metrics.ObserveNetworkRequest("telegram_bot", "send_message", strconv.FormatInt(chatID, 10), start, err)
		if err != nil {
			h.log.Error().Err(err).Msg("bot: не удалось отправить сообщение")
			return
		}
	}
}
