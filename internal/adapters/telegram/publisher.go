package telegram

import (
	"context"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"tg-memes-bot/internal/domain"
	"tg-memes-bot/internal/infra/metrics"
)

// Publisher отправляет одобренные медиа в канал через Bot API.
type Publisher struct {
	log     zerolog.Logger
	api     *tgbotapi.BotAPI
	channel string
	caption string
}

var _ domain.Publisher = (*Publisher)(nil)

// NewPublisher создаёт паблишер. channel — @username канала, caption —
// постоянная подпись, добавляемая к каждому посту (может быть пустой).
func NewPublisher(api *tgbotapi.BotAPI, channel, caption string, logger zerolog.Logger) *Publisher {
	if !strings.HasPrefix(channel, "@") && channel != "" {
		channel = "@" + channel
	}
	return &Publisher{log: logger, api: api, channel: channel, caption: caption}
}

// Publish отправляет медиафайл в канал. Картинки уходят как фото, видео —
// как видео с поддержкой стриминга.
func (p *Publisher) Publish(ctx context.Context, asset domain.MediaAsset, title string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	caption := p.buildCaption(title)
	file := tgbotapi.FilePath(asset.Path)

	var send tgbotapi.Chattable
	switch asset.Kind {
	case domain.MediaVideo:
		msg := tgbotapi.NewVideo(0, file)
		msg.ChannelUsername = p.channel
		msg.Caption = caption
		msg.SupportsStreaming = true
		send = msg
	default:
		msg := tgbotapi.NewPhotoToChannel(p.channel, file)
		msg.Caption = caption
		send = msg
	}

	start := time.Now()
	_, err := p.api.Send(send)
	metrics.ObserveNetworkRequest("telegram", "publish", p.channel, start, err)
	if err != nil {
		return fmt.Errorf("отправка в канал %s: %w", p.channel, err)
	}

	p.log.Info().Str("channel", p.channel).Str("kind", string(asset.Kind)).Msg("telegram: пост опубликован")
	return nil
}

func (p *Publisher) buildCaption(title string) string {
	title = strings.TrimSpace(title)
	parts := make([]string, 0, 2)
	if title != "" {
		parts = append(parts, title)
	}
	if p.caption != "" {
		parts = append(parts, p.caption)
	}
	caption := strings.Join(parts, "\n\n")
	if chunks := SplitCaption(caption); len(chunks) > 0 {
		return chunks[0]
	}
	return ""
}
