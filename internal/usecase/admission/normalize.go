package admission

import (
	"regexp"
	"strings"

	"tg-memes-bot/internal/domain"
)

// Шаблоны классификации медиассылок. gif и gifv считаются видео: перед
// публикацией они конвертируются в mp4.
var (
	imageRe = regexp.MustCompile(`(?i)\.(png|jpe?g)$`)
	videoRe = regexp.MustCompile(`(?i)(\.mp4$)|(v\.redd\.it)`)
	gifRe   = regexp.MustCompile(`(?i)\.gifv?$`)
)

// Normalize превращает сырой пост ленты в кандидата или отклоняет его.
// Проверки идут по порядку: закреплённые и текстовые посты отсекаются до
// классификации ссылки. Сетевых вызовов нет.
func Normalize(sub domain.RawSubmission) (domain.Candidate, domain.Verdict) {
	if sub.Stickied {
		return domain.Candidate{}, domain.Reject(domain.RejectClassification, "stickied")
	}
	if sub.SelfText || strings.TrimSpace(sub.URL) == "" {
		return domain.Candidate{}, domain.Reject(domain.RejectClassification, "self_post")
	}
	if sub.Gallery || strings.Contains(sub.URL, "gallery") {
		return domain.Candidate{}, domain.Reject(domain.RejectClassification, "gallery")
	}

	kind, ok := classify(sub.URL)
	if !ok {
		return domain.Candidate{}, domain.Reject(domain.RejectClassification, "unsupported_media")
	}

	return domain.Candidate{
		ID:        sub.ID,
		Title:     sub.Title,
		Kind:      kind,
		URL:       sub.URL,
		Subreddit: sub.Subreddit,
		Score:     sub.Score,
		CreatedAt: sub.CreatedAt,
	}, domain.Pass()
}

func classify(url string) (domain.MediaKind, bool) {
	switch {
	case imageRe.MatchString(url):
		return domain.MediaImage, true
	case videoRe.MatchString(url), gifRe.MatchString(url):
		return domain.MediaVideo, true
	default:
		return "", false
	}
}
