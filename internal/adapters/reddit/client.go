package reddit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"tg-memes-bot/internal/domain"
	"tg-memes-bot/internal/infra/metrics"
)

// Client читает горячие посты сабреддитов через публичный JSON-листинг.
type Client struct {
	log        zerolog.Logger
	http       *http.Client
	subreddits []string
	limit      int
	userAgent  string
}

var _ domain.FeedSource = (*Client)(nil)

// NewClient создаёт клиент ленты. limit — сколько постов запрашивать с
// каждого сабреддита за один опрос.
func NewClient(subreddits []string, limit int, userAgent string, logger zerolog.Logger) *Client {
	if limit <= 0 {
		limit = 25
	}
	if userAgent == "" {
		userAgent = "tg-memes-bot/1.0"
	}
	return &Client{
		log:        logger,
		http:       &http.Client{Timeout: 30 * time.Second},
		subreddits: subreddits,
		limit:      limit,
		userAgent:  userAgent,
	}
}

// listing — формат ответа reddit. Поля, которые мы не читаем, опущены.
type listing struct {
	Data struct {
		Children []struct {
			Data struct {
				ID         string  `json:"id"`
				Title      string  `json:"title"`
				URL        string  `json:"url"`
				Subreddit  string  `json:"subreddit"`
				Score      int     `json:"score"`
				IsSelf     bool    `json:"is_self"`
				Stickied   bool    `json:"stickied"`
				IsGallery  bool    `json:"is_gallery"`
				CreatedUTC float64 `json:"created_utc"`
			} `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

// Fetch собирает горячие посты со всех настроенных сабреддитов, отсортированные
// по убыванию рейтинга. Недоступный сабреддит пропускается с предупреждением,
// ошибка возвращается только если не ответил ни один.
func (c *Client) Fetch(ctx context.Context) ([]domain.RawSubmission, error) {
	var (
		subs    []domain.RawSubmission
		lastErr error
		ok      int
	)
	for _, name := range c.subreddits {
		batch, err := c.fetchSubreddit(ctx, name)
		if err != nil {
			c.log.Warn().Err(err).Str("subreddit", name).Msg("reddit: сабреддит недоступен")
			lastErr = err
			continue
		}
		ok++
		subs = append(subs, batch...)
	}
	if ok == 0 && lastErr != nil {
		return nil, fmt.Errorf("опрос ленты: %w", lastErr)
	}

	sort.SliceStable(subs, func(i, j int) bool {
		return subs[i].Score > subs[j].Score
	})
	return subs, nil
}

func (c *Client) fetchSubreddit(ctx context.Context, name string) ([]domain.RawSubmission, error) {
	url := fmt.Sprintf("https://www.reddit.com/r/%s/hot.json?limit=%d", name, c.limit)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)

	start := time.Now()
	resp, err := c.http.Do(req)
	metrics.ObserveNetworkRequest("reddit", "listing", name, start, err)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("статус %d", resp.StatusCode)
	}

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return parseListing(payload)
}

func parseListing(payload []byte) ([]domain.RawSubmission, error) {
	var raw listing
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, fmt.Errorf("разбор листинга: %w", err)
	}

	subs := make([]domain.RawSubmission, 0, len(raw.Data.Children))
	for _, child := range raw.Data.Children {
		d := child.Data
		subs = append(subs, domain.RawSubmission{
			ID:        d.ID,
			Title:     d.Title,
			URL:       d.URL,
			Subreddit: d.Subreddit,
			Score:     d.Score,
			SelfText:  d.IsSelf,
			Stickied:  d.Stickied,
			Gallery:   d.IsGallery,
			CreatedAt: time.Unix(int64(d.CreatedUTC), 0).UTC(),
		})
	}
	return subs, nil
}
