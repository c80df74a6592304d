package config

import (
	"log"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// AppConfig описывает конфигурацию сервисов.
type AppConfig struct {
	AppEnv string `envconfig:"APP_ENV" default:"dev"`
	TZ     string `envconfig:"TZ" default:"Europe/Rome"`
	Port   int    `envconfig:"PORT" default:"8080"`

	Reddit struct {
		Subreddits   []string `envconfig:"REDDIT_SUBREDDITS" default:"memes,dankmemes"`
		RequestLimit int      `envconfig:"REDDIT_REQUEST_LIMIT" default:"50"`
		UserAgent    string   `envconfig:"REDDIT_USER_AGENT" default:"tg-memes-bot"`
	} `envconfig:""`

	Telegram struct {
		Token   string  `envconfig:"TG_BOT_TOKEN"`
		Channel string  `envconfig:"TG_CHANNEL"`
		Admins  []int64 `envconfig:"TG_ADMINS"`
		Caption string  `envconfig:"POST_CAPTION"`
	} `envconfig:""`

	Filter struct {
		BannedTerms []string `envconfig:"BANNED_TERMS"`
		OCREnabled  bool     `envconfig:"OCR_ENABLED" default:"true"`
	} `envconfig:""`

	Dedup struct {
		// Порог расстояния Хэмминга: меньше или равно — дубликат.
		HashThreshold int `envconfig:"DEDUP_HASH_THRESHOLD" default:"10"`
	} `envconfig:""`

	History struct {
		RetentionDays int `envconfig:"HISTORY_RETENTION_DAYS" default:"60"`
	} `envconfig:""`

	Pipeline struct {
		Workers      int           `envconfig:"PIPELINE_WORKERS" default:"4"`
		PollInterval time.Duration `envconfig:"POLL_INTERVAL" default:"30m"`
	} `envconfig:""`

	Media struct {
		TempDir         string        `envconfig:"MEDIA_TEMP_DIR" default:"/tmp/tg-memes-bot"`
		RetryMax        int           `envconfig:"MEDIA_RETRY_MAX" default:"3"`
		RetryBackoff    time.Duration `envconfig:"MEDIA_RETRY_BACKOFF" default:"2s"`
		MaxGifSizeMB    float64       `envconfig:"MAX_GIF_SIZE_MB" default:"20"`
		FFmpegTimeout   time.Duration `envconfig:"FFMPEG_TIMEOUT" default:"2m"`
		DownloadTimeout time.Duration `envconfig:"MEDIA_DOWNLOAD_TIMEOUT" default:"1m"`
	} `envconfig:""`

	OCR struct {
		TesseractBin     string        `envconfig:"TESSERACT_BIN" default:"tesseract"`
		TesseractTimeout time.Duration `envconfig:"TESSERACT_TIMEOUT" default:"20s"`
	} `envconfig:""`

	PGDSN string `envconfig:"PG_DSN"`

	RedisAddr string `envconfig:"REDIS_ADDR"`

	RabbitURL string `envconfig:"RABBITMQ_URL"`

	Queues struct {
		Admission string `envconfig:"ADMISSION_QUEUE_KEY" default:"admission_jobs"`
	} `envconfig:""`
}

// Load загружает конфиг из окружения.
func Load() AppConfig {
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("не удалось загрузить конфиг: %v", err)
	}
	return cfg
}
