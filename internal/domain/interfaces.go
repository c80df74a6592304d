package domain

import (
	"context"
	"time"
)

// FeedSource отдаёт пачку свежих постов внешней ленты.
type FeedSource interface {
	Fetch(ctx context.Context) ([]RawSubmission, error)
}

// Publisher публикует одобренный медиафайл в канал.
type Publisher interface {
	Publish(ctx context.Context, asset MediaAsset, title string) error
}

// HistoryRepo — контракт хранилища истории публикаций.
//
// Admit выполняет атомарный check-and-insert: под блокировкой ищет запись с
// отпечатком на расстоянии Хэмминга <= threshold и, если её нет, вставляет
// rec. Возвращает найденный дубликат или nil после успешной вставки. Две
// конкурентные проверки похожих отпечатков не могут обе закончиться вставкой.
type HistoryRepo interface {
	QuerySimilar(ctx context.Context, fp Fingerprint, threshold int) (*PostRecord, error)
	Append(ctx context.Context, rec PostRecord) error
	Admit(ctx context.Context, rec PostRecord, threshold int) (*PostRecord, error)
	Prune(ctx context.Context, olderThan time.Time) (int64, error)
}

// CandidateRepo хранит все просмотренные посты, чтобы не проверять их
// повторно на следующих опросах ленты.
type CandidateRepo interface {
	Seen(ctx context.Context, id, url string) (bool, error)
	MarkSeen(ctx context.Context, sub RawSubmission) error
}

// OCREngine извлекает текстовый транскрипт из кадра. Сбой или таймаут
// движка трактуется вызывающим как отсутствие текста, а не как ошибка.
type OCREngine interface {
	ExtractText(ctx context.Context, framePath string) (string, error)
}

// PerceptualHasher считает перцептивный отпечаток кадра.
type PerceptualHasher interface {
	Fingerprint(framePath string) (Fingerprint, error)
}

// PreparedMedia — скачанные потоки кандидата и его кадр до дорогой стадии
// склейки. Cleanup обязан вызываться на любом пути выхода.
type PreparedMedia interface {
	FramePath() string
	Finalize(ctx context.Context) (MediaAsset, error)
	Cleanup()
}

// Assembler материализует медиа кандидата: для картинки — скачивает файл,
// для видео — скачивает потоки и извлекает первый кадр. Склейка и транскод
// откладываются до Finalize, чтобы кандидата можно было дёшево отклонить по
// кадру.
type Assembler interface {
	Prepare(ctx context.Context, cand Candidate) (PreparedMedia, error)
}

// AdmissionQueue — очередь задач на проверку постов.
type AdmissionQueue interface {
	Enqueue(ctx context.Context, job AdmissionJob) error
	Pop(ctx context.Context) (AdmissionJob, error)
	Len(ctx context.Context) (int64, error)
}

// Cache используется для простых TTL-хранилищ.
type Cache interface {
	Once(key string, ttl time.Duration, fn func() error) error
	Set(key string, value []byte, ttl time.Duration) error
	Get(key string) ([]byte, error)
}
