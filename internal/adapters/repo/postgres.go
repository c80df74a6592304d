package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"tg-memes-bot/internal/domain"
	"tg-memes-bot/internal/infra/metrics"
)

// advisoryLockKey — ключ advisory-блокировки, сериализующей check-and-insert
// по истории. Сравнение по расстоянию Хэмминга не выражается уникальным
// индексом, поэтому от гонки двух воркеров защищает явная блокировка.
const advisoryLockKey = 0x7465672d6d656d65

const connTimeout = 5 * time.Second

// Postgres хранит просмотренных кандидатов и историю публикаций.
type Postgres struct {
	log  zerolog.Logger
	pool *pgxpool.Pool
}

var (
	_ domain.HistoryRepo   = (*Postgres)(nil)
	_ domain.CandidateRepo = (*Postgres)(nil)
)

// NewPostgres создаёт репозиторий поверх готового пула.
func NewPostgres(pool *pgxpool.Pool, logger zerolog.Logger) *Postgres {
	return &Postgres{log: logger, pool: pool}
}

// EnsureSchema создаёт таблицы, если их ещё нет. Функция bit_count над
// BIGINT требует Postgres 14+.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	connCtx, cancel := context.WithTimeout(ctx, connTimeout)
	defer cancel()

	const ddl = `
CREATE TABLE IF NOT EXISTS candidates (
    id        TEXT PRIMARY KEY,
    url       TEXT NOT NULL,
    subreddit TEXT NOT NULL DEFAULT '',
    seen_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS candidates_url_idx ON candidates (url);
CREATE INDEX IF NOT EXISTS candidates_seen_at_idx ON candidates (seen_at);

CREATE TABLE IF NOT EXISTS post_records (
    id           BIGSERIAL PRIMARY KEY,
    candidate_id TEXT NOT NULL,
    fingerprint  BIGINT NOT NULL,
    title        TEXT NOT NULL DEFAULT '',
    caption      TEXT NOT NULL DEFAULT '',
    admitted_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS post_records_admitted_at_idx ON post_records (admitted_at);
`
	start := time.Now()
	_, err := p.pool.Exec(connCtx, ddl)
	metrics.ObserveNetworkRequest("postgres", "ensure_schema", "db", start, err)
	if err != nil {
		return fmt.Errorf("создание схемы: %w", err)
	}
	return nil
}

// Seen сообщает, видели ли мы уже пост с таким id или url.
func (p *Postgres) Seen(ctx context.Context, id, url string) (bool, error) {
	connCtx, cancel := context.WithTimeout(ctx, connTimeout)
	defer cancel()

	start := time.Now()
	var seen bool
	err := p.pool.QueryRow(connCtx,
		`SELECT EXISTS (SELECT 1 FROM candidates WHERE id = $1 OR url = $2)`,
		id, url,
	).Scan(&seen)
	metrics.ObserveNetworkRequest("postgres", "seen", "db", start, err)
	if err != nil {
		return false, fmt.Errorf("проверка кандидата: %w", err)
	}
	return seen, nil
}

// MarkSeen запоминает пост как просмотренный. Повторная пометка не ошибка.
func (p *Postgres) MarkSeen(ctx context.Context, sub domain.RawSubmission) error {
	connCtx, cancel := context.WithTimeout(ctx, connTimeout)
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(connCtx,
		`INSERT INTO candidates (id, url, subreddit) VALUES ($1, $2, $3)
		 ON CONFLICT (id) DO NOTHING`,
		sub.ID, sub.URL, sub.Subreddit,
	)
	metrics.ObserveNetworkRequest("postgres", "mark_seen", "db", start, err)
	if err != nil {
		return fmt.Errorf("сохранение кандидата: %w", err)
	}
	return nil
}

// QuerySimilar ищет ближайшую запись истории на расстоянии Хэмминга
// <= threshold. Возвращает nil, если похожих нет.
func (p *Postgres) QuerySimilar(ctx context.Context, fp domain.Fingerprint, threshold int) (*domain.PostRecord, error) {
	connCtx, cancel := context.WithTimeout(ctx, connTimeout)
	defer cancel()

	start := time.Now()
	rec, err := querySimilar(connCtx, p.pool, fp, threshold)
	metrics.ObserveNetworkRequest("postgres", "query_similar", "db", start, err)
	return rec, err
}

// Append добавляет запись истории без проверки на дубликаты.
func (p *Postgres) Append(ctx context.Context, rec domain.PostRecord) error {
	connCtx, cancel := context.WithTimeout(ctx, connTimeout)
	defer cancel()

	start := time.Now()
	err := insertRecord(connCtx, p.pool, rec)
	metrics.ObserveNetworkRequest("postgres", "append", "db", start, err)
	return err
}

// Admit атомарно выполняет проверку на дубликат и вставку. Advisory-lock
// внутри транзакции гарантирует, что из двух конкурентных вызовов с
// похожими отпечатками вставку выполнит ровно один.
func (p *Postgres) Admit(ctx context.Context, rec domain.PostRecord, threshold int) (*domain.PostRecord, error) {
	connCtx, cancel := context.WithTimeout(ctx, connTimeout)
	defer cancel()

	start := time.Now()
	match, err := p.admit(connCtx, rec, threshold)
	metrics.ObserveNetworkRequest("postgres", "admit", "db", start, err)
	return match, err
}

func (p *Postgres) admit(ctx context.Context, rec domain.PostRecord, threshold int) (*domain.PostRecord, error) {
	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("начало транзакции: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(advisoryLockKey)); err != nil {
		return nil, fmt.Errorf("захват блокировки: %w", err)
	}

	match, err := querySimilar(ctx, tx, domain.Fingerprint{Hash: rec.Hash}, threshold)
	if err != nil {
		return nil, err
	}
	if match != nil {
		return match, nil
	}

	if err := insertRecord(ctx, tx, rec); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("фиксация транзакции: %w", err)
	}
	return nil, nil
}

// Prune удаляет записи истории и кандидатов старше olderThan.
func (p *Postgres) Prune(ctx context.Context, olderThan time.Time) (int64, error) {
	connCtx, cancel := context.WithTimeout(ctx, connTimeout)
	defer cancel()

	start := time.Now()
	records, err := p.pool.Exec(connCtx,
		`DELETE FROM post_records WHERE admitted_at < $1`, olderThan)
	metrics.ObserveNetworkRequest("postgres", "prune_history", "db", start, err)
	if err != nil {
		return 0, fmt.Errorf("очистка истории: %w", err)
	}

	start = time.Now()
	candidates, err := p.pool.Exec(connCtx,
		`DELETE FROM candidates WHERE seen_at < $1`, olderThan)
	metrics.ObserveNetworkRequest("postgres", "prune_candidates", "db", start, err)
	if err != nil {
		return records.RowsAffected(), fmt.Errorf("очистка кандидатов: %w", err)
	}

	return records.RowsAffected() + candidates.RowsAffected(), nil
}

// StoredCounts возвращает количества записей для страницы статуса.
func (p *Postgres) StoredCounts(ctx context.Context) (candidates, records int64, err error) {
	connCtx, cancel := context.WithTimeout(ctx, connTimeout)
	defer cancel()

	start := time.Now()
	err = p.pool.QueryRow(connCtx,
		`SELECT (SELECT count(*) FROM candidates), (SELECT count(*) FROM post_records)`,
	).Scan(&candidates, &records)
	metrics.ObserveNetworkRequest("postgres", "stored_counts", "db", start, err)
	if err != nil {
		return 0, 0, fmt.Errorf("подсчёт записей: %w", err)
	}
	return candidates, records, nil
}

// rowQuerier и execQuerier покрывают и пул, и транзакцию.
type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type execQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func querySimilar(ctx context.Context, q rowQuerier, fp domain.Fingerprint, threshold int) (*domain.PostRecord, error) {
	var (
		rec  domain.PostRecord
		hash int64
	)
	err := q.QueryRow(ctx,
		`SELECT candidate_id, fingerprint, title, caption, admitted_at
		 FROM post_records
		 WHERE bit_count(fingerprint # $1) <= $2
		 ORDER BY bit_count(fingerprint # $1) ASC, admitted_at DESC
		 LIMIT 1`,
		int64(fp.Hash), threshold,
	).Scan(&rec.CandidateID, &hash, &rec.Title, &rec.Caption, &rec.AdmittedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("поиск похожих записей: %w", err)
	}
	rec.Hash = uint64(hash)
	return &rec, nil
}

func insertRecord(ctx context.Context, q execQuerier, rec domain.PostRecord) error {
	admittedAt := rec.AdmittedAt
	if admittedAt.IsZero() {
		admittedAt = time.Now()
	}
	_, err := q.Exec(ctx,
		`INSERT INTO post_records (candidate_id, fingerprint, title, caption, admitted_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		rec.CandidateID, int64(rec.Hash), rec.Title, rec.Caption, admittedAt,
	)
	if err != nil {
		return fmt.Errorf("вставка записи истории: %w", err)
	}
	return nil
}
