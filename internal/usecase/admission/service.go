package admission

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"tg-memes-bot/internal/domain"
	"tg-memes-bot/internal/infra/metrics"
)

// Service реализует конвейер допуска: нормализация, текстовый фильтр, сборка
// медиа, оптический фильтр, проверка дубликатов, запись истории и публикация.
// Этапы идут от дешёвых к дорогим, первый отказ останавливает прогон.
type Service struct {
	log        zerolog.Logger
	candidates domain.CandidateRepo
	history    domain.HistoryRepo
	assembler  domain.Assembler
	ocr        domain.OCREngine
	hasher     domain.PerceptualHasher
	publisher  domain.Publisher
	filter     *TermFilter

	ocrEnabled    bool
	hashThreshold int
	workers       int
}

// Options — настройки конвейера.
type Options struct {
	OCREnabled    bool
	HashThreshold int
	Workers       int
}

// NewService создаёт конвейер допуска.
func NewService(log zerolog.Logger, candidates domain.CandidateRepo, history domain.HistoryRepo, assembler domain.Assembler, ocr domain.OCREngine, hasher domain.PerceptualHasher, publisher domain.Publisher, filter *TermFilter, opts Options) *Service {
	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}
	return &Service{
		log:           log,
		candidates:    candidates,
		history:       history,
		assembler:     assembler,
		ocr:           ocr,
		hasher:        hasher,
		publisher:     publisher,
		filter:        filter,
		ocrEnabled:    opts.OCREnabled,
		hashThreshold: opts.HashThreshold,
		workers:       workers,
	}
}

// Process прогоняет один пост через конвейер и возвращает итог. Ошибка
// одного кандидата не влияет на остальные: все сбои сворачиваются в Outcome.
func (s *Service) Process(ctx context.Context, sub domain.RawSubmission) domain.Outcome {
	outcome := s.process(ctx, sub)
	metrics.IncCandidate(string(outcome.State), string(outcome.Verdict.Kind))
	s.logOutcome(outcome)
	return outcome
}

func (s *Service) process(ctx context.Context, sub domain.RawSubmission) domain.Outcome {
	cand, verdict := Normalize(sub)
	if !verdict.Admit {
		return rejected(cand, verdict, nil)
	}

	// Пост, однажды попавший в конвейер, не проверяется повторно на
	// следующих опросах ленты, независимо от исхода.
	seen, err := s.candidates.Seen(ctx, cand.ID, cand.URL)
	if err != nil {
		return rejected(cand, domain.Reject(domain.RejectFatal, "seen_check_failed"), err)
	}
	if seen {
		return rejected(cand, domain.Reject(domain.RejectDuplicate, "already_evaluated:"+cand.ID), nil)
	}
	if err := s.candidates.MarkSeen(ctx, sub); err != nil {
		return rejected(cand, domain.Reject(domain.RejectFatal, "seen_mark_failed"), err)
	}

	if verdict := s.filter.CheckTitle(cand.Title); !verdict.Admit {
		return rejected(cand, verdict, nil)
	}

	assembleStart := time.Now()
	prepared, err := s.assembler.Prepare(ctx, cand)
	metrics.ObserveStage("assemble_prepare", assembleStart)
	if err != nil {
		return rejected(cand, assemblyVerdict(cand, err), err)
	}
	defer prepared.Cleanup()

	if verdict := s.opticalFilter(ctx, prepared.FramePath()); !verdict.Admit {
		return rejected(cand, verdict, nil)
	}

	hashStart := time.Now()
	fp, err := s.hasher.Fingerprint(prepared.FramePath())
	metrics.ObserveStage("fingerprint", hashStart)
	if err != nil {
		return rejected(cand, domain.Reject(domain.RejectFatal, "fingerprint_failed"), err)
	}

	finalizeStart := time.Now()
	asset, err := prepared.Finalize(ctx)
	metrics.ObserveStage("assemble_finalize", finalizeStart)
	if err != nil {
		return rejected(cand, assemblyVerdict(cand, err), err)
	}

	record := domain.PostRecord{
		CandidateID: cand.ID,
		Hash:        fp.Hash,
		Title:       cand.Title,
		AdmittedAt:  time.Now().UTC(),
	}

	// Критическая секция: проверка похожести и вставка атомарны, две
	// конкурентные проверки похожих отпечатков не пройдут обе.
	dedupStart := time.Now()
	match, err := s.history.Admit(ctx, record, s.hashThreshold)
	metrics.ObserveStage("dedup", dedupStart)
	if err != nil {
		// Запись не сохранилась — публиковать нельзя.
		return rejected(cand, domain.Reject(domain.RejectFatal, "history_append_failed"), err)
	}
	if match != nil {
		return rejected(cand, domain.Reject(domain.RejectDuplicate, "duplicate:"+match.CandidateID), nil)
	}

	outcome := domain.Outcome{Candidate: cand, State: domain.StateAdmitted, Verdict: domain.Pass()}

	publishStart := time.Now()
	if err := s.publisher.Publish(ctx, asset, cand.Title); err != nil {
		// Запись истории уже надёжно сохранена, сбой публикации не
		// отменяет допуск, но виден вызывающему.
		metrics.PublishErrors.Inc()
		outcome.PublishErr = err
	}
	metrics.ObserveStage("publish", publishStart)

	return outcome
}

// ProcessBatch обрабатывает пачку постов пулом воркеров. Кандидаты
// независимы до обращения к истории, поэтому этапы до дедупликации идут
// полностью параллельно.
func (s *Service) ProcessBatch(ctx context.Context, subs []domain.RawSubmission) []domain.Outcome {
	outcomes := make([]domain.Outcome, len(subs))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < s.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				outcomes[i] = s.Process(ctx, subs[i])
			}
		}()
	}

	for i := range subs {
		select {
		case <-ctx.Done():
		case jobs <- i:
			continue
		}
		break
	}
	close(jobs)
	wg.Wait()

	return outcomes
}

func (s *Service) opticalFilter(ctx context.Context, framePath string) domain.Verdict {
	if !s.ocrEnabled {
		return domain.Pass()
	}
	start := time.Now()
	transcript, err := s.ocr.ExtractText(ctx, framePath)
	metrics.ObserveStage("ocr", start)
	if err != nil {
		// Fail-open: сбой или таймаут движка — это отсутствие текста,
		// а не повод отклонить кандидата.
		s.log.Warn().Err(err).Msg("admission: OCR не отработал, пропускаем фильтр")
		return domain.Pass()
	}
	return s.filter.CheckTranscript(transcript)
}

func (s *Service) logOutcome(o domain.Outcome) {
	event := s.log.Info()
	if o.Err != nil {
		event = s.log.Error().Err(o.Err)
	}
	event.
		Str("candidate", o.Candidate.ID).
		Str("url", o.Candidate.URL).
		Str("state", string(o.State)).
		Str("reason", o.Verdict.Reason).
		Msg("admission: кандидат обработан")
	if o.PublishErr != nil {
		s.log.Error().Err(o.PublishErr).Str("candidate", o.Candidate.ID).Msg("admission: публикация не удалась")
	}
}

func assemblyVerdict(cand domain.Candidate, err error) domain.Verdict {
	stage := "unknown"
	var asmErr *domain.AssemblyError
	if errors.As(err, &asmErr) {
		stage = asmErr.Stage
	}
	if cand.Kind == domain.MediaVideo {
		return domain.Reject(domain.RejectFatal, "video_assembly_failed:"+stage)
	}
	return domain.Reject(domain.RejectFatal, fmt.Sprintf("image_fetch_failed:%s", stage))
}

func rejected(cand domain.Candidate, verdict domain.Verdict, err error) domain.Outcome {
	return domain.Outcome{Candidate: cand, State: domain.StateRejected, Verdict: verdict, Err: err}
}
