package domain

import (
	"fmt"
	"math/bits"
	"time"
)

// MediaKind определяет тип медиа кандидата.
type MediaKind string

const (
	// MediaImage — статичная картинка.
	MediaImage MediaKind = "image"
	// MediaVideo — видео (включая gif/gifv, которые конвертируются в mp4).
	MediaVideo MediaKind = "video"
)

// RawSubmission описывает сырой пост из внешней ленты до нормализации.
type RawSubmission struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	URL       string    `json:"url"`
	Subreddit string    `json:"subreddit"`
	Score     int       `json:"score"`
	SelfText  bool      `json:"self_text"`
	Stickied  bool      `json:"stickied"`
	Gallery   bool      `json:"gallery"`
	CreatedAt time.Time `json:"created_at"`
}

// Candidate — нормализованный кандидат на публикацию. После конструирования
// не изменяется: последующие этапы конвейера читают его как есть.
type Candidate struct {
	ID        string
	Title     string
	Kind      MediaKind
	URL       string
	Subreddit string
	Score     int
	CreatedAt time.Time
}

// MediaAsset — локально собранный медиафайл и его репрезентативный кадр.
// Временные файлы принадлежат сборщику и удаляются после прогона кандидата.
type MediaAsset struct {
	Path      string
	FramePath string
	Kind      MediaKind
}

// Fingerprint — перцептивный отпечаток кадра: 64-битный dHash.
type Fingerprint struct {
	Hash uint64
}

// Distance возвращает расстояние Хэмминга между двумя отпечатками.
func (f Fingerprint) Distance(other Fingerprint) int {
	return bits.OnesCount64(f.Hash ^ other.Hash)
}

// String возвращает шестнадцатеричное представление отпечатка.
func (f Fingerprint) String() string {
	return fmt.Sprintf("%016x", f.Hash)
}

// PostRecord — запись истории об одобренном кандидате. Пишется ровно один
// раз, до попытки публикации.
type PostRecord struct {
	CandidateID string
	Hash        uint64
	Title       string
	Caption     string
	AdmittedAt  time.Time
}

// State — состояние кандидата в конвейере допуска.
type State string

const (
	StateNormalized      State = "normalized"
	StateTextFiltered    State = "text_filtered"
	StateAssembled       State = "assembled"
	StateOpticalFiltered State = "optical_filtered"
	StateDedupChecked    State = "dedup_checked"
	StateAdmitted        State = "admitted"
	StateRejected        State = "rejected"
)

// RejectKind классифицирует причину отказа.
type RejectKind string

const (
	// RejectClassification — нормализатор не смог отнести пост к медиа.
	RejectClassification RejectKind = "classification"
	// RejectPolicy — текстовый или оптический фильтр нашёл запрещённый термин.
	RejectPolicy RejectKind = "policy"
	// RejectDuplicate — найден похожий отпечаток в истории.
	RejectDuplicate RejectKind = "duplicate"
	// RejectFatal — исчерпан бюджет попыток или локальная ошибка этапа.
	RejectFatal RejectKind = "fatal"
)

// Verdict — решение одного этапа фильтрации.
type Verdict struct {
	Admit  bool
	Kind   RejectKind
	Reason string
}

// Pass возвращает пропускающий вердикт.
func Pass() Verdict {
	return Verdict{Admit: true}
}

// Reject возвращает отклоняющий вердикт с причиной.
func Reject(kind RejectKind, reason string) Verdict {
	return Verdict{Kind: kind, Reason: reason}
}

// Outcome — итог прохождения кандидата по конвейеру. PublishErr не влияет
// на статус: запись истории уже сохранена, но вызывающий должен видеть сбой
// публикации.
type Outcome struct {
	Candidate  Candidate
	State      State
	Verdict    Verdict
	PublishErr error
	Err        error
}

// AdmissionJob — задача очереди на проверку одного поста.
type AdmissionJob struct {
	ID         string        `json:"id"`
	Submission RawSubmission `json:"submission"`
	Manual     bool          `json:"manual"`
	EnqueuedAt time.Time     `json:"enqueued_at"`
}
