package ocr

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
	"unicode"

	"github.com/rs/zerolog"

	"tg-memes-bot/internal/domain"
	"tg-memes-bot/internal/infra/metrics"
)

// OutputRunner выполняет внешнюю команду и возвращает её stdout.
// В тестах подменяется фейком.
type OutputRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func defaultOutputRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail != "" {
			return nil, fmt.Errorf("%s: %w: %s", name, err, detail)
		}
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return stdout.Bytes(), nil
}

// Tesseract распознаёт текст на кадре через одноимённую консольную утилиту.
type Tesseract struct {
	log     zerolog.Logger
	bin     string
	timeout time.Duration
	run     OutputRunner
}

var _ domain.OCREngine = (*Tesseract)(nil)

// NewTesseract создаёт движок OCR. bin — путь к бинарю tesseract,
// пустая строка означает поиск в PATH.
func NewTesseract(bin string, timeout time.Duration, logger zerolog.Logger) *Tesseract {
	if bin == "" {
		bin = "tesseract"
	}
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Tesseract{
		log:     logger,
		bin:     bin,
		timeout: timeout,
		run:     defaultOutputRunner,
	}
}

// WithRunner подменяет запуск внешней команды. Используется в тестах.
func (t *Tesseract) WithRunner(r OutputRunner) {
	if r != nil {
		t.run = r
	}
}

// ExtractText возвращает нормализованный текст, распознанный на картинке.
func (t *Tesseract) ExtractText(ctx context.Context, framePath string) (string, error) {
	runCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	start := time.Now()
	// "stdout" вместо имени файла заставляет tesseract печатать результат
	// в стандартный вывод.
	out, err := t.run(runCtx, t.bin, framePath, "stdout")
	metrics.ObserveNetworkRequest("ocr", "extract", "local", start, err)
	if err != nil {
		return "", fmt.Errorf("распознавание текста: %w", err)
	}
	return cleanTranscript(string(out)), nil
}

// cleanTranscript приводит распознанный текст к виду, пригодному для
// сравнения с запрещёнными словами: нижний регистр, одиночные пробелы,
// только печатаемые символы.
func cleanTranscript(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		case unicode.IsPrint(r):
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
