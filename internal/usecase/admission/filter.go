package admission

import (
	"strings"

	"tg-memes-bot/internal/domain"
)

// TermFilter отклоняет тексты, содержащие запрещённые термины. Сравнение
// регистронезависимое, по подстроке. Детерминированный, без I/O.
type TermFilter struct {
	terms []string
}

// NewTermFilter создаёт фильтр. Пустые термины отбрасываются.
func NewTermFilter(terms []string) *TermFilter {
	cleaned := make([]string, 0, len(terms))
	for _, t := range terms {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			cleaned = append(cleaned, t)
		}
	}
	return &TermFilter{terms: cleaned}
}

// CheckTitle проверяет заголовок кандидата.
func (f *TermFilter) CheckTitle(title string) domain.Verdict {
	if term, ok := f.match(title); ok {
		return domain.Reject(domain.RejectPolicy, "banned_term:"+term)
	}
	return domain.Pass()
}

// CheckTranscript проверяет OCR-транскрипт кадра.
func (f *TermFilter) CheckTranscript(text string) domain.Verdict {
	if term, ok := f.match(text); ok {
		return domain.Reject(domain.RejectPolicy, "ocr_banned_term:"+term)
	}
	return domain.Pass()
}

func (f *TermFilter) match(text string) (string, bool) {
	if text == "" {
		return "", false
	}
	lowered := strings.ToLower(text)
	for _, term := range f.terms {
		if strings.Contains(lowered, term) {
			return term, true
		}
	}
	return "", false
}
