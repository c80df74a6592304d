package admission

import (
	"testing"

	"tg-memes-bot/internal/domain"
)

func TestTermFilterChecksTitle(t *testing.T) {
	filter := NewTermFilter([]string{"Политика", " crypto "})

	verdict := filter.CheckTitle("Свежая ПОЛИТИКА дня")
	if verdict.Admit {
		t.Fatalf("ожидали отказ по запрещённому термину")
	}
	if verdict.Kind != domain.RejectPolicy {
		t.Fatalf("ожидали policy, получили %s", verdict.Kind)
	}
	if verdict.Reason != "banned_term:политика" {
		t.Fatalf("неожиданная причина: %s", verdict.Reason)
	}

	if v := filter.CheckTitle("обычный мем"); !v.Admit {
		t.Fatalf("не ожидали отказ: %s", v.Reason)
	}
}

func TestTermFilterMatchesSubstring(t *testing.T) {
	filter := NewTermFilter([]string{"crypto"})
	if v := filter.CheckTitle("cryptocurrency to the moon"); v.Admit {
		t.Fatalf("термин должен находиться по подстроке")
	}
}

func TestTermFilterChecksTranscript(t *testing.T) {
	filter := NewTermFilter([]string{"казино"})
	verdict := filter.CheckTranscript("лучшее КАЗИНО в городе")
	if verdict.Admit {
		t.Fatalf("ожидали отказ по транскрипту")
	}
	if verdict.Reason != "ocr_banned_term:казино" {
		t.Fatalf("неожиданная причина: %s", verdict.Reason)
	}
}

func TestTermFilterEmptyTermsPassEverything(t *testing.T) {
	filter := NewTermFilter([]string{"", "   "})
	if v := filter.CheckTitle("что угодно"); !v.Admit {
		t.Fatalf("пустой список терминов не должен отклонять")
	}
	if v := filter.CheckTranscript(""); !v.Admit {
		t.Fatalf("пустой транскрипт не должен отклоняться")
	}
}
