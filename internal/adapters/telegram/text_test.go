package telegram

import (
	"strings"
	"testing"
)

func TestSplitMessageRespectsLimit(t *testing.T) {
	var builder strings.Builder
	builder.WriteString(strings.Repeat("a", 3000))
	builder.WriteString("\n\n")
	builder.WriteString(strings.Repeat("b", 2000))
	builder.WriteString("\n")
	builder.WriteString(strings.Repeat("c", 500))

	parts := SplitMessage(builder.String())
	if len(parts) != 2 {
		t.Fatalf("ожидали 2 части, получили %d", len(parts))
	}
	for i, part := range parts {
		if length := len([]rune(part)); length > messageLimit {
			t.Fatalf("часть %d длиннее лимита: %d", i, length)
		}
	}
}

func TestSplitMessageShortTextStaysWhole(t *testing.T) {
	parts := SplitMessage("короткий текст")
	if len(parts) != 1 || parts[0] != "короткий текст" {
		t.Fatalf("короткий текст не должен резаться: %v", parts)
	}
}

func TestSplitMessageEmpty(t *testing.T) {
	if parts := SplitMessage("   \n  "); parts != nil {
		t.Fatalf("пустой текст не даёт частей: %v", parts)
	}
}

func TestSplitCaptionRespectsCaptionLimit(t *testing.T) {
	long := strings.Repeat("x", 900) + "\n" + strings.Repeat("y", 900)
	parts := SplitCaption(long)
	if len(parts) != 2 {
		t.Fatalf("ожидали 2 части, получили %d", len(parts))
	}
	for i, part := range parts {
		if length := len([]rune(part)); length > captionLimit {
			t.Fatalf("часть %d длиннее лимита подписи: %d", i, length)
		}
	}
}

func TestSplitPrefersNewlineBoundary(t *testing.T) {
	text := strings.Repeat("a", 1000) + "\n" + strings.Repeat("b", 100)
	parts := SplitCaption(text)
	if len(parts) != 2 {
		t.Fatalf("ожидали 2 части, получили %d", len(parts))
	}
	if !strings.HasPrefix(parts[1], "b") {
		t.Fatalf("разрез должен проходить по переводу строки: %q", parts[1][:10])
	}
}
