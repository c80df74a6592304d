package ocr

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestExtractTextCleansTranscript(t *testing.T) {
	engine := NewTesseract("tesseract", time.Second, zerolog.Nop())
	engine.WithRunner(func(_ context.Context, _ string, args ...string) ([]byte, error) {
		if len(args) != 2 || args[1] != "stdout" {
			t.Fatalf("ожидали вызов с выводом в stdout, получили %v", args)
		}
		return []byte("  Лучшее \n\n КАЗИНО\t города \x00 "), nil
	})

	text, err := engine.ExtractText(context.Background(), "/tmp/frame.png")
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if text != "лучшее казино города" {
		t.Fatalf("неожиданный транскрипт: %q", text)
	}
}

func TestExtractTextPropagatesFailure(t *testing.T) {
	engine := NewTesseract("", time.Second, zerolog.Nop())
	engine.WithRunner(func(context.Context, string, ...string) ([]byte, error) {
		return nil, errors.New("бинарь не найден")
	})

	if _, err := engine.ExtractText(context.Background(), "/tmp/frame.png"); err == nil {
		t.Fatalf("ожидали ошибку движка")
	}
}

func TestCleanTranscript(t *testing.T) {
	cases := map[string]string{
		"":                      "",
		"  Hello   WORLD  ":     "hello world",
		"line1\nline2\r\nline3": "line1 line2 line3",
		"смесь Text 123!":       "смесь text 123!",
	}
	for in, want := range cases {
		if got := cleanTranscript(in); got != want {
			t.Fatalf("cleanTranscript(%q) = %q, ожидали %q", in, got, want)
		}
	}
}
