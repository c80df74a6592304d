package hasher

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

// writeGradient пишет png с горизонтальным градиентом. reverse инвертирует
// направление, что даёт противоположный dHash.
func writeGradient(t *testing.T, dir string, reverse bool) string {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			v := uint8(x * 4)
			if reverse {
				v = uint8(255 - x*4)
			}
			img.SetGray(x, y, color.Gray{Y: v})
		}
	}

	name := "gradient.png"
	if reverse {
		name = "gradient-reverse.png"
	}
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("не удалось создать файл: %v", err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("не удалось закодировать png: %v", err)
	}
	return path
}

func TestFingerprintIsDeterministic(t *testing.T) {
	dir := t.TempDir()
	path := writeGradient(t, dir, false)

	h := NewDHash()
	first, err := h.Fingerprint(path)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	second, err := h.Fingerprint(path)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if first.Distance(second) != 0 {
		t.Fatalf("один и тот же файл должен давать одинаковый отпечаток: %s и %s", first, second)
	}
}

func TestFingerprintDistinguishesImages(t *testing.T) {
	dir := t.TempDir()
	h := NewDHash()

	forward, err := h.Fingerprint(writeGradient(t, dir, false))
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	backward, err := h.Fingerprint(writeGradient(t, dir, true))
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}

	if forward.Distance(backward) < 32 {
		t.Fatalf("противоположные градиенты должны быть далеко: расстояние %d", forward.Distance(backward))
	}
}

func TestFingerprintMissingFile(t *testing.T) {
	h := NewDHash()
	if _, err := h.Fingerprint("/nonexistent/frame.png"); err == nil {
		t.Fatalf("ожидали ошибку открытия файла")
	}
}

func TestFingerprintBrokenFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.png")
	if err := os.WriteFile(path, []byte("не картинка"), 0o644); err != nil {
		t.Fatalf("не удалось записать файл: %v", err)
	}

	h := NewDHash()
	if _, err := h.Fingerprint(path); err == nil {
		t.Fatalf("ожидали ошибку декодирования")
	}
}
