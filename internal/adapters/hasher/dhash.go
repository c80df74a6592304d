package hasher

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"github.com/corona10/goimagehash"

	"tg-memes-bot/internal/domain"
)

// DHash считает перцептивный difference hash кадра. Хеши близких картинок
// отличаются на несколько бит, что и позволяет ловить перезаливы.
type DHash struct{}

var _ domain.PerceptualHasher = (*DHash)(nil)

// NewDHash создаёт хешер.
func NewDHash() *DHash {
	return &DHash{}
}

// Fingerprint возвращает 64-битный отпечаток картинки по пути framePath.
func (h *DHash) Fingerprint(framePath string) (domain.Fingerprint, error) {
	f, err := os.Open(framePath)
	if err != nil {
		return domain.Fingerprint{}, fmt.Errorf("открытие кадра: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return domain.Fingerprint{}, fmt.Errorf("декодирование кадра: %w", err)
	}

	hash, err := goimagehash.DifferenceHash(img)
	if err != nil {
		return domain.Fingerprint{}, fmt.Errorf("вычисление отпечатка: %w", err)
	}
	return domain.Fingerprint{Hash: hash.GetHash()}, nil
}
