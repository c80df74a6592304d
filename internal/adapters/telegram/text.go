package telegram

import "strings"

const (
	// Лимит обычного сообщения в Bot API.
	messageLimit = 4096
	// Лимит подписи к медиа.
	captionLimit = 1024
)

// SplitMessage режет текст на куски в пределах лимита сообщения.
func SplitMessage(text string) []string {
	return splitByLimit(text, messageLimit)
}

// SplitCaption режет текст на куски в пределах лимита подписи к медиа.
func SplitCaption(text string) []string {
	return splitByLimit(text, captionLimit)
}

// splitByLimit предпочитает резать по переводам строк, чтобы блоки текста
// не рвались посередине.
func splitByLimit(text string, limit int) []string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}

	runes := []rune(trimmed)
	if len(runes) <= limit {
		return []string{trimmed}
	}

	var parts []string
	for start := 0; start < len(runes); {
		end := start + limit
		if end >= len(runes) {
			chunk := strings.Trim(string(runes[start:]), "\n")
			if chunk != "" {
				parts = append(parts, chunk)
			}
			break
		}

		split := -1
		for i := end; i > start; i-- {
			if runes[i-1] == '\n' {
				split = i
				break
			}
		}
		if split == -1 {
			split = end
		}

		chunk := strings.Trim(string(runes[start:split]), "\n")
		if chunk != "" {
			parts = append(parts, chunk)
		}

		start = split
		for start < len(runes) && runes[start] == '\n' {
			start++
		}
	}

	if len(parts) == 0 {
		return []string{trimmed}
	}

	return parts
}
