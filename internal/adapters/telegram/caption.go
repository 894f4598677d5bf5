package telegram

import "strings"

const captionLimit = 1024

// BuildFooter собирает футер провенанса для подписи медиа. Приоритет:
// настроенный хэндл, хэндл источника, название источника. Пустой футер
// означает, что добавлять нечего.
func BuildFooter(enabled bool, handleOverride, sourceUsername, sourceTitle string) string {
	if !enabled {
		return ""
	}
	if override := strings.TrimSpace(strings.TrimPrefix(handleOverride, "@")); override != "" {
		return "\n\n📢 Источник: @" + override
	}
	if username := strings.TrimSpace(strings.TrimPrefix(sourceUsername, "@")); username != "" {
		return "\n\n📢 Источник: @" + username
	}
	if title := strings.TrimSpace(sourceTitle); title != "" {
		return "\n\n📢 Источник: " + title
	}
	return ""
}

// AppendFooter добавляет футер к подписи и укорачивает результат до
// лимита подписи Bot API, оставляя место под многоточие.
func AppendFooter(caption, footer string) string {
	combined := caption + footer
	runes := []rune(combined)
	if len(runes) <= captionLimit {
		return combined
	}
	return string(runes[:captionLimit-3]) + "..."
}
