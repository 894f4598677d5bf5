package rewrite

import (
	"context"

	"tg-relay-bot/internal/domain"
)

// Noop возвращает текст без изменений. Точка расширения для будущей
// трансформации контента перед публикацией.
type Noop struct{}

var _ domain.Rewriter = (*Noop)(nil)

// NewNoop создаёт сквозной риврайтер.
func NewNoop() *Noop {
	return &Noop{}
}

// Rewrite возвращает вход как есть.
func (n *Noop) Rewrite(_ context.Context, text string) (string, error) {
	return text, nil
}
