package domain

import (
	"context"
	"time"
)

// DedupLedger хранит пары (источник, message_id), которые уже обработаны.
// Запись делается на этапе инжеста, до постановки в очередь.
type DedupLedger interface {
	IsDuplicate(ctx context.Context, sourceName string, messageID int64) (bool, error)
	Mark(ctx context.Context, sourceName string, messageID int64, fingerprint string) error
}

// PostQueue — durable-очередь публикаций со статусным жизненным циклом.
type PostQueue interface {
	Enqueue(ctx context.Context, item PostItem) (QueueEntry, error)
	PeekPending(ctx context.Context, limit int) ([]QueueEntry, error)
	MarkPosted(ctx context.Context, id int64) error
	MarkFailed(ctx context.Context, id int64, message string) error
	Stats(ctx context.Context) (QueueStats, error)
}

// Publisher отправляет один нормализованный пост в целевой канал.
type Publisher interface {
	Publish(ctx context.Context, item PostItem) error
}

// Rewriter преобразует текст поста перед постановкой в очередь.
// Сейчас единственная реализация возвращает текст без изменений.
type Rewriter interface {
	Rewrite(ctx context.Context, text string) (string, error)
}

// Cache используется для простых TTL-хранилищ.
type Cache interface {
	Once(key string, ttl time.Duration, fn func() error) error
	Set(key string, value []byte, ttl time.Duration) error
	Get(key string) ([]byte, error)
}
