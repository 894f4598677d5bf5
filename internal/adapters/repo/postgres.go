package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"tg-relay-bot/internal/domain"
	"tg-relay-bot/internal/infra/metrics"
)

// Postgres реализует леджер дедупа и очередь публикаций на pgxpool.
type Postgres struct {
	pool *pgxpool.Pool
}

var (
	_ domain.DedupLedger = (*Postgres)(nil)
	_ domain.PostQueue   = (*Postgres)(nil)
)

// NewPostgres создаёт адаптер БД.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) connCtx(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	if _, ok := parent.Deadline(); ok {
		return parent, func() {}
	}
	return context.WithTimeout(parent, 5*time.Second)
}

// Migrate создаёт таблицы релея, если их ещё нет.
func (p *Postgres) Migrate(ctx context.Context) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS reposts (
	id BIGSERIAL PRIMARY KEY,
	source_name TEXT NOT NULL,
	message_id BIGINT NOT NULL,
	content_hash TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (source_name, message_id)
);
CREATE TABLE IF NOT EXISTS post_queue (
	id BIGSERIAL PRIMARY KEY,
	payload JSONB NOT NULL,
	status TEXT NOT NULL DEFAULT 'pending',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	posted_at TIMESTAMPTZ,
	error_message TEXT
);
CREATE INDEX IF NOT EXISTS post_queue_status_created_idx ON post_queue (status, created_at);
`)
	metrics.ObserveNetworkRequest("postgres", "migrate", "relay", start, err)
	if err != nil {
		return fmt.Errorf("миграция схемы: %w", err)
	}
	return nil
}

// IsDuplicate реализует domain.DedupLedger.
func (p *Postgres) IsDuplicate(ctx context.Context, sourceName string, messageID int64) (bool, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	var exists bool
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
SELECT EXISTS (SELECT 1 FROM reposts WHERE source_name=$1 AND message_id=$2)
`, sourceName, messageID).Scan(&exists)
	metrics.ObserveNetworkRequest("postgres", "reposts_exists", "reposts", start, err)
	if err != nil {
		return false, fmt.Errorf("проверка дубликата: %w", err)
	}
	return exists, nil
}

// Mark идемпотентно записывает пару (источник, message_id); повторная
// запись лишь обновляет отпечаток.
func (p *Postgres) Mark(ctx context.Context, sourceName string, messageID int64, fingerprint string) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
INSERT INTO reposts (source_name, message_id, content_hash)
VALUES ($1, $2, $3)
ON CONFLICT (source_name, message_id) DO UPDATE SET content_hash = EXCLUDED.content_hash
`, sourceName, messageID, fingerprint)
	metrics.ObserveNetworkRequest("postgres", "reposts_upsert", "reposts", start, err)
	if err != nil {
		return fmt.Errorf("запись леджера: %w", err)
	}
	return nil
}

// Enqueue добавляет pending-запись. Ошибка возвращается вызывающему:
// потеря этой записи недопустима молча.
func (p *Postgres) Enqueue(ctx context.Context, item domain.PostItem) (domain.QueueEntry, error) {
	payload, err := json.Marshal(item)
	if err != nil {
		return domain.QueueEntry{}, fmt.Errorf("сериализация поста: %w", err)
	}

	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	entry := domain.QueueEntry{Item: item, Status: domain.StatusPending}
	start := time.Now()
	err = p.pool.QueryRow(ctx, `
INSERT INTO post_queue (payload, status) VALUES ($1, 'pending')
RETURNING id, created_at
`, payload).Scan(&entry.ID, &entry.CreatedAt)
	metrics.ObserveNetworkRequest("postgres", "post_queue_insert", "post_queue", start, err)
	if err != nil {
		return domain.QueueEntry{}, fmt.Errorf("вставка в очередь: %w", err)
	}
	return entry, nil
}

// PeekPending возвращает до limit pending-записей, старые первыми.
func (p *Postgres) PeekPending(ctx context.Context, limit int) ([]domain.QueueEntry, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT id, payload, status, created_at, posted_at, error_message
FROM post_queue
WHERE status='pending'
ORDER BY created_at ASC
LIMIT $1
`, limit)
	metrics.ObserveNetworkRequest("postgres", "post_queue_peek", "post_queue", start, err)
	if err != nil {
		return nil, fmt.Errorf("выборка pending: %w", err)
	}
	defer rows.Close()

	var entries []domain.QueueEntry
	for rows.Next() {
		var (
			entry    domain.QueueEntry
			payload  []byte
			postedAt sql.NullTime
			errMsg   sql.NullString
		)
		if err := rows.Scan(&entry.ID, &payload, &entry.Status, &entry.CreatedAt, &postedAt, &errMsg); err != nil {
			return nil, fmt.Errorf("чтение записи очереди: %w", err)
		}
		if err := json.Unmarshal(payload, &entry.Item); err != nil {
			return nil, fmt.Errorf("десериализация поста %d: %w", entry.ID, err)
		}
		if postedAt.Valid {
			ts := postedAt.Time
			entry.PostedAt = &ts
		}
		if errMsg.Valid {
			entry.ErrorMessage = errMsg.String
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// MarkPosted переводит запись в posted.
func (p *Postgres) MarkPosted(ctx context.Context, id int64) error {
	return p.setStatus(ctx, id, domain.StatusPosted, "")
}

// MarkFailed переводит запись в failed и сохраняет текст ошибки.
func (p *Postgres) MarkFailed(ctx context.Context, id int64, message string) error {
	return p.setStatus(ctx, id, domain.StatusFailed, message)
}

func (p *Postgres) setStatus(ctx context.Context, id int64, status domain.QueueStatus, message string) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	var errArg any
	if message != "" {
		errArg = message
	}
	start := time.Now()
	_, err := p.pool.Exec(ctx, `
UPDATE post_queue SET status=$2, posted_at=now(), error_message=$3 WHERE id=$1
`, id, status, errArg)
	metrics.ObserveNetworkRequest("postgres", "post_queue_set_status", "post_queue", start, err)
	if err != nil {
		return fmt.Errorf("обновление статуса %d: %w", id, err)
	}
	return nil
}

// Stats возвращает счётчики записей по статусам.
func (p *Postgres) Stats(ctx context.Context) (domain.QueueStats, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `SELECT status, COUNT(*) FROM post_queue GROUP BY status`)
	metrics.ObserveNetworkRequest("postgres", "post_queue_stats", "post_queue", start, err)
	if err != nil {
		return domain.QueueStats{}, fmt.Errorf("статистика очереди: %w", err)
	}
	defer rows.Close()

	var stats domain.QueueStats
	for rows.Next() {
		var (
			status string
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return domain.QueueStats{}, fmt.Errorf("чтение статистики: %w", err)
		}
		switch domain.QueueStatus(status) {
		case domain.StatusPending:
			stats.Pending = count
		case domain.StatusPosted:
			stats.Posted = count
		case domain.StatusFailed:
			stats.Failed = count
		}
	}
	return stats, rows.Err()
}
