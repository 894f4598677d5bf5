package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"tg-relay-bot/internal/domain"
	"tg-relay-bot/internal/infra/metrics"
	"tg-relay-bot/internal/usecase/identity"
)

const dedupCacheTTL = 24 * time.Hour

// Inbound — входящее событие любого транспорта, приведённое к общему виду.
type Inbound struct {
	SourceKey string
	MessageID int64
	Source    domain.Source
	Kind      domain.PostKind
	Text      string
	GroupID   string
	Media     *domain.MediaRef
	Signal    identity.Signal
}

// Service — единый путь обработки входящих событий: дедуп, запись в
// леджер, агрегация альбомов, постановка в очередь. Один путь для всех
// транспортов, чтобы одно событие не могло обработаться дважды.
type Service struct {
	log      zerolog.Logger
	ledger   domain.DedupLedger
	queue    domain.PostQueue
	rewriter domain.Rewriter
	cache    domain.Cache
	agg      *Aggregator
}

// NewService создаёт сервис инжеста. cache может быть nil —
// тогда быстрая проверка дубликатов пропускается.
func NewService(ledger domain.DedupLedger, queue domain.PostQueue, rewriter domain.Rewriter, cache domain.Cache, quiet time.Duration, log zerolog.Logger) *Service {
	s := &Service{
		log:      log,
		ledger:   ledger,
		queue:    queue,
		rewriter: rewriter,
		cache:    cache,
	}
	s.agg = NewAggregator(quiet, s.flushAlbum, log)
	return s
}

// Handle проводит событие через конвейер. Ошибка возвращается только
// когда потеряна постановка в очередь — её вызывающий логирует и
// отбрасывает событие.
func (s *Service) Handle(ctx context.Context, in Inbound) error {
	logger := s.log.With().
		Str("event", uuid.NewString()).
		Str("source", in.SourceKey).
		Int64("msg", in.MessageID).
		Str("kind", string(in.Kind)).
		Logger()

	if s.seen(ctx, in, logger) {
		metrics.DedupSkippedTotal.Inc()
		logger.Debug().Msg("ingest: дубликат, пропускаем")
		return nil
	}

	fp := identity.Fingerprint(in.Signal)
	if err := s.ledger.Mark(ctx, in.SourceKey, in.MessageID, fp); err != nil {
		// Потеря записи леджера дешевле потери поста: продолжаем без гарантии дедупа.
		logger.Error().Err(err).Msg("ingest: не удалось записать леджер дедупа")
	}
	s.cacheSeen(in)
	metrics.IngestedTotal.WithLabelValues(string(in.Kind)).Inc()

	if in.GroupID != "" {
		frag := Fragment{Text: in.Text, Source: in.Source}
		if in.Media != nil {
			frag.Item = domain.AlbumItem{Kind: in.Kind, Media: *in.Media, Caption: in.Text}
		}
		s.agg.Add(in.GroupID, frag)
		return nil
	}

	item, err := s.buildItem(ctx, in)
	if err != nil {
		return err
	}
	if _, err := s.queue.Enqueue(ctx, item); err != nil {
		return fmt.Errorf("постановка в очередь: %w", err)
	}
	logger.Info().Msg("ingest: событие поставлено в очередь")
	return nil
}

func (s *Service) buildItem(ctx context.Context, in Inbound) (domain.PostItem, error) {
	text, err := s.rewriter.Rewrite(ctx, in.Text)
	if err != nil {
		text = in.Text
	}
	item := domain.PostItem{Source: in.Source, Kind: in.Kind, Text: text}
	switch in.Kind {
	case domain.KindText:
		if text == "" {
			return domain.PostItem{}, fmt.Errorf("текстовое событие без текста")
		}
	case domain.KindPhoto, domain.KindVideo, domain.KindAnimation:
		if in.Media == nil || in.Media.IsZero() {
			return domain.PostItem{}, fmt.Errorf("медиа-событие %s без медиа", in.Kind)
		}
		item.Media = in.Media
	default:
		return domain.PostItem{}, fmt.Errorf("неподдерживаемый тип события: %s", in.Kind)
	}
	return item, nil
}

// seen проверяет дубликат: сначала кэш, затем леджер. Ошибки хранилищ
// деградируют до «не дубликат» — доступность релея важнее идеального
// дедупа.
func (s *Service) seen(ctx context.Context, in Inbound, logger zerolog.Logger) bool {
	if s.cache != nil {
		if _, err := s.cache.Get(dedupKey(in.SourceKey, in.MessageID)); err == nil {
			return true
		}
	}
	dup, err := s.ledger.IsDuplicate(ctx, in.SourceKey, in.MessageID)
	if err != nil {
		logger.Error().Err(err).Msg("ingest: ошибка проверки дубликата, считаем новым")
		return false
	}
	return dup
}

func (s *Service) cacheSeen(in Inbound) {
	if s.cache == nil {
		return
	}
	_ = s.cache.Set(dedupKey(in.SourceKey, in.MessageID), []byte("1"), dedupCacheTTL)
}

func dedupKey(sourceKey string, messageID int64) string {
	return fmt.Sprintf("dedup:%s:%d", sourceKey, messageID)
}

// flushAlbum вызывается агрегатором после периода тишины. Буфер к этому
// моменту уже удалён, поэтому ошибка постановки в очередь теряет альбом.
func (s *Service) flushAlbum(items []domain.AlbumItem, text string, src domain.Source) {
	item := domain.PostItem{
		Source: src,
		Kind:   domain.KindAlbum,
		Text:   text,
		Album:  items,
	}
	if _, err := s.queue.Enqueue(context.Background(), item); err != nil {
		s.log.Error().Err(err).Int("items", len(items)).Msg("ingest: альбом не попал в очередь и потерян")
		return
	}
	s.log.Info().Int("items", len(items)).Msg("ingest: альбом поставлен в очередь")
}
