package ingest

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"tg-relay-bot/internal/domain"
	"tg-relay-bot/internal/infra/metrics"
)

// Fragment — один элемент альбома вместе с метаданными сообщения,
// из которого он пришёл.
type Fragment struct {
	Item   domain.AlbumItem
	Text   string
	Source domain.Source
}

type flushFn func(items []domain.AlbumItem, text string, src domain.Source)

type albumBuffer struct {
	items  []domain.AlbumItem
	text   string
	source domain.Source
	timer  *time.Timer
}

// Aggregator собирает фрагменты альбома по grouping id. Явного сигнала
// «альбом закончился» у транспорта нет, поэтому буфер сбрасывается после
// периода тишины. Таймер снимается и взводится заново на каждом фрагменте,
// так что для одного grouping id не может быть двух ожидающих таймеров.
type Aggregator struct {
	mu      sync.Mutex
	quiet   time.Duration
	buffers map[string]*albumBuffer
	flush   flushFn
	log     zerolog.Logger
}

// NewAggregator создаёт агрегатор с периодом тишины quiet.
func NewAggregator(quiet time.Duration, flush flushFn, log zerolog.Logger) *Aggregator {
	return &Aggregator{
		quiet:   quiet,
		buffers: make(map[string]*albumBuffer),
		flush:   flush,
		log:     log,
	}
}

// Add кладёт фрагмент в буфер группы. Первый фрагмент задаёт базовый
// текст и источник альбома; порядок элементов — порядок прихода.
func (a *Aggregator) Add(groupID string, frag Fragment) {
	a.mu.Lock()
	defer a.mu.Unlock()

	buf, ok := a.buffers[groupID]
	if !ok {
		buf = &albumBuffer{text: frag.Text, source: frag.Source}
		a.buffers[groupID] = buf
	}
	if !frag.Item.Media.IsZero() {
		buf.items = append(buf.items, frag.Item)
	}
	if buf.timer != nil {
		buf.timer.Stop()
	}
	buf.timer = time.AfterFunc(a.quiet, func() {
		a.flushGroup(groupID)
	})
}

func (a *Aggregator) flushGroup(groupID string) {
	a.mu.Lock()
	buf := a.buffers[groupID]
	delete(a.buffers, groupID)
	a.mu.Unlock()

	if buf == nil {
		return
	}
	if len(buf.items) == 0 {
		a.log.Debug().Str("group", groupID).Msg("ingest: пустой буфер альбома, отбрасываем")
		return
	}
	metrics.AlbumFlushesTotal.Inc()
	a.flush(buf.items, buf.text, buf.source)
}

// Pending возвращает число незакрытых буферов (для тестов и статуса).
func (a *Aggregator) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.buffers)
}
