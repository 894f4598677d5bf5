package relay

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"tg-relay-bot/internal/domain"
	"tg-relay-bot/internal/infra/metrics"
)

type state int

const (
	stateStopped state = iota
	stateRunning
	statePaused
)

// Scheduler — таймерный потребитель очереди публикаций. Каждый интервал
// забирает ограниченную пачку pending-записей в порядке создания и
// публикует их по одной. Ограниченный темп — осознанная защита
// целевого канала от всплесков: большой бэклог просто дренируется
// за несколько интервалов.
type Scheduler struct {
	mu    sync.Mutex
	state state
	done  chan struct{}

	queue     domain.PostQueue
	publisher domain.Publisher
	interval  time.Duration
	batch     int
	log       zerolog.Logger
}

// NewScheduler создаёт планировщик в состоянии stopped.
func NewScheduler(queue domain.PostQueue, publisher domain.Publisher, interval time.Duration, batch int, log zerolog.Logger) *Scheduler {
	if batch <= 0 {
		batch = 3
	}
	return &Scheduler{
		queue:     queue,
		publisher: publisher,
		interval:  interval,
		batch:     batch,
		log:       log,
	}
}

// Start переводит планировщик в running, немедленно делает один проход
// (чтобы не ждать целый интервал для дренажа бэклога) и взводит таймер.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.done != nil && s.state == stateRunning {
		s.mu.Unlock()
		s.log.Info().Msg("scheduler: уже запущен")
		return
	}
	s.state = stateRunning
	startTimer := s.done == nil
	if startTimer {
		s.done = make(chan struct{})
		go s.tickLoop(s.done)
	}
	s.mu.Unlock()

	s.log.Info().Dur("interval", s.interval).Int("batch", s.batch).Msg("scheduler: запущен")
	s.ProcessQueue(ctx)
}

func (s *Scheduler) tickLoop(done chan struct{}) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			s.ProcessQueue(context.Background())
		}
	}
}

// Pause приостанавливает обработку, не трогая таймер: тики продолжают
// приходить, но становятся no-op до Resume.
func (s *Scheduler) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == stateRunning {
		s.state = statePaused
	}
	s.log.Info().Msg("scheduler: пауза")
}

// Resume возвращает обработку. Если таймер был снят (после Stop),
// он пересоздаётся и сразу делается догоняющий проход, как при Start.
func (s *Scheduler) Resume(ctx context.Context) {
	s.mu.Lock()
	s.state = stateRunning
	startTimer := s.done == nil
	if startTimer {
		s.done = make(chan struct{})
		go s.tickLoop(s.done)
	}
	s.mu.Unlock()

	s.log.Info().Msg("scheduler: возобновлён")
	if startTimer {
		s.ProcessQueue(ctx)
	}
}

// Stop снимает таймер и переводит планировщик в stopped.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done != nil {
		close(s.done)
		s.done = nil
	}
	s.state = stateStopped
	s.log.Info().Msg("scheduler: остановлен")
}

// Running сообщает, обрабатывает ли планировщик тики.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == stateRunning
}

// Interval возвращает настроенный интервал публикации.
func (s *Scheduler) Interval() time.Duration { return s.interval }

// Batch возвращает размер пачки за интервал.
func (s *Scheduler) Batch() int { return s.batch }

// Stats возвращает счётчики очереди.
func (s *Scheduler) Stats(ctx context.Context) (domain.QueueStats, error) {
	return s.queue.Stats(ctx)
}

// ProcessQueue делает один проход: публикует до batch pending-записей
// в порядке создания. Ошибка одной записи не прерывает пачку — запись
// помечается failed и обработка продолжается.
func (s *Scheduler) ProcessQueue(ctx context.Context) {
	s.mu.Lock()
	running := s.state == stateRunning
	s.mu.Unlock()
	if !running {
		s.log.Debug().Msg("scheduler: пауза, проход пропущен")
		return
	}

	entries, err := s.queue.PeekPending(ctx, s.batch)
	if err != nil {
		s.log.Error().Err(err).Msg("scheduler: не удалось получить pending-записи")
		return
	}
	if len(entries) == 0 {
		s.log.Debug().Msg("scheduler: очередь пуста")
		return
	}

	s.log.Info().Int("count", len(entries)).Msg("scheduler: обработка пачки")
	for _, entry := range entries {
		if err := s.publisher.Publish(ctx, entry.Item); err != nil {
			metrics.PublishTotal.WithLabelValues("failed").Inc()
			s.log.Error().Err(err).Int64("entry", entry.ID).Msg("scheduler: публикация не удалась")
			if markErr := s.queue.MarkFailed(ctx, entry.ID, err.Error()); markErr != nil {
				s.log.Error().Err(markErr).Int64("entry", entry.ID).Msg("scheduler: не удалось пометить запись failed")
			}
			continue
		}
		metrics.PublishTotal.WithLabelValues("posted").Inc()
		if markErr := s.queue.MarkPosted(ctx, entry.ID); markErr != nil {
			s.log.Error().Err(markErr).Int64("entry", entry.ID).Msg("scheduler: не удалось пометить запись posted")
		}
	}

	stats, err := s.queue.Stats(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("scheduler: не удалось получить статистику очереди")
		return
	}
	metrics.QueuePending.Set(float64(stats.Pending))
	s.log.Info().
		Int("pending", stats.Pending).
		Int("posted", stats.Posted).
		Int("failed", stats.Failed).
		Msg("scheduler: состояние очереди")
}
