package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"tg-relay-bot/internal/domain"
	"tg-relay-bot/internal/usecase/identity"
)

type stubLedger struct {
	mu      sync.Mutex
	records map[string]string
	failAll bool
}

func newStubLedger() *stubLedger {
	return &stubLedger{records: make(map[string]string)}
}

func ledgerKey(source string, id int64) string { return fmt.Sprintf("%s:%d", source, id) }

func (l *stubLedger) IsDuplicate(_ context.Context, source string, id int64) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failAll {
		return false, errors.New("хранилище недоступно")
	}
	_, ok := l.records[ledgerKey(source, id)]
	return ok, nil
}

func (l *stubLedger) Mark(_ context.Context, source string, id int64, fp string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failAll {
		return errors.New("хранилище недоступно")
	}
	l.records[ledgerKey(source, id)] = fp
	return nil
}

type stubQueue struct {
	mu      sync.Mutex
	entries []domain.QueueEntry
	nextID  int64
	failing bool
}

func (q *stubQueue) Enqueue(_ context.Context, item domain.PostItem) (domain.QueueEntry, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.failing {
		return domain.QueueEntry{}, errors.New("insert failed")
	}
	q.nextID++
	entry := domain.QueueEntry{ID: q.nextID, Item: item, Status: domain.StatusPending, CreatedAt: time.Now()}
	q.entries = append(q.entries, entry)
	return entry, nil
}

func (q *stubQueue) PeekPending(_ context.Context, limit int) ([]domain.QueueEntry, error) {
	return nil, nil
}
func (q *stubQueue) MarkPosted(_ context.Context, id int64) error            { return nil }
func (q *stubQueue) MarkFailed(_ context.Context, id int64, m string) error  { return nil }
func (q *stubQueue) Stats(_ context.Context) (domain.QueueStats, error)      { return domain.QueueStats{}, nil }

func (q *stubQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

type noopRewriter struct{}

func (noopRewriter) Rewrite(_ context.Context, text string) (string, error) { return text, nil }

func newTestService(ledger *stubLedger, queue *stubQueue, quiet time.Duration) *Service {
	return NewService(ledger, queue, noopRewriter{}, nil, quiet, zerolog.Nop())
}

func photoInbound(source string, id int64) Inbound {
	return Inbound{
		SourceKey: source,
		MessageID: id,
		Source:    domain.Source{Title: "News", Username: "news"},
		Kind:      domain.KindPhoto,
		Text:      "Hello",
		Media:     &domain.MediaRef{FileID: "photo-1"},
		Signal:    identity.Signal{PhotoUID: "uid-1", Caption: "Hello", MessageID: id},
	}
}

func TestHandleEnqueuesPhoto(t *testing.T) {
	ledger := newStubLedger()
	queue := &stubQueue{}
	svc := newTestService(ledger, queue, time.Second)

	if err := svc.Handle(context.Background(), photoInbound("channel-1", 10)); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if queue.len() != 1 {
		t.Fatalf("ожидали одну запись очереди, получили %d", queue.len())
	}
	entry := queue.entries[0]
	if entry.Item.Kind != domain.KindPhoto || entry.Item.Text != "Hello" {
		t.Fatalf("ожидали photo с текстом Hello, получили %+v", entry.Item)
	}
	if entry.Status != domain.StatusPending {
		t.Fatalf("ожидали статус pending, получили %s", entry.Status)
	}
	if _, ok := ledger.records["channel-1:10"]; !ok {
		t.Fatal("ожидали запись в леджере дедупа")
	}
}

func TestHandleSuppressesDuplicate(t *testing.T) {
	ledger := newStubLedger()
	queue := &stubQueue{}
	svc := newTestService(ledger, queue, time.Second)

	in := photoInbound("channel-1", 10)
	if err := svc.Handle(context.Background(), in); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	// Повторная доставка того же сообщения, например после рестарта.
	if err := svc.Handle(context.Background(), in); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if queue.len() != 1 {
		t.Fatalf("дубликат не должен попадать в очередь, записей %d", queue.len())
	}
}

func TestHandleLedgerFailureDegradesToNew(t *testing.T) {
	ledger := newStubLedger()
	ledger.failAll = true
	queue := &stubQueue{}
	svc := newTestService(ledger, queue, time.Second)

	if err := svc.Handle(context.Background(), photoInbound("channel-1", 10)); err != nil {
		t.Fatalf("ошибка леджера не должна блокировать конвейер: %v", err)
	}
	if queue.len() != 1 {
		t.Fatal("ожидали постановку в очередь несмотря на ошибку леджера")
	}
}

func TestHandlePropagatesEnqueueError(t *testing.T) {
	ledger := newStubLedger()
	queue := &stubQueue{failing: true}
	svc := newTestService(ledger, queue, time.Second)

	if err := svc.Handle(context.Background(), photoInbound("channel-1", 10)); err == nil {
		t.Fatal("ожидали ошибку постановки в очередь")
	}
}

func TestHandleAggregatesAlbum(t *testing.T) {
	ledger := newStubLedger()
	queue := &stubQueue{}
	svc := newTestService(ledger, queue, 30*time.Millisecond)

	for i := int64(1); i <= 3; i++ {
		in := photoInbound("channel-1", i)
		in.GroupID = "777"
		in.Media = &domain.MediaRef{FileID: fmt.Sprintf("photo-%d", i)}
		if i > 1 {
			in.Text = ""
		}
		if err := svc.Handle(context.Background(), in); err != nil {
			t.Fatalf("не ожидали ошибку: %v", err)
		}
	}

	if queue.len() != 0 {
		t.Fatal("альбом не должен попадать в очередь до периода тишины")
	}
	time.Sleep(120 * time.Millisecond)

	if queue.len() != 1 {
		t.Fatalf("ожидали одну запись альбома, получили %d", queue.len())
	}
	entry := queue.entries[0]
	if entry.Item.Kind != domain.KindAlbum {
		t.Fatalf("ожидали kind=album, получили %s", entry.Item.Kind)
	}
	if len(entry.Item.Album) != 3 {
		t.Fatalf("ожидали 3 элемента альбома, получили %d", len(entry.Item.Album))
	}
	if entry.Item.Text != "Hello" {
		t.Fatalf("ожидали базовый текст первого фрагмента, получили %q", entry.Item.Text)
	}
}

func TestHandleTextWithoutBodyRejected(t *testing.T) {
	svc := newTestService(newStubLedger(), &stubQueue{}, time.Second)
	in := Inbound{SourceKey: "s", MessageID: 1, Kind: domain.KindText}
	if err := svc.Handle(context.Background(), in); err == nil {
		t.Fatal("ожидали ошибку для пустого текстового события")
	}
}
