package bridge

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"tg-relay-bot/internal/domain"
	"tg-relay-bot/internal/usecase/identity"
	"tg-relay-bot/internal/usecase/ingest"
)

// event — формат сообщения из внешней очереди. Внешние системы кладут
// сюда посты для релея, минуя Telegram.
type event struct {
	SourceKey string `json:"source_key"`
	MessageID int64  `json:"message_id"`
	Source    struct {
		Title    string `json:"title"`
		Username string `json:"username"`
	} `json:"source"`
	Kind    string `json:"kind"`
	Text    string `json:"text"`
	GroupID string `json:"group_id,omitempty"`
	Media   *struct {
		FileID   string `json:"file_id,omitempty"`
		Data     []byte `json:"data,omitempty"`
		Filename string `json:"filename,omitempty"`
	} `json:"media,omitempty"`
	MediaUID string `json:"media_uid,omitempty"`
}

// Bridge читает внешние события инжеста из AMQP очереди.
type Bridge struct {
	conn   *amqp.Connection
	ch     *amqp.Channel
	queue  string
	ingest *ingest.Service
	log    zerolog.Logger
}

// NewBridge подключается к брокеру и объявляет устойчивую очередь.
func NewBridge(url, queue string, ingestSvc *ingest.Service, log zerolog.Logger) (*Bridge, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("подключение к amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("открытие канала amqp: %w", err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("объявление очереди %s: %w", queue, err)
	}
	return &Bridge{conn: conn, ch: ch, queue: queue, ingest: ingestSvc, log: log}, nil
}

// Run потребляет события до отмены контекста. Битые сообщения
// подтверждаются и отбрасываются; ошибка конвейера возвращает
// сообщение в очередь.
func (b *Bridge) Run(ctx context.Context) error {
	deliveries, err := b.ch.Consume(b.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("подписка на очередь %s: %w", b.queue, err)
	}
	b.log.Info().Str("queue", b.queue).Msg("bridge: потребление запущено")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("канал доставки закрыт")
			}
			b.handleDelivery(ctx, d)
		}
	}
}

func (b *Bridge) handleDelivery(ctx context.Context, d amqp.Delivery) {
	in, err := decode(d.Body)
	if err != nil {
		b.log.Warn().Err(err).Msg("bridge: битое сообщение отброшено")
		_ = d.Ack(false)
		return
	}
	if err := b.ingest.Handle(ctx, in); err != nil {
		// Одна повторная попытка: событие, упавшее дважды, отбрасывается,
		// чтобы не зациклить очередь.
		if d.Redelivered {
			b.log.Error().Err(err).Int64("msg", in.MessageID).Msg("bridge: событие упало повторно и отброшено")
			_ = d.Ack(false)
			return
		}
		b.log.Error().Err(err).Int64("msg", in.MessageID).Msg("bridge: событие вернётся в очередь")
		_ = d.Nack(false, true)
		return
	}
	_ = d.Ack(false)
}

func decode(body []byte) (ingest.Inbound, error) {
	var ev event
	if err := json.Unmarshal(body, &ev); err != nil {
		return ingest.Inbound{}, fmt.Errorf("разбор события: %w", err)
	}
	if ev.SourceKey == "" || ev.MessageID == 0 {
		return ingest.Inbound{}, fmt.Errorf("событие без source_key или message_id")
	}

	kind := domain.PostKind(ev.Kind)
	in := ingest.Inbound{
		SourceKey: ev.SourceKey,
		MessageID: ev.MessageID,
		Source:    domain.Source{Title: ev.Source.Title, Username: ev.Source.Username},
		Kind:      kind,
		Text:      ev.Text,
		GroupID:   ev.GroupID,
		Signal: identity.Signal{
			GroupID:   ev.GroupID,
			MessageID: ev.MessageID,
		},
	}
	if ev.Media != nil {
		in.Media = &domain.MediaRef{FileID: ev.Media.FileID, Data: ev.Media.Data, Filename: ev.Media.Filename}
	}

	switch kind {
	case domain.KindText:
		in.Signal.Text = ev.Text
	case domain.KindPhoto:
		in.Signal.Caption = ev.Text
		in.Signal.PhotoUID = ev.MediaUID
	case domain.KindVideo:
		in.Signal.Caption = ev.Text
		in.Signal.VideoUID = ev.MediaUID
	case domain.KindAnimation:
		in.Signal.Caption = ev.Text
		in.Signal.AnimationUID = ev.MediaUID
	default:
		return ingest.Inbound{}, fmt.Errorf("неизвестный тип события: %q", ev.Kind)
	}
	return in, nil
}

// Close закрывает канал и соединение.
func (b *Bridge) Close() {
	if b.ch != nil {
		_ = b.ch.Close()
	}
	if b.conn != nil {
		_ = b.conn.Close()
	}
}
