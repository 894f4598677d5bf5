package bot

import (
	"context"
	"fmt"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"tg-relay-bot/internal/domain"
	"tg-relay-bot/internal/infra/metrics"
	"tg-relay-bot/internal/usecase/identity"
	"tg-relay-bot/internal/usecase/ingest"
	"tg-relay-bot/internal/usecase/relay"
)

// pushSourceKey — имя источника в леджере для сообщений, присланных боту в ЛС.
const pushSourceKey = "ingest"

// Handler обслуживает личные сообщения боту: административные команды
// планировщика и push-инжест пересланных постов.
type Handler struct {
	bot           *tgbotapi.BotAPI
	log           zerolog.Logger
	scheduler     *relay.Scheduler
	ingest        *ingest.Service
	fallbackTitle string
}

// NewHandler создаёт обработчик. fallbackTitle подставляется источником,
// когда у сообщения нет данных о пересылке.
func NewHandler(bot *tgbotapi.BotAPI, scheduler *relay.Scheduler, ingestSvc *ingest.Service, fallbackTitle string, log zerolog.Logger) *Handler {
	return &Handler{
		bot:           bot,
		log:           log,
		scheduler:     scheduler,
		ingest:        ingestSvc,
		fallbackTitle: fallbackTitle,
	}
}

// HandleUpdate обрабатывает входящий апдейт. Только личные чаты:
// групповой шум игнорируется.
func (h *Handler) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	msg := upd.Message
	if msg == nil || msg.Chat == nil || !msg.Chat.IsPrivate() {
		return
	}
	if msg.IsCommand() {
		h.handleCommand(ctx, msg)
		return
	}
	h.handleIngest(ctx, msg)
}

func (h *Handler) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	switch msg.Command() {
	case "start":
		h.reply(msg.Chat.ID, "Релей активен. Присылайте или пересылайте сообщения — они попадут в очередь и будут опубликованы в канале.\n\nКоманды:\n/queue — состояние очереди\n/pause — приостановить публикацию\n/resume — возобновить публикацию\n/process — обработать очередь сейчас\n/status — статус планировщика")
	case "queue", "status":
		h.replyStatus(ctx, msg.Chat.ID)
	case "pause":
		h.scheduler.Pause()
		h.reply(msg.Chat.ID, "⏸️ Очередь на паузе. Публикация остановлена до /resume.")
	case "resume":
		h.scheduler.Resume(ctx)
		h.reply(msg.Chat.ID, "▶️ Очередь возобновлена.")
	case "process":
		h.reply(msg.Chat.ID, "🔄 Обрабатываю очередь...")
		h.scheduler.ProcessQueue(ctx)
		h.replyStatus(ctx, msg.Chat.ID)
	default:
		h.reply(msg.Chat.ID, "Неизвестная команда. Используйте /start")
	}
}

func (h *Handler) replyStatus(ctx context.Context, chatID int64) {
	stats, err := h.scheduler.Stats(ctx)
	if err != nil {
		h.log.Error().Err(err).Msg("bot: не удалось получить статистику очереди")
		h.reply(chatID, "Не удалось получить состояние очереди.")
		return
	}
	state := "⏸️ Пауза"
	if h.scheduler.Running() {
		state = "✅ Работает"
	}
	h.reply(chatID, fmt.Sprintf(
		"📊 Очередь: %s\n\n⏳ Ожидают: %d\n✅ Опубликовано: %d\n❌ Ошибки: %d\n\n⚙️ Темп: %d постов каждые %s",
		state, stats.Pending, stats.Posted, stats.Failed,
		h.scheduler.Batch(), h.scheduler.Interval(),
	))
}

func (h *Handler) handleIngest(ctx context.Context, msg *tgbotapi.Message) {
	in, ok := inboundFromMessage(msg, h.fallbackTitle)
	if !ok {
		return
	}
	h.log.Info().
		Str("kind", string(in.Kind)).
		Bool("album", in.GroupID != "").
		Int64("msg", in.MessageID).
		Msg("bot: принято сообщение в ЛС")
	if err := h.ingest.Handle(ctx, in); err != nil {
		// Событие, не попавшее в очередь, теряется — только логируем.
		h.log.Error().Err(err).Int64("msg", in.MessageID).Msg("bot: событие отброшено")
	}
}

// inboundFromMessage приводит сообщение Bot API к общему входящему
// событию. false — в сообщении нечего релеить.
func inboundFromMessage(msg *tgbotapi.Message, fallbackTitle string) (ingest.Inbound, bool) {
	in := ingest.Inbound{
		SourceKey: pushSourceKey,
		MessageID: int64(msg.MessageID),
		Source:    sourceFromMessage(msg, fallbackTitle),
		GroupID:   msg.MediaGroupID,
		Signal: identity.Signal{
			GroupID:   msg.MediaGroupID,
			Text:      msg.Text,
			Caption:   msg.Caption,
			MessageID: int64(msg.MessageID),
		},
	}

	switch {
	case len(msg.Photo) > 0:
		photo := pickLargestPhoto(msg.Photo)
		in.Kind = domain.KindPhoto
		in.Text = msg.Caption
		in.Media = &domain.MediaRef{FileID: photo.FileID}
		in.Signal.PhotoUID = photo.FileUniqueID
	case msg.Video != nil:
		in.Kind = domain.KindVideo
		in.Text = msg.Caption
		in.Media = &domain.MediaRef{FileID: msg.Video.FileID}
		in.Signal.VideoUID = msg.Video.FileUniqueID
	case msg.Animation != nil:
		in.Kind = domain.KindAnimation
		in.Text = msg.Caption
		in.Media = &domain.MediaRef{FileID: msg.Animation.FileID}
		in.Signal.AnimationUID = msg.Animation.FileUniqueID
	case msg.Text != "":
		in.Kind = domain.KindText
		in.Text = msg.Text
	default:
		return ingest.Inbound{}, false
	}
	return in, true
}

// pickLargestPhoto выбирает самый крупный размер из массива Bot API.
func pickLargestPhoto(sizes []tgbotapi.PhotoSize) tgbotapi.PhotoSize {
	best := sizes[0]
	for _, s := range sizes[1:] {
		if s.FileSize > best.FileSize || (s.FileSize == best.FileSize && s.Width*s.Height > best.Width*best.Height) {
			best = s
		}
	}
	return best
}

func sourceFromMessage(msg *tgbotapi.Message, fallbackTitle string) domain.Source {
	if msg.ForwardFromChat != nil {
		return domain.Source{Title: msg.ForwardFromChat.Title, Username: msg.ForwardFromChat.UserName}
	}
	if msg.ForwardFrom != nil {
		return domain.Source{Title: msg.ForwardFrom.FirstName, Username: msg.ForwardFrom.UserName}
	}
	if fallbackTitle == "" {
		fallbackTitle = "unknown"
	}
	return domain.Source{Title: fallbackTitle}
}

func (h *Handler) reply(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	start := time.Now()
	_, err := h.bot.Send(msg)
	metrics.ObserveNetworkRequest("telegram_bot", "send_message", strconv.FormatInt(chatID, 10), start, err)
	if err != nil {
		h.log.Error().Err(err).Int64("chat", chatID).Msg("bot: не удалось отправить ответ")
	}
}
