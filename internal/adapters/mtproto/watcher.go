package mtproto

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gotd/td/session"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/downloader"
	"github.com/gotd/td/tg"
	"github.com/rs/zerolog"

	"tg-relay-bot/internal/domain"
	"tg-relay-bot/internal/infra/metrics"
	"tg-relay-bot/internal/usecase/identity"
	"tg-relay-bot/internal/usecase/ingest"
)

// Watcher наблюдает за новыми сообщениями через gotd и передаёт
// допущенные события в общий конвейер инжеста. Канальные и обычные
// апдейты сходятся в один обработчик: одно событие не может пройти
// конвейер дважды.
type Watcher struct {
	client *telegram.Client
	api    *tg.Client
	dl     *downloader.Downloader

	allow  *identity.Allowlist
	ingest *ingest.Service
	log    zerolog.Logger

	mu    sync.Mutex
	peers map[int64]domain.Source
}

// NewWatcher создаёт MTProto клиент с файловой сессией.
func NewWatcher(apiID int, apiHash, sessionFile string, allow *identity.Allowlist, ingestSvc *ingest.Service, log zerolog.Logger) *Watcher {
	w := &Watcher{
		dl:     downloader.NewDownloader(),
		allow:  allow,
		ingest: ingestSvc,
		log:    log,
		peers:  make(map[int64]domain.Source),
	}

	dispatcher := tg.NewUpdateDispatcher()
	dispatcher.OnNewChannelMessage(func(ctx context.Context, e tg.Entities, u *tg.UpdateNewChannelMessage) error {
		w.onMessage(ctx, e, u.Message)
		return nil
	})
	dispatcher.OnNewMessage(func(ctx context.Context, e tg.Entities, u *tg.UpdateNewMessage) error {
		w.onMessage(ctx, e, u.Message)
		return nil
	})

	w.client = telegram.NewClient(apiID, apiHash, telegram.Options{
		SessionStorage: &session.FileStorage{Path: sessionFile},
		UpdateHandler:  dispatcher,
	})
	return w
}

// Run подключается и наблюдает до отмены контекста. Сессия должна быть
// авторизована заранее (cmd/session-login).
func (w *Watcher) Run(ctx context.Context) error {
	return w.client.Run(ctx, func(ctx context.Context) error {
		status, err := w.client.Auth().Status(ctx)
		if err != nil {
			return fmt.Errorf("статус авторизации: %w", err)
		}
		if !status.Authorized {
			return fmt.Errorf("сессия MTProto не авторизована, выполните session-login")
		}
		w.api = w.client.API()
		w.log.Info().Msg("watcher: наблюдение запущено")
		<-ctx.Done()
		return ctx.Err()
	})
}

// onMessage — единственный путь обработки наблюдаемого сообщения.
// Ошибки события логируются и не роняют цикл наблюдения.
func (w *Watcher) onMessage(ctx context.Context, e tg.Entities, msg tg.MessageClass) {
	m, ok := msg.(*tg.Message)
	if !ok || m.Out {
		return
	}
	meta, sourceKey, ok := w.peerMeta(e, m.PeerID)
	if !ok {
		return
	}
	if !w.allow.Allowed(meta) {
		return
	}

	in, ok, err := w.inboundFromMessage(ctx, sourceKey, meta, m)
	if err != nil {
		w.log.Error().Err(err).Str("source", sourceKey).Int("msg", m.ID).Msg("watcher: событие отброшено")
		return
	}
	if !ok {
		return
	}
	if err := w.ingest.Handle(ctx, in); err != nil {
		w.log.Error().Err(err).Str("source", sourceKey).Int("msg", m.ID).Msg("watcher: событие не попало в очередь")
	}
}

// peerMeta возвращает метаданные источника из сущностей апдейта,
// запоминая их в памяти: не каждый апдейт несёт полный набор сущностей.
func (w *Watcher) peerMeta(e tg.Entities, peer tg.PeerClass) (domain.Source, string, bool) {
	var (
		id  int64
		src domain.Source
		hit bool
	)
	switch p := peer.(type) {
	case *tg.PeerChannel:
		id = p.ChannelID
		if ch, ok := e.Channels[id]; ok {
			src = domain.Source{Title: ch.Title, Username: ch.Username}
			hit = true
		}
	case *tg.PeerChat:
		id = p.ChatID
		if chat, ok := e.Chats[id]; ok {
			src = domain.Source{Title: chat.Title}
			hit = true
		}
	case *tg.PeerUser:
		id = p.UserID
		if user, ok := e.Users[id]; ok {
			src = domain.Source{Title: user.FirstName, Username: user.Username}
			hit = true
		}
	default:
		return domain.Source{}, "", false
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if hit {
		w.peers[id] = src
	} else {
		src = w.peers[id]
	}
	return src, strconv.FormatInt(id, 10), true
}

func (w *Watcher) inboundFromMessage(ctx context.Context, sourceKey string, meta domain.Source, m *tg.Message) (ingest.Inbound, bool, error) {
	kind, ok := classify(m)
	if !ok {
		return ingest.Inbound{}, false, nil
	}

	in := ingest.Inbound{
		SourceKey: sourceKey,
		MessageID: int64(m.ID),
		Source:    meta,
		Kind:      kind,
		Text:      m.Message,
		Signal:    identity.Signal{MessageID: int64(m.ID)},
	}
	if gid, ok := m.GetGroupedID(); ok && gid != 0 {
		in.GroupID = strconv.FormatInt(gid, 10)
		in.Signal.GroupID = in.GroupID
	}

	if kind == domain.KindText {
		in.Signal.Text = m.Message
		return in, true, nil
	}

	in.Signal.Caption = m.Message
	media, uid, err := w.downloadMedia(ctx, kind, m)
	if err != nil {
		return ingest.Inbound{}, false, err
	}
	in.Media = media
	switch kind {
	case domain.KindPhoto:
		in.Signal.PhotoUID = uid
	case domain.KindVideo:
		in.Signal.VideoUID = uid
	case domain.KindAnimation:
		in.Signal.AnimationUID = uid
	}
	return in, true, nil
}

// classify определяет тип поста. Неподдерживаемые медиа и пустые
// сообщения пропускаются.
func classify(m *tg.Message) (domain.PostKind, bool) {
	switch media := m.Media.(type) {
	case *tg.MessageMediaPhoto:
		return domain.KindPhoto, true
	case *tg.MessageMediaDocument:
		doc, ok := media.Document.(*tg.Document)
		if !ok {
			return "", false
		}
		if doc.MimeType == "image/gif" || hasAnimatedAttr(doc) {
			return domain.KindAnimation, true
		}
		if strings.HasPrefix(doc.MimeType, "video/") {
			return domain.KindVideo, true
		}
		return "", false
	}
	if strings.TrimSpace(m.Message) != "" {
		return domain.KindText, true
	}
	return "", false
}

func hasAnimatedAttr(doc *tg.Document) bool {
	for _, attr := range doc.Attributes {
		if _, ok := attr.(*tg.DocumentAttributeAnimated); ok {
			return true
		}
	}
	return false
}

// downloadMedia скачивает медиа сообщения в память и возвращает байты
// вместе с идентификатором медиа для отпечатка.
func (w *Watcher) downloadMedia(ctx context.Context, kind domain.PostKind, m *tg.Message) (*domain.MediaRef, string, error) {
	switch media := m.Media.(type) {
	case *tg.MessageMediaPhoto:
		photo, ok := media.Photo.(*tg.Photo)
		if !ok {
			return nil, "", fmt.Errorf("фото без содержимого")
		}
		loc := &tg.InputPhotoFileLocation{
			ID:            photo.ID,
			AccessHash:    photo.AccessHash,
			FileReference: photo.FileReference,
			ThumbSize:     largestPhotoSize(photo),
		}
		data, err := w.download(ctx, "photo", loc)
		if err != nil {
			return nil, "", err
		}
		ref := &domain.MediaRef{Data: data, Filename: fmt.Sprintf("photo_%d.jpg", m.ID)}
		return ref, strconv.FormatInt(photo.ID, 10), nil

	case *tg.MessageMediaDocument:
		doc, ok := media.Document.(*tg.Document)
		if !ok {
			return nil, "", fmt.Errorf("документ без содержимого")
		}
		data, err := w.download(ctx, string(kind), doc.AsInputDocumentFileLocation())
		if err != nil {
			return nil, "", err
		}
		filename := fmt.Sprintf("video_%d.mp4", m.ID)
		if kind == domain.KindAnimation {
			filename = fmt.Sprintf("gif_%d.gif", m.ID)
		}
		ref := &domain.MediaRef{Data: data, Filename: filename}
		return ref, strconv.FormatInt(doc.ID, 10), nil
	}
	return nil, "", fmt.Errorf("медиа неподдерживаемого типа")
}

func (w *Watcher) download(ctx context.Context, target string, loc tg.InputFileLocationClass) ([]byte, error) {
	var buf bytes.Buffer
	start := time.Now()
	_, err := w.dl.Download(w.api, loc).Stream(ctx, &buf)
	metrics.ObserveNetworkRequest("mtproto", "download_media", target, start, err)
	if err != nil {
		return nil, fmt.Errorf("скачивание медиа: %w", err)
	}
	return buf.Bytes(), nil
}

// largestPhotoSize выбирает тип самого крупного размера фото.
func largestPhotoSize(photo *tg.Photo) string {
	var (
		thumb string
		best  int
	)
	for _, size := range photo.Sizes {
		switch s := size.(type) {
		case *tg.PhotoSize:
			if s.Size >= best {
				best = s.Size
				thumb = s.Type
			}
		case *tg.PhotoSizeProgressive:
			total := 0
			for _, n := range s.Sizes {
				if n > total {
					total = n
				}
			}
			if total >= best {
				best = total
				thumb = s.Type
			}
		}
	}
	if thumb == "" && len(photo.Sizes) > 0 {
		thumb = photo.Sizes[len(photo.Sizes)-1].GetType()
	}
	return thumb
}
