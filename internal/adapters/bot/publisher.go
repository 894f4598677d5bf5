package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"tg-relay-bot/internal/adapters/telegram"
	"tg-relay-bot/internal/domain"
	"tg-relay-bot/internal/infra/metrics"
)

// ErrUnsupportedKind возвращается для неизвестного типа поста.
var ErrUnsupportedKind = errors.New("unsupported post kind")

// Publisher отправляет нормализованные посты в целевой канал через Bot API.
type Publisher struct {
	bot             *tgbotapi.BotAPI
	chatID          int64
	channelUsername string
	footerEnabled   bool
	footerHandle    string
	logSuccess      bool
	log             zerolog.Logger
}

var _ domain.Publisher = (*Publisher)(nil)

// NewPublisher создаёт паблишер. target — числовой chat id либо @хэндл канала.
func NewPublisher(bot *tgbotapi.BotAPI, target string, footerEnabled bool, footerHandle string, logSuccess bool, log zerolog.Logger) *Publisher {
	p := &Publisher{
		bot:           bot,
		footerEnabled: footerEnabled,
		footerHandle:  footerHandle,
		logSuccess:    logSuccess,
		log:           log,
	}
	target = strings.TrimSpace(target)
	if id, err := strconv.ParseInt(target, 10, 64); err == nil {
		p.chatID = id
	} else {
		p.channelUsername = "@" + strings.TrimPrefix(target, "@")
	}
	return p
}

// Publish отправляет один пост. Текст уходит дословно и без футера;
// подписи медиа получают футер провенанса. Любая ошибка транспорта
// возвращается вызывающему.
func (p *Publisher) Publish(ctx context.Context, item domain.PostItem) error {
	var err error
	switch item.Kind {
	case domain.KindText:
		err = p.sendText(item)
	case domain.KindPhoto:
		err = p.sendPhoto(item)
	case domain.KindVideo:
		err = p.sendVideo(item)
	case domain.KindAnimation:
		err = p.sendAnimation(item)
	case domain.KindAlbum:
		err = p.sendAlbum(item)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedKind, item.Kind)
	}
	if err != nil {
		return err
	}
	if p.logSuccess {
		p.log.Info().
			Str("kind", string(item.Kind)).
			Str("from", sourceLabel(item.Source)).
			Msg("publisher: опубликовано")
	}
	return nil
}

func (p *Publisher) sendText(item domain.PostItem) error {
	// Дословно, без футера и без укорачивания: текст длиннее лимита
	// уходит несколькими сообщениями.
	for _, part := range telegram.SplitMessage(item.Text) {
		msg := tgbotapi.NewMessage(p.chatID, part)
		msg.ChannelUsername = p.channelUsername
		if err := p.send("send_message", msg); err != nil {
			return fmt.Errorf("отправка текста: %w", err)
		}
	}
	return nil
}

func (p *Publisher) sendPhoto(item domain.PostItem) error {
	cfg := tgbotapi.NewPhoto(p.chatID, fileData(*item.Media))
	cfg.ChannelUsername = p.channelUsername
	cfg.Caption = p.caption(item.Text, item.Source)
	if err := p.send("send_photo", cfg); err != nil {
		return fmt.Errorf("отправка фото: %w", err)
	}
	return nil
}

func (p *Publisher) sendVideo(item domain.PostItem) error {
	cfg := tgbotapi.NewVideo(p.chatID, fileData(*item.Media))
	cfg.ChannelUsername = p.channelUsername
	cfg.Caption = p.caption(item.Text, item.Source)
	cfg.SupportsStreaming = true
	if err := p.send("send_video", cfg); err != nil {
		return fmt.Errorf("отправка видео: %w", err)
	}
	return nil
}

func (p *Publisher) sendAnimation(item domain.PostItem) error {
	cfg := tgbotapi.NewAnimation(p.chatID, fileData(*item.Media))
	cfg.ChannelUsername = p.channelUsername
	cfg.Caption = p.caption(item.Text, item.Source)
	if err := p.send("send_animation", cfg); err != nil {
		return fmt.Errorf("отправка анимации: %w", err)
	}
	return nil
}

func (p *Publisher) sendAlbum(item domain.PostItem) error {
	if len(item.Album) == 0 {
		return fmt.Errorf("%w: пустой альбом", ErrUnsupportedKind)
	}
	media := buildMediaGroup(item, telegram.BuildFooter(p.footerEnabled, p.footerHandle, item.Source.Username, item.Source.Title))
	cfg := tgbotapi.NewMediaGroup(p.chatID, media)
	cfg.ChannelUsername = p.channelUsername

	start := time.Now()
	_, err := p.bot.SendMediaGroup(cfg)
	metrics.ObserveNetworkRequest("telegram_bot", "send_media_group", p.target(), start, err)
	if err != nil {
		return fmt.Errorf("отправка альбома: %w", err)
	}
	return nil
}

// buildMediaGroup собирает элементы альбома. Подписи фрагментов
// сохраняются независимо; футер получает только первый подписанный
// фрагмент, чтобы альбом читался как один пост. Если подписей нет,
// базовый текст альбома становится подписью первого элемента.
func buildMediaGroup(item domain.PostItem, footer string) []interface{} {
	captioned := -1
	for i, frag := range item.Album {
		if frag.Caption != "" {
			captioned = i
			break
		}
	}

	media := make([]interface{}, 0, len(item.Album))
	for i, frag := range item.Album {
		caption := frag.Caption
		if captioned == -1 && i == 0 {
			caption = item.Text
		}
		if (i == captioned || (captioned == -1 && i == 0)) && caption != "" {
			caption = telegram.AppendFooter(caption, footer)
		}
		switch frag.Kind {
		case domain.KindVideo:
			m := tgbotapi.NewInputMediaVideo(fileData(frag.Media))
			m.Caption = caption
			m.SupportsStreaming = true
			media = append(media, m)
		default:
			// Нераспознанный тип фрагмента уходит как фото.
			m := tgbotapi.NewInputMediaPhoto(fileData(frag.Media))
			m.Caption = caption
			media = append(media, m)
		}
	}
	return media
}

func (p *Publisher) caption(text string, src domain.Source) string {
	footer := telegram.BuildFooter(p.footerEnabled, p.footerHandle, src.Username, src.Title)
	return telegram.AppendFooter(text, footer)
}

func (p *Publisher) send(operation string, c tgbotapi.Chattable) error {
	start := time.Now()
	_, err := p.bot.Send(c)
	metrics.ObserveNetworkRequest("telegram_bot", operation, p.target(), start, err)
	return err
}

func (p *Publisher) target() string {
	if p.channelUsername != "" {
		return p.channelUsername
	}
	return strconv.FormatInt(p.chatID, 10)
}

func fileData(media domain.MediaRef) tgbotapi.RequestFileData {
	if media.FileID != "" {
		return tgbotapi.FileID(media.FileID)
	}
	return tgbotapi.FileBytes{Name: media.Filename, Bytes: media.Data}
}

func sourceLabel(src domain.Source) string {
	if src.Username != "" {
		return "@" + strings.TrimPrefix(src.Username, "@")
	}
	if src.Title != "" {
		return src.Title
	}
	return "unknown"
}
