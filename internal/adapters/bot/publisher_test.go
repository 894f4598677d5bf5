package bot

import (
	"strings"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"tg-relay-bot/internal/domain"
)

func albumOf(items ...domain.AlbumItem) domain.PostItem {
	return domain.PostItem{
		Source: domain.Source{Username: "feed"},
		Kind:   domain.KindAlbum,
		Album:  items,
	}
}

func TestBuildMediaGroupKeepsPerItemCaptions(t *testing.T) {
	item := albumOf(
		domain.AlbumItem{Kind: domain.KindPhoto, Media: domain.MediaRef{FileID: "a"}, Caption: "первая"},
		domain.AlbumItem{Kind: domain.KindVideo, Media: domain.MediaRef{FileID: "b"}, Caption: "вторая"},
	)
	media := buildMediaGroup(item, "\n\nфутер")
	if len(media) != 2 {
		t.Fatalf("ожидали 2 элемента, получили %d", len(media))
	}
	photo, ok := media[0].(tgbotapi.InputMediaPhoto)
	if !ok {
		t.Fatalf("ожидали InputMediaPhoto, получили %T", media[0])
	}
	if !strings.Contains(photo.Caption, "первая") || !strings.Contains(photo.Caption, "футер") {
		t.Fatalf("ожидали подпись с футером у первого подписанного, получили %q", photo.Caption)
	}
	video, ok := media[1].(tgbotapi.InputMediaVideo)
	if !ok {
		t.Fatalf("ожидали InputMediaVideo, получили %T", media[1])
	}
	if video.Caption != "вторая" {
		t.Fatalf("подписи остальных фрагментов сохраняются без футера, получили %q", video.Caption)
	}
	if !video.SupportsStreaming {
		t.Fatal("ожидали supports_streaming у видео")
	}
}

func TestBuildMediaGroupUsesBaseTextWhenNoCaptions(t *testing.T) {
	item := albumOf(
		domain.AlbumItem{Kind: domain.KindPhoto, Media: domain.MediaRef{FileID: "a"}},
		domain.AlbumItem{Kind: domain.KindPhoto, Media: domain.MediaRef{FileID: "b"}},
	)
	item.Text = "базовый текст"
	media := buildMediaGroup(item, "")
	photo := media[0].(tgbotapi.InputMediaPhoto)
	if photo.Caption != "базовый текст" {
		t.Fatalf("ожидали базовый текст на первом элементе, получили %q", photo.Caption)
	}
}

func TestBuildMediaGroupUnknownKindDefaultsToPhoto(t *testing.T) {
	item := albumOf(domain.AlbumItem{Kind: "sticker", Media: domain.MediaRef{FileID: "a"}})
	media := buildMediaGroup(item, "")
	if _, ok := media[0].(tgbotapi.InputMediaPhoto); !ok {
		t.Fatalf("нераспознанный тип должен уходить как фото, получили %T", media[0])
	}
}

func TestNewPublisherParsesTarget(t *testing.T) {
	p := NewPublisher(nil, "-1001234567890", true, "", true, zerolog.Nop())
	if p.chatID != -1001234567890 || p.channelUsername != "" {
		t.Fatalf("ожидали числовой chat id, получили %+v", p)
	}
	p = NewPublisher(nil, "mychannel", true, "", true, zerolog.Nop())
	if p.channelUsername != "@mychannel" {
		t.Fatalf("ожидали @mychannel, получили %q", p.channelUsername)
	}
	p = NewPublisher(nil, "@mychannel", true, "", true, zerolog.Nop())
	if p.channelUsername != "@mychannel" {
		t.Fatalf("ведущий @ не должен дублироваться, получили %q", p.channelUsername)
	}
}

func TestFileDataPrefersFileID(t *testing.T) {
	data := fileData(domain.MediaRef{FileID: "id", Data: []byte("x"), Filename: "f.jpg"})
	if _, ok := data.(tgbotapi.FileID); !ok {
		t.Fatalf("ожидали FileID, получили %T", data)
	}
	data = fileData(domain.MediaRef{Data: []byte("x"), Filename: "f.jpg"})
	fb, ok := data.(tgbotapi.FileBytes)
	if !ok {
		t.Fatalf("ожидали FileBytes, получили %T", data)
	}
	if fb.Name != "f.jpg" {
		t.Fatalf("ожидали имя файла, получили %q", fb.Name)
	}
}
