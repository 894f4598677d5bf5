package bridge

import (
	"testing"

	"tg-relay-bot/internal/domain"
)

func TestDecodePhotoEvent(t *testing.T) {
	body := []byte(`{
		"source_key": "partner",
		"message_id": 10,
		"source": {"title": "Партнёр", "username": "partner"},
		"kind": "photo",
		"text": "подпись",
		"media": {"file_id": "abc"},
		"media_uid": "uid1"
	}`)
	in, err := decode(body)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if in.Kind != domain.KindPhoto || in.Text != "подпись" {
		t.Fatalf("ожидали фото с подписью, получили %+v", in)
	}
	if in.Media == nil || in.Media.FileID != "abc" {
		t.Fatalf("ожидали file_id, получили %+v", in.Media)
	}
	if in.Signal.PhotoUID != "uid1" || in.Signal.Caption != "подпись" {
		t.Fatalf("сигнал отпечатка собран неверно: %+v", in.Signal)
	}
}

func TestDecodeTextEvent(t *testing.T) {
	body := []byte(`{"source_key": "partner", "message_id": 3, "kind": "text", "text": "привет"}`)
	in, err := decode(body)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if in.Kind != domain.KindText || in.Signal.Text != "привет" {
		t.Fatalf("ожидали текстовое событие, получили %+v", in)
	}
}

func TestDecodeRejectsMalformed(t *testing.T) {
	if _, err := decode([]byte(`не json`)); err == nil {
		t.Fatal("ожидали ошибку разбора")
	}
	if _, err := decode([]byte(`{"kind": "text", "text": "x"}`)); err == nil {
		t.Fatal("событие без source_key должно отклоняться")
	}
	if _, err := decode([]byte(`{"source_key": "p", "message_id": 1, "kind": "sticker"}`)); err == nil {
		t.Fatal("неизвестный тип должен отклоняться")
	}
}
