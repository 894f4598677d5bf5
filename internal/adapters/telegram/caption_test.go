package telegram

import (
	"strings"
	"testing"
)

func TestBuildFooterPrefersOverride(t *testing.T) {
	footer := BuildFooter(true, "@main", "source", "Источник")
	if !strings.Contains(footer, "@main") {
		t.Fatalf("ожидали футер с переопределённым хэндлом, получили %q", footer)
	}
}

func TestBuildFooterFallsBackToUsernameThenTitle(t *testing.T) {
	if footer := BuildFooter(true, "", "feed", ""); !strings.Contains(footer, "@feed") {
		t.Fatalf("ожидали хэндл источника, получили %q", footer)
	}
	if footer := BuildFooter(true, "", "", "Новости"); !strings.Contains(footer, "Новости") {
		t.Fatalf("ожидали название источника, получили %q", footer)
	}
	if footer := BuildFooter(true, "", "", ""); footer != "" {
		t.Fatalf("ожидали пустой футер без данных источника, получили %q", footer)
	}
}

func TestBuildFooterDisabled(t *testing.T) {
	if footer := BuildFooter(false, "main", "feed", "Новости"); footer != "" {
		t.Fatalf("выключенный футер должен быть пустым, получили %q", footer)
	}
}

func TestAppendFooterTrimsToCaptionLimit(t *testing.T) {
	caption := strings.Repeat("а", 1100)
	got := AppendFooter(caption, "\n\nфутер")
	runes := []rune(got)
	if len(runes) != captionLimit {
		t.Fatalf("ожидали длину %d, получили %d", captionLimit, len(runes))
	}
	if !strings.HasSuffix(got, "...") {
		t.Fatal("ожидали многоточие в конце укороченной подписи")
	}
}

func TestAppendFooterKeepsShortCaption(t *testing.T) {
	if got := AppendFooter("привет", "\n\nфутер"); got != "привет\n\nфутер" {
		t.Fatalf("короткая подпись не должна меняться, получили %q", got)
	}
}
