package telegram

import (
	"strings"
	"testing"
)

func TestSplitMessageRespectsLimit(t *testing.T) {
	var b strings.Builder
	b.WriteString(strings.Repeat("а", 3000))
	b.WriteString("\n\n")
	b.WriteString(strings.Repeat("б", 2000))
	b.WriteString("\n")
	b.WriteString(strings.Repeat("в", 500))

	parts := SplitMessage(b.String())
	if len(parts) != 2 {
		t.Fatalf("ожидали 2 части, получили %d", len(parts))
	}
	for i, part := range parts {
		if n := len([]rune(part)); n > messageLimit {
			t.Fatalf("часть %d превышает лимит: %d", i, n)
		}
	}
	if parts[0] != strings.Repeat("а", 3000) {
		t.Fatal("первая часть должна кончаться на границе абзаца")
	}
	if !strings.HasSuffix(parts[1], strings.Repeat("в", 500)) {
		t.Fatal("хвост текста должен попасть во вторую часть")
	}
}

func TestSplitMessageShortTextUntouched(t *testing.T) {
	parts := SplitMessage("короткий пост")
	if len(parts) != 1 || parts[0] != "короткий пост" {
		t.Fatalf("короткий текст не должен меняться, получили %v", parts)
	}
}

func TestSplitMessageEmpty(t *testing.T) {
	if parts := SplitMessage("   \n  "); len(parts) != 0 {
		t.Fatalf("пустой ввод не даёт частей, получили %d", len(parts))
	}
}

func TestSplitMessageNoNewlineCutsAtLimit(t *testing.T) {
	parts := SplitMessage(strings.Repeat("x", messageLimit+10))
	if len(parts) != 2 {
		t.Fatalf("ожидали 2 части, получили %d", len(parts))
	}
	if len([]rune(parts[0])) != messageLimit {
		t.Fatalf("без переносов режем ровно по лимиту, получили %d", len([]rune(parts[0])))
	}
}
