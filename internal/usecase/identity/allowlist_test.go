package identity

import (
	"testing"

	"tg-relay-bot/internal/domain"
)

func TestAllowedByGroupTitleCaseInsensitive(t *testing.T) {
	a := NewAllowlist([]string{"news"}, nil)
	if !a.Allowed(domain.Source{Title: "News"}) {
		t.Fatal("ожидали допуск по названию группы без учёта регистра")
	}
	if a.Allowed(domain.Source{Title: "Newsroom"}) {
		t.Fatal("не ожидали допуск по частичному совпадению")
	}
}

func TestAllowedByChannelHandleStripsAt(t *testing.T) {
	a := NewAllowlist(nil, []string{"@feed"})
	if !a.Allowed(domain.Source{Username: "Feed"}) {
		t.Fatal("ожидали допуск по хэндлу канала")
	}
	a = NewAllowlist(nil, []string{"feed"})
	if !a.Allowed(domain.Source{Username: "@FEED"}) {
		t.Fatal("ожидали допуск независимо от ведущего @")
	}
}

func TestEmptyListsAdmitNothing(t *testing.T) {
	a := NewAllowlist(nil, nil)
	if a.Allowed(domain.Source{Title: "any", Username: "any"}) {
		t.Fatal("пустые списки не должны допускать источники")
	}
}

func TestEmptyFieldsDoNotMatch(t *testing.T) {
	a := NewAllowlist([]string{""}, []string{"  "})
	if a.Allowed(domain.Source{}) {
		t.Fatal("пустые значения не должны совпадать")
	}
}
