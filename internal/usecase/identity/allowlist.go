package identity

import (
	"strings"

	"tg-relay-bot/internal/domain"
)

// Allowlist хранит разрешённые источники пассивного наблюдения.
// Пустые списки не допускают ничего — политика «закрыто по умолчанию».
type Allowlist struct {
	groups   []string
	channels []string
}

// NewAllowlist нормализует настроенные списки названий групп и хэндлов каналов.
func NewAllowlist(groups, channels []string) *Allowlist {
	a := &Allowlist{}
	for _, g := range groups {
		g = strings.ToLower(strings.TrimSpace(g))
		if g != "" {
			a.groups = append(a.groups, g)
		}
	}
	for _, c := range channels {
		c = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(c), "@"))
		if c != "" {
			a.channels = append(a.channels, c)
		}
	}
	return a
}

// Allowed проверяет источник: точное совпадение названия группы без учёта
// регистра либо совпадение хэндла канала после снятия ведущего «@».
func (a *Allowlist) Allowed(src domain.Source) bool {
	title := strings.ToLower(strings.TrimSpace(src.Title))
	username := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(src.Username), "@"))

	for _, g := range a.groups {
		if title != "" && title == g {
			return true
		}
	}
	for _, c := range a.channels {
		if username != "" && username == c {
			return true
		}
	}
	return false
}
