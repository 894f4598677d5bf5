package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/gotd/td/session"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/tg"
	"github.com/rs/zerolog/log"

	"tg-relay-bot/internal/infra/config"
)

// termAuth спрашивает данные входа в терминале.
type termAuth struct {
	phone string
	in    *bufio.Reader
}

func (a termAuth) Phone(_ context.Context) (string, error) {
	if a.phone != "" {
		return a.phone, nil
	}
	return a.prompt("Номер телефона (в формате +7...): ")
}

func (a termAuth) Password(_ context.Context) (string, error) {
	return a.prompt("Пароль двухфакторной аутентификации: ")
}

func (a termAuth) Code(_ context.Context, _ *tg.AuthSentCode) (string, error) {
	return a.prompt("Код из Telegram: ")
}

func (a termAuth) AcceptTermsOfService(_ context.Context, _ tg.HelpTermsOfService) error {
	return nil
}

func (a termAuth) SignUp(_ context.Context) (auth.UserInfo, error) {
	return auth.UserInfo{}, errors.New("регистрация новых аккаунтов не поддерживается")
}

func (a termAuth) prompt(label string) (string, error) {
	fmt.Print(label)
	line, err := a.in.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func main() {
	var phone string
	flag.StringVar(&phone, "phone", "", "Номер телефона аккаунта (иначе спросим в терминале)")
	flag.Parse()

	cfg := config.Load()

	client := telegram.NewClient(cfg.Telegram.APIID, cfg.Telegram.APIHash, telegram.Options{
		SessionStorage: &session.FileStorage{Path: cfg.MTProto.SessionFile},
	})

	flow := auth.NewFlow(
		termAuth{phone: phone, in: bufio.NewReader(os.Stdin)},
		auth.SendCodeOptions{},
	)

	ctx := context.Background()
	err := client.Run(ctx, func(ctx context.Context) error {
		if err := client.Auth().IfNecessary(ctx, flow); err != nil {
			return fmt.Errorf("авторизация: %w", err)
		}
		me, err := client.Self(ctx)
		if err != nil {
			return fmt.Errorf("проверка аккаунта: %w", err)
		}
		fmt.Printf("Сессия сохранена в %s (аккаунт @%s)\n", cfg.MTProto.SessionFile, me.Username)
		return nil
	})
	if err != nil {
		log.Fatal().Err(err).Msg("session-login: не удалось авторизоваться")
	}
}
