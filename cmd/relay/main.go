package main

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"tg-relay-bot/internal/adapters/bot"
	"tg-relay-bot/internal/adapters/bridge"
	"tg-relay-bot/internal/adapters/mtproto"
	"tg-relay-bot/internal/adapters/repo"
	"tg-relay-bot/internal/adapters/rewrite"
	"tg-relay-bot/internal/domain"
	"tg-relay-bot/internal/infra/cache"
	"tg-relay-bot/internal/infra/config"
	"tg-relay-bot/internal/infra/db"
	httpinfra "tg-relay-bot/internal/infra/http"
	"tg-relay-bot/internal/infra/log"
	"tg-relay-bot/internal/infra/metrics"
	"tg-relay-bot/internal/usecase/identity"
	"tg-relay-bot/internal/usecase/ingest"
	"tg-relay-bot/internal/usecase/relay"
)

func main() {
	cfg := config.Load()
	logger := log.NewLogger(cfg.AppEnv)
	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	srv := httpinfra.NewServer(log.ForComponent(logger, "http"))
	srv.Start(fmt.Sprintf(":%d", cfg.Port))

	pool, err := db.Connect(cfg.PGDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("не удалось подключиться к БД")
	}
	defer pool.Close()

	repoAdapter := repo.NewPostgres(pool)
	if err := repoAdapter.Migrate(ctx); err != nil {
		logger.Fatal().Err(err).Msg("не удалось применить миграции")
	}

	var dedupCache domain.Cache
	if cfg.RedisAddr != "" {
		client, err := cache.Connect(cfg.RedisAddr)
		if err != nil {
			// Кэш — ускорение, не обязательная зависимость.
			logger.Warn().Err(err).Msg("Redis недоступен, дедуп работает только через БД")
		} else {
			dedupCache = cache.NewRedis(client)
			defer client.Close()
		}
	}

	ingestSvc := ingest.NewService(
		repoAdapter, repoAdapter, rewrite.NewNoop(), dedupCache,
		cfg.Relay.AlbumQuietPeriod,
		log.ForComponent(logger, "ingest"),
	)

	botAPI, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		logger.Fatal().Err(err).Msg("не удалось создать бота")
	}

	publisher := bot.NewPublisher(
		botAPI, cfg.TargetChannel,
		cfg.Footer.Enabled, cfg.Footer.HandleOverride, cfg.LogSuccess,
		log.ForComponent(logger, "publisher"),
	)

	scheduler := relay.NewScheduler(
		repoAdapter, publisher,
		cfg.Relay.PostInterval, cfg.Relay.PostsPerInterval,
		log.ForComponent(logger, "scheduler"),
	)
	scheduler.Start(ctx)
	defer scheduler.Stop()

	handler := bot.NewHandler(botAPI, scheduler, ingestSvc, fallbackSourceTitle(cfg), log.ForComponent(logger, "bot"))
	go runBotUpdates(ctx, botAPI, handler, log.ForComponent(logger, "bot"))

	if cfg.AMQP.URL != "" {
		br, err := bridge.NewBridge(cfg.AMQP.URL, cfg.AMQP.Queue, ingestSvc, log.ForComponent(logger, "bridge"))
		if err != nil {
			logger.Fatal().Err(err).Msg("не удалось подключиться к AMQP")
		}
		defer br.Close()
		go func() {
			if err := br.Run(ctx); err != nil && ctx.Err() == nil {
				logger.Error().Err(err).Msg("AMQP мост остановлен")
			}
		}()
	}

	allow := identity.NewAllowlist(cfg.Sources.Groups, cfg.Sources.Channels)
	watcher := mtproto.NewWatcher(
		cfg.Telegram.APIID, cfg.Telegram.APIHash, cfg.MTProto.SessionFile,
		allow, ingestSvc,
		log.ForComponent(logger, "watcher"),
	)

	logger.Info().
		Str("target", cfg.TargetChannel).
		Dur("interval", cfg.Relay.PostInterval).
		Int("batch", cfg.Relay.PostsPerInterval).
		Msg("релей запущен")

	if err := watcher.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Fatal().Err(err).Msg("наблюдатель MTProto остановлен с ошибкой")
	}

	logger.Info().Msg("остановка релея")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

// runBotUpdates читает апдейты Bot API через long polling до отмены контекста.
func runBotUpdates(ctx context.Context, botAPI *tgbotapi.BotAPI, handler *bot.Handler, logger zerolog.Logger) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := botAPI.GetUpdatesChan(u)
	logger.Info().Str("bot", botAPI.Self.UserName).Msg("long polling запущен")

	for {
		select {
		case <-ctx.Done():
			botAPI.StopReceivingUpdates()
			return
		case upd, ok := <-updates:
			if !ok {
				return
			}
			handler.HandleUpdate(ctx, upd)
		}
	}
}

func fallbackSourceTitle(cfg config.AppConfig) string {
	if len(cfg.Sources.Channels) > 0 {
		return "@" + strings.TrimPrefix(cfg.Sources.Channels[0], "@")
	}
	if len(cfg.Sources.Groups) > 0 {
		return cfg.Sources.Groups[0]
	}
	return ""
}
