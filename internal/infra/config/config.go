package config

import (
	"log"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// AppConfig описывает конфигурацию релея.
type AppConfig struct {
	AppEnv string `envconfig:"APP_ENV" default:"dev"`
	Port   int    `envconfig:"PORT" default:"8080"`

	Telegram struct {
		Token   string `envconfig:"BOT_TOKEN"`
		APIID   int    `envconfig:"TG_API_ID"`
		APIHash string `envconfig:"TG_API_HASH"`
	} `envconfig:""`

	MTProto struct {
		SessionFile string `envconfig:"MTPROTO_SESSION_FILE"`
	} `envconfig:""`

	Sources struct {
		Groups   []string `envconfig:"SOURCE_GROUPS"`
		Channels []string `envconfig:"SOURCE_CHANNELS"`
	} `envconfig:""`

	TargetChannel string `envconfig:"TARGET_CHANNEL"`

	Relay struct {
		PostInterval     time.Duration `envconfig:"POST_INTERVAL" default:"1h"`
		PostsPerInterval int           `envconfig:"POSTS_PER_INTERVAL" default:"3"`
		AlbumQuietPeriod time.Duration `envconfig:"ALBUM_QUIET_PERIOD" default:"1500ms"`
	} `envconfig:""`

	PGDSN string `envconfig:"PG_DSN"`

	RedisAddr string `envconfig:"REDIS_ADDR"`

	AMQP struct {
		URL   string `envconfig:"AMQP_URL"`
		Queue string `envconfig:"INGEST_QUEUE" default:"relay_ingest"`
	} `envconfig:""`

	Footer struct {
		Enabled        bool   `envconfig:"FOOTER_ENABLED" default:"true"`
		HandleOverride string `envconfig:"FOOTER_HANDLE"`
	} `envconfig:""`

	LogSuccess bool `envconfig:"LOG_SUCCESS" default:"true"`
}

// Load загружает конфиг из окружения и проверяет обязательные значения.
// Отсутствие учётных данных — фатальная ошибка запуска.
func Load() AppConfig {
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("не удалось загрузить конфиг: %v", err)
	}
	if cfg.Telegram.Token == "" {
		log.Fatal("не указан токен бота (BOT_TOKEN)")
	}
	if cfg.Telegram.APIID == 0 || cfg.Telegram.APIHash == "" {
		log.Fatal("не указаны TG_API_ID и TG_API_HASH")
	}
	if cfg.MTProto.SessionFile == "" {
		log.Fatal("не указан файл сессии MTProto (MTPROTO_SESSION_FILE)")
	}
	if cfg.TargetChannel == "" {
		log.Fatal("не указан целевой канал (TARGET_CHANNEL)")
	}
	if cfg.PGDSN == "" {
		log.Fatal("не указан DSN Postgres (PG_DSN)")
	}
	return cfg
}
