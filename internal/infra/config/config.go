package config

import (
	"log"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// AppConfig описывает конфигурацию сервисов.
type AppConfig struct {
	AppEnv string `envconfig:"APP_ENV" default:"dev"`
	Port   int    `envconfig:"PORT" default:"8080"`

	Auth struct {
		// Пустой пароль выключает аутентификацию полностью.
		Password  string        `envconfig:"AUTH_PASSWORD"`
		Threshold int           `envconfig:"LOCKOUT_THRESHOLD" default:"5"`
		Lockout   time.Duration `envconfig:"LOCKOUT_DURATION" default:"10m"`
	} `envconfig:""`

	Telegram struct {
		Token         string `envconfig:"TG_BOT_TOKEN"`
		WebhookURL    string `envconfig:"TG_WEBHOOK_URL"`
		WebhookSecret string `envconfig:"TG_WEBHOOK_SECRET"`
	} `envconfig:""`

	Agent struct {
		URL     string        `envconfig:"AGENT_URL" default:"http://localhost:3000"`
		ID      string        `envconfig:"AGENT_ID" default:"sprachtrainer"`
		Timeout time.Duration `envconfig:"AGENT_TIMEOUT" default:"60s"`
	} `envconfig:""`

	PGDSN     string `envconfig:"PG_DSN"`
	RedisAddr string `envconfig:"REDIS_ADDR"`

	Events struct {
		RabbitURL string `envconfig:"RABBIT_URL"`
		Queue     string `envconfig:"AUTH_EVENTS_QUEUE" default:"auth_events"`
	} `envconfig:""`

	StaticDir string `envconfig:"STATIC_DIR" default:"static"`
}

// Load загружает конфиг из окружения.
func Load() AppConfig {
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("не удалось загрузить конфиг: %v", err)
	}
	return cfg
}
