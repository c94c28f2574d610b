package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"sprachtrainer-gateway/internal/adapters/bot"
	"sprachtrainer-gateway/internal/adapters/repo"
	"sprachtrainer-gateway/internal/adapters/trainer"
	"sprachtrainer-gateway/internal/domain"
	"sprachtrainer-gateway/internal/infra/config"
	"sprachtrainer-gateway/internal/infra/db"
	httpinfra "sprachtrainer-gateway/internal/infra/http"
	applog "sprachtrainer-gateway/internal/infra/log"
	"sprachtrainer-gateway/internal/infra/metrics"
	"sprachtrainer-gateway/internal/infra/queue"
	"sprachtrainer-gateway/internal/usecase/auth"
)

func main() {
	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, cleanup := newStore(ctx, cfg, logger)
	defer cleanup()

	var events domain.AuthEventSink
	if cfg.Events.RabbitURL != "" {
		rabbit, err := queue.NewRabbitAuthEvents(cfg.Events.RabbitURL, cfg.Events.Queue)
		if err != nil {
			logger.Fatal().Err(err).Msg("bot-gateway: нет подключения к rabbitmq")
		}
		defer rabbit.Close()
		events = rabbit
	}

	authSvc := auth.NewService(store, events, logger.With().Str("component", "auth").Logger(), auth.Config{
		Password:  cfg.Auth.Password,
		Threshold: cfg.Auth.Threshold,
		Lockout:   cfg.Auth.Lockout,
	})
	if !authSvc.Enabled() {
		logger.Warn().Msg("bot-gateway: AUTH_PASSWORD не задан, аутентификация выключена")
	}
	trainerClient := trainer.NewClient(cfg.Agent.URL, cfg.Agent.ID, cfg.Agent.Timeout)

	botAPI, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		logger.Fatal().Err(err).Msg("bot-gateway: не удалось создать бота")
	}

	h := bot.NewHandler(botAPI, logger.With().Str("component", "bot").Logger(), authSvc, trainerClient)
	if err := h.SetupCommands(); err != nil {
		logger.Error().Err(err).Msg("bot-gateway: не удалось опубликовать команды")
	}

	if cfg.Telegram.WebhookURL != "" {
		runWebhook(ctx, cfg, logger, botAPI, h)
		return
	}

	// в режиме long-poll HTTP сервера нет, метрики отдаём отдельно
	metrics.StartServer(ctx, logger, ":"+strconv.Itoa(cfg.Port))
	runPolling(ctx, logger, botAPI, h)
}

func runWebhook(ctx context.Context, cfg config.AppConfig, logger zerolog.Logger, botAPI *tgbotapi.BotAPI, h *bot.Handler) {
	wh, err := tgbotapi.NewWebhook(cfg.Telegram.WebhookURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("bot-gateway: некорректный webhook URL")
	}
	if _, err := botAPI.Request(wh); err != nil {
		logger.Fatal().Err(err).Msg("bot-gateway: не удалось установить вебхук")
	}

	srv := httpinfra.NewServer(logger)
	srv.Router.With(httpinfra.WebhookSecretMiddleware(cfg.Telegram.WebhookSecret)).
		Post("/bot/webhook", func(w http.ResponseWriter, r *http.Request) {
			var update tgbotapi.Update
			if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			h.HandleUpdate(r.Context(), update)
			w.WriteHeader(http.StatusOK)
		})

	go func() {
		if err := srv.Start(":" + strconv.Itoa(cfg.Port)); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("bot-gateway: HTTP сервер остановлен")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("bot-gateway: остановка")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("bot-gateway: ошибка при остановке HTTP сервера")
	}
}

func runPolling(ctx context.Context, logger zerolog.Logger, botAPI *tgbotapi.BotAPI, h *bot.Handler) {
	// вебхук мог остаться от предыдущего деплоя
	if _, err := botAPI.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		logger.Error().Err(err).Msg("bot-gateway: не удалось удалить вебхук")
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := botAPI.GetUpdatesChan(u)
	logger.Info().Msg("bot-gateway: запущен long-poll")

	for {
		select {
		case <-ctx.Done():
			botAPI.StopReceivingUpdates()
			logger.Info().Msg("bot-gateway: остановка")
			return
		case update := <-updates:
			h.HandleUpdate(ctx, update)
		}
	}
}

// newStore выбирает бекенд AuthStore: Postgres, затем Redis, иначе память.
func newStore(ctx context.Context, cfg config.AppConfig, logger zerolog.Logger) (domain.AuthStore, func()) {
	switch {
	case cfg.PGDSN != "":
		pool, err := db.Connect(ctx, cfg.PGDSN)
		if err != nil {
			logger.Fatal().Err(err).Msg("bot-gateway: нет подключения к БД")
		}
		store := repo.NewPostgres(pool)
		if err := store.EnsureSchema(ctx); err != nil {
			logger.Fatal().Err(err).Msg("bot-gateway: не удалось подготовить схему")
		}
		return store, pool.Close
	case cfg.RedisAddr != "":
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			logger.Fatal().Err(err).Msg("bot-gateway: нет подключения к redis")
		}
		return repo.NewRedis(client), func() { _ = client.Close() }
	default:
		logger.Warn().Msg("bot-gateway: используется память процесса, состояние не переживёт перезапуск")
		return repo.NewMemory(), func() {}
	}
}
