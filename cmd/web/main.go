package main

import (
	"context"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"sprachtrainer-gateway/internal/adapters/repo"
	"sprachtrainer-gateway/internal/adapters/trainer"
	"sprachtrainer-gateway/internal/adapters/web"
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
			logger.Fatal().Err(err).Msg("web: нет подключения к rabbitmq")
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
		logger.Warn().Msg("web: AUTH_PASSWORD не задан, аутентификация выключена")
	}
	trainerClient := trainer.NewClient(cfg.Agent.URL, cfg.Agent.ID, cfg.Agent.Timeout)

	h := web.NewHandler(logger.With().Str("component", "web").Logger(), authSvc, trainerClient, cfg.StaticDir)

	srv := httpinfra.NewServer(logger)
	h.Routes(srv.Router)

	go func() {
		if err := srv.Start(":" + strconv.Itoa(cfg.Port)); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("web: HTTP сервер остановлен")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("web: остановка")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("web: ошибка при остановке HTTP сервера")
	}
}

// newStore выбирает бекенд AuthStore: Postgres, затем Redis, иначе память.
func newStore(ctx context.Context, cfg config.AppConfig, logger zerolog.Logger) (domain.AuthStore, func()) {
	switch {
	case cfg.PGDSN != "":
		pool, err := db.Connect(ctx, cfg.PGDSN)
		if err != nil {
			logger.Fatal().Err(err).Msg("web: нет подключения к БД")
		}
		store := repo.NewPostgres(pool)
		if err := store.EnsureSchema(ctx); err != nil {
			logger.Fatal().Err(err).Msg("web: не удалось подготовить схему")
		}
		return store, pool.Close
	case cfg.RedisAddr != "":
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			logger.Fatal().Err(err).Msg("web: нет подключения к redis")
		}
		return repo.NewRedis(client), func() { _ = client.Close() }
	default:
		logger.Warn().Msg("web: используется память процесса, состояние не переживёт перезапуск")
		return repo.NewMemory(), func() {}
	}
}
