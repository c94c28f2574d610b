package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	AuthAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_attempts_total",
		Help: "Попытки входа по каналам и результатам",
	}, []string{"channel", "result"})

	AuthLockouts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_lockouts_total",
		Help: "Наложенные блокировки по каналам",
	}, []string{"channel"})

	MessagesForwarded = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "messages_forwarded_total",
		Help: "Сообщения, переданные тренажёру",
	}, []string{"channel"})

	TrainerReplySeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "trainer_reply_seconds",
		Help:    "Время ответа тренажёра",
		Buckets: prometheus.DefBuckets,
	})

	NetworkRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "network_request_duration_seconds",
		Help:    "Длительность сетевых запросов",
		Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
	}, []string{"component", "operation", "target", "status"})

	NetworkRequestTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "network_request_total",
		Help: "Количество сетевых запросов",
	}, []string{"component", "operation", "target", "status"})
)

// MustRegister регистрирует метрики.
func MustRegister(registerer prometheus.Registerer) {
	registerer.MustRegister(
		AuthAttempts,
		AuthLockouts,
		MessagesForwarded,
		TrainerReplySeconds,
		NetworkRequestDuration,
		NetworkRequestTotal,
	)
}

// StartServer запускает HTTP сервер с эндпоинтом /metrics.
func StartServer(ctx context.Context, logger zerolog.Logger, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownTimeout, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownTimeout); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics: graceful shutdown failed")
		}
	}()

	go func() {
		logger.Info().Str("addr", addr).Msg("metrics: server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics: server stopped")
		}
	}()
}

// ObserveNetworkRequest записывает длительность и статус сетевого запроса.
func ObserveNetworkRequest(component, operation, target string, start time.Time, err error) {
	if component == "" {
		component = "unknown"
	}
	if operation == "" {
		operation = "unknown"
	}
	if target == "" {
		target = "unknown"
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	duration := time.Since(start).Seconds()
	NetworkRequestDuration.WithLabelValues(component, operation, target, status).Observe(duration)
	NetworkRequestTotal.WithLabelValues(component, operation, target, status).Inc()
}

// IncAuthAttempt увеличивает счётчик попыток входа.
func IncAuthAttempt(channel, result string) {
	AuthAttempts.WithLabelValues(channel, result).Inc()
}

// IncLockout увеличивает счётчик наложенных блокировок.
func IncLockout(channel string) {
	AuthLockouts.WithLabelValues(channel).Inc()
}

// IncForwarded увеличивает счётчик переданных тренажёру сообщений.
func IncForwarded(channel string) {
	MessagesForwarded.WithLabelValues(channel).Inc()
}
