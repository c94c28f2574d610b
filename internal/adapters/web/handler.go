package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	chi "github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"sprachtrainer-gateway/internal/domain"
	httpinfra "sprachtrainer-gateway/internal/infra/http"
	"sprachtrainer-gateway/internal/infra/metrics"
	"sprachtrainer-gateway/internal/usecase/auth"
	"sprachtrainer-gateway/internal/usecase/session"
)

// Handler обслуживает веб-канал: чат-API и статическую страницу.
type Handler struct {
	log       zerolog.Logger
	auth      *auth.Service
	trainer   domain.Trainer
	staticDir string
}

// NewHandler создаёт обработчик веб-канала.
func NewHandler(log zerolog.Logger, authSvc *auth.Service, trainer domain.Trainer, staticDir string) *Handler {
	return &Handler{log: log, auth: authSvc, trainer: trainer, staticDir: staticDir}
}

// Routes регистрирует маршруты на роутере.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/api/chat", h.handleChat)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.Dir(h.staticDir))))
	r.Get("/", h.handleIndex)
}

type chatRequest struct {
	ClientID string `json:"client_id"`
	Message  string `json:"message"`
}

type chatResponse struct {
	ClientID      string `json:"client_id"`
	Reply         string `json:"reply"`
	Authenticated bool   `json:"authenticated"`
}

const msgTryLater = "Es ist ein Fehler aufgetreten. Bitte versuche es später erneut."

func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpinfra.WriteError(w, http.StatusBadRequest, "ungültiger Request-Body")
		return
	}
	message := strings.TrimSpace(req.Message)
	if message == "" {
		httpinfra.WriteError(w, http.StatusBadRequest, "leere Nachricht")
		return
	}

	// Новому клиенту выдаётся идентификатор; клиент обязан сохранить его
	// и присылать с каждым запросом.
	clientID := strings.TrimSpace(req.ClientID)
	minted := clientID == ""
	if minted {
		clientID = uuid.NewString()
	}
	id := domain.Identity{Channel: domain.ChannelWeb, Value: clientID}
	now := time.Now().UTC()

	state, err := h.auth.Status(r.Context(), id, now)
	if err != nil {
		h.log.Error().Err(err).Str("identity", id.Key()).Str("request_id", httpinfra.RequestID(r)).
			Msg("не удалось прочитать состояние аутентификации")
		httpinfra.WriteError(w, http.StatusServiceUnavailable, msgTryLater)
		return
	}

	if state == domain.StateAuthenticated {
		h.forward(w, r, id, message, now)
		return
	}
	if minted {
		writeJSON(w, chatResponse{ClientID: clientID, Reply: "Willkommen beim Sprachtrainer. Bitte gib das Passwort ein."})
		return
	}
	h.handleLogin(w, r, id, message, now)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request, id domain.Identity, secret string, now time.Time) {
	res, err := h.auth.Login(r.Context(), id, secret, now)
	switch {
	case errors.Is(err, auth.ErrEmptySecret):
		writeJSON(w, chatResponse{ClientID: id.Value, Reply: "Bitte gib das Passwort ein."})
		return
	case err != nil:
		h.log.Error().Err(err).Str("identity", id.Key()).Msg("ошибка при попытке входа")
		httpinfra.WriteError(w, http.StatusServiceUnavailable, msgTryLater)
		return
	}
	switch res.State {
	case domain.StateAuthenticated:
		metrics.IncAuthAttempt(string(id.Channel), "success")
		writeJSON(w, chatResponse{
			ClientID:      id.Value,
			Reply:         "Authentifizierung erfolgreich! Du kannst jetzt mit dem Sprachtraining beginnen.",
			Authenticated: true,
		})
	case domain.StateBlocked:
		if res.LockedOut {
			metrics.IncLockout(string(id.Channel))
		} else {
			metrics.IncAuthAttempt(string(id.Channel), "locked")
		}
		writeJSON(w, chatResponse{
			ClientID: id.Value,
			Reply:    fmt.Sprintf("Zu viele fehlgeschlagene Versuche. Bitte warte noch %s Minuten.", formatWait(res.RetryAfter)),
		})
	default:
		metrics.IncAuthAttempt(string(id.Channel), "failure")
		writeJSON(w, chatResponse{
			ClientID: id.Value,
			Reply:    fmt.Sprintf("Falsches Passwort. Bitte versuche es erneut (%d Versuche übrig).", res.AttemptsLeft),
		})
	}
}

func (h *Handler) forward(w http.ResponseWriter, r *http.Request, id domain.Identity, message string, now time.Time) {
	key, err := session.Resolve(id.Channel, id.Value, now)
	if err != nil {
		h.log.Error().Err(err).Str("identity", id.Key()).Msg("не удалось построить ключ сессии")
		httpinfra.WriteError(w, http.StatusServiceUnavailable, msgTryLater)
		return
	}
	answer, err := h.trainer.Reply(r.Context(), key, message)
	if err != nil {
		h.log.Error().Err(err).Str("session", key).Msg("тренажёр не ответил")
		httpinfra.WriteError(w, http.StatusBadGateway, "Der Trainer ist gerade nicht erreichbar. Bitte versuche es später erneut.")
		return
	}
	metrics.IncForwarded(string(id.Channel))
	writeJSON(w, chatResponse{ClientID: id.Value, Reply: answer, Authenticated: true})
}

func (h *Handler) handleIndex(w http.ResponseWriter, r *http.Request) {
	http.ServeFile(w, r, filepath.Join(h.staticDir, "index.html"))
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// formatWait печатает остаток блокировки в формате M:SS.
func formatWait(d time.Duration) string {
	total := int(d.Round(time.Second).Seconds())
	if total < 0 {
		total = 0
	}
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}
