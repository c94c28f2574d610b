package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"sprachtrainer-gateway/internal/adapters/telegram"
	"sprachtrainer-gateway/internal/domain"
	"sprachtrainer-gateway/internal/infra/metrics"
	"sprachtrainer-gateway/internal/usecase/auth"
	"sprachtrainer-gateway/internal/usecase/session"
)

// Handler обслуживает апдейты Telegram-бота: проверяет аутентификацию
// и передаёт сообщения аутентифицированных пользователей тренажёру.
type Handler struct {
	bot     *tgbotapi.BotAPI
	log     zerolog.Logger
	auth    *auth.Service
	trainer domain.Trainer
}

// NewHandler создаёт обработчик.
func NewHandler(bot *tgbotapi.BotAPI, log zerolog.Logger, authSvc *auth.Service, trainer domain.Trainer) *Handler {
	return &Handler{bot: bot, log: log, auth: authSvc, trainer: trainer}
}

// HandleUpdate обрабатывает входящий апдейт.
func (h *Handler) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	if upd.Message == nil || upd.Message.From == nil || upd.Message.Text == "" {
		return
	}
	h.handleMessage(ctx, upd.Message)
}

func (h *Handler) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	text := strings.TrimSpace(msg.Text)
	switch {
	case strings.HasPrefix(text, "/start"):
		h.handleStart(ctx, msg)
	case strings.HasPrefix(text, "/"):
		h.reply(msg.Chat.ID, "Unbekannter Befehl. Schick mir einfach eine Nachricht.")
	default:
		h.handleText(ctx, msg, text)
	}
}

func (h *Handler) handleStart(ctx context.Context, msg *tgbotapi.Message) {
	id := identityOf(msg.From)
	name := firstNameOf(msg.From)
	state, err := h.auth.Status(ctx, id, time.Now().UTC())
	if err != nil {
		h.log.Error().Err(err).Str("identity", id.Key()).Msg("не удалось прочитать состояние аутентификации")
		h.reply(msg.Chat.ID, msgTryLater)
		return
	}
	if state == domain.StateAuthenticated {
		h.reply(msg.Chat.ID, fmt.Sprintf(
			"Hallo %s! Du bist bereits eingeloggt.\nSchreib mir eine Nachricht und wir können mit dem Sprachtraining beginnen!", name))
		return
	}
	h.reply(msg.Chat.ID, fmt.Sprintf(
		"Hallo %s! Willkommen beim Sprachtrainer.\nBitte gib das Passwort ein, um dich zu authentifizieren.", name))
}

func (h *Handler) handleText(ctx context.Context, msg *tgbotapi.Message, text string) {
	id := identityOf(msg.From)
	now := time.Now().UTC()
	state, err := h.auth.Status(ctx, id, now)
	if err != nil {
		h.log.Error().Err(err).Str("identity", id.Key()).Msg("не удалось прочитать состояние аутентификации")
		h.reply(msg.Chat.ID, msgTryLater)
		return
	}
	if state == domain.StateAuthenticated {
		h.forward(ctx, msg, id, text, now)
		return
	}
	h.handleLogin(ctx, msg, id, text, now)
}

func (h *Handler) handleLogin(ctx context.Context, msg *tgbotapi.Message, id domain.Identity, secret string, now time.Time) {
	res, err := h.auth.Login(ctx, id, secret, now)
	switch {
	case errors.Is(err, auth.ErrEmptySecret):
		h.reply(msg.Chat.ID, "Bitte gib das Passwort ein.")
		return
	case err != nil:
		h.log.Error().Err(err).Str("identity", id.Key()).Msg("ошибка при попытке входа")
		h.reply(msg.Chat.ID, msgTryLater)
		return
	}
	switch res.State {
	case domain.StateAuthenticated:
		metrics.IncAuthAttempt(string(id.Channel), "success")
		if err := h.auth.SaveProfile(ctx, id, msg.From.UserName, msg.From.FirstName); err != nil {
			h.log.Error().Err(err).Str("identity", id.Key()).Msg("не удалось сохранить профиль")
		}
		h.reply(msg.Chat.ID, fmt.Sprintf("Authentifizierung erfolgreich! Willkommen %s!", firstNameOf(msg.From)))
	case domain.StateBlocked:
		if res.LockedOut {
			metrics.IncLockout(string(id.Channel))
		} else {
			metrics.IncAuthAttempt(string(id.Channel), "locked")
		}
		h.reply(msg.Chat.ID, fmt.Sprintf(
			"Zu viele fehlgeschlagene Versuche. Bitte warte noch %s Minuten.", formatWait(res.RetryAfter)))
	default:
		metrics.IncAuthAttempt(string(id.Channel), "failure")
		h.reply(msg.Chat.ID, fmt.Sprintf(
			"Falsches Passwort. Bitte versuche es erneut (%d Versuche übrig).", res.AttemptsLeft))
	}
}

func (h *Handler) forward(ctx context.Context, msg *tgbotapi.Message, id domain.Identity, text string, now time.Time) {
	key, err := session.Resolve(id.Channel, id.Value, now)
	if err != nil {
		h.log.Error().Err(err).Str("identity", id.Key()).Msg("не удалось построить ключ сессии")
		h.reply(msg.Chat.ID, msgTryLater)
		return
	}
	answer, err := h.trainer.Reply(ctx, key, text)
	if err != nil {
		h.log.Error().Err(err).Str("session", key).Msg("тренажёр не ответил")
		h.reply(msg.Chat.ID, "Entschuldigung, ich kann gerade nicht antworten. Versuche es bitte später nochmal.")
		return
	}
	metrics.IncForwarded(string(id.Channel))
	formatted := telegram.FormatPlain(answer)
	if formatted == "" {
		formatted = "Keine Antwort erhalten."
	}
	h.reply(msg.Chat.ID, formatted)
}

// SetupCommands публикует список команд бота.
func (h *Handler) SetupCommands() error {
	commands := tgbotapi.NewSetMyCommands(
		tgbotapi.BotCommand{Command: "start", Description: "Bot starten und einloggen"},
	)
	_, err := h.bot.Request(commands)
	return err
}

const msgTryLater = "Es ist ein Fehler aufgetreten. Bitte versuche es später erneut."

func (h *Handler) reply(chatID int64, text string) {
	for _, part := range telegram.SplitMessage(text) {
		out := tgbotapi.NewMessage(chatID, part)
		start := time.Now()
		_, err := h.bot.Send(out)
		metrics.ObserveNetworkRequest("telegram_bot", "send_message", strconv.FormatInt(chatID, 10), start, err)
		if err != nil {
			h.log.Error().Err(err).Msg("не удалось отправить сообщение")
			return
		}
	}
}

func identityOf(from *tgbotapi.User) domain.Identity {
	return domain.Identity{Channel: domain.ChannelTelegram, Value: strconv.FormatInt(from.ID, 10)}
}

func firstNameOf(from *tgbotapi.User) string {
	if from.FirstName != "" {
		return from.FirstName
	}
	return "User"
}

// formatWait печатает остаток блокировки в формате M:SS.
func formatWait(d time.Duration) string {
	total := int(d.Round(time.Second).Seconds())
	if total < 0 {
		total = 0
	}
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}
