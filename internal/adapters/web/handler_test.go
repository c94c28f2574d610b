package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	chi "github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"sprachtrainer-gateway/internal/adapters/repo"
	"sprachtrainer-gateway/internal/usecase/auth"
)

type stubTrainer struct {
	reply string
	err   error
	keys  []string
}

func (s *stubTrainer) Reply(_ context.Context, sessionKey, _ string) (string, error) {
	s.keys = append(s.keys, sessionKey)
	if s.err != nil {
		return "", s.err
	}
	return s.reply, nil
}

func newTestHandler(t *testing.T, password string, trainer *stubTrainer) http.Handler {
	t.Helper()
	svc := auth.NewService(repo.NewMemory(), nil, zerolog.Nop(), auth.Config{
		Password:  password,
		Threshold: 5,
		Lockout:   10 * time.Minute,
	})
	h := NewHandler(zerolog.Nop(), svc, trainer, t.TempDir())
	r := chi.NewRouter()
	h.Routes(r)
	return r
}

func postChat(t *testing.T, h http.Handler, clientID, message string) (int, chatResponse) {
	t.Helper()
	payload, _ := json.Marshal(chatRequest{ClientID: clientID, Message: message})
	req := httptest.NewRequest(http.MethodPost, "/api/chat", bytes.NewReader(payload))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	var resp chatResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	return rec.Code, resp
}

func TestChatMintsClientID(t *testing.T) {
	h := newTestHandler(t, "geheim", &stubTrainer{})

	code, resp := postChat(t, h, "", "Hallo")
	if code != http.StatusOK {
		t.Fatalf("ожидали 200, получили %d", code)
	}
	if resp.ClientID == "" {
		t.Fatal("новому клиенту должен выдаваться идентификатор")
	}
	if resp.Authenticated {
		t.Fatal("новый клиент не должен быть аутентифицирован")
	}
	if !strings.Contains(resp.Reply, "Passwort") {
		t.Fatalf("ожидали приглашение к вводу пароля, получили %q", resp.Reply)
	}
}

func TestChatLoginFlow(t *testing.T) {
	trainer := &stubTrainer{reply: "<b>Lektion 1</b>"}
	h := newTestHandler(t, "geheim", trainer)

	_, minted := postChat(t, h, "", "Hallo")

	// неверный пароль
	_, resp := postChat(t, h, minted.ClientID, "falsch")
	if resp.Authenticated {
		t.Fatal("неверный пароль не должен аутентифицировать")
	}
	if !strings.Contains(resp.Reply, "Falsches Passwort") {
		t.Fatalf("ожидали отказ, получили %q", resp.Reply)
	}

	// верный пароль: сообщение-пароль не пересылается тренажёру
	_, resp = postChat(t, h, minted.ClientID, "geheim")
	if !resp.Authenticated {
		t.Fatalf("ожидали успешный вход, получили %q", resp.Reply)
	}
	if len(trainer.keys) != 0 {
		t.Fatal("пароль не должен попадать в тренажёр")
	}

	// следующее сообщение уходит тренажёру, ответ непрозрачен
	code, resp := postChat(t, h, minted.ClientID, "Wie sagt man Hund?")
	if code != http.StatusOK {
		t.Fatalf("ожидали 200, получили %d", code)
	}
	if resp.Reply != "<b>Lektion 1</b>" {
		t.Fatalf("ответ тренажёра должен передаваться как есть, получили %q", resp.Reply)
	}
	if len(trainer.keys) != 1 || !strings.HasPrefix(trainer.keys[0], "web:"+minted.ClientID+":") {
		t.Fatalf("неожиданный ключ сессии: %v", trainer.keys)
	}
}

func TestChatLockout(t *testing.T) {
	h := newTestHandler(t, "geheim", &stubTrainer{})
	_, minted := postChat(t, h, "", "Hallo")

	for i := 0; i < 5; i++ {
		postChat(t, h, minted.ClientID, "falsch")
	}
	_, resp := postChat(t, h, minted.ClientID, "geheim")
	if resp.Authenticated {
		t.Fatal("верный пароль внутри блокировки должен отклоняться")
	}
	if !strings.Contains(resp.Reply, "Zu viele fehlgeschlagene Versuche") {
		t.Fatalf("ожидали сообщение о блокировке, получили %q", resp.Reply)
	}
}

func TestChatDisabledAuth(t *testing.T) {
	trainer := &stubTrainer{reply: "Hallo!"}
	h := newTestHandler(t, "", trainer)

	code, resp := postChat(t, h, "", "Erste Nachricht")
	if code != http.StatusOK {
		t.Fatalf("ожидали 200, получили %d", code)
	}
	if !resp.Authenticated {
		t.Fatal("при выключенной защите первый контакт уже аутентифицирован")
	}
	if len(trainer.keys) != 1 {
		t.Fatalf("сообщение должно уйти тренажёру, ключи: %v", trainer.keys)
	}
}

func TestChatTrainerDown(t *testing.T) {
	h := newTestHandler(t, "", &stubTrainer{err: errors.New("timeout")})

	code, _ := postChat(t, h, "", "Hallo")
	if code != http.StatusBadGateway {
		t.Fatalf("ожидали 502, получили %d", code)
	}
}

func TestChatEmptyMessage(t *testing.T) {
	h := newTestHandler(t, "geheim", &stubTrainer{})
	code, _ := postChat(t, h, "abc", "   ")
	if code != http.StatusBadRequest {
		t.Fatalf("ожидали 400, получили %d", code)
	}
}

func TestFormatWait(t *testing.T) {
	cases := map[time.Duration]string{
		10 * time.Minute:              "10:00",
		9*time.Minute + 5*time.Second: "9:05",
		59 * time.Second:              "0:59",
		-time.Second:                  "0:00",
	}
	for d, want := range cases {
		if got := formatWait(d); got != want {
			t.Fatalf("formatWait(%s) = %q, ожидали %q", d, got, want)
		}
	}
}
