package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestWebhookSecretMiddleware(t *testing.T) {
	var called bool
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	})
	handler := WebhookSecretMiddleware("top-secret")(next)

	req := httptest.NewRequest(http.MethodPost, "/bot/webhook", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("без заголовка ожидали 401, получили %d", rec.Code)
	}
	if called {
		t.Fatal("обработчик не должен вызываться без секрета")
	}

	req = httptest.NewRequest(http.MethodPost, "/bot/webhook", nil)
	req.Header.Set("X-Telegram-Bot-Api-Secret-Token", "wrong")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("с неверным секретом ожидали 401, получили %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/bot/webhook", nil)
	req.Header.Set("X-Telegram-Bot-Api-Secret-Token", "top-secret")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("с верным секретом ожидали 200, получили %d", rec.Code)
	}
	if !called {
		t.Fatal("обработчик должен вызываться с верным секретом")
	}
}

func TestWebhookSecretMiddlewareDisabled(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := WebhookSecretMiddleware("")(next)

	req := httptest.NewRequest(http.MethodPost, "/bot/webhook", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("пустой секрет отключает проверку, ожидали 200, получили %d", rec.Code)
	}
}

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, http.StatusBadRequest, "leere Nachricht")

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("ожидали 400, получили %d", rec.Code)
	}
	var body ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("некорректный JSON: %v", err)
	}
	if body.Error != "leere Nachricht" {
		t.Fatalf("неожиданное сообщение: %q", body.Error)
	}
}
