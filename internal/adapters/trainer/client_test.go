package trainer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestReply(t *testing.T) {
	var gotPath string
	var gotReq map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("не удалось декодировать запрос: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"content": "Guten Tag!<br>Lektion 1"})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "sprachtrainer", 5*time.Second)
	answer, err := client.Reply(context.Background(), "telegram:42:20240501", "Hallo")
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if answer != "Guten Tag!<br>Lektion 1" {
		t.Fatalf("неожиданный ответ: %q", answer)
	}
	if gotPath != "/v1/agents/sprachtrainer/runs" {
		t.Fatalf("неожиданный путь: %s", gotPath)
	}
	if gotReq["session_id"] != "telegram:42:20240501" {
		t.Fatalf("ключ сессии не передан: %v", gotReq)
	}
	if gotReq["message"] != "Hallo" {
		t.Fatalf("сообщение не передано: %v", gotReq)
	}
}

func TestReplyServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "sprachtrainer", 5*time.Second)
	if _, err := client.Reply(context.Background(), "web:abc:20240501", "Hallo"); err == nil {
		t.Fatal("ожидали ошибку при статусе 500")
	}
}

func TestReplyUnreachable(t *testing.T) {
	client := NewClient("http://127.0.0.1:1", "sprachtrainer", time.Second)
	if _, err := client.Reply(context.Background(), "web:abc:20240501", "Hallo"); err == nil {
		t.Fatal("ожидали ошибку соединения")
	}
}
