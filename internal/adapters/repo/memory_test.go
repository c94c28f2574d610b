package repo

import (
	"context"
	"sync"
	"testing"

	"sprachtrainer-gateway/internal/domain"
)

func TestMemoryGetUnknown(t *testing.T) {
	store := NewMemory()
	rec, err := store.Get(context.Background(), domain.Identity{Channel: domain.ChannelWeb, Value: "abc"})
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if rec != (domain.AuthRecord{}) {
		t.Fatalf("неизвестная идентичность должна давать нулевую запись: %+v", rec)
	}
}

func TestMemoryUpdateSerialized(t *testing.T) {
	store := NewMemory()
	id := domain.Identity{Channel: domain.ChannelTelegram, Value: "42"}

	const workers = 50
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			_, err := store.Update(context.Background(), id, func(rec domain.AuthRecord) (domain.AuthRecord, error) {
				rec.FailedAttempts++
				return rec, nil
			})
			if err != nil {
				t.Errorf("не ожидали ошибку: %v", err)
			}
		}()
	}
	wg.Wait()

	rec, err := store.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if rec.FailedAttempts != workers {
		t.Fatalf("потеряны обновления: ожидали %d, получили %d", workers, rec.FailedAttempts)
	}
}

func TestMemoryChannelsIndependent(t *testing.T) {
	store := NewMemory()
	webID := domain.Identity{Channel: domain.ChannelWeb, Value: "42"}
	tgID := domain.Identity{Channel: domain.ChannelTelegram, Value: "42"}

	_, err := store.Update(context.Background(), webID, func(rec domain.AuthRecord) (domain.AuthRecord, error) {
		rec.Authenticated = true
		return rec, nil
	})
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}

	rec, err := store.Get(context.Background(), tgID)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if rec.Authenticated {
		t.Fatal("аутентификация в одном канале не должна видеться в другом")
	}
}

func TestMemoryUpdateError(t *testing.T) {
	store := NewMemory()
	id := domain.Identity{Channel: domain.ChannelWeb, Value: "abc"}

	_, err := store.Update(context.Background(), id, func(rec domain.AuthRecord) (domain.AuthRecord, error) {
		rec.FailedAttempts = 99
		return rec, context.Canceled
	})
	if err == nil {
		t.Fatal("ожидали ошибку из fn")
	}
	rec, _ := store.Get(context.Background(), id)
	if rec.FailedAttempts != 0 {
		t.Fatal("ошибка из fn не должна записывать изменения")
	}
}
