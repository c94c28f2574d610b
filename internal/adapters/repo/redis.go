package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"sprachtrainer-gateway/internal/domain"
	"sprachtrainer-gateway/internal/infra/metrics"
)

const (
	redisKeyPrefix = "auth:"
	redisCASRetry  = 5
)

// Redis реализует domain.AuthStore поверх Redis с оптимистичным CAS
// (WATCH + транзакционный пайплайн). Используется, когда записи нужно
// разделять между репликами без Postgres.
type Redis struct {
	client *redis.Client
}

var _ domain.AuthStore = (*Redis)(nil)

// NewRedis создаёт хранилище.
func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

type redisRecord struct {
	Authenticated   bool       `json:"authenticated"`
	FailedAttempts  int        `json:"failed_attempts"`
	BlockedUntil    *time.Time `json:"blocked_until,omitempty"`
	AuthenticatedAt *time.Time `json:"authenticated_at,omitempty"`
	Username        string     `json:"username,omitempty"`
	FirstName       string     `json:"first_name,omitempty"`
}

func encodeRecord(rec domain.AuthRecord) ([]byte, error) {
	raw := redisRecord{
		Authenticated:  rec.Authenticated,
		FailedAttempts: rec.FailedAttempts,
		Username:       rec.Username,
		FirstName:      rec.FirstName,
	}
	if !rec.BlockedUntil.IsZero() {
		t := rec.BlockedUntil
		raw.BlockedUntil = &t
	}
	if !rec.AuthenticatedAt.IsZero() {
		t := rec.AuthenticatedAt
		raw.AuthenticatedAt = &t
	}
	return json.Marshal(raw)
}

func decodeRecord(data []byte) (domain.AuthRecord, error) {
	if len(data) == 0 {
		return domain.AuthRecord{}, nil
	}
	var raw redisRecord
	if err := json.Unmarshal(data, &raw); err != nil {
		return domain.AuthRecord{}, fmt.Errorf("декодирование записи: %w", err)
	}
	rec := domain.AuthRecord{
		Authenticated:  raw.Authenticated,
		FailedAttempts: raw.FailedAttempts,
		Username:       raw.Username,
		FirstName:      raw.FirstName,
	}
	if raw.BlockedUntil != nil {
		rec.BlockedUntil = *raw.BlockedUntil
	}
	if raw.AuthenticatedAt != nil {
		rec.AuthenticatedAt = *raw.AuthenticatedAt
	}
	return rec, nil
}

// Get возвращает запись идентичности, нулевую для неизвестной.
func (r *Redis) Get(ctx context.Context, id domain.Identity) (domain.AuthRecord, error) {
	key := redisKeyPrefix + id.Key()
	start := time.Now()
	data, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		metrics.ObserveNetworkRequest("redis", "auth_get", "auth", start, nil)
		return domain.AuthRecord{}, nil
	}
	metrics.ObserveNetworkRequest("redis", "auth_get", "auth", start, err)
	if err != nil {
		return domain.AuthRecord{}, fmt.Errorf("чтение записи: %w", err)
	}
	return decodeRecord(data)
}

// Update выполняет read-modify-write через WATCH: если ключ изменился
// между чтением и записью, транзакция отклоняется и попытка повторяется.
func (r *Redis) Update(ctx context.Context, id domain.Identity, fn func(domain.AuthRecord) (domain.AuthRecord, error)) (domain.AuthRecord, error) {
	key := redisKeyPrefix + id.Key()
	var updated domain.AuthRecord

	for attempt := 0; attempt < redisCASRetry; attempt++ {
		start := time.Now()
		err := r.client.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil && !errors.Is(err, redis.Nil) {
				return err
			}
			rec, err := decodeRecord(data)
			if err != nil {
				return err
			}
			next, err := fn(rec)
			if err != nil {
				return err
			}
			payload, err := encodeRecord(next)
			if err != nil {
				return fmt.Errorf("кодирование записи: %w", err)
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, payload, 0)
				return nil
			})
			if err == nil {
				updated = next
			}
			return err
		}, key)
		metrics.ObserveNetworkRequest("redis", "auth_update", "auth", start, err)
		if err == nil {
			return updated, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return domain.AuthRecord{}, fmt.Errorf("обновление записи: %w", err)
	}
	return domain.AuthRecord{}, errors.New("обновление записи: превышено число повторов CAS")
}
