package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"sprachtrainer-gateway/internal/domain"
)

var (
	// ErrEmptyIdentity возвращается при пустом идентификаторе отправителя.
	ErrEmptyIdentity = errors.New("пустой идентификатор отправителя")
	// ErrEmptySecret возвращается при пустом пароле.
	ErrEmptySecret = errors.New("пустой пароль")
)

const (
	defaultThreshold = 5
	defaultLockout   = 10 * time.Minute
)

// Config задаёт политику парольной защиты.
type Config struct {
	Password  string
	Threshold int
	Lockout   time.Duration
}

// LoginResult описывает исход попытки входа.
type LoginResult struct {
	State        domain.AuthState
	AttemptsLeft int           // осталось попыток до блокировки
	RetryAfter   time.Duration // остаток активной блокировки
	LockedOut    bool          // именно эта попытка наложила блокировку
	Record       domain.AuthRecord
}

// Service реализует конечный автомат аутентификации поверх AuthStore.
// Все переходы состояния выполняются внутри AuthStore.Update, поэтому
// конкурентные сообщения одной идентичности сериализуются хранилищем.
type Service struct {
	store     domain.AuthStore
	events    domain.AuthEventSink
	log       zerolog.Logger
	password  string
	threshold int
	lockout   time.Duration
}

// NewService создаёт сервис аутентификации.
func NewService(store domain.AuthStore, events domain.AuthEventSink, log zerolog.Logger, cfg Config) *Service {
	if cfg.Threshold <= 0 {
		cfg.Threshold = defaultThreshold
	}
	if cfg.Lockout <= 0 {
		cfg.Lockout = defaultLockout
	}
	if events == nil {
		events = nopSink{}
	}
	return &Service{
		store:     store,
		events:    events,
		log:       log,
		password:  cfg.Password,
		threshold: cfg.Threshold,
		lockout:   cfg.Lockout,
	}
}

// Enabled сообщает, включена ли парольная защита.
func (s *Service) Enabled() bool {
	return s.password != ""
}

// Status возвращает текущее состояние идентичности, ничего не меняя.
// При выключенной защите любая идентичность считается аутентифицированной.
func (s *Service) Status(ctx context.Context, id domain.Identity, now time.Time) (domain.AuthState, error) {
	if id.Value == "" {
		return domain.StateUnauthenticated, ErrEmptyIdentity
	}
	if !s.Enabled() {
		return domain.StateAuthenticated, nil
	}
	rec, err := s.store.Get(ctx, id)
	if err != nil {
		return domain.StateUnauthenticated, fmt.Errorf("чтение состояния: %w", err)
	}
	switch {
	case rec.Blocked(now):
		return domain.StateBlocked, nil
	case rec.Authenticated:
		return domain.StateAuthenticated, nil
	default:
		return domain.StateUnauthenticated, nil
	}
}

// Login обрабатывает присланный пароль. Переходы:
// активная блокировка отклоняет попытку без проверки пароля; верный пароль
// аутентифицирует и сбрасывает счётчик; неверный увеличивает счётчик, и по
// достижении порога идентичность блокируется, а счётчик обнуляется —
// повторная блокировка требует свежих неудач после истечения текущей.
func (s *Service) Login(ctx context.Context, id domain.Identity, secret string, now time.Time) (LoginResult, error) {
	if id.Value == "" {
		return LoginResult{}, ErrEmptyIdentity
	}
	if !s.Enabled() {
		return LoginResult{State: domain.StateAuthenticated}, nil
	}
	if secret == "" {
		return LoginResult{}, ErrEmptySecret
	}

	var result LoginResult
	rec, err := s.store.Update(ctx, id, func(rec domain.AuthRecord) (domain.AuthRecord, error) {
		result = LoginResult{}
		if rec.Blocked(now) {
			result.State = domain.StateBlocked
			result.RetryAfter = rec.BlockedUntil.Sub(now)
			return rec, nil
		}
		if rec.Authenticated {
			result.State = domain.StateAuthenticated
			return rec, nil
		}
		if checkPassword(secret, s.password) {
			rec.Authenticated = true
			rec.FailedAttempts = 0
			rec.BlockedUntil = time.Time{}
			rec.AuthenticatedAt = now
			result.State = domain.StateAuthenticated
			return rec, nil
		}
		// истёкшая блокировка снимается лениво, счёт идёт заново
		rec.BlockedUntil = time.Time{}
		rec.FailedAttempts++
		if rec.FailedAttempts >= s.threshold {
			rec.BlockedUntil = now.Add(s.lockout)
			rec.FailedAttempts = 0
			result.State = domain.StateBlocked
			result.RetryAfter = s.lockout
			result.LockedOut = true
			return rec, nil
		}
		result.State = domain.StateUnauthenticated
		result.AttemptsLeft = s.threshold - rec.FailedAttempts
		return rec, nil
	})
	if err != nil {
		return LoginResult{}, fmt.Errorf("обновление состояния: %w", err)
	}
	result.Record = rec
	s.audit(ctx, id, result, now)
	return result, nil
}

// SaveProfile сохраняет метаданные профиля после успешного входа.
func (s *Service) SaveProfile(ctx context.Context, id domain.Identity, username, firstName string) error {
	if id.Value == "" {
		return ErrEmptyIdentity
	}
	_, err := s.store.Update(ctx, id, func(rec domain.AuthRecord) (domain.AuthRecord, error) {
		rec.Username = username
		rec.FirstName = firstName
		return rec, nil
	})
	if err != nil {
		return fmt.Errorf("сохранение профиля: %w", err)
	}
	return nil
}

func (s *Service) audit(ctx context.Context, id domain.Identity, result LoginResult, now time.Time) {
	var kind domain.AuthEventKind
	switch {
	case result.LockedOut:
		kind = domain.AuthEventLockout
		s.log.Warn().Str("identity", id.Key()).Dur("lockout", s.lockout).
			Msg("идентичность заблокирована после неудачных попыток")
	case result.State == domain.StateAuthenticated:
		kind = domain.AuthEventLoginOK
		s.log.Info().Str("identity", id.Key()).Msg("успешная аутентификация")
	case result.State == domain.StateUnauthenticated:
		kind = domain.AuthEventLoginFailed
	default:
		return
	}
	event := domain.AuthEvent{Channel: id.Channel, Identity: id.Value, Kind: kind, At: now}
	if err := s.events.Publish(ctx, event); err != nil {
		s.log.Error().Err(err).Str("identity", id.Key()).Msg("не удалось опубликовать событие аутентификации")
	}
}

type nopSink struct{}

func (nopSink) Publish(context.Context, domain.AuthEvent) error { return nil }
