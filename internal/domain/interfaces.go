package domain

import "context"

// AuthStore хранит AuthRecord по идентичности. Отсутствие записи
// эквивалентно нулевому значению AuthRecord.
type AuthStore interface {
	Get(ctx context.Context, id Identity) (AuthRecord, error)
	// Update выполняет сериализованный read-modify-write для одной
	// идентичности: два конкурентных вызова не теряют обновлений.
	// Ошибка из fn отменяет запись и возвращается вызывающему.
	Update(ctx context.Context, id Identity, fn func(AuthRecord) (AuthRecord, error)) (AuthRecord, error)
}

// Trainer отвечает на сообщение пользователя в рамках сессии.
type Trainer interface {
	Reply(ctx context.Context, sessionKey, message string) (string, error)
}

// AuthEventSink принимает события аутентификации для аудита.
type AuthEventSink interface {
	Publish(ctx context.Context, event AuthEvent) error
}
