package domain

import "time"

// Channel обозначает транспорт, через который пришло сообщение.
type Channel string

const (
	ChannelWeb      Channel = "web"
	ChannelTelegram Channel = "telegram"
)

// Identity идентифицирует отправителя внутри канала. Сырые идентификаторы
// нормализуются на границе адаптера, ядро на тип канала не ветвится.
type Identity struct {
	Channel Channel
	Value   string
}

// Key возвращает ключ хранилища: одинаковые сырые идентификаторы из разных
// каналов не пересекаются.
func (id Identity) Key() string {
	return string(id.Channel) + ":" + id.Value
}

// AuthState описывает вычисленное состояние идентичности.
type AuthState int

const (
	StateUnauthenticated AuthState = iota
	StateAuthenticated
	StateBlocked
)

// String возвращает строковое представление состояния.
func (s AuthState) String() string {
	switch s {
	case StateAuthenticated:
		return "authenticated"
	case StateBlocked:
		return "blocked"
	default:
		return "unauthenticated"
	}
}

// AuthRecord хранит состояние аутентификации одной идентичности.
// Нулевое значение означает «не видели»: не аутентифицирован, ноль попыток.
type AuthRecord struct {
	Authenticated   bool
	FailedAttempts  int
	BlockedUntil    time.Time
	AuthenticatedAt time.Time
	Username        string
	FirstName       string
}

// Blocked сообщает, действует ли блокировка в момент now.
// Истёкшая блокировка снимается лениво, фоновых таймеров нет.
func (r AuthRecord) Blocked(now time.Time) bool {
	return now.Before(r.BlockedUntil)
}
