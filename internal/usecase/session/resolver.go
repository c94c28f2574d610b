package session

import (
	"errors"
	"fmt"
	"time"

	"sprachtrainer-gateway/internal/domain"
)

// ErrEmptyIdentity возвращается при пустом идентификаторе отправителя.
var ErrEmptyIdentity = errors.New("пустой идентификатор отправителя")

const dateLayout = "20060102"

// Resolve строит ключ сессии вида channel:identity:YYYYMMDD.
// Функция чистая: одни и те же входы в пределах календарных суток (UTC)
// дают один и тот же ключ. Разговор, перешедший через полночь, со
// следующего сообщения получает новый ключ — бекенд видит новую сессию.
func Resolve(channel domain.Channel, identity string, now time.Time) (string, error) {
	if identity == "" {
		return "", ErrEmptyIdentity
	}
	return fmt.Sprintf("%s:%s:%s", channel, identity, now.UTC().Format(dateLayout)), nil
}
