package auth

import "crypto/subtle"

// checkPassword сравнивает пароль с настроенным за постоянное время.
// Пустой настроенный пароль означает, что защита выключена глобально.
func checkPassword(presented, configured string) bool {
	if configured == "" {
		return true
	}
	return subtle.ConstantTimeCompare([]byte(presented), []byte(configured)) == 1
}
