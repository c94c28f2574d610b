package domain

import "time"

// AuthEventKind тип события аутентификации.
type AuthEventKind string

const (
	AuthEventLoginOK     AuthEventKind = "login_ok"
	AuthEventLoginFailed AuthEventKind = "login_failed"
	AuthEventLockout     AuthEventKind = "lockout"
)

// AuthEvent описывает событие аутентификации для аудита.
type AuthEvent struct {
	Channel  Channel       `json:"channel"`
	Identity string        `json:"identity"`
	Kind     AuthEventKind `json:"kind"`
	At       time.Time     `json:"at"`
}
