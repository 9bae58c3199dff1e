package storage

import (
	"time"
)

// Ключи локального хранилища браузерной сессии
const (
	KeyToken             = "token"
	KeyRefreshToken      = "refresh-token"
	KeyExpiration        = "expiration"
	KeyRefreshExpiration = "refresh-expiration"
	KeyEmail             = "email"
)

// Session представляет браузер, обратившийся к фронтенду.
// Живёт дольше токенов: после выхода остаётся запомненный email.
type Session struct {
	ID        string    `json:"id"`
	UserAgent string    `json:"user_agent"`
	CreatedAt time.Time `json:"created_at"`
	LastSeen  time.Time `json:"last_seen"`
}
