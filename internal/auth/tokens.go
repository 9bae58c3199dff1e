package auth

import (
	"fmt"
	"time"

	"github.com/photocore/photoadmin/internal/api"
	"github.com/photocore/photoadmin/internal/storage"
)

// Tokens токены одной браузерной сессии в badger
type Tokens struct {
	store      *storage.Store
	sessionID  string
	valueTTL   time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

var _ api.TokenStore = (*Tokens)(nil)

func (t *Tokens) get(key string) (string, error) {
	if t.sessionID == "" {
		return "", nil
	}
	return t.store.Get(t.sessionID, key)
}

// Token возвращает access-токен, "" если вход не выполнен
func (t *Tokens) Token() (string, error) {
	return t.get(storage.KeyToken)
}

// RefreshToken возвращает refresh-токен
func (t *Tokens) RefreshToken() (string, error) {
	return t.get(storage.KeyRefreshToken)
}

// Email возвращает запомненный email
func (t *Tokens) Email() (string, error) {
	return t.get(storage.KeyEmail)
}

// SetEmail запоминает email последнего входа
func (t *Tokens) SetEmail(email string) error {
	return t.set(map[string]string{storage.KeyEmail: email})
}

// SaveTokens сохраняет пару токенов и сроки их действия
func (t *Tokens) SaveTokens(tk *api.Tokens) error {
	now := t.now()
	return t.set(map[string]string{
		storage.KeyToken:             tk.AccessToken,
		storage.KeyRefreshToken:      tk.RefreshToken,
		storage.KeyExpiration:        now.Add(time.Duration(tk.ExpiresIn) * time.Second).Format(time.RFC3339),
		storage.KeyRefreshExpiration: now.Add(t.refreshTTL).Format(time.RFC3339),
	})
}

// ClearTokens удаляет токены. Email и срок refresh-токена не трогаем.
func (t *Tokens) ClearTokens() error {
	if t.sessionID == "" {
		return nil
	}
	return t.store.Delete(t.sessionID, storage.KeyToken, storage.KeyExpiration, storage.KeyRefreshToken)
}

// IsTokenExpired сообщает, истек ли access-токен
func (t *Tokens) IsTokenExpired() bool {
	return t.expired(storage.KeyExpiration)
}

// IsRefreshTokenExpired сообщает, истек ли refresh-токен
func (t *Tokens) IsRefreshTokenExpired() bool {
	return t.expired(storage.KeyRefreshExpiration)
}

// LoggedIn есть токен и его еще можно обновить
func (t *Tokens) LoggedIn() bool {
	token, err := t.Token()
	if err != nil || token == "" {
		return false
	}
	return !t.IsRefreshTokenExpired()
}

func (t *Tokens) expired(key string) bool {
	value, err := t.get(key)
	if err != nil || value == "" {
		return true
	}
	at, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return true
	}
	return !t.now().Before(at)
}

func (t *Tokens) set(values map[string]string) error {
	if t.sessionID == "" {
		return fmt.Errorf("no browser session")
	}
	return t.store.Set(t.sessionID, values, t.valueTTL)
}
