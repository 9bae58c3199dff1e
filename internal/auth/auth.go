package auth

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/photocore/photoadmin/internal/config"
	"github.com/photocore/photoadmin/internal/logger"
	"github.com/photocore/photoadmin/internal/storage"
)

// CookieName имя cookie браузерной сессии
const CookieName = "session"

// Context key для хранения сессии
type contextKey string

const SessionKey contextKey = "session"

// как часто обновлять LastSeen, чтобы не писать в БД на каждый запрос
const touchInterval = time.Minute

// GetSession извлекает сессию из контекста запроса
func GetSession(r *http.Request) *storage.Session {
	if sess, ok := r.Context().Value(SessionKey).(*storage.Session); ok {
		return sess
	}
	return nil
}

// GetSessionID возвращает ID браузерной сессии
func GetSessionID(r *http.Request) string {
	if sess := GetSession(r); sess != nil {
		return sess.ID
	}
	return ""
}

// Auth управляет браузерными сессиями и доступом к страницам
type Auth struct {
	cfg   *config.Config
	store *storage.Store
	now   func() time.Time
}

// NewAuth создает новый сервис аутентификации
func NewAuth(cfg *config.Config, store *storage.Store) *Auth {
	return &Auth{
		cfg:   cfg,
		store: store,
		now:   time.Now,
	}
}

func (a *Auth) sessionTTL() time.Duration {
	return time.Duration(a.cfg.Auth.SessionMaxAge) * time.Second
}

// Tokens возвращает хранилище токенов сессии
func (a *Auth) Tokens(sessionID string) *Tokens {
	return &Tokens{
		store:      a.store,
		sessionID:  sessionID,
		valueTTL:   a.sessionTTL(),
		refreshTTL: a.cfg.Auth.RefreshExpiration,
		now:        a.now,
	}
}

// TokensFor возвращает токены сессии текущего запроса
func (a *Auth) TokensFor(r *http.Request) *Tokens {
	return a.Tokens(GetSessionID(r))
}

// Middleware привязывает запрос к браузерной сессии, создавая её при первом обращении
func (a *Auth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := a.resolve(r)
		if sess == nil {
			var err error
			sess, err = a.create(w, r)
			if err != nil {
				logger.L.Error("failed to create session", zap.Error(err))
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				return
			}
		}

		ctx := context.WithValue(r.Context(), SessionKey, sess)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a *Auth) resolve(r *http.Request) *storage.Session {
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return nil
	}
	if _, err := uuid.Parse(cookie.Value); err != nil {
		return nil
	}

	sess, err := a.store.GetSession(cookie.Value)
	if err != nil {
		logger.L.Error("failed to load session", zap.Error(err))
		return nil
	}
	if sess == nil {
		return nil
	}

	if now := a.now(); now.Sub(sess.LastSeen) > touchInterval {
		sess.LastSeen = now
		if err := a.store.SaveSession(sess, a.sessionTTL()); err != nil {
			logger.L.Warn("failed to touch session", zap.Error(err))
		}
	}
	return sess
}

func (a *Auth) create(w http.ResponseWriter, r *http.Request) (*storage.Session, error) {
	now := a.now()
	sess := &storage.Session{
		ID:        uuid.NewString(),
		UserAgent: r.UserAgent(),
		CreatedAt: now,
		LastSeen:  now,
	}
	if err := a.store.SaveSession(sess, a.sessionTTL()); err != nil {
		return nil, err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    sess.ID,
		Path:     "/",
		MaxAge:   a.cfg.Auth.SessionMaxAge,
		HttpOnly: true,
		Secure:   a.cfg.Auth.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	return sess, nil
}

// RequireLogin пропускает только сессии с действующими токенами, остальных отправляет на /login
func (a *Auth) RequireLogin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.TokensFor(r).LoggedIn() {
			RedirectToLogin(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin пропускает только администраторов. Роль берется из токена без проверки
// подписи: это подсказка интерфейсу, права проверяет сервер API.
func (a *Auth) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := a.TokensFor(r).Token()
		if err != nil || token == "" {
			RedirectToLogin(w, r)
			return
		}

		claims, err := ParseClaims(token)
		if err != nil || !claims.IsAdmin() {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RedirectToLogin отправляет браузер на страницу входа, для HTMX через HX-Redirect
func RedirectToLogin(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("HX-Request") == "true" {
		w.Header().Set("HX-Redirect", "/login")
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	http.Redirect(w, r, "/login", http.StatusFound)
}

// Logout очищает токены, запомненный email остается
func (a *Auth) Logout(sessionID string) error {
	return a.Tokens(sessionID).ClearTokens()
}
