package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/photocore/photoadmin/internal/api"
	"github.com/photocore/photoadmin/internal/config"
	"github.com/photocore/photoadmin/internal/storage"
)

func newTestAuth(t *testing.T) *Auth {
	t.Helper()
	store, err := storage.NewMemoryStore()
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	cfg := &config.Config{}
	cfg.Auth.SessionMaxAge = 3600
	cfg.Auth.RefreshExpiration = 72 * time.Hour
	return NewAuth(cfg, store)
}

func signed(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test"))
	require.NoError(t, err)
	return s
}

func TestTokens_SaveAndClear(t *testing.T) {
	a := newTestAuth(t)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	a.now = func() time.Time { return now }

	tk := a.Tokens("s1")
	require.NoError(t, tk.SetEmail("user@example.com"))
	require.NoError(t, tk.SaveTokens(&api.Tokens{AccessToken: "a", RefreshToken: "r", ExpiresIn: 60}))

	token, _ := tk.Token()
	assert.Equal(t, "a", token)
	assert.True(t, tk.LoggedIn())
	assert.False(t, tk.IsTokenExpired())

	now = now.Add(2 * time.Minute)
	assert.True(t, tk.IsTokenExpired())
	assert.False(t, tk.IsRefreshTokenExpired())

	require.NoError(t, tk.ClearTokens())
	token, _ = tk.Token()
	refresh, _ := tk.RefreshToken()
	email, _ := tk.Email()
	assert.Empty(t, token)
	assert.Empty(t, refresh)
	assert.Equal(t, "user@example.com", email)
	assert.False(t, tk.LoggedIn())
}

func TestTokens_RefreshExpiration(t *testing.T) {
	a := newTestAuth(t)
	now := time.Now()
	a.now = func() time.Time { return now }

	tk := a.Tokens("s1")
	require.NoError(t, tk.SaveTokens(&api.Tokens{AccessToken: "a", RefreshToken: "r", ExpiresIn: 60}))

	now = now.Add(71 * time.Hour)
	assert.True(t, tk.LoggedIn())

	now = now.Add(2 * time.Hour)
	assert.True(t, tk.IsRefreshTokenExpired())
	assert.False(t, tk.LoggedIn())
}

func TestMiddleware_CreatesSession(t *testing.T) {
	a := newTestAuth(t)

	var seen string
	h := a.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetSessionID(r)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NotEmpty(t, seen)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, seen, cookies[0].Value)

	// повторный запрос с cookie попадает в ту же сессию
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookies[0])
	rec = httptest.NewRecorder()
	first := seen
	h.ServeHTTP(rec, req)
	assert.Equal(t, first, seen)
	assert.Empty(t, rec.Result().Cookies())
}

func TestRequireLogin(t *testing.T) {
	a := newTestAuth(t)
	protected := a.Middleware(a.RequireLogin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})))

	rec := httptest.NewRecorder()
	protected.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/gallery/feed", nil))
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))

	req := httptest.NewRequest(http.MethodGet, "/gallery/feed/more", nil)
	req.Header.Set("HX-Request", "true")
	rec = httptest.NewRecorder()
	protected.ServeHTTP(rec, req)
	assert.Equal(t, "/login", rec.Header().Get("HX-Redirect"))

	cookie := rec.Result().Cookies()[0]
	require.NoError(t, a.Tokens(cookie.Value).SaveTokens(&api.Tokens{AccessToken: "a", RefreshToken: "r", ExpiresIn: 60}))

	req = httptest.NewRequest(http.MethodGet, "/gallery/feed", nil)
	req.AddCookie(cookie)
	rec = httptest.NewRecorder()
	protected.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireAdmin(t *testing.T) {
	a := newTestAuth(t)
	h := a.Middleware(a.RequireAdmin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})))

	id := "3f1c2b1e-8a4d-4f6e-9c1a-1b2c3d4e5f60"
	require.NoError(t, a.store.SaveSession(&storage.Session{ID: id, LastSeen: time.Now()}, time.Hour))

	check := func(role string) int {
		token := signed(t, jwt.MapClaims{roleClaimURI: role, "sub": "u1"})
		require.NoError(t, a.Tokens(id).SaveTokens(&api.Tokens{AccessToken: token, RefreshToken: "r"}))
		req := httptest.NewRequest(http.MethodGet, "/users", nil)
		req.AddCookie(&http.Cookie{Name: CookieName, Value: id})
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, check("Admin"))
	assert.Equal(t, http.StatusForbidden, check("User"))
}

func TestParseClaims(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	token := signed(t, jwt.MapClaims{
		"sub":   "42",
		"email": "admin@example.com",
		"role":  []any{"Admin"},
		"exp":   exp.Unix(),
	})

	claims, err := ParseClaims(token)
	require.NoError(t, err)
	assert.Equal(t, "42", claims.Subject)
	assert.Equal(t, "admin@example.com", claims.Email)
	assert.True(t, claims.IsAdmin())
	assert.True(t, exp.Equal(claims.ExpiresAt))

	_, err = ParseClaims("not-a-token")
	assert.Error(t, err)
}
