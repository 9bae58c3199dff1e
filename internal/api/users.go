package api

import (
	"context"
	"net/http"
)

// === Публичные запросы ===

// Status возвращает состояние сервера
func (c *Client) Status(ctx context.Context) (*ServerStatus, error) {
	var status ServerStatus
	if err := c.doPublic(ctx, http.MethodGet, "status", nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// Login выполняет вход по email и паролю
func (c *Client) Login(ctx context.Context, email, password string) (*Tokens, error) {
	body := map[string]string{"email": email, "password": password}
	var tokens Tokens
	if err := c.doPublic(ctx, http.MethodPost, loginPath, body, &tokens); err != nil {
		return nil, err
	}
	return &tokens, nil
}

// Register регистрирует нового пользователя
func (c *Client) Register(ctx context.Context, name, email, password string) error {
	body := map[string]string{"name": name, "email": email, "password": password}
	return c.doPublic(ctx, http.MethodPost, "user/register", body, nil)
}

// ForgotPassword отправляет код сброса пароля на почту
func (c *Client) ForgotPassword(ctx context.Context, email string) error {
	return c.doPublic(ctx, http.MethodPost, "user/forgotpassword", map[string]string{"email": email}, nil)
}

// ResetPassword устанавливает новый пароль по коду
func (c *Client) ResetPassword(ctx context.Context, code, email, password string) error {
	body := map[string]string{"code": code, "email": email, "password": password}
	return c.doPublic(ctx, http.MethodPost, "user/resetpassword", body, nil)
}

// === Текущий пользователь ===

// UserInfo возвращает текущего пользователя
func (c *Client) UserInfo(ctx context.Context) (*UserInfo, error) {
	var info UserInfo
	if err := c.doJSON(ctx, http.MethodGet, "user/info", nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// ChangePassword меняет пароль текущего пользователя
func (c *Client) ChangePassword(ctx context.Context, oldPassword, newPassword string) error {
	body := map[string]string{"oldPassword": oldPassword, "newPassword": newPassword}
	return c.doJSON(ctx, http.MethodPost, "user/changepassword", body, nil)
}

// DeleteAccount удаляет учетную запись текущего пользователя
func (c *Client) DeleteAccount(ctx context.Context, password string) error {
	return c.doJSON(ctx, http.MethodDelete, "user", map[string]string{"password": password}, nil)
}

// === Администрирование ===

// ListUsers возвращает всех пользователей
func (c *Client) ListUsers(ctx context.Context) ([]User, error) {
	var users []User
	if err := c.doJSON(ctx, http.MethodGet, "users", nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// GetUser возвращает пользователя
func (c *Client) GetUser(ctx context.Context, id string) (*User, error) {
	var user User
	if err := c.doJSON(ctx, http.MethodGet, path("user/%s", id), nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// CreateUser создает пользователя от имени администратора
func (c *Client) CreateUser(ctx context.Context, name, email, password string, role Role) error {
	body := struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
		Role     Role   `json:"role"`
	}{name, email, password, role}
	return c.doJSON(ctx, http.MethodPost, "admin/register", body, nil)
}

// ChangeQuota меняет квоту пользователя, байты
func (c *Client) ChangeQuota(ctx context.Context, id string, quota int64) error {
	body := struct {
		ID    string `json:"id"`
		Quota int64  `json:"quota"`
	}{id, quota}
	return c.doJSON(ctx, http.MethodPost, "admin/quota", body, nil)
}

// ChangeRole меняет роль пользователя
func (c *Client) ChangeRole(ctx context.Context, id string, role Role) error {
	body := struct {
		ID   string `json:"id"`
		Role Role   `json:"role"`
	}{id, role}
	return c.doJSON(ctx, http.MethodPost, "admin/role", body, nil)
}

// DeleteUser удаляет пользователя
func (c *Client) DeleteUser(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, path("admin/user/%s", id), nil, nil)
}

// AdminResetPassword задает пользователю новый пароль
func (c *Client) AdminResetPassword(ctx context.Context, email, password string) error {
	body := map[string]string{"email": email, "password": password}
	return c.doJSON(ctx, http.MethodPost, "admin/resetpassword", body, nil)
}

// ChangeRegistration открывает или закрывает регистрацию
func (c *Client) ChangeRegistration(ctx context.Context, enabled bool) error {
	return c.doJSON(ctx, http.MethodPost, "registration", map[string]bool{"value": enabled}, nil)
}
