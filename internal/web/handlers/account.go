package handlers

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/photocore/photoadmin/internal/api"
	"github.com/photocore/photoadmin/internal/auth"
	"github.com/photocore/photoadmin/internal/logger"
	"github.com/photocore/photoadmin/internal/notify"
	"github.com/photocore/photoadmin/internal/validate"
)

// === Вход и регистрация ===

// LoginPage отображает страницу входа. Email предыдущего входа подставляется.
func (h *Handlers) LoginPage(w http.ResponseWriter, r *http.Request) {
	tokens := h.auth.TokensFor(r)
	if tokens.LoggedIn() {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}

	email, _ := tokens.Email()
	h.render(w, "login.html", h.page(r, "Вход", map[string]interface{}{
		"Email":        email,
		"Registration": h.registrationOpen(r),
	}))
}

// Login обрабатывает вход пользователя
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimSpace(r.FormValue("email"))
	password := r.FormValue("password")

	var errs validate.Errors
	errs.Check(validate.IsEmail(email), validate.ErrEmail)
	errs.Check(password != "", validate.ErrRequired)
	if !errs.Empty() {
		h.loginError(w, r, email, errs)
		return
	}

	tokens, err := h.api.Login(r.Context(), email, password)
	if err != nil {
		logger.L.Info("login failed", zap.String("email", email), zap.Error(err))
		msg := validate.Errors{"Неверный email или пароль"}
		if details := api.ValidationErrors(err); len(details) > 0 {
			msg = details
		} else if !api.IsStatus(err, http.StatusUnauthorized) && !api.IsStatus(err, http.StatusBadRequest) {
			msg = validate.Errors{"Сервер недоступен, попробуйте позже"}
		}
		h.loginError(w, r, email, msg)
		return
	}

	store := h.auth.TokensFor(r)
	if err := store.SaveTokens(tokens); err != nil {
		logger.L.Error("failed to save tokens", zap.Error(err))
		h.loginError(w, r, email, validate.Errors{"Не удалось сохранить сессию"})
		return
	}
	if err := store.SetEmail(email); err != nil {
		logger.L.Warn("failed to remember email", zap.Error(err))
	}

	// кэш прошлого пользователя этого браузера больше не нужен
	h.workspaces.Drop(auth.GetSessionID(r))

	logger.L.Info("user logged in", zap.String("email", email))
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *Handlers) loginError(w http.ResponseWriter, r *http.Request, email string, errs validate.Errors) {
	h.renderStatus(w, http.StatusUnprocessableEntity, "login.html", h.page(r, "Вход", map[string]interface{}{
		"Email":        email,
		"Errors":       errs,
		"Registration": h.registrationOpen(r),
	}))
}

// Logout выполняет выход пользователя. Запомненный email остается.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	sid := auth.GetSessionID(r)
	if err := h.auth.Logout(sid); err != nil {
		logger.L.Error("failed to clear tokens", zap.Error(err))
	}
	h.workspaces.Drop(sid)
	h.hub.Forget(sid)

	h.redirect(w, r, "/login")
}

// registrationOpen открыта ли регистрация на сервере. Ошибки не мешают входу.
func (h *Handlers) registrationOpen(r *http.Request) bool {
	status, err := h.api.Status(r.Context())
	if err != nil {
		logger.L.Debug("status unavailable", zap.Error(err))
		return false
	}
	return status.Registration
}

// RegisterPage отображает форму регистрации
func (h *Handlers) RegisterPage(w http.ResponseWriter, r *http.Request) {
	h.render(w, "register.html", h.page(r, "Регистрация", map[string]interface{}{
		"Open": h.registrationOpen(r),
	}))
}

// Register регистрирует пользователя
func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.FormValue("name"))
	email := strings.TrimSpace(r.FormValue("email"))
	password := r.FormValue("password")

	var errs validate.Errors
	errs.Check(name != "", validate.ErrRequired)
	errs.Check(validate.IsEmail(email), validate.ErrEmail)
	errs.Add(validate.Password(password, r.FormValue("confirm")))

	if errs.Empty() {
		err := h.api.Register(r.Context(), name, email, password)
		if err == nil {
			h.hub.Queue(auth.GetSessionID(r), notify.Success("Учетная запись создана, войдите"))
			if err := h.auth.TokensFor(r).SetEmail(email); err != nil {
				logger.L.Warn("failed to remember email", zap.Error(err))
			}
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		errs = append(errs, errorToast("Не удалось зарегистрироваться", err).Details...)
	}

	h.renderStatus(w, http.StatusUnprocessableEntity, "register.html", h.page(r, "Регистрация", map[string]interface{}{
		"Open":   true,
		"Name":   name,
		"Email":  email,
		"Errors": errs,
	}))
}

// ForgotPasswordPage отображает форму восстановления пароля
func (h *Handlers) ForgotPasswordPage(w http.ResponseWriter, r *http.Request) {
	email, _ := h.auth.TokensFor(r).Email()
	h.render(w, "forgot.html", h.page(r, "Восстановление пароля", map[string]interface{}{
		"Email": email,
	}))
}

// ForgotPassword отправляет код сброса на почту
func (h *Handlers) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimSpace(r.FormValue("email"))

	var errs validate.Errors
	errs.Check(validate.IsEmail(email), validate.ErrEmail)
	if errs.Empty() {
		if err := h.api.ForgotPassword(r.Context(), email); err != nil {
			errs = append(errs, errorToast("Не удалось отправить письмо", err).Details...)
		}
	}

	status := http.StatusOK
	if !errs.Empty() {
		status = http.StatusUnprocessableEntity
	}
	h.renderStatus(w, status, "forgot.html", h.page(r, "Восстановление пароля", map[string]interface{}{
		"Email":  email,
		"Errors": errs,
		"Sent":   errs.Empty(),
	}))
}

// ResetPasswordPage форма нового пароля по ссылке из письма
func (h *Handlers) ResetPasswordPage(w http.ResponseWriter, r *http.Request) {
	h.render(w, "reset.html", h.page(r, "Новый пароль", map[string]interface{}{
		"Code":  r.URL.Query().Get("code"),
		"Email": r.URL.Query().Get("email"),
	}))
}

// ResetPassword устанавливает новый пароль по коду
func (h *Handlers) ResetPassword(w http.ResponseWriter, r *http.Request) {
	code := strings.TrimSpace(r.FormValue("code"))
	email := strings.TrimSpace(r.FormValue("email"))
	password := r.FormValue("password")

	var errs validate.Errors
	errs.Check(code != "", validate.ErrRequired)
	errs.Check(validate.IsEmail(email), validate.ErrEmail)
	errs.Add(validate.Password(password, r.FormValue("confirm")))

	if errs.Empty() {
		err := h.api.ResetPassword(r.Context(), code, email, password)
		if err == nil {
			h.hub.Queue(auth.GetSessionID(r), notify.Success("Пароль изменен, войдите с новым паролем"))
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		errs = append(errs, errorToast("Не удалось сменить пароль", err).Details...)
	}

	h.renderStatus(w, http.StatusUnprocessableEntity, "reset.html", h.page(r, "Новый пароль", map[string]interface{}{
		"Code":   code,
		"Email":  email,
		"Errors": errs,
	}))
}
