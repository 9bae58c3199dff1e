package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/photocore/photoadmin/internal/api"
	"github.com/photocore/photoadmin/internal/notify"
	"github.com/photocore/photoadmin/internal/query"
	"github.com/photocore/photoadmin/internal/validate"
)

const usersKey = query.Key("getUsers")

func userQueryKey(id string) query.Key {
	return query.Join("getUser", id)
}

// === Пользователи (только для администратора) ===

// ListUsers отображает список пользователей
func (h *Handlers) ListUsers(w http.ResponseWriter, r *http.Request) {
	client := h.client(r)
	users, err := query.Fetch(r.Context(), h.workspace(r).Query(), usersKey, func(ctx context.Context) ([]api.User, error) {
		return client.ListUsers(ctx)
	})
	if err != nil {
		h.failPage(w, r, "Не удалось загрузить пользователей", err)
		return
	}

	if !h.wantsHTML(r) {
		h.jsonResponse(w, users)
		return
	}

	h.render(w, "users.html", h.page(r, "Пользователи", map[string]interface{}{
		"Users": users,
	}))
}

// GetUser отображает карточку пользователя с формами управления
func (h *Handlers) GetUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.user(r)
	if err != nil {
		h.failPage(w, r, "Не удалось загрузить пользователя", err)
		return
	}

	h.render(w, "user.html", h.page(r, user.Name, map[string]interface{}{
		"Profile": user,
		"QuotaGB": strconv.FormatFloat(validate.BytesToGB(user.Quota), 'f', -1, 64),
		"Roles":   api.Roles,
		"Self":    h.isSelf(r, user.ID),
	}))
}

func (h *Handlers) user(r *http.Request) (*api.User, error) {
	id := chi.URLParam(r, "userID")
	client := h.client(r)
	return query.Fetch(r.Context(), h.workspace(r).Query(), userQueryKey(id), func(ctx context.Context) (*api.User, error) {
		return client.GetUser(ctx, id)
	})
}

func (h *Handlers) isSelf(r *http.Request, id string) bool {
	claims := h.claims(r)
	return claims != nil && claims.Subject != "" && claims.Subject == id
}

// NewUserPage форма создания пользователя
func (h *Handlers) NewUserPage(w http.ResponseWriter, r *http.Request) {
	h.render(w, "user_new.html", h.page(r, "Новый пользователь", map[string]interface{}{
		"Roles": api.Roles,
		"Role":  api.RoleUser,
	}))
}

// CreateUser создает пользователя
func (h *Handlers) CreateUser(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.FormValue("name"))
	email := strings.TrimSpace(r.FormValue("email"))
	password := r.FormValue("password")

	var errs validate.Errors
	errs.Check(name != "", validate.ErrRequired)
	errs.Check(validate.IsEmail(email), validate.ErrEmail)
	errs.Add(validate.Password(password, r.FormValue("confirm")))
	role, err := api.ParseRole(r.FormValue("role"))
	if err != nil {
		errs = append(errs, "Выберите роль")
		role = api.RoleUser
	}

	if errs.Empty() {
		err := h.client(r).CreateUser(r.Context(), name, email, password, role)
		if err == nil {
			h.workspace(r).Query().Invalidate(usersKey)
			h.notify(r, notify.Success(fmt.Sprintf("Пользователь %s создан", email)))
			h.redirect(w, r, "/users")
			return
		}
		if h.sessionExpired(w, r, err) {
			return
		}
		errs = append(errs, errorToast("Не удалось создать пользователя", err).Details...)
	}

	h.renderStatus(w, http.StatusUnprocessableEntity, "user_new.html", h.page(r, "Новый пользователь", map[string]interface{}{
		"Roles":  api.Roles,
		"Role":   role,
		"Name":   name,
		"Email":  email,
		"Errors": errs,
	}))
}

// ChangeQuota меняет квоту. В форме гигабайты, в API байты.
func (h *Handlers) ChangeQuota(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "userID")

	gb, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(r.FormValue("quota")), ",", "."), 64)
	if err != nil {
		h.reject(w, r, validate.ErrQuota.Error())
		return
	}
	quota, err := validate.GBToBytes(gb)
	if err != nil {
		h.reject(w, r, err.Error())
		return
	}

	if err := h.client(r).ChangeQuota(r.Context(), id, quota); err != nil {
		h.fail(w, r, "Не удалось изменить квоту", err)
		return
	}

	h.userChanged(r, id)
	h.notify(r, notify.Success("Квота изменена"))
	h.redirect(w, r, "/users/"+id)
}

// ChangeRole меняет роль
func (h *Handlers) ChangeRole(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "userID")

	role, err := api.ParseRole(r.FormValue("role"))
	if err != nil {
		h.reject(w, r, "Выберите роль")
		return
	}
	if h.isSelf(r, id) && role != api.RoleAdmin {
		h.reject(w, r, "Нельзя снять роль администратора с самого себя")
		return
	}

	if err := h.client(r).ChangeRole(r.Context(), id, role); err != nil {
		h.fail(w, r, "Не удалось изменить роль", err)
		return
	}

	h.userChanged(r, id)
	h.notify(r, notify.Success("Роль изменена: "+role.String()))
	h.redirect(w, r, "/users/"+id)
}

// ResetUserPassword задает пользователю новый пароль
func (h *Handlers) ResetUserPassword(w http.ResponseWriter, r *http.Request) {
	user, err := h.user(r)
	if err != nil {
		h.fail(w, r, "Не удалось загрузить пользователя", err)
		return
	}

	password := r.FormValue("password")
	if err := validate.Password(password, r.FormValue("confirm")); err != nil {
		h.reject(w, r, err.Error())
		return
	}

	if err := h.client(r).AdminResetPassword(r.Context(), user.Email, password); err != nil {
		h.fail(w, r, "Не удалось сменить пароль", err)
		return
	}

	h.notify(r, notify.Success("Пароль пользователя изменен"))
	h.redirect(w, r, "/users/"+user.ID)
}

// DeleteUser удаляет пользователя
func (h *Handlers) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "userID")

	// Не позволяем удалить себя, для этого есть удаление учетной записи
	if h.isSelf(r, id) {
		h.reject(w, r, "Нельзя удалить самого себя")
		return
	}

	if err := h.client(r).DeleteUser(r.Context(), id); err != nil {
		h.fail(w, r, "Не удалось удалить пользователя", err)
		return
	}

	h.userChanged(r, id)
	h.notify(r, notify.Success("Пользователь удален"))
	h.redirect(w, r, "/users")
}

func (h *Handlers) userChanged(r *http.Request, id string) {
	h.workspace(r).Query().Invalidate(usersKey, userQueryKey(id))
}
