package handlers

import (
	"context"
	"net/http"

	"github.com/photocore/photoadmin/internal/api"
	"github.com/photocore/photoadmin/internal/auth"
	"github.com/photocore/photoadmin/internal/cache"
	"github.com/photocore/photoadmin/internal/notify"
	"github.com/photocore/photoadmin/internal/query"
	"github.com/photocore/photoadmin/internal/validate"
	"github.com/photocore/photoadmin/internal/worker"
)

const (
	userInfoKey = query.Key("getUserInfo")
	statusKey   = query.Key("status")
)

// === Учетная запись ===

// Settings страница учетной записи: квота, смена пароля, удаление
func (h *Handlers) Settings(w http.ResponseWriter, r *http.Request) {
	client := h.client(r)
	info, err := query.Fetch(r.Context(), h.workspace(r).Query(), userInfoKey, func(ctx context.Context) (*api.UserInfo, error) {
		return client.UserInfo(ctx)
	})
	if err != nil {
		h.failPage(w, r, "Не удалось загрузить учетную запись", err)
		return
	}

	h.render(w, "settings.html", h.page(r, "Настройки", map[string]interface{}{
		"Info": info,
	}))
}

// ChangePassword меняет пароль текущего пользователя
func (h *Handlers) ChangePassword(w http.ResponseWriter, r *http.Request) {
	current := r.FormValue("current")
	password := r.FormValue("password")

	if current == "" {
		h.reject(w, r, validate.ErrRequired.Error())
		return
	}
	if err := validate.Password(password, r.FormValue("confirm")); err != nil {
		h.reject(w, r, err.Error())
		return
	}

	if err := h.client(r).ChangePassword(r.Context(), current, password); err != nil {
		h.fail(w, r, "Не удалось сменить пароль", err)
		return
	}

	h.notify(r, notify.Success("Пароль изменен"))
	h.redirect(w, r, "/settings")
}

// DeleteAccount удаляет учетную запись и завершает сессию
func (h *Handlers) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	password := r.FormValue("password")
	if password == "" {
		h.reject(w, r, "Введите пароль для подтверждения")
		return
	}

	if err := h.client(r).DeleteAccount(r.Context(), password); err != nil {
		h.fail(w, r, "Не удалось удалить учетную запись", err)
		return
	}

	sid := auth.GetSessionID(r)
	h.auth.Logout(sid)
	h.workspaces.Drop(sid)
	h.hub.Queue(sid, notify.Info("Учетная запись удалена"))
	h.redirect(w, r, "/login")
}

// === Администрирование ===

// AdminPage состояние сервера, регистрация и очереди фронтенда
func (h *Handlers) AdminPage(w http.ResponseWriter, r *http.Request) {
	client := h.client(r)
	status, err := query.Fetch(r.Context(), h.workspace(r).Query(), statusKey, func(ctx context.Context) (*api.ServerStatus, error) {
		return client.Status(ctx)
	})
	if err != nil {
		h.failPage(w, r, "Не удалось получить состояние сервера", err)
		return
	}

	h.render(w, "admin.html", h.page(r, "Администрирование", map[string]interface{}{
		"Status": status,
		"Stats":  h.stats(),
	}))
}

// ChangeRegistration открывает или закрывает регистрацию
func (h *Handlers) ChangeRegistration(w http.ResponseWriter, r *http.Request) {
	enabled := r.FormValue("enabled") == "true"

	if err := h.client(r).ChangeRegistration(r.Context(), enabled); err != nil {
		h.fail(w, r, "Не удалось изменить регистрацию", err)
		return
	}

	h.workspace(r).Query().Invalidate(statusKey)
	msg := "Регистрация закрыта"
	if enabled {
		msg = "Регистрация открыта"
	}
	h.notify(r, notify.Success(msg))
	h.redirect(w, r, "/admin")
}

// === API ===

// Status состояние сервера API (JSON)
func (h *Handlers) Status(w http.ResponseWriter, r *http.Request) {
	status, err := h.api.Status(r.Context())
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusBadGateway)
		return
	}
	h.jsonResponse(w, status)
}

type frontendStats struct {
	Queue     worker.Stats                `json:"queue"`
	Cache     map[string]cache.CacheStats `json:"cache"`
	Sessions  int                         `json:"sessions"`
	Downloads int                         `json:"downloads"`
	Toasts    int                         `json:"toasts"` // сессии с неполученными уведомлениями
}

func (h *Handlers) stats() frontendStats {
	return frontendStats{
		Queue:     h.workerPool.Stats(),
		Cache:     h.cache.Stats(),
		Sessions:  h.workspaces.Len(),
		Downloads: h.links.Pending(),
		Toasts:    h.hub.Queued(),
	}
}

// Stats статистика очередей и кэшей фронтенда (JSON)
func (h *Handlers) Stats(w http.ResponseWriter, r *http.Request) {
	h.jsonResponse(w, h.stats())
}

// Notifications WebSocket уведомлений вкладки
func (h *Handlers) Notifications(w http.ResponseWriter, r *http.Request) {
	h.hub.ServeWS(w, r, auth.GetSessionID(r))
}
