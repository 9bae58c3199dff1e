package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/photocore/photoadmin/internal/api"
	"github.com/photocore/photoadmin/internal/auth"
	"github.com/photocore/photoadmin/internal/cache"
	"github.com/photocore/photoadmin/internal/config"
	"github.com/photocore/photoadmin/internal/download"
	"github.com/photocore/photoadmin/internal/gallery"
	"github.com/photocore/photoadmin/internal/logger"
	"github.com/photocore/photoadmin/internal/notify"
	"github.com/photocore/photoadmin/internal/worker"
)

// Handlers содержит все HTTP-обработчики
type Handlers struct {
	cfg        *config.Config
	auth       *auth.Auth
	api        *api.Client
	templates  *template.Template
	workspaces *gallery.Registry
	hub        *notify.Hub
	links      *download.Links
	cache      *cache.MediaCache
	workerPool *worker.Pool
	uploads    *worker.UploadService
	previews   *worker.PreviewService
}

// NewHandlers создает новый экземпляр обработчиков
func NewHandlers(
	cfg *config.Config,
	authService *auth.Auth,
	client *api.Client,
	templates *template.Template,
	workspaces *gallery.Registry,
	hub *notify.Hub,
	links *download.Links,
	mediaCache *cache.MediaCache,
	workerPool *worker.Pool,
	uploads *worker.UploadService,
	previews *worker.PreviewService,
) *Handlers {
	return &Handlers{
		cfg:        cfg,
		auth:       authService,
		api:        client,
		templates:  templates,
		workspaces: workspaces,
		hub:        hub,
		links:      links,
		cache:      mediaCache,
		workerPool: workerPool,
		uploads:    uploads,
		previews:   previews,
	}
}

// === Страницы ===

// Index перенаправляет на ленту
func (h *Handlers) Index(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, gallery.Feed().Path(), http.StatusFound)
}

// NotFound страница 404
func (h *Handlers) NotFound(w http.ResponseWriter, r *http.Request) {
	if !h.wantsHTML(r) {
		h.jsonError(w, "Not found", http.StatusNotFound)
		return
	}
	h.renderStatus(w, http.StatusNotFound, "notfound.html", h.page(r, "Страница не найдена", nil))
}

// === Сессия ===

// client клиент API от имени браузерной сессии
func (h *Handlers) client(r *http.Request) *api.Client {
	return h.api.WithTokens(h.auth.TokensFor(r))
}

// workspace состояние лент браузерной сессии
func (h *Handlers) workspace(r *http.Request) *gallery.Workspace {
	return h.workspaces.Get(auth.GetSessionID(r))
}

// claims роль и email из токена, nil если вход не выполнен
func (h *Handlers) claims(r *http.Request) *auth.AccessClaims {
	token, err := h.auth.TokensFor(r).Token()
	if err != nil || token == "" {
		return nil
	}
	claims, err := auth.ParseClaims(token)
	if err != nil {
		return nil
	}
	return claims
}

// === Уведомления ===

// notify показывает уведомление. Для HTMX оно уходит сразу (WebSocket или
// out-of-band в ответе), для обычных форм откладывается до следующей страницы.
func (h *Handlers) notify(r *http.Request, t notify.Toast) {
	sid := auth.GetSessionID(r)
	if isHTMX(r) {
		h.hub.Push(sid, t)
		return
	}
	h.hub.Queue(sid, t)
}

// errorToast уведомление об ошибке API. Ошибки валидации идут списком.
func errorToast(msg string, err error) notify.Toast {
	if details := api.ValidationErrors(err); len(details) > 0 {
		return notify.Error(msg, details...)
	}
	return notify.Error(msg, err.Error())
}

// fail обрабатывает ошибку действия: истекшая сессия ведет на вход,
// остальное превращается в уведомление, состояние страницы не меняется.
func (h *Handlers) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	if h.sessionExpired(w, r, err) {
		return
	}

	logger.L.Info("request failed",
		zap.String("path", r.URL.Path),
		zap.String("message", msg),
		zap.Error(err))

	h.notify(r, errorToast(msg, err))
	if isHTMX(r) {
		w.Header().Set("HX-Reswap", "none")
		h.fragment(w, r, "", nil)
		return
	}
	h.back(w, r)
}

// failPage ошибка при отрисовке страницы
func (h *Handlers) failPage(w http.ResponseWriter, r *http.Request, msg string, err error) {
	if h.sessionExpired(w, r, err) {
		return
	}
	if api.IsStatus(err, http.StatusNotFound) {
		h.NotFound(w, r)
		return
	}

	logger.L.Warn("page failed", zap.String("path", r.URL.Path), zap.Error(err))
	h.renderStatus(w, http.StatusBadGateway, "error.html", h.page(r, "Ошибка", map[string]interface{}{
		"Message": msg,
		"Details": errorToast(msg, err).Details,
	}))
}

func (h *Handlers) sessionExpired(w http.ResponseWriter, r *http.Request, err error) bool {
	if !errors.Is(err, api.ErrSessionExpired) {
		return false
	}
	h.workspaces.Drop(auth.GetSessionID(r))
	auth.RedirectToLogin(w, r)
	return true
}

// back возвращает браузер на страницу, с которой отправили форму
func (h *Handlers) back(w http.ResponseWriter, r *http.Request) {
	target := "/"
	if ref := r.Referer(); ref != "" {
		target = ref
	}
	h.redirect(w, r, target)
}

// redirect после POST: для HTMX через HX-Redirect
func (h *Handlers) redirect(w http.ResponseWriter, r *http.Request, target string) {
	if isHTMX(r) {
		w.Header().Set("HX-Redirect", target)
		w.WriteHeader(http.StatusOK)
		return
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// === Helpers ===

func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// wantsHTML проверяет, запрашивает ли клиент HTML (браузер или HTMX)
func (h *Handlers) wantsHTML(r *http.Request) bool {
	// HTMX запросы всегда хотят HTML
	if isHTMX(r) {
		return true
	}
	// Проверяем Accept header (браузеры отправляют text/html в начале)
	accept := r.Header.Get("Accept")
	return strings.Contains(accept, "text/html")
}

// page общие данные страниц: заголовок, пользователь, отложенные уведомления
func (h *Handlers) page(r *http.Request, title string, data map[string]interface{}) map[string]interface{} {
	if data == nil {
		data = map[string]interface{}{}
	}
	data["Title"] = title
	data["Path"] = r.URL.Path
	data["User"] = h.claims(r)
	data["Toasts"] = h.hub.Drain(auth.GetSessionID(r))
	return data
}

func (h *Handlers) render(w http.ResponseWriter, name string, data interface{}) {
	h.renderStatus(w, http.StatusOK, name, data)
}

func (h *Handlers) renderStatus(w http.ResponseWriter, status int, name string, data interface{}) {
	var buf bytes.Buffer
	if err := h.templates.ExecuteTemplate(&buf, name, data); err != nil {
		logger.L.Error("template error", zap.String("template", name), zap.Error(err))
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

// fragment отдает кусок страницы для HTMX и добавляет накопленные
// уведомления out-of-band. name может быть пустым.
func (h *Handlers) fragment(w http.ResponseWriter, r *http.Request, name string, data interface{}) {
	var buf bytes.Buffer
	if name != "" {
		if err := h.templates.ExecuteTemplate(&buf, name, data); err != nil {
			logger.L.Error("template error", zap.String("template", name), zap.Error(err))
			http.Error(w, "Internal error", http.StatusInternalServerError)
			return
		}
	}
	if toasts := h.hub.Drain(auth.GetSessionID(r)); len(toasts) > 0 {
		if err := h.templates.ExecuteTemplate(&buf, "toasts_oob", toasts); err != nil {
			logger.L.Error("template error", zap.String("template", "toasts_oob"), zap.Error(err))
		}
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	buf.WriteTo(w)
}

func (h *Handlers) jsonResponse(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func (h *Handlers) jsonError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
