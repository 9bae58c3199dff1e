package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/photocore/photoadmin/internal/api"
	"github.com/photocore/photoadmin/internal/auth"
	"github.com/photocore/photoadmin/internal/gallery"
	"github.com/photocore/photoadmin/internal/notify"
	"github.com/photocore/photoadmin/internal/query"
)

type scopeKey struct{}

// галерея перечитывает сетку по этому событию (HX-Trigger или WebSocket)
const changedEvent = "gallery-changed"

func scopeFrom(r *http.Request) gallery.Scope {
	s, _ := r.Context().Value(scopeKey{}).(gallery.Scope)
	return s
}

func withScope(r *http.Request, s gallery.Scope) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), scopeKey{}, s))
}

// GalleryScope определяет ленту по {kind}
func (h *Handlers) GalleryScope(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		scope, err := gallery.ParseScope(chi.URLParam(r, "kind"))
		if err != nil {
			h.NotFound(w, r)
			return
		}
		next.ServeHTTP(w, withScope(r, scope))
	})
}

// AlbumScope определяет ленту альбома по {id}. Альбом нужен, чтобы знать,
// системный ли он.
func (h *Handlers) AlbumScope(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		album, err := h.album(r, chi.URLParam(r, "id"))
		if err != nil {
			h.failPage(w, r, "Не удалось открыть альбом", err)
			return
		}
		r = withScope(r, gallery.AlbumScope(*album))
		ctx := context.WithValue(r.Context(), albumKey{}, album)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GalleryRoutes маршруты ленты, общие для всех областей
func (h *Handlers) GalleryRoutes(r chi.Router) {
	r.Get("/", h.Gallery)
	r.Get("/grid", h.Grid)
	r.Get("/more", h.More)
	r.Post("/select/{objectID}", h.Select)
	r.Post("/clear", h.ClearSelection)
	r.Post("/actions/{action}", h.Bulk)
	r.Post("/favorite/{objectID}", h.Favorite)
	r.Get("/preview/{objectID}", h.OpenPreview)
	r.Post("/preview/next", h.PreviewNext)
	r.Post("/preview/prev", h.PreviewPrev)
	r.Post("/preview/close", h.ClosePreview)
}

// === Представления ===

type tileView struct {
	Scope    gallery.Scope
	Item     api.MediaObject
	Selected bool
}

type gridView struct {
	Scope      gallery.Scope
	Tiles      []tileView
	HasNewPage bool
	Empty      bool
}

type barView struct {
	Scope   gallery.Scope
	Count   int
	Actions []gallery.Action
	Albums  []api.Album // куда можно добавить
}

func tiles(ws *gallery.Workspace, scope gallery.Scope, items []api.MediaObject) []tileView {
	out := make([]tileView, len(items))
	for i, item := range items {
		out[i] = tileView{Scope: scope, Item: item, Selected: ws.IsSelected(scope, item.ID)}
	}
	return out
}

func (h *Handlers) grid(ws *gallery.Workspace, scope gallery.Scope, pages *gallery.Pages) gridView {
	return gridView{
		Scope:      scope,
		Tiles:      tiles(ws, scope, pages.Items()),
		HasNewPage: pages.HasNewPage(),
		Empty:      pages.Empty(),
	}
}

func (h *Handlers) bar(r *http.Request, ws *gallery.Workspace, scope gallery.Scope) barView {
	v := barView{
		Scope:   scope,
		Count:   len(ws.SelectedIDs(scope)),
		Actions: scope.Actions(),
	}
	if v.Count > 0 && scope.Allows(gallery.ActionAddToAlbum) {
		// список альбомов нужен только для выбора цели, ошибка не мешает остальным действиям
		if albums, err := h.albums(r); err == nil {
			for _, a := range albums {
				if !a.IsSystem && a.ID != scope.AlbumID {
					v.Albums = append(v.Albums, a)
				}
			}
		}
	}
	return v
}

// === Лента ===

// Gallery страница ленты с первой страницей объектов
func (h *Handlers) Gallery(w http.ResponseWriter, r *http.Request) {
	scope := scopeFrom(r)
	ws := h.workspace(r)

	pages, err := ws.Load(r.Context(), scope)
	if err != nil {
		h.failPage(w, r, "Не удалось загрузить ленту", err)
		return
	}

	title := scope.Title()
	var album *api.Album
	if a, ok := r.Context().Value(albumKey{}).(*api.Album); ok {
		album = a
		title = a.Name
	}

	h.render(w, "gallery.html", h.page(r, title, map[string]interface{}{
		"Scope": scope,
		"Album": album,
		"Grid":  h.grid(ws, scope, pages),
		"Bar":   h.bar(r, ws, scope),
	}))
}

// Grid перечитывает загруженные страницы, например после массового действия
func (h *Handlers) Grid(w http.ResponseWriter, r *http.Request) {
	scope := scopeFrom(r)
	ws := h.workspace(r)

	pages, err := ws.Load(r.Context(), scope)
	if err != nil {
		h.fail(w, r, "Не удалось загрузить ленту", err)
		return
	}
	h.fragment(w, r, "grid", h.grid(ws, scope, pages))
}

// More догружает следующую страницу. Вызывается только сторожевым элементом
// в конце сетки, когда он попадает в область видимости.
func (h *Handlers) More(w http.ResponseWriter, r *http.Request) {
	scope := scopeFrom(r)
	ws := h.workspace(r)

	pages, items, err := ws.LoadMore(r.Context(), scope)
	if errors.Is(err, gallery.ErrSuperseded) {
		// лента сброшена, пока ждали страницу: рисуем ее заново
		pages, err = ws.Load(r.Context(), scope)
		if err == nil {
			w.Header().Set("HX-Retarget", "#grid")
			w.Header().Set("HX-Reswap", "outerHTML")
			h.fragment(w, r, "grid", h.grid(ws, scope, pages))
			return
		}
	}
	if err != nil {
		h.fail(w, r, "Не удалось загрузить следующую страницу", err)
		return
	}

	h.fragment(w, r, "more", gridView{
		Scope:      scope,
		Tiles:      tiles(ws, scope, items),
		HasNewPage: pages.HasNewPage(),
	})
}

// === Выбор ===

// Select переключает выбор объекта
func (h *Handlers) Select(w http.ResponseWriter, r *http.Request) {
	scope := scopeFrom(r)
	ws := h.workspace(r)
	id := chi.URLParam(r, "objectID")

	pages, err := ws.Load(r.Context(), scope)
	if err != nil {
		h.fail(w, r, "Не удалось загрузить ленту", err)
		return
	}
	i := pages.Index(id)
	if i < 0 {
		// объекта уже нет в ленте
		w.Header().Set("HX-Trigger", changedEvent)
		h.fragment(w, r, "bar_oob", h.bar(r, ws, scope))
		return
	}

	selected := ws.Toggle(scope, id)
	h.fragment(w, r, "select", map[string]interface{}{
		"Tile": tileView{Scope: scope, Item: pages.Items()[i], Selected: selected},
		"Bar":  h.bar(r, ws, scope),
	})
}

// ClearSelection сбрасывает выбор области
func (h *Handlers) ClearSelection(w http.ResponseWriter, r *http.Request) {
	scope := scopeFrom(r)
	ws := h.workspace(r)
	ws.ClearSelection(scope)

	w.Header().Set("HX-Trigger", changedEvent)
	h.fragment(w, r, "bar", h.bar(r, ws, scope))
}

// === Действия ===

// Bulk выполняет массовое действие над выбором
func (h *Handlers) Bulk(w http.ResponseWriter, r *http.Request) {
	scope := scopeFrom(r)
	ws := h.workspace(r)
	sid := auth.GetSessionID(r)
	action := gallery.Action(chi.URLParam(r, "action"))
	ids := ws.SelectedIDs(scope)

	res, err := ws.Bulk(r.Context(), scope, gallery.BulkRequest{
		Action:      action,
		TargetAlbum: r.FormValue("album"),
	})
	switch {
	case errors.Is(err, gallery.ErrEmptySelection):
		h.reject(w, r, "Ничего не выбрано")
		return
	case errors.Is(err, gallery.ErrSystemAlbum):
		h.reject(w, r, "Из системного альбома нельзя убирать объекты")
		return
	case errors.Is(err, gallery.ErrNoAlbum):
		h.reject(w, r, "Выберите альбом")
		return
	case errors.Is(err, gallery.ErrNotAllowed):
		h.reject(w, r, "Действие здесь недоступно")
		return
	case errors.Is(err, query.ErrPending):
		h.reject(w, r, "Действие уже выполняется")
		return
	case err != nil:
		h.fail(w, r, "Не удалось выполнить действие «"+action.Label()+"»", err)
		return
	}

	if res.Archive != nil {
		link, err := h.links.Stash(sid, res.Archive.Filename, res.Archive.ContentType, res.Archive.Body)
		if err != nil {
			h.fail(w, r, "Не удалось подготовить архив", err)
			return
		}
		h.notify(r, notify.Success("Архив готов: "+link.Filename))
		w.Header().Set("HX-Redirect", "/downloads/"+link.Token)
		h.fragment(w, r, "", nil)
		return
	}

	if action == gallery.ActionTrash || action == gallery.ActionDelete {
		h.forgetMedia(sid, ids...)
	}

	h.notify(r, notify.Success(res.Message()))
	w.Header().Set("HX-Trigger", changedEvent)
	h.fragment(w, r, "bar", h.bar(r, ws, scope))
}

// reject отказ без запроса к API: выбор и лента не меняются
func (h *Handlers) reject(w http.ResponseWriter, r *http.Request, msg string) {
	h.notify(r, notify.Error(msg))
	if !isHTMX(r) {
		h.back(w, r)
		return
	}
	w.Header().Set("HX-Reswap", "none")
	h.fragment(w, r, "", nil)
}

// EmptyTrash очищает корзину
func (h *Handlers) EmptyTrash(w http.ResponseWriter, r *http.Request) {
	if scopeFrom(r).Kind != gallery.KindTrash {
		h.NotFound(w, r)
		return
	}

	if err := h.workspace(r).EmptyTrash(r.Context()); err != nil {
		if errors.Is(err, query.ErrPending) {
			h.reject(w, r, "Корзина уже очищается")
			return
		}
		h.fail(w, r, "Не удалось очистить корзину", err)
		return
	}

	h.notify(r, notify.Success("Корзина очищена"))
	w.Header().Set("HX-Trigger", changedEvent)
	h.fragment(w, r, "", nil)
}

// Favorite меняет отметку избранного одного объекта. Из окна просмотра
// возвращается обновленное окно.
func (h *Handlers) Favorite(w http.ResponseWriter, r *http.Request) {
	scope := scopeFrom(r)
	ws := h.workspace(r)
	favorite := r.FormValue("favorite") == "true"

	if err := ws.ToggleFavorite(r.Context(), scope, chi.URLParam(r, "objectID"), favorite); err != nil {
		if errors.Is(err, query.ErrPending) {
			h.reject(w, r, "Действие уже выполняется")
			return
		}
		h.fail(w, r, "Не удалось изменить избранное", err)
		return
	}

	w.Header().Set("HX-Trigger", changedEvent)
	if r.FormValue("from") != "preview" {
		w.Header().Set("HX-Reswap", "none")
		h.fragment(w, r, "", nil)
		return
	}

	st, err := ws.PreviewCurrent(r.Context())
	h.renderPreview(w, r, st, err)
}

// === Просмотр ===

// OpenPreview открывает окно просмотра объекта
func (h *Handlers) OpenPreview(w http.ResponseWriter, r *http.Request) {
	st, err := h.workspace(r).OpenPreview(r.Context(), scopeFrom(r), chi.URLParam(r, "objectID"))
	h.renderPreview(w, r, st, err)
}

// PreviewNext следующий объект, при необходимости догружает страницу
func (h *Handlers) PreviewNext(w http.ResponseWriter, r *http.Request) {
	st, err := h.workspace(r).PreviewNext(r.Context())
	h.renderPreview(w, r, st, err)
}

// PreviewPrev предыдущий объект
func (h *Handlers) PreviewPrev(w http.ResponseWriter, r *http.Request) {
	st, err := h.workspace(r).PreviewPrev(r.Context())
	h.renderPreview(w, r, st, err)
}

// ClosePreview закрывает окно просмотра
func (h *Handlers) ClosePreview(w http.ResponseWriter, r *http.Request) {
	h.workspace(r).ClosePreview()
	h.fragment(w, r, "", nil)
}

func (h *Handlers) renderPreview(w http.ResponseWriter, r *http.Request, st *gallery.PreviewState, err error) {
	if errors.Is(err, gallery.ErrNoPreview) {
		// объекта больше нет в ленте: окно закрывается
		h.fragment(w, r, "", nil)
		return
	}
	if err != nil {
		h.fail(w, r, "Не удалось открыть просмотр", err)
		return
	}

	h.warmAround(r, st)
	h.fragment(w, r, "preview", st)
}

// warmAround заранее готовит превью соседних объектов
func (h *Handlers) warmAround(r *http.Request, st *gallery.PreviewState) {
	pages, err := h.workspace(r).Load(r.Context(), st.Scope)
	if err != nil {
		return
	}
	items := pages.Items()
	sid := auth.GetSessionID(r)
	for _, i := range []int{st.Index + 1, st.Index + 2, st.Index - 1} {
		if i < 0 || i >= len(items) || items[i].IsVideo() {
			continue
		}
		h.previews.QueuePreview(sid, items[i].ID)
	}
}
