package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/photocore/photoadmin/internal/api"
	"github.com/photocore/photoadmin/internal/gallery"
	"github.com/photocore/photoadmin/internal/logger"
	"github.com/photocore/photoadmin/internal/notify"
	"github.com/photocore/photoadmin/internal/query"
)

type albumKey struct{}

const (
	albumsKey = query.Key("getAlbums")

	// сколько альбомов удалять одновременно
	deleteConcurrency = 4
)

func albumQueryKey(id string) query.Key {
	return query.Join("getAlbum", id)
}

// albums список альбомов через кэш запросов сессии
func (h *Handlers) albums(r *http.Request) ([]api.Album, error) {
	client := h.client(r)
	return query.Fetch(r.Context(), h.workspace(r).Query(), albumsKey, func(ctx context.Context) ([]api.Album, error) {
		return client.ListAlbums(ctx)
	})
}

// album альбом через кэш запросов сессии
func (h *Handlers) album(r *http.Request, id string) (*api.Album, error) {
	client := h.client(r)
	return query.Fetch(r.Context(), h.workspace(r).Query(), albumQueryKey(id), func(ctx context.Context) (*api.Album, error) {
		return client.GetAlbum(ctx, id)
	})
}

func albumFrom(r *http.Request) *api.Album {
	a, _ := r.Context().Value(albumKey{}).(*api.Album)
	return a
}

// === Альбомы ===

// ListAlbums отображает список альбомов
func (h *Handlers) ListAlbums(w http.ResponseWriter, r *http.Request) {
	albums, err := h.albums(r)
	if err != nil {
		h.failPage(w, r, "Не удалось загрузить альбомы", err)
		return
	}

	// Для API-клиентов отдаем JSON
	if !h.wantsHTML(r) {
		h.jsonResponse(w, albums)
		return
	}

	h.render(w, "albums.html", h.page(r, "Альбомы", map[string]interface{}{
		"Albums": albums,
	}))
}

// CreateAlbum создает новый альбом
func (h *Handlers) CreateAlbum(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.FormValue("name"))
	if name == "" {
		h.reject(w, r, "Введите название альбома")
		return
	}

	if err := h.client(r).CreateAlbum(r.Context(), name, false); err != nil {
		h.fail(w, r, "Не удалось создать альбом", err)
		return
	}

	h.workspace(r).Query().Invalidate(albumsKey)
	h.notify(r, notify.Success(fmt.Sprintf("Альбом «%s» создан", name)))
	h.redirect(w, r, "/albums")
}

// RenameAlbum переименовывает альбом
func (h *Handlers) RenameAlbum(w http.ResponseWriter, r *http.Request) {
	album := albumFrom(r)
	name := strings.TrimSpace(r.FormValue("name"))
	if name == "" {
		h.reject(w, r, "Введите название альбома")
		return
	}

	if err := h.client(r).UpdateAlbum(r.Context(), album.ID, name); err != nil {
		h.fail(w, r, "Не удалось переименовать альбом", err)
		return
	}

	h.workspace(r).Query().Invalidate(albumsKey, albumQueryKey(album.ID))
	h.notify(r, notify.Success(fmt.Sprintf("Альбом переименован в «%s»", name)))
	h.redirect(w, r, "/albums/"+album.ID)
}

// DeleteAlbum удаляет альбом. Объекты остаются в ленте.
func (h *Handlers) DeleteAlbum(w http.ResponseWriter, r *http.Request) {
	album := albumFrom(r)
	if album.IsSystem {
		h.reject(w, r, "Системный альбом нельзя удалить")
		return
	}

	if err := h.client(r).DeleteAlbum(r.Context(), album.ID); err != nil {
		h.fail(w, r, "Не удалось удалить альбом", err)
		return
	}

	h.dropAlbums(r, album.ID)
	h.notify(r, notify.Success(fmt.Sprintf("Альбом «%s» удален", album.Name)))
	h.redirect(w, r, "/albums")
}

// DeleteAlbums удаляет выбранные альбомы. Системные пропускаются.
func (h *Handlers) DeleteAlbums(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.reject(w, r, "Некорректная форма")
		return
	}
	selected := r.PostForm["ids"]
	if len(selected) == 0 {
		h.reject(w, r, "Ничего не выбрано")
		return
	}

	albums, err := h.albums(r)
	if err != nil {
		h.fail(w, r, "Не удалось загрузить альбомы", err)
		return
	}
	byID := make(map[string]api.Album, len(albums))
	for _, a := range albums {
		byID[a.ID] = a
	}

	var deletable []string
	blocked := 0
	for _, id := range selected {
		a, ok := byID[id]
		switch {
		case !ok:
			// альбом уже удален
		case a.IsSystem:
			blocked++
		default:
			deletable = append(deletable, id)
		}
	}
	if blocked > 0 {
		h.notify(r, notify.Error("Системные альбомы нельзя удалить"))
	}
	if len(deletable) == 0 {
		h.back(w, r)
		return
	}

	client := h.client(r)
	g, ctx := errgroup.WithContext(r.Context())
	g.SetLimit(deleteConcurrency)
	for _, id := range deletable {
		g.Go(func() error {
			if err := client.DeleteAlbum(ctx, id); err != nil {
				return fmt.Errorf("album %s: %w", id, err)
			}
			return nil
		})
	}
	err = g.Wait()

	// часть альбомов могла удалиться до ошибки
	h.dropAlbums(r, deletable...)
	if err != nil {
		logger.L.Info("bulk album delete failed", zap.Int("count", len(deletable)), zap.Error(err))
		h.fail(w, r, "Не удалось удалить альбомы", err)
		return
	}

	h.notify(r, notify.Success(fmt.Sprintf("Удалено альбомов: %d", len(deletable))))
	h.redirect(w, r, "/albums")
}

// dropAlbums сбрасывает кэш списка и удаленных альбомов
func (h *Handlers) dropAlbums(r *http.Request, ids ...string) {
	ws := h.workspace(r)
	keys := []query.Key{albumsKey}
	for _, id := range ids {
		keys = append(keys, albumQueryKey(id))
		ws.Invalidate(gallery.AlbumScope(api.Album{ID: id}))
	}
	ws.Query().Invalidate(keys...)
}
