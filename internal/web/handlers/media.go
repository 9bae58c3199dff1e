package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/photocore/photoadmin/internal/api"
	"github.com/photocore/photoadmin/internal/auth"
	"github.com/photocore/photoadmin/internal/cache"
	"github.com/photocore/photoadmin/internal/download"
	"github.com/photocore/photoadmin/internal/logger"
	"github.com/photocore/photoadmin/internal/media"
	"github.com/photocore/photoadmin/internal/notify"
)

// миниатюры больше этого размера не кэшируются в памяти
const maxCachedThumb = 2 << 20

// mediaKey ключ медиа-кэша: данные принадлежат сессии, которая их получила
func mediaKey(sessionID, objectID string) string {
	return sessionID + ":" + objectID
}

// forgetMedia убирает из кэшей удаленные объекты
func (h *Handlers) forgetMedia(sessionID string, ids ...string) {
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = mediaKey(sessionID, id)
	}
	h.cache.Forget(keys...)
	h.previews.Forget(sessionID, ids...)
}

// === Медиа ===

// ServeThumbnail отдает миниатюру плитки
func (h *Handlers) ServeThumbnail(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	key := mediaKey(auth.GetSessionID(r), id)

	// Пробуем кэш
	if b, ok := h.cache.GetThumb(key); ok {
		serveBlob(w, b, "private, max-age=600")
		return
	}

	blob, err := h.client(r).GetThumbnail(r.Context(), id)
	if err != nil {
		h.mediaError(w, r, err)
		return
	}
	defer blob.Body.Close()

	data, err := io.ReadAll(blob.Body)
	if err != nil {
		logger.L.Warn("failed to read thumbnail", zap.String("id", id), zap.Error(err))
		http.Error(w, "Bad gateway", http.StatusBadGateway)
		return
	}

	b := &cache.Blob{Data: data, ContentType: blob.ContentType}
	if len(data) <= maxCachedThumb {
		h.cache.SetThumb(key, b)
	}
	serveBlob(w, b, "private, max-age=600")
}

// ServePreview отдает превью под размер экрана. Для видео и форматов,
// которые нельзя уменьшить, перенаправляет на оригинал.
func (h *Handlers) ServePreview(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sid := auth.GetSessionID(r)
	key := mediaKey(sid, id)

	if b, ok := h.cache.GetPreview(key); ok {
		serveBlob(w, b, "private, max-age=300")
		return
	}

	data, ok, err := h.previews.Ensure(r.Context(), sid, id)
	if err != nil {
		h.mediaError(w, r, err)
		return
	}
	if !ok {
		http.Redirect(w, r, "/media/"+id+"/original", http.StatusFound)
		return
	}

	b := &cache.Blob{Data: data, ContentType: "image/jpeg"}
	h.cache.SetPreview(key, b)
	serveBlob(w, b, "private, max-age=300")
}

// ServeOriginal отдает оригинал объекта потоком
func (h *Handlers) ServeOriginal(w http.ResponseWriter, r *http.Request) {
	blob, err := h.client(r).GetObject(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.mediaError(w, r, err)
		return
	}
	defer blob.Body.Close()

	if blob.ContentType != "" {
		w.Header().Set("Content-Type", blob.ContentType)
	}
	if blob.ContentLength > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(blob.ContentLength, 10))
	}
	if blob.Disposition != "" {
		w.Header().Set("Content-Disposition", blob.Disposition)
	}
	w.Header().Set("Cache-Control", "private, max-age=300")
	if _, err := io.Copy(w, blob.Body); err != nil {
		logger.L.Debug("original transfer interrupted", zap.Error(err))
	}
}

func serveBlob(w http.ResponseWriter, b *cache.Blob, cacheControl string) {
	if b.ContentType != "" {
		w.Header().Set("Content-Type", b.ContentType)
	}
	w.Header().Set("Content-Length", strconv.Itoa(len(b.Data)))
	w.Header().Set("Cache-Control", cacheControl)
	w.Write(b.Data)
}

// mediaError ответ для картинок: без страниц и уведомлений
func (h *Handlers) mediaError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, api.ErrSessionExpired):
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
	case api.IsStatus(err, http.StatusNotFound):
		http.NotFound(w, r)
	default:
		logger.L.Warn("media request failed", zap.String("path", r.URL.Path), zap.Error(err))
		http.Error(w, "Bad gateway", http.StatusBadGateway)
	}
}

// === Архивы ===

// Download отдает подготовленный архив один раз
func (h *Handlers) Download(w http.ResponseWriter, r *http.Request) {
	err := h.links.Serve(w, r, chi.URLParam(r, "token"), auth.GetSessionID(r))
	switch {
	case errors.Is(err, download.ErrNotFound):
		h.NotFound(w, r)
	case err != nil:
		logger.L.Error("failed to serve archive", zap.Error(err))
		http.Error(w, "Internal error", http.StatusInternalServerError)
	}
}

// === Загрузка ===

// Upload принимает файлы и ставит их в очередь загрузки в API.
// Результат каждой загрузки приходит уведомлением.
func (h *Handlers) Upload(w http.ResponseWriter, r *http.Request) {
	limits := h.cfg.Upload
	r.Body = http.MaxBytesReader(w, r.Body, limits.MaxRequestSize)
	if err := r.ParseMultipartForm(limits.MaxMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.reject(w, r, "Слишком большой запрос, предел "+humanize.IBytes(uint64(limits.MaxRequestSize)))
			return
		}
		h.reject(w, r, "Не удалось прочитать файлы")
		return
	}
	defer r.MultipartForm.RemoveAll()

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		h.reject(w, r, "Выберите файлы для загрузки")
		return
	}

	sid := auth.GetSessionID(r)
	queued := 0
	var failed []string
	for _, fh := range files {
		if fh.Size > limits.MaxFileSize {
			failed = append(failed, fmt.Sprintf("%s: файл больше %s", fh.Filename, humanize.IBytes(uint64(limits.MaxFileSize))))
			continue
		}
		path, err := h.spoolUpload(fh)
		if err != nil {
			logger.L.Warn("upload rejected", zap.String("file", fh.Filename), zap.Error(err))
			failed = append(failed, err.Error())
			continue
		}
		if !h.uploads.Queue(sid, fh.Filename, path) {
			failed = append(failed, fh.Filename+": очередь загрузки заполнена")
			continue
		}
		queued++
	}

	if queued > 0 {
		h.notify(r, notify.Info(fmt.Sprintf("Загрузка начата: %d", queued)))
	}
	if len(failed) > 0 {
		h.notify(r, notify.Error("Не удалось поставить в очередь", failed...))
	}

	if !isHTMX(r) {
		h.back(w, r)
		return
	}
	w.Header().Set("HX-Reswap", "none")
	h.fragment(w, r, "", nil)
}

// spoolUpload проверяет формат по заголовку файла и переносит его в очередь на диске
func (h *Handlers) spoolUpload(fh *multipart.FileHeader) (string, error) {
	f, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("%s: %w", fh.Filename, err)
	}
	defer f.Close()

	head := make([]byte, 512)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("%s: %w", fh.Filename, err)
	}
	if err := media.ValidateUpload(fh.Filename, head[:n]); err != nil {
		return "", err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("%s: %w", fh.Filename, err)
	}
	return h.uploads.Spool(f)
}
